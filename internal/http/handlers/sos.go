package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/sosalert/internal/config"
	"github.com/geocoder89/sosalert/internal/sos"
	"github.com/gin-gonic/gin"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, req sos.Request) error
}

type SOSHandler struct {
	dispatcher Dispatcher
	log        *slog.Logger
}

func NewSOSHandler(dispatcher Dispatcher, log *slog.Logger) *SOSHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SOSHandler{dispatcher: dispatcher, log: log}
}

// SendSOS identifies the user by the email in the body; it does not look at
// any bearer token.
func (h *SOSHandler) SendSOS(ctx *gin.Context) {
	var req sos.Request

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 10*time.Second)
	defer cancel()

	err := h.dispatcher.Dispatch(cctx, req)

	switch {
	case err == nil:
		RespondMessage(ctx, http.StatusCreated, "SOS Alert Sent to Emergency Contacts!")
	case errors.Is(err, sos.ErrValidation):
		RespondBadRequest(ctx, "Email and location are required.", nil)
	case errors.Is(err, sos.ErrUserNotFound):
		RespondNotFound(ctx, "User not found.")
	case errors.Is(err, sos.ErrDeliveryFailure):
		RespondError(ctx, http.StatusInternalServerError, "dispatch_failed", "Failed to send SOS alerts.", nil)
	default:
		h.log.ErrorContext(cctx, "sos_failed", "err", err)
		RespondInternal(ctx, "Internal Server Error")
	}
}
