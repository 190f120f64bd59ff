package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/sosalert/internal/account"
	"github.com/geocoder89/sosalert/internal/config"
	"github.com/geocoder89/sosalert/internal/domain/user"
	"github.com/geocoder89/sosalert/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type Authenticator interface {
	Register(ctx context.Context, in account.RegisterInput) (user.User, error)
	Login(ctx context.Context, email, password string) (account.Session, error)
	Profile(ctx context.Context, userID string) (user.User, error)
}

type AuthHandler struct {
	accounts Authenticator
	log      *slog.Logger
}

func NewAuthHandler(accounts Authenticator, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{accounts: accounts, log: log}
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// bcrypt dominates this request
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 5*time.Second)
	defer cancel()

	_, err := h.accounts.Register(cctx, account.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Contacts: req.EmergencyContacts,
	})

	if err != nil {
		switch {
		case errors.Is(err, account.ErrValidation):
			RespondBadRequest(ctx, "All fields, including emergency contacts, are required.", nil)
		case errors.Is(err, user.ErrEmailTaken):
			RespondError(ctx, http.StatusBadRequest, "email_taken", "Email already in use", nil)
		default:
			h.log.ErrorContext(cctx, "registration_failed", "err", err)
			RespondInternal(ctx, "Internal Server Error")
		}
		return
	}

	RespondMessage(ctx, http.StatusCreated, "User registered successfully!")
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	session, err := h.accounts.Login(cctx, req.Email, req.Password)

	if err != nil {
		if errors.Is(err, account.ErrInvalidCredentials) {
			RespondError(ctx, http.StatusBadRequest, "invalid_credentials", "Invalid credentials", nil)
			return
		}

		h.log.ErrorContext(cctx, "login_failed", "err", err)
		RespondInternal(ctx, "Internal Server Error")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message":   "Login successful!",
		"token":     session.Token,
		"expiresAt": session.ExpiresAt,
	})
}

// Me returns the profile of the bearer token's user.
func (h *AuthHandler) Me(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	u, err := h.accounts.Profile(cctx, userID)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found.")
			return
		}

		h.log.ErrorContext(cctx, "profile_failed", "err", err, "user_id", userID)
		RespondInternal(ctx, "Internal Server Error")
		return
	}

	ctx.JSON(http.StatusOK, u)
}
