// Package sos resolves the user behind an SOS request and hands the alert to
// the contact notifier.
package sos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/sosalert/internal/domain/user"
	"github.com/geocoder89/sosalert/internal/notifications"
	"github.com/geocoder89/sosalert/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrValidation      = errors.New("email and location are required")
	ErrUserNotFound    = errors.New("user not found")
	ErrDeliveryFailure = errors.New("failed to send sos alerts")
)

// Request carries the wire fields of an SOS call. A zero coordinate counts
// as missing, so a location on the equator or the prime meridian is refused.
type Request struct {
	Email     string     `json:"email" binding:"required"`
	Latitude  Coordinate `json:"latitude" binding:"required"`
	Longitude Coordinate `json:"longitude" binding:"required"`
}

func (r Request) Validate() error {
	if r.Email == "" || r.Latitude == 0 || r.Longitude == 0 {
		return ErrValidation
	}
	return nil
}

type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (user.User, error)
}

type Coordinator struct {
	users    UserFinder
	notifier notifications.Notifier
	log      *slog.Logger
	prom     *observability.Prom
}

func NewCoordinator(users UserFinder, notifier notifications.Notifier, log *slog.Logger, prom *observability.Prom) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		users:    users,
		notifier: notifier,
		log:      log,
		prom:     prom,
	}
}

// Dispatch runs validate, resolve and notify in order. It returns nil once
// the notifier accepted the alert for every contact.
func (c *Coordinator) Dispatch(ctx context.Context, req Request) (err error) {
	start := time.Now()

	ctx, span := otel.Tracer("sosalert/sos").Start(ctx, "sos.dispatch")
	defer func() {
		result := Result(err)
		span.SetAttributes(attribute.String("sos.result", result))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, result)
		}
		span.End()
		c.prom.ObserveDispatch(result, time.Since(start))
	}()

	if err := req.Validate(); err != nil {
		return err
	}

	u, err := c.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("resolve user: %w", err)
	}

	span.SetAttributes(
		attribute.String("user.id", u.ID),
		attribute.Int("sos.contacts", len(u.EmergencyContacts)),
	)

	alert := notifications.SOSAlert{
		UserName:  u.Name,
		UserEmail: u.Email,
		Contacts:  u.EmergencyContacts,
		Latitude:  float64(req.Latitude),
		Longitude: float64(req.Longitude),
	}

	if err := c.notifier.SendSOSAlert(ctx, alert); err != nil {
		c.log.ErrorContext(ctx, "sos_delivery_failed", "user_id", u.ID, "contacts", len(u.EmergencyContacts), "err", err)
		return fmt.Errorf("%w: %w", ErrDeliveryFailure, err)
	}

	c.log.InfoContext(ctx, "sos_dispatched", "user_id", u.ID, "contacts", len(u.EmergencyContacts))
	return nil
}

// Result names the terminal state of a dispatch for logs and metrics.
func Result(err error) string {
	switch {
	case err == nil:
		return "dispatched"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrUserNotFound):
		return "not_found"
	case errors.Is(err, ErrDeliveryFailure):
		return "delivery_failure"
	default:
		return "internal"
	}
}
