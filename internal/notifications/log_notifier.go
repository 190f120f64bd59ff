package notifications

import (
	"context"
	"errors"
	"log/slog"
)

var errSimulatedOutage = errors.New("provider down (simulated)")

// LogNotifier writes each alert to the log instead of a real provider.
type LogNotifier struct {
	log  *slog.Logger
	fail bool
}

// NewLogNotifier returns a notifier that logs one line per contact. With
// fail set, every send fails as if the provider were down.
func NewLogNotifier(log *slog.Logger, fail bool) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log, fail: fail}
}

func (n *LogNotifier) SendSOSAlert(ctx context.Context, alert SOSAlert) error {
	if len(alert.Contacts) == 0 {
		return ErrNoContacts
	}

	if n.fail {
		return errSimulatedOutage
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := FormatSOSMessage(alert.UserName, alert.Latitude, alert.Longitude)

	for _, c := range alert.Contacts {
		n.log.InfoContext(ctx, "notification.sos_alert",
			"contact", c.Name,
			"address", c.Address(),
			"user_email", alert.UserEmail,
			"message", msg,
		)
	}
	return nil
}
