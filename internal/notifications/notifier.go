package notifications

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/geocoder89/sosalert/internal/domain/user"
)

var ErrNoContacts = errors.New("no emergency contacts to notify")

// SOSAlert is everything a delivery channel needs for one SOS event.
type SOSAlert struct {
	UserName  string
	UserEmail string
	Contacts  []user.Contact
	Latitude  float64
	Longitude float64
}

// Notifier delivers one SOS alert to every contact. A nil error means the
// whole dispatch went through; any error means it did not, with no
// per-contact breakdown.
type Notifier interface {
	SendSOSAlert(ctx context.Context, alert SOSAlert) error
}

func MapsLink(lat, lon float64) string {
	return "https://www.google.com/maps?q=" + formatCoord(lat) + "," + formatCoord(lon)
}

func FormatSOSMessage(name string, lat, lon float64) string {
	return fmt.Sprintf("SOS alert from %s! They need help. Location: %s", name, MapsLink(lat, lon))
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
