package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already in use")
)

type User struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	PasswordHash      string    `json:"-"` // never expose hash in JSON
	EmergencyContacts []Contact `json:"emergencyContacts"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Contact is whoever should hear about an SOS. Only its presence in the list
// is checked; the notifier decides which address it can use.
type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Address returns the best delivery address for the contact, phone first.
func (c Contact) Address() string {
	if p := strings.TrimSpace(c.Phone); p != "" {
		return p
	}
	return strings.TrimSpace(c.Email)
}

type RegisterRequest struct {
	Name              string    `json:"name" binding:"required"`
	Email             string    `json:"email" binding:"required"`
	Password          string    `json:"password" binding:"required"`
	EmergencyContacts []Contact `json:"emergencyContacts" binding:"required,min=1"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// New builds a User ready to be inserted. The contact slice is copied so the
// caller cannot mutate the stored order afterwards.
func New(name, email, passwordHash string, contacts []Contact) User {
	cs := make([]Contact, len(contacts))
	copy(cs, contacts)

	return User{
		ID:                uuid.NewString(),
		Name:              name,
		Email:             email,
		PasswordHash:      passwordHash,
		EmergencyContacts: cs,
		CreatedAt:         time.Now().UTC(),
	}
}
