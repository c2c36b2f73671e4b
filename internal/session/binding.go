// Package session ties a client to a (display name, room id) pair between the
// create/join form and the realtime connection that follows it.
package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// MaxRoomIDLength is the longest room id accepted, counted in characters.
const MaxRoomIDLength = 50

var (
	ErrMissingField = errors.New("name and room are required")
	ErrRoomTooLong  = errors.New("room name must be 50 characters or fewer")
	ErrUnbound      = errors.New("no active session")
)

var validate = validator.New()

// Binding is the session state of one client. SessionID doubles as the
// connection id once the realtime connection opens.
type Binding struct {
	SessionID string
	Name      string `validate:"required"`
	RoomID    string `validate:"required,max=50"`
}

// Bound reports whether b carries a name and a room.
func (b Binding) Bound() bool {
	return b.Name != "" && b.RoomID != ""
}

// Begin validates name and roomID and returns a fresh binding for them.
// The room id is trimmed before validation. Room state is not touched.
func Begin(name, roomID string) (Binding, error) {
	b := Binding{
		SessionID: uuid.NewString(),
		Name:      name,
		RoomID:    strings.TrimSpace(roomID),
	}
	if err := validate.Struct(b); err != nil {
		return Binding{}, translate(err)
	}
	return b, nil
}

// translate maps validator failures onto the session errors. A missing field
// wins over an overlong room id.
func translate(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate session: %w", err)
	}

	tooLong := false
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			return fmt.Errorf("%w: %s", ErrMissingField, strings.ToLower(fe.Field()))
		case "max":
			tooLong = true
		}
	}
	if tooLong {
		return ErrRoomTooLong
	}
	return fmt.Errorf("validate session: %w", err)
}
