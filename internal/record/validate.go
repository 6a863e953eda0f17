package record

import (
	"errors"
	"fmt"
)

// ErrMissingID is returned when a record has an empty identifier.
var ErrMissingID = errors.New("record identifier is empty")

// ValidationError reports a record that violates a data model invariant.
type ValidationError struct {
	Kind    Kind
	ID      string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.ID == "" {
		return fmt.Sprintf("invalid %s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("invalid %s %s: %s", e.Kind, e.ID, msg)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidationError returns true if err wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validate checks the contact invariants.
func (c *Contact) Validate() error {
	if c.ID == "" {
		return &ValidationError{Kind: KindContact, Message: "id", Err: ErrMissingID}
	}
	if c.Birthday != nil {
		if err := c.Birthday.Validate(); err != nil {
			return &ValidationError{Kind: KindContact, ID: c.ID, Message: "birthday", Err: err}
		}
	}
	if c.Hour < 0 || c.Hour > 23 {
		return &ValidationError{Kind: KindContact, ID: c.ID, Message: fmt.Sprintf("notification hour %d out of range", c.Hour)}
	}
	if c.Minute < 0 || c.Minute > 59 {
		return &ValidationError{Kind: KindContact, ID: c.ID, Message: fmt.Sprintf("notification minute %d out of range", c.Minute)}
	}
	for _, d := range c.Offsets {
		if d < 0 {
			return &ValidationError{Kind: KindContact, ID: c.ID, Message: fmt.Sprintf("negative notification offset %d", d)}
		}
	}
	return nil
}

// Validate checks the holiday invariants.
func (h *Holiday) Validate() error {
	if h.ID == "" {
		return &ValidationError{Kind: KindHoliday, Message: "id", Err: ErrMissingID}
	}
	if h.Title == "" {
		return &ValidationError{Kind: KindHoliday, ID: h.ID, Message: "title is required"}
	}
	return nil
}

// Validate checks the card history invariants.
func (c *CardHistoryItem) Validate() error {
	return validateHistory(KindCard, c.ID, c.ContactID, c.HolidayID)
}

// Validate checks the congrats history invariants.
func (c *CongratsHistoryItem) Validate() error {
	return validateHistory(KindCongrats, c.ID, c.ContactID, c.HolidayID)
}

func validateHistory(k Kind, id, contactID, holidayID string) error {
	if id == "" {
		return &ValidationError{Kind: k, Message: "id", Err: ErrMissingID}
	}
	if contactID != "" && holidayID != "" {
		return &ValidationError{Kind: k, ID: id, Message: "references both a contact and a holiday"}
	}
	return nil
}
