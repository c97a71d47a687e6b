package validator

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/frontdesk/guestlog/pkg/errors"
)

// Field length caps carried over from the production schema.
const (
	MaxGuestNameLength    = 200
	MaxReasonDetailLength = 1000
	MaxInitialsLength     = 10
	MaxNoteLength         = 2000
	MaxLiftReasonLength   = 1000
	MaxPasswordLength     = 128
)

// Username: 3-20 alphanumeric characters and underscores
var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// ValidateUsername checks if username is valid and safe
func (v *Validator) ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return errors.ErrInvalidUsername
	}
	return nil
}

// ValidatePassword checks password strength: at least 8 characters with
// one uppercase letter, one lowercase letter and one digit.
func (v *Validator) ValidatePassword(password string) error {
	if len(password) < 8 || len(password) > MaxPasswordLength {
		return errors.ErrWeakPassword
	}

	var hasUpper, hasLower, hasDigit bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return errors.ErrWeakPassword
	}

	return nil
}

// ValidateDate checks that a date string parses as ISO YYYY-MM-DD
func (v *Validator) ValidateDate(value string) error {
	if _, err := time.Parse("2006-01-02", value); err != nil {
		return errors.NewAppError(errors.ErrInvalidInput, "invalid date format (expected YYYY-MM-DD)", 400)
	}
	return nil
}

// SanitizeString removes null bytes and surrounding whitespace
func (v *Validator) SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	return strings.TrimSpace(input)
}

// Truncate caps a string at max bytes, backing off to the nearest rune
// boundary so the result stays valid UTF-8
func (v *Validator) Truncate(input string, max int) string {
	if len(input) <= max {
		return input
	}
	for max > 0 && !utf8.RuneStart(input[max]) {
		max--
	}
	return input[:max]
}
