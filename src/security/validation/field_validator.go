// backend/src/security/validation/field_validator.go
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/username/tradejournal/backend/src/models"
)

var ErrValidationFailed = fmt.Errorf("validation failed")

const (
	DefaultMaxStringLength = 255
	MaxTickerLength        = 15
	MaxNotesLength         = 4000
	MaxTagLength           = 32
	MaxTags                = 20
	MaxFilenameLength      = 255
)

// --- String Validators ---

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ValidateStringRegex checks if a string matches a given regex pattern.
func ValidateStringRegex(s string, pattern *regexp.Regexp, fieldName, formatDescription string) error {
	if !pattern.MatchString(s) {
		return fmt.Errorf("%w: %s ('%s') is not in the expected format (%s)", ErrValidationFailed, fieldName, s, formatDescription)
	}
	return nil
}

// --- Date Validator ---

// ValidateDateString checks if a string is a valid date in "YYYY-MM-DD" format.
func ValidateDateString(s, fieldName string) (time.Time, error) {
	trimmed := strings.TrimSpace(s)
	if err := ValidateStringNotEmpty(trimmed, fieldName); err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse("2006-01-02", trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s ('%s') is not a valid date (expected YYYY-MM-DD)", ErrValidationFailed, fieldName, s)
	}
	return t, nil
}

// --- Journal Validators ---

var (
	tickerRegex = regexp.MustCompile(`^[A-Z][A-Z0-9.\-^=]*$`)
	tagRegex    = regexp.MustCompile(`^[a-z0-9][a-z0-9 _\-]*$`)
)

// ValidateTicker checks the market symbol used for quote and analysis lookups.
func ValidateTicker(s string) (string, error) {
	ticker := strings.ToUpper(strings.TrimSpace(s))
	if err := ValidateStringNotEmpty(ticker, "ticker"); err != nil {
		return "", err
	}
	if err := ValidateStringMaxLength(ticker, MaxTickerLength, "ticker"); err != nil {
		return "", err
	}
	if err := ValidateStringRegex(ticker, tickerRegex, "ticker", "letters, digits, '.', '-', '^' or '='"); err != nil {
		return "", err
	}
	return ticker, nil
}

// ValidateNotes checks the length of journal notes.
func ValidateNotes(s string) error {
	return ValidateStringMaxLength(s, MaxNotesLength, "notes")
}

// ValidateTags checks normalized tags.
func ValidateTags(tags []string) error {
	if len(tags) > MaxTags {
		return fmt.Errorf("%w: at most %d tags are allowed", ErrValidationFailed, MaxTags)
	}
	for _, tag := range tags {
		if err := ValidateStringMaxLength(tag, MaxTagLength, "tag"); err != nil {
			return err
		}
		if err := ValidateStringRegex(tag, tagRegex, "tag", "lowercase letters, digits, spaces, '-' or '_'"); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePositionStatus accepts an empty value or one of the lifecycle states.
func ValidatePositionStatus(s string) error {
	if s == "" || models.ValidStatus(s) {
		return nil
	}
	return fmt.Errorf("%w: status '%s' must be OPEN, PARTIALLY_CLOSED or CLOSED", ErrValidationFailed, s)
}

// ValidateInstrumentType accepts an empty value, "stock" or "option".
func ValidateInstrumentType(s string) error {
	switch models.InstrumentType(s) {
	case "", models.InstrumentStock, models.InstrumentOption:
		return nil
	}
	return fmt.Errorf("%w: type '%s' must be stock or option", ErrValidationFailed, s)
}
