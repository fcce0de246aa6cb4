package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"scribe/internal/models"
)

// FieldErrors collects per-field messages keyed by field path, e.g. "posts[0].title".
type FieldErrors map[string]string

// Add records msg for field unless the field already has a message.
func (f FieldErrors) Add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

// Err returns a VALIDATION_ERROR carrying the collected fields, or nil.
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	return models.NewFieldValidationError(f)
}

// ValidateTitle requires a non-blank title of at most models.MaxTitleLength characters.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("title is required")
	}
	if utf8.RuneCountInString(title) > models.MaxTitleLength {
		return fmt.Errorf("title must not exceed %d characters", models.MaxTitleLength)
	}
	return nil
}

// ValidateBody requires a non-blank body.
func ValidateBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("body is required")
	}
	return nil
}

// CheckTitle records a title problem under prefix+"title".
func (f FieldErrors) CheckTitle(prefix, title string) {
	if err := ValidateTitle(title); err != nil {
		f.Add(prefix+"title", err.Error())
	}
}

// CheckBody records a body problem under prefix+"body".
func (f FieldErrors) CheckBody(prefix, body string) {
	if err := ValidateBody(body); err != nil {
		f.Add(prefix+"body", err.Error())
	}
}
