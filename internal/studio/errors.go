package studio

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParam is matched by every input validation failure.
	ErrInvalidParam = errors.New("studio: invalid parameter")

	// ErrUnknownLanguage is matched by [*LanguageError].
	ErrUnknownLanguage = errors.New("studio: unknown language")

	// ErrBackend wraps model load and provider failures.
	ErrBackend = errors.New("studio: backend failure")
)

// LanguageError reports a language code missing from the catalogue.
type LanguageError struct {
	Code string

	// Suggestion is the closest catalogue code, or "".
	Suggestion string
}

func (e *LanguageError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("studio: unknown language %q (did you mean %q?)", e.Code, e.Suggestion)
	}
	return fmt.Sprintf("studio: unknown language %q", e.Code)
}

// Is makes every LanguageError match [ErrUnknownLanguage].
func (e *LanguageError) Is(target error) bool { return target == ErrUnknownLanguage }

func backendErr(err error) error {
	return fmt.Errorf("%w: %w", ErrBackend, err)
}
