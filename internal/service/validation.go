package service

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

// fieldErrors collects per-field validation messages.
type fieldErrors map[string]any

func (f fieldErrors) add(field, message string) {
	if _, exists := f[field]; !exists {
		f[field] = message
	}
}

func (f fieldErrors) minLen(field, value string, min int) {
	if utf8.RuneCountInString(value) < min {
		f.add(field, fmt.Sprintf("%s must be at least %d characters", field, min))
	}
}

func (f fieldErrors) maxLen(field, value string, max int) {
	if utf8.RuneCountInString(value) > max {
		f.add(field, fmt.Sprintf("%s must be at most %d characters", field, max))
	}
}

func (f fieldErrors) email(field, value string) {
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		f.add(field, "invalid email address")
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return apperrors.NewValidationError("validation failed", map[string]any(f))
}

// optionalText trims s and maps blank values to nil.
func optionalText(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// nextUpdatedAt keeps updated_at strictly increasing even when the clock
// has not advanced past the previous write.
func nextUpdatedAt(prev, now time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Microsecond)
}

// validID reports whether id is in the canonical UUID form used for every row id.
func validID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// requireID rejects ids that cannot name a stored row as NotFound for resource.
func requireID(id, resource string) error {
	if !validID(id) {
		return apperrors.NewNotFound(resource, nil)
	}
	return nil
}
