package confluence

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// errorBodyLimit caps how much of a failed response ends up in an error message.
const errorBodyLimit = 300

// APIError is any non-2xx answer from either surface.
type APIError struct {
	Method     string
	Surface    Surface
	Path       string
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s%s → %s: %s", e.Method, e.Surface, e.Path, e.Status, e.Body)
}

// IsStatus reports whether err wraps an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == code
	}
	return false
}

func truncate(body []byte, limit int) string {
	return Clip(string(body), limit)
}

// Clip shortens s to at most limit bytes without splitting a UTF-8 sequence.
func Clip(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
