package images

import (
	"errors"
	"net/http"
)

// Domain errors for image operations.
var (
	ErrNotFound = errors.New("image not found")
	ErrTerminal = errors.New("image already reached a terminal state")
)

// MapHTTPStatus converts domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrTerminal) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
