package provider

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest indicates the caller supplied missing or malformed fields.
// The provider was not contacted.
var ErrInvalidRequest = errors.New("invalid charge request")

// ErrUnavailable indicates the provider endpoint could not be reached.
var ErrUnavailable = errors.New("provider unavailable")

// RejectedError carries the provider's non-success response verbatim so the
// caller can propagate it.
type RejectedError struct {
	StatusCode int
	Body       []byte
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("provider rejected request with status %d", e.StatusCode)
}
