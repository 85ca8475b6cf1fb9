package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredential means the provider API key was never configured.
	ErrMissingCredential = errors.New("missing provider credential")
	// ErrNoImage means the provider answered successfully but none of the
	// known response locations carried image data.
	ErrNoImage = errors.New("no image in provider response")
)

// ValidationError reports a client-caused input problem. Role names which
// uploaded image failed ("person" or "garment"); it is empty for
// request-level problems such as a missing field.
type ValidationError struct {
	Role    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Role != "" {
		return e.Role + " image: " + e.Message
	}
	return e.Message
}

// Validationf builds a ValidationError with a formatted message.
func Validationf(role, format string, args ...any) *ValidationError {
	return &ValidationError{Role: role, Message: fmt.Sprintf(format, args...)}
}

// UpstreamError reports a failed or unusable answer from the image provider.
// Unexpected marks responses that did not look like the provider's JSON at
// all, typically an HTML error page from an intermediary.
type UpstreamError struct {
	Status     int
	Message    string
	Unexpected bool
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("provider status %d: %s", e.Status, e.Message)
	}
	return "provider: " + e.Message
}

// ContentPolicyError reports that the provider refused to generate the
// requested image. Reason is "safety" or "recitation".
type ContentPolicyError struct {
	Reason string
}

func (e *ContentPolicyError) Error() string {
	return "generation blocked: " + e.Reason
}
