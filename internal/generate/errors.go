package generate

import (
	"errors"
	"fmt"
)

// TransientError marks a failure worth retrying: rate-limit rejections,
// timeouts, 5xx responses.
type TransientError struct {
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transient generator failure (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("transient generator failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ValidationError marks structurally unusable generator output — an empty
// payload, undecodable JSON, a refusal. These are retried under the same
// policy as transient failures: a model hiccup on one attempt says little
// about the next.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "invalid generator output: " + e.Msg
}

func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
