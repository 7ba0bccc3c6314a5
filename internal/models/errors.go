package models

import (
	"errors"
	"fmt"
)

// ValidationError carries a message that is safe to return to the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func Invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// TransitionError is returned when an order cannot move from one status to another.
type TransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}

func IsTransition(err error) bool {
	var t *TransitionError
	return errors.As(err, &t)
}
