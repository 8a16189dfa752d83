package injector

import "errors"

var (
	// ErrNotFunction is returned when a factory is not a function.
	ErrNotFunction = errors.New("factory is not a function")

	// ErrInvalidToken is returned when a declared dependency is not a string.
	ErrInvalidToken = errors.New("incorrect injection token, expected service name as string")

	// ErrArityMismatch is returned when the number of declared dependencies
	// does not match the factory's parameters.
	ErrArityMismatch = errors.New("dependency count does not match factory parameters")

	// ErrTypeMismatch is returned when a resolved value cannot be passed as the factory parameter.
	ErrTypeMismatch = errors.New("dependency type does not match factory parameter")

	// ErrInvalidTarget is returned when Populate receives something other than a pointer to a struct.
	ErrInvalidTarget = errors.New("target must be a non-nil pointer to a struct")
)
