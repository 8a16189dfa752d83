package app

import "errors"

// Service and module errors are wrapped with the offending name, e.g.
// "service 'logger' already registered".
var (
	ErrInvalidName        = errors.New("name must be a non-empty string")
	ErrNilFactory         = errors.New("factory must not be nil")
	ErrNilModule          = errors.New("factory returned a nil module")
	ErrServiceExists      = errors.New("already registered")
	ErrServiceNotFound    = errors.New("not found")
	ErrModuleExists       = errors.New("already registered")
	ErrModuleNotFound     = errors.New("not registered")
	ErrModuleRunning      = errors.New("already started")
	ErrModuleNotStarted   = errors.New("unable to stop module")
	ErrMissingService     = errors.New("module requires an unregistered service")
	ErrAlreadyInitialized = errors.New("cannot set configuration after application is initialized")
)
