package store

import "errors"

var (
	ErrNilSource  = errors.New("store: action source is nil")
	ErrNilHandler = errors.New("store: handler is nil")
	ErrClosed     = errors.New("store: closed")
)
