package dispatcher

import "log/slog"

// WithLogger sets the logger for the dispatcher.
// If not set, slog.Default() is used.
//
// Example:
//
//	d := dispatcher.New(dispatcher.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithContinueOnError makes plain-channel publishing run every callback even
// when one fails. The errors of all failing callbacks are joined with errors.Join.
//
// The ACTION channel is not affected: a failing action handler always ends
// the dispatch cycle.
func WithContinueOnError() Option {
	return func(d *Dispatcher) {
		d.continueOnError = true
	}
}
