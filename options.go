package rofat

import (
	"go.uber.org/zap"
)

// InvalidEntryHandler is called for every directory record which is skipped
// because it is malformed. dir is the path of the directory containing it.
type InvalidEntryHandler func(dir string, err error)

// Option configures a Fs.
type Option func(fs *Fs)

// WithCodePage sets the code page of the short names. The default is ASCII.
func WithCodePage(cp CodePage) Option {
	return func(fs *Fs) {
		fs.codePage = cp
	}
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(logger *zap.Logger) Option {
	return func(fs *Fs) {
		fs.logger = logger
	}
}

// WithInvalidEntryHandler replaces the default handler which logs skipped records as warnings.
func WithInvalidEntryHandler(handler InvalidEntryHandler) Option {
	return func(fs *Fs) {
		fs.onInvalidEntry = handler
	}
}
