// Package logger provides utilities for working with [zerolog] and
// [context.Context].
package logger

import (
	"context"
	"os"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

var ctxLoggerKey = ctxKey{}

// WithContext attaches l to ctx, for later retrieval by [FromContext].
func WithContext(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxLoggerKey, l)
}

// FromContext returns the logger attached to ctx by [WithContext], or a
// new timestamped logger writing to standard error if none was attached.
func FromContext(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(ctxLoggerKey).(zerolog.Logger); ok {
		return l
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// FatalError logs err at fatal level and exits the process with status 1.
func FatalError(msg string, err error) {
	zerolog.New(os.Stderr).With().Timestamp().Logger().Fatal().Err(err).Msg(msg)
}

// FatalErrorContext is [FatalError] using the logger attached to ctx.
func FatalErrorContext(ctx context.Context, msg string, err error) {
	FromContext(ctx).Fatal().Err(err).Msg(msg)
}
