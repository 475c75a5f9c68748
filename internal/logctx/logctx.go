// Package logctx carries zerolog loggers through context.Context so that a
// harvest run, a data source or a layer can enrich every log line emitted
// below it (run_id, source, layer) without threading loggers through every
// signature.
//
//	ctx, runID := logctx.WithRun(ctx, logging.WithPhase("harvest"))
//	ctx = logctx.WithStr(ctx, "source", "SILO")
//	log := logctx.FromContext(ctx)
//	log.Info().Msg("fetching")
package logctx

import (
	"context"

	"github.com/eunmann/geodata-harvester/pkg/logging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// loggerKey is the private key type for storing loggers in context.
type loggerKey struct{}

// runKey is the private key type for the run identifier.
type runKey struct{}

// WithLogger returns a new context with the given logger attached.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext extracts the logger from the context. If the context is nil
// or does not contain a logger, returns the process logger from pkg/logging.
func FromContext(ctx context.Context) zerolog.Logger {
	if ctx == nil {
		return *logging.L()
	}
	if logger, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
		return logger
	}
	return *logging.L()
}

// WithStr returns a new context with a logger that has the specified string field added.
func WithStr(ctx context.Context, key, value string) context.Context {
	logger := FromContext(ctx).With().Str(key, value).Logger()
	return WithLogger(ctx, logger)
}

// WithInt returns a new context with a logger that has the specified int field added.
func WithInt(ctx context.Context, key string, value int) context.Context {
	logger := FromContext(ctx).With().Int(key, value).Logger()
	return WithLogger(ctx, logger)
}

// WithRun starts a new harvest run: it generates a run id, stores it in the
// context and attaches base enriched with a run_id field.
func WithRun(ctx context.Context, base zerolog.Logger) (context.Context, string) {
	if ctx == nil {
		ctx = context.Background()
	}
	id := uuid.NewString()
	ctx = context.WithValue(ctx, runKey{}, id)
	return WithLogger(ctx, base.With().Str("run_id", id).Logger()), id
}

// RunID returns the run id stored by WithRun, or "" outside a run.
func RunID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(runKey{}).(string)
	return id
}
