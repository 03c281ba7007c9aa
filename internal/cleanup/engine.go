package cleanup

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/provisio/provisio/internal/state"
)

// Log is the ordered, append-only record of cleanup outcomes. It is returned
// to the caller for observability and never drives control flow.
type Log []string

// Add appends a formatted entry.
func (l Log) Add(format string, args ...any) Log {
	return append(l, fmt.Sprintf(format, args...))
}

// Engine sequences the cleanup strategies over a state document's inventory.
type Engine struct {
	logger zerolog.Logger
}

// NewEngine creates a pre-destroy cleanup engine.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{logger: logger.With().Str("component", "cleanup").Logger()}
}

// Run executes the strategies in fixed order: object storage first (the most
// frequent destroy blocker), then function triggers, then gateway probes.
// With no clients available the engine records a warning and yields; cleanup
// is an optimization for destroy, not a precondition.
func (e *Engine) Run(ctx context.Context, doc *state.Document, clients *Clients) Log {
	var log Log
	if clients == nil {
		e.logger.Warn().Msg("no cloud clients available; skipping pre-destroy cleanup")
		return log.Add("cleanup skipped: cloud clients unavailable")
	}

	inv := state.Extract(doc)
	log = append(log, emptyBuckets(ctx, clients.ObjectStore, inv.Buckets, e.logger)...)
	log = append(log, releaseFunctionTriggers(ctx, clients.Functions, inv.Functions, e.logger)...)
	log = append(log, probeGateways(ctx, clients.GatewayV1, clients.GatewayV2, inv.Gateways, e.logger)...)
	return log
}
