package telemetry

import (
	"context"

	"fieldops-session-control/internal/telemetry/domain"
)

// EventEmitter emits telemetry events. Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.Event) error
}

// MultiEmitter fans one event out to several emitters (e.g. Kafka plus OTel
// logs). Emit returns the first error but still tries every emitter.
type MultiEmitter []EventEmitter

// NewMultiEmitter returns an emitter over the non-nil entries of emitters.
// Returns nil when none remain, so callers can treat "no sinks" as disabled.
func NewMultiEmitter(emitters ...EventEmitter) EventEmitter {
	var out MultiEmitter
	for _, e := range emitters {
		if e != nil {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

// Emit sends the event to every emitter, returning the first error seen.
func (m MultiEmitter) Emit(ctx context.Context, event *domain.Event) error {
	var firstErr error
	for _, e := range m {
		if err := e.Emit(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
