package ports

import (
	"context"

	"github.com/alejandrodnm/rangekeeper/internal/domain"
)

// EventSink recibe los eventos de auditoría de cada operación confirmada.
type EventSink interface {
	// Publish se llama una vez por operación, solo si la operación se confirmó.
	Publish(ctx context.Context, events []domain.Event) error
}

// MetricsRecorder recibe cada commit junto con el estado resultante.
type MetricsRecorder interface {
	ObserveCommit(events []domain.Event, st domain.EngineState)
}
