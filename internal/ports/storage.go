package ports

import (
	"context"

	"github.com/alejandrodnm/rangekeeper/internal/domain"
)

// StateStore persiste el estado del engine tras cada operación confirmada.
type StateStore interface {
	// SaveState reemplaza el snapshot persistido del pool.
	SaveState(ctx context.Context, st domain.EngineState) error

	// LoadState devuelve el último snapshot guardado del pool.
	LoadState(ctx context.Context, poolID domain.PoolID) (domain.EngineState, error)

	// AppendEvents añade eventos al log de auditoría.
	AppendEvents(ctx context.Context, events []domain.Event) error

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
