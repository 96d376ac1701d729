package ports

import (
	"context"

	"github.com/alejandrodnm/hipodromo/internal/domain"
)

// RunStore persiste los Runs y el journal de eventos. Los Runs terminados
// no se borran nunca.
type RunStore interface {
	// SaveRun inserta o reemplaza el snapshot del Run.
	SaveRun(ctx context.Context, run *domain.Run) error

	// GetRun devuelve el Run con el id dado, o domain.ErrNotFound.
	GetRun(ctx context.Context, id uint64) (*domain.Run, error)

	// ListRuns devuelve todos los Runs ordenados por id ascendente.
	ListRuns(ctx context.Context) ([]*domain.Run, error)

	// AppendEvent añade un evento terminal al journal.
	AppendEvent(ctx context.Context, runID uint64, ev domain.Event) error

	// Close cierra la conexión limpiamente.
	Close() error
}
