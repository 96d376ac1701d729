package ports

import (
	"context"

	"github.com/alejandrodnm/hipodromo/internal/domain"
)

// Board presenta el estado de las carreras al operador.
type Board interface {
	// PrintRuns muestra el histórico de Runs.
	PrintRuns(ctx context.Context, runs []*domain.Run) error

	// PrintOdds muestra los caballos de un Run con sus depósitos.
	PrintOdds(ctx context.Context, run *domain.Run) error
}
