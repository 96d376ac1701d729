package ports

import (
	"context"

	"github.com/alejandrodnm/hipodromo/internal/domain"
)

// TokenLedger es el contrato de tokens fungibles visto desde el engine.
// El core no implementa contabilidad de tokens: solo emite transferencias
// y observa éxito o fallo.
type TokenLedger interface {
	// Transfer mueve amount desde from hacia to. Un error significa que el
	// colaborador rechazó o no completó la transferencia; el engine lo
	// trata como fallo fatal del mensaje en curso.
	Transfer(ctx context.Context, from, to domain.Address, amount uint64) error
}
