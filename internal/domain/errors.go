package domain

import "errors"

// Errores fatales del engine. Cada uno aborta el mensaje en curso sin
// efecto parcial dentro de ese mensaje; se comparan con errors.Is.
var (
	// ErrUnauthorized — el caller no es el principal requerido
	// (manager/oracle/owner, o "no debe ser el manager").
	ErrUnauthorized = errors.New("caller not authorized")

	// ErrStage — la operación llegó con el Run en un estado que no la
	// admite, o fuera de la ventana temporal (antes/después del cierre
	// de apuestas).
	ErrStage = errors.New("invalid run stage")

	// ErrNotFound — run id, caballo o bidder sin registro.
	ErrNotFound = errors.New("not found")

	// ErrInvalid — input rechazado al construir un Run: set de caballos
	// vacío o con nombres repetidos, o ventana de apuestas sin duración.
	ErrInvalid = errors.New("invalid input")

	// ErrOverflow — aritmética checked que desbordaría. Nunca se
	// envuelve en silencio.
	ErrOverflow = errors.New("arithmetic overflow")

	// ErrNotWinner — el bidder no apostó al caballo ganador.
	ErrNotWinner = errors.New("bidder did not back the winner")

	// ErrZeroStake — el bidder no tiene depósito registrado.
	ErrZeroStake = errors.New("bidder has zero stake")

	// ErrTransfer — el colaborador de tokens rechazó o no completó una
	// transferencia. Las mutaciones del ledger ya committeadas NO se
	// revierten (ver nota de diseño en el engine).
	ErrTransfer = errors.New("token transfer failed")

	// ErrOracle — la respuesta del oracle no se pudo decodificar o fue
	// inválida.
	ErrOracle = errors.New("oracle reply invalid")
)
