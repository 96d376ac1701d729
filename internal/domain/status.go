package domain

import "fmt"

// Stage es el estado de un Run dentro de su máquina de estados.
//
//	Created → InProgress → Finished
//	Created → Canceled
//
// Finished y Canceled son terminales; InProgress no puede cancelarse.
type Stage string

const (
	// StageCreated — apuestas abiertas hasta BiddingEndsAt.
	StageCreated Stage = "created"
	// StageInProgress — esperando la semilla del oracle.
	StageInProgress Stage = "in_progress"
	// StageFinished — terminal, con ganador asignado.
	StageFinished Stage = "finished"
	// StageCanceled — terminal, sin ganador.
	StageCanceled Stage = "canceled"
)

// Terminal devuelve true si el stage no admite más transiciones.
func (s Stage) Terminal() bool {
	return s == StageFinished || s == StageCanceled
}

func stageError(op string, got Stage) error {
	return fmt.Errorf("domain.%s: run is %q: %w", op, got, ErrStage)
}
