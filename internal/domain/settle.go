package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// SelectWinner elige exactamente un caballo a partir de la semilla externa.
//
// Determinista y total sobre sets no vacíos: SHA-256 sobre (runID, seed) —
// el id del run entra en el hash para que la misma semilla no se reutilice
// entre carreras — reducido a un punto sobre la suma de Strength, recorrido
// en orden de nombre. Más Strength ⇒ más probabilidad de salir ganador; el
// volumen apostado no influye. Si todos los Strength son cero la selección
// es uniforme.
func SelectWinner(r *Run, seed uint64) (string, error) {
	names := r.horseNames()
	if len(names) == 0 {
		return "", fmt.Errorf("domain.SelectWinner: empty horse set: %w", ErrNotFound)
	}

	var total uint64
	for _, name := range names {
		var err error
		total, err = CheckedAdd(total, r.Horses[name].Horse.Strength)
		if err != nil {
			return "", fmt.Errorf("domain.SelectWinner: strength sum: %w", err)
		}
	}

	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], r.ID)
	binary.LittleEndian.PutUint64(buf[8:], seed)
	digest := sha256.Sum256(buf[:])
	point := binary.LittleEndian.Uint64(digest[:8])

	if total == 0 {
		return names[point%uint64(len(names))], nil
	}

	point %= total
	var acc uint64
	for _, name := range names {
		acc += r.Horses[name].Horse.Strength
		if point < acc {
			return name, nil
		}
	}
	// Inalcanzable: point < total y acc termina en total.
	return names[len(names)-1], nil
}

// Payout calcula el cobro parimutuel de un bidder en un Run terminado.
//
//	shareBps = floor(depósito_ganador * MaxBps / pool_ganador)
//	profit   = floor(pool_perdedor * shareBps / MaxBps)
//	payout   = depósito_ganador + profit
//
// El bidder recupera su stake íntegro más su parte proporcional de los
// stakes perdedores. El truncado es siempre hacia cero, así que la suma de
// todos los payouts nunca excede el pool total; el polvo restante queda sin
// reclamar en el contrato.
func Payout(r *Run, bidder Address) (stake, profit uint64, err error) {
	if r.Status != StageFinished {
		return 0, 0, stageError("Payout", r.Status)
	}

	balances, ok := r.Bidders[bidder]
	if !ok {
		return 0, 0, fmt.Errorf("domain.Payout: bidder %q: %w", bidder, ErrZeroStake)
	}
	stake = balances[r.Winner]
	if stake == 0 {
		// Distinguir "apostó solo a perdedores" de "no tiene nada".
		for _, amount := range balances {
			if amount > 0 {
				return 0, 0, fmt.Errorf("domain.Payout: bidder %q: %w", bidder, ErrNotWinner)
			}
		}
		return 0, 0, fmt.Errorf("domain.Payout: bidder %q: %w", bidder, ErrZeroStake)
	}

	winnerPool, err := r.HorseTotal(r.Winner)
	if err != nil {
		return 0, 0, err
	}
	shareBps, err := MulDiv(stake, MaxBps, winnerPool)
	if err != nil {
		return 0, 0, fmt.Errorf("domain.Payout: share: %w", err)
	}

	losingPool, err := r.LosingPool(r.Winner)
	if err != nil {
		return 0, 0, err
	}
	profit, err = MulDiv(losingPool, shareBps, MaxBps)
	if err != nil {
		return 0, 0, fmt.Errorf("domain.Payout: profit: %w", err)
	}

	return stake, profit, nil
}
