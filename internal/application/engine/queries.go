package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/alejandrodnm/hipodromo/internal/domain"
)

// Las queries viajan por el mailbox igual que los comandos, así que cada
// respuesta es un snapshot linealizado con las mutaciones. Siempre se
// devuelven copias, nunca el estado vivo del actor.

func (e *Engine) ask(ctx context.Context, fn func(*Engine) any) (any, error) {
	reply := make(chan any, 1)
	select {
	case e.mailbox <- query{fn: fn, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Runs devuelve todos los Runs ordenados por id ascendente.
func (e *Engine) Runs(ctx context.Context) ([]*domain.Run, error) {
	v, err := e.ask(ctx, func(e *Engine) any {
		runs := make([]*domain.Run, 0, len(e.runs))
		for _, r := range e.runs {
			runs = append(runs, r.Clone())
		}
		sort.Slice(runs, func(i, j int) bool { return runs[i].ID < runs[j].ID })
		return runs
	})
	if err != nil {
		return nil, err
	}
	return v.([]*domain.Run), nil
}

// RunByID devuelve el Run con el id dado.
func (e *Engine) RunByID(ctx context.Context, id uint64) (*domain.Run, error) {
	v, err := e.ask(ctx, func(e *Engine) any {
		r, ok := e.runs[id]
		if !ok {
			return (*domain.Run)(nil)
		}
		return r.Clone()
	})
	if err != nil {
		return nil, err
	}
	r := v.(*domain.Run)
	if r == nil {
		return nil, fmt.Errorf("engine.RunByID: run %d: %w", id, domain.ErrNotFound)
	}
	return r, nil
}

// LastRun devuelve el Run actual (id más alto), si existe.
func (e *Engine) LastRun(ctx context.Context) (*domain.Run, error) {
	v, err := e.ask(ctx, func(e *Engine) any {
		if r, ok := e.lastRun(); ok {
			return r.Clone()
		}
		return (*domain.Run)(nil)
	})
	if err != nil {
		return nil, err
	}
	r := v.(*domain.Run)
	if r == nil {
		return nil, fmt.Errorf("engine.LastRun: %w", domain.ErrNotFound)
	}
	return r, nil
}

// Horses devuelve los caballos del Run con sus depósitos agregados, en
// orden de nombre.
func (e *Engine) Horses(ctx context.Context, runID uint64) ([]domain.Standing, error) {
	r, err := e.RunByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(r.Horses))
	for name := range r.Horses {
		names = append(names, name)
	}
	sort.Strings(names)

	standings := make([]domain.Standing, 0, len(names))
	for _, name := range names {
		standings = append(standings, *r.Horses[name])
	}
	return standings, nil
}

// Manager devuelve la dirección del manager vigente.
func (e *Engine) Manager(ctx context.Context) (domain.Address, error) {
	v, err := e.ask(ctx, func(e *Engine) any { return e.manager })
	if err != nil {
		return "", err
	}
	return v.(domain.Address), nil
}

// Owner devuelve la dirección registrada como owner en el init.
func (e *Engine) Owner(ctx context.Context) (domain.Address, error) {
	v, err := e.ask(ctx, func(e *Engine) any { return e.owner })
	if err != nil {
		return "", err
	}
	return v.(domain.Address), nil
}

// TokenAddress devuelve la identidad del contrato de tokens.
func (e *Engine) TokenAddress(ctx context.Context) (domain.Address, error) {
	v, err := e.ask(ctx, func(e *Engine) any { return e.tokenAddr })
	if err != nil {
		return "", err
	}
	return v.(domain.Address), nil
}

// OracleAddress devuelve la identidad vigente del oracle.
func (e *Engine) OracleAddress(ctx context.Context) (domain.Address, error) {
	v, err := e.ask(ctx, func(e *Engine) any { return e.oracleAddr })
	if err != nil {
		return "", err
	}
	return v.(domain.Address), nil
}

// FeeBps devuelve el fee vigente en basis points.
func (e *Engine) FeeBps(ctx context.Context) (uint64, error) {
	v, err := e.ask(ctx, func(e *Engine) any { return e.feeBps })
	if err != nil {
		return 0, err
	}
	return v.(uint64), nil
}

// RunNonce devuelve el id del Run actual (0 si nunca hubo).
func (e *Engine) RunNonce(ctx context.Context) (uint64, error) {
	v, err := e.ask(ctx, func(e *Engine) any { return e.runNonce })
	if err != nil {
		return 0, err
	}
	return v.(uint64), nil
}
