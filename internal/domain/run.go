package domain

import (
	"fmt"
	"sort"
	"time"
)

// Run es una carrera: una ronda de apuestas desde su creación hasta la
// resolución (o cancelación) y el cobro. Los Runs nunca se borran; los
// terminados quedan consultables para siempre.
type Run struct {
	ID            uint64    `json:"id"`
	StartedAt     time.Time `json:"started_at"`
	BiddingEndsAt time.Time `json:"bidding_ends_at"`
	Status        Stage     `json:"status"`
	// Winner solo está definido cuando Status == StageFinished.
	Winner string `json:"winner,omitempty"`

	// Horses: nombre → caballo + depósito agregado. El agregado es siempre
	// la suma de los depósitos individuales registrados contra ese caballo.
	Horses map[string]*Standing `json:"horses"`

	// Bidders: bidder → (caballo → depósito neto).
	Bidders map[Address]map[string]uint64 `json:"bidders"`
}

// NewRun crea un Run en StageCreated con el set de caballos dado.
func NewRun(id uint64, now time.Time, biddingDuration time.Duration, horses []Horse) (*Run, error) {
	if len(horses) == 0 {
		return nil, fmt.Errorf("domain.NewRun: empty horse set: %w", ErrInvalid)
	}
	endsAt := now.Add(biddingDuration)
	if !endsAt.After(now) {
		return nil, fmt.Errorf("domain.NewRun: bidding window: %w", ErrInvalid)
	}

	r := &Run{
		ID:            id,
		StartedAt:     now,
		BiddingEndsAt: endsAt,
		Status:        StageCreated,
		Horses:        make(map[string]*Standing, len(horses)),
		Bidders:       make(map[Address]map[string]uint64),
	}
	for _, h := range horses {
		if _, dup := r.Horses[h.Name]; dup {
			return nil, fmt.Errorf("domain.NewRun: duplicate horse %q: %w", h.Name, ErrInvalid)
		}
		r.Horses[h.Name] = &Standing{Horse: h}
	}
	return r, nil
}

// Progress mueve el Run a InProgress. Solo válido desde Created.
func (r *Run) Progress() error {
	if r.Status != StageCreated {
		return stageError("Run.Progress", r.Status)
	}
	r.Status = StageInProgress
	return nil
}

// Cancel mueve el Run a Canceled. Solo válido desde Created.
func (r *Run) Cancel() error {
	if r.Status != StageCreated {
		return stageError("Run.Cancel", r.Status)
	}
	r.Status = StageCanceled
	return nil
}

// Finish mueve el Run a Finished con el ganador dado. Solo válido desde
// InProgress y con un caballo existente.
func (r *Run) Finish(winner string) error {
	if r.Status != StageInProgress {
		return stageError("Run.Finish", r.Status)
	}
	if _, ok := r.Horses[winner]; !ok {
		return fmt.Errorf("domain.Run.Finish: horse %q: %w", winner, ErrNotFound)
	}
	r.Status = StageFinished
	r.Winner = winner
	return nil
}

// Deposit registra un depósito neto del bidder sobre un caballo, con
// aritmética checked tanto en el balance individual como en el agregado.
func (r *Run) Deposit(bidder Address, horse string, amount uint64) error {
	st, ok := r.Horses[horse]
	if !ok {
		return fmt.Errorf("domain.Run.Deposit: horse %q: %w", horse, ErrNotFound)
	}

	balances := r.Bidders[bidder]
	if balances == nil {
		balances = make(map[string]uint64)
		r.Bidders[bidder] = balances
	}

	newBalance, err := CheckedAdd(balances[horse], amount)
	if err != nil {
		return fmt.Errorf("domain.Run.Deposit: bidder balance: %w", err)
	}
	newTotal, err := CheckedAdd(st.Total, amount)
	if err != nil {
		return fmt.Errorf("domain.Run.Deposit: horse total: %w", err)
	}

	balances[horse] = newBalance
	st.Total = newTotal
	return nil
}

// WithdrawAll suma los depósitos del bidder en todos los caballos, los pone
// a cero y devuelve la suma. Idempotente: una segunda llamada devuelve 0.
// Si la suma desbordara uint64 los balances quedan intactos y se devuelve
// el error; el principal nunca se pierde en silencio.
// No toca los agregados por caballo — esos son el registro histórico de la
// carrera y la base del cálculo de payouts para el resto de ganadores.
func (r *Run) WithdrawAll(bidder Address) (uint64, error) {
	balances, ok := r.Bidders[bidder]
	if !ok {
		return 0, nil
	}

	var total uint64
	for _, amount := range balances {
		sum, err := CheckedAdd(total, amount)
		if err != nil {
			return 0, fmt.Errorf("domain.Run.WithdrawAll: %w", err)
		}
		total = sum
	}
	for horse := range balances {
		balances[horse] = 0
	}
	return total, nil
}

// BidderDeposit devuelve el depósito del bidder sobre un caballo concreto.
func (r *Run) BidderDeposit(bidder Address, horse string) uint64 {
	return r.Bidders[bidder][horse]
}

// HorseTotal devuelve el depósito agregado sobre un caballo.
func (r *Run) HorseTotal(horse string) (uint64, error) {
	st, ok := r.Horses[horse]
	if !ok {
		return 0, fmt.Errorf("domain.Run.HorseTotal: horse %q: %w", horse, ErrNotFound)
	}
	return st.Total, nil
}

// LeadingHorse devuelve el caballo con más depósito agregado. Puramente
// informativo (el board lo muestra como favorito) — NO es el mecanismo de
// selección del ganador.
func (r *Run) LeadingHorse() (Standing, bool) {
	var best Standing
	found := false
	for _, name := range r.horseNames() {
		st := r.Horses[name]
		if !found || st.Total > best.Total {
			best = *st
			found = true
		}
	}
	return best, found
}

// LosingPool suma los agregados de todos los caballos salvo el ganador,
// con adición checked.
func (r *Run) LosingPool(winner string) (uint64, error) {
	if _, ok := r.Horses[winner]; !ok {
		return 0, fmt.Errorf("domain.Run.LosingPool: horse %q: %w", winner, ErrNotFound)
	}
	var pool uint64
	for name, st := range r.Horses {
		if name == winner {
			continue
		}
		var err error
		pool, err = CheckedAdd(pool, st.Total)
		if err != nil {
			return 0, fmt.Errorf("domain.Run.LosingPool: %w", err)
		}
	}
	return pool, nil
}

// BiddingOpen devuelve true si el Run acepta apuestas en el instante dado.
func (r *Run) BiddingOpen(now time.Time) bool {
	return r.Status == StageCreated && now.Before(r.BiddingEndsAt)
}

// horseNames devuelve los nombres ordenados, para iteración determinista.
func (r *Run) horseNames() []string {
	names := make([]string, 0, len(r.Horses))
	for name := range r.Horses {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone devuelve una copia profunda del Run, segura para compartir fuera
// del actor.
func (r *Run) Clone() *Run {
	cp := *r
	cp.Horses = make(map[string]*Standing, len(r.Horses))
	for name, st := range r.Horses {
		dup := *st
		cp.Horses[name] = &dup
	}
	cp.Bidders = make(map[Address]map[string]uint64, len(r.Bidders))
	for bidder, balances := range r.Bidders {
		dup := make(map[string]uint64, len(balances))
		for horse, amount := range balances {
			dup[horse] = amount
		}
		cp.Bidders[bidder] = dup
	}
	return &cp
}
