// Package engine implementa el actor de liquidación parimutuel: un único
// goroutine posee todo el estado (runs, ledger, configuración) y procesa
// comandos de uno en uno hasta el primer punto de suspensión.
//
// Las llamadas a colaboradores externos (tokens, oracle) son en dos fases:
// la fase síncrona valida guards y committea las mutaciones del ledger, y
// registra una operación pendiente correlacionada por request id; la
// respuesta del colaborador vuelve al mailbox como mensaje de completion y
// retoma la operación. Entre ambas fases el actor sigue procesando otros
// comandos, que observan el estado intermedio ya committeado — la
// suspensión no aísla. Si una transferencia falla, las mutaciones ya
// committeadas NO se revierten; es una limitación conocida del diseño que
// los tests fijan explícitamente.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/hipodromo/internal/domain"
	"github.com/alejandrodnm/hipodromo/internal/ports"
)

// Config es la configuración inicial del actor.
type Config struct {
	Owner   domain.Address
	Manager domain.Address
	Token   domain.Address // identidad del contrato de tokens
	Oracle  domain.Address // identidad del oracle
	Vault   domain.Address // custodia de los depósitos del propio engine
	FeeBps  uint64

	// Now es inyectable para tests; por defecto time.Now.
	Now func() time.Time
}

// Engine es el actor. Todo el estado mutable se toca solo desde el
// goroutine de Run; la API pública encola mensajes y espera la respuesta.
type Engine struct {
	mailbox chan message

	token  ports.TokenLedger
	oracle ports.Oracle
	store  ports.RunStore // opcional: nil desactiva la persistencia

	now func() time.Time

	// Estado exclusivo del goroutine del actor.
	runs       map[uint64]*domain.Run
	runNonce   uint64
	owner      domain.Address
	manager    domain.Address
	tokenAddr  domain.Address
	oracleAddr domain.Address
	vault      domain.Address
	feeBps     uint64
	pending    map[string]*pendingOp
}

// New construye el Engine y, si hay store, recupera los Runs persistidos
// (el nonce se restaura al id más alto).
func New(cfg Config, token ports.TokenLedger, oracle ports.Oracle, store ports.RunStore) (*Engine, error) {
	if err := domain.ValidateFeeBps(cfg.FeeBps); err != nil {
		return nil, fmt.Errorf("engine.New: %w", err)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	e := &Engine{
		mailbox:    make(chan message, 64),
		token:      token,
		oracle:     oracle,
		store:      store,
		now:        now,
		runs:       make(map[uint64]*domain.Run),
		owner:      cfg.Owner,
		manager:    cfg.Manager,
		tokenAddr:  cfg.Token,
		oracleAddr: cfg.Oracle,
		vault:      cfg.Vault,
		feeBps:     cfg.FeeBps,
		pending:    make(map[string]*pendingOp),
	}

	if store != nil {
		runs, err := store.ListRuns(context.Background())
		if err != nil {
			return nil, fmt.Errorf("engine.New: restore runs: %w", err)
		}
		for _, r := range runs {
			e.runs[r.ID] = r
			if r.ID > e.runNonce {
				e.runNonce = r.ID
			}
		}
	}

	return e, nil
}

// Run procesa el mailbox hasta que el contexto se cancele.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting",
		"manager", e.manager,
		"oracle", e.oracleAddr,
		"fee_bps", e.feeBps,
		"runs_restored", len(e.runs),
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("engine stopped", "pending_ops", len(e.pending))
			return nil
		case msg := <-e.mailbox:
			e.dispatch(ctx, msg)
		}
	}
}

// dispatch procesa un mensaje hasta completarlo o hasta su punto de
// suspensión. Se ejecuta solo desde el goroutine de Run.
func (e *Engine) dispatch(ctx context.Context, msg message) {
	switch m := msg.(type) {
	case cmdUpdateFeeBps:
		m.reply <- e.handleUpdateFeeBps(ctx, m)
	case cmdUpdateManager:
		m.reply <- e.handleUpdateManager(ctx, m)
	case cmdUpdateOracle:
		m.reply <- e.handleUpdateOracle(ctx, m)
	case cmdCreateRun:
		m.reply <- e.handleCreateRun(ctx, m)
	case cmdProgressLastRun:
		e.handleProgressLastRun(ctx, m)
	case cmdCancelLastRun:
		m.reply <- e.handleCancelLastRun(ctx, m)
	case cmdBid:
		e.handleBid(ctx, m)
	case cmdWithdrawCanceled:
		e.handleWithdrawCanceled(ctx, m)
	case cmdWithdrawFinished:
		e.handleWithdrawFinished(ctx, m)
	case cmdDeliverSeed:
		res := e.handleDeliverSeed(ctx, m)
		if m.reply != nil {
			m.reply <- res
		} else if res.err != nil {
			slog.Error("oracle seed rejected", "err", res.err)
		}
	case transferDone:
		e.handleTransferDone(ctx, m)
	case oracleRequested:
		e.handleOracleRequested(ctx, m)
	case query:
		m.reply <- m.fn(e)
	default:
		slog.Error("engine: unknown message", "type", fmt.Sprintf("%T", msg))
	}
}

// lastRun devuelve el Run actual (el de id más alto) si existe.
func (e *Engine) lastRun() (*domain.Run, bool) {
	r, ok := e.runs[e.runNonce]
	return r, ok
}

// persistRun guarda el snapshot del Run. Un fallo de persistencia no
// aborta el comando: el estado del actor es la fuente de verdad.
func (e *Engine) persistRun(ctx context.Context, r *domain.Run) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveRun(ctx, r); err != nil {
		slog.Warn("storage error", "err", err, "run_id", r.ID)
	}
}

// journal registra un evento terminal en el store.
func (e *Engine) journal(ctx context.Context, runID uint64, ev domain.Event) {
	if e.store == nil {
		return
	}
	if err := e.store.AppendEvent(ctx, runID, ev); err != nil {
		slog.Warn("journal error", "err", err, "event", ev.Kind())
	}
}
