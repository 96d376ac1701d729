package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/alejandrodnm/hipodromo/internal/domain"
)

type opKind int

const (
	opBidFee opKind = iota
	opBidVault
	opWithdrawCanceled
	opWithdrawFinished
	opProgress
)

// pendingOp es una operación suspendida a la espera de un colaborador.
// El estado del actor ya quedó committeado cuando se creó.
type pendingOp struct {
	kind   opKind
	caller domain.Address
	runID  uint64
	horse  string
	net    uint64 // neto del bid pendiente de entrar en custodia
	amount uint64 // importe retirado (withdraws)
	profit uint64
	reply  chan result
}

// --- guards -----------------------------------------------------------------

func (e *Engine) assertManager(caller domain.Address) error {
	if caller != e.manager {
		return fmt.Errorf("engine: caller %q is not the manager: %w", caller, domain.ErrUnauthorized)
	}
	return nil
}

func (e *Engine) assertNotManager(caller domain.Address) error {
	if caller == e.manager {
		return fmt.Errorf("engine: manager cannot bid: %w", domain.ErrUnauthorized)
	}
	return nil
}

func (e *Engine) assertOracle(caller domain.Address) error {
	if caller != e.oracleAddr {
		return fmt.Errorf("engine: caller %q is not the oracle: %w", caller, domain.ErrUnauthorized)
	}
	return nil
}

// assertLastRunEnded exige que el Run actual, si existe, sea terminal.
// Es el guard de los setters administrativos y de CreateRun.
func (e *Engine) assertLastRunEnded() error {
	if r, ok := e.lastRun(); ok && !r.Status.Terminal() {
		return fmt.Errorf("engine: run %d is %q: %w", r.ID, r.Status, domain.ErrStage)
	}
	return nil
}

// assertLastRunBidding exige Run actual en Created con apuestas abiertas.
func (e *Engine) assertLastRunBidding() (*domain.Run, error) {
	r, ok := e.lastRun()
	if !ok {
		return nil, fmt.Errorf("engine: no current run: %w", domain.ErrNotFound)
	}
	if r.Status != domain.StageCreated {
		return nil, fmt.Errorf("engine: run %d is %q: %w", r.ID, r.Status, domain.ErrStage)
	}
	if !e.now().Before(r.BiddingEndsAt) {
		return nil, fmt.Errorf("engine: run %d bidding is closed: %w", r.ID, domain.ErrStage)
	}
	return r, nil
}

// assertLastRunBiddingClosed exige Run actual en Created con las apuestas
// ya cerradas. Cancelar con las apuestas aún abiertas falla por este guard
// — comportamiento del diseño original, preservado.
func (e *Engine) assertLastRunBiddingClosed() (*domain.Run, error) {
	r, ok := e.lastRun()
	if !ok {
		return nil, fmt.Errorf("engine: no current run: %w", domain.ErrNotFound)
	}
	if r.Status != domain.StageCreated {
		return nil, fmt.Errorf("engine: run %d is %q: %w", r.ID, r.Status, domain.ErrStage)
	}
	if e.now().Before(r.BiddingEndsAt) {
		return nil, fmt.Errorf("engine: run %d bidding still open: %w", r.ID, domain.ErrStage)
	}
	return r, nil
}

// --- administración ----------------------------------------------------------

func (e *Engine) handleUpdateFeeBps(ctx context.Context, m cmdUpdateFeeBps) result {
	if err := e.assertManager(m.caller); err != nil {
		return result{err: err}
	}
	if err := e.assertLastRunEnded(); err != nil {
		return result{err: err}
	}
	if err := domain.ValidateFeeBps(m.bps); err != nil {
		return result{err: err}
	}

	e.feeBps = m.bps
	ev := domain.FeeBpsUpdated{FeeBps: m.bps}
	e.journal(ctx, 0, ev)
	slog.Info("fee updated", "fee_bps", m.bps)
	return result{ev: ev}
}

func (e *Engine) handleUpdateManager(ctx context.Context, m cmdUpdateManager) result {
	if err := e.assertManager(m.caller); err != nil {
		return result{err: err}
	}
	if err := e.assertLastRunEnded(); err != nil {
		return result{err: err}
	}

	e.manager = m.newManager
	ev := domain.ManagerUpdated{Manager: m.newManager}
	e.journal(ctx, 0, ev)
	slog.Info("manager updated", "manager", m.newManager)
	return result{ev: ev}
}

func (e *Engine) handleUpdateOracle(ctx context.Context, m cmdUpdateOracle) result {
	if err := e.assertManager(m.caller); err != nil {
		return result{err: err}
	}
	if err := e.assertLastRunEnded(); err != nil {
		return result{err: err}
	}

	e.oracleAddr = m.newOracle
	ev := domain.OracleUpdated{Oracle: m.newOracle}
	e.journal(ctx, 0, ev)
	slog.Info("oracle updated", "oracle", m.newOracle)
	return result{ev: ev}
}

// --- ciclo de vida del Run ---------------------------------------------------

func (e *Engine) handleCreateRun(ctx context.Context, m cmdCreateRun) result {
	if err := e.assertManager(m.caller); err != nil {
		return result{err: err}
	}
	if err := e.assertLastRunEnded(); err != nil {
		return result{err: err}
	}

	id, err := domain.CheckedAdd(e.runNonce, 1)
	if err != nil {
		return result{err: fmt.Errorf("engine: run nonce: %w", err)}
	}
	run, err := domain.NewRun(id, e.now(), m.biddingDuration, m.horses)
	if err != nil {
		// El nonce no avanza si el Run no llegó a existir.
		return result{err: err}
	}

	e.runNonce = id
	e.runs[id] = run
	e.persistRun(ctx, run)

	ev := domain.RunCreated{RunID: id, BiddingDuration: m.biddingDuration, Horses: m.horses}
	e.journal(ctx, id, ev)
	slog.Info("run created", "run_id", id, "horses", len(m.horses), "bidding_ends", run.BiddingEndsAt)
	return result{ev: ev}
}

// handleProgressLastRun committea la transición a InProgress y suspende
// hasta que el oracle confirme la petición de valor.
func (e *Engine) handleProgressLastRun(ctx context.Context, m cmdProgressLastRun) {
	if err := e.assertManager(m.caller); err != nil {
		m.reply <- result{err: err}
		return
	}
	run, err := e.assertLastRunBiddingClosed()
	if err != nil {
		m.reply <- result{err: err}
		return
	}
	if err := run.Progress(); err != nil {
		m.reply <- result{err: err}
		return
	}
	e.persistRun(ctx, run)

	pid := uuid.New().String()
	e.pending[pid] = &pendingOp{kind: opProgress, caller: m.caller, runID: run.ID, reply: m.reply}

	go func() {
		reqID, err := e.oracle.RequestValue(ctx)
		e.post(ctx, oracleRequested{id: pid, reqID: reqID, err: err})
	}()
}

func (e *Engine) handleOracleRequested(ctx context.Context, m oracleRequested) {
	p, ok := e.pending[m.id]
	if !ok {
		slog.Error("orphan oracle completion", "id", m.id)
		return
	}
	delete(e.pending, m.id)

	if m.err != nil {
		// El Run ya quedó en InProgress; la transición no se revierte.
		p.reply <- result{err: fmt.Errorf("engine: oracle request: %v: %w", m.err, domain.ErrOracle)}
		return
	}

	ev := domain.LastRunProgressed{RunID: p.runID}
	e.journal(ctx, p.runID, ev)
	slog.Info("run progressed", "run_id", p.runID, "oracle_request", m.reqID)
	p.reply <- result{ev: ev}

	// Vigilar la publicación de la semilla; la entrega re-entra al mailbox
	// como si viniera del oracle. La identidad se captura aquí, en el
	// goroutine del actor: la semilla queda ligada al oracle configurado
	// cuando se abrió la petición, no al que esté vigente al publicarse.
	// Sin timeout: un oracle mudo deja el Run en InProgress
	// indefinidamente.
	go e.watchSeed(ctx, m.reqID, e.oracleAddr)
}

func (e *Engine) watchSeed(ctx context.Context, reqID uint64, from domain.Address) {
	seed, err := e.oracle.AwaitValue(ctx, reqID)
	if err != nil {
		slog.Error("oracle await failed", "err", err, "request_id", reqID)
		return
	}
	e.post(ctx, cmdDeliverSeed{caller: from, seed: seed, reply: nil})
}

func (e *Engine) handleCancelLastRun(ctx context.Context, m cmdCancelLastRun) result {
	if err := e.assertManager(m.caller); err != nil {
		return result{err: err}
	}
	run, err := e.assertLastRunBiddingClosed()
	if err != nil {
		return result{err: err}
	}
	if err := run.Cancel(); err != nil {
		return result{err: err}
	}
	e.persistRun(ctx, run)

	ev := domain.LastRunCanceled{RunID: run.ID}
	e.journal(ctx, run.ID, ev)
	slog.Info("run canceled", "run_id", run.ID)
	return result{ev: ev}
}

func (e *Engine) handleDeliverSeed(ctx context.Context, m cmdDeliverSeed) result {
	if err := e.assertOracle(m.caller); err != nil {
		return result{err: err}
	}
	run, ok := e.lastRun()
	if !ok {
		return result{err: fmt.Errorf("engine: no current run: %w", domain.ErrNotFound)}
	}
	if run.Status != domain.StageInProgress {
		return result{err: fmt.Errorf("engine: run %d is %q: %w", run.ID, run.Status, domain.ErrStage)}
	}

	winner, err := domain.SelectWinner(run, m.seed)
	if err != nil {
		return result{err: err}
	}
	if err := run.Finish(winner); err != nil {
		return result{err: err}
	}
	e.persistRun(ctx, run)

	ev := domain.LastRunFinished{RunID: run.ID, Winner: winner}
	e.journal(ctx, run.ID, ev)
	slog.Info("run finished", "run_id", run.ID, "winner", winner)
	return result{ev: ev}
}

// --- apuestas y cobros -------------------------------------------------------

// handleBid committea el depósito neto y suspende a la espera de dos
// transferencias encadenadas: el fee hacia el manager y el neto hacia la
// custodia. Si cualquiera falla, el depósito ya registrado NO se revierte.
func (e *Engine) handleBid(ctx context.Context, m cmdBid) {
	if err := e.assertNotManager(m.caller); err != nil {
		m.reply <- result{err: err}
		return
	}
	run, err := e.assertLastRunBidding()
	if err != nil {
		m.reply <- result{err: err}
		return
	}

	fee, net, err := domain.ApplyFee(m.amount, e.feeBps)
	if err != nil {
		m.reply <- result{err: err}
		return
	}
	if err := run.Deposit(m.caller, m.horse, net); err != nil {
		m.reply <- result{err: err}
		return
	}
	e.persistRun(ctx, run)

	pid := uuid.New().String()
	e.pending[pid] = &pendingOp{
		kind:   opBidFee,
		caller: m.caller,
		runID:  run.ID,
		horse:  m.horse,
		net:    net,
		reply:  m.reply,
	}
	e.transferAsync(ctx, pid, m.caller, e.manager, fee)
}

func (e *Engine) handleWithdrawCanceled(ctx context.Context, m cmdWithdrawCanceled) {
	run, ok := e.runs[m.runID]
	if !ok {
		m.reply <- result{err: fmt.Errorf("engine: run %d: %w", m.runID, domain.ErrNotFound)}
		return
	}
	if run.Status != domain.StageCanceled {
		m.reply <- result{err: fmt.Errorf("engine: run %d is %q: %w", run.ID, run.Status, domain.ErrStage)}
		return
	}

	// El ledger se pone a cero antes de intentar la transferencia; una
	// segunda retirada encuentra cero y no duplica el pago.
	amount, err := run.WithdrawAll(m.caller)
	if err != nil {
		m.reply <- result{err: err}
		return
	}
	e.persistRun(ctx, run)

	pid := uuid.New().String()
	e.pending[pid] = &pendingOp{
		kind:   opWithdrawCanceled,
		caller: m.caller,
		runID:  m.runID,
		amount: amount,
		reply:  m.reply,
	}
	e.transferAsync(ctx, pid, e.vault, m.caller, amount)
}

func (e *Engine) handleWithdrawFinished(ctx context.Context, m cmdWithdrawFinished) {
	run, ok := e.runs[m.runID]
	if !ok {
		m.reply <- result{err: fmt.Errorf("engine: run %d: %w", m.runID, domain.ErrNotFound)}
		return
	}
	if run.Status != domain.StageFinished {
		m.reply <- result{err: fmt.Errorf("engine: run %d is %q: %w", run.ID, run.Status, domain.ErrStage)}
		return
	}

	// El profit se calcula sobre los balances vivos, antes de retirarlos.
	_, profit, err := domain.Payout(run, m.caller)
	if err != nil {
		m.reply <- result{err: err}
		return
	}
	withdrawn, err := run.WithdrawAll(m.caller)
	if err != nil {
		m.reply <- result{err: err}
		return
	}
	total, err := domain.CheckedAdd(withdrawn, profit)
	if err != nil {
		m.reply <- result{err: fmt.Errorf("engine: payout total: %w", err)}
		return
	}
	e.persistRun(ctx, run)

	pid := uuid.New().String()
	e.pending[pid] = &pendingOp{
		kind:   opWithdrawFinished,
		caller: m.caller,
		runID:  m.runID,
		amount: withdrawn,
		profit: profit,
		reply:  m.reply,
	}
	e.transferAsync(ctx, pid, e.vault, m.caller, total)
}

// handleTransferDone retoma la operación suspendida cuando el colaborador
// de tokens responde.
func (e *Engine) handleTransferDone(ctx context.Context, m transferDone) {
	p, ok := e.pending[m.id]
	if !ok {
		slog.Error("orphan transfer completion", "id", m.id)
		return
	}
	delete(e.pending, m.id)

	if m.err != nil {
		// Mutaciones ya committeadas quedan como están: el caller ve el
		// fallo, el ledger no se compensa.
		slog.Warn("transfer failed", "err", m.err, "run_id", p.runID, "caller", p.caller)
		p.reply <- result{err: fmt.Errorf("engine: %v: %w", m.err, domain.ErrTransfer)}
		return
	}

	switch p.kind {
	case opBidFee:
		// Fee cobrado; ahora el neto entra en custodia.
		pid := uuid.New().String()
		p.kind = opBidVault
		e.pending[pid] = p
		e.transferAsync(ctx, pid, p.caller, e.vault, p.net)

	case opBidVault:
		ev := domain.NewBid{Bidder: p.caller, Horse: p.horse, Amount: p.net}
		e.journal(ctx, p.runID, ev)
		slog.Info("bid accepted", "run_id", p.runID, "bidder", p.caller, "horse", p.horse, "net", p.net)
		p.reply <- result{ev: ev}

	case opWithdrawCanceled:
		ev := domain.NewWithdrawCanceled{Bidder: p.caller, RunID: p.runID, Amount: p.amount}
		e.journal(ctx, p.runID, ev)
		slog.Info("withdraw canceled paid", "run_id", p.runID, "bidder", p.caller, "amount", p.amount)
		p.reply <- result{ev: ev}

	case opWithdrawFinished:
		ev := domain.NewWithdrawFinished{Bidder: p.caller, RunID: p.runID, Amount: p.amount, Profit: p.profit}
		e.journal(ctx, p.runID, ev)
		slog.Info("withdraw finished paid", "run_id", p.runID, "bidder", p.caller, "amount", p.amount, "profit", p.profit)
		p.reply <- result{ev: ev}

	default:
		slog.Error("transfer completion for unexpected op", "kind", int(p.kind))
	}
}

// transferAsync lanza la transferencia y devuelve el control al mailbox;
// la completion vuelve como transferDone.
func (e *Engine) transferAsync(ctx context.Context, pid string, from, to domain.Address, amount uint64) {
	go func() {
		err := e.token.Transfer(ctx, from, to, amount)
		e.post(ctx, transferDone{id: pid, err: err})
	}()
}

// post encola un mensaje interno sin bloquear el cierre del engine.
func (e *Engine) post(ctx context.Context, msg message) {
	select {
	case e.mailbox <- msg:
	case <-ctx.Done():
	}
}
