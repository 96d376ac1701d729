package engine

import (
	"context"
	"time"

	"github.com/alejandrodnm/hipodromo/internal/domain"
)

// message es cualquier cosa que entre al mailbox: comandos de callers,
// completions de colaboradores o queries.
type message interface{}

// result es la respuesta terminal de un comando: exactamente un evento de
// éxito o un error fatal.
type result struct {
	ev  domain.Event
	err error
}

type cmdUpdateFeeBps struct {
	caller domain.Address
	bps    uint64
	reply  chan result
}

type cmdUpdateManager struct {
	caller     domain.Address
	newManager domain.Address
	reply      chan result
}

type cmdUpdateOracle struct {
	caller    domain.Address
	newOracle domain.Address
	reply     chan result
}

type cmdCreateRun struct {
	caller          domain.Address
	biddingDuration time.Duration
	horses          []domain.Horse
	reply           chan result
}

type cmdProgressLastRun struct {
	caller domain.Address
	reply  chan result
}

type cmdCancelLastRun struct {
	caller domain.Address
	reply  chan result
}

type cmdBid struct {
	caller domain.Address
	horse  string
	amount uint64 // bruto; el fee se descuenta dentro
	reply  chan result
}

type cmdWithdrawCanceled struct {
	caller domain.Address
	runID  uint64
	reply  chan result
}

type cmdWithdrawFinished struct {
	caller domain.Address
	runID  uint64
	reply  chan result
}

// cmdDeliverSeed es el punto de entrada de reanudación: el oracle entrega
// la semilla que resuelve el Run en curso. reply puede ser nil cuando la
// entrega llega por el watcher interno en vez de por el gateway.
type cmdDeliverSeed struct {
	caller domain.Address
	seed   uint64
	reply  chan result
}

// transferDone es la completion de una transferencia de tokens en vuelo,
// correlacionada con su pendingOp por id.
type transferDone struct {
	id  string
	err error
}

// oracleRequested es la completion del RequestValue lanzado por
// ProgressLastRun.
type oracleRequested struct {
	id    string
	reqID uint64
	err   error
}

// query se ejecuta dentro del goroutine del actor, linealizada con los
// comandos; fn debe devolver copias, nunca referencias al estado vivo.
type query struct {
	fn    func(*Engine) any
	reply chan any
}

// send encola un comando y espera su respuesta terminal.
func (e *Engine) send(ctx context.Context, msg message, reply chan result) (domain.Event, error) {
	select {
	case e.mailbox <- msg:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-reply:
		return res.ev, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// UpdateFeeBps cambia el fee. Solo el manager, y solo entre Runs.
func (e *Engine) UpdateFeeBps(ctx context.Context, caller domain.Address, bps uint64) (domain.Event, error) {
	reply := make(chan result, 1)
	return e.send(ctx, cmdUpdateFeeBps{caller: caller, bps: bps, reply: reply}, reply)
}

// UpdateManager cambia el manager. Solo el manager, y solo entre Runs.
func (e *Engine) UpdateManager(ctx context.Context, caller, newManager domain.Address) (domain.Event, error) {
	reply := make(chan result, 1)
	return e.send(ctx, cmdUpdateManager{caller: caller, newManager: newManager, reply: reply}, reply)
}

// UpdateOracle cambia la identidad del oracle. Solo el manager, entre Runs.
func (e *Engine) UpdateOracle(ctx context.Context, caller, newOracle domain.Address) (domain.Event, error) {
	reply := make(chan result, 1)
	return e.send(ctx, cmdUpdateOracle{caller: caller, newOracle: newOracle, reply: reply}, reply)
}

// CreateRun abre una carrera nueva con el set de caballos dado.
func (e *Engine) CreateRun(ctx context.Context, caller domain.Address, biddingDuration time.Duration, horses []domain.Horse) (domain.Event, error) {
	reply := make(chan result, 1)
	return e.send(ctx, cmdCreateRun{caller: caller, biddingDuration: biddingDuration, horses: horses, reply: reply}, reply)
}

// ProgressLastRun cierra las apuestas y pide la semilla al oracle. La
// respuesta llega cuando el oracle confirma la petición.
func (e *Engine) ProgressLastRun(ctx context.Context, caller domain.Address) (domain.Event, error) {
	reply := make(chan result, 1)
	return e.send(ctx, cmdProgressLastRun{caller: caller, reply: reply}, reply)
}

// CancelLastRun cancela la carrera actual. Solo tras el cierre de apuestas.
func (e *Engine) CancelLastRun(ctx context.Context, caller domain.Address) (domain.Event, error) {
	reply := make(chan result, 1)
	return e.send(ctx, cmdCancelLastRun{caller: caller, reply: reply}, reply)
}

// Bid apuesta amount bruto sobre un caballo de la carrera actual. El fee
// se descuenta y se transfiere al manager; el neto entra en custodia.
func (e *Engine) Bid(ctx context.Context, caller domain.Address, horse string, amount uint64) (domain.Event, error) {
	reply := make(chan result, 1)
	return e.send(ctx, cmdBid{caller: caller, horse: horse, amount: amount, reply: reply}, reply)
}

// WithdrawCanceled devuelve al caller su depósito íntegro de un Run
// cancelado. Los fees cobrados al apostar no se devuelven.
func (e *Engine) WithdrawCanceled(ctx context.Context, caller domain.Address, runID uint64) (domain.Event, error) {
	reply := make(chan result, 1)
	return e.send(ctx, cmdWithdrawCanceled{caller: caller, runID: runID, reply: reply}, reply)
}

// WithdrawFinished paga al caller su depósito más el profit parimutuel de
// un Run terminado, si apostó al ganador.
func (e *Engine) WithdrawFinished(ctx context.Context, caller domain.Address, runID uint64) (domain.Event, error) {
	reply := make(chan result, 1)
	return e.send(ctx, cmdWithdrawFinished{caller: caller, runID: runID, reply: reply}, reply)
}

// DeliverSeed entrega la semilla del oracle y resuelve la carrera en
// curso. Solo la identidad configurada como oracle puede llamarlo.
func (e *Engine) DeliverSeed(ctx context.Context, caller domain.Address, seed uint64) (domain.Event, error) {
	reply := make(chan result, 1)
	return e.send(ctx, cmdDeliverSeed{caller: caller, seed: seed, reply: reply}, reply)
}
