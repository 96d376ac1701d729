// Package gateway expone el motor de carreras por HTTP. La identidad del
// que llama viaja en la cabecera X-Caller; el gateway no autentica, solo
// transporta — la autorización vive en el motor.
package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/hipodromo/internal/application/engine"
	"github.com/alejandrodnm/hipodromo/internal/domain"
)

const callerHeader = "X-Caller"

// Server implementa el gateway HTTP sobre un Engine.
type Server struct {
	log *slog.Logger
	eng *engine.Engine
}

// NewServer crea un Server sobre el motor dado.
func NewServer(log *slog.Logger, eng *engine.Engine) *Server {
	return &Server{log: log, eng: eng}
}

// Router monta las rutas del gateway.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /admin/fee", s.updateFee)
	mux.HandleFunc("POST /admin/manager", s.updateManager)
	mux.HandleFunc("POST /admin/oracle", s.updateOracle)

	mux.HandleFunc("POST /runs", s.createRun)
	mux.HandleFunc("POST /runs/progress", s.progressRun)
	mux.HandleFunc("POST /runs/cancel", s.cancelRun)
	mux.HandleFunc("POST /bids", s.placeBid)
	mux.HandleFunc("POST /withdrawals/canceled", s.withdrawCanceled)
	mux.HandleFunc("POST /withdrawals/finished", s.withdrawFinished)
	mux.HandleFunc("POST /oracle/seed", s.deliverSeed)

	mux.HandleFunc("GET /runs", s.listRuns)
	mux.HandleFunc("GET /runs/last", s.lastRun)
	mux.HandleFunc("GET /runs/{id}", s.getRun)
	mux.HandleFunc("GET /runs/{id}/horses", s.getHorses)
	mux.HandleFunc("GET /info", s.info)

	return mux
}

type feeRequest struct {
	FeeBps uint64 `json:"fee_bps"`
}

type addressRequest struct {
	Address string `json:"address"`
}

type createRunRequest struct {
	BiddingSeconds uint64         `json:"bidding_seconds"`
	Horses         []domain.Horse `json:"horses"`
}

type bidRequest struct {
	Horse  string `json:"horse"`
	Amount uint64 `json:"amount"`
}

type withdrawRequest struct {
	RunID uint64 `json:"run_id"`
}

type seedRequest struct {
	Seed uint64 `json:"seed"`
}

type eventResponse struct {
	Kind  string       `json:"kind"`
	Event domain.Event `json:"event"`
}

type infoResponse struct {
	Owner    domain.Address `json:"owner"`
	Manager  domain.Address `json:"manager"`
	Token    domain.Address `json:"token"`
	Oracle   domain.Address `json:"oracle"`
	FeeBps   uint64         `json:"fee_bps"`
	RunNonce uint64         `json:"run_nonce"`
}

func (s *Server) updateFee(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req feeRequest
	if !s.decode(w, r, &req) {
		return
	}

	ev, err := s.eng.UpdateFeeBps(r.Context(), caller, req.FeeBps)
	s.reply(w, r, ev, err)
}

func (s *Server) updateManager(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req addressRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Address == "" {
		http.Error(w, "address required", http.StatusBadRequest)
		return
	}

	ev, err := s.eng.UpdateManager(r.Context(), caller, domain.Address(req.Address))
	s.reply(w, r, ev, err)
}

func (s *Server) updateOracle(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req addressRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Address == "" {
		http.Error(w, "address required", http.StatusBadRequest)
		return
	}

	ev, err := s.eng.UpdateOracle(r.Context(), caller, domain.Address(req.Address))
	s.reply(w, r, ev, err)
}

func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req createRunRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.BiddingSeconds == 0 || len(req.Horses) == 0 {
		http.Error(w, "bidding_seconds and horses required", http.StatusBadRequest)
		return
	}

	duration := time.Duration(req.BiddingSeconds) * time.Second
	ev, err := s.eng.CreateRun(r.Context(), caller, duration, req.Horses)
	s.reply(w, r, ev, err)
}

func (s *Server) progressRun(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	ev, err := s.eng.ProgressLastRun(r.Context(), caller)
	s.reply(w, r, ev, err)
}

func (s *Server) cancelRun(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	ev, err := s.eng.CancelLastRun(r.Context(), caller)
	s.reply(w, r, ev, err)
}

func (s *Server) placeBid(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req bidRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Horse == "" || req.Amount == 0 {
		http.Error(w, "horse and amount required", http.StatusBadRequest)
		return
	}

	ev, err := s.eng.Bid(r.Context(), caller, req.Horse, req.Amount)
	s.reply(w, r, ev, err)
}

func (s *Server) withdrawCanceled(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req withdrawRequest
	if !s.decode(w, r, &req) {
		return
	}
	ev, err := s.eng.WithdrawCanceled(r.Context(), caller, req.RunID)
	s.reply(w, r, ev, err)
}

func (s *Server) withdrawFinished(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req withdrawRequest
	if !s.decode(w, r, &req) {
		return
	}
	ev, err := s.eng.WithdrawFinished(r.Context(), caller, req.RunID)
	s.reply(w, r, ev, err)
}

func (s *Server) deliverSeed(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req seedRequest
	if !s.decode(w, r, &req) {
		return
	}
	ev, err := s.eng.DeliverSeed(r.Context(), caller, req.Seed)
	s.reply(w, r, ev, err)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.eng.Runs(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) lastRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.eng.LastRun(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}

	run, err := s.eng.RunByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) getHorses(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}

	standings, err := s.eng.Horses(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, standings)
}

func (s *Server) info(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner, err := s.eng.Owner(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	manager, _ := s.eng.Manager(ctx)
	token, _ := s.eng.TokenAddress(ctx)
	oracle, _ := s.eng.OracleAddress(ctx)
	fee, _ := s.eng.FeeBps(ctx)
	nonce, _ := s.eng.RunNonce(ctx)

	writeJSON(w, http.StatusOK, infoResponse{
		Owner:    owner,
		Manager:  manager,
		Token:    token,
		Oracle:   oracle,
		FeeBps:   fee,
		RunNonce: nonce,
	})
}

// caller extrae la identidad de la cabecera X-Caller.
func (s *Server) caller(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	caller := strings.TrimSpace(r.Header.Get(callerHeader))
	if caller == "" {
		http.Error(w, callerHeader+" header required", http.StatusBadRequest)
		return "", false
	}
	return domain.Address(caller), true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) reply(w http.ResponseWriter, r *http.Request, ev domain.Event, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eventResponse{Kind: ev.Kind(), Event: ev})
}

// writeError traduce los errores del dominio a códigos HTTP.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrStage),
		errors.Is(err, domain.ErrNotWinner),
		errors.Is(err, domain.ErrZeroStake):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrOverflow):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrTransfer), errors.Is(err, domain.ErrOracle):
		status = http.StatusBadGateway
	}

	s.log.Warn("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"error", err)

	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
