package domain

import "time"

// Event es el resultado terminal de un comando aceptado. Cada comando
// produce exactamente un evento de éxito o un error fatal.
type Event interface {
	// Kind es el nombre estable del evento, usado en el journal y en las
	// respuestas del gateway.
	Kind() string
}

type FeeBpsUpdated struct {
	FeeBps uint64 `json:"fee_bps"`
}

type ManagerUpdated struct {
	Manager Address `json:"manager"`
}

type OracleUpdated struct {
	Oracle Address `json:"oracle"`
}

type RunCreated struct {
	RunID           uint64        `json:"run_id"`
	BiddingDuration time.Duration `json:"bidding_duration"`
	Horses          []Horse       `json:"horses"`
}

type LastRunProgressed struct {
	RunID uint64 `json:"run_id"`
}

type LastRunCanceled struct {
	RunID uint64 `json:"run_id"`
}

type LastRunFinished struct {
	RunID  uint64 `json:"run_id"`
	Winner string `json:"winner"`
}

// NewBid lleva el importe neto ya descontado el fee.
type NewBid struct {
	Bidder Address `json:"bidder"`
	Horse  string  `json:"horse"`
	Amount uint64  `json:"amount"`
}

type NewWithdrawCanceled struct {
	Bidder Address `json:"bidder"`
	RunID  uint64  `json:"run_id"`
	Amount uint64  `json:"amount"`
}

type NewWithdrawFinished struct {
	Bidder Address `json:"bidder"`
	RunID  uint64  `json:"run_id"`
	Amount uint64  `json:"amount"`
	Profit uint64  `json:"profit"`
}

func (FeeBpsUpdated) Kind() string       { return "fee_bps_updated" }
func (ManagerUpdated) Kind() string      { return "manager_updated" }
func (OracleUpdated) Kind() string       { return "oracle_updated" }
func (RunCreated) Kind() string          { return "run_created" }
func (LastRunProgressed) Kind() string   { return "last_run_progressed" }
func (LastRunCanceled) Kind() string     { return "last_run_canceled" }
func (LastRunFinished) Kind() string     { return "last_run_finished" }
func (NewBid) Kind() string              { return "new_bid" }
func (NewWithdrawCanceled) Kind() string { return "new_withdraw_canceled" }
func (NewWithdrawFinished) Kind() string { return "new_withdraw_finished" }
