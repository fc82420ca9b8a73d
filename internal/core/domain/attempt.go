package domain

import (
	"math/big"
	"time"
)

// Phase is the step a payment attempt has reached.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseApproving  Phase = "approving"
	PhaseSending    Phase = "sending"
	PhaseConfirming Phase = "confirming"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
)

// InFlight reports whether a wallet interaction is outstanding.
func (p Phase) InFlight() bool {
	return p == PhaseApproving || p == PhaseSending || p == PhaseConfirming
}

// Terminal reports whether the phase needs a reset before a new run.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// Attempt is the ledger record of one pay action.
type Attempt struct {
	ID             string
	ChainID        ChainID
	Account        string
	Token          Token
	Recipients     []string
	Amounts        []*big.Int
	Total          *big.Int
	Value          *big.Int
	ApprovalTxHash string
	TransferTxHash string
	Phase          Phase
	ErrorKind      ErrorKind
	Error          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Clone returns a deep copy safe to hand to other goroutines.
func (a *Attempt) Clone() *Attempt {
	if a == nil {
		return nil
	}
	c := *a
	c.Recipients = append([]string(nil), a.Recipients...)
	c.Amounts = make([]*big.Int, len(a.Amounts))
	for i, amt := range a.Amounts {
		c.Amounts[i] = cloneInt(amt)
	}
	c.Total = cloneInt(a.Total)
	c.Value = cloneInt(a.Value)
	return &c
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

type NotificationLevel string

const (
	NotificationSuccess NotificationLevel = "success"
	NotificationError   NotificationLevel = "error"
)

// Notification is the single user-visible outcome of a payment run.
type Notification struct {
	AttemptID string            `json:"attempt_id,omitempty"`
	ChainID   ChainID           `json:"chain_id"`
	Level     NotificationLevel `json:"level"`
	Kind      ErrorKind         `json:"kind,omitempty"`
	Message   string            `json:"message"`
	TxHash    string            `json:"tx_hash,omitempty"`
	At        time.Time         `json:"at"`
}
