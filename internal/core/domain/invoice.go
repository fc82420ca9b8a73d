package domain

import "math/big"

// Invoice is a payable request created on a specific chain.
type Invoice struct {
	ID        uint64   `json:"id"`
	ChainID   ChainID  `json:"chain_id"`
	Creator   string   `json:"creator"`
	Name      string   `json:"name"`
	Details   string   `json:"details"`
	Amount    *big.Int `json:"amount"`
	Paid      bool     `json:"paid"`
	Payer     string   `json:"payer,omitempty"`
	CreatedAt uint64   `json:"created_at"`
	PaidAt    uint64   `json:"paid_at,omitempty"`
}

// InvoiceRef identifies an invoice by origin chain and on-chain id.
type InvoiceRef struct {
	ChainID ChainID
	ID      uint64
}
