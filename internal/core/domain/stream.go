package domain

import "math/big"

// Stream is a time-vested, claimable transfer as read from the stream contract.
type Stream struct {
	ID            uint64
	Sender        string
	Recipient     string
	Token         string
	TotalAmount   *big.Int
	ClaimedAmount *big.Int
	// ClaimableAmount is reported by the contract, never derived locally.
	ClaimableAmount *big.Int
	StartTime       uint64
	EndTime         uint64
	Active          bool
}

type StreamStatus string

const (
	StreamStatusActive    StreamStatus = "active"
	StreamStatusCompleted StreamStatus = "completed"
	StreamStatusCancelled StreamStatus = "cancelled"
)

// StreamRequest is one entry of a createBulkStreams call.
type StreamRequest struct {
	Recipient string
	Amount    *big.Int
	// Duration in seconds.
	Duration uint64
}
