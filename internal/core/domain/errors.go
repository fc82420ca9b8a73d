package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures into the categories shown to the user.
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindConfiguration    ErrorKind = "configuration"
	KindApprovalFailed   ErrorKind = "approval_failed"
	KindTransferRejected ErrorKind = "transfer_rejected"
	KindReceiptFailed    ErrorKind = "receipt_failed"
	KindNetworkMismatch  ErrorKind = "network_mismatch"
	KindTimedOut         ErrorKind = "timed_out"
	KindRPC              ErrorKind = "rpc"
)

// Sentinels for errors.Is matching on kind only.
var (
	ErrValidation       = &Error{Kind: KindValidation}
	ErrConfiguration    = &Error{Kind: KindConfiguration}
	ErrApprovalFailed   = &Error{Kind: KindApprovalFailed}
	ErrTransferRejected = &Error{Kind: KindTransferRejected}
	ErrReceiptFailed    = &Error{Kind: KindReceiptFailed}
	ErrNetworkMismatch  = &Error{Kind: KindNetworkMismatch}
	ErrTimedOut         = &Error{Kind: KindTimedOut}
	ErrRPC              = &Error{Kind: KindRPC}
)

// Error is a classified failure.
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Err  error
}

// NewError builds a classified error. msg may be empty when err carries the text.
func NewError(kind ErrorKind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	msg := e.Msg
	switch {
	case msg == "" && e.Err != nil:
		msg = e.Err.Error()
	case msg != "" && e.Err != nil:
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	case msg == "":
		msg = string(e.Kind)
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first classified error in the chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
