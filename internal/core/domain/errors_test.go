package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := NewError(KindApprovalFailed, "approve", "", errors.New("user rejected the request"))
	wrapped := fmt.Errorf("pay: %w", err)

	if !errors.Is(wrapped, ErrApprovalFailed) {
		t.Fatalf("expected wrapped error to match ErrApprovalFailed")
	}
	if errors.Is(wrapped, ErrTransferRejected) {
		t.Errorf("approval failure must not match transfer rejection")
	}
	if got := KindOf(wrapped); got != KindApprovalFailed {
		t.Errorf("KindOf = %q, want %q", got, KindApprovalFailed)
	}
	if KindOf(errors.New("plain")) != "" {
		t.Errorf("unclassified errors have no kind")
	}
}

func TestError_Message(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{NewError(KindValidation, "", "no recipients selected", nil), "no recipients selected"},
		{NewError(KindConfiguration, "pay", "contract unavailable on this network", nil), "pay: contract unavailable on this network"},
		{NewError(KindRPC, "allowance", "", errors.New("connection refused")), "allowance: connection refused"},
		{NewError(KindReceiptFailed, "transfer", "transaction reverted", errors.New("0xabc")), "transfer: transaction reverted: 0xabc"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestRecipient_Validate(t *testing.T) {
	tests := []struct {
		name    string
		r       Recipient
		wantErr bool
	}{
		{"valid", Recipient{"0x00000000000000000000000000000000000000a1", "10.5"}, false},
		{"mixed case", Recipient{"0xAbCdEf0000000000000000000000000000000001", "1"}, false},
		{"missing prefix", Recipient{"00000000000000000000000000000000000000a1aa", "1"}, true},
		{"short", Recipient{"0x1234", "1"}, true},
		{"not hex", Recipient{"0xzz000000000000000000000000000000000000a1", "1"}, true},
		{"zero amount", Recipient{"0x00000000000000000000000000000000000000a1", "0"}, true},
		{"negative amount", Recipient{"0x00000000000000000000000000000000000000a1", "-3"}, true},
		{"garbage amount", Recipient{"0x00000000000000000000000000000000000000a1", "ten"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("expected validation kind, got %v", err)
			}
		})
	}
}

func TestPhase_Flags(t *testing.T) {
	for _, p := range []Phase{PhaseApproving, PhaseSending, PhaseConfirming} {
		if !p.InFlight() {
			t.Errorf("%s should be in flight", p)
		}
	}
	for _, p := range []Phase{PhaseIdle, PhaseCompleted, PhaseFailed} {
		if p.InFlight() {
			t.Errorf("%s should not be in flight", p)
		}
	}
	if !PhaseCompleted.Terminal() || !PhaseFailed.Terminal() || PhaseIdle.Terminal() {
		t.Errorf("terminal flags wrong")
	}
}
