package domain

import (
	"errors"
	"testing"
)

func TestIsRetriable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unknown order", &UnknownOrderError{OrderID: "1"}, false},
		{"insufficient balance", &InsufficientBalanceError{}, false},
		{"rate limit", &RateLimitError{}, true},
		{"price guard fail", &PriceGuardFailError{}, false},
		{"transport", &TransportError{Err: errors.New("boom")}, true},
		{"rejected", &RejectedError{}, false},
		{"invalid state", &InvalidStateError{}, false},
		{"plain error", errors.New("plain"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetriable(tt.err); got != tt.want {
				t.Errorf("IsRetriable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTransportErrorUnwrap(t *testing.T) {
	inner := errors.New("dial refused")
	err := &TransportError{Op: "createOrder", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("expected TransportError to unwrap to inner error")
	}
}
