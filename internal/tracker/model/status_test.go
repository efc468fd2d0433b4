package model

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to PropStatus
		want     bool
	}{
		{StatusPending, StatusLiveHit, true},
		{StatusPending, StatusWon, true},
		{StatusLiveHit, StatusLiveMiss, true},
		{StatusLiveMiss, StatusLiveHit, true},
		{StatusLiveHit, StatusWon, true},
		{StatusLiveMiss, StatusPush, true},
		{StatusUnavailable, StatusLost, true},

		// Nada volta pra pending
		{StatusLiveHit, StatusPending, false},
		{StatusWon, StatusPending, false},

		// Terminais não saem
		{StatusWon, StatusLiveHit, false},
		{StatusLost, StatusWon, false},
		{StatusPush, StatusLiveMiss, false},

		// Permanecer onde está é sempre válido
		{StatusWon, StatusWon, true},
		{StatusPending, StatusPending, true},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestAdvance_KeepsCurrentOnInvalid(t *testing.T) {
	if got := Advance(StatusWon, StatusLiveMiss); got != StatusWon {
		t.Errorf("Advance from terminal should keep terminal, got %s", got)
	}
	if got := Advance(StatusLiveMiss, StatusLost); got != StatusLost {
		t.Errorf("valid advance should apply, got %s", got)
	}
}

func TestParsePropStatus(t *testing.T) {
	if _, ok := ParsePropStatus("won"); !ok {
		t.Error("known status should parse")
	}
	if _, ok := ParsePropStatus("totally_bogus"); ok {
		t.Error("unknown status must be rejected at the decode boundary")
	}
}
