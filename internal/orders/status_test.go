package orders

import "testing"

func TestTransitionTable(t *testing.T) {
	allowed := map[[2]string]bool{
		{StatusNew, StatusConfirmed}:       true,
		{StatusNew, StatusCancelled}:       true,
		{StatusConfirmed, StatusPreparing}: true,
		{StatusConfirmed, StatusCancelled}: true,
		{StatusPreparing, StatusReady}:     true,
		{StatusPreparing, StatusCancelled}: true,
		{StatusReady, StatusFulfilled}:     true,
		{StatusReady, StatusCancelled}:     true,
	}
	all := []string{StatusNew, StatusConfirmed, StatusPreparing, StatusReady, StatusFulfilled, StatusCancelled}
	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]string{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminalStatesHaveNoSuccessors(t *testing.T) {
	for _, s := range []string{StatusFulfilled, StatusCancelled} {
		if next := NextStatuses(s); len(next) != 0 {
			t.Errorf("%s should be terminal, got successors %v", s, next)
		}
	}
}

func TestValidStatus(t *testing.T) {
	if !ValidStatus(StatusNew) {
		t.Fatal("NEW should be a valid status")
	}
	if ValidStatus("SHIPPED") {
		t.Fatal("SHIPPED is not in the transition table")
	}
	// PAYMENT_TAMPERING is a flag set by the payment path, not a state
	// callers may transition into.
	if ValidStatus(StatusPaymentTampering) {
		t.Fatal("PAYMENT_TAMPERING must not be caller-settable")
	}
}
