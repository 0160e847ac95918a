package host

import "testing"

func TestTransitions(t *testing.T) {
	tests := []struct {
		from State
		op   Op
		want State
		ok   bool
	}{
		{StateUnconfigured, OpInitialize, StateReady, true},
		{StateUnconfigured, OpStart, 0, false},
		{StateReady, OpStart, StateRunning, true},
		{StateReady, OpExecuteFrame, 0, false},
		{StateReady, OpSaveState, StateReady, true},
		{StateRunning, OpPause, StatePaused, true},
		{StateRunning, OpRestart, StateReady, true},
		{StateRunning, OpStart, 0, false},
		{StatePaused, OpPlay, StateRunning, true},
		{StatePaused, OpPause, StatePaused, true},
		{StatePaused, OpExecuteFrame, 0, false},
		{StateStopped, OpLoadState, StateStopped, true},
		{StateStopped, OpPlay, 0, false},
		{StateStopped, OpPlayers, 0, false},
		{StateStopped, OpDeallocate, StateDeallocated, true},
		{StateDeallocated, OpDeallocate, 0, false},
		{StateDeallocated, OpQuery, 0, false},
	}
	for _, tt := range tests {
		got, ok := Next(tt.from, tt.op)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("Next(%s, %s) = %s, %v; want %s, %v", tt.from, tt.op, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDeallocateAllowedFromEveryLiveState(t *testing.T) {
	for s := StateUnconfigured; s < StateDeallocated; s++ {
		if !Allowed(s, OpDeallocate) {
			t.Errorf("deallocate not allowed from %s", s)
		}
	}
}

func TestStringers(t *testing.T) {
	if StatePaused.String() != "paused" || State(99).String() != "invalid" {
		t.Error("State.String")
	}
	if OpExecuteFrame.String() != "executeFrame" || Op(99).String() != "unknown" {
		t.Error("Op.String")
	}
}
