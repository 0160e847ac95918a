package host

// State is the lifecycle state of an instance.
type State uint32

const (
	StateUnconfigured State = iota
	StateReady
	StateRunning
	StatePaused
	StateStopped
	StateDeallocated
)

var stateNames = [...]string{
	StateUnconfigured: "unconfigured",
	StateReady:        "ready",
	StateRunning:      "running",
	StatePaused:       "paused",
	StateStopped:      "stopped",
	StateDeallocated:  "deallocated",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "invalid"
}

// Op is an operation subject to lifecycle rules.
type Op uint8

const (
	OpInitialize Op = iota
	OpStart
	OpStop
	OpRestart
	OpPlay
	OpPause
	OpExecuteFrame
	OpSave
	OpSaveState
	OpLoadState
	OpPlayers
	OpCheats
	OpQuery
	OpDeallocate
)

var opNames = [...]string{
	OpInitialize:   "initialize",
	OpStart:        "start",
	OpStop:         "stop",
	OpRestart:      "restart",
	OpPlay:         "play",
	OpPause:        "pause",
	OpExecuteFrame: "executeFrame",
	OpSave:         "save",
	OpSaveState:    "saveState",
	OpLoadState:    "loadState",
	OpPlayers:      "players",
	OpCheats:       "cheats",
	OpQuery:        "query",
	OpDeallocate:   "deallocate",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "unknown"
}

// transitions maps a state and an operation to the state after it. A missing
// entry means the operation is a contract violation in that state.
var transitions = map[State]map[Op]State{
	StateUnconfigured: {
		OpInitialize: StateReady,
		OpDeallocate: StateDeallocated,
	},
	StateReady: {
		OpStart:      StateRunning,
		OpPlay:       StateRunning, // only after Restart, guarded by the instance
		OpSave:       StateReady,
		OpSaveState:  StateReady,
		OpLoadState:  StateReady,
		OpPlayers:    StateReady,
		OpCheats:     StateReady,
		OpQuery:      StateReady,
		OpDeallocate: StateDeallocated,
	},
	StateRunning: {
		OpStop:         StateStopped,
		OpRestart:      StateReady,
		OpPlay:         StateRunning,
		OpPause:        StatePaused,
		OpExecuteFrame: StateRunning,
		OpSave:         StateRunning,
		OpSaveState:    StateRunning,
		OpLoadState:    StateRunning,
		OpPlayers:      StateRunning,
		OpCheats:       StateRunning,
		OpQuery:        StateRunning,
		OpDeallocate:   StateDeallocated,
	},
	StatePaused: {
		OpStop:       StateStopped,
		OpRestart:    StateReady,
		OpPlay:       StateRunning,
		OpPause:      StatePaused,
		OpSave:       StatePaused,
		OpSaveState:  StatePaused,
		OpLoadState:  StatePaused,
		OpPlayers:    StatePaused,
		OpCheats:     StatePaused,
		OpQuery:      StatePaused,
		OpDeallocate: StateDeallocated,
	},
	StateStopped: {
		OpSave:       StateStopped,
		OpSaveState:  StateStopped,
		OpLoadState:  StateStopped,
		OpQuery:      StateStopped,
		OpDeallocate: StateDeallocated,
	},
}

// Next returns the state reached by applying op in state s, and whether the
// operation is allowed at all.
func Next(s State, op Op) (State, bool) {
	next, ok := transitions[s][op]
	return next, ok
}

// Allowed reports whether op is valid in state s.
func Allowed(s State, op Op) bool {
	_, ok := Next(s, op)
	return ok
}
