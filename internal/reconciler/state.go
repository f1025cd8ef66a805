package reconciler

// State 是对账循环的生命周期状态。
//
//	Init -> Syncing -> Polling <-> Reconciling -> ShuttingDown -> Stopped
type State int

const (
	StateInit State = iota
	StateSyncing
	StatePolling
	StateReconciling
	StateShuttingDown
	StateStopped
)

var stateNames = [...]string{"init", "syncing", "polling", "reconciling", "shutting_down", "stopped"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool { return s == StateStopped }
