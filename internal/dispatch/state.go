package dispatch

type State int

const (
	StateIdle State = iota
	StateAwaitingEnvironment
	StateDispatched
)

var stateNames = [...]string{"idle", "awaiting_environment", "dispatched"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

const (
	StrategyEmbedded = "embedded"
	StrategyNone     = "none"
)
