package domain

// ConnectionState is owned by the supervisor; nothing else transitions it.
type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateDiscovering
	StateConnecting
	StateStreaming
	StateDisconnected
	StateRetrying
	StateStopped
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StateDiscovering:  "discovering",
	StateConnecting:   "connecting",
	StateStreaming:    "streaming",
	StateDisconnected: "disconnected",
	StateRetrying:     "retrying",
	StateStopped:      "stopped",
}

func (s ConnectionState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transitions can follow.
func (s ConnectionState) Terminal() bool { return s == StateStopped }
