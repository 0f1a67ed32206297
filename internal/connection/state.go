package connection

import "fmt"

// State is a snapshot of where the Engine is in its connection lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateResolving
	StateConnecting
	StateWSHandshake
	StateAuthenticating
	StateReady
	StateError
)

var stateNames = map[State]string{
	StateDisconnected:    "DISCONNECTED",
	StateResolving:       "RESOLVING",
	StateConnecting:      "CONNECTING",
	StateWSHandshake:     "WS_HANDSHAKE",
	StateAuthenticating:  "AUTHENTICATING",
	StateReady:           "READY",
	StateError:           "ERROR",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}
