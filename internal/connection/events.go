package connection

import "github.com/bpeel/verda-sxtelo/core/internal/protocol"

// EventType identifies the variant of an Event, mirroring the C enum
// vsx_connection_event_type.
type EventType int

const (
	EventError EventType = iota
	EventMessage
	EventHeader
	EventConversationID
	EventPlayerNameChanged
	EventPlayerFlagsChanged
	EventPlayerShouted
	EventTileChanged
	EventNTilesChanged
	EventLanguageChanged
	EventRunningStateChanged
	EventEnd
)

var eventTypeNames = map[EventType]string{
	EventError:               "ERROR",
	EventMessage:             "MESSAGE",
	EventHeader:              "HEADER",
	EventConversationID:      "CONVERSATION_ID",
	EventPlayerNameChanged:   "PLAYER_NAME_CHANGED",
	EventPlayerFlagsChanged:  "PLAYER_FLAGS_CHANGED",
	EventPlayerShouted:       "PLAYER_SHOUTED",
	EventTileChanged:         "TILE_CHANGED",
	EventNTilesChanged:       "N_TILES_CHANGED",
	EventLanguageChanged:     "LANGUAGE_CHANGED",
	EventRunningStateChanged: "RUNNING_STATE_CHANGED",
	EventEnd:                 "END",
}

func (t EventType) String() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Event is a single notification emitted by the Engine. Only the field(s)
// relevant to Type are populated; this flattened shape (rather than a
// literal union) is the idiomatic Go rendering of a discriminated event
// that a callback-based API would otherwise split into several typed
// per-kind callbacks (OnHeader, OnPlayerShouted, OnDisconnect, ...).
type Event struct {
	Type EventType

	// Synced is false while this event is replaying server-held history
	// from before the most recent SYNC marker, true once history replay
	// has caught up.
	Synced bool

	Err *ConnectionError

	Header protocol.Header

	ConversationID uint64

	Message protocol.PlayerMessage

	PlayerName protocol.PlayerName

	PlayerFlags protocol.PlayerFlags

	ShoutingPlayer uint8

	Tile protocol.Tile

	NTiles uint8

	Language string

	Running bool
}
