// Package gamestate is the host-facing facade: it subscribes to
// connection events on the worker goroutine, defers them onto an
// idle queue, applies them to an in-memory replica of room state, and
// emits typed Modified notifications to registered listeners.
package gamestate

import "fmt"

// PlayerFlag is a bitset describing one player's connection and turn
// state (§3 Data Model).
type PlayerFlag uint8

const (
	PlayerConnected PlayerFlag = 1 << iota
	PlayerTyping
	PlayerNextTurn
)

// Player is one of the six fixed seats in a conversation. Identity is its
// slot index, not any field of the struct.
type Player struct {
	Num   uint8
	Name  string
	Flags PlayerFlag
}

func (p Player) has(f PlayerFlag) bool { return p.Flags&f != 0 }

// NVisiblePlayers is the fixed size of the player pool (§3).
const NVisiblePlayers = 6

// Tile is one letter tile on the board. Identity is Num; tiles are never
// removed from the model within a single game, only reset along with
// everything else.
type Tile struct {
	Num             uint8
	X, Y            int16
	Letter          rune
	LastPlayerMoved uint8
}

// Dialog is the modal overlay currently shown to the player, mirroring
// the C enum vsx_dialog.
type Dialog int

const (
	DialogNone Dialog = iota
	DialogName
	DialogMenu
	DialogInviteLink
	DialogLanguage
	DialogGuide
	DialogCopyright
)

var dialogNames = map[Dialog]string{
	DialogNone:       "none",
	DialogName:       "name",
	DialogMenu:       "menu",
	DialogInviteLink: "invite_link",
	DialogLanguage:   "language",
	DialogGuide:      "guide",
	DialogCopyright:  "copyright",
}

func (d Dialog) String() string {
	if name, ok := dialogNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Dialog(%d)", int(d))
}

// dialogByName is the inverse of Dialog.String, used by the instance
// state loader.
func dialogByName(name string) (Dialog, bool) {
	for d, n := range dialogNames {
		if n == name {
			return d, true
		}
	}
	return 0, false
}

// StartType distinguishes a freshly started game from one joined by a
// pinned conversation id (an invite link). Resuming by reconnect with a
// person id counts as a new game.
type StartType int

const (
	StartTypeNewGame StartType = iota
	StartTypeJoinGame
)

// ModifiedKind identifies which part of the model changed, the Go
// rendering of enum vsx_game_state_modified_type.
type ModifiedKind int

const (
	ModifiedPlayerFlags ModifiedKind = iota
	ModifiedPlayerName
	ModifiedShoutingPlayer
	ModifiedConversationID
	ModifiedDialog
	ModifiedNTiles
	ModifiedLanguage
	ModifiedRemainingTiles
	ModifiedNote
	ModifiedNamePosition
	ModifiedNameHeight
	ModifiedNameNote
	ModifiedReset
	ModifiedConnected
	ModifiedHasPlayerName
	ModifiedStartType
	ModifiedPage
)

var modifiedNames = map[ModifiedKind]string{
	ModifiedPlayerFlags:     "PLAYER_FLAGS",
	ModifiedPlayerName:      "PLAYER_NAME",
	ModifiedShoutingPlayer:  "SHOUTING_PLAYER",
	ModifiedConversationID:  "CONVERSATION_ID",
	ModifiedDialog:          "DIALOG",
	ModifiedNTiles:          "N_TILES",
	ModifiedLanguage:        "LANGUAGE",
	ModifiedRemainingTiles:  "REMAINING_TILES",
	ModifiedNote:            "NOTE",
	ModifiedNamePosition:    "NAME_POSITION",
	ModifiedNameHeight:      "NAME_HEIGHT",
	ModifiedNameNote:        "NAME_NOTE",
	ModifiedReset:           "RESET",
	ModifiedConnected:       "CONNECTED",
	ModifiedHasPlayerName:   "HAS_PLAYER_NAME",
	ModifiedStartType:       "START_TYPE",
	ModifiedPage:            "PAGE",
}

func (k ModifiedKind) String() string {
	if name, ok := modifiedNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ModifiedKind(%d)", int(k))
}

// Modified is one notification delivered to a host listener. Only the
// field(s) relevant to Kind are meaningful.
type Modified struct {
	Kind ModifiedKind

	PlayerNum uint8 // PLAYER_NAME
	Text      string // NOTE, PLAYER_NAME
}
