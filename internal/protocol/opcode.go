// Package protocol implements the binary message format used inside the
// WebSocket-framed stream between the game client and the conversation
// server, plus the minimal WebSocket framing it rides on.
package protocol

import "fmt"

// ServerOp identifies a message sent from the server to the client.
type ServerOp uint8

const (
	OpHeader           ServerOp = 0x00
	OpMessage          ServerOp = 0x01
	OpNTiles           ServerOp = 0x02
	OpTile             ServerOp = 0x03
	OpPlayerName       ServerOp = 0x04
	OpPlayerFlags      ServerOp = 0x05
	OpPlayerShouted    ServerOp = 0x06
	OpSync             ServerOp = 0x07
	OpEnd              ServerOp = 0x08
	OpConversationID   ServerOp = 0x09
	OpNTilesAlt        ServerOp = 0x0a
	OpBadPlayerID      ServerOp = 0x0b
	OpLanguage         ServerOp = 0x0c
	OpConversationFull ServerOp = 0x0d
)

var serverOpNames = map[ServerOp]string{
	OpHeader:           "HEADER",
	OpMessage:          "MESSAGE",
	OpNTiles:           "N_TILES",
	OpTile:             "TILE",
	OpPlayerName:       "PLAYER_NAME",
	OpPlayerFlags:      "PLAYER_FLAGS",
	OpPlayerShouted:    "PLAYER_SHOUTED",
	OpSync:             "SYNC",
	OpEnd:              "END",
	OpConversationID:   "CONVERSATION_ID",
	OpNTilesAlt:        "N_TILES_ALT",
	OpBadPlayerID:      "BAD_PLAYER_ID",
	OpLanguage:         "LANGUAGE",
	OpConversationFull: "CONVERSATION_FULL",
}

func (op ServerOp) String() string {
	if name, ok := serverOpNames[op]; ok {
		return name
	}
	return fmt.Sprintf("ServerOp(0x%02x)", uint8(op))
}

// ClientOp identifies a message sent from the client to the server. All
// client opcodes have the high bit set.
type ClientOp uint8

const (
	OpNewPlayer    ClientOp = 0x80
	OpReconnect    ClientOp = 0x81
	OpLeave        ClientOp = 0x84
	OpSendMessage  ClientOp = 0x85
	OpMoveTile     ClientOp = 0x88
	OpTurn         ClientOp = 0x89
	OpShout        ClientOp = 0x8a
	OpSetNTiles    ClientOp = 0x8b
	OpJoinGame     ClientOp = 0x8d
	OpSetLanguage  ClientOp = 0x8e
)

var clientOpNames = map[ClientOp]string{
	OpNewPlayer:   "NEW_PLAYER",
	OpReconnect:   "RECONNECT",
	OpLeave:       "LEAVE",
	OpSendMessage: "SEND_MESSAGE",
	OpMoveTile:    "MOVE_TILE",
	OpTurn:        "TURN",
	OpShout:       "SHOUT",
	OpSetNTiles:   "SET_N_TILES",
	OpJoinGame:    "JOIN_GAME",
	OpSetLanguage: "SET_LANGUAGE",
}

func (op ClientOp) String() string {
	if name, ok := clientOpNames[op]; ok {
		return name
	}
	return fmt.Sprintf("ClientOp(0x%02x)", uint8(op))
}
