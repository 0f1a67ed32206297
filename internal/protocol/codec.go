package protocol

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// ErrShortMessage is returned when a frame payload ends before a field
// that the opcode requires has been fully read.
var ErrShortMessage = fmt.Errorf("protocol: message too short")

// ErrEmptyMessage is returned by DecodeOp when the frame payload is empty.
var ErrEmptyMessage = fmt.Errorf("protocol: empty message")

// DecodeOp splits a binary frame payload into its opcode and the
// remaining bytes.
func DecodeOp(payload []byte) (ServerOp, []byte, error) {
	if len(payload) < 1 {
		return 0, nil, ErrEmptyMessage
	}
	return ServerOp(payload[0]), payload[1:], nil
}

func readCString(data []byte) (string, []byte, error) {
	for i, b := range data {
		if b == 0 {
			return string(data[:i]), data[i+1:], nil
		}
	}
	return "", nil, fmt.Errorf("%w: unterminated string", ErrShortMessage)
}

func readU8(data []byte) (uint8, []byte, error) {
	if len(data) < 1 {
		return 0, nil, ErrShortMessage
	}
	return data[0], data[1:], nil
}

func readU16(data []byte) (uint16, []byte, error) {
	if len(data) < 2 {
		return 0, nil, ErrShortMessage
	}
	return binary.LittleEndian.Uint16(data), data[2:], nil
}

func readI16(data []byte) (int16, []byte, error) {
	v, rest, err := readU16(data)
	return int16(v), rest, err
}

func readU64(data []byte) (uint64, []byte, error) {
	if len(data) < 8 {
		return 0, nil, ErrShortMessage
	}
	return binary.LittleEndian.Uint64(data), data[8:], nil
}

// readUTF8Char reads a single Unicode scalar encoded as UTF-8 (1–4 bytes,
// as it appears packed in a TILE message, with no length prefix and no
// terminating NUL of its own).
func readUTF8Char(data []byte) (rune, []byte, error) {
	if len(data) < 1 {
		return 0, nil, ErrShortMessage
	}
	r, size := utf8.DecodeRune(data)
	if r == utf8.RuneError && size <= 1 {
		return 0, nil, fmt.Errorf("protocol: invalid utf8 letter byte 0x%02x", data[0])
	}
	if size > len(data) {
		return 0, nil, ErrShortMessage
	}
	return r, data[size:], nil
}

// Header is the HEADER (0x00) server message.
type Header struct {
	SelfNum  uint8
	PersonID uint64
}

// DecodeHeader decodes a HEADER payload (the trailing optional string, if
// present, is not interpreted by the core and is ignored).
func DecodeHeader(body []byte) (Header, error) {
	selfNum, rest, err := readU8(body)
	if err != nil {
		return Header{}, fmt.Errorf("decode header self_num: %w", err)
	}
	personID, _, err := readU64(rest)
	if err != nil {
		return Header{}, fmt.Errorf("decode header person_id: %w", err)
	}
	return Header{SelfNum: selfNum, PersonID: personID}, nil
}

// PlayerMessage is the MESSAGE (0x01) server message.
type PlayerMessage struct {
	PlayerNum uint8
	Text      string
}

func DecodePlayerMessage(body []byte) (PlayerMessage, error) {
	playerNum, rest, err := readU8(body)
	if err != nil {
		return PlayerMessage{}, fmt.Errorf("decode message player_num: %w", err)
	}
	text, _, err := readCString(rest)
	if err != nil {
		return PlayerMessage{}, fmt.Errorf("decode message text: %w", err)
	}
	return PlayerMessage{PlayerNum: playerNum, Text: text}, nil
}

// NTiles is the N_TILES (0x02) server message.
type NTiles struct {
	N uint8
}

func DecodeNTiles(body []byte) (NTiles, error) {
	n, _, err := readU8(body)
	if err != nil {
		return NTiles{}, fmt.Errorf("decode n_tiles: %w", err)
	}
	return NTiles{N: n}, nil
}

// Tile is the TILE (0x03) server message.
type Tile struct {
	Num             uint8
	X, Y            int16
	Letter          rune
	LastPlayerMoved uint8
}

func DecodeTile(body []byte) (Tile, error) {
	num, rest, err := readU8(body)
	if err != nil {
		return Tile{}, fmt.Errorf("decode tile num: %w", err)
	}
	x, rest, err := readI16(rest)
	if err != nil {
		return Tile{}, fmt.Errorf("decode tile x: %w", err)
	}
	y, rest, err := readI16(rest)
	if err != nil {
		return Tile{}, fmt.Errorf("decode tile y: %w", err)
	}
	letter, rest, err := readUTF8Char(rest)
	if err != nil {
		return Tile{}, fmt.Errorf("decode tile letter: %w", err)
	}
	lastMoved, _, err := readU8(rest)
	if err != nil {
		return Tile{}, fmt.Errorf("decode tile last_player_moved: %w", err)
	}
	return Tile{Num: num, X: x, Y: y, Letter: letter, LastPlayerMoved: lastMoved}, nil
}

// PlayerName is the PLAYER_NAME (0x04) server message.
type PlayerName struct {
	PlayerNum uint8
	Name      string
}

func DecodePlayerName(body []byte) (PlayerName, error) {
	playerNum, rest, err := readU8(body)
	if err != nil {
		return PlayerName{}, fmt.Errorf("decode player_name player_num: %w", err)
	}
	name, _, err := readCString(rest)
	if err != nil {
		return PlayerName{}, fmt.Errorf("decode player_name name: %w", err)
	}
	return PlayerName{PlayerNum: playerNum, Name: name}, nil
}

// PlayerFlags is the PLAYER_FLAGS (0x05) server message.
type PlayerFlags struct {
	PlayerNum uint8
	Flags     uint8
}

func DecodePlayerFlags(body []byte) (PlayerFlags, error) {
	playerNum, rest, err := readU8(body)
	if err != nil {
		return PlayerFlags{}, fmt.Errorf("decode player_flags player_num: %w", err)
	}
	flags, _, err := readU8(rest)
	if err != nil {
		return PlayerFlags{}, fmt.Errorf("decode player_flags flags: %w", err)
	}
	return PlayerFlags{PlayerNum: playerNum, Flags: flags}, nil
}

// PlayerShouted is the PLAYER_SHOUTED (0x06) server message.
type PlayerShouted struct {
	PlayerNum uint8
}

func DecodePlayerShouted(body []byte) (PlayerShouted, error) {
	playerNum, _, err := readU8(body)
	if err != nil {
		return PlayerShouted{}, fmt.Errorf("decode player_shouted: %w", err)
	}
	return PlayerShouted{PlayerNum: playerNum}, nil
}

// ConversationID is the CONVERSATION_ID (0x09) server message.
type ConversationID struct {
	ID uint64
}

func DecodeConversationID(body []byte) (ConversationID, error) {
	id, _, err := readU64(body)
	if err != nil {
		return ConversationID{}, fmt.Errorf("decode conversation_id: %w", err)
	}
	return ConversationID{ID: id}, nil
}

// Language is the LANGUAGE (0x0c) server message.
type Language struct {
	Code string
}

func DecodeLanguage(body []byte) (Language, error) {
	code, _, err := readCString(body)
	if err != nil {
		return Language{}, fmt.Errorf("decode language: %w", err)
	}
	return Language{Code: code}, nil
}

// --- client -> server encoders. Each returns a full frame payload
// (opcode byte followed by fields), ready to hand to WriteFrame. ---

func appendCString(buf []byte, s string) []byte {
	buf = append(buf, s...)
	return append(buf, 0)
}

func EncodeNewPlayer(room, playerName string) []byte {
	buf := []byte{byte(OpNewPlayer)}
	buf = appendCString(buf, room)
	buf = appendCString(buf, playerName)
	return buf
}

func EncodeReconnect(personID uint64, nMessagesReceived uint16) []byte {
	buf := make([]byte, 1, 1+8+2)
	buf[0] = byte(OpReconnect)
	buf = binary.LittleEndian.AppendUint64(buf, personID)
	buf = binary.LittleEndian.AppendUint16(buf, nMessagesReceived)
	return buf
}

func EncodeLeave() []byte {
	return []byte{byte(OpLeave)}
}

func EncodeSendMessage(text string) []byte {
	buf := []byte{byte(OpSendMessage)}
	return appendCString(buf, text)
}

func EncodeMoveTile(num uint8, x, y int16) []byte {
	buf := make([]byte, 1, 6)
	buf[0] = byte(OpMoveTile)
	buf = append(buf, num)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(x))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(y))
	return buf
}

func EncodeTurn() []byte {
	return []byte{byte(OpTurn)}
}

func EncodeShout() []byte {
	return []byte{byte(OpShout)}
}

func EncodeSetNTiles(n uint8) []byte {
	return []byte{byte(OpSetNTiles), n}
}

func EncodeJoinGame(conversationID uint64, playerName string) []byte {
	buf := make([]byte, 1, 1+8+len(playerName)+1)
	buf[0] = byte(OpJoinGame)
	buf = binary.LittleEndian.AppendUint64(buf, conversationID)
	buf = appendCString(buf, playerName)
	return buf
}

func EncodeSetLanguage(code string) []byte {
	buf := []byte{byte(OpSetLanguage)}
	return appendCString(buf, code)
}
