package gamestate

import (
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"strings"
)

// instanceState is the parsed form of the opaque checkpoint string a host
// may persist and later hand back to LoadInstanceState (§4.3.5). dialog
// is set to DialogName at construction and from then on always mirrors
// the live dialog field, so it is always present in Save's output —
// there is no "unset" dialog state, matching the original's behavior of
// initializing instance_state.dialog alongside game_state->dialog itself.
type instanceState struct {
	hasPersonID       bool
	personID          uint64
	hasConversationID bool
	conversationID    uint64

	dialog Dialog

	page int
}

// save renders the instance state as "key=value,key=value,...". Order is
// fixed: identity field first, then dialog, then page.
func (s instanceState) save() string {
	var parts []string
	switch {
	case s.hasPersonID:
		parts = append(parts, "person_id="+encodeID(s.personID))
	case s.hasConversationID:
		parts = append(parts, "conversation_id="+encodeID(s.conversationID))
	}
	parts = append(parts, "dialog="+s.dialog.String())
	if s.page != 0 {
		parts = append(parts, "page="+strconv.Itoa(s.page))
	}
	return strings.Join(parts, ",")
}

// parseInstanceState parses a string previously produced by save, or one
// hand-written by a host embedding this core. Unknown keys and
// unparseable values are silently ignored, matching §4.3.5's "ignore
// unknown keys" load rule.
func parseInstanceState(str string) instanceState {
	s := instanceState{dialog: DialogName}
	if str == "" {
		return s
	}
	for _, pair := range strings.Split(str, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		switch key {
		case "person_id":
			if id, ok := decodeID(value); ok {
				s.hasPersonID = true
				s.personID = id
			}
		case "conversation_id":
			if id, ok := decodeID(value); ok {
				s.hasConversationID = true
				s.conversationID = id
			}
		case "dialog":
			if d, ok := dialogByName(value); ok {
				s.dialog = d
			}
		case "page":
			if p, err := strconv.Atoi(value); err == nil {
				s.page = p
			}
		}
	}
	return s
}

// encodeID renders id as the 16 lowercase hex digits used by the
// person_id/conversation_id fields of the instance-state codec (§4.3.5).
func encodeID(id uint64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return hex.EncodeToString(buf[:])
}

// decodeID parses value as a bare hex number, the loose inverse of
// encodeID: save always emits the zero-padded 16-digit form, but load
// also accepts a hand-written short form like "5" (§4.3.5's test
// vectors load "person_id=5" and expect it to reconnect as person_id
// 5, not reject it for being unpadded).
func decodeID(value string) (uint64, bool) {
	id, err := strconv.ParseUint(value, 16, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
