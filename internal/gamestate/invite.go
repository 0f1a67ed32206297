package gamestate

import (
	"net/url"
	"strconv"
)

// ParseInviteLink decodes a shared invite URL into the conversation id it
// names. vsx_id_url_decode's body was not present in the retrieved
// corpus — only its call site in the CLI's -u flag handling — so this is
// a supplemented, reasonable design rather than a recovered one: the
// conversation id travels as the hex-encoded "id" query parameter, e.g.
// "https://example.com/join?id=6e6d6c6b6a696867".
func ParseInviteLink(raw string) (conversationID uint64, ok bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return 0, false
	}

	id := u.Query().Get("id")
	if id == "" {
		return 0, false
	}

	value, err := strconv.ParseUint(id, 16, 64)
	if err != nil {
		return 0, false
	}

	return value, true
}
