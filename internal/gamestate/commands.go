package gamestate

import "github.com/bpeel/verda-sxtelo/core/internal/protocol"

// Shout sends a SHOUT command, acquiring the worker lock for the
// duration of the call (§4.3.4).
func (gs *GameState) Shout() {
	gs.worker.Lock()
	defer gs.worker.Unlock()
	gs.worker.Engine().Send(protocol.EncodeShout())
}

// Turn sends a TURN command.
func (gs *GameState) Turn() {
	gs.worker.Lock()
	defer gs.worker.Unlock()
	gs.worker.Engine().Send(protocol.EncodeTurn())
}

// MoveTile sends a MOVE_TILE command for the given tile.
func (gs *GameState) MoveTile(num uint8, x, y int16) {
	gs.worker.Lock()
	defer gs.worker.Unlock()
	gs.worker.Engine().Send(protocol.EncodeMoveTile(num, x, y))
}

// SetNTiles sends a SET_N_TILES command.
func (gs *GameState) SetNTiles(n uint8) {
	gs.worker.Lock()
	defer gs.worker.Unlock()
	gs.worker.Engine().Send(protocol.EncodeSetNTiles(n))
}

// SetLanguage sends a SET_LANGUAGE command.
func (gs *GameState) SetLanguage(code string) {
	gs.worker.Lock()
	defer gs.worker.Unlock()
	gs.worker.Engine().Send(protocol.EncodeSetLanguage(code))
}

// SetTyping flips this client's own TYPING flag bit. No opcode for it
// was present in the retrieved corpus, only the
// vsx_connection_get_typing / vsx_connection_set_typing accessor
// declarations; it is supplemented here as a best-effort local flag the
// self player's record carries immediately, the way the server's own
// PLAYER_FLAGS broadcasts arrive for everyone else, without waiting on a
// round trip.
func (gs *GameState) SetTyping(typing bool) {
	if int(gs.self) >= NVisiblePlayers {
		return
	}
	player := &gs.players[gs.self]
	has := player.has(PlayerTyping)
	if has == typing {
		return
	}
	if typing {
		player.Flags |= PlayerTyping
	} else {
		player.Flags &^= PlayerTyping
	}
	gs.notify(ModifiedPlayerFlags)
}

// Leave sends a LEAVE command.
func (gs *GameState) Leave() {
	gs.worker.Lock()
	defer gs.worker.Unlock()
	gs.worker.Engine().Send(protocol.EncodeLeave())
}

// SetPlayerName sets the local player's display name, sending it
// immediately if the engine is waiting on one to complete its
// handshake. Idempotent: HAS_PLAYER_NAME only fires the first time.
func (gs *GameState) SetPlayerName(name string) {
	gs.worker.Lock()
	gs.worker.Engine().SetPlayerName(name)
	gs.worker.Unlock()

	gs.setHasPlayerName(true)
}

func (gs *GameState) setHasPlayerName(value bool) {
	if gs.hasPlayerName == value {
		return
	}
	gs.hasPlayerName = value
	gs.notify(ModifiedHasPlayerName)
}

// HasPlayerName reports whether a player name has been set since
// construction or the last Reset.
func (gs *GameState) HasPlayerName() bool { return gs.hasPlayerName }

// Connected reports whether a HEADER has been received since the last
// disconnect or reset.
func (gs *GameState) Connected() bool { return gs.connected }

// Self returns this client's player slot, valid once Connected is true.
func (gs *GameState) Self() uint8 { return gs.self }

// ShoutingPlayer returns the currently shouting player's slot, or -1.
func (gs *GameState) ShoutingPlayer() int8 { return gs.shoutingPlayer }

// NTiles returns the total tile count reported by the server.
func (gs *GameState) NTiles() uint8 { return gs.nTiles }

// RemainingTiles returns n_tiles minus the number of tiles seen so far.
func (gs *GameState) RemainingTiles() int {
	remaining := int(gs.nTiles) - len(gs.tiles)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Language returns the currently resolved UI language.
func (gs *GameState) Language() Language { return gs.language }

// ConversationID returns the pinned conversation id, if any.
func (gs *GameState) ConversationID() (uint64, bool) {
	return gs.conversationID, gs.hasConversationID
}

// StartType reports whether the current attempt is a fresh game or one
// joined by a pinned conversation id (invite link).
func (gs *GameState) StartType() StartType { return gs.startType }

func (gs *GameState) setStartType(t StartType) {
	if gs.startType == t {
		return
	}
	gs.startType = t
	gs.notify(ModifiedStartType)
}

// Started reports whether any tile has been seen yet.
func (gs *GameState) Started() bool { return len(gs.tiles) > 0 }

// Dialog returns the currently displayed dialog.
func (gs *GameState) Dialog() Dialog { return gs.dialog }

// SetDialog changes the displayed dialog, mirroring the new value into
// the instance-state checkpoint.
func (gs *GameState) SetDialog(d Dialog) {
	if gs.dialog == d {
		return
	}
	gs.dialog = d

	gs.mu.Lock()
	gs.instance.dialog = d
	gs.mu.Unlock()

	gs.notify(ModifiedDialog)
}

// CloseDialog returns to NONE if a player name is already known, else to
// NAME (the game cannot start without one).
func (gs *GameState) CloseDialog() {
	if gs.HasPlayerName() {
		gs.SetDialog(DialogNone)
	} else {
		gs.SetDialog(DialogName)
	}
}

// Page returns the currently displayed page/screen index, a detail the
// original exposes for multi-panel layouts; this core treats it as an
// opaque host value to persist and restore.
func (gs *GameState) Page() int { return gs.page }

// SetPage changes the current page, mirroring it into the instance
// state.
func (gs *GameState) SetPage(page int) {
	if gs.page == page {
		return
	}
	gs.page = page

	gs.mu.Lock()
	gs.instance.page = page
	gs.mu.Unlock()

	gs.notify(ModifiedPage)
}

// NamePosition and NameHeight/NameNote are supplemented from the
// original header's vsx_game_state_set_name_position /
// vsx_game_state_set_name_height / vsx_game_state_set_name_note, used
// by the host shell to coordinate the on-screen name entry field with
// the board layout. The core treats all three as opaque host-owned
// values: no network effect, reactive notification only.

// SetNamePosition records where the host is currently drawing the name
// entry field.
func (gs *GameState) SetNamePosition(y, width int) {
	if gs.namePositionY == y && gs.nameWidth == width {
		return
	}
	gs.namePositionY, gs.nameWidth = y, width
	gs.notify(ModifiedNamePosition)
}

// NamePosition returns the values last set by SetNamePosition.
func (gs *GameState) NamePosition() (y, width int) {
	return gs.namePositionY, gs.nameWidth
}

// SetNameHeight records the host-measured height of the name field.
func (gs *GameState) SetNameHeight(height int) {
	if gs.nameHeight == height {
		return
	}
	gs.nameHeight = height
	gs.notify(ModifiedNameHeight)
}

// NameHeight returns the value last set by SetNameHeight.
func (gs *GameState) NameHeight() int { return gs.nameHeight }

// SetNameNote records a validation note to show next to the name field
// (e.g. "name too long"); empty string clears it.
func (gs *GameState) SetNameNote(text string) {
	if gs.nameNote == text {
		return
	}
	gs.nameNote = text
	gs.notify(ModifiedNameNote)
}

// NameNote returns the value last set by SetNameNote.
func (gs *GameState) NameNote() string { return gs.nameNote }

// SetNote posts a one-off informational NOTE, the same channel used
// internally to surface localised error text.
func (gs *GameState) SetNote(text string) {
	gs.setNote(text)
}

// ForeachTile calls fn once per known tile, in least-recently-updated
// order (oldest first, matching the replicated paint order).
func (gs *GameState) ForeachTile(fn func(Tile)) {
	for _, num := range gs.tileOrder {
		fn(gs.tiles[num])
	}
}

// ForeachPlayer calls fn once per fixed player slot, in slot order,
// regardless of whether that slot has ever been populated.
func (gs *GameState) ForeachPlayer(fn func(Player)) {
	for i := range gs.players {
		fn(gs.players[i])
	}
}

// Reset clears all per-conversation state back to construction
// defaults, preserving only the last-observed language, and starts a
// fresh (unpinned) connection attempt (§4.3.3).
func (gs *GameState) Reset() {
	gs.performReset(nil)
}

// ResetForConversationID resets like Reset, but pins id so the next
// connect attempt joins that specific conversation via JOIN_GAME once a
// player name is set.
func (gs *GameState) ResetForConversationID(id uint64) {
	gs.performReset(&id)
}

func (gs *GameState) performReset(conversationID *uint64) {
	gs.worker.Lock()
	engine := gs.worker.Engine()
	engine.Reset()
	engine.SetLanguageDefault(languageCode(gs.language))
	if conversationID != nil {
		engine.PinConversationID(*conversationID)
	}
	engine.SetRunning(true)
	gs.worker.Unlock()

	gs.mu.Lock()
	gs.queue = nil
	if conversationID != nil {
		gs.instance.hasPersonID = false
		gs.instance.hasConversationID = true
		gs.instance.conversationID = *conversationID
	} else {
		gs.instance.hasPersonID = false
		gs.instance.hasConversationID = false
	}
	gs.mu.Unlock()

	gs.setHasPlayerName(false)
	gs.removeShout()
	gs.setConversationID(conversationID != nil, derefOr(conversationID, 0))
	gs.resetPlayers()
	gs.SetDialog(DialogName)
	if conversationID != nil {
		gs.setStartType(StartTypeJoinGame)
	} else {
		gs.setStartType(StartTypeNewGame)
	}
	gs.resetTiles()
	gs.setConnected(false)

	gs.notify(ModifiedReset)
}

func derefOr(p *uint64, def uint64) uint64 {
	if p == nil {
		return def
	}
	return *p
}

func (gs *GameState) resetPlayers() {
	for i := range gs.players {
		if gs.players[i].Name != "" {
			gs.players[i].Name = ""
			gs.emit(Modified{Kind: ModifiedPlayerName, PlayerNum: uint8(i), Text: ""})
		}
	}

	flagsChanged := false
	for i := range gs.players {
		if gs.players[i].Flags != 0 {
			gs.players[i].Flags = 0
			flagsChanged = true
		}
	}
	if flagsChanged {
		gs.notify(ModifiedPlayerFlags)
	}
}

func (gs *GameState) resetTiles() {
	hadTiles := len(gs.tiles) > 0
	gs.tiles = make(map[uint8]Tile)
	gs.tileOrder = nil
	if hadTiles {
		gs.notify(ModifiedRemainingTiles)
	}
}

// SaveInstanceState renders the opaque checkpoint string. Safe to call
// from any goroutine (§4.3.5, §6).
func (gs *GameState) SaveInstanceState() string {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return gs.instance.save()
}

// LoadInstanceState parses str and applies it: pinning the right
// identity on the engine under the worker lock, and mirroring dialog and
// page into the model. Must be called from the same goroutine as the
// rest of the command API, before the worker is started.
func (gs *GameState) LoadInstanceState(str string) {
	parsed := parseInstanceState(str)

	gs.mu.Lock()
	gs.instance = parsed
	gs.mu.Unlock()

	gs.worker.Lock()
	engine := gs.worker.Engine()
	switch {
	case parsed.hasPersonID:
		engine.PinPersonID(parsed.personID)
	case parsed.hasConversationID:
		engine.PinConversationID(parsed.conversationID)
	}
	gs.worker.Unlock()

	if parsed.hasPersonID {
		gs.setHasPlayerName(true)
	}

	if parsed.hasConversationID {
		gs.setStartType(StartTypeJoinGame)
	} else {
		gs.setStartType(StartTypeNewGame)
	}

	gs.SetDialog(parsed.dialog)
	gs.SetPage(parsed.page)
}

// languageCode returns the canonical locale code for lang, the inverse
// of languageForCode, used to record the current language as the
// engine's default across a reset.
func languageCode(lang Language) string {
	for code, l := range languageCodes {
		if l == lang {
			return code
		}
	}
	return "en"
}
