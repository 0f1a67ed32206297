package gamestate

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bpeel/verda-sxtelo/core/internal/connection"
	"github.com/bpeel/verda-sxtelo/core/internal/protocol"
	"github.com/bpeel/verda-sxtelo/core/internal/worker"
)

// shoutClearDelay is how long a PLAYER_SHOUTED notification stays active
// before automatically clearing (§3, invariant 4).
const shoutClearDelay = 10 * time.Second

type config struct {
	logger          *slog.Logger
	requestFlush    func()
	defaultLanguage string
}

// Option configures a GameState at construction time.
type Option func(*config)

// WithLogger sets the structured logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithRequestFlush sets the host callback invoked whenever a new batch of
// events (or a deferred reset) needs a future call to Flush — the Go
// rendering of the host's queue_redraw() surface (§6). It may be called
// from the worker goroutine and must not block or call back into the
// GameState synchronously.
func WithRequestFlush(fn func()) Option {
	return func(c *config) { c.requestFlush = fn }
}

// WithDefaultLanguage sets the locale code assumed before any
// LANGUAGE_CHANGED event or loaded instance state overrides it.
func WithDefaultLanguage(code string) Option {
	return func(c *config) { c.defaultLanguage = code }
}

// GameState is the host-facing facade over a worker-driven
// connection.Engine: it owns the authoritative replica of room state and
// turns raw connection events into typed Modified notifications. All
// accessors and command methods, and Flush, are meant to be called from
// a single "main" goroutine; only the inbound event queue and the
// instance-state mirror are additionally guarded by mu so the worker
// goroutine can deliver events and SaveInstanceState can be called from
// any goroutine, matching §5's two-mutex model (this is the "GameState
// mutex").
type GameState struct {
	logger       *slog.Logger
	worker       *worker.Worker
	requestFlush func()

	mu             sync.Mutex
	queue          []connection.Event
	flushScheduled bool
	resetScheduled bool
	resetConvID    *uint64
	instance       instanceState

	tiles     map[uint8]Tile
	tileOrder []uint8 // oldest-updated first, most-recent at the back

	players [NVisiblePlayers]Player

	nTiles         uint8
	shoutingPlayer int8
	shoutTimer     *time.Timer

	conversationID    uint64
	hasConversationID bool

	self          uint8
	connected     bool
	hasPlayerName bool
	language      Language
	dialog        Dialog
	startType     StartType
	page          int

	namePositionY, nameWidth int
	nameHeight               int
	nameNote                 string

	listeners []func(Modified)
}

// New creates a GameState bound to w and registers itself as the
// engine's event listener (under the worker lock, mirroring
// vsx_game_state_new's locked vsx_signal_add).
func New(w *worker.Worker, opts ...Option) *GameState {
	cfg := config{
		logger:          slog.Default(),
		requestFlush:    func() {},
		defaultLanguage: "en",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	gs := &GameState{
		logger:         cfg.logger,
		worker:         w,
		requestFlush:   cfg.requestFlush,
		tiles:          make(map[uint8]Tile),
		shoutingPlayer: -1,
		dialog:         DialogName,
		instance:       instanceState{dialog: DialogName},
		language:       languageForCode(cfg.defaultLanguage),
		startType:      StartTypeNewGame,
	}

	w.Lock()
	w.Engine().OnEvent = gs.onConnectionEvent
	w.Engine().SetLanguageDefault(cfg.defaultLanguage)
	w.Unlock()

	return gs
}

// AddListener registers fn to be called for every Modified notification.
// Listeners run on the calling goroutine: from inside Flush for
// connection events, and synchronously from the setters and commands
// (SetDialog, SetPage, SetPlayerName, SetTyping, Reset, ...) that change
// the model directly.
func (gs *GameState) AddListener(fn func(Modified)) {
	gs.listeners = append(gs.listeners, fn)
}

func (gs *GameState) notify(kind ModifiedKind) {
	gs.emit(Modified{Kind: kind})
}

func (gs *GameState) emit(m Modified) {
	for _, l := range gs.listeners {
		l(m)
	}
}

// onConnectionEvent is the engine's OnEvent callback. It runs on the
// worker goroutine: acquire mu, enqueue, apply the one instance-state
// field that can't wait for the next flush, request a flush, release mu
// (§4.3.1).
func (gs *GameState) onConnectionEvent(evt connection.Event) {
	gs.mu.Lock()
	gs.queue = append(gs.queue, evt)
	if evt.Type == connection.EventHeader {
		gs.instance.hasPersonID = true
		gs.instance.personID = evt.Header.PersonID
		gs.instance.hasConversationID = false
	}
	scheduled := gs.flushScheduled
	gs.flushScheduled = true
	gs.mu.Unlock()

	if !scheduled {
		gs.requestFlush()
	}
}

// Flush steals the pending event queue and applies it to the model,
// re-emitting each event's Modified notifications to registered
// listeners. The host calls this from its own idle tick; it must never
// be called re-entrantly from inside a listener. Any reset scheduled by
// an event processed in a PREVIOUS Flush call runs first, on this call,
// which is what guarantees RESET is never observed synchronously with
// the ERROR or END event that triggered it (§7).
func (gs *GameState) Flush() {
	gs.mu.Lock()
	doReset := gs.resetScheduled
	resetConvID := gs.resetConvID
	gs.resetScheduled = false
	gs.resetConvID = nil
	queue := gs.queue
	gs.queue = nil
	gs.flushScheduled = false
	gs.mu.Unlock()

	if doReset {
		gs.performReset(resetConvID)
	}

	for _, evt := range queue {
		gs.applyEvent(evt)
	}
}

// scheduleReset arranges for performReset to run on a later Flush call,
// never this one, matching the original's separate reset_on_idle_token.
func (gs *GameState) scheduleReset(conversationID *uint64) {
	gs.mu.Lock()
	already := gs.resetScheduled
	gs.resetScheduled = true
	if conversationID != nil {
		gs.resetConvID = conversationID
	}
	gs.mu.Unlock()

	if !already {
		gs.requestFlush()
	}
}

func (gs *GameState) applyEvent(evt connection.Event) {
	switch evt.Type {
	case connection.EventHeader:
		gs.self = evt.Header.SelfNum
		gs.setConnected(true)

	case connection.EventConversationID:
		gs.setConversationID(true, evt.ConversationID)

	case connection.EventPlayerNameChanged:
		gs.applyPlayerName(evt.PlayerName)

	case connection.EventPlayerFlagsChanged:
		gs.applyPlayerFlags(evt.PlayerFlags, evt.Synced)

	case connection.EventPlayerShouted:
		gs.applyPlayerShouted(evt.ShoutingPlayer)

	case connection.EventTileChanged:
		gs.applyTileChanged(evt.Tile)

	case connection.EventNTilesChanged:
		gs.applyNTilesChanged(evt.NTiles)

	case connection.EventLanguageChanged:
		gs.applyLanguageChanged(evt.Language)

	case connection.EventError:
		gs.applyError(evt.Err)

	case connection.EventEnd:
		gs.scheduleReset(nil)

	case connection.EventRunningStateChanged:
		// No model effect of its own; connected tracks HEADER/ERROR.

	case eventShoutExpired:
		gs.removeShout()
	}
}

func (gs *GameState) setConnected(value bool) {
	if gs.connected == value {
		return
	}
	gs.connected = value
	gs.notify(ModifiedConnected)
}

func (gs *GameState) setConversationID(has bool, value uint64) {
	if has {
		if gs.hasConversationID && gs.conversationID == value {
			return
		}
	} else {
		if !gs.hasConversationID {
			return
		}
		value = 0
	}
	gs.hasConversationID = has
	gs.conversationID = value
	gs.notify(ModifiedConversationID)
}

func (gs *GameState) applyPlayerName(pn protocol.PlayerName) {
	if int(pn.PlayerNum) >= NVisiblePlayers {
		return
	}
	gs.players[pn.PlayerNum].Num = pn.PlayerNum
	gs.players[pn.PlayerNum].Name = pn.Name
	gs.emit(Modified{Kind: ModifiedPlayerName, PlayerNum: pn.PlayerNum, Text: pn.Name})
}

func (gs *GameState) applyPlayerFlags(pf protocol.PlayerFlags, synced bool) {
	if int(pf.PlayerNum) >= NVisiblePlayers {
		return
	}
	player := &gs.players[pf.PlayerNum]
	oldFlags := player.Flags
	newFlags := PlayerFlag(pf.Flags)
	if oldFlags == newFlags {
		return
	}
	player.Num = pf.PlayerNum
	player.Flags = newFlags

	if synced && (oldFlags^newFlags)&PlayerConnected != 0 {
		gs.notePlayerConnectionChange(pf.PlayerNum)
	}

	gs.notify(ModifiedPlayerFlags)
}

func (gs *GameState) notePlayerConnectionChange(playerNum uint8) {
	if playerNum == gs.self {
		return
	}
	player := gs.players[playerNum]
	if player.Name == "" {
		return
	}
	var text string
	if player.has(PlayerConnected) {
		text = player.Name + " joined the game."
	} else {
		text = player.Name + " left the game."
	}
	gs.setNote(text)
}

func (gs *GameState) applyPlayerShouted(playerNum uint8) {
	gs.armShoutTimer()

	if int8(playerNum) == gs.shoutingPlayer {
		return
	}
	gs.shoutingPlayer = int8(playerNum)
	gs.notify(ModifiedShoutingPlayer)
}

func (gs *GameState) armShoutTimer() {
	if gs.shoutTimer != nil {
		gs.shoutTimer.Stop()
	}
	gs.shoutTimer = time.AfterFunc(shoutClearDelay, gs.clearShout)
}

// clearShout runs on its own goroutine when the shout timer fires; it
// synchronizes with Flush purely by going through the same enqueue path
// any other event uses, so it can never race the main-thread model
// fields.
func (gs *GameState) clearShout() {
	gs.mu.Lock()
	gs.queue = append(gs.queue, connection.Event{Type: eventShoutExpired})
	scheduled := gs.flushScheduled
	gs.flushScheduled = true
	gs.mu.Unlock()
	if !scheduled {
		gs.requestFlush()
	}
}

func (gs *GameState) removeShout() {
	if gs.shoutTimer != nil {
		gs.shoutTimer.Stop()
		gs.shoutTimer = nil
	}
	if gs.shoutingPlayer == -1 {
		return
	}
	gs.shoutingPlayer = -1
	gs.notify(ModifiedShoutingPlayer)
}

func (gs *GameState) applyTileChanged(tile protocol.Tile) {
	_, existed := gs.tiles[tile.Num]
	gs.tiles[tile.Num] = Tile{
		Num:             tile.Num,
		X:               tile.X,
		Y:               tile.Y,
		Letter:          tile.Letter,
		LastPlayerMoved: tile.LastPlayerMoved,
	}

	if existed {
		for i, num := range gs.tileOrder {
			if num == tile.Num {
				gs.tileOrder = append(gs.tileOrder[:i], gs.tileOrder[i+1:]...)
				break
			}
		}
	}
	gs.tileOrder = append(gs.tileOrder, tile.Num)

	if len(gs.tiles) == 1 && !existed && gs.dialog == DialogInviteLink {
		gs.CloseDialog()
	}

	if !existed {
		gs.notify(ModifiedRemainingTiles)
	}
}

func (gs *GameState) applyNTilesChanged(n uint8) {
	if gs.nTiles == n {
		return
	}
	gs.nTiles = n
	gs.notify(ModifiedNTiles)
	gs.notify(ModifiedRemainingTiles)
}

func (gs *GameState) applyLanguageChanged(code string) {
	lang := languageForCode(code)
	if lang == gs.language {
		return
	}
	gs.language = lang
	gs.notify(ModifiedLanguage)
}

func (gs *GameState) applyError(err *connection.ConnectionError) {
	gs.setConnected(false)
	if err == nil {
		return
	}
	switch err.Kind {
	case connection.ErrorBadPlayerID, connection.ErrorBadConversationID:
		gs.scheduleReset(nil)
		gs.setNote("This game is no longer available. Please start a new one instead.")
	case connection.ErrorConversationFull:
		gs.scheduleReset(nil)
		gs.setNote("This game is full. Please start a new one instead.")
	}
}

func (gs *GameState) setNote(text string) {
	gs.emit(Modified{Kind: ModifiedNote, Text: text})
}

// eventShoutExpired is a synthetic, internal-only event type appended
// directly to the queue by the shout-clear timer; it is never produced
// by the connection package.
const eventShoutExpired connection.EventType = -1
