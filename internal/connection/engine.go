// Package connection implements the client side of the conversation wire
// protocol: a single-threaded state machine that owns one TCP socket,
// performs the WebSocket opening handshake, frames and deframes binary
// messages, and emits typed events. It is driven entirely by its caller
// (the worker package), matching the "single thread inside the engine at
// a time" concurrency contract. The one goroutine it starts is the frame
// reader launched by StartReading, which touches no Engine field.
package connection

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/bpeel/verda-sxtelo/core/internal/protocol"
)

// errConversationEnded is returned by Dispatch when the server sent END.
// It is not a failure: the caller should not reconnect on its own: either
// the embedding GameState resets and starts a fresh conversation, or the
// engine stays idle until SetRunning(true) is called again.
var errConversationEnded = errors.New("connection: conversation ended")

// ErrConversationEnded reports whether err is the sentinel Dispatch
// returns after an END message.
func ErrConversationEnded(err error) bool {
	return errors.Is(err, errConversationEnded)
}

type config struct {
	logger  *slog.Logger
	onEvent func(Event)
}

// Option configures an Engine at construction time.
type Option func(*config)

// WithLogger sets the structured logger used for connect/disconnect and
// protocol error diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithEventHandler sets the callback invoked for every emitted Event. It
// runs on whichever goroutine drives the Engine (the worker's background
// goroutine) and must not block.
func WithEventHandler(fn func(Event)) Option {
	return func(c *config) { c.onEvent = fn }
}

// Engine owns one conversation-server connection: the socket, the
// WebSocket and message framing, and the small amount of per-connection
// bookkeeping (sync flag, replayed message count) needed to reconnect
// cleanly. All exported methods must be called with the caller already
// holding whatever lock serializes access (the worker package's mutex) —
// the Engine keeps no internal lock of its own.
type Engine struct {
	logger  *slog.Logger
	OnEvent func(Event)

	addr string // resolved "host:port"; set by the worker after DNS lookup
	host string
	port int

	room          string
	playerName    string
	hasPlayerName bool

	pinnedPersonID       *uint64
	pinnedConversationID *uint64

	languageDefault string

	running bool
	state   State

	conn      net.Conn
	bufReader *bufio.Reader

	synced            bool
	nMessagesReceived uint16

	backoffState backoff
}

// New creates an Engine in its construction-default state: DISCONNECTED,
// not running, no address.
func New(opts ...Option) *Engine {
	cfg := config{
		logger:  slog.Default(),
		onEvent: func(Event) {},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Engine{
		logger:          cfg.logger,
		OnEvent:         cfg.onEvent,
		state:           StateDisconnected,
		languageDefault: "en",
	}
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State { return e.state }

// Running reports whether the engine wants to be connected.
func (e *Engine) Running() bool { return e.running }

// SetAddress sets (or changes) the server host and port. Changing it
// while connected does not itself disconnect; it takes effect on the
// next connect attempt.
func (e *Engine) SetAddress(host string, port int) {
	e.host = host
	e.port = port
}

// SetResolvedAddr records the "host:port" (or "ip:port") the worker
// should actually dial, after it has performed DNS resolution.
func (e *Engine) SetResolvedAddr(addr string) {
	e.addr = addr
}

// HasAddress reports whether a server host/port has been configured.
func (e *Engine) HasAddress() bool {
	return e.host != ""
}

// ResolvedAddr returns the "host:port" last recorded by SetResolvedAddr,
// or "" if DNS resolution hasn't completed yet.
func (e *Engine) ResolvedAddr() string {
	return e.addr
}

// Host and Port expose the configured (unresolved) address for the
// worker's DNS resolution step.
func (e *Engine) Host() string { return e.host }
func (e *Engine) Port() int    { return e.port }

// SetRoom sets the room name used by NEW_PLAYER.
func (e *Engine) SetRoom(room string) {
	e.room = room
}

// SetPlayerName sets the local player's display name. If the engine is
// mid-handshake waiting on a name to send its identity message, this
// sends it immediately.
func (e *Engine) SetPlayerName(name string) error {
	changed := !e.hasPlayerName || e.playerName != name
	e.playerName = name
	e.hasPlayerName = true
	if !changed {
		return nil
	}
	if e.state == StateAuthenticating {
		return e.sendIdentity()
	}
	return nil
}

// HasPlayerName reports whether a (possibly empty) name
// has been set on this engine since construction or the last Reset.
func (e *Engine) HasPlayerName() bool { return e.hasPlayerName }

// PinPersonID pins a previously issued person_id so the next connect
// attempt reclaims that seat via RECONNECT instead of joining fresh.
func (e *Engine) PinPersonID(id uint64) {
	e.pinnedPersonID = &id
	e.pinnedConversationID = nil
}

// PinConversationID pins a conversation id so the next connect attempt
// joins that specific room via JOIN_GAME (once a player name is known).
func (e *Engine) PinConversationID(id uint64) {
	e.pinnedConversationID = &id
	e.pinnedPersonID = nil
}

// PersonID returns the currently pinned person id, if any.
func (e *Engine) PersonID() (uint64, bool) {
	if e.pinnedPersonID == nil {
		return 0, false
	}
	return *e.pinnedPersonID, true
}

// ConversationID returns the currently pinned conversation id, if any.
func (e *Engine) ConversationID() (uint64, bool) {
	if e.pinnedConversationID == nil {
		return 0, false
	}
	return *e.pinnedConversationID, true
}

// StartType reports whether the next connect attempt will start a new
// game or join a pinned one, per the InstanceState model (§3).
func (e *Engine) StartType() StartType {
	if _, ok := e.ConversationID(); ok {
		return StartTypeJoinGame
	}
	return StartTypeNewGame
}

// StartType distinguishes a fresh game from one joined via a pinned
// conversation id (an invite link), mirroring the Game State's derived
// start_type. A pinned person id alone still counts as a new game.
type StartType int

const (
	StartTypeNewGame StartType = iota
	StartTypeJoinGame
)

// SetLanguageDefault records the language code GameState wants preserved
// across a reset (the last LANGUAGE_CHANGED value observed).
func (e *Engine) SetLanguageDefault(code string) {
	e.languageDefault = code
}

// SetRunning starts or stops the connect/reconnect cycle. Turning it on
// from a stopped state resets the backoff counter and emits
// RUNNING_STATE_CHANGED.
func (e *Engine) SetRunning(running bool) {
	if e.running == running {
		return
	}
	e.running = running
	if running {
		e.backoffState.reset()
	} else {
		e.closeLocked()
		e.state = StateDisconnected
	}
	e.emit(Event{Type: EventRunningStateChanged, Running: running})
}

// Reset clears all per-conversation state back to construction defaults,
// except the configured host/port, the resolved address and the default
// language, which Reset leaves untouched (callers may still replace it
// with SetLanguageDefault). The engine is left not-running and
// disconnected.
func (e *Engine) Reset() {
	e.closeLocked()
	e.room = ""
	e.playerName = ""
	e.hasPlayerName = false
	e.pinnedPersonID = nil
	e.pinnedConversationID = nil
	e.synced = false
	e.nMessagesReceived = 0
	e.running = false
	e.state = StateDisconnected
	e.backoffState.reset()
}

// BackoffDelay returns the delay the worker should wait before the next
// connect attempt, advancing the exponential backoff counter.
func (e *Engine) BackoffDelay() time.Duration {
	return e.backoffState.next()
}

func (e *Engine) closeLocked() {
	if e.conn != nil {
		e.conn.Close()
		e.conn = nil
		e.bufReader = nil
	}
}

// Close tears down any open socket without otherwise changing state.
func (e *Engine) Close() {
	e.closeLocked()
}

func (e *Engine) emit(evt Event) {
	if e.OnEvent != nil {
		e.OnEvent(evt)
	}
}

// Connect performs one full connection attempt: dial, WebSocket
// handshake, and (if a player name or pinned identity is already known)
// sending the identity message. It returns a non-fatal *ConnectionError
// on any I/O failure; the worker is responsible for backoff and retry.
func (e *Engine) Connect(ctx context.Context) error {
	if e.addr == "" {
		return ErrNoAddress
	}

	e.state = StateConnecting
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", e.addr)
	if err != nil {
		e.state = StateError
		return e.connectFailed(fmt.Errorf("dial %s: %w", e.addr, err))
	}

	e.conn = conn
	e.bufReader = bufio.NewReader(conn)
	e.synced = false

	e.state = StateWSHandshake
	if err := protocol.SendHandshake(conn); err != nil {
		e.closeLocked()
		e.state = StateError
		return e.connectFailed(fmt.Errorf("send handshake: %w", err))
	}
	if err := protocol.ReadHandshakeResponse(e.bufReader); err != nil {
		e.closeLocked()
		e.state = StateError
		return e.connectFailed(fmt.Errorf("read handshake response: %w", err))
	}

	e.state = StateAuthenticating
	if err := e.sendIdentity(); err != nil {
		e.closeLocked()
		e.state = StateError
		return e.connectFailed(fmt.Errorf("send identity: %w", err))
	}

	e.logger.Info("connected", "addr", e.addr, "start_type", e.StartType())
	return nil
}

func (e *Engine) connectFailed(err error) error {
	cerr := newConnectionError(ErrorConnectionClosed, err)
	e.emit(Event{Type: EventError, Synced: e.synced, Err: cerr})
	return cerr
}

func (e *Engine) sendIdentity() error {
	if e.conn == nil {
		return nil
	}
	switch {
	case e.pinnedPersonID != nil:
		return e.writeDirect(protocol.EncodeReconnect(*e.pinnedPersonID, e.nMessagesReceived))
	case e.pinnedConversationID != nil && e.hasPlayerName:
		return e.writeDirect(protocol.EncodeJoinGame(*e.pinnedConversationID, e.playerName))
	case e.hasPlayerName:
		return e.writeDirect(protocol.EncodeNewPlayer(e.room, e.playerName))
	default:
		// Stay paused in AUTHENTICATING until a name arrives.
		return nil
	}
}

func (e *Engine) writeDirect(payload []byte) error {
	if e.conn == nil {
		return ErrNotRunning
	}
	return protocol.WriteFrame(e.conn, payload)
}

// Send queues (and, since writes are synchronous over TCP, immediately
// flushes) one outbound command payload. It is a no-op if the engine is
// not currently connected — per §7, in-flight gameplay commands are
// dropped on disconnect rather than replayed; only identity messages are
// reconstructed on the next connect.
func (e *Engine) Send(payload []byte) error {
	if e.conn == nil || e.state != StateReady {
		return nil
	}
	if err := e.writeDirect(payload); err != nil {
		e.closeLocked()
		e.state = StateError
		return newConnectionError(ErrorConnectionClosed, fmt.Errorf("send: %w", err))
	}
	return nil
}

// ReadResult is one outcome of the background frame reader started by
// StartReading: either a decoded frame payload, or the error that ended
// the stream.
type ReadResult struct {
	Payload []byte
	Err     error
}

// StartReading launches a goroutine that does nothing but pull frames off
// the current connection's reader and post them to the returned channel,
// until a read fails. It must be called right after a successful Connect,
// by whichever goroutine is holding the worker lock at the time; the
// returned channel itself needs no lock to receive from, since the
// goroutine touches only the bufio.Reader captured at launch, never any
// other Engine field. This split — blocking wait with no lock held,
// versus Dispatch/HandleReadError which do mutate Engine state and so
// must be called with the lock held — is what lets command methods keep
// interleaving writes while a read is outstanding, without two goroutines
// ever touching the same Engine field unsynchronized.
func (e *Engine) StartReading() <-chan ReadResult {
	reader := e.bufReader
	ch := make(chan ReadResult, 8)
	go func() {
		defer close(ch)
		for {
			payload, err := protocol.ReadFrame(reader)
			ch <- ReadResult{Payload: payload, Err: err}
			if err != nil {
				return
			}
		}
	}()
	return ch
}

// HandleReadError translates a socket-level read failure (as opposed to a
// successfully read but malformed frame) into the same ERROR-event plus
// *ConnectionError shape Dispatch produces, and tears down the socket.
func (e *Engine) HandleReadError(err error) error {
	e.closeLocked()
	e.state = StateError
	kind := ErrorBadData
	if errors.Is(err, io.EOF) {
		kind = ErrorConnectionClosed
	}
	cerr := newConnectionError(kind, err)
	e.emit(Event{Type: EventError, Synced: e.synced, Err: cerr})
	return cerr
}

// Dispatch decodes and applies one frame payload already read off the
// wire, mutating engine state and emitting whatever Event results. The
// caller must hold the lock serializing access to this Engine.
func (e *Engine) Dispatch(payload []byte) error {
	op, body, err := protocol.DecodeOp(payload)
	if err != nil {
		cerr := newConnectionError(ErrorBadData, err)
		e.emit(Event{Type: EventError, Synced: e.synced, Err: cerr})
		return cerr
	}

	switch op {
	case protocol.OpHeader:
		hdr, err := protocol.DecodeHeader(body)
		if err != nil {
			return e.badData(err)
		}
		e.pinnedPersonID = &hdr.PersonID
		e.state = StateReady
		e.emit(Event{Type: EventHeader, Synced: e.synced, Header: hdr})

	case protocol.OpMessage:
		msg, err := protocol.DecodePlayerMessage(body)
		if err != nil {
			return e.badData(err)
		}
		e.nMessagesReceived++
		e.emit(Event{Type: EventMessage, Synced: e.synced, Message: msg})

	case protocol.OpNTiles, protocol.OpNTilesAlt:
		nt, err := protocol.DecodeNTiles(body)
		if err != nil {
			return e.badData(err)
		}
		e.emit(Event{Type: EventNTilesChanged, Synced: e.synced, NTiles: nt.N})

	case protocol.OpTile:
		tile, err := protocol.DecodeTile(body)
		if err != nil {
			return e.badData(err)
		}
		e.emit(Event{Type: EventTileChanged, Synced: e.synced, Tile: tile})

	case protocol.OpPlayerName:
		pn, err := protocol.DecodePlayerName(body)
		if err != nil {
			return e.badData(err)
		}
		e.emit(Event{Type: EventPlayerNameChanged, Synced: e.synced, PlayerName: pn})

	case protocol.OpPlayerFlags:
		pf, err := protocol.DecodePlayerFlags(body)
		if err != nil {
			return e.badData(err)
		}
		e.emit(Event{Type: EventPlayerFlagsChanged, Synced: e.synced, PlayerFlags: pf})

	case protocol.OpPlayerShouted:
		ps, err := protocol.DecodePlayerShouted(body)
		if err != nil {
			return e.badData(err)
		}
		e.emit(Event{Type: EventPlayerShouted, Synced: e.synced, ShoutingPlayer: ps.PlayerNum})

	case protocol.OpSync:
		e.synced = true

	case protocol.OpEnd:
		e.emit(Event{Type: EventEnd, Synced: e.synced})
		e.SetRunning(false)
		return errConversationEnded

	case protocol.OpConversationID:
		cid, err := protocol.DecodeConversationID(body)
		if err != nil {
			return e.badData(err)
		}
		e.emit(Event{Type: EventConversationID, Synced: e.synced, ConversationID: cid.ID})

	case protocol.OpLanguage:
		lang, err := protocol.DecodeLanguage(body)
		if err != nil {
			return e.badData(err)
		}
		e.emit(Event{Type: EventLanguageChanged, Synced: e.synced, Language: lang.Code})

	case protocol.OpBadPlayerID:
		cerr := newConnectionError(ErrorBadPlayerID, nil)
		e.emit(Event{Type: EventError, Synced: e.synced, Err: cerr})
		e.SetRunning(false)
		return cerr

	case protocol.OpConversationFull:
		cerr := newConnectionError(ErrorConversationFull, nil)
		e.emit(Event{Type: EventError, Synced: e.synced, Err: cerr})
		e.SetRunning(false)
		return cerr

	default:
		e.logger.Debug("ignoring unrecognised opcode", "op", op)
	}

	return nil
}

func (e *Engine) badData(err error) error {
	cerr := newConnectionError(ErrorBadData, err)
	e.emit(Event{Type: EventError, Synced: e.synced, Err: cerr})
	return cerr
}
