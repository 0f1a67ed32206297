// Package worker drives a connection.Engine on a single dedicated
// background goroutine, independent of whatever goroutine issues
// commands: every mutation of the engine, from any goroutine, must go
// through the Worker's lock first.
package worker

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/bpeel/verda-sxtelo/core/internal/connection"
)

// resolveRetryDelay is how long the worker waits before retrying a
// failed DNS lookup (§4.2).
const resolveRetryDelay = 10 * time.Second

// wakePollInterval bounds how long the run loop can go between checking
// engine state when nothing else has signalled it, standing in for a
// poll() deadline since net.Conn reads can't be woken by an external
// "poll set changed" notification the way a raw fd can.
const wakePollInterval = 200 * time.Millisecond

type config struct {
	logger *slog.Logger
}

// Option configures a Worker at construction time.
type Option func(*config)

// WithLogger sets the structured logger used for resolve-retry and
// reconnect diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// Worker owns the single background goroutine that drives a
// connection.Engine: connecting, reading, reconnecting with backoff, and
// resolving addresses off the critical path.
type Worker struct {
	logger *slog.Logger
	engine *connection.Engine

	mu sync.Mutex // guards every call into engine, plus the fields below

	resolveHost        string
	resolvePort        int
	resolving          bool
	lastResolveAttempt time.Time

	wake chan struct{}
	quit chan struct{}
	wg   sync.WaitGroup

	started bool
}

// New creates a Worker bound to engine. Call Start to launch its
// goroutine.
func New(engine *connection.Engine, opts ...Option) *Worker {
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{
		logger: cfg.logger,
		engine: engine,
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
	}
}

// Lock acquires the worker's mutex. Callers must call Unlock before
// returning. This is the only way outside code may safely call methods
// on the wrapped Engine.
func (w *Worker) Lock() { w.mu.Lock() }

// Unlock releases the worker's mutex.
func (w *Worker) Unlock() { w.mu.Unlock() }

// Engine returns the wrapped engine. Callers must hold Lock while calling
// any mutating method on it.
func (w *Worker) Engine() *connection.Engine { return w.engine }

// Start launches the background goroutine. It is a no-op if already
// started.
func (w *Worker) Start() {
	if w.started {
		return
	}
	w.started = true
	w.wg.Add(1)
	go w.run()
}

// Wake nudges the run loop to re-check engine state immediately instead
// of waiting for its next poll tick — the Go stand-in for signalling the
// wakeup pipe.
func (w *Worker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// QueueAddressResolve stores a pending DNS lookup for host:port, calls
// SetAddress on the engine right away, wakes the run loop, and lets the
// lookup run off the lock. On success it calls SetResolvedAddr on the
// engine; on failure it
// retries every resolveRetryDelay until it succeeds or the worker is
// freed.
func (w *Worker) QueueAddressResolve(host string, port int) {
	w.mu.Lock()
	w.resolveHost = host
	w.resolvePort = port
	w.resolving = true
	w.engine.SetAddress(host, port)
	w.mu.Unlock()
	w.Wake()
}

// Free stops the run loop and waits for it to exit. Safe to call even if
// Start was never called.
func (w *Worker) Free() {
	select {
	case <-w.quit:
		// already closed
	default:
		close(w.quit)
	}
	if w.started {
		w.wg.Wait()
	}
}

func (w *Worker) run() {
	defer w.wg.Done()

	for {
		if w.quitting() {
			return
		}

		w.mu.Lock()
		running := w.engine.Running()
		hasAddr := w.engine.HasAddress()
		needsResolve := w.resolving
		resolved := w.engine.ResolvedAddr() != ""
		w.mu.Unlock()

		if !running || !hasAddr {
			if w.idleWait() {
				return
			}
			continue
		}

		if needsResolve && !resolved {
			if w.resolveDue() {
				w.doResolve()
			}
			if w.idleWait() {
				return
			}
			continue
		}

		if !resolved {
			if w.idleWait() {
				return
			}
			continue
		}

		w.connectAndServe()
	}
}

// quitting reports whether Free has been called.
func (w *Worker) quitting() bool {
	select {
	case <-w.quit:
		return true
	default:
		return false
	}
}

// idleWait blocks until woken, the quit channel fires, or the poll
// interval elapses, whichever comes first. It returns true if the worker
// should exit.
func (w *Worker) idleWait() bool {
	select {
	case <-w.quit:
		return true
	case <-w.wake:
		return false
	case <-time.After(wakePollInterval):
		return false
	}
}

// resolveDue reports whether enough time has passed since the last failed
// resolve attempt to try again, so a DNS outage gets retried every
// resolveRetryDelay rather than on every wakePollInterval tick of the run
// loop.
func (w *Worker) resolveDue() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return time.Since(w.lastResolveAttempt) >= resolveRetryDelay
}

func (w *Worker) doResolve() {
	w.mu.Lock()
	host, port := w.resolveHost, w.resolvePort
	w.lastResolveAttempt = time.Now()
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	cancel()

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.logger.Warn("address resolve failed, retrying", "host", host, "err", err)
		return
	}
	if len(addrs) == 0 {
		w.logger.Warn("address resolve returned no results, retrying", "host", host)
		return
	}

	resolved := net.JoinHostPort(addrs[0], strconv.Itoa(port))
	w.engine.SetResolvedAddr(resolved)
	w.resolving = false
	w.logger.Info("resolved address", "host", host, "addr", resolved)
}

// connectAndServe performs one connect attempt and, on success, services
// its frame stream until the connection drops. Only the brief
// Dispatch/HandleReadError call per frame holds the worker lock; the
// blocking wait for the next frame happens in the reader goroutine
// started by StartReading, so a command call from another goroutine can
// still interleave a write while a read is outstanding. It owns the
// backoff delay for a failed connect attempt or an unexpected disconnect
// while running.
func (w *Worker) connectAndServe() {
	w.mu.Lock()
	err := w.engine.Connect(context.Background())
	var frames <-chan connection.ReadResult
	if err == nil {
		frames = w.engine.StartReading()
	}
	w.mu.Unlock()

	if err != nil {
		w.backoffThenWait()
		return
	}

	for {
		select {
		case <-w.quit:
			w.mu.Lock()
			w.engine.Close()
			w.mu.Unlock()
			// Drain the reader goroutine so it doesn't leak; Close
			// interrupts its blocking read and it will send one more
			// result before closing the channel.
			<-frames
			return

		case res := <-frames:
			w.mu.Lock()
			var dispatchErr error
			if res.Err != nil {
				dispatchErr = w.engine.HandleReadError(res.Err)
			} else {
				dispatchErr = w.engine.Dispatch(res.Payload)
			}
			w.mu.Unlock()

			if dispatchErr == nil {
				continue
			}

			if connection.ErrConversationEnded(dispatchErr) {
				w.mu.Lock()
				w.engine.Close()
				w.mu.Unlock()
				return
			}

			w.mu.Lock()
			stillRunning := w.engine.Running()
			fatal := false
			if cerr, ok := asConnectionError(dispatchErr); ok {
				fatal = cerr.Kind.Fatal()
			}
			w.engine.Close()
			w.mu.Unlock()

			if fatal || !stillRunning {
				return
			}

			w.backoffThenWait()
			return
		}
	}
}

func asConnectionError(err error) (*connection.ConnectionError, bool) {
	cerr, ok := err.(*connection.ConnectionError)
	return cerr, ok
}

func (w *Worker) backoffThenWait() {
	w.mu.Lock()
	delay := w.engine.BackoffDelay()
	w.mu.Unlock()

	w.logger.Debug("reconnecting after backoff", "delay", delay)

	select {
	case <-w.quit:
	case <-time.After(delay):
	}
}
