// Command vsxclient is a thin terminal client for the Verda Ŝtelo word
// game: it owns no presentation layer of its own, only the flag parsing
// and idle loop needed to drive a gamestate.GameState and print its
// notifications.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bpeel/verda-sxtelo/core/internal/connection"
	"github.com/bpeel/verda-sxtelo/core/internal/gamestate"
	"github.com/bpeel/verda-sxtelo/core/internal/worker"
)

func main() {
	host := flag.String("s", "gemelo.org", "Server host to connect to")
	port := flag.Int("p", 5144, "Server port to connect to")
	room := flag.String("r", "", "Room name to join")
	playerName := flag.String("n", "", "Player name")
	inviteURL := flag.String("u", "", "An invite URL of a game to join")
	instanceState := flag.String("i", "", "Saved instance state to resume from")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var pinnedConversationID uint64
	var hasInvite bool
	if *inviteURL != "" {
		id, ok := gamestate.ParseInviteLink(*inviteURL)
		if !ok {
			fmt.Fprintf(os.Stderr, "invite URL invalid: %s\n", *inviteURL)
			os.Exit(1)
		}
		pinnedConversationID, hasInvite = id, true
	}

	engine := connection.New(connection.WithLogger(logger))
	engine.SetAddress(*host, *port)
	if *room != "" {
		engine.SetRoom(*room)
	}

	w := worker.New(engine, worker.WithLogger(logger))

	flushCh := make(chan struct{}, 1)
	requestFlush := func() {
		select {
		case flushCh <- struct{}{}:
		default:
		}
	}

	gs := gamestate.New(w, gamestate.WithLogger(logger), gamestate.WithRequestFlush(requestFlush))
	gs.AddListener(func(m gamestate.Modified) {
		if m.Kind == gamestate.ModifiedNote {
			fmt.Println(m.Text)
			return
		}
		logger.Debug("modified", "kind", m.Kind.String())
	})

	if *instanceState != "" {
		gs.LoadInstanceState(*instanceState)
	}
	if hasInvite {
		gs.ResetForConversationID(pinnedConversationID)
	}
	if *playerName != "" {
		gs.SetPlayerName(*playerName)
	}

	w.Start()
	w.QueueAddressResolve(*host, *port)

	w.Lock()
	engine.SetRunning(true)
	w.Unlock()
	w.Wake()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-flushCh:
			gs.Flush()
		case <-sigCh:
			fmt.Println(gs.SaveInstanceState())
			w.Free()
			return
		}
	}
}
