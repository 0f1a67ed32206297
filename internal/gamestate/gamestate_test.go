package gamestate

import (
	"testing"

	"github.com/bpeel/verda-sxtelo/core/internal/connection"
	"github.com/bpeel/verda-sxtelo/core/internal/protocol"
	"github.com/bpeel/verda-sxtelo/core/internal/worker"
)

func newTestGameState() *GameState {
	w := worker.New(connection.New())
	return New(w)
}

func TestApplyHeaderSetsConnectedAndSelf(t *testing.T) {
	gs := newTestGameState()
	var mods []Modified
	gs.AddListener(func(m Modified) { mods = append(mods, m) })

	gs.onConnectionEvent(connection.Event{
		Type:   connection.EventHeader,
		Header: protocol.Header{SelfNum: 2, PersonID: 7},
	})
	gs.Flush()

	if !gs.Connected() {
		t.Error("Connected() = false, want true after HEADER")
	}
	if gs.Self() != 2 {
		t.Errorf("Self() = %d, want 2", gs.Self())
	}
	if len(mods) != 1 || mods[0].Kind != ModifiedConnected {
		t.Errorf("mods = %+v, want one ModifiedConnected", mods)
	}
}

func TestShoutLifecycle(t *testing.T) {
	gs := newTestGameState()

	gs.onConnectionEvent(connection.Event{Type: connection.EventPlayerShouted, ShoutingPlayer: 3})
	gs.Flush()

	if gs.ShoutingPlayer() != 3 {
		t.Fatalf("ShoutingPlayer() = %d, want 3", gs.ShoutingPlayer())
	}

	// Simulate the 10s shout timer firing without waiting for it.
	gs.clearShout()
	gs.Flush()

	if gs.ShoutingPlayer() != -1 {
		t.Errorf("ShoutingPlayer() = %d, want -1 after clear", gs.ShoutingPlayer())
	}
}

func TestResetIsDeferredPastTheTriggeringFlush(t *testing.T) {
	gs := newTestGameState()
	var mods []Modified
	gs.AddListener(func(m Modified) { mods = append(mods, m) })

	gs.onConnectionEvent(connection.Event{
		Type:   connection.EventHeader,
		Header: protocol.Header{SelfNum: 0, PersonID: 1},
	})
	gs.onConnectionEvent(connection.Event{
		Type: connection.EventError,
		Err:  &connection.ConnectionError{Kind: connection.ErrorBadPlayerID},
	})
	gs.Flush()

	if gs.Connected() {
		t.Error("Connected() = true, want false immediately after the ERROR event")
	}
	for _, m := range mods {
		if m.Kind == ModifiedReset {
			t.Fatal("ModifiedReset delivered synchronously with the triggering ERROR, want deferred to next Flush")
		}
	}

	mods = nil
	gs.Flush()

	var gotReset bool
	for _, m := range mods {
		if m.Kind == ModifiedReset {
			gotReset = true
		}
	}
	if !gotReset {
		t.Error("ModifiedReset not delivered on the Flush call after the one that scheduled it")
	}
	if gs.HasPlayerName() {
		t.Error("HasPlayerName() = true after reset, want false")
	}
}

func TestSetTypingIsLocalOnly(t *testing.T) {
	gs := newTestGameState()
	gs.onConnectionEvent(connection.Event{
		Type:   connection.EventHeader,
		Header: protocol.Header{SelfNum: 0, PersonID: 1},
	})
	gs.Flush()

	var mods []Modified
	gs.AddListener(func(m Modified) { mods = append(mods, m) })

	gs.SetTyping(true)

	found := false
	for i := range gs.players {
		if i == int(gs.Self()) && gs.players[i].has(PlayerTyping) {
			found = true
		}
	}
	if !found {
		t.Error("self player's PlayerTyping flag not set after SetTyping(true)")
	}
	if len(mods) != 1 || mods[0].Kind != ModifiedPlayerFlags {
		t.Errorf("mods = %+v, want one ModifiedPlayerFlags", mods)
	}

	// Setting to the same value again must be a no-op notification-wise.
	mods = nil
	gs.SetTyping(true)
	if len(mods) != 0 {
		t.Errorf("mods = %+v, want none for a redundant SetTyping", mods)
	}
}

func TestInstanceStateRoundTrip(t *testing.T) {
	gs := newTestGameState()

	gs.LoadInstanceState("person_id=5,dialog=none")

	if !gs.HasPlayerName() {
		t.Error("HasPlayerName() = false after loading a person_id, want true")
	}
	if gs.Dialog() != DialogNone {
		t.Errorf("Dialog() = %v, want none", gs.Dialog())
	}

	saved := gs.SaveInstanceState()
	want := "person_id=0000000000000005,dialog=none"
	if saved != want {
		t.Errorf("SaveInstanceState() = %q, want %q", saved, want)
	}
}

func TestInstanceStateDialogAlwaysPresentAfterReset(t *testing.T) {
	gs := newTestGameState()
	gs.Reset()

	saved := gs.SaveInstanceState()
	if saved != "dialog=name" {
		t.Errorf("SaveInstanceState() after Reset = %q, want %q", saved, "dialog=name")
	}
}

func TestChecksumRoundTrip(t *testing.T) {
	state := "person_id=0000000000000005,dialog=none"
	sum := Checksum(state)
	if !VerifyChecksum(state, sum) {
		t.Errorf("VerifyChecksum(%q, %q) = false, want true", state, sum)
	}
	if VerifyChecksum(state+"x", sum) {
		t.Error("VerifyChecksum matched a tampered state")
	}
}

func TestApplyTileChangedAddsAndReordersTiles(t *testing.T) {
	gs := newTestGameState()

	gs.onConnectionEvent(connection.Event{Type: connection.EventTileChanged, Tile: protocol.Tile{Num: 0, X: 1, Y: 2, Letter: 'A'}})
	gs.onConnectionEvent(connection.Event{Type: connection.EventTileChanged, Tile: protocol.Tile{Num: 1, X: 3, Y: 4, Letter: 'B'}})
	gs.Flush()

	var order []uint8
	gs.ForeachTile(func(tile Tile) { order = append(order, tile.Num) })
	if len(order) != 2 || order[0] != 0 || order[1] != 1 {
		t.Fatalf("tile order = %v, want [0 1]", order)
	}

	// Moving an already-known tile must not duplicate it, and must move it
	// to the back of the order as the most recently updated.
	gs.onConnectionEvent(connection.Event{Type: connection.EventTileChanged, Tile: protocol.Tile{Num: 0, X: 5, Y: 6, Letter: 'A'}})
	gs.Flush()

	order = nil
	var gotX, gotY int16
	gs.ForeachTile(func(tile Tile) {
		order = append(order, tile.Num)
		if tile.Num == 0 {
			gotX, gotY = tile.X, tile.Y
		}
	})
	if len(order) != 2 || order[0] != 1 || order[1] != 0 {
		t.Fatalf("tile order after move = %v, want [1 0]", order)
	}
	if gotX != 5 || gotY != 6 {
		t.Errorf("moved tile position = (%d,%d), want (5,6)", gotX, gotY)
	}
}

func TestApplyTileChangedClosesInviteLinkDialogOnFirstTile(t *testing.T) {
	gs := newTestGameState()
	gs.SetDialog(DialogInviteLink)

	gs.onConnectionEvent(connection.Event{Type: connection.EventTileChanged, Tile: protocol.Tile{Num: 0, Letter: 'A'}})
	gs.Flush()

	if gs.Dialog() == DialogInviteLink {
		t.Error("Dialog() still InviteLink after the first tile arrived")
	}
}

func TestNTilesChangedUpdatesCountAndRemaining(t *testing.T) {
	gs := newTestGameState()
	var mods []Modified
	gs.AddListener(func(m Modified) { mods = append(mods, m) })

	gs.onConnectionEvent(connection.Event{Type: connection.EventNTilesChanged, NTiles: 10})
	gs.Flush()

	if gs.NTiles() != 10 {
		t.Fatalf("NTiles() = %d, want 10", gs.NTiles())
	}
	if gs.RemainingTiles() != 10 {
		t.Errorf("RemainingTiles() = %d, want 10 with no tiles placed", gs.RemainingTiles())
	}

	var gotNTiles, gotRemaining bool
	for _, m := range mods {
		switch m.Kind {
		case ModifiedNTiles:
			gotNTiles = true
		case ModifiedRemainingTiles:
			gotRemaining = true
		}
	}
	if !gotNTiles || !gotRemaining {
		t.Errorf("mods = %+v, want both ModifiedNTiles and ModifiedRemainingTiles", mods)
	}

	mods = nil
	gs.onConnectionEvent(connection.Event{Type: connection.EventTileChanged, Tile: protocol.Tile{Num: 0, Letter: 'A'}})
	gs.onConnectionEvent(connection.Event{Type: connection.EventTileChanged, Tile: protocol.Tile{Num: 1, Letter: 'B'}})
	gs.Flush()

	if gs.RemainingTiles() != 8 {
		t.Errorf("RemainingTiles() = %d, want 8 after placing 2 of 10", gs.RemainingTiles())
	}

	// N_TILES repeating the same value must not re-notify.
	mods = nil
	gs.onConnectionEvent(connection.Event{Type: connection.EventNTilesChanged, NTiles: 10})
	gs.Flush()
	if len(mods) != 0 {
		t.Errorf("mods = %+v, want none for a redundant N_TILES", mods)
	}
}

func TestParseInviteLink(t *testing.T) {
	id, ok := ParseInviteLink("https://gemelo.org/invite?id=6e6d6c6b6a696867")
	if !ok {
		t.Fatal("ParseInviteLink returned ok=false for a valid invite URL")
	}
	if id != 0x6e6d6c6b6a696867 {
		t.Errorf("id = %x, want 6e6d6c6b6a696867", id)
	}

	if _, ok := ParseInviteLink("https://gemelo.org/invite"); ok {
		t.Error("ParseInviteLink returned ok=true for a URL with no id parameter")
	}
}
