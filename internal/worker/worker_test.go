package worker

import (
	"bufio"
	"io"
	"net"
	"testing"
	"time"

	"github.com/bpeel/verda-sxtelo/core/internal/connection"
	"github.com/bpeel/verda-sxtelo/core/internal/protocol"
)

func TestStartFreeWithoutAddress(t *testing.T) {
	e := connection.New()
	w := New(e)
	w.Start()
	// Running is false and no address is set, so the run loop should sit
	// in idleWait until Free asks it to exit.
	done := make(chan struct{})
	go func() {
		w.Free()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Free did not return; run loop stuck")
	}
}

func TestFreeBeforeStartIsSafe(t *testing.T) {
	w := New(connection.New())
	w.Free() // must not panic or block
}

// serverHandshakeAndServe performs the server side of one WebSocket
// handshake on conn, reads and discards the client's identity frame, then
// writes each payload in frames as its own WebSocket frame, back to back,
// simulating a conversation server for the worker to connect against.
func serverHandshakeAndServe(t *testing.T, conn net.Conn, frames [][]byte) {
	t.Helper()
	defer conn.Close()

	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		if line == "\r\n" {
			break
		}
	}
	if _, err := io.WriteString(conn, "HTTP/1.1 101 Switching Protocols\r\n\r\n"); err != nil {
		return
	}

	// Discard the client's identity message; we don't care about its
	// contents for this test.
	if _, err := protocol.ReadFrame(r); err != nil {
		return
	}

	for _, f := range frames {
		if err := protocol.WriteFrame(conn, f); err != nil {
			return
		}
	}
}

func TestConnectAndServeDispatchesThenEnds(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	headerFrame := append([]byte{byte(protocol.OpHeader)}, encodeHeaderBody(1, 99)...)
	endFrame := []byte{byte(protocol.OpEnd)}

	acceptDone := make(chan struct{})
	go func() {
		defer close(acceptDone)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		serverHandshakeAndServe(t, conn, [][]byte{headerFrame, endFrame})
	}()

	e := connection.New()
	events := make(chan connection.Event, 8)
	e.OnEvent = func(evt connection.Event) { events <- evt }
	if err := e.SetPlayerName("tester"); err != nil {
		t.Fatalf("SetPlayerName: %v", err)
	}

	w := New(e)
	w.Start()
	defer w.Free()

	addr := ln.Addr().(*net.TCPAddr)
	w.QueueAddressResolve("127.0.0.1", addr.Port)

	w.Lock()
	e.SetRunning(true)
	w.Unlock()
	w.Wake()

	var gotHeader, gotEnd bool
	deadline := time.After(3 * time.Second)
	for !gotHeader || !gotEnd {
		select {
		case evt := <-events:
			switch evt.Type {
			case connection.EventHeader:
				gotHeader = true
			case connection.EventEnd:
				gotEnd = true
			}
		case <-deadline:
			t.Fatalf("timed out waiting for events, got header=%v end=%v", gotHeader, gotEnd)
		}
	}

	<-acceptDone
}

func encodeHeaderBody(selfNum uint8, personID uint64) []byte {
	buf := make([]byte, 0, 9)
	buf = append(buf, selfNum)
	for i := 0; i < 8; i++ {
		buf = append(buf, byte(personID>>(8*i)))
	}
	return buf
}
