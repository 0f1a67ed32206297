package protocol

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// HandshakeRequest is the literal HTTP/1.1 upgrade request the client
// sends to open the WebSocket. The key is fixed, not computed, because the
// core never validates the server's Sec-WebSocket-Accept response — it
// only waits for the response to end in a blank line and discards it.
const HandshakeRequest = "GET / HTTP/1.1\r\n" +
	"Upgrade: websocket\r\n" +
	"Connection: Upgrade\r\n" +
	"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
	"\r\n"

// SendHandshake writes the upgrade request to w.
func SendHandshake(w io.Writer) error {
	_, err := io.WriteString(w, HandshakeRequest)
	return err
}

// ReadHandshakeResponse reads and discards bytes from r up to and
// including the first "\r\n\r\n", without interpreting the response at
// all. It returns an error only on an underlying read failure.
func ReadHandshakeResponse(r *bufio.Reader) error {
	var tail [4]byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("read handshake response: %w", err)
		}
		tail[0], tail[1], tail[2], tail[3] = tail[1], tail[2], tail[3], b
		if tail == [4]byte{'\r', '\n', '\r', '\n'} {
			return nil
		}
	}
}

const (
	wsOpcodeBinary = 0x2
	wsFinBit       = 0x80
	wsMaskBit      = 0x80
	wsLen16        = 126
	wsLen64        = 127
)

// WriteFrame writes payload as a single unmasked FIN binary WebSocket
// frame. The test vectors in the wire protocol spec pin the literal short
// form (0x82 <len> ...) for payloads under 126 bytes; payloads up to
// 0xffff bytes use the 16-bit extended length form and larger ones the
// 64-bit form, matching the encodings the core must be able to both emit
// and, defensively, accept from a server.
func WriteFrame(w io.Writer, payload []byte) error {
	var header []byte
	switch {
	case len(payload) < wsLen16:
		header = []byte{wsFinBit | wsOpcodeBinary, byte(len(payload))}
	case len(payload) <= 0xffff:
		header = make([]byte, 4)
		header[0] = wsFinBit | wsOpcodeBinary
		header[1] = wsLen16
		binary.BigEndian.PutUint16(header[2:], uint16(len(payload)))
	default:
		header = make([]byte, 10)
		header[0] = wsFinBit | wsOpcodeBinary
		header[1] = wsLen64
		binary.BigEndian.PutUint64(header[2:], uint64(len(payload)))
	}

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one WebSocket frame from r and returns its payload.
// Only the binary opcode is understood; any other opcode is an error. A
// masked frame (as a real client would never send, but which the core
// accepts defensively in the server->client direction since RFC 6455
// places no requirement on the server to omit the mask bit) is unmasked
// before being returned.
func ReadFrame(r io.Reader) ([]byte, error) {
	var first [2]byte
	if _, err := io.ReadFull(r, first[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	if first[0]&0x0f != wsOpcodeBinary {
		return nil, fmt.Errorf("protocol: unexpected websocket opcode 0x%x", first[0]&0x0f)
	}

	masked := first[1]&wsMaskBit != 0
	length := uint64(first[1] &^ wsMaskBit)

	switch length {
	case wsLen16:
		var ext [2]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return nil, fmt.Errorf("read frame extended length: %w", err)
		}
		length = uint64(binary.BigEndian.Uint16(ext[:]))
	case wsLen64:
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return nil, fmt.Errorf("read frame extended length: %w", err)
		}
		length = binary.BigEndian.Uint64(ext[:])
	}

	var maskKey [4]byte
	if masked {
		if _, err := io.ReadFull(r, maskKey[:]); err != nil {
			return nil, fmt.Errorf("read frame mask key: %w", err)
		}
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}

	if masked {
		for i := range payload {
			payload[i] ^= maskKey[i%4]
		}
	}

	return payload, nil
}

// SplitFrames is a convenience used by tests to decode every frame out of
// a single buffer containing a back-to-back sequence of frames.
func SplitFrames(data []byte) ([][]byte, error) {
	r := bytes.NewReader(data)
	var frames [][]byte
	for r.Len() > 0 {
		payload, err := ReadFrame(r)
		if err != nil {
			return nil, err
		}
		frames = append(frames, payload)
	}
	return frames, nil
}
