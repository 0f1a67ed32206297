package protocol

import (
	"bytes"
	"testing"
)

func TestEncodeNewPlayer(t *testing.T) {
	got := EncodeNewPlayer("test_room", "test_player")
	want := append([]byte{byte(OpNewPlayer)}, "test_room\x00test_player\x00"...)
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeNewPlayer = %q, want %q", got, want)
	}
}

func TestEncodeReconnect(t *testing.T) {
	got := EncodeReconnect(5, 0)
	want := []byte{byte(OpReconnect), 5, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeReconnect = %#v, want %#v", got, want)
	}
}

func TestEncodeJoinGame(t *testing.T) {
	got := EncodeJoinGame(0xfedcba9876543210, "bob")
	want := []byte{byte(OpJoinGame), 0x10, 0x32, 0x54, 0x76, 0x98, 0xba, 0xdc, 0xfe}
	want = append(want, "bob\x00"...)
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeJoinGame = %#v, want %#v", got, want)
	}
}

func TestDecodeHeader(t *testing.T) {
	body := append([]byte{0}, []byte("ghijklmn")...)
	hdr, err := DecodeHeader(body)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if hdr.SelfNum != 0 {
		t.Errorf("SelfNum = %d, want 0", hdr.SelfNum)
	}
	const want = 0x6e6d6c6b6a696867
	if hdr.PersonID != want {
		t.Errorf("PersonID = %#x, want %#x", hdr.PersonID, uint64(want))
	}
}

func TestDecodeTile(t *testing.T) {
	num := uint8(200)
	x := int16(num) * 257
	y := int16(-int(num))

	body := []byte{num}
	body = append(body, byte(x), byte(x>>8))
	body = append(body, byte(uint16(y)), byte(uint16(y)>>8))
	body = append(body, byte('A'+num%26))
	body = append(body, 1) // last_player_moved

	tile, err := DecodeTile(body)
	if err != nil {
		t.Fatalf("DecodeTile: %v", err)
	}
	if tile.Num != num || tile.X != x || tile.Y != y || tile.Letter != rune('A'+num%26) || tile.LastPlayerMoved != 1 {
		t.Errorf("DecodeTile = %+v", tile)
	}
}

func TestDecodeTileMultiByteLetter(t *testing.T) {
	// 'é' (U+00E9) is 2 bytes in UTF-8.
	letter := "é"
	body := []byte{9, 1, 0, 2, 0}
	body = append(body, letter...)
	body = append(body, 0) // last_player_moved

	tile, err := DecodeTile(body)
	if err != nil {
		t.Fatalf("DecodeTile: %v", err)
	}
	if tile.Letter != 'é' {
		t.Errorf("Letter = %q, want 'é'", tile.Letter)
	}
}

func TestDecodeOpEmpty(t *testing.T) {
	if _, _, err := DecodeOp(nil); err != ErrEmptyMessage {
		t.Errorf("err = %v, want ErrEmptyMessage", err)
	}
}

func TestDecodePlayerNameShort(t *testing.T) {
	_, err := DecodePlayerName([]byte{1})
	if err == nil {
		t.Error("expected error for missing terminator")
	}
}

func TestWriteReadFrameRoundTrip(t *testing.T) {
	payload := EncodeNewPlayer("test_room", "test_player")

	var buf bytes.Buffer
	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	want := append([]byte{0x82, byte(len(payload))}, payload...)
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("frame = %#v, want %#v", buf.Bytes(), want)
	}

	got, err := ReadFrame(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("ReadFrame = %#v, want %#v", got, payload)
	}
}

func TestReadFrameExtendedLength(t *testing.T) {
	payload := bytes.Repeat([]byte{'x'}, 200)
	var buf bytes.Buffer
	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if buf.Bytes()[1] != wsLen16 {
		t.Fatalf("expected extended 16-bit length marker")
	}

	got, err := ReadFrame(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("round trip mismatch for extended-length frame")
	}
}

func TestReadFrameMasked(t *testing.T) {
	payload := []byte("masked payload")
	maskKey := [4]byte{1, 2, 3, 4}
	masked := make([]byte, len(payload))
	for i, b := range payload {
		masked[i] = b ^ maskKey[i%4]
	}

	frame := []byte{0x82, 0x80 | byte(len(payload))}
	frame = append(frame, maskKey[:]...)
	frame = append(frame, masked...)

	got, err := ReadFrame(bytes.NewReader(frame))
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("unmasked payload = %q, want %q", got, payload)
	}
}

func TestSplitFrames(t *testing.T) {
	var buf bytes.Buffer
	WriteFrame(&buf, []byte{byte(OpNTiles), 255})
	WriteFrame(&buf, []byte{byte(OpSync)})

	frames, err := SplitFrames(buf.Bytes())
	if err != nil {
		t.Fatalf("SplitFrames: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if frames[0][0] != byte(OpNTiles) || frames[1][0] != byte(OpSync) {
		t.Errorf("unexpected frame contents: %#v", frames)
	}
}
