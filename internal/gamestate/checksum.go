package gamestate

import (
	"encoding/hex"
	"hash/crc32"
)

// Checksum returns an 8-character hex digest of an instance-state string
// as produced by SaveInstanceState. A host that round-trips that string
// through storage it doesn't fully trust (clipboard, cloud sync, a
// hand-edited config file) can store this alongside it and call
// VerifyChecksum before handing the string to LoadInstanceState, the way
// the original's encryption handshake appends a CRC over its encoded
// blob rather than trusting the transport.
func Checksum(state string) string {
	sum := crc32.ChecksumIEEE([]byte(state))
	buf := make([]byte, 4)
	buf[0] = byte(sum >> 24)
	buf[1] = byte(sum >> 16)
	buf[2] = byte(sum >> 8)
	buf[3] = byte(sum)
	return hex.EncodeToString(buf)
}

// VerifyChecksum reports whether checksum matches Checksum(state).
func VerifyChecksum(state, checksum string) bool {
	return Checksum(state) == checksum
}
