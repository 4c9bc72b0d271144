package holdem

import (
	"crypto/rand"
	"encoding/binary"
)

// cryptoChoice returns a uniform random index in [0, n) using
// crypto/rand, used for the first-hand random dealer pick.
func cryptoChoice(n int) int {
	if n <= 0 {
		return 0
	}
	max := uint64(1) << 63
	limit := max - (max % uint64(n))
	var buf [8]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			panic("holdem: crypto/rand unavailable: " + err.Error())
		}
		v := binary.BigEndian.Uint64(buf[:]) &^ (1 << 63)
		if v < limit {
			return int(v % uint64(n))
		}
	}
}
