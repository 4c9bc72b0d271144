package card

import (
	"crypto/rand"
	"encoding/binary"
)

// CardList is an ordered sequence of cards. It backs both the dealing shoe
// (the Deck from the data model) and a player's held/community cards.
type CardList []Card

func (ds *CardList) Init(cards []Card) {
	*ds = make([]Card, len(cards))
	copy(*ds, cards)
}

func (ds CardList) Count() int {
	return len(ds)
}

func (ds CardList) CardsBytes() []byte {
	return Cards2bytes(ds)
}

// Shuffle performs an in-place Fisher-Yates shuffle using a cryptographically
// strong source of randomness, as required for a fair shuffled draw.
func (ds CardList) Shuffle() {
	for i := len(ds) - 1; i > 0; i-- {
		j := cryptoIntn(i + 1)
		ds[i], ds[j] = ds[j], ds[i]
	}
}

// cryptoIntn returns a uniform random int in [0, n) using crypto/rand.
func cryptoIntn(n int) int {
	if n <= 0 {
		return 0
	}
	// Rejection sampling over a 63-bit range to avoid modulo bias.
	max := uint64(1) << 63
	limit := max - (max % uint64(n))
	var buf [8]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			panic("card: crypto/rand unavailable: " + err.Error())
		}
		v := binary.BigEndian.Uint64(buf[:]) &^ (1 << 63)
		if v < limit {
			return int(v % uint64(n))
		}
	}
}

func (ds *CardList) Add(cards ...Card) {
	*ds = append(*ds, cards...)
}

// PopCard removes and returns the last card in the list.
func (ds *CardList) PopCard() Card {
	totalCount := ds.Count()
	if totalCount == 0 {
		return CardInvalid
	}
	c := (*ds)[totalCount-1]
	*ds = (*ds)[:totalCount-1]
	return c
}

// PopCards removes and returns the front `size` cards, matching the data
// model's "draw removes from the front" rule.
func (ds *CardList) PopCards(size int) ([]Card, bool) {
	if size > ds.Count() {
		return nil, false
	}
	cards := make([]Card, size)
	copy(cards, (*ds)[:size])
	*ds = (*ds)[size:]
	return cards, true
}
