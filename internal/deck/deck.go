package deck

import (
	rand "math/rand/v2"
)

// Deck represents a standard 52-card deck
type Deck struct {
	cards []Card
	rng   *rand.Rand
}

// NewDeck creates a new 52-card deck in index order. Call Shuffle before dealing.
func NewDeck(rng *rand.Rand) *Deck {
	d := &Deck{
		cards: make([]Card, 0, 52),
		rng:   rng,
	}
	d.fill()
	return d
}

func (d *Deck) fill() {
	d.cards = d.cards[:0]
	for i := 0; i < 52; i++ {
		card, _ := FromIndex(i)
		d.cards = append(d.cards, card)
	}
}

// Shuffle randomizes the order of cards in the deck
func (d *Deck) Shuffle() {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := d.rng.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Deal removes and returns the top card from the deck
func (d *Deck) Deal() (Card, bool) {
	if len(d.cards) == 0 {
		return Card{}, false
	}

	card := d.cards[0]
	d.cards = d.cards[1:]
	return card, true
}

// DealN deals up to n cards from the deck
func (d *Deck) DealN(n int) []Card {
	if n > len(d.cards) {
		n = len(d.cards)
	}

	cards := make([]Card, n)
	copy(cards, d.cards[:n])
	d.cards = d.cards[n:]
	return cards
}

// CardsRemaining returns the number of cards left in the deck
func (d *Deck) CardsRemaining() int {
	return len(d.cards)
}

// Reset restores the deck to a full 52-card deck and shuffles it
func (d *Deck) Reset() {
	d.cards = make([]Card, 0, 52)
	d.fill()
	d.Shuffle()
}
