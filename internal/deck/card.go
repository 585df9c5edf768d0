package deck

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Suit represents a card suit
type Suit int

const (
	Spades Suit = iota
	Hearts
	Clubs
	Diamonds
)

// Suits lists every suit in index order
var Suits = [...]Suit{Spades, Hearts, Clubs, Diamonds}

// String returns the string representation of a suit
func (s Suit) String() string {
	switch s {
	case Spades:
		return "♠"
	case Hearts:
		return "♥"
	case Clubs:
		return "♣"
	case Diamonds:
		return "♦"
	default:
		return "?"
	}
}

// Name returns the engine's name for the suit
func (s Suit) Name() string {
	switch s {
	case Spades:
		return "Spades"
	case Hearts:
		return "Hearts"
	case Clubs:
		return "Clubs"
	case Diamonds:
		return "Diamonds"
	default:
		return ""
	}
}

// Letter returns the single lowercase letter used in compact card notation
func (s Suit) Letter() byte {
	switch s {
	case Spades:
		return 's'
	case Hearts:
		return 'h'
	case Clubs:
		return 'c'
	case Diamonds:
		return 'd'
	default:
		return '?'
	}
}

// Valid reports whether s is one of the four suits
func (s Suit) Valid() bool {
	return s >= Spades && s <= Diamonds
}

// IsRed returns true if the suit is red (Hearts or Diamonds)
func (s Suit) IsRed() bool {
	return s == Hearts || s == Diamonds
}

func (s Suit) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid suit %d", int(s))
	}
	return json.Marshal(s.Name())
}

func (s *Suit) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("suit: %w", err)
	}
	parsed, err := ParseSuit(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSuit accepts either the engine name ("Hearts") or the compact letter ("h")
func ParseSuit(s string) (Suit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spades", "s":
		return Spades, nil
	case "hearts", "h":
		return Hearts, nil
	case "clubs", "c":
		return Clubs, nil
	case "diamonds", "d":
		return Diamonds, nil
	}
	return 0, fmt.Errorf("invalid suit: %q", s)
}

// Rank represents a card rank
type Rank int

const (
	Two Rank = iota + 2
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

// String returns the compact representation of a rank
func (r Rank) String() string {
	switch r {
	case Two, Three, Four, Five, Six, Seven, Eight, Nine:
		return string(rune('0' + int(r)))
	case Ten:
		return "T"
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	case Ace:
		return "A"
	default:
		return "?"
	}
}

// Name returns the engine's name for the rank ("2".."10", "Jack", ..., "Ace")
func (r Rank) Name() string {
	switch r {
	case Ten:
		return "10"
	case Jack:
		return "Jack"
	case Queen:
		return "Queen"
	case King:
		return "King"
	case Ace:
		return "Ace"
	}
	if r.Valid() {
		return r.String()
	}
	return ""
}

// Valid reports whether r lies in 2..Ace
func (r Rank) Valid() bool {
	return r >= Two && r <= Ace
}

// Ordinal returns 0 for Two through 12 for Ace
func (r Rank) Ordinal() int {
	return int(r - Two)
}

// ChipValue is the number of chips the rank adds when the card scores
func (r Rank) ChipValue() int {
	switch {
	case r == Ace:
		return 11
	case r >= Jack && r <= King:
		return 10
	case r.Valid():
		return int(r)
	default:
		return 0
	}
}

func (r Rank) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid rank %d", int(r))
	}
	return json.Marshal(r.Name())
}

func (r *Rank) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("rank: %w", err)
	}
	parsed, err := ParseRank(name)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRank accepts engine names ("10", "Queen") and compact letters ("T", "Q")
func ParseRank(s string) (Rank, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "2":
		return Two, nil
	case "3":
		return Three, nil
	case "4":
		return Four, nil
	case "5":
		return Five, nil
	case "6":
		return Six, nil
	case "7":
		return Seven, nil
	case "8":
		return Eight, nil
	case "9":
		return Nine, nil
	case "10", "t":
		return Ten, nil
	case "jack", "j":
		return Jack, nil
	case "queen", "q":
		return Queen, nil
	case "king", "k":
		return King, nil
	case "ace", "a":
		return Ace, nil
	}
	return 0, fmt.Errorf("invalid rank: %q", s)
}

// Card represents a playing card. Enhancements, editions and seals sent by the
// engine are ignored when decoding.
type Card struct {
	Rank Rank `json:"rank"`
	Suit Suit `json:"suit"`
}

// NewCard creates a new card
func NewCard(suit Suit, rank Rank) Card {
	return Card{Suit: suit, Rank: rank}
}

// String returns the compact representation of a card (e.g., "As", "Th")
func (c Card) String() string {
	return c.Rank.String() + string(c.Suit.Letter())
}

// Pretty returns the card with a suit symbol (e.g., "A♠")
func (c Card) Pretty() string {
	return c.Rank.String() + c.Suit.String()
}

// ChipValue returns the chips this card adds when it scores
func (c Card) ChipValue() int {
	return c.Rank.ChipValue()
}

// Index maps the card onto 0..51: rank ordinal plus 13 per suit
func (c Card) Index() int {
	return c.Rank.Ordinal() + 13*int(c.Suit)
}

// FromIndex is the inverse of Card.Index
func FromIndex(i int) (Card, error) {
	if i < 0 || i >= 52 {
		return Card{}, fmt.Errorf("card index out of range: %d", i)
	}
	return Card{Rank: Two + Rank(i%13), Suit: Suit(i / 13)}, nil
}

// ParseCard parses compact notation such as "As", "Th" or "10h"
func ParseCard(s string) (Card, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || len(s) > 3 {
		return Card{}, fmt.Errorf("invalid card string: %q", s)
	}
	rank, err := ParseRank(s[:len(s)-1])
	if err != nil {
		return Card{}, err
	}
	suit, err := ParseSuit(s[len(s)-1:])
	if err != nil {
		return Card{}, err
	}
	return NewCard(suit, rank), nil
}

// ParseCards parses a run of compact cards such as "AsKs2h". Whitespace and
// commas between cards are ignored.
func ParseCards(s string) ([]Card, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r == ' ' || r == ',' || r == '\t' {
			return -1
		}
		return r
	}, s)

	cards := []Card{}
	for i := 0; i < len(cleaned); {
		width := 2
		if strings.HasPrefix(cleaned[i:], "10") {
			width = 3
		}
		if i+width > len(cleaned) {
			return nil, fmt.Errorf("truncated card at offset %d in %q", i, s)
		}
		card, err := ParseCard(cleaned[i : i+width])
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
		i += width
	}
	return cards, nil
}

// MustParseCards is ParseCards for tests and fixtures; it panics on error
func MustParseCards(s string) []Card {
	cards, err := ParseCards(s)
	if err != nil {
		panic(err)
	}
	return cards
}
