package screen

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/lox/balatrobot/internal/deck"
	"github.com/lox/balatrobot/internal/protocol"
)

// MaxHandSize is the most cards the engine shows in hand
const MaxHandSize = 8

// MaxSelection is the most cards one click, play or discard may cover
const MaxSelection = 5

// HandCard is a hand slot. Card is nil while the slot is being dealt.
type HandCard struct {
	Card     *deck.Card `json:"card"`
	Selected bool       `json:"selected"`
}

// PlayInfo is the payload of the play screen
type PlayInfo struct {
	CurrentBlind CurrentBlind `json:"current_blind"`
	Hand         []HandCard   `json:"hand"`
	Score        float64      `json:"score"`
	Hands        int          `json:"hands"`
	Discards     int          `json:"discards"`
	Money        int          `json:"money"`
}

// Play is the screen where cards are selected, played and discarded
type Play struct {
	conn Requester
	info PlayInfo
}

func newPlay(conn Requester, action string, payload json.RawMessage) (*Play, error) {
	p := &Play{conn: conn}
	if err := p.load(action, payload); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Play) load(action string, payload json.RawMessage) error {
	var info PlayInfo
	if err := decodePayload(action, payload, &info); err != nil {
		return err
	}
	if len(info.Hand) > MaxHandSize {
		return &ProtocolError{Action: action, Reason: fmt.Sprintf("hand has %d cards, max %d", len(info.Hand), MaxHandSize)}
	}
	p.info = info
	return nil
}

func (*Play) Kind() Kind { return KindPlay }
func (*Play) sealed()    {}

func (p *Play) Info() PlayInfo      { return p.info }
func (p *Play) Hand() []HandCard    { return slices.Clone(p.info.Hand) }
func (p *Play) Score() float64      { return p.info.Score }
func (p *Play) Hands() int          { return p.info.Hands }
func (p *Play) Discards() int       { return p.info.Discards }
func (p *Play) Money() int          { return p.info.Money }
func (p *Play) Blind() CurrentBlind { return p.info.CurrentBlind }

// BlindTarget is the score needed to beat the current blind
func (p *Play) BlindTarget() float64 {
	return p.info.CurrentBlind.Chips
}

// Cards returns the hand as slots, nil where a slot is empty
func (p *Play) Cards() []*deck.Card {
	cards := make([]*deck.Card, len(p.info.Hand))
	for i, hc := range p.info.Hand {
		if hc.Card != nil {
			c := *hc.Card
			cards[i] = &c
		}
	}
	return cards
}

// Selected returns the positions of the selected cards
func (p *Play) Selected() []int {
	var selected []int
	for i, hc := range p.info.Hand {
		if hc.Selected {
			selected = append(selected, i)
		}
	}
	return selected
}

// Click toggles the selection of the cards at indices and refreshes the hand
func (p *Play) Click(ctx context.Context, indices []int) error {
	if len(indices) == 0 {
		return nil
	}
	if len(indices) > MaxSelection {
		return fmt.Errorf("click %d cards: at most %d per action", len(indices), MaxSelection)
	}
	for _, i := range indices {
		if i < 0 || i >= len(p.info.Hand) {
			return fmt.Errorf("click index %d out of range for hand of %d", i, len(p.info.Hand))
		}
	}

	ok, err := request(ctx, p.conn, protocol.KindClick, struct {
		Indices []int `json:"indices"`
	}{indices})
	if err != nil {
		return err
	}
	return p.load(protocol.KindClick, ok)
}

// SelectOnly clicks whatever is needed so that exactly indices are selected
func (p *Play) SelectOnly(ctx context.Context, indices []int) error {
	if len(indices) > MaxSelection {
		return fmt.Errorf("select %d cards: at most %d", len(indices), MaxSelection)
	}

	for _, i := range indices {
		if i < 0 || i >= len(p.info.Hand) {
			return fmt.Errorf("select index %d out of range for hand of %d", i, len(p.info.Hand))
		}
	}

	var toggle []int
	for i, hc := range p.info.Hand {
		if hc.Selected != slices.Contains(indices, i) {
			toggle = append(toggle, i)
		}
	}

	for len(toggle) > 0 {
		n := min(len(toggle), MaxSelection)
		if err := p.Click(ctx, toggle[:n]); err != nil {
			return err
		}
		toggle = toggle[n:]
	}
	return nil
}

// PlayHand plays the selected cards. The result is a *Play when the blind
// is not yet beaten, a *RoundOverview when it is, or *GameOver.
func (p *Play) PlayHand(ctx context.Context) (Screen, error) {
	ok, err := request(ctx, p.conn, protocol.KindPlay, nil)
	if err != nil {
		return nil, err
	}
	tag, payload, err := splitTag(protocol.KindPlay, ok)
	if err != nil {
		return nil, err
	}

	switch tag {
	case "Again":
		return newPlay(p.conn, protocol.KindPlay, payload)
	case "RoundOver":
		return newRoundOverview(p.conn, protocol.KindPlay, payload)
	case "GameOver":
		return newGameOver(p.conn), nil
	default:
		return nil, &ClassificationError{Action: protocol.KindPlay, Tag: tag, Payload: payload}
	}
}

// Discard throws away the selected cards. The result is a *Play with the
// refilled hand or *GameOver.
func (p *Play) Discard(ctx context.Context) (Screen, error) {
	ok, err := request(ctx, p.conn, protocol.KindDiscard, nil)
	if err != nil {
		return nil, err
	}
	tag, payload, err := splitTag(protocol.KindDiscard, ok)
	if err != nil {
		return nil, err
	}

	switch tag {
	case "Again":
		return newPlay(p.conn, protocol.KindDiscard, payload)
	case "GameOver":
		return newGameOver(p.conn), nil
	default:
		return nil, &ClassificationError{Action: protocol.KindDiscard, Tag: tag, Payload: payload}
	}
}
