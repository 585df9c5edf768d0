package screen

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lox/balatrobot/internal/protocol"
)

// EarningSource is what a line of the round payout came from
type EarningSource string

const (
	EarningJoker    EarningSource = "Joker"
	EarningTag      EarningSource = "Tag"
	EarningBlind    EarningSource = "Blind"
	EarningInterest EarningSource = "Interest"
	EarningHands    EarningSource = "Hands"
	EarningDiscards EarningSource = "Discards"
)

// EarningKind identifies a payout line. Name is set for joker and tag
// payouts; Count is the number of unused hands or discards.
type EarningKind struct {
	Source EarningSource
	Name   string
	Count  int
}

func (k *EarningKind) UnmarshalJSON(data []byte) error {
	tag, payload, err := splitTag("earning", data)
	if err != nil {
		return err
	}
	*k = EarningKind{Source: EarningSource(tag)}

	switch k.Source {
	case EarningJoker, EarningTag:
		return json.Unmarshal(payload, &k.Name)
	case EarningHands, EarningDiscards:
		return json.Unmarshal(payload, &k.Count)
	case EarningBlind, EarningInterest:
		return nil
	default:
		return fmt.Errorf("earning: unknown source %q", tag)
	}
}

func (k EarningKind) String() string {
	switch {
	case k.Name != "":
		return fmt.Sprintf("%s %s", k.Source, k.Name)
	case k.Source == EarningHands || k.Source == EarningDiscards:
		return fmt.Sprintf("%s x%d", k.Source, k.Count)
	default:
		return string(k.Source)
	}
}

// Earning is one line of the round payout
type Earning struct {
	Kind  EarningKind `json:"kind"`
	Value int         `json:"value"`
}

// RoundOverviewInfo is the payout shown after beating a blind
type RoundOverviewInfo struct {
	Earnings    []Earning `json:"earnings"`
	TotalEarned int       `json:"total_earned"`
}

// RoundOverview is the screen shown after a blind is beaten
type RoundOverview struct {
	conn Requester
	info RoundOverviewInfo
}

func newRoundOverview(conn Requester, action string, payload json.RawMessage) (*RoundOverview, error) {
	o := &RoundOverview{conn: conn}
	if err := decodePayload(action, payload, &o.info); err != nil {
		return nil, err
	}
	return o, nil
}

func (*RoundOverview) Kind() Kind { return KindRoundOverview }
func (*RoundOverview) sealed()    {}

func (o *RoundOverview) Info() RoundOverviewInfo { return o.info }
func (o *RoundOverview) Earnings() []Earning     { return o.info.Earnings }
func (o *RoundOverview) TotalEarned() int        { return o.info.TotalEarned }

// CashOut collects the payout and opens the shop
func (o *RoundOverview) CashOut(ctx context.Context) (*Shop, error) {
	ok, err := request(ctx, o.conn, protocol.KindCashOut, nil)
	if err != nil {
		return nil, err
	}
	return newShop(o.conn, protocol.KindCashOut, ok)
}

// GameOver is shown when a run is lost
type GameOver struct {
	conn Requester
}

func newGameOver(conn Requester) *GameOver {
	return &GameOver{conn: conn}
}

func (*GameOver) Kind() Kind { return KindGameOver }
func (*GameOver) sealed()    {}

// NewRun starts a fresh run straight from the game over screen
func (g *GameOver) NewRun(ctx context.Context, rc RunConfig) (*SelectBlind, error) {
	return startNewRun(ctx, g.conn, rc)
}
