package screen

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lox/balatrobot/internal/deck"
	"github.com/lox/balatrobot/internal/protocol"
)

// ItemKind is the category of a main shop item
type ItemKind string

const (
	ItemJoker       ItemKind = "Joker"
	ItemPlanet      ItemKind = "Planet"
	ItemTarot       ItemKind = "Tarot"
	ItemSpectral    ItemKind = "Spectral"
	ItemPlayingCard ItemKind = "PlayingCard"
)

// Item is a main shop item. Consumables and jokers carry their engine key in
// Name; playing cards carry Card.
type Item struct {
	Kind ItemKind
	Name string
	Card *deck.Card
}

func (it *Item) UnmarshalJSON(data []byte) error {
	var tagged map[ItemKind]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("shop item: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("shop item: %d variants, want 1", len(tagged))
	}
	for kind, raw := range tagged {
		*it = Item{Kind: kind}
		if kind == ItemPlayingCard {
			var card deck.Card
			if err := json.Unmarshal(raw, &card); err != nil {
				return fmt.Errorf("shop item: %w", err)
			}
			it.Card = &card
			return nil
		}
		if err := json.Unmarshal(raw, &it.Name); err != nil {
			return fmt.Errorf("shop item %s: %w", kind, err)
		}
	}
	return nil
}

func (it Item) MarshalJSON() ([]byte, error) {
	if it.Card != nil {
		return json.Marshal(map[ItemKind]deck.Card{it.Kind: *it.Card})
	}
	return json.Marshal(map[ItemKind]string{it.Kind: it.Name})
}

func (it Item) String() string {
	if it.Card != nil {
		return string(it.Kind) + " " + it.Card.String()
	}
	return string(it.Kind) + " " + it.Name
}

// MainCard is an item in the main shop row
type MainCard struct {
	Item    Item   `json:"item"`
	Price   int    `json:"price"`
	Edition string `json:"edition"`
}

// VoucherItem is a voucher for sale
type VoucherItem struct {
	Voucher string `json:"voucher"`
	Price   int    `json:"price"`
}

// BoosterItem is a booster pack for sale
type BoosterItem struct {
	Booster string `json:"booster"`
	Price   int    `json:"price"`
}

// ShopInfo is the payload of the shop screen
type ShopInfo struct {
	Main     []MainCard    `json:"main"`
	Vouchers []VoucherItem `json:"vouchers"`
	Boosters []BoosterItem `json:"boosters"`
}

// Shop is the between-rounds shop. Purchases refresh the same Shop.
type Shop struct {
	conn Requester
	info ShopInfo
}

func newShop(conn Requester, action string, payload json.RawMessage) (*Shop, error) {
	s := &Shop{conn: conn}
	if err := s.load(action, payload); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Shop) load(action string, payload json.RawMessage) error {
	var info ShopInfo
	if err := decodePayload(action, payload, &info); err != nil {
		return err
	}
	s.info = info
	return nil
}

func (*Shop) Kind() Kind { return KindShop }
func (*Shop) sealed()    {}

func (s *Shop) Info() ShopInfo          { return s.info }
func (s *Shop) MainCards() []MainCard   { return s.info.Main }
func (s *Shop) Vouchers() []VoucherItem { return s.info.Vouchers }
func (s *Shop) Boosters() []BoosterItem { return s.info.Boosters }

// BuyMain buys the main shop item at index
func (s *Shop) BuyMain(ctx context.Context, index int) error {
	if index < 0 || index >= len(s.info.Main) {
		return fmt.Errorf("buy main item %d: out of range for %d items", index, len(s.info.Main))
	}
	return s.buy(ctx, protocol.KindShopBuyMain, index)
}

// BuyAndUse buys the consumable at index and uses it straight away
func (s *Shop) BuyAndUse(ctx context.Context, index int) error {
	if index < 0 || index >= len(s.info.Main) {
		return fmt.Errorf("buy and use item %d: out of range for %d items", index, len(s.info.Main))
	}
	return s.buy(ctx, protocol.KindShopBuyUse, index)
}

// BuyVoucher buys the voucher at index
func (s *Shop) BuyVoucher(ctx context.Context, index int) error {
	if index < 0 || index >= len(s.info.Vouchers) {
		return fmt.Errorf("buy voucher %d: out of range for %d vouchers", index, len(s.info.Vouchers))
	}
	return s.buy(ctx, protocol.KindShopBuyVouch, index)
}

// BuyBooster buys the booster pack at index
func (s *Shop) BuyBooster(ctx context.Context, index int) error {
	if index < 0 || index >= len(s.info.Boosters) {
		return fmt.Errorf("buy booster %d: out of range for %d boosters", index, len(s.info.Boosters))
	}
	return s.buy(ctx, protocol.KindShopBuyBoost, index)
}

func (s *Shop) buy(ctx context.Context, kind string, index int) error {
	ok, err := request(ctx, s.conn, kind, struct {
		Index int `json:"index"`
	}{index})
	if err != nil {
		return err
	}
	return s.load(kind, ok)
}

// Reroll replaces the main shop items
func (s *Shop) Reroll(ctx context.Context) error {
	ok, err := request(ctx, s.conn, protocol.KindShopReroll, nil)
	if err != nil {
		return err
	}
	return s.load(protocol.KindShopReroll, ok)
}

// Leave closes the shop and moves on to the next blind selection
func (s *Shop) Leave(ctx context.Context) (*SelectBlind, error) {
	ok, err := request(ctx, s.conn, protocol.KindShopContinue, nil)
	if err != nil {
		return nil, err
	}
	return newSelectBlind(s.conn, protocol.KindShopContinue, ok)
}
