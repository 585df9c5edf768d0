package screen

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/balatrobot/internal/deck"
	"github.com/lox/balatrobot/internal/protocol"
	enginetest "github.com/lox/balatrobot/internal/testing"
)

var e2eHand = enginetest.PlayState{
	Hand:     "2s2h2d9cKsKh3d7s",
	Hands:    4,
	Discards: 3,
	Money:    4,
	Chips:    300,
}

func TestFetchClassifiesEveryVariant(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     Kind
	}{
		{"menu", enginetest.MenuScreen(), KindMenu},
		{"menu as bare tag", enginetest.Ok(`"Menu"`), KindMenu},
		{"select blind", enginetest.Screen("SelectBlind", enginetest.BlindInfo(300, 450, 600)), KindSelectBlind},
		{"play", enginetest.Screen("Play", enginetest.Play(e2eHand)), KindPlay},
		{"shop", enginetest.Screen("Shop", enginetest.ShopInfo()), KindShop},
		{"round overview", enginetest.Screen("RoundOverview", enginetest.RoundOverview(10)), KindRoundOverview},
		{"game over", enginetest.GameOverScreen(), KindGameOver},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := enginetest.NewFakeEngine(t, enginetest.Step{Kind: protocol.KindGetScreen, Response: tt.response})

			s, err := Fetch(context.Background(), engine)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Kind())
			assert.Zero(t, engine.Remaining())
		})
	}
}

func TestFetchErrors(t *testing.T) {
	t.Run("unknown variant", func(t *testing.T) {
		engine := enginetest.NewFakeEngine(t, enginetest.Step{Kind: protocol.KindGetScreen, Response: enginetest.Screen("Collection", "{}")})
		_, err := Fetch(context.Background(), engine)

		var classErr *ClassificationError
		require.ErrorAs(t, err, &classErr)
		assert.Equal(t, "Collection", classErr.Tag)
	})

	t.Run("server error", func(t *testing.T) {
		engine := enginetest.NewFakeEngine(t, enginetest.Step{Kind: protocol.KindGetScreen, Response: enginetest.Err("not ready")})
		_, err := Fetch(context.Background(), engine)

		var serverErr *ServerError
		require.ErrorAs(t, err, &serverErr)
		assert.Equal(t, protocol.KindGetScreen, serverErr.Action)
		assert.Equal(t, "not ready", serverErr.Message())
	})

	t.Run("missing envelope", func(t *testing.T) {
		engine := enginetest.NewFakeEngine(t, enginetest.Step{Kind: protocol.KindGetScreen, Response: `{"Menu":[]}`})
		_, err := Fetch(context.Background(), engine)

		var protoErr *ProtocolError
		require.ErrorAs(t, err, &protoErr)
	})

	t.Run("empty body", func(t *testing.T) {
		engine := enginetest.NewFakeEngine(t, enginetest.Step{Kind: protocol.KindGetScreen})
		_, err := Fetch(context.Background(), engine)

		var protoErr *ProtocolError
		require.ErrorAs(t, err, &protoErr)
	})

	t.Run("bad payload", func(t *testing.T) {
		engine := enginetest.NewFakeEngine(t, enginetest.Step{Kind: protocol.KindGetScreen, Response: enginetest.Screen("Play", `{"hand":"nope"}`)})
		_, err := Fetch(context.Background(), engine)

		var protoErr *ProtocolError
		require.ErrorAs(t, err, &protoErr)
	})

	t.Run("connection closed", func(t *testing.T) {
		engine := enginetest.NewFakeEngine(t)
		_, err := Fetch(context.Background(), engine)
		assert.True(t, errors.Is(err, protocol.ErrConnectionClosed))
	})
}

func TestMenuNewRun(t *testing.T) {
	engine := enginetest.NewFakeEngine(t,
		enginetest.Step{Kind: protocol.KindGetScreen, Response: enginetest.MenuScreen()},
		enginetest.Step{
			Kind:     protocol.KindStartRun,
			Body:     `{"back":"b_red","stake":1,"seed":null}`,
			Response: enginetest.Ok(enginetest.BlindInfo(300, 450, 600)),
		},
	)
	ctx := context.Background()

	s, err := Fetch(ctx, engine)
	require.NoError(t, err)
	menu, ok := s.(*Menu)
	require.True(t, ok)

	blinds, err := menu.NewRun(ctx, DefaultRunConfig())
	require.NoError(t, err)
	assert.Equal(t, 300.0, blinds.Small().Chips)
	assert.Equal(t, BlindSelect, blinds.Small().State)
	assert.Equal(t, "tag_economy", blinds.Small().Tag)
	assert.Equal(t, 450.0, blinds.Big().Chips)
	assert.Equal(t, "bl_ox", blinds.Boss().Kind)
	assert.Equal(t, BlindUpcoming, blinds.Boss().State)
}

func TestNewRunWithSeed(t *testing.T) {
	engine := enginetest.NewFakeEngine(t, enginetest.Step{
		Kind:     protocol.KindStartRun,
		Body:     `{"back":"b_plasma","stake":8,"seed":"ABC123"}`,
		Response: enginetest.Ok(enginetest.BlindInfo(300, 450, 600)),
	})

	over := newGameOver(engine)
	_, err := over.NewRun(context.Background(), RunConfig{Back: BackPlasma, Stake: StakeGold, Seed: "ABC123"})
	require.NoError(t, err)
}

func TestSelectBlind(t *testing.T) {
	engine := enginetest.NewFakeEngine(t,
		enginetest.Step{Kind: protocol.KindSkipBlind, Response: enginetest.Ok(enginetest.BlindInfo(300, 450, 600))},
		enginetest.Step{Kind: protocol.KindSelectBlind, Response: enginetest.Ok(enginetest.Play(e2eHand))},
		enginetest.Step{Kind: protocol.KindSelectBlind, Response: enginetest.Err("blind already selected")},
	)
	ctx := context.Background()

	blinds, err := newSelectBlind(engine, "test", []byte(enginetest.BlindInfo(300, 450, 600)))
	require.NoError(t, err)

	blinds, err = blinds.Skip(ctx)
	require.NoError(t, err)

	play, err := blinds.Select(ctx)
	require.NoError(t, err)
	assert.Len(t, play.Hand(), 8)

	_, err = blinds.Select(ctx)
	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, "blind already selected", serverErr.Message())
}

func TestPlayAccessors(t *testing.T) {
	st := e2eHand
	st.Score = 120
	st.Blind = "Boss"
	st.Boss = "bl_hook"
	st.Chips = 1200
	st.Selected = []int{1}
	st.Empty = []int{7}

	play, err := newPlay(nil, "test", []byte(enginetest.Play(st)))
	require.NoError(t, err)

	assert.Equal(t, 120.0, play.Score())
	assert.Equal(t, 4, play.Hands())
	assert.Equal(t, 3, play.Discards())
	assert.Equal(t, 4, play.Money())
	assert.Equal(t, 1200.0, play.BlindTarget())
	assert.Equal(t, CurrentBlind{Kind: BossBlind, Boss: "bl_hook", Chips: 1200}, play.Blind())
	assert.Equal(t, []int{1}, play.Selected())

	cards := play.Cards()
	require.Len(t, cards, 8)
	assert.Nil(t, cards[7])
	assert.Equal(t, deck.NewCard(deck.Spades, deck.Two), *cards[0])
}

func TestPlayRejectsOversizedHand(t *testing.T) {
	_, err := newPlay(nil, "test", []byte(enginetest.Play(enginetest.PlayState{Hand: "2s3s4s5s6s7s8s9sTs"})))
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
}

func TestPlayClickRefreshesInPlace(t *testing.T) {
	selected := e2eHand
	selected.Selected = []int{0, 1, 2, 4, 5}

	engine := enginetest.NewFakeEngine(t, enginetest.Step{
		Kind:     protocol.KindClick,
		Body:     `{"indices":[0,1,2,4,5]}`,
		Response: enginetest.Ok(enginetest.Play(selected)),
	})

	play, err := newPlay(engine, "test", []byte(enginetest.Play(e2eHand)))
	require.NoError(t, err)

	require.NoError(t, play.Click(context.Background(), []int{0, 1, 2, 4, 5}))
	assert.Equal(t, []int{0, 1, 2, 4, 5}, play.Selected())
}

func TestPlayClickValidation(t *testing.T) {
	engine := enginetest.NewFakeEngine(t)
	play, err := newPlay(engine, "test", []byte(enginetest.Play(e2eHand)))
	require.NoError(t, err)
	ctx := context.Background()

	assert.Error(t, play.Click(ctx, []int{0, 1, 2, 3, 4, 5}))
	assert.Error(t, play.Click(ctx, []int{8}))
	assert.Error(t, play.Click(ctx, []int{-1}))
	assert.NoError(t, play.Click(ctx, nil))
	assert.Empty(t, engine.Requests())
}

func TestPlaySelectOnlyTogglesDifference(t *testing.T) {
	start := e2eHand
	start.Selected = []int{3, 6}
	after := e2eHand
	after.Selected = []int{0, 1, 2, 4, 5}

	engine := enginetest.NewFakeEngine(t, enginetest.Step{
		Kind:     protocol.KindClick,
		Body:     `{"indices":[0,1,2,3,4]}`,
		Response: enginetest.Ok(enginetest.Play(enginetest.PlayState{Hand: e2eHand.Hand, Selected: []int{0, 1, 2, 4, 6}})),
	}, enginetest.Step{
		Kind:     protocol.KindClick,
		Body:     `{"indices":[5,6]}`,
		Response: enginetest.Ok(enginetest.Play(after)),
	})

	play, err := newPlay(engine, "test", []byte(enginetest.Play(start)))
	require.NoError(t, err)

	require.NoError(t, play.SelectOnly(context.Background(), []int{0, 1, 2, 4, 5}))
	assert.Equal(t, []int{0, 1, 2, 4, 5}, play.Selected())
	assert.Zero(t, engine.Remaining())
}

func TestPlayHandOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     Kind
	}{
		{"again", enginetest.Ok(enginetest.Tagged("Again", enginetest.Play(e2eHand))), KindPlay},
		{"round over", enginetest.Ok(enginetest.Tagged("RoundOver", enginetest.RoundOverview(12))), KindRoundOverview},
		{"game over", enginetest.Ok(enginetest.Tagged("GameOver", "[]")), KindGameOver},
		{"game over as bare tag", enginetest.Ok(`"GameOver"`), KindGameOver},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := enginetest.NewFakeEngine(t, enginetest.Step{Kind: protocol.KindPlay, Response: tt.response})
			play, err := newPlay(engine, "test", []byte(enginetest.Play(e2eHand)))
			require.NoError(t, err)

			next, err := play.PlayHand(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, next.Kind())
		})
	}

	engine := enginetest.NewFakeEngine(t, enginetest.Step{Kind: protocol.KindPlay, Response: enginetest.Ok(enginetest.Tagged("Shop", "{}"))})
	play, err := newPlay(engine, "test", []byte(enginetest.Play(e2eHand)))
	require.NoError(t, err)
	_, err = play.PlayHand(context.Background())
	var classErr *ClassificationError
	assert.ErrorAs(t, err, &classErr)
}

func TestPlayDiscardOutcomes(t *testing.T) {
	engine := enginetest.NewFakeEngine(t,
		enginetest.Step{Kind: protocol.KindDiscard, Response: enginetest.Ok(enginetest.Tagged("Again", enginetest.Play(e2eHand)))},
		enginetest.Step{Kind: protocol.KindDiscard, Response: enginetest.Ok(enginetest.Tagged("GameOver", "[]"))},
		enginetest.Step{Kind: protocol.KindDiscard, Response: enginetest.Ok(enginetest.Tagged("RoundOver", enginetest.RoundOverview(1)))},
	)
	play, err := newPlay(engine, "test", []byte(enginetest.Play(e2eHand)))
	require.NoError(t, err)
	ctx := context.Background()

	next, err := play.Discard(ctx)
	require.NoError(t, err)
	assert.Equal(t, KindPlay, next.Kind())

	next, err = play.Discard(ctx)
	require.NoError(t, err)
	assert.Equal(t, KindGameOver, next.Kind())

	_, err = play.Discard(ctx)
	var classErr *ClassificationError
	assert.ErrorAs(t, err, &classErr)
}

func TestShop(t *testing.T) {
	engine := enginetest.NewFakeEngine(t,
		enginetest.Step{Kind: protocol.KindShopBuyMain, Body: `{"index":0}`, Response: enginetest.Ok(`{"main":[],"vouchers":[],"boosters":[]}`)},
		enginetest.Step{Kind: protocol.KindShopReroll, Response: enginetest.Ok(enginetest.ShopInfo())},
		enginetest.Step{Kind: protocol.KindShopBuyVouch, Body: `{"index":0}`, Response: enginetest.Err("not enough money")},
		enginetest.Step{Kind: protocol.KindShopContinue, Response: enginetest.Ok(enginetest.BlindInfo(800, 1200, 1600))},
	)
	ctx := context.Background()

	shop, err := newShop(engine, "test", []byte(enginetest.ShopInfo()))
	require.NoError(t, err)

	require.Len(t, shop.MainCards(), 2)
	joker := shop.MainCards()[0]
	assert.Equal(t, Item{Kind: ItemJoker, Name: "j_joker"}, joker.Item)
	assert.Equal(t, 2, joker.Price)
	assert.Equal(t, "e_base", joker.Edition)

	card := shop.MainCards()[1].Item
	assert.Equal(t, ItemPlayingCard, card.Kind)
	require.NotNil(t, card.Card)
	assert.Equal(t, deck.NewCard(deck.Spades, deck.Ace), *card.Card)

	assert.Equal(t, []VoucherItem{{Voucher: "v_grabber", Price: 10}}, shop.Vouchers())
	assert.Equal(t, []BoosterItem{{Booster: "p_arcana_normal", Price: 4}}, shop.Boosters())

	require.NoError(t, shop.BuyMain(ctx, 0))
	assert.Empty(t, shop.MainCards())
	assert.Error(t, shop.BuyMain(ctx, 0), "index out of range after purchase")

	require.NoError(t, shop.Reroll(ctx))
	assert.Len(t, shop.MainCards(), 2)

	var serverErr *ServerError
	require.ErrorAs(t, shop.BuyVoucher(ctx, 0), &serverErr)
	assert.Len(t, shop.Vouchers(), 1, "a failed purchase leaves the shop unchanged")

	blinds, err := shop.Leave(ctx)
	require.NoError(t, err)
	assert.Equal(t, 800.0, blinds.Small().Chips)
	assert.Zero(t, engine.Remaining())
}

func TestRoundOverview(t *testing.T) {
	engine := enginetest.NewFakeEngine(t, enginetest.Step{Kind: protocol.KindCashOut, Response: enginetest.Ok(enginetest.ShopInfo())})

	over, err := newRoundOverview(engine, "test", []byte(enginetest.RoundOverview(10)))
	require.NoError(t, err)

	assert.Equal(t, 10, over.TotalEarned())
	earnings := over.Earnings()
	require.Len(t, earnings, 4)
	assert.Equal(t, EarningKind{Source: EarningBlind}, earnings[0].Kind)
	assert.Equal(t, 3, earnings[0].Value)
	assert.Equal(t, EarningKind{Source: EarningHands, Count: 2}, earnings[1].Kind)
	assert.Equal(t, EarningKind{Source: EarningInterest}, earnings[2].Kind)
	assert.Equal(t, EarningKind{Source: EarningJoker, Name: "j_golden"}, earnings[3].Kind)
	assert.Equal(t, "Joker j_golden", earnings[3].Kind.String())

	shop, err := over.CashOut(context.Background())
	require.NoError(t, err)
	assert.Len(t, shop.MainCards(), 2)
}

func TestParseBackAndStake(t *testing.T) {
	for _, in := range []string{"red", "Red", "b_red", " RED "} {
		b, err := ParseBack(in)
		require.NoError(t, err, in)
		assert.Equal(t, BackRed, b)
	}
	_, err := ParseBack("purple")
	assert.Error(t, err)
	assert.Len(t, Backs, 15)
	assert.Equal(t, "erratic", BackErratic.Name())

	for i, name := range []string{"white", "Red", "GREEN", "black", "blue", "purple", "orange", "gold"} {
		s, err := ParseStake(name)
		require.NoError(t, err, name)
		assert.Equal(t, Stake(i+1), s)

		s, err = ParseStake(fmt.Sprint(i + 1))
		require.NoError(t, err)
		assert.Equal(t, Stake(i+1), s)
	}
	_, err = ParseStake("9")
	assert.Error(t, err)
	_, err = ParseStake("platinum")
	assert.Error(t, err)
	assert.Equal(t, "Gold", StakeGold.String())
}

func TestCurrentBlindDecoding(t *testing.T) {
	var b CurrentBlind
	require.NoError(t, b.UnmarshalJSON([]byte(`{"Big":{"chips":450}}`)))
	assert.Equal(t, CurrentBlind{Kind: BigBlind, Chips: 450}, b)

	assert.Error(t, b.UnmarshalJSON([]byte(`{"Huge":{"chips":1}}`)))
	assert.Error(t, b.UnmarshalJSON([]byte(`{}`)))
}
