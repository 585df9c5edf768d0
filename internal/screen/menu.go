package screen

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/lox/balatrobot/internal/protocol"
)

// Back is a starting deck, identified by its engine key
type Back string

const (
	BackRed       Back = "b_red"
	BackBlue      Back = "b_blue"
	BackYellow    Back = "b_yellow"
	BackGreen     Back = "b_green"
	BackBlack     Back = "b_black"
	BackMagic     Back = "b_magic"
	BackNebula    Back = "b_nebula"
	BackGhost     Back = "b_ghost"
	BackAbandoned Back = "b_abandoned"
	BackCheckered Back = "b_checkered"
	BackZodiac    Back = "b_zodiac"
	BackPainted   Back = "b_painted"
	BackAnaglyph  Back = "b_anaglyph"
	BackPlasma    Back = "b_plasma"
	BackErratic   Back = "b_erratic"
)

// Backs lists every deck the engine accepts
var Backs = []Back{
	BackRed, BackBlue, BackYellow, BackGreen, BackBlack,
	BackMagic, BackNebula, BackGhost, BackAbandoned, BackCheckered,
	BackZodiac, BackPainted, BackAnaglyph, BackPlasma, BackErratic,
}

// Name is the deck name without the engine prefix, e.g. "red"
func (b Back) Name() string {
	return strings.TrimPrefix(string(b), "b_")
}

// ParseBack accepts "red", "Red" or "b_red"
func ParseBack(s string) (Back, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(name, "b_") {
		name = "b_" + name
	}
	if b := Back(name); slices.Contains(Backs, b) {
		return b, nil
	}
	return "", fmt.Errorf("unknown deck %q", s)
}

// Stake is the run difficulty, 1 (White) to 8 (Gold)
type Stake int

const (
	StakeWhite Stake = iota + 1
	StakeRed
	StakeGreen
	StakeBlack
	StakeBlue
	StakePurple
	StakeOrange
	StakeGold
)

var stakeNames = [...]string{"", "White", "Red", "Green", "Black", "Blue", "Purple", "Orange", "Gold"}

func (s Stake) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Stake(%d)", int(s))
	}
	return stakeNames[s]
}

// Valid reports whether the stake is one the engine knows
func (s Stake) Valid() bool {
	return s >= StakeWhite && s <= StakeGold
}

// ParseStake accepts a name ("white") or a level ("1")
func ParseStake(s string) (Stake, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if st := Stake(n); st.Valid() {
			return st, nil
		}
		return 0, fmt.Errorf("stake %d out of range 1-8", n)
	}
	for i, name := range stakeNames[1:] {
		if strings.EqualFold(name, s) {
			return Stake(i + 1), nil
		}
	}
	return 0, fmt.Errorf("unknown stake %q", s)
}

// RunConfig selects how a new run starts. An empty Seed lets the engine pick.
type RunConfig struct {
	Back  Back
	Stake Stake
	Seed  string
}

// DefaultRunConfig is a Red deck on White stake with a random seed
func DefaultRunConfig() RunConfig {
	return RunConfig{Back: BackRed, Stake: StakeWhite}
}

type startRun struct {
	Back  Back    `json:"back"`
	Stake Stake   `json:"stake"`
	Seed  *string `json:"seed"`
}

func (rc RunConfig) request() startRun {
	req := startRun{Back: rc.Back, Stake: rc.Stake}
	if req.Back == "" {
		req.Back = BackRed
	}
	if !req.Stake.Valid() {
		req.Stake = StakeWhite
	}
	if rc.Seed != "" {
		seed := rc.Seed
		req.Seed = &seed
	}
	return req
}

// Menu is the main menu
type Menu struct {
	conn Requester
}

func newMenu(conn Requester) *Menu {
	return &Menu{conn: conn}
}

func (*Menu) Kind() Kind { return KindMenu }
func (*Menu) sealed()    {}

// NewRun starts a run and returns the blind selection that follows
func (m *Menu) NewRun(ctx context.Context, rc RunConfig) (*SelectBlind, error) {
	return startNewRun(ctx, m.conn, rc)
}

func startNewRun(ctx context.Context, conn Requester, rc RunConfig) (*SelectBlind, error) {
	ok, err := request(ctx, conn, protocol.KindStartRun, rc.request())
	if err != nil {
		return nil, err
	}
	return newSelectBlind(conn, protocol.KindStartRun, ok)
}
