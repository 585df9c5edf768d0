package screen

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lox/balatrobot/internal/protocol"
)

// BlindState is where a blind stands in the current ante
type BlindState string

const (
	BlindSelect   BlindState = "Select"
	BlindSkipped  BlindState = "Skipped"
	BlindUpcoming BlindState = "Upcoming"
	BlindDefeated BlindState = "Defeated"
)

// BlindChoice is one of the three blinds offered on the selection screen.
// Tag is set for small and big blinds; Kind names the boss.
type BlindChoice struct {
	Kind  string     `json:"kind,omitempty"`
	State BlindState `json:"state"`
	Chips float64    `json:"chips"`
	Tag   string     `json:"tag,omitempty"`
}

func (b BlindChoice) String() string {
	s := fmt.Sprintf("%s %.0f chips", b.State, b.Chips)
	if b.Kind != "" {
		s = b.Kind + " " + s
	}
	if b.Tag != "" {
		s += " (skip: " + b.Tag + ")"
	}
	return s
}

// BlindInfo is the blind selection payload
type BlindInfo struct {
	Small BlindChoice `json:"small"`
	Big   BlindChoice `json:"big"`
	Boss  BlindChoice `json:"boss"`
}

// BlindKind distinguishes the three blinds of an ante
type BlindKind string

const (
	SmallBlind BlindKind = "Small"
	BigBlind   BlindKind = "Big"
	BossBlind  BlindKind = "Boss"
)

// CurrentBlind is the blind being played. On the wire it is externally
// tagged: {"Small":{"chips":300}} or {"Boss":{"kind":"bl_ox","chips":1200}}.
type CurrentBlind struct {
	Kind  BlindKind `json:"type"`
	Boss  string    `json:"boss,omitempty"`
	Chips float64   `json:"chips"`
}

func (b *CurrentBlind) UnmarshalJSON(data []byte) error {
	var tagged map[BlindKind]struct {
		Kind  string  `json:"kind"`
		Chips float64 `json:"chips"`
	}
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("current blind: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("current blind: %d variants, want 1", len(tagged))
	}
	for kind, blind := range tagged {
		switch kind {
		case SmallBlind, BigBlind, BossBlind:
		default:
			return fmt.Errorf("current blind: unknown variant %q", kind)
		}
		*b = CurrentBlind{Kind: kind, Boss: blind.Kind, Chips: blind.Chips}
	}
	return nil
}

func (b CurrentBlind) String() string {
	if b.Boss != "" {
		return fmt.Sprintf("%s %s (%.0f chips)", b.Kind, b.Boss, b.Chips)
	}
	return fmt.Sprintf("%s (%.0f chips)", b.Kind, b.Chips)
}

// SelectBlind is the blind selection screen
type SelectBlind struct {
	conn Requester
	info BlindInfo
}

func newSelectBlind(conn Requester, action string, payload json.RawMessage) (*SelectBlind, error) {
	s := &SelectBlind{conn: conn}
	if err := decodePayload(action, payload, &s.info); err != nil {
		return nil, err
	}
	return s, nil
}

func (*SelectBlind) Kind() Kind { return KindSelectBlind }
func (*SelectBlind) sealed()    {}

func (s *SelectBlind) Info() BlindInfo    { return s.info }
func (s *SelectBlind) Small() BlindChoice { return s.info.Small }
func (s *SelectBlind) Big() BlindChoice   { return s.info.Big }
func (s *SelectBlind) Boss() BlindChoice  { return s.info.Boss }

// Select plays the blind that is up next
func (s *SelectBlind) Select(ctx context.Context) (*Play, error) {
	ok, err := request(ctx, s.conn, protocol.KindSelectBlind, nil)
	if err != nil {
		return nil, err
	}
	return newPlay(s.conn, protocol.KindSelectBlind, ok)
}

// Skip passes on the blind that is up next, taking its tag
func (s *SelectBlind) Skip(ctx context.Context) (*SelectBlind, error) {
	ok, err := request(ctx, s.conn, protocol.KindSkipBlind, nil)
	if err != nil {
		return nil, err
	}
	return newSelectBlind(s.conn, protocol.KindSkipBlind, ok)
}
