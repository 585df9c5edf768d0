// Package testing provides a scripted stand-in for the game engine and JSON
// fixtures for its payloads.
package testing

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"

	"github.com/lox/balatrobot/internal/deck"
	"github.com/lox/balatrobot/internal/protocol"
)

// DefaultTimeout bounds every wire exchange in PlayScript
const DefaultTimeout = 5 * time.Second

// Step is one scripted request and the engine's reply
type Step struct {
	Kind     string // request kind the bot must send
	Body     string // expected request body as JSON; empty skips the check
	Response string // result body sent back
	Err      error  // returned instead of a response by FakeEngine
}

// FakeEngine answers requests from a script without a connection. Once the
// script is exhausted every request fails with protocol.ErrConnectionClosed,
// which is how a real session ends.
type FakeEngine struct {
	t     *testing.T
	mu    sync.Mutex
	steps []Step
	sent  []protocol.Message
}

func NewFakeEngine(t *testing.T, steps ...Step) *FakeEngine {
	return &FakeEngine{t: t, steps: steps}
}

// Push appends steps to the script
func (e *FakeEngine) Push(steps ...Step) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.steps = append(e.steps, steps...)
}

func (e *FakeEngine) SendRequest(ctx context.Context, kind string, body any) (protocol.Message, error) {
	if err := ctx.Err(); err != nil {
		return protocol.Message{}, err
	}

	msg, err := protocol.NewMessage(kind, body)
	if err != nil {
		return protocol.Message{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.sent = append(e.sent, msg)
	if len(e.steps) == 0 {
		return protocol.Message{}, fmt.Errorf("%s: %w", kind, protocol.ErrConnectionClosed)
	}

	step := e.steps[0]
	e.steps = e.steps[1:]

	if !assert.Equal(e.t, step.Kind, kind, "request %d", len(e.sent)) {
		return protocol.Message{}, fmt.Errorf("%s: %w", kind, protocol.ErrConnectionClosed)
	}
	if step.Body != "" {
		assert.JSONEq(e.t, step.Body, string(msg.Body), "request %d (%s) body", len(e.sent), kind)
	}
	if step.Err != nil {
		return protocol.Message{}, step.Err
	}
	return protocol.Message{Kind: protocol.ExpectedResponse(kind), Body: json.RawMessage(step.Response)}, nil
}

// Remaining returns the number of unplayed steps
func (e *FakeEngine) Remaining() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.steps)
}

// Requests returns the kinds of every request received, in order
func (e *FakeEngine) Requests() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	kinds := make([]string, len(e.sent))
	for i, msg := range e.sent {
		kinds[i] = msg.Kind
	}
	return kinds
}

// Sent returns every request message received, in order
func (e *FakeEngine) Sent() []protocol.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]protocol.Message(nil), e.sent...)
}

// PlayScript drives a real connection the way the game does: it opens with a
// keepalive ping, answers each scripted request, slips an unrelated message in
// before every response and closes the connection when the script ends.
func PlayScript(ctx context.Context, conn net.Conn, steps []Step) error {
	defer conn.Close()

	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
	framer := protocol.NewFramer(logger)
	w := bufio.NewWriter(conn)
	chunk := make([]byte, 4096)

	send := func(kind, body string) error {
		if _, err := w.Write(protocol.Encode(kind, json.RawMessage(body))); err != nil {
			return err
		}
		return w.Flush()
	}

	next := func() (protocol.Message, error) {
		for {
			if msg, ok := framer.Next(); ok {
				if msg.Kind == protocol.KindPong || msg.Kind == protocol.KindPing {
					continue
				}
				return msg, nil
			}
			if err := ctx.Err(); err != nil {
				return protocol.Message{}, err
			}
			_ = conn.SetReadDeadline(time.Now().Add(DefaultTimeout))
			n, err := conn.Read(chunk)
			if n > 0 {
				framer.Feed(chunk[:n])
				continue
			}
			if err != nil {
				return protocol.Message{}, err
			}
		}
	}

	if err := send(protocol.KindPing, ""); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	for i, step := range steps {
		msg, err := next()
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i, step.Kind, err)
		}
		if msg.Kind != step.Kind {
			return fmt.Errorf("step %d: got request %q, want %q", i, msg.Kind, step.Kind)
		}
		if step.Body != "" && !jsonEqual(step.Body, msg.Body) {
			return fmt.Errorf("step %d (%s): got body %s, want %s", i, step.Kind, msg.Body, step.Body)
		}

		if err := send("result/unrelated", `{"Ok":{"note":"ignore } me"}}`); err != nil {
			return err
		}
		if err := send(protocol.ExpectedResponse(step.Kind), step.Response); err != nil {
			return err
		}
	}
	return nil
}

func jsonEqual(want string, got []byte) bool {
	var a, b any
	if json.Unmarshal([]byte(want), &a) != nil || json.Unmarshal(got, &b) != nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// Ok wraps a payload in a success envelope
func Ok(payload string) string {
	return `{"Ok":` + payload + `}`
}

// Err wraps a message in a failure envelope
func Err(message string) string {
	data, _ := json.Marshal(message)
	return `{"Err":` + string(data) + `}`
}

// Tagged renders an externally tagged variant, {"Tag":payload}
func Tagged(tag, payload string) string {
	return `{"` + tag + `":` + payload + `}`
}

// Screen renders a screen/get response for the given variant
func Screen(tag, payload string) string {
	return Ok(Tagged(tag, payload))
}

// MenuScreen is the screen/get response for the main menu
func MenuScreen() string {
	return Screen("Menu", "[]")
}

// GameOverScreen is the screen/get response after a lost run
func GameOverScreen() string {
	return Screen("GameOver", "[]")
}

// BlindInfo renders a blind selection payload
func BlindInfo(small, big, boss float64) string {
	return fmt.Sprintf(`{"small":{"state":"Select","chips":%g,"tag":"tag_economy"},`+
		`"big":{"state":"Upcoming","chips":%g,"tag":"tag_double"},`+
		`"boss":{"kind":"bl_ox","state":"Upcoming","chips":%g}}`, small, big, boss)
}

// PlayState describes a play screen payload
type PlayState struct {
	Hand     string // compact cards, e.g. "2s2h2d9cKsKh3d7s"
	Selected []int
	Empty    []int // slots rendered without a card
	Score    float64
	Hands    int
	Discards int
	Money    int
	Blind    string // Small, Big or Boss; Small when empty
	Boss     string
	Chips    float64
}

type handCard struct {
	Card     *deck.Card `json:"card"`
	Selected bool       `json:"selected"`
}

// Play renders a play screen payload
func Play(st PlayState) string {
	cards := deck.MustParseCards(st.Hand)
	hand := make([]handCard, len(cards))
	for i := range cards {
		hand[i].Card = &cards[i]
	}
	for _, i := range st.Selected {
		hand[i].Selected = true
	}
	for _, i := range st.Empty {
		hand[i] = handCard{}
	}

	kind := st.Blind
	if kind == "" {
		kind = "Small"
	}
	blind := map[string]any{"chips": st.Chips}
	if st.Boss != "" {
		blind["kind"] = st.Boss
	}

	data, err := json.Marshal(map[string]any{
		"current_blind": map[string]any{kind: blind},
		"hand":          hand,
		"score":         st.Score,
		"hands":         st.Hands,
		"discards":      st.Discards,
		"money":         st.Money,
	})
	if err != nil {
		panic(err)
	}
	return string(data)
}

// ShopInfo renders a small shop payload with one joker, one voucher and one
// booster pack
func ShopInfo() string {
	return `{"main":[{"item":{"Joker":"j_joker"},"price":2,"edition":"e_base"},` +
		`{"item":{"PlayingCard":{"rank":"Ace","suit":"Spades"}},"price":1,"edition":"e_foil"}],` +
		`"vouchers":[{"voucher":"v_grabber","price":10}],` +
		`"boosters":[{"booster":"p_arcana_normal","price":4}]}`
}

// RoundOverview renders a round payout payload
func RoundOverview(total int) string {
	return fmt.Sprintf(`{"earnings":[{"kind":{"Blind":[]},"value":3},`+
		`{"kind":{"Hands":2},"value":2},{"kind":{"Interest":[]},"value":1},`+
		`{"kind":{"Joker":"j_golden"},"value":4}],"total_earned":%d}`, total)
}
