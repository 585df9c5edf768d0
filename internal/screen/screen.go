// Package screen models the engine's interactive modes as a closed set of
// variants. Every variant is built from the latest response; actions send one
// request and either refresh the variant in place or return the next one.
package screen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/lox/balatrobot/internal/protocol"
)

// Kind names a screen variant. The values are the tags used on the wire.
type Kind string

const (
	KindMenu          Kind = "Menu"
	KindSelectBlind   Kind = "SelectBlind"
	KindPlay          Kind = "Play"
	KindShop          Kind = "Shop"
	KindRoundOverview Kind = "RoundOverview"
	KindGameOver      Kind = "GameOver"
)

func (k Kind) String() string {
	return string(k)
}

// Screen is one of *Menu, *SelectBlind, *Play, *Shop, *RoundOverview or
// *GameOver.
type Screen interface {
	Kind() Kind
	sealed()
}

// Requester sends a request and waits for its correlated response.
// *protocol.Conn satisfies it.
type Requester interface {
	SendRequest(ctx context.Context, kind string, body any) (protocol.Message, error)
}

// ServerError is an explicit failure reported by the engine
type ServerError struct {
	Action  string
	Payload json.RawMessage
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: server error: %s", e.Action, e.Message())
}

// Message returns the error payload, unquoted when it is a plain string
func (e *ServerError) Message() string {
	var s string
	if err := json.Unmarshal(e.Payload, &s); err == nil {
		return s
	}
	return string(e.Payload)
}

// ProtocolError is a response that does not have the expected shape
type ProtocolError struct {
	Action string
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Action, e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ClassificationError is returned when a response carries a tag that is not a
// known variant
type ClassificationError struct {
	Action  string
	Tag     string
	Payload json.RawMessage
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("%s: unknown variant %q", e.Action, e.Tag)
}

// Fetch requests the current screen and classifies it
func Fetch(ctx context.Context, conn Requester) (Screen, error) {
	ok, err := request(ctx, conn, protocol.KindGetScreen, nil)
	if err != nil {
		return nil, err
	}
	tag, payload, err := splitTag(protocol.KindGetScreen, ok)
	if err != nil {
		return nil, err
	}
	return classify(conn, protocol.KindGetScreen, Kind(tag), payload)
}

func classify(conn Requester, action string, kind Kind, payload json.RawMessage) (Screen, error) {
	switch kind {
	case KindMenu:
		return newMenu(conn), nil
	case KindSelectBlind:
		return newSelectBlind(conn, action, payload)
	case KindPlay:
		return newPlay(conn, action, payload)
	case KindShop:
		return newShop(conn, action, payload)
	case KindRoundOverview:
		return newRoundOverview(conn, action, payload)
	case KindGameOver:
		return newGameOver(conn), nil
	default:
		return nil, &ClassificationError{Action: action, Tag: string(kind), Payload: payload}
	}
}

// request performs one exchange and unwraps the {"Ok":...} / {"Err":...}
// envelope. Transport errors are returned unchanged.
func request(ctx context.Context, conn Requester, kind string, body any) (json.RawMessage, error) {
	msg, err := conn.SendRequest(ctx, kind, body)
	if err != nil {
		return nil, err
	}
	return unwrapResult(kind, msg)
}

func unwrapResult(action string, msg protocol.Message) (json.RawMessage, error) {
	if !msg.HasBody() {
		return nil, &ProtocolError{Action: action, Reason: "empty response body"}
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(msg.Body, &envelope); err != nil {
		return nil, &ProtocolError{Action: action, Reason: "malformed result envelope", Err: err}
	}
	if payload, ok := envelope["Err"]; ok {
		return nil, &ServerError{Action: action, Payload: payload}
	}
	payload, ok := envelope["Ok"]
	if !ok {
		return nil, &ProtocolError{Action: action, Reason: "result has neither Ok nor Err"}
	}
	return payload, nil
}

// splitTag reads an externally tagged value: {"Tag": payload} or, for
// variants without data, the bare string "Tag".
func splitTag(action string, raw json.RawMessage) (string, json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var tag string
		if err := json.Unmarshal(raw, &tag); err != nil {
			return "", nil, &ProtocolError{Action: action, Reason: "malformed variant tag", Err: err}
		}
		return tag, nil, nil
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return "", nil, &ProtocolError{Action: action, Reason: "malformed variant", Err: err}
	}
	if len(tagged) != 1 {
		return "", nil, &ProtocolError{Action: action, Reason: fmt.Sprintf("variant has %d tags, want 1", len(tagged))}
	}
	for tag, payload := range tagged {
		return tag, payload, nil
	}
	panic("unreachable")
}

func decodePayload(action string, payload json.RawMessage, v any) error {
	if p := bytes.TrimSpace(payload); len(p) == 0 || bytes.Equal(p, []byte("null")) {
		return &ProtocolError{Action: action, Reason: "missing payload"}
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return &ProtocolError{Action: action, Reason: "decode payload", Err: err}
	}
	return nil
}
