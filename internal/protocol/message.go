package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Delimiter separates a message kind from its body
const Delimiter = '!'

// Keepalive kinds. A ping is answered with a pong inline and never surfaced.
const (
	KindPing = "ping"
	KindPong = "pong"
)

// ResultPrefix marks engine responses
const ResultPrefix = "result/"

// Request kinds understood by the engine
const (
	KindGetScreen     = "screen/get"
	KindStartRun      = "main_menu/start_run"
	KindSelectBlind   = "blind_select/select"
	KindSkipBlind     = "blind_select/skip"
	KindClick         = "play/click"
	KindPlay          = "play/play"
	KindDiscard       = "play/discard"
	KindShopContinue  = "shop/continue"
	KindShopBuyMain   = "shop/buymain"
	KindShopBuyUse    = "shop/buyuse"
	KindShopBuyVouch  = "shop/buyvoucher"
	KindShopBuyBoost  = "shop/buybooster"
	KindShopReroll    = "shop/reroll"
	KindCashOut       = "overview/cash_out"
	KindScreenCurrent = "result/screen/current"
)

// responseTable maps a request kind to the only response kind that satisfies it
var responseTable = map[string]string{
	KindGetScreen:    KindScreenCurrent,
	KindStartRun:     "result/blind_select/info",
	KindSelectBlind:  "result/play/hand",
	KindSkipBlind:    "result/blind_select/info",
	KindClick:        "result/play/hand",
	KindPlay:         "result/play/play/result",
	KindDiscard:      "result/play/discard/result",
	KindShopContinue: "result/shop/continue/result",
	KindShopBuyMain:  "result/shop/buymain/result",
	KindShopBuyUse:   "result/shop/buyuse/result",
	KindShopBuyVouch: "result/shop/buyvoucher/result",
	KindShopBuyBoost: "result/shop/buybooster/result",
	KindShopReroll:   "result/shop/reroll",
	KindCashOut:      "result/shop/info",
}

// ExpectedResponse returns the response kind that completes a request of the
// given kind. Kinds missing from the table expect "result/<kind>".
func ExpectedResponse(kind string) string {
	if expected, ok := responseTable[kind]; ok {
		return expected
	}
	return ResultPrefix + kind
}

// Message is a single framed unit on the wire
type Message struct {
	Kind string
	Body json.RawMessage
}

// NewMessage marshals body into a message. A nil body or an empty JSON
// object produce a message without a body.
func NewMessage(kind string, body any) (Message, error) {
	if strings.ContainsRune(kind, Delimiter) {
		return Message{}, fmt.Errorf("message kind %q contains delimiter", kind)
	}

	var raw json.RawMessage
	switch b := body.(type) {
	case nil:
	case json.RawMessage:
		raw = b
	case []byte:
		raw = b
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return Message{}, fmt.Errorf("marshal %s body: %w", kind, err)
		}
		raw = data
	}

	if isEmptyBody(raw) {
		raw = nil
	}
	return Message{Kind: kind, Body: raw}, nil
}

// HasBody reports whether the message carries a structured body
func (m Message) HasBody() bool {
	return !isEmptyBody(m.Body)
}

// IsResult reports whether the message is an engine response
func (m Message) IsResult() bool {
	return strings.HasPrefix(m.Kind, ResultPrefix)
}

// Decode unmarshals the body into v
func (m Message) Decode(v any) error {
	if !m.HasBody() {
		return fmt.Errorf("%s: empty body", m.Kind)
	}
	if err := json.Unmarshal(m.Body, v); err != nil {
		return fmt.Errorf("%s: decode body: %w", m.Kind, err)
	}
	return nil
}

// Encode renders a frame: "<kind>!\n" without a body, "<kind>!<json>\n" with one
func Encode(kind string, body json.RawMessage) []byte {
	var buf bytes.Buffer
	buf.Grow(len(kind) + len(body) + 2)
	buf.WriteString(kind)
	buf.WriteByte(Delimiter)
	if !isEmptyBody(body) {
		buf.Write(body)
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}

func isEmptyBody(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return true
	}
	switch string(trimmed) {
	case "null", "{}":
		return true
	}
	return false
}
