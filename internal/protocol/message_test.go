package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessageBodies(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		wantBody string
	}{
		{name: "nil", body: nil},
		{name: "empty object", body: struct{}{}},
		{name: "raw null", body: json.RawMessage("null")},
		{name: "struct", body: struct {
			Index int `json:"index"`
		}{Index: 2}, wantBody: `{"index":2}`},
		{name: "raw bytes", body: []byte(`{"indices":[1]}`), wantBody: `{"indices":[1]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage("shop/buymain", tt.body)
			require.NoError(t, err)
			if tt.wantBody == "" {
				assert.False(t, msg.HasBody())
				assert.Nil(t, msg.Body)
				return
			}
			assert.True(t, msg.HasBody())
			assert.JSONEq(t, tt.wantBody, string(msg.Body))
		})
	}
}

func TestMessageDecode(t *testing.T) {
	msg := Message{Kind: "result/play/hand", Body: json.RawMessage(`{"Ok":{"money":4}}`)}
	assert.True(t, msg.IsResult())

	var out struct {
		Ok struct {
			Money int `json:"money"`
		} `json:"Ok"`
	}
	require.NoError(t, msg.Decode(&out))
	assert.Equal(t, 4, out.Ok.Money)

	empty := Message{Kind: "result/play/hand"}
	assert.Error(t, empty.Decode(&out))

	bad := Message{Kind: "result/play/hand", Body: json.RawMessage(`{"Ok":"str"}`)}
	assert.Error(t, bad.Decode(&out))

	assert.False(t, Message{Kind: "screen/get"}.IsResult())
}
