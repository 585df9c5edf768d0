package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticValidator(t *testing.T) {
	v := NewStaticValidator("s3cret")

	id, err := v.Validate(context.Background(), "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "static", id.Name)

	_, err = v.Validate(context.Background(), "guess")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = v.Validate(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHTTPValidator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req validateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch req.Token {
		case "good":
			_ = json.NewEncoder(w).Encode(validateResponse{Valid: true, Name: "dashboard"})
		case "refused":
			_ = json.NewEncoder(w).Encode(validateResponse{Valid: false})
		case "forbidden":
			w.WriteHeader(http.StatusForbidden)
		case "garbled":
			_, _ = w.Write([]byte("{"))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	v := NewHTTPValidator(srv.URL, time.Second)
	ctx := context.Background()

	id, err := v.Validate(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, "dashboard", id.Name)

	tests := []struct {
		token string
		want  error
	}{
		{"refused", ErrInvalidToken},
		{"forbidden", ErrInvalidToken},
		{"garbled", ErrUnavailable},
		{"other", ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			_, err := v.Validate(ctx, tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHTTPValidatorUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPValidator(url, time.Second).Validate(context.Background(), "x")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/events?token=query", nil)
	assert.Equal(t, "query", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer header")
	assert.Equal(t, "header", TokenFromRequest(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "query", TokenFromRequest(r))
}

type downValidator struct{}

func (downValidator) Validate(context.Context, string) (*Identity, error) {
	return nil, ErrUnavailable
}

func TestMiddleware(t *testing.T) {
	logger := log.New(io.Discard)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := FromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(id.Name))
	})

	tests := []struct {
		name      string
		validator Validator
		url       string
		status    int
	}{
		{"missing token", NewStaticValidator("t"), "/events", http.StatusUnauthorized},
		{"wrong token", NewStaticValidator("t"), "/events?token=x", http.StatusForbidden},
		{"right token", NewStaticValidator("t"), "/events?token=t", http.StatusOK},
		{"service down", downValidator{}, "/events?token=t", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Middleware(tt.validator, logger, next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestMiddlewareWithoutValidator(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })

	Middleware(nil, log.New(io.Discard), next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}
