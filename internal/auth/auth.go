// Package auth guards the monitor feed with bearer tokens, checked either
// against a fixed token or by an external HTTP service.
package auth

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

var (
	// ErrMissingToken means the request carried no token at all
	ErrMissingToken = errors.New("auth: missing token")

	// ErrInvalidToken means the token was checked and refused
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrUnavailable means the token could not be checked
	ErrUnavailable = errors.New("auth: unavailable")
)

// Identity is who a token belongs to
type Identity struct {
	Name string `json:"name"`
}

// Validator checks a token and returns its owner
type Validator interface {
	Validate(ctx context.Context, token string) (*Identity, error)
}

// StaticValidator accepts exactly one token
type StaticValidator struct {
	token []byte
}

func NewStaticValidator(token string) *StaticValidator {
	return &StaticValidator{token: []byte(token)}
}

func (v *StaticValidator) Validate(_ context.Context, token string) (*Identity, error) {
	if subtle.ConstantTimeCompare([]byte(token), v.token) != 1 {
		return nil, ErrInvalidToken
	}
	return &Identity{Name: "static"}, nil
}

// HTTPValidator posts {"token": ...} to a URL and expects
// {"valid": true, "name": ...} back
type HTTPValidator struct {
	url    string
	client *http.Client
}

type validateRequest struct {
	Token string `json:"token"`
}

type validateResponse struct {
	Valid bool   `json:"valid"`
	Name  string `json:"name"`
}

func NewHTTPValidator(url string, timeout time.Duration) *HTTPValidator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPValidator{url: url, client: &http.Client{Timeout: timeout}}
}

func (v *HTTPValidator) Validate(ctx context.Context, token string) (*Identity, error) {
	body, err := json.Marshal(validateRequest{Token: token})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrInvalidToken
	default:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out validateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	if !out.Valid {
		return nil, ErrInvalidToken
	}
	return &Identity{Name: out.Name}, nil
}

// TokenFromRequest reads a bearer token from the Authorization header, or
// from the token query parameter since browsers cannot set headers on a
// WebSocket handshake
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}

type identityKey struct{}

// FromContext returns the identity Middleware stored, if any
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok
}

// Middleware rejects requests whose token v refuses. A nil v lets everything
// through.
func Middleware(v Validator, logger *log.Logger, next http.Handler) http.Handler {
	if v == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromRequest(r)
		if token == "" {
			http.Error(w, ErrMissingToken.Error(), http.StatusUnauthorized)
			return
		}

		id, err := v.Validate(r.Context(), token)
		switch {
		case err == nil:
		case errors.Is(err, ErrUnavailable):
			logger.Warn("Auth service unavailable", "error", err)
			http.Error(w, "auth unavailable", http.StatusServiceUnavailable)
			return
		default:
			logger.Debug("Rejected token", "remote", r.RemoteAddr, "error", err)
			http.Error(w, ErrInvalidToken.Error(), http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	})
}
