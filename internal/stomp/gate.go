// Package stomp carries STOMP 1.0-1.2 sessions over WebSocket. The transport
// handshake is open; the CONNECT frame is where a session is authenticated.
package stomp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-stomp/stomp/v3/frame"

	"github.com/gurkanbulca/taskboard/internal/models"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// TokenValidator checks bearer tokens
type TokenValidator interface {
	Validate(token string) bool
	SubjectOf(token string) (string, error)
}

// PrincipalResolver resolves a token subject to the current user
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, username string) (*models.Principal, error)
}

// Gate authenticates the CONNECT frame of a session
type Gate struct {
	tokens     TokenValidator
	principals PrincipalResolver
}

func NewGate(tokens TokenValidator, principals PrincipalResolver) *Gate {
	return &Gate{tokens: tokens, principals: principals}
}

// Authenticate reads the bearer token from the Authorization header, or the token header,
// and resolves it to a principal.
func (g *Gate) Authenticate(ctx context.Context, f *frame.Frame) (*models.Principal, error) {
	token := TokenFromHeaders(f.Header)
	if token == "" {
		return nil, ErrMissingToken
	}
	if !g.tokens.Validate(token) {
		return nil, ErrInvalidToken
	}

	username, err := g.tokens.SubjectOf(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	principal, err := g.principals.ResolvePrincipal(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", username, err)
	}
	return principal, nil
}

// TokenFromHeaders extracts the bearer token of a CONNECT frame
func TokenFromHeaders(h *frame.Header) string {
	if h == nil {
		return ""
	}
	for _, key := range []string{"Authorization", "authorization"} {
		if v, ok := h.Contains(key); ok {
			if token, found := strings.CutPrefix(strings.TrimSpace(v), "Bearer "); found {
				return strings.TrimSpace(token)
			}
		}
	}
	return strings.TrimSpace(h.Get("token"))
}
