// internal/middleware/auth.go
package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/gurkanbulca/taskboard/internal/apperror"
	"github.com/gurkanbulca/taskboard/internal/models"
	"github.com/gurkanbulca/taskboard/pkg/auth"
)

// TokenVerifier extracts the subject of a valid bearer token
type TokenVerifier interface {
	SubjectOf(token string) (string, error)
}

// PrincipalResolver resolves a token subject to the current user
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, username string) (*models.Principal, error)
}

// RejectionLogger records requests turned away for a bad token
type RejectionLogger interface {
	LogTokenRejected(ctx context.Context, reason string)
}

// Authenticator authenticates HTTP requests with bearer tokens
type Authenticator struct {
	tokens      TokenVerifier
	principals  PrincipalResolver
	rejections  RejectionLogger
	publicPaths map[string]bool
	// publicPrefixes are open path prefixes such as the WebSocket transport
	publicPrefixes []string
}

// NewAuthenticator creates a new authenticator
func NewAuthenticator(tokens TokenVerifier, principals PrincipalResolver) *Authenticator {
	// Define which routes don't require authentication
	publicPaths := map[string]bool{
		"/api/auth/register": true,
		"/api/auth/login":    true,
		"/api/test/public":   true,
		"/health":            true,
	}

	return &Authenticator{
		tokens:         tokens,
		principals:     principals,
		publicPaths:    publicPaths,
		publicPrefixes: []string{"/ws"},
	}
}

// WithRejectionLogger reports rejected tokens to l
func (a *Authenticator) WithRejectionLogger(l RejectionLogger) *Authenticator {
	a.rejections = l
	return a
}

func (a *Authenticator) isPublic(path string) bool {
	if a.publicPaths[strings.TrimSuffix(path, "/")] {
		return true
	}
	for _, prefix := range a.publicPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// Handler returns the authentication middleware
func (a *Authenticator) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions || a.isPublic(c.Path()) {
			return c.Next()
		}

		principal, err := a.authenticate(c.UserContext(), c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return err
		}

		c.Locals(localsPrincipal, principal)
		c.SetUserContext(WithPrincipal(c.UserContext(), principal))
		return c.Next()
	}
}

// authenticate validates the bearer token and resolves the principal
func (a *Authenticator) authenticate(ctx context.Context, header string) (*models.Principal, error) {
	if header == "" {
		return nil, apperror.Authentication("missing authorization header")
	}

	token, err := auth.ExtractTokenFromHeader(header)
	if err != nil {
		return nil, apperror.Authentication("%s", err.Error())
	}

	username, err := a.tokens.SubjectOf(token)
	if err != nil {
		reason := "invalid token"
		if errors.Is(err, auth.ErrExpiredToken) {
			reason = "token has expired"
		}
		if a.rejections != nil {
			a.rejections.LogTokenRejected(ctx, reason)
		}
		return nil, apperror.Authentication("%s", reason)
	}

	principal, err := a.principals.ResolvePrincipal(ctx, username)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return nil, apperror.Authentication("user no longer exists")
		}
		return nil, err
	}
	return principal, nil
}

// PrincipalFrom returns the principal attached by the authenticator
func PrincipalFrom(c *fiber.Ctx) (*models.Principal, error) {
	if p, ok := c.Locals(localsPrincipal).(*models.Principal); ok && p != nil {
		return p, nil
	}
	return nil, apperror.Authentication("user not authenticated")
}
