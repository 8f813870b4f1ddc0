// internal/middleware/middleware_test.go
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurkanbulca/taskboard/internal/apperror"
	"github.com/gurkanbulca/taskboard/internal/models"
	"github.com/gurkanbulca/taskboard/pkg/auth"
)

type stubResolver struct {
	users map[string]*models.Principal
}

func (s *stubResolver) ResolvePrincipal(_ context.Context, username string) (*models.Principal, error) {
	if p, ok := s.users[username]; ok {
		return p, nil
	}
	return nil, apperror.NotFound("user %s not found", username)
}

func newTestApp(t *testing.T) (*fiber.App, *auth.TokenManager, *models.Principal) {
	t.Helper()

	tm := auth.NewTokenManager("middleware-test-secret", time.Hour, "")
	alice := &models.Principal{UserID: uuid.New(), Username: "alice", Role: models.RoleUser}
	root := &models.Principal{UserID: uuid.New(), Username: "root", Role: models.RoleAdmin}
	resolver := &stubResolver{users: map[string]*models.Principal{"alice": alice, "root": root}}

	logger := slog.New(slog.DiscardHandler)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	app.Use(ClientInfo(), RequestLogger(logger), NewAuthenticator(tm, resolver).Handler())

	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/api/me", func(c *fiber.Ctx) error {
		p, err := PrincipalFrom(c)
		if err != nil {
			return err
		}
		ctxPrincipal, ok := PrincipalFromContext(c.UserContext())
		require.True(t, ok)
		require.Equal(t, p, ctxPrincipal)
		return c.JSON(fiber.Map{"username": p.Username})
	})
	app.Get("/api/boom", func(c *fiber.Ctx) error { return errors.New("kaboom") })

	return app, tm, alice
}

func decodeError(t *testing.T, body io.Reader) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp
}

func TestAuthenticator_Handler(t *testing.T) {
	app, tm, _ := newTestApp(t)

	aliceToken, err := tm.Issue("alice")
	require.NoError(t, err)
	rootToken, err := tm.Issue("root")
	require.NoError(t, err)
	ghostToken, err := tm.Issue("ghost")
	require.NoError(t, err)

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
		wantError  string
	}{
		{name: "public path needs no token", path: "/health", wantStatus: fiber.StatusOK},
		{name: "missing header", path: "/api/me", wantStatus: fiber.StatusUnauthorized, wantError: "Authentication Failed"},
		{name: "malformed header", path: "/api/me", header: "Token abc", wantStatus: fiber.StatusUnauthorized, wantError: "Authentication Failed"},
		{name: "garbage token", path: "/api/me", header: "Bearer not.a.jwt", wantStatus: fiber.StatusUnauthorized, wantError: "Authentication Failed"},
		{name: "unknown user", path: "/api/me", header: "Bearer " + ghostToken, wantStatus: fiber.StatusUnauthorized, wantError: "Authentication Failed"},
		{name: "valid token", path: "/api/me", header: "Bearer " + aliceToken, wantStatus: fiber.StatusOK},
		{name: "admin token", path: "/api/me", header: "Bearer " + rootToken, wantStatus: fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantError != "" {
				body := decodeError(t, resp.Body)
				assert.Equal(t, tt.wantStatus, body.Status)
				assert.Equal(t, tt.wantError, body.Error)
				assert.NotEmpty(t, body.Message)
				assert.False(t, body.Timestamp.IsZero())
			}
		})
	}
}

func TestAuthenticator_ExpiredToken(t *testing.T) {
	app, _, _ := newTestApp(t)

	expired := auth.NewTokenManager("middleware-test-secret", -time.Minute, "")
	token, err := expired.Issue("alice")
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodGet, "/api/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "token has expired", decodeError(t, resp.Body).Message)
}

type rejectionRecorder struct {
	reasons []string
}

func (r *rejectionRecorder) LogTokenRejected(_ context.Context, reason string) {
	r.reasons = append(r.reasons, reason)
}

func TestAuthenticator_ReportsRejectedTokens(t *testing.T) {
	tm := auth.NewTokenManager("middleware-test-secret", time.Hour, "")
	expired := auth.NewTokenManager("middleware-test-secret", -time.Minute, "")
	recorder := &rejectionRecorder{}
	resolver := &stubResolver{users: map[string]*models.Principal{}}

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(slog.New(slog.DiscardHandler))})
	app.Use(NewAuthenticator(tm, resolver).WithRejectionLogger(recorder).Handler())
	app.Get("/api/me", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	expiredToken, err := expired.Issue("alice")
	require.NoError(t, err)

	for _, header := range []string{"", "Bearer not.a.jwt", "Bearer " + expiredToken} {
		req := httptest.NewRequest(fiber.MethodGet, "/api/me", nil)
		if header != "" {
			req.Header.Set(fiber.HeaderAuthorization, header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	}

	// a missing header is not a rejected token
	assert.Equal(t, []string{"invalid token", "token has expired"}, recorder.reasons)
}

func TestErrorHandler_UnexpectedError(t *testing.T) {
	app, tm, _ := newTestApp(t)
	token, err := tm.Issue("alice")
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodGet, "/api/boom", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body := decodeError(t, resp.Body)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Internal Server Error", body.Error)
	assert.Equal(t, "*errors.errorString", body.Exception)
}

func TestErrorHandler_Kinds(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantError  string
	}{
		{apperror.NotFound("task %s not found", "x"), fiber.StatusNotFound, "Not Found"},
		{apperror.Forbidden("no"), fiber.StatusForbidden, "Forbidden"},
		{apperror.ValidationField("title", "title is required"), fiber.StatusBadRequest, "Validation Failed"},
		{apperror.BadRequest("username is already taken"), fiber.StatusBadRequest, "Bad Request"},
		{apperror.Authentication("invalid credentials"), fiber.StatusUnauthorized, "Authentication Failed"},
		{fiber.ErrMethodNotAllowed, fiber.StatusMethodNotAllowed, "Method Not Allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.wantError, func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(slog.New(slog.DiscardHandler))})
			app.Get("/", func(c *fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
			require.NoError(t, err)
			defer resp.Body.Close()

			body := decodeError(t, resp.Body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantError, body.Error)
			assert.Empty(t, body.Exception)
		})
	}
}

type registerBody struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,password"`
}

type taskBody struct {
	Title    string `json:"title" validate:"required,notblank,max=100"`
	Status   string `json:"status" validate:"required,taskstatus"`
	Priority string `json:"priority" validate:"required,priority"`
}

func TestValidator_Struct(t *testing.T) {
	v := NewValidator(nil, nil)

	require.NoError(t, v.Struct(registerBody{Username: "alice", Email: "alice@x.com", Password: "Passw0rd!"}))
	require.NoError(t, v.Struct(taskBody{Title: "T", Status: "TODO", Priority: "HIGH"}))

	err := v.Struct(registerBody{Username: "a!", Email: "nope", Password: "short"})
	require.Error(t, err)
	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperror.KindValidation, appErr.Kind)
	assert.Contains(t, appErr.Fields, "username")
	assert.Equal(t, "invalid email format", appErr.Fields["email"])
	assert.Contains(t, appErr.Fields, "password")

	err = v.Struct(taskBody{Title: "   ", Status: "DELETED", Priority: "URGENT"})
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "title must not be blank", appErr.Fields["title"])
	assert.Contains(t, appErr.Fields["status"], "TODO, IN_PROGRESS, DONE")
	assert.Contains(t, appErr.Fields["priority"], "LOW, MEDIUM, HIGH")

	err = v.Struct(taskBody{Title: strings.Repeat("x", 101), Status: "DONE", Priority: "LOW"})
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "title must be at most 100 characters", appErr.Fields["title"])
}

func TestValidator_Bind(t *testing.T) {
	v := NewValidator(nil, nil)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(slog.New(slog.DiscardHandler))})
	app.Post("/", func(c *fiber.Ctx) error {
		var body taskBody
		if err := v.Bind(c, &body); err != nil {
			return err
		}
		return c.JSON(body)
	})

	post := func(payload string) *ErrorResponse {
		req := httptest.NewRequest(fiber.MethodPost, "/", strings.NewReader(payload))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		if resp.StatusCode == fiber.StatusOK {
			return nil
		}
		body := decodeError(t, resp.Body)
		return &body
	}

	assert.Nil(t, post(`{"title":"T","status":"TODO","priority":"HIGH"}`))

	malformed := post(`{"title":`)
	require.NotNil(t, malformed)
	assert.Equal(t, "Bad Request", malformed.Error)

	invalid := post(`{"title":"","status":"TODO","priority":"HIGH"}`)
	require.NotNil(t, invalid)
	assert.Equal(t, "Validation Failed", invalid.Error)
	assert.Equal(t, "title is required", invalid.Errors["title"])
}

func TestGetClientInfoFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), ContextKeyIPAddress, "10.0.0.1")
	ctx = context.WithValue(ctx, ContextKeyUserAgent, "go-test")
	ctx = WithPrincipal(ctx, &models.Principal{UserID: uuid.New(), Username: "alice", Role: models.RoleAdmin})

	info := GetClientInfoFromContext(ctx)
	assert.Equal(t, "10.0.0.1", info.IPAddress)
	assert.Equal(t, "go-test", info.UserAgent)
	assert.Equal(t, "alice", info.Username)
	assert.Equal(t, "ADMIN", info.UserRole)

	empty := GetClientInfoFromContext(context.Background())
	assert.Empty(t, empty.IPAddress)
	assert.Empty(t, empty.Username)
}
