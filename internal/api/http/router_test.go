package http

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/btangonan/calm-productivity-app-sub002/internal/api/http/handlers"
	"github.com/btangonan/calm-productivity-app-sub002/internal/auth"
	"github.com/btangonan/calm-productivity-app-sub002/internal/cache"
	"github.com/btangonan/calm-productivity-app-sub002/internal/domain"
	"github.com/btangonan/calm-productivity-app-sub002/internal/events"
	"github.com/btangonan/calm-productivity-app-sub002/internal/observability"
	"github.com/btangonan/calm-productivity-app-sub002/internal/repository"
	"github.com/btangonan/calm-productivity-app-sub002/internal/service"
)

const testClientID = "client-123.apps.googleusercontent.com"

type fakeTable struct {
	rows [][]string
}

func (t *fakeTable) ReadRows(_ context.Context) ([][]string, error) {
	return t.rows, nil
}

func (t *fakeTable) AppendRow(_ context.Context, row []string) error {
	t.rows = append(t.rows, row)
	return nil
}

func (t *fakeTable) UpdateRow(_ context.Context, index int, row []string) error {
	t.rows[index] = row
	return nil
}

type stubExchanger struct {
	grant        *domain.AccessGrant
	idToken      string
	profile      *domain.UserProfile
	refreshErr   error
	refreshCalls int
	lastCtx      context.Context
}

func (s *stubExchanger) Refresh(ctx context.Context, _ string) (*domain.AccessGrant, error) {
	s.refreshCalls++
	s.lastCtx = ctx
	if s.refreshErr != nil {
		return nil, s.refreshErr
	}
	return s.grant, nil
}

func (s *stubExchanger) ExchangeCode(_ context.Context, _ string) (*domain.AccessGrant, string, error) {
	return s.grant, s.idToken, nil
}

func (s *stubExchanger) UserInfo(_ context.Context, _ string) (*domain.UserProfile, error) {
	return s.profile, nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type gatewayFixture struct {
	app       *fiber.App
	exchanger *stubExchanger
	table     *fakeTable
	registry  cache.Registry
	clock     *fakeClock
	key       *rsa.PrivateKey
}

func newGateway(t *testing.T, production bool) *gatewayFixture {
	t.Helper()
	return newGatewayWithTimeout(t, production, 0)
}

func newGatewayWithTimeout(t *testing.T, production bool, timeout time.Duration) *gatewayFixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	validator := auth.NewValidator(auth.StaticKeySource{"test-key": &key.PublicKey}, testClientID)
	exchanger := &stubExchanger{}
	table := &fakeTable{}
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	registry := cache.NewMemoryRegistry(5*time.Minute, clock.Now)

	sessions := service.NewSessionService(service.Dependencies{
		Validator:   validator,
		Tokens:      exchanger,
		Credentials: repository.NewCredentialRepository(table),
		Registry:    registry,
		Events:      events.NewInMemoryDispatcher(nil),
	}, zap.NewNop())

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), observability.NewMetrics(), MiddlewareConfig{
		Timeout:            timeout,
		IncludeDiagnostics: !production,
	})
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("test", "dev", nil),
		Session:        handlers.NewSessionHandler(sessions),
		Cache:          handlers.NewCacheHandler(sessions),
		AuthMiddleware: auth.NewMiddleware(validator),
	})

	return &gatewayFixture{app: app, exchanger: exchanger, table: table, registry: registry, clock: clock, key: key}
}

func (f *gatewayFixture) bearer(t *testing.T, sub, email string) string {
	t.Helper()

	claims := &auth.IDTokenClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://accounts.google.com",
			Subject:   sub,
			Audience:  jwt.ClaimStrings{testClientID},
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "test-key"

	signed, err := token.SignedString(f.key)
	require.NoError(t, err)
	return "Bearer " + signed
}

func (f *gatewayFixture) do(t *testing.T, method, target, bearer, body string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}

	resp, err := f.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	payload := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &payload))
	}
	return resp.StatusCode, payload
}

func TestGatewayUnknownAction(t *testing.T) {
	f := newGateway(t, false)

	status, body := f.do(t, http.MethodPost, "/auth?action=frobnicate", "", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "INVALID_ACTION", body["code"])
}

func TestGatewayMissingAction(t *testing.T) {
	f := newGateway(t, false)

	status, body := f.do(t, http.MethodPost, "/auth", "", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_ACTION", body["code"])
}

func TestGatewayWrongMethod(t *testing.T) {
	f := newGateway(t, false)

	for _, action := range []string{"validate", "exchange-code", "store-token", "refresh"} {
		status, body := f.do(t, http.MethodGet, "/auth?action="+action, "", "")
		assert.Equal(t, http.StatusMethodNotAllowed, status, "action %s", action)
		assert.Equal(t, "METHOD_NOT_ALLOWED", body["code"], "action %s", action)
	}
}

func TestGatewayValidate(t *testing.T) {
	f := newGateway(t, false)

	status, body := f.do(t, http.MethodPost, "/auth?action=validate", f.bearer(t, "sub-123", "u@example.com"), "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])

	user := body["user"].(map[string]any)
	assert.Equal(t, "sub-123", user["userId"])
	assert.Equal(t, "u@example.com", user["email"])
	assert.Greater(t, user["expiresAt"].(float64), float64(0))
}

func TestGatewayValidateWithoutBearer(t *testing.T) {
	f := newGateway(t, false)

	status, body := f.do(t, http.MethodPost, "/auth?action=validate", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, false, body["success"])
}

func TestGatewayRefreshMissingTokenSkipsIssuer(t *testing.T) {
	f := newGateway(t, false)

	status, body := f.do(t, http.MethodPost, "/auth?action=refresh", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "MISSING_REFRESH_TOKEN", body["code"])
	assert.Zero(t, f.exchanger.refreshCalls)
}

func TestGatewayRefreshSuccess(t *testing.T) {
	f := newGateway(t, false)
	f.exchanger.grant = &domain.AccessGrant{AccessToken: "at_new", ExpiresIn: 3599, TokenType: "Bearer"}

	status, body := f.do(t, http.MethodPost, "/auth?action=refresh", "", `{"refreshToken":"rt_123"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])

	tokens := body["tokens"].(map[string]any)
	assert.Equal(t, "at_new", tokens["access_token"])
	assert.Equal(t, float64(3599), tokens["expires_in"])
	assert.Equal(t, "Bearer", tokens["token_type"])
	_, rotated := tokens["refresh_token"]
	assert.False(t, rotated)
}

func TestGatewayRefreshSeesRequestDeadline(t *testing.T) {
	f := newGatewayWithTimeout(t, false, 5*time.Second)
	f.exchanger.grant = &domain.AccessGrant{AccessToken: "at_new", ExpiresIn: 3599, TokenType: "Bearer"}

	status, _ := f.do(t, http.MethodPost, "/auth?action=refresh", "", `{"refreshToken":"rt_123"}`)
	require.Equal(t, http.StatusOK, status)

	// the configured request timeout must reach downstream calls
	require.NotNil(t, f.exchanger.lastCtx)
	_, hasDeadline := f.exchanger.lastCtx.Deadline()
	assert.True(t, hasDeadline)
}

func TestGatewayExchangeCode(t *testing.T) {
	f := newGateway(t, false)
	f.exchanger.grant = &domain.AccessGrant{AccessToken: "at_1", RefreshToken: "rt_1", ExpiresIn: 3600, TokenType: "Bearer"}
	f.exchanger.idToken = "idt_1"
	f.exchanger.profile = &domain.UserProfile{ID: "sub-123", Email: "u@example.com", Name: "U Example", VerifiedEmail: true}

	status, body := f.do(t, http.MethodPost, "/auth?action=exchange-code", "", `{"code":"code_abc"}`)
	require.Equal(t, http.StatusOK, status)

	tokens := body["tokens"].(map[string]any)
	assert.Equal(t, "rt_1", tokens["refresh_token"])
	assert.Equal(t, "idt_1", tokens["id_token"])

	user := body["user"].(map[string]any)
	assert.Equal(t, "u@example.com", user["email"])
	assert.Equal(t, true, user["verified_email"])
}

func TestGatewayExchangeCodeMissingCode(t *testing.T) {
	f := newGateway(t, false)

	status, body := f.do(t, http.MethodPost, "/auth?action=exchange-code", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "MISSING_CODE", body["code"])
}

func TestGatewayStoreTokenScenario(t *testing.T) {
	f := newGateway(t, false)
	bearer := f.bearer(t, "sub-123", "new@example.com")

	status, body := f.do(t, http.MethodPost, "/auth?action=store-token", bearer, `{"refreshToken":"rt_123"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	require.Len(t, f.table.rows, 1)
	assert.Equal(t, []string{"sub-123", "new@example.com", "rt_123"}, f.table.rows[0])

	// same caller again: the row is updated in place, never duplicated
	status, _ = f.do(t, http.MethodPost, "/auth?action=store-token", bearer, `{"refreshToken":"rt_456"}`)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, f.table.rows, 1)
	assert.Equal(t, "rt_456", f.table.rows[0][2])
}

func TestGatewayStoreTokenRequiresBearer(t *testing.T) {
	f := newGateway(t, false)

	status, _ := f.do(t, http.MethodPost, "/auth?action=store-token", "", `{"refreshToken":"rt_123"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Empty(t, f.table.rows)
}

func TestCacheInvalidateScenario(t *testing.T) {
	f := newGateway(t, false)
	ctx := context.Background()

	// token carries no subject claim, so the scope falls back to email
	bearer := f.bearer(t, "", "u@example.com")

	status, body := f.do(t, http.MethodPost, "/cache/invalidate", bearer, `{"cacheKeys":["tasks","projects"]}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])

	data := body["data"].(map[string]any)
	assert.Equal(t, "user_u@example.com", data["userPrefix"])
	assert.ElementsMatch(t, []any{"tasks", "projects"}, data["invalidatedKeys"].([]any))

	stale, err := f.registry.IsInvalidated(ctx, "user_u@example.com", "tasks")
	require.NoError(t, err)
	assert.True(t, stale)

	f.clock.Advance(301000 * time.Millisecond)
	stale, err = f.registry.IsInvalidated(ctx, "user_u@example.com", "tasks")
	require.NoError(t, err)
	assert.False(t, stale)
}

func TestCacheInvalidateRequiresBearer(t *testing.T) {
	f := newGateway(t, false)

	status, _ := f.do(t, http.MethodPost, "/cache/invalidate", "", `{"cacheKeys":["tasks"]}`)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestCacheInvalidateDoesNotLeakAcrossUsers(t *testing.T) {
	f := newGateway(t, false)
	ctx := context.Background()

	status, _ := f.do(t, http.MethodPost, "/cache/invalidate", f.bearer(t, "sub-a", "a@example.com"), `{"cacheKeys":["tasks"]}`)
	require.Equal(t, http.StatusOK, status)

	stale, err := f.registry.IsInvalidated(ctx, "user_sub-b", "tasks")
	require.NoError(t, err)
	assert.False(t, stale)
}

func TestErrorDiagnosticsGatedByEnvironment(t *testing.T) {
	rejection := &auth.UpstreamError{Op: "token refresh", StatusCode: 400, Body: `{"error":"invalid_grant"}`}

	dev := newGateway(t, false)
	dev.exchanger.refreshErr = rejection
	status, body := dev.do(t, http.MethodPost, "/auth?action=refresh", "", `{"refreshToken":"rt_stale"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body["diagnostic"], "invalid_grant")

	prod := newGateway(t, true)
	prod.exchanger.refreshErr = rejection
	status, body = prod.do(t, http.MethodPost, "/auth?action=refresh", "", `{"refreshToken":"rt_stale"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.NotContains(t, body, "diagnostic")
	assert.Equal(t, "token refresh failed", body["error"])
}

func TestHealthLive(t *testing.T) {
	f := newGateway(t, false)

	status, body := f.do(t, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])
}
