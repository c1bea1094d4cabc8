package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Behnamfe76/auth-service/internal/api/http/handlers"
	"github.com/Behnamfe76/auth-service/internal/auth"
	"github.com/Behnamfe76/auth-service/internal/domain"
	"github.com/Behnamfe76/auth-service/internal/observability"
	"github.com/Behnamfe76/auth-service/internal/service"
	"github.com/Behnamfe76/auth-service/internal/testutil"
)

type testServer struct {
	app     *fiber.App
	keys    *auth.KeyMaterial
	manager *auth.TokenManager
	users   *testutil.UserStore
	records *testutil.RefreshTokenStore
	metrics *observability.Metrics
	logs    *observer.ObservedLogs
}

type serverOption func(*serverOptions)

type serverOptions struct {
	private   bool
	keySource auth.KeySource
	deps      map[string]handlers.Pinger
}

func withoutSigningKey() serverOption {
	return func(o *serverOptions) { o.private = false }
}

func withKeySource(src auth.KeySource) serverOption {
	return func(o *serverOptions) { o.keySource = src }
}

func withDependencies(deps map[string]handlers.Pinger) serverOption {
	return func(o *serverOptions) { o.deps = deps }
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	o := serverOptions{private: true}
	for _, opt := range opts {
		opt(&o)
	}

	private := testutil.RSAKey()
	if !o.private {
		private = nil
	}
	keys, err := auth.NewKeyMaterial(private, []byte("refresh-secret"))
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	users := testutil.NewUserStore()
	records := testutil.NewRefreshTokenStore()
	manager := auth.NewTokenManager(keys)
	authService := service.NewAuthService(service.AuthDependencies{
		Users:  service.NewUserService(users, 4),
		Tokens: service.NewTokenService(manager, records),
		Logger: logger,
	})

	keySource := o.keySource
	if keySource == nil {
		keySource = auth.StaticKeys{}
		if signing, err := keys.SigningKey(); err == nil {
			keySource = auth.StaticKeys{signing.ID: &signing.Private.PublicKey}
		}
	}

	metrics := observability.NewMetrics()
	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("auth-service", "test", o.deps, keys),
		Auth:           handlers.NewAuthHandler(authService, handlers.CookieConfig{Domain: "localhost"}),
		JWKS:           handlers.NewJWKSHandler(keys),
		AuthMiddleware: auth.NewAuthMiddleware(auth.NewVerifier(keySource), "accessToken", logger),
	})

	return &testServer{
		app:     app,
		keys:    keys,
		manager: manager,
		users:   users,
		records: records,
		metrics: metrics,
		logs:    logs,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, mutate ...func(*http.Request)) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for _, m := range mutate {
		m(req)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func withCookies(cookies ...*http.Cookie) func(*http.Request) {
	return func(r *http.Request) {
		for _, c := range cookies {
			r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func cookieNamed(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	body := decode(t, resp)
	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok, "missing error body: %v", body)
	return errBody["code"].(string)
}

var johnDoe = map[string]string{
	"firstName": "John",
	"lastName":  "Doe",
	"email":     "john.doe@test.com",
	"password":  "secret12",
}

func TestRegister_Created(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodPost, "/auth/register", johnDoe)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	access := cookieNamed(resp, "accessToken")
	refresh := cookieNamed(resp, "refreshToken")
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	for _, c := range []*http.Cookie{access, refresh} {
		assert.True(t, c.HttpOnly)
		assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
		assert.Equal(t, "localhost", c.Domain)
	}
	assert.Equal(t, 3600, access.MaxAge)
	assert.Equal(t, 365*24*3600, refresh.MaxAge)

	body := decode(t, resp)
	id, ok := body["id"].(float64)
	require.True(t, ok)

	user, err := s.users.GetByID(context.Background(), int64(id))
	require.NoError(t, err)
	assert.Equal(t, "john.doe@test.com", user.Email)
	assert.NotEqual(t, "secret12", user.PasswordHash)
	assert.Equal(t, domain.RoleConsumer, user.Role)
	assert.Len(t, s.records.ForUser(user.ID), 1)
}

func TestRegister_TrimsInput(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodPost, "/auth/register", map[string]string{
		"firstName": " John ",
		"lastName":  "Doe ",
		"email":     "  john.doe@test.com ",
		"password":  "secret12",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	user, err := s.users.GetByEmail(context.Background(), "john.doe@test.com")
	require.NoError(t, err)
	assert.Equal(t, "John", user.FirstName)
	assert.Equal(t, "Doe", user.LastName)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	s := newTestServer(t)

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/auth/register", johnDoe).StatusCode)

	resp := s.do(t, http.MethodPost, "/auth/register", johnDoe)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "DUPLICATE_CREDENTIAL", errorCode(t, resp))
	assert.Equal(t, 1, s.users.Len())
}

func TestRegister_ValidationFailure(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodPost, "/auth/register", map[string]string{
		"firstName": "John",
		"email":     "not-an-email",
		"password":  "short",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decode(t, resp)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_FAILED", errBody["code"])
	details := errBody["details"].(map[string]any)
	assert.Contains(t, details, "lastName")
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "password")
	assert.Zero(t, s.users.Len())
}

func TestRegister_MultibytePasswordOverByteLimit(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodPost, "/auth/register", map[string]string{
		"firstName": "John",
		"lastName":  "Doe",
		"email":     "john.doe@test.com",
		"password":  strings.Repeat("é", 40),
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decode(t, resp)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_FAILED", errBody["code"])
	assert.Contains(t, errBody["details"], "password")
	assert.Zero(t, s.users.Len())
}

func TestRegister_EmailCaseDistinguishesAccounts(t *testing.T) {
	s := newTestServer(t)

	for _, email := range []string{"John@x.com", "john@x.com"} {
		resp := s.do(t, http.MethodPost, "/auth/register", map[string]string{
			"firstName": "John",
			"lastName":  "Doe",
			"email":     email,
			"password":  "secret12",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode, email)
	}
	assert.Equal(t, 2, s.users.Len())
}

func TestRegister_MalformedBody(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader("{"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRegister_StorageFailureIs500(t *testing.T) {
	s := newTestServer(t)
	s.users.Err = errors.New("connection refused")

	resp := s.do(t, http.MethodPost, "/auth/register", johnDoe)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	body := decode(t, resp)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "INTERNAL_ERROR", errBody["code"])
	assert.NotContains(t, errBody["message"], "connection refused")

	entries := s.logs.FilterMessage("request failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "storage_failure", entries[0].ContextMap()["kind"])
}

func TestRegister_SigningKeyUnavailable(t *testing.T) {
	s := newTestServer(t, withoutSigningKey())

	resp := s.do(t, http.MethodPost, "/auth/register", johnDoe)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, resp))
	assert.Zero(t, s.records.Len())

	entries := s.logs.FilterMessage("request failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "signing_key_unavailable", entries[0].ContextMap()["kind"])
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	registered := decode(t, s.do(t, http.MethodPost, "/auth/register", johnDoe))

	resp := s.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "john.doe@test.com",
		"password": "secret12",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, cookieNamed(resp, "accessToken"))
	assert.NotNil(t, cookieNamed(resp, "refreshToken"))
	assert.Equal(t, registered["id"], decode(t, resp)["id"])

	for _, creds := range []map[string]string{
		{"email": "john.doe@test.com", "password": "wrong-password"},
		{"email": "nobody@test.com", "password": "secret12"},
	} {
		resp := s.do(t, http.MethodPost, "/auth/login", creds)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "LOGIN_MISMATCH", errorCode(t, resp))
	}
}

func TestSelf_NoTokenIs401(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/auth/self", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, resp))
}

func TestSelf_ValidTokenAttachesIdentity(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/auth/register", johnDoe).StatusCode)

	token, _, err := s.manager.GenerateAccessToken(domain.TokenPayload{Subject: "1", Role: domain.RoleConsumer})
	require.NoError(t, err)

	resp := s.do(t, http.MethodGet, "/auth/self", nil, withBearer(token))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, float64(1), body["id"])
	assert.Equal(t, "john.doe@test.com", body["email"])
	assert.Equal(t, "consumer", body["role"])
	assert.NotContains(t, body, "password")
	assert.NotContains(t, body, "passwordHash")
}

func TestSelf_CookieSession(t *testing.T) {
	s := newTestServer(t)
	reg := s.do(t, http.MethodPost, "/auth/register", johnDoe)
	require.Equal(t, http.StatusCreated, reg.StatusCode)

	resp := s.do(t, http.MethodGet, "/auth/self", nil, withCookies(cookieNamed(reg, "accessToken")))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSelf_RefreshTokenIsNotAnAccessToken(t *testing.T) {
	s := newTestServer(t)
	reg := s.do(t, http.MethodPost, "/auth/register", johnDoe)

	resp := s.do(t, http.MethodGet, "/auth/self", nil, withBearer(cookieNamed(reg, "refreshToken").Value))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRefresh_Rotates(t *testing.T) {
	s := newTestServer(t)
	reg := s.do(t, http.MethodPost, "/auth/register", johnDoe)
	oldRefresh := cookieNamed(reg, "refreshToken")

	resp := s.do(t, http.MethodPost, "/auth/refresh", nil, withCookies(oldRefresh))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	newRefresh := cookieNamed(resp, "refreshToken")
	require.NotNil(t, newRefresh)
	assert.NotEqual(t, oldRefresh.Value, newRefresh.Value)
	assert.Equal(t, 1, s.records.Len())

	reuse := s.do(t, http.MethodPost, "/auth/refresh", nil, withCookies(oldRefresh))
	assert.Equal(t, http.StatusUnauthorized, reuse.StatusCode)

	missing := s.do(t, http.MethodPost, "/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, missing.StatusCode)
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)
	reg := s.do(t, http.MethodPost, "/auth/register", johnDoe)
	access := cookieNamed(reg, "accessToken")
	refresh := cookieNamed(reg, "refreshToken")

	resp := s.do(t, http.MethodPost, "/auth/logout", nil, withCookies(access, refresh))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, name := range []string{"accessToken", "refreshToken"} {
		cleared := cookieNamed(resp, name)
		require.NotNil(t, cleared, name)
		assert.Empty(t, cleared.Value)
	}
	assert.Zero(t, s.records.Len())

	again := s.do(t, http.MethodPost, "/auth/refresh", nil, withCookies(refresh))
	assert.Equal(t, http.StatusUnauthorized, again.StatusCode)

	anonymous := s.do(t, http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusUnauthorized, anonymous.StatusCode)
}

func TestJWKS_PublishesVerifiableKey(t *testing.T) {
	issuer := newTestServer(t)

	resp := issuer.do(t, http.MethodGet, "/.well-known/jwks.json", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var set auth.JWKSet
	require.NoError(t, json.Unmarshal(raw, &set))
	require.Len(t, set.Keys, 1)
	signing, err := issuer.keys.SigningKey()
	require.NoError(t, err)
	assert.Equal(t, signing.ID, set.Keys[0].Kid)
	assert.Equal(t, "RS256", set.Keys[0].Alg)

	jwksServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(raw)
	}))
	defer jwksServer.Close()

	// a second service verifying through the published key set
	client := auth.NewJWKSClient(auth.JWKSConfig{URI: jwksServer.URL}, nil, nil)
	consumer := newTestServer(t, withKeySource(client))
	reg := issuer.do(t, http.MethodPost, "/auth/register", johnDoe)
	require.Equal(t, http.StatusCreated, reg.StatusCode)

	// the consumer verifies the token but has no such user, so the lookup ends in 401
	token := cookieNamed(reg, "accessToken").Value
	selfResp := consumer.do(t, http.MethodGet, "/auth/self", nil, withBearer(token))
	assert.Equal(t, http.StatusUnauthorized, selfResp.StatusCode)
	assert.Equal(t, 0, consumer.logs.FilterMessage("request authentication failed").Len())
}

func TestJWKS_SigningKeyUnavailable(t *testing.T) {
	s := newTestServer(t, withoutSigningKey())

	resp := s.do(t, http.MethodGet, "/.well-known/jwks.json", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestRoot(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Hello from auth service", decode(t, resp)["message"])
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	healthy := newTestServer(t, withDependencies(map[string]handlers.Pinger{"postgres": pinger{}, "redis": pinger{}}))
	assert.Equal(t, http.StatusOK, healthy.do(t, http.MethodGet, "/health/live", nil).StatusCode)
	assert.Equal(t, http.StatusOK, healthy.do(t, http.MethodGet, "/health/ready", nil).StatusCode)

	degraded := newTestServer(t, withDependencies(map[string]handlers.Pinger{"redis": pinger{err: errors.New("down")}}))
	resp := degraded.do(t, http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", errorCode(t, resp))

	noKey := newTestServer(t, withoutSigningKey())
	assert.Equal(t, http.StatusServiceUnavailable, noKey.do(t, http.MethodGet, "/health/ready", nil).StatusCode)
}

func TestUnknownRouteIs404(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/auth/unknown", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorCode(t, resp))
}

func TestErrorsAreCounted(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/auth/self", nil)
	s.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "nobody@test.com", "password": "x"})

	snap := s.metrics.Snapshot()
	assert.Equal(t, int64(1), snap.Errors["/auth/login|POST|LOGIN_MISMATCH"])
	assert.Equal(t, int64(1), snap.Requests["/auth/self|GET|"+strconv.Itoa(http.StatusUnauthorized)])
}
