package auth

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substrate-hq/substrate/pkg/apperror"
)

const testSecret = "test-secret"

func newTestMiddleware(cfg Config) *Middleware {
	return NewMiddleware(cfg, slog.Default())
}

func doRequest(t *testing.T, m *Middleware, mutate func(*http.Request)) (*Actor, error) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	mutate(req)
	c := e.NewContext(req, httptest.NewRecorder())

	var resolved *Actor
	handler := m.RequireAuth()(func(c echo.Context) error {
		resolved = GetActor(c)
		return nil
	})
	return resolved, handler(c)
}

func TestBearerTokenRoundTrip(t *testing.T) {
	m := newTestMiddleware(Config{JWTSecret: testSecret})
	actorID := uuid.New()

	token, err := IssueToken(testSecret, actorID)
	require.NoError(t, err)

	actor, err := doRequest(t, m, func(req *http.Request) {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	})
	require.NoError(t, err)
	require.NotNil(t, actor)
	assert.Equal(t, actorID, actor.ID)
	assert.False(t, actor.APIKey)
}

func TestMissingCredentials(t *testing.T) {
	m := newTestMiddleware(Config{JWTSecret: testSecret})

	_, err := doRequest(t, m, func(*http.Request) {})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, "unauthorized"))
}

func TestMalformedAuthorizationHeader(t *testing.T) {
	m := newTestMiddleware(Config{JWTSecret: testSecret})

	_, err := doRequest(t, m, func(req *http.Request) {
		req.Header.Set(echo.HeaderAuthorization, "Basic dXNlcjpwYXNz")
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, "invalid_token"))
}

func TestWrongSecretRejected(t *testing.T) {
	m := newTestMiddleware(Config{JWTSecret: testSecret})

	token, err := IssueToken("other-secret", uuid.New())
	require.NoError(t, err)

	_, err = doRequest(t, m, func(req *http.Request) {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, "invalid_token"))
}

func TestNonUUIDSubjectRejected(t *testing.T) {
	m := newTestMiddleware(Config{JWTSecret: testSecret})

	badToken := issueTokenWithSubject(t, "not-a-uuid")
	_, err := doRequest(t, m, func(req *http.Request) {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+badToken)
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, "invalid_token"))
}

func TestAPIKeyPath(t *testing.T) {
	serviceID := uuid.New()
	m := newTestMiddleware(Config{JWTSecret: testSecret, APIKey: "k-123", APIKeyActorID: serviceID})

	actor, err := doRequest(t, m, func(req *http.Request) {
		req.Header.Set("X-API-Key", "k-123")
	})
	require.NoError(t, err)
	require.NotNil(t, actor)
	assert.Equal(t, serviceID, actor.ID)
	assert.True(t, actor.APIKey)
}

func TestWrongAPIKeyRejected(t *testing.T) {
	m := newTestMiddleware(Config{JWTSecret: testSecret, APIKey: "k-123"})

	_, err := doRequest(t, m, func(req *http.Request) {
		req.Header.Set("X-API-Key", "k-456")
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, "invalid_token"))
}

func TestAPIKeyDisabled(t *testing.T) {
	m := newTestMiddleware(Config{JWTSecret: testSecret})

	_, err := doRequest(t, m, func(req *http.Request) {
		req.Header.Set("X-API-Key", "anything")
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, "invalid_token"))
}

func issueTokenWithSubject(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: subject})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}
