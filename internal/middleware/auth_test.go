package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinovia/hospital-api/internal/utils"
)

const testSecret = "middleware-test-secret"

func invoke(t *testing.T, mw echo.MiddlewareFunc, authHeader string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	reached := false
	h := mw(func(c echo.Context) error {
		reached = true
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	return rec, reached
}

func TestJWTAuthMissingHeader(t *testing.T) {
	rec, reached := invoke(t, JWTAuth(testSecret), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, reached)
	assert.Contains(t, rec.Body.String(), "no authorization token provided")
}

func TestJWTAuthNotBearer(t *testing.T) {
	rec, reached := invoke(t, JWTAuth(testSecret), "Basic abc123")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, reached)
	assert.Contains(t, rec.Body.String(), "no authorization token provided")
}

func TestJWTAuthBadToken(t *testing.T) {
	rec, reached := invoke(t, JWTAuth(testSecret), "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, reached)
	assert.Contains(t, rec.Body.String(), "invalid or expired token")
}

func TestJWTAuthWrongSecret(t *testing.T) {
	tok, err := utils.NewAccessToken("other-secret", 1, 1, nil, nil, 60)
	require.NoError(t, err)

	rec, reached := invoke(t, JWTAuth(testSecret), "Bearer "+tok.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, reached)
}

func TestJWTAuthInjectsIdentity(t *testing.T) {
	roles := []string{"doctor"}
	perms := []string{"PATIENT:READ", "APPOINTMENT:*"}
	tok, err := utils.NewAccessToken(testSecret, 42, 7, roles, perms, 60)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got Identity
	h := JWTAuth(testSecret)(func(c echo.Context) error {
		ident, ok := IdentityFrom(c)
		require.True(t, ok)
		got = ident
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(42), got.UserID)
	assert.Equal(t, uint64(7), got.TenantID)
	assert.Equal(t, roles, got.Roles)
	assert.Equal(t, perms, got.Permissions)
}

func TestIdentityFromEmptyContext(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	_, ok := IdentityFrom(c)
	assert.False(t, ok)
}
