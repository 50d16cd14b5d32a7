package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func TestParseToken_RoundTrip(t *testing.T) {
	raw, err := SignToken(secret, Principal{ID: 42, Role: RoleDriver, IsVerified: true})
	require.NoError(t, err)

	p, err := ParseToken(secret, raw)

	require.NoError(t, err)
	assert.Equal(t, Principal{ID: 42, Role: RoleDriver, IsVerified: true}, p)
}

func TestParseToken_WrongSecret(t *testing.T) {
	raw, _ := SignToken(secret, Principal{ID: 1, Role: RolePassenger})

	_, err := ParseToken([]byte("other"), raw)

	assert.Error(t, err)
}

func TestParseToken_SystemRoleNotAcceptedFromTokens(t *testing.T) {
	raw, _ := SignToken(secret, Principal{ID: 1, Role: RoleSystem})

	_, err := ParseToken(secret, raw)

	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	e := echo.New()
	var seen Principal
	h := Middleware(secret)(func(c echo.Context) error {
		seen, _ = FromContext(c)
		return c.NoContent(http.StatusOK)
	})

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		err := h(c)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusUnauthorized, he.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		raw, _ := SignToken(secret, Principal{ID: 9, Role: RolePassenger})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+raw)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		assert.NoError(t, h(c))
		assert.Equal(t, uint(9), seen.ID)
		assert.Equal(t, RolePassenger, seen.Role)
	})
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	h := RequireRole(RoleAdmin)(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	SetPrincipal(c, Principal{ID: 3, Role: RoleDriver})
	err := h(c)

	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, he.Code)
}

func TestPrincipalRequire(t *testing.T) {
	assert.NoError(t, Principal{Role: RoleAdmin}.Require(RoleAdmin, RoleSystem))
	assert.Error(t, Principal{Role: RolePassenger}.Require(RoleDriver))
	assert.True(t, System.Operator())
}
