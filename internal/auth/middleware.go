package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const principalKey = "principal"

// Claims is the token shape issued by the identity service.
type Claims struct {
	Role       Role `json:"role"`
	IsVerified bool `json:"is_verified"`
	jwt.RegisteredClaims
}

// Middleware validates the Bearer token and stores the Principal on the
// echo context.
func Middleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed token")
			}
			p, err := ParseToken(secret, raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}
			c.Set(principalKey, p)
			return next(c)
		}
	}
}

func ParseToken(secret []byte, raw string) (Principal, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Principal{}, err
	}
	var id uint
	if _, err := fmt.Sscanf(claims.Subject, "%d", &id); err != nil || id == 0 {
		return Principal{}, errors.New("token subject is not a user id")
	}
	switch claims.Role {
	case RolePassenger, RoleDriver, RoleAdmin:
	default:
		return Principal{}, fmt.Errorf("unknown role %q", claims.Role)
	}
	return Principal{ID: id, Role: claims.Role, IsVerified: claims.IsVerified}, nil
}

// SignToken issues an HS256 token for p; used by tests and local tooling.
func SignToken(secret []byte, p Principal) (string, error) {
	claims := Claims{
		Role:       p.Role,
		IsVerified: p.IsVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: fmt.Sprintf("%d", p.ID),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// FromContext returns the principal stored by Middleware.
func FromContext(c echo.Context) (Principal, bool) {
	p, ok := c.Get(principalKey).(Principal)
	return p, ok
}

// SetPrincipal is used by handler tests that bypass the token check.
func SetPrincipal(c echo.Context, p Principal) {
	c.Set(principalKey, p)
}

// RequireRole rejects requests whose principal holds none of roles.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := FromContext(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
			}
			if !p.Is(roles...) {
				return echo.NewHTTPError(http.StatusForbidden, "forbidden")
			}
			return next(c)
		}
	}
}
