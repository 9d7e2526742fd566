package middleware

import (
	"net/http"
	"strings"

	"github.com/CleverOnion/CleverOnion-blog-sub000/api"
	"github.com/CleverOnion/CleverOnion-blog-sub000/domain"
	autherrors "github.com/CleverOnion/CleverOnion-blog-sub000/errors"
	"github.com/labstack/echo/v4"
)

const (
	claimsContextKey = "auth_claims"
	userIDContextKey = "auth_user_id"
)

// AccessTokenVerifier is the slice of the token service the middleware
// needs; services.TokenService satisfies it.
type AccessTokenVerifier interface {
	Verify(token string, kind domain.TokenKind) (*domain.TokenClaims, error)
}

// BearerAuth returns echo middleware enforcing a valid access token on the
// Authorization header. Every failure mode yields the same 401 envelope;
// clients treat it uniformly as "clear local session".
func BearerAuth(tokens AccessTokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return unauthorized(c)
			}

			claims, err := tokens.Verify(parts[1], domain.TokenKindAccess)
			if err != nil {
				return unauthorized(c)
			}

			c.Set(claimsContextKey, claims)
			c.Set(userIDContextKey, claims.Subject)
			return next(c)
		}
	}
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized,
		api.Error(http.StatusUnauthorized, autherrors.ErrInvalidToken.Message))
}

// ClaimsFromContext returns the validated claims set by BearerAuth.
func ClaimsFromContext(c echo.Context) (*domain.TokenClaims, bool) {
	claims, ok := c.Get(claimsContextKey).(*domain.TokenClaims)
	return claims, ok
}

// UserIDFromContext returns the authenticated local user id.
func UserIDFromContext(c echo.Context) (string, bool) {
	id, ok := c.Get(userIDContextKey).(string)
	return id, ok
}
