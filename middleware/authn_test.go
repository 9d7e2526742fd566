package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/CleverOnion/CleverOnion-blog-sub000/domain"
	autherrors "github.com/CleverOnion/CleverOnion-blog-sub000/errors"
	"github.com/CleverOnion/CleverOnion-blog-sub000/middleware"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier struct {
	claims *domain.TokenClaims
	err    error
	gotTok string
}

func (s *stubVerifier) Verify(token string, _ domain.TokenKind) (*domain.TokenClaims, error) {
	s.gotTok = token
	if s.err != nil {
		return nil, s.err
	}
	return s.claims, nil
}

func runMiddleware(t *testing.T, verifier middleware.AccessTokenVerifier, authHeader string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	reached := false
	handler := middleware.BearerAuth(verifier)(func(c echo.Context) error {
		reached = true
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	return rec, reached
}

func TestBearerAuth_ValidToken(t *testing.T) {
	verifier := &stubVerifier{claims: &domain.TokenClaims{Kind: domain.TokenKindAccess}}
	verifier.claims.Subject = "user-1"

	rec, reached := runMiddleware(t, verifier, "Bearer good-token")
	assert.True(t, reached)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "good-token", verifier.gotTok)
}

func TestBearerAuth_MissingHeader(t *testing.T) {
	rec, reached := runMiddleware(t, &stubVerifier{}, "")
	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":401`)
}

func TestBearerAuth_WrongScheme(t *testing.T) {
	rec, reached := runMiddleware(t, &stubVerifier{}, "Basic dXNlcjpwYXNz")
	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerAuth_InvalidToken(t *testing.T) {
	verifier := &stubVerifier{err: autherrors.ErrInvalidToken}
	rec, reached := runMiddleware(t, verifier, "Bearer bad-token")
	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestContextHelpers(t *testing.T) {
	verifier := &stubVerifier{claims: &domain.TokenClaims{Kind: domain.TokenKindAccess}}
	verifier.claims.Subject = "user-1"

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := middleware.BearerAuth(verifier)(func(c echo.Context) error {
		userID, ok := middleware.UserIDFromContext(c)
		require.True(t, ok)
		assert.Equal(t, "user-1", userID)

		claims, ok := middleware.ClaimsFromContext(c)
		require.True(t, ok)
		assert.Equal(t, domain.TokenKindAccess, claims.Kind)
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}
