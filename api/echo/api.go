package echo

import (
	"errors"
	"net/http"

	"github.com/CleverOnion/CleverOnion-blog-sub000/api"
	"github.com/CleverOnion/CleverOnion-blog-sub000/domain"
	autherrors "github.com/CleverOnion/CleverOnion-blog-sub000/errors"
	"github.com/CleverOnion/CleverOnion-blog-sub000/internal/federation"
	"github.com/CleverOnion/CleverOnion-blog-sub000/middleware"
	"github.com/CleverOnion/CleverOnion-blog-sub000/services"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const (
	stateCookieName = "blog_oauth_state"
	// States live minutes on the server side too; the cookie just needs to
	// survive the provider round trip.
	stateCookieMaxAge = 300
)

// AuthAPI holds the HTTP handlers for the auth endpoints.
type AuthAPI struct {
	auth    *services.AuthService
	refresh *services.RefreshService
	users   domain.UserRepository
	tokens  *services.TokenService
}

// NewAuthAPI creates an AuthAPI.
func NewAuthAPI(
	auth *services.AuthService,
	refresh *services.RefreshService,
	users domain.UserRepository,
	tokens *services.TokenService,
) *AuthAPI {
	return &AuthAPI{
		auth:    auth,
		refresh: refresh,
		users:   users,
		tokens:  tokens,
	}
}

// RegisterRoutes registers the auth routes.
func (a *AuthAPI) RegisterRoutes(e *echo.Echo) {
	authn := middleware.BearerAuth(a.tokens)

	e.GET("/auth/login/:provider", a.LoginHandler)
	e.GET("/auth/callback/:provider", a.CallbackHandler)
	// Some providers deliver the callback as a form POST.
	e.POST("/auth/callback/:provider", a.CallbackHandler)
	e.POST("/auth/refresh", a.RefreshHandler)
	e.GET("/auth/me", a.MeHandler, authn)
	e.POST("/auth/logout", a.LogoutHandler, authn)
}

// LoginHandler begins the login flow: issues a state, stores it in an
// HttpOnly cookie for the callback comparison, and redirects the browser
// to the provider. Clients that navigate themselves pass redirect=false
// and receive the URL in the envelope instead.
func (a *AuthAPI) LoginHandler(c echo.Context) error {
	providerName := c.Param("provider")

	intent, err := a.auth.BeginLogin(c.Request().Context(), providerName)
	if err != nil {
		return respondError(c, err)
	}

	a.setStateCookie(c, intent.State, stateCookieMaxAge)

	if c.QueryParam("redirect") == "false" {
		return c.JSON(http.StatusOK, api.Success(api.LoginURLData{
			AuthorizationURL: intent.AuthorizationURL,
		}))
	}
	return c.Redirect(http.StatusFound, intent.AuthorizationURL)
}

// CallbackHandler handles the provider redirect: validates the CSRF state
// round trip, completes the exchange, and returns the minted token pair.
// The state cookie is cleared before any validation so a failed callback
// never leaves a reusable state behind.
func (a *AuthAPI) CallbackHandler(c echo.Context) error {
	providerName := c.Param("provider")

	savedState := ""
	if cookie, err := c.Cookie(stateCookieName); err == nil {
		savedState = cookie.Value
	}
	a.setStateCookie(c, "", -1)

	code := c.QueryParam("code")
	state := c.QueryParam("state")
	providerErr := c.QueryParam("error")
	if c.Request().Method == http.MethodPost {
		if code == "" {
			code = c.FormValue("code")
		}
		if state == "" {
			state = c.FormValue("state")
		}
		if providerErr == "" {
			providerErr = c.FormValue("error")
		}
	}

	result, err := a.auth.HandleCallback(c.Request().Context(), services.CallbackInput{
		Provider:      providerName,
		Code:          code,
		State:         state,
		SavedState:    savedState,
		ProviderError: providerErr,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, api.Success(api.LoginData{
		AccessToken:  result.Pair.AccessToken,
		RefreshToken: result.Pair.RefreshToken,
		ExpiresIn:    result.Pair.ExpiresIn,
		TokenType:    "Bearer",
		UserInfo:     toUserInfo(result.User),
		LoginTime:    result.LoginTime.UnixMilli(),
	}))
}

// RefreshHandler exchanges a refresh token for a new access token.
func (a *AuthAPI) RefreshHandler(c echo.Context) error {
	var req api.RefreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest,
			api.Error(http.StatusBadRequest, "refresh_token is required"))
	}

	access, expiresIn, err := a.refresh.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, api.Success(api.RefreshData{
		AccessToken: access,
		ExpiresIn:   expiresIn,
	}))
}

// MeHandler returns the authenticated user's profile.
func (a *AuthAPI) MeHandler(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return respondError(c, autherrors.ErrInvalidToken)
	}

	user, err := a.users.GetUserByID(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, api.Success(toUserInfo(user)))
}

// LogoutHandler acknowledges a logout. Tokens are self-contained and there
// is no server-side revocation list, so this is advisory: the client
// clears its session and the tokens age out on their own expiry.
func (a *AuthAPI) LogoutHandler(c echo.Context) error {
	if userID, ok := middleware.UserIDFromContext(c); ok {
		log.Info().Str("user_id", userID).Msg("User logged out")
	}
	return c.JSON(http.StatusOK, api.Success(nil))
}

func (a *AuthAPI) setStateCookie(c echo.Context, value string, maxAge int) {
	c.SetCookie(&http.Cookie{
		Name:     stateCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   c.Request().TLS != nil,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func toUserInfo(user *domain.User) api.UserInfo {
	return api.UserInfo{
		ID:          user.ID,
		ProviderID:  user.GitHubID,
		Username:    user.Username,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Bio:         user.Bio,
		AvatarURL:   user.AvatarURL,
		CreatedAt:   user.CreatedAt,
	}
}

// respondError maps service errors onto the wire envelope. Only the fixed
// taxonomy reaches the client; anything else is a generic 500.
func respondError(c echo.Context, err error) error {
	var authErr *autherrors.AuthError
	if errors.As(err, &authErr) {
		return c.JSON(authErr.HTTPStatus, api.Error(authErr.HTTPStatus, authErr.Message))
	}
	if errors.Is(err, federation.ErrProviderNotFound) {
		return c.JSON(http.StatusNotFound,
			api.Error(http.StatusNotFound, "Unknown login provider"))
	}

	log.Error().Err(err).Str("path", c.Path()).Msg("Unhandled error in auth handler")
	return c.JSON(http.StatusInternalServerError,
		api.Error(http.StatusInternalServerError, "Internal server error"))
}
