package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/CleverOnion/CleverOnion-blog-sub000/api"
	"github.com/CleverOnion/CleverOnion-blog-sub000/domain"
	"github.com/rs/zerolog/log"
)

// ErrUnauthorized is returned when the server answered 401. The local
// session has already been cleared by the time callers see it.
var ErrUnauthorized = errors.New("client: unauthorized")

// defaultRefreshThreshold triggers a proactive refresh when the stored
// expiry is this close.
const defaultRefreshThreshold = 5 * time.Minute

// Client talks to the auth endpoints. It attaches the stored access token
// to outbound requests, refreshes it proactively when it is about to
// expire, and clears the session store whenever any endpoint answers 401,
// so a revoked or expired session is never silently retained.
type Client struct {
	httpClient       *http.Client
	baseURL          string
	session          SessionStore
	refreshThreshold time.Duration
}

// New creates a Client for the server at baseURL. The cookie jar carries
// the state cookie across the login round trip.
func New(baseURL string, session SessionStore) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		httpClient:       &http.Client{Jar: jar, Timeout: 30 * time.Second},
		baseURL:          baseURL,
		session:          session,
		refreshThreshold: defaultRefreshThreshold,
	}
}

// envelope mirrors the server's JSON response wrapper.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// LoginURL asks the server to begin a login and returns the provider
// authorization URL for the caller to open. The anti-CSRF state travels in
// the cookie jar.
func (c *Client) LoginURL(ctx context.Context, provider string) (string, error) {
	var data api.LoginURLData
	err := c.do(ctx, http.MethodGet, "/auth/login/"+provider+"?redirect=false", nil, &data, false)
	if err != nil {
		return "", err
	}
	return data.AuthorizationURL, nil
}

// CompleteLogin submits the code and state the provider redirected back
// with, and persists the resulting session.
func (c *Client) CompleteLogin(ctx context.Context, provider, code, state string) (*api.UserInfo, error) {
	var data api.LoginData
	path := fmt.Sprintf("/auth/callback/%s?code=%s&state=%s", provider, code, state)
	if err := c.do(ctx, http.MethodGet, path, nil, &data, false); err != nil {
		return nil, err
	}

	pair := &domain.TokenPair{
		AccessToken:  data.AccessToken,
		RefreshToken: data.RefreshToken,
		ExpiresIn:    data.ExpiresIn,
	}
	profile := data.UserInfo
	if err := c.session.Persist(pair, data.ExpiresIn, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Me returns the current user's profile.
func (c *Client) Me(ctx context.Context) (*api.UserInfo, error) {
	var profile api.UserInfo
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &profile, true); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Refresh exchanges the stored refresh token for a new access token and
// updates the session store.
func (c *Client) Refresh(ctx context.Context) error {
	refreshToken := c.session.RefreshToken()
	if refreshToken == "" {
		return ErrUnauthorized
	}

	var data api.RefreshData
	body := api.RefreshRequest{RefreshToken: refreshToken}
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", body, &data, false); err != nil {
		return err
	}
	return c.session.UpdateAccessToken(data.AccessToken, data.ExpiresIn)
}

// Logout notifies the server (advisory) and clears the local session. The
// local clear happens regardless of the server's answer.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, true)
	if clearErr := c.session.Clear(); clearErr != nil {
		return clearErr
	}
	if err != nil && !errors.Is(err, ErrUnauthorized) {
		return err
	}
	return nil
}

// do performs one request. With authenticated set, it attaches the bearer
// header, refreshing first when the stored expiry is close, and clears the
// session on a 401 answer.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, authenticated bool) error {
	var reqBody *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(encoded)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if authenticated {
		c.maybeRefresh(ctx)
		token := c.session.AccessToken()
		if token == "" {
			return ErrUnauthorized
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// Any 401 means the session is dead; drop it everywhere.
		if clearErr := c.session.Clear(); clearErr != nil {
			log.Warn().Err(clearErr).Msg("Failed to clear session after 401")
		}
		return ErrUnauthorized
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if env.Code != http.StatusOK {
		return fmt.Errorf("server error %d: %s", env.Code, env.Message)
	}

	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}

// maybeRefresh refreshes the access token when it is still valid but
// expiring within the threshold. Best effort: a failed proactive refresh
// leaves the current token in place for the real request to judge.
func (c *Client) maybeRefresh(ctx context.Context) {
	if !c.session.IsValid() {
		return
	}
	expiresAt := time.UnixMilli(c.session.ExpiresAt())
	if time.Until(expiresAt) > c.refreshThreshold {
		return
	}
	if c.session.RefreshToken() == "" {
		return
	}
	if err := c.Refresh(ctx); err != nil {
		log.Debug().Err(err).Msg("Proactive token refresh failed")
	}
}
