package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/CleverOnion/CleverOnion-blog-sub000/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvelope(w http.ResponseWriter, status int, resp api.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func TestClient_UnauthorizedClearsSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnauthorized,
			api.Error(http.StatusUnauthorized, "Invalid or expired token"))
	}))
	defer server.Close()

	store := NewSessionStore(NewMemoryStorage())
	require.NoError(t, store.Persist(testPair(), 3600, testProfile()))
	require.True(t, store.IsValid())

	c := New(server.URL, store)
	_, err := c.Me(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)

	assert.False(t, store.IsValid(), "a 401 must clear the local session")
	assert.Empty(t, store.AccessToken())
}

func TestClient_MeAttachesBearer(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeEnvelope(w, http.StatusOK, api.Success(api.UserInfo{ID: "user-1", Username: "alice"}))
	}))
	defer server.Close()

	store := NewSessionStore(NewMemoryStorage())
	require.NoError(t, store.Persist(testPair(), 3600, testProfile()))

	c := New(server.URL, store)
	profile, err := c.Me(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer access-token", gotAuth)
	assert.Equal(t, "alice", profile.Username)
}

func TestClient_MeWithoutSession(t *testing.T) {
	c := New("http://localhost:0", NewSessionStore(NewMemoryStorage()))
	_, err := c.Me(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestClient_RefreshUpdatesSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/refresh", r.URL.Path)
		var req api.RefreshRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "refresh-token", req.RefreshToken)

		writeEnvelope(w, http.StatusOK, api.Success(api.RefreshData{
			AccessToken: "fresh-access-token",
			ExpiresIn:   3600,
		}))
	}))
	defer server.Close()

	store := NewSessionStore(NewMemoryStorage())
	require.NoError(t, store.Persist(testPair(), 3600, testProfile()))

	c := New(server.URL, store)
	require.NoError(t, c.Refresh(context.Background()))

	assert.Equal(t, "fresh-access-token", store.AccessToken())
	assert.Equal(t, "refresh-token", store.RefreshToken())
}

func TestClient_LogoutClearsSessionEvenOn401(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnauthorized,
			api.Error(http.StatusUnauthorized, "Invalid or expired token"))
	}))
	defer server.Close()

	store := NewSessionStore(NewMemoryStorage())
	require.NoError(t, store.Persist(testPair(), 3600, testProfile()))

	c := New(server.URL, store)
	require.NoError(t, c.Logout(context.Background()))
	assert.False(t, store.IsValid())
}

func TestClient_CompleteLoginPersistsSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/callback/github", r.URL.Path)
		require.Equal(t, "abc", r.URL.Query().Get("code"))

		writeEnvelope(w, http.StatusOK, api.Success(api.LoginData{
			AccessToken:  "access-token",
			RefreshToken: "refresh-token",
			ExpiresIn:    3600,
			TokenType:    "Bearer",
			UserInfo:     api.UserInfo{ID: "user-1", Username: "alice"},
		}))
	}))
	defer server.Close()

	store := NewSessionStore(NewMemoryStorage())
	c := New(server.URL, store)

	profile, err := c.CompleteLogin(context.Background(), "github", "abc", "state-1")
	require.NoError(t, err)

	assert.Equal(t, "alice", profile.Username)
	assert.True(t, store.IsValid())
	assert.Equal(t, "access-token", store.AccessToken())
}
