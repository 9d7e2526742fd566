package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/CleverOnion/CleverOnion-blog-sub000/cache"
	"github.com/CleverOnion/CleverOnion-blog-sub000/domain"
	autherrors "github.com/CleverOnion/CleverOnion-blog-sub000/errors"
	"github.com/CleverOnion/CleverOnion-blog-sub000/internal/federation"
	"github.com/CleverOnion/CleverOnion-blog-sub000/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// --- Fakes ---

type fakeStateStore struct {
	mu     sync.Mutex
	states map[string]bool
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{states: make(map[string]bool)}
}

func (f *fakeStateStore) Issue(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, err := cache.GenerateState()
	if err != nil {
		return "", err
	}
	f.states[state] = true
	return state, nil
}

func (f *fakeStateStore) Consume(_ context.Context, state string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ok := f.states[state]
	delete(f.states, state)
	return ok, nil
}

func (f *fakeStateStore) Close() error { return nil }

type fakeProvider struct {
	identity      *domain.ProviderIdentity
	exchangeErr   error
	fetchErr      error
	exchangeCalls int
	fetchCalls    int
}

func (f *fakeProvider) Name() string { return "github" }

func (f *fakeProvider) AuthCodeURL(state string) string {
	return "https://github.com/login/oauth/authorize?state=" + state
}

func (f *fakeProvider) ExchangeCode(_ context.Context, _ string) (*oauth2.Token, error) {
	f.exchangeCalls++
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &oauth2.Token{AccessToken: "provider-token"}, nil
}

func (f *fakeProvider) FetchIdentity(_ context.Context, _ *oauth2.Token) (*domain.ProviderIdentity, error) {
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.identity, nil
}

type fakeUserRepo struct {
	mu          sync.Mutex
	byGitHubID  map[int64]*domain.User
	byID        map[string]*domain.User
	upsertErr   error
	upsertCalls int
	seq         int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byGitHubID: make(map[int64]*domain.User),
		byID:       make(map[string]*domain.User),
	}
}

func (f *fakeUserRepo) Upsert(_ context.Context, identity *domain.ProviderIdentity) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}

	now := time.Now().UTC()
	user, ok := f.byGitHubID[identity.ProviderUserID]
	if !ok {
		f.seq++
		user = &domain.User{
			ID:        fmt.Sprintf("user-%d", f.seq),
			GitHubID:  identity.ProviderUserID,
			CreatedAt: now,
		}
		f.byGitHubID[identity.ProviderUserID] = user
		f.byID[user.ID] = user
	}
	user.Username = identity.Login
	user.DisplayName = identity.DisplayName
	user.Bio = identity.Bio
	user.AvatarURL = identity.AvatarURL
	if identity.Email != "" {
		user.Email = identity.Email
	}
	user.UpdatedAt = now

	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byID[id]
	if !ok {
		return nil, autherrors.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) delete(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user, ok := f.byID[id]; ok {
		delete(f.byGitHubID, user.GitHubID)
		delete(f.byID, id)
	}
}

type authFixture struct {
	states   *fakeStateStore
	provider *fakeProvider
	repo     *fakeUserRepo
	tokens   *services.TokenService
	auth     *services.AuthService
}

func newAuthFixture(provider *fakeProvider) *authFixture {
	states := newFakeStateStore()
	repo := newFakeUserRepo()
	tokens := newTokenService(time.Hour, 7*24*time.Hour)
	auth := services.NewAuthService(states, services.NewIdentityService(repo), tokens)
	auth.RegisterProvider(provider)
	return &authFixture{
		states:   states,
		provider: provider,
		repo:     repo,
		tokens:   tokens,
		auth:     auth,
	}
}

func aliceIdentity() *domain.ProviderIdentity {
	return &domain.ProviderIdentity{
		ProviderUserID: 42,
		Login:          "alice",
		DisplayName:    "Alice Liddell",
		AvatarURL:      "https://github.com/avatar.png",
		Email:          "alice@example.com",
	}
}

// --- Tests ---

func TestAuthService_FreshLogin(t *testing.T) {
	fx := newAuthFixture(&fakeProvider{identity: aliceIdentity()})
	ctx := context.Background()

	intent, err := fx.auth.BeginLogin(ctx, "github")
	require.NoError(t, err)
	assert.Contains(t, intent.AuthorizationURL, intent.State)

	result, err := fx.auth.HandleCallback(ctx, services.CallbackInput{
		Provider:   "github",
		Code:       "abc",
		State:      intent.State,
		SavedState: intent.State,
	})
	require.NoError(t, err)

	assert.Equal(t, "alice", result.User.Username)
	assert.Equal(t, int64(42), result.User.GitHubID)

	claims, err := fx.tokens.Verify(result.Pair.AccessToken, domain.TokenKindAccess)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, claims.Subject)
}

func TestAuthService_ReplayedCallback(t *testing.T) {
	fx := newAuthFixture(&fakeProvider{identity: aliceIdentity()})
	ctx := context.Background()

	intent, err := fx.auth.BeginLogin(ctx, "github")
	require.NoError(t, err)

	in := services.CallbackInput{
		Provider:   "github",
		Code:       "abc",
		State:      intent.State,
		SavedState: intent.State,
	}

	_, err = fx.auth.HandleCallback(ctx, in)
	require.NoError(t, err)

	_, err = fx.auth.HandleCallback(ctx, in)
	assert.ErrorIs(t, err, autherrors.ErrCsrfMismatch,
		"replaying a consumed state must be rejected")
}

func TestAuthService_StateMismatchHasNoSideEffects(t *testing.T) {
	provider := &fakeProvider{identity: aliceIdentity()}
	fx := newAuthFixture(provider)
	ctx := context.Background()

	intent, err := fx.auth.BeginLogin(ctx, "github")
	require.NoError(t, err)

	for _, in := range []services.CallbackInput{
		{Provider: "github", Code: "abc", State: "", SavedState: intent.State},
		{Provider: "github", Code: "abc", State: intent.State, SavedState: "something-else"},
		{Provider: "github", Code: "abc", State: "never-issued", SavedState: "never-issued"},
	} {
		_, err := fx.auth.HandleCallback(ctx, in)
		assert.ErrorIs(t, err, autherrors.ErrCsrfMismatch)
	}

	assert.Zero(t, provider.exchangeCalls, "rejected callbacks must not reach the provider")
	assert.Zero(t, fx.repo.upsertCalls, "rejected callbacks must not touch persistence")
}

func TestAuthService_ProviderErrorParam(t *testing.T) {
	fx := newAuthFixture(&fakeProvider{identity: aliceIdentity()})

	_, err := fx.auth.HandleCallback(context.Background(), services.CallbackInput{
		Provider:      "github",
		Code:          "abc",
		ProviderError: "access_denied",
	})
	assert.ErrorIs(t, err, autherrors.ErrProviderDenied)
}

func TestAuthService_MissingCode(t *testing.T) {
	fx := newAuthFixture(&fakeProvider{identity: aliceIdentity()})

	_, err := fx.auth.HandleCallback(context.Background(), services.CallbackInput{
		Provider: "github",
	})
	assert.ErrorIs(t, err, autherrors.ErrMissingCode)
}

func TestAuthService_ExchangeFailure(t *testing.T) {
	fx := newAuthFixture(&fakeProvider{exchangeErr: federation.ErrExchangeFailed})
	ctx := context.Background()

	intent, err := fx.auth.BeginLogin(ctx, "github")
	require.NoError(t, err)

	_, err = fx.auth.HandleCallback(ctx, services.CallbackInput{
		Provider:   "github",
		Code:       "abc",
		State:      intent.State,
		SavedState: intent.State,
	})
	assert.ErrorIs(t, err, autherrors.ErrProviderExchangeFailed)
	assert.Zero(t, fx.repo.upsertCalls)
}

func TestAuthService_ProfileFailure(t *testing.T) {
	fx := newAuthFixture(&fakeProvider{fetchErr: federation.ErrFetchProfileFailed})
	ctx := context.Background()

	intent, err := fx.auth.BeginLogin(ctx, "github")
	require.NoError(t, err)

	_, err = fx.auth.HandleCallback(ctx, services.CallbackInput{
		Provider:   "github",
		Code:       "abc",
		State:      intent.State,
		SavedState: intent.State,
	})
	assert.ErrorIs(t, err, autherrors.ErrProviderProfileUnavailable)
	assert.Zero(t, fx.repo.upsertCalls)
}

func TestAuthService_PersistenceFailure(t *testing.T) {
	fx := newAuthFixture(&fakeProvider{identity: aliceIdentity()})
	fx.repo.upsertErr = fmt.Errorf("write conflict")
	ctx := context.Background()

	intent, err := fx.auth.BeginLogin(ctx, "github")
	require.NoError(t, err)

	_, err = fx.auth.HandleCallback(ctx, services.CallbackInput{
		Provider:   "github",
		Code:       "abc",
		State:      intent.State,
		SavedState: intent.State,
	})
	assert.ErrorIs(t, err, autherrors.ErrIdentityPersistenceFailed)
}

func TestAuthService_MissingEmailTolerated(t *testing.T) {
	identity := aliceIdentity()
	identity.Email = ""
	fx := newAuthFixture(&fakeProvider{identity: identity})
	ctx := context.Background()

	intent, err := fx.auth.BeginLogin(ctx, "github")
	require.NoError(t, err)

	result, err := fx.auth.HandleCallback(ctx, services.CallbackInput{
		Provider:   "github",
		Code:       "abc",
		State:      intent.State,
		SavedState: intent.State,
	})
	require.NoError(t, err, "a profile without email is still a valid login")
	assert.Empty(t, result.User.Email)
}

func TestAuthService_RepeatLoginKeepsIdentity(t *testing.T) {
	fx := newAuthFixture(&fakeProvider{identity: aliceIdentity()})
	ctx := context.Background()

	login := func() *services.AuthResult {
		intent, err := fx.auth.BeginLogin(ctx, "github")
		require.NoError(t, err)
		result, err := fx.auth.HandleCallback(ctx, services.CallbackInput{
			Provider:   "github",
			Code:       "abc",
			State:      intent.State,
			SavedState: intent.State,
		})
		require.NoError(t, err)
		return result
	}

	first := login()

	// The remote profile changed between logins; the local id must not.
	fx.provider.identity = &domain.ProviderIdentity{
		ProviderUserID: 42,
		Login:          "alice-renamed",
		DisplayName:    "Alice L.",
		AvatarURL:      "https://github.com/avatar2.png",
	}
	second := login()

	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Equal(t, "alice-renamed", second.User.Username)
	assert.Equal(t, "alice@example.com", second.User.Email,
		"a login without email keeps the previous value")
}

func TestAuthService_UnknownProvider(t *testing.T) {
	fx := newAuthFixture(&fakeProvider{identity: aliceIdentity()})

	_, err := fx.auth.BeginLogin(context.Background(), "gitlab")
	assert.ErrorIs(t, err, federation.ErrProviderNotFound)
}
