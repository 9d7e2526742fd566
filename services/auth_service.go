package services

import (
	"context"
	"time"

	"github.com/CleverOnion/CleverOnion-blog-sub000/cache"
	"github.com/CleverOnion/CleverOnion-blog-sub000/domain"
	autherrors "github.com/CleverOnion/CleverOnion-blog-sub000/errors"
	"github.com/CleverOnion/CleverOnion-blog-sub000/internal/federation"
	"github.com/rs/zerolog/log"
)

// LoginIntent is the outcome of BeginLogin. The caller persists State
// locally (a short-lived cookie) and redirects the user to AuthorizationURL.
type LoginIntent struct {
	State            string
	AuthorizationURL string
}

// CallbackInput carries everything the provider redirect handed back, plus
// the state value the caller saved at BeginLogin time.
type CallbackInput struct {
	Provider      string
	Code          string
	State         string
	SavedState    string
	ProviderError string // the provider's "error" query parameter, if any
}

// AuthResult is a successful login: the resolved local user and a freshly
// minted token pair.
type AuthResult struct {
	User      *domain.User
	Pair      *domain.TokenPair
	LoginTime time.Time
}

// AuthService orchestrates the two public login flows: begin-login and
// handle-callback. All provider and persistence failures are normalized
// into the client-safe error taxonomy here; raw upstream errors never
// cross this boundary.
type AuthService struct {
	states    cache.StateStore
	providers map[string]federation.OAuth2Provider
	identity  *IdentityService
	tokens    *TokenService
}

// NewAuthService creates an AuthService.
func NewAuthService(states cache.StateStore, identity *IdentityService, tokens *TokenService) *AuthService {
	return &AuthService{
		states:    states,
		providers: make(map[string]federation.OAuth2Provider),
		identity:  identity,
		tokens:    tokens,
	}
}

// RegisterProvider adds a provider implementation under its name.
func (s *AuthService) RegisterProvider(provider federation.OAuth2Provider) {
	s.providers[provider.Name()] = provider
}

// Provider looks up a registered provider.
func (s *AuthService) Provider(name string) (federation.OAuth2Provider, error) {
	provider, ok := s.providers[name]
	if !ok {
		return nil, federation.ErrProviderNotFound
	}
	return provider, nil
}

// BeginLogin issues a single-use anti-CSRF state and builds the provider
// authorization URL containing it.
func (s *AuthService) BeginLogin(ctx context.Context, providerName string) (*LoginIntent, error) {
	provider, err := s.Provider(providerName)
	if err != nil {
		return nil, err
	}

	state, err := s.states.Issue(ctx)
	if err != nil {
		return nil, err
	}

	return &LoginIntent{
		State:            state,
		AuthorizationURL: provider.AuthCodeURL(state),
	}, nil
}

// HandleCallback processes the provider redirect. Checks run in a fixed
// order and nothing mutates state before the CSRF gate passes; the
// identity upsert is the only mutating step. A rejected callback must not
// be retried internally: the state has already been consumed.
func (s *AuthService) HandleCallback(ctx context.Context, in CallbackInput) (*AuthResult, error) {
	provider, err := s.Provider(in.Provider)
	if err != nil {
		return nil, err
	}

	if in.ProviderError != "" {
		log.Warn().Str("provider", in.Provider).Str("error", in.ProviderError).
			Msg("Provider returned an error parameter on callback")
		return nil, autherrors.ErrProviderDenied
	}
	if in.Code == "" {
		return nil, autherrors.ErrMissingCode
	}

	// Equality against the caller-saved state alone does not prevent replay
	// of a value this deployment never issued; the store consumption is the
	// authoritative check. Both must pass.
	if in.State == "" || in.State != in.SavedState {
		return nil, autherrors.ErrCsrfMismatch
	}
	ok, err := s.states.Consume(ctx, in.State)
	if err != nil {
		log.Error().Err(err).Msg("State store consume failed")
		return nil, autherrors.ErrCsrfMismatch
	}
	if !ok {
		return nil, autherrors.ErrCsrfMismatch
	}

	token, err := provider.ExchangeCode(ctx, in.Code)
	if err != nil {
		log.Warn().Err(err).Str("provider", in.Provider).Msg("Code exchange failed")
		return nil, autherrors.ErrProviderExchangeFailed
	}

	identity, err := provider.FetchIdentity(ctx, token)
	if err != nil {
		log.Warn().Err(err).Str("provider", in.Provider).Msg("Profile fetch failed")
		return nil, autherrors.ErrProviderProfileUnavailable
	}

	user, err := s.identity.Resolve(ctx, identity)
	if err != nil {
		log.Error().Err(err).Str("provider", in.Provider).Msg("Identity upsert failed")
		return nil, autherrors.ErrIdentityPersistenceFailed
	}

	pair, err := s.tokens.MintPair(user.ID)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Token minting failed")
		return nil, autherrors.ErrIdentityPersistenceFailed
	}

	log.Info().Str("provider", in.Provider).Str("user_id", user.ID).
		Str("username", user.Username).Msg("Login completed")

	return &AuthResult{
		User:      user,
		Pair:      pair,
		LoginTime: time.Now().UTC(),
	}, nil
}
