package federation

import (
	"context"

	"github.com/CleverOnion/CleverOnion-blog-sub000/domain"
	"golang.org/x/oauth2"
)

// Config holds the OAuth2 application settings for one external provider.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// OAuth2Provider is an external identity provider speaking the OAuth2
// authorization code flow. Implementations handle provider-specific
// endpoints and profile shapes.
type OAuth2Provider interface {
	// Name returns the provider's unique identifier (e.g. "github").
	Name() string

	// AuthCodeURL builds the authorization URL for the given anti-CSRF
	// state. Pure construction, no network call.
	AuthCodeURL(state string) string

	// ExchangeCode exchanges an authorization code for a provider access
	// token. The token lives only for the duration of the request.
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)

	// FetchIdentity retrieves the remote profile using the provider access
	// token. Implementations may degrade gracefully on partial failures
	// (e.g. proceed without email), but a failed base profile fetch is
	// always an error.
	FetchIdentity(ctx context.Context, token *oauth2.Token) (*domain.ProviderIdentity, error)
}
