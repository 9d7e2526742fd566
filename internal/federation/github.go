package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/CleverOnion/CleverOnion-blog-sub000/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	githubOAuth2 "golang.org/x/oauth2/github"
)

// Endpoints are package vars so tests can point them at a local server.
var (
	GitHubUserEndpoint   = "https://api.github.com/user"
	GitHubEmailsEndpoint = "https://api.github.com/user/emails"
)

// GitHubProvider implements OAuth2Provider for GitHub. GitHub is not an
// OIDC provider; the profile and the email list come from two separate
// REST calls.
type GitHubProvider struct {
	config Config
}

// NewGitHubProvider creates a GitHubProvider. The "read:user" and
// "user:email" scopes are required for the profile and email fetches and
// are added when absent.
func NewGitHubProvider(config Config) (*GitHubProvider, error) {
	if config.ClientID == "" || config.ClientSecret == "" {
		return nil, ErrProviderMisconfigured
	}

	seen := make(map[string]bool)
	for _, scope := range config.Scopes {
		seen[scope] = true
	}
	for _, scope := range []string{"read:user", "user:email"} {
		if !seen[scope] {
			config.Scopes = append(config.Scopes, scope)
		}
	}

	return &GitHubProvider{config: config}, nil
}

func (g *GitHubProvider) Name() string {
	return "github"
}

func (g *GitHubProvider) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     g.config.ClientID,
		ClientSecret: g.config.ClientSecret,
		RedirectURL:  g.config.RedirectURL,
		Scopes:       g.config.Scopes,
		Endpoint:     githubOAuth2.Endpoint,
	}
}

// AuthCodeURL implements OAuth2Provider.AuthCodeURL.
func (g *GitHubProvider) AuthCodeURL(state string) string {
	return g.oauth2Config().AuthCodeURL(state)
}

// ExchangeCode implements OAuth2Provider.ExchangeCode.
func (g *GitHubProvider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := g.oauth2Config().Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	return token, nil
}

// FetchIdentity fetches the base profile and, separately, the email list.
// The email fetch failing is tolerated: the identity proceeds without an
// email. Only a failed base profile fetch is fatal.
func (g *GitHubProvider) FetchIdentity(ctx context.Context, token *oauth2.Token) (*domain.ProviderIdentity, error) {
	client := g.oauth2Config().Client(ctx, token)

	profile, err := g.fetchProfile(client)
	if err != nil {
		return nil, err
	}

	identity := &domain.ProviderIdentity{
		ProviderUserID: profile.ID,
		Login:          profile.Login,
		DisplayName:    profile.Name,
		Bio:            profile.Bio,
		AvatarURL:      profile.AvatarURL,
		Email:          profile.Email, // public profile email, may be empty
	}

	emails, err := g.fetchEmails(client)
	if err != nil {
		log.Warn().Err(err).Int64("github_id", profile.ID).
			Msg("GitHub email fetch failed, continuing without email list")
		return identity, nil
	}

	identity.Emails = emails
	if selected := selectEmail(emails); selected != "" {
		identity.Email = selected
	}

	return identity, nil
}

type githubProfile struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Bio       string `json:"bio"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

func (g *GitHubProvider) fetchProfile(client *http.Client) (*githubProfile, error) {
	resp, err := client.Get(GitHubUserEndpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchProfileFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: status %d: %s", ErrFetchProfileFailed, resp.StatusCode, string(body))
	}

	var profile githubProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchProfileFailed, err)
	}
	return &profile, nil
}

func (g *GitHubProvider) fetchEmails(client *http.Client) ([]domain.ProviderEmail, error) {
	resp, err := client.Get(GitHubEmailsEndpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github emails endpoint returned status %d", resp.StatusCode)
	}

	var emails []domain.ProviderEmail
	if err := json.NewDecoder(resp.Body).Decode(&emails); err != nil {
		return nil, err
	}
	return emails, nil
}

// selectEmail picks the primary verified email, falling back to the first
// entry. Returns "" when the list is empty.
func selectEmail(emails []domain.ProviderEmail) string {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	if len(emails) > 0 {
		return emails[0].Email
	}
	return ""
}

var _ OAuth2Provider = (*GitHubProvider)(nil)
