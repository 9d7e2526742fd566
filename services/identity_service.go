package services

import (
	"context"

	"github.com/CleverOnion/CleverOnion-blog-sub000/domain"
	"github.com/rs/zerolog/log"
)

// IdentityService maps a remote provider identity to a local user record.
type IdentityService struct {
	repo domain.UserRepository
}

// NewIdentityService creates an IdentityService.
func NewIdentityService(repo domain.UserRepository) *IdentityService {
	return &IdentityService{repo: repo}
}

// Resolve creates the local user on first sight of the remote id and
// refreshes the mutable profile fields on every subsequent login. Repeated
// calls with the same remote id always resolve to the same local user; the
// repository's upsert semantics guarantee that under concurrency.
func (s *IdentityService) Resolve(ctx context.Context, identity *domain.ProviderIdentity) (*domain.User, error) {
	user, err := s.repo.Upsert(ctx, identity)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Int64("github_id", identity.ProviderUserID).
		Str("user_id", user.ID).
		Msg("Resolved federated identity to local user")

	return user, nil
}
