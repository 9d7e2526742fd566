package services

import (
	"context"
	"errors"

	"github.com/CleverOnion/CleverOnion-blog-sub000/domain"
	autherrors "github.com/CleverOnion/CleverOnion-blog-sub000/errors"
)

// RefreshService exchanges a valid refresh token for a new access token
// without re-running the OAuth dance. The refresh token is not rotated:
// the same one stays valid until its fixed expiry (a known trade-off, a
// leaked refresh token cannot be cut off early).
type RefreshService struct {
	tokens *TokenService
	repo   domain.UserRepository
}

// NewRefreshService creates a RefreshService.
func NewRefreshService(tokens *TokenService, repo domain.UserRepository) *RefreshService {
	return &RefreshService{tokens: tokens, repo: repo}
}

// Refresh verifies the refresh token, confirms the user still exists
// (deleted users cannot refresh), and mints a new access token.
func (s *RefreshService) Refresh(ctx context.Context, refreshToken string) (string, int64, error) {
	claims, err := s.tokens.Verify(refreshToken, domain.TokenKindRefresh)
	if err != nil {
		return "", 0, autherrors.ErrInvalidToken
	}

	user, err := s.repo.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, autherrors.ErrUserNotFound) {
			return "", 0, autherrors.ErrUserNotFound
		}
		return "", 0, err
	}

	access, err := s.tokens.MintAccess(user.ID)
	if err != nil {
		return "", 0, err
	}

	return access, int64(s.tokens.AccessTokenTTL().Seconds()), nil
}
