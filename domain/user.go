package domain

import (
	"context"
	"time"
)

// User is the local account a federated identity resolves to. Exactly one
// User exists per distinct GitHub id; the GitHub id and the internal id are
// immutable once set, everything else is refreshed on each login.
type User struct {
	ID          string    `bson:"_id,omitempty" json:"id"`
	GitHubID    int64     `bson:"github_id" json:"github_id"`
	Username    string    `bson:"username" json:"username"`
	Email       string    `bson:"email,omitempty" json:"email,omitempty"`
	DisplayName string    `bson:"display_name,omitempty" json:"display_name,omitempty"`
	Bio         string    `bson:"bio,omitempty" json:"bio,omitempty"`
	AvatarURL   string    `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// UserRepository persists local users keyed by their federated identity.
type UserRepository interface {
	// Upsert creates the user on first sight of the GitHub id, or refreshes
	// the mutable profile fields on subsequent logins. It must be atomic:
	// concurrent logins for the same GitHub id resolve to a single row.
	Upsert(ctx context.Context, identity *ProviderIdentity) (*User, error)

	// GetUserByID returns ErrUserNotFound for unknown ids.
	GetUserByID(ctx context.Context, id string) (*User, error)
}
