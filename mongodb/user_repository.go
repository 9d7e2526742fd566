package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CleverOnion/CleverOnion-blog-sub000/domain"
	autherrors "github.com/CleverOnion/CleverOnion-blog-sub000/errors"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserRepository implements domain.UserRepository on MongoDB.
type UserRepository struct {
	users *mongo.Collection
}

// NewUserRepository creates the repository and ensures its indexes.
func NewUserRepository(ctx context.Context, db *mongo.Database) (domain.UserRepository, error) {
	repo := &UserRepository{
		users: db.Collection(UsersCollection),
	}
	if err := repo.createIndexes(ctx); err != nil {
		// Index creation commonly fails when a compatible index already
		// exists; log and continue.
		log.Warn().Err(err).Msg("Failed to create user indexes")
	}
	return repo, nil
}

func (r *UserRepository) createIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{
			// The unique index is what makes Upsert safe under concurrent
			// logins for the same GitHub id.
			Keys:    bson.D{{Key: "github_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err := r.users.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create indexes for %s collection: %w", UsersCollection, err)
	}
	return nil
}

// Upsert implements domain.UserRepository.Upsert as a single atomic
// FindOneAndUpdate keyed on github_id. Mutable profile fields are refreshed
// on every login; github_id, _id, and created_at are written only on
// insert. Email is only overwritten when the login resolved one.
func (r *UserRepository) Upsert(ctx context.Context, identity *domain.ProviderIdentity) (*domain.User, error) {
	now := time.Now().UTC()

	set := bson.M{
		"username":     identity.Login,
		"display_name": identity.DisplayName,
		"bio":          identity.Bio,
		"avatar_url":   identity.AvatarURL,
		"updated_at":   now,
	}
	if identity.Email != "" {
		set["email"] = identity.Email
	}

	filter := bson.M{"github_id": identity.ProviderUserID}
	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"_id":        primitive.NewObjectID().Hex(),
			"github_id":  identity.ProviderUserID,
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var user domain.User
	err := r.users.FindOneAndUpdate(ctx, filter, update, opts).Decode(&user)
	if mongo.IsDuplicateKeyError(err) {
		// Two concurrent first logins raced on the insert; the unique index
		// rejected one. The row now exists, so the retry takes the update path.
		err = r.users.FindOneAndUpdate(ctx, filter, update, opts).Decode(&user)
	}
	if err != nil {
		log.Error().Err(err).Int64("github_id", identity.ProviderUserID).
			Msg("Failed to upsert user")
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by internal id.
func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := r.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, autherrors.ErrUserNotFound
		}
		log.Error().Err(err).Str("id", id).Msg("Failed to get user by id")
		return nil, err
	}
	return &user, nil
}

var _ domain.UserRepository = (*UserRepository)(nil)
