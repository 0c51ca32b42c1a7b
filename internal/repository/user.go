package repository

import (
	"context"
	"fmt"

	"recipe-share-backend/internal/models"
)

// UserRepository handles document operations for user profiles
type UserRepository struct {
	store DocumentStore
}

// NewUserRepository creates a new user repository
func NewUserRepository(store DocumentStore) *UserRepository {
	return &UserRepository{store: store}
}

// Create writes the profile document of a freshly registered user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	fields := map[string]any{
		"email":    user.Email,
		"username": user.Username,
		"fullName": user.FullName,
		"location": user.Location,
		"admin":    user.Admin,
	}
	if user.ProfileImageURL != "" {
		fields["profileImageUrl"] = user.ProfileImageURL
	}
	if err := r.store.Set(ctx, models.CollectionUsers, user.ID, fields); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	doc, err := r.store.Get(ctx, models.CollectionUsers, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	var user models.User
	if err := doc.DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.ID = doc.ID
	return &user, nil
}

// Update merges the given fields into the user's document
func (r *UserRepository) Update(ctx context.Context, id string, fields map[string]any) error {
	if err := r.store.Update(ctx, models.CollectionUsers, id, fields); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// UpdateProfileImage sets the profile image URL for a user
func (r *UserRepository) UpdateProfileImage(ctx context.Context, id, url string) error {
	return r.Update(ctx, id, map[string]any{"profileImageUrl": url})
}
