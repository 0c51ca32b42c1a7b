package services

import (
	"context"

	"recipe-share-backend/internal/apperror"
	"recipe-share-backend/internal/models"
	"recipe-share-backend/internal/storage"
)

// Identity answers who is calling. The auth gateway implements it.
type Identity interface {
	CurrentUser(ctx context.Context) (*models.User, error)
}

// Uploader stores images and hands back their URLs. The storage pipeline implements it.
type Uploader interface {
	UploadBlob(ctx context.Context, namespace, ownerScopedPath string, image storage.ImageRef) (string, error)
	DeleteBlob(ctx context.Context, url string) error
}

// requireCaller returns the signed-in user or an AuthError with message
func requireCaller(ctx context.Context, identity Identity, message string) (*models.User, error) {
	user, err := identity.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.Auth("unauthenticated", message)
	}
	return user, nil
}
