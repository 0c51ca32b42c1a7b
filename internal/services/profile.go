package services

import (
	"context"
	"strings"

	"recipe-share-backend/internal/apperror"
	"recipe-share-backend/internal/models"
	"recipe-share-backend/internal/repository"
	"recipe-share-backend/internal/storage"

	"github.com/rs/zerolog/log"
)

// ProfileInput is a partial profile update; nil fields are left alone
type ProfileInput struct {
	Username *string `json:"username"`
	FullName *string `json:"fullName"`
	Location *string `json:"location"`
}

// ImageChange reports a profile image change. PreviousImageError is set when the old
// image could not be deleted; the change itself still succeeded.
type ImageChange struct {
	User               *models.User `json:"user"`
	PreviousImageError string       `json:"previous_image_error,omitempty"`
}

// ProfileService handles the signed-in user's own profile
type ProfileService struct {
	users    *repository.UserRepository
	blobs    Uploader
	identity Identity
}

// NewProfileService creates a new profile service
func NewProfileService(users *repository.UserRepository, blobs Uploader, identity Identity) *ProfileService {
	return &ProfileService{
		users:    users,
		blobs:    blobs,
		identity: identity,
	}
}

// LoadOwn returns the caller's profile
func (s *ProfileService) LoadOwn(ctx context.Context, userID string) (*models.User, error) {
	if err := s.checkOwner(ctx, userID); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, userID)
}

// Save applies a partial update to the caller's profile
func (s *ProfileService) Save(ctx context.Context, userID string, input ProfileInput) (*models.User, error) {
	if err := s.checkOwner(ctx, userID); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if input.Username != nil {
		username := strings.TrimSpace(*input.Username)
		if username == "" {
			return nil, apperror.Validation("username", "username must not be empty")
		}
		fields["username"] = username
	}
	if input.FullName != nil {
		fields["fullName"] = strings.TrimSpace(*input.FullName)
	}
	if input.Location != nil {
		fields["location"] = strings.TrimSpace(*input.Location)
	}

	if len(fields) > 0 {
		if err := s.users.Update(ctx, userID, fields); err != nil {
			return nil, err
		}
		log.Info().Str("user_id", userID).Msg("Profile updated")
	}

	return s.users.GetByID(ctx, userID)
}

// ChangeImage uploads a new profile image and points the profile at it. The previous image
// is deleted best-effort; if that fails the error is reported but the change stands.
func (s *ProfileService) ChangeImage(ctx context.Context, userID string, image storage.ImageRef) (*ImageChange, error) {
	if err := s.checkOwner(ctx, userID); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	previous := user.ProfileImageURL

	url, err := s.blobs.UploadBlob(ctx, storage.NamespaceProfileImages, userID, image)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateProfileImage(ctx, userID, url); err != nil {
		if delErr := s.blobs.DeleteBlob(ctx, url); delErr != nil {
			log.Error().
				Err(delErr).
				Str("user_id", userID).
				Str("url", url).
				Msg("Failed to delete image after profile update failed")
		}
		return nil, err
	}

	change := &ImageChange{}
	if previous != "" && previous != url {
		if err := s.blobs.DeleteBlob(ctx, previous); err != nil {
			log.Warn().
				Err(err).
				Str("user_id", userID).
				Str("url", previous).
				Msg("Failed to delete previous profile image")
			change.PreviousImageError = err.Error()
		}
	}

	change.User, err = s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", userID).Msg("Profile image changed")
	return change, nil
}

func (s *ProfileService) checkOwner(ctx context.Context, userID string) error {
	caller, err := requireCaller(ctx, s.identity, "Please log in to manage your profile.")
	if err != nil {
		return err
	}
	if caller.ID != userID {
		return apperror.PermissionDenied("profiles can only be managed by their owner")
	}
	return nil
}
