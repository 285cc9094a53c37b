package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/vibelog/backend/internal/domain"
	"github.com/vibelog/backend/internal/repository"
	"github.com/vibelog/backend/internal/storage"
)

const maxVoiceSampleBytes = 10 << 20

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)

// ProfileUpdate holds the user-editable profile fields.
type ProfileUpdate struct {
	Username    *string `json:"username"`
	DisplayName *string `json:"display_name"`
}

// ProfileService manages the caller's own profile.
type ProfileService struct {
	profiles *repository.ProfileRepository
	storage  storage.ObjectStorage
}

func NewProfileService(profiles *repository.ProfileRepository, store storage.ObjectStorage) *ProfileService {
	return &ProfileService{profiles: profiles, storage: store}
}

// Me returns the caller's profile, creating it on first use.
func (s *ProfileService) Me(ctx context.Context, userID string) (*domain.Profile, error) {
	return s.profiles.Ensure(ctx, userID)
}

// IsAdmin reports whether userID has the admin flag.
func (s *ProfileService) IsAdmin(ctx context.Context, userID string) (bool, error) {
	p, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return p.IsAdmin, nil
}

// Update changes username and display name. Usernames are unique.
func (s *ProfileService) Update(ctx context.Context, userID string, u ProfileUpdate) (*domain.Profile, error) {
	if _, err := s.profiles.Ensure(ctx, userID); err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if u.Username != nil {
		name := strings.ToLower(strings.TrimSpace(*u.Username))
		if !usernamePattern.MatchString(name) {
			return nil, fmt.Errorf("%w: username must be 3-30 characters of a-z, 0-9 or _", ErrInvalidInput)
		}
		fields["username"] = name
	}
	if u.DisplayName != nil {
		fields["display_name"] = strings.TrimSpace(*u.DisplayName)
	}
	if len(fields) > 0 {
		// The unique index decides, so concurrent renames cannot both win.
		err := s.profiles.UpdateFields(ctx, userID, fields)
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, fmt.Errorf("%w: username is taken", ErrConflict)
		case err != nil:
			return nil, fmt.Errorf("failed to update profile: %w", err)
		}
	}
	return s.profiles.GetByID(ctx, userID)
}

// SaveVoiceSample stores the recording used for voice-cloned narration.
func (s *ProfileService) SaveVoiceSample(ctx context.Context, userID string, file *Upload) (*domain.Profile, error) {
	if file == nil || len(file.Data) == 0 {
		return nil, fmt.Errorf("%w: a voice sample file is required", ErrInvalidInput)
	}
	if len(file.Data) > maxVoiceSampleBytes {
		return nil, fmt.Errorf("%w: voice samples are limited to %d bytes", ErrFileTooLarge, maxVoiceSampleBytes)
	}
	head := file.Data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	mt := DetectMIME(file.ContentType, file.Filename, head)
	if ClassifyMIME(mt) != MediaAudio {
		return nil, fmt.Errorf("%w: voice sample must be audio, got %s", ErrUnsupportedMediaType, mt)
	}
	if _, err := s.profiles.Ensure(ctx, userID); err != nil {
		return nil, err
	}

	key := storage.VoiceSampleKey(userID, ExtensionFor(mt, file.Filename))
	if err := s.storage.Upload(ctx, key, bytes.NewReader(file.Data), int64(len(file.Data)), mt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := s.profiles.UpdateFields(ctx, userID, map[string]interface{}{"voice_sample_key": key}); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return s.profiles.GetByID(ctx, userID)
}
