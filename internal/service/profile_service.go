package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"prok/internal/middleware"
	"prok/internal/models"
	"prok/internal/observability"
	"prok/internal/repository"
	"prok/internal/storage"
	"prok/internal/validation"
)

const (
	profileSaveAttempts = 3
	profileSaveBackoff  = 100 * time.Millisecond
)

// ProfileService implements profile reads, updates and avatar uploads.
type ProfileService struct {
	profiles       repository.ProfileRepository
	blobs          storage.BlobStore
	backendURL     string
	maxAvatarBytes int64
}

// NewProfileService creates a ProfileService.
func NewProfileService(profiles repository.ProfileRepository, blobs storage.BlobStore, backendURL string, maxAvatarBytes int64) *ProfileService {
	return &ProfileService{
		profiles:       profiles,
		blobs:          blobs,
		backendURL:     backendURL,
		maxAvatarBytes: maxAvatarBytes,
	}
}

// UpdateProfileInput carries the raw profile payload. The JSON-shaped fields
// accept whatever structure the client sent; they are canonicalized before
// storage.
type UpdateProfileInput struct {
	Name              string          `json:"name"`
	Title             string          `json:"title"`
	Location          string          `json:"location"`
	Bio               string          `json:"bio"`
	Avatar            string          `json:"avatar"`
	Skills            json.RawMessage `json:"skills"`
	Social            json.RawMessage `json:"social"`
	Experience        json.RawMessage `json:"experience"`
	Education         json.RawMessage `json:"education"`
	Contact           json.RawMessage `json:"contact"`
	Activity          json.RawMessage `json:"activity"`
	Connections       int             `json:"connections"`
	MutualConnections int             `json:"mutualConnections"`
}

// GetProfile returns the stored profile, or an empty default when the user
// has not filled one in yet.
func (s *ProfileService) GetProfile(ctx context.Context, email string) (models.ProfileResponse, error) {
	profile, err := s.profiles.GetByUserEmail(ctx, email)
	if err != nil {
		return models.ProfileResponse{}, err
	}
	if profile == nil {
		profile = &models.Profile{UserEmail: email}
	}
	return profile.Response(s.backendURL), nil
}

// UpdateProfile validates and normalizes the payload, then commits it with a
// bounded retry.
func (s *ProfileService) UpdateProfile(ctx context.Context, email string, in UpdateProfileInput) (models.ProfileResponse, error) {
	name := validation.Sanitize(in.Name)
	if name == "" {
		return models.ProfileResponse{}, models.NewValidationError("Name is required")
	}
	title := validation.Sanitize(in.Title)
	if title == "" {
		return models.ProfileResponse{}, models.NewValidationError("Title is required")
	}
	if len(in.Contact) == 0 {
		return models.ProfileResponse{}, models.NewValidationError("Contact information is required")
	}
	contactAddr, ok := contactEmail(in.Contact)
	if !ok {
		return models.ProfileResponse{}, models.NewValidationError("Invalid contact field")
	}
	if contactAddr == "" {
		return models.ProfileResponse{}, models.NewValidationError("Contact email is required")
	}

	profile, err := s.profiles.GetByUserEmail(ctx, email)
	if err != nil {
		return models.ProfileResponse{}, err
	}
	if profile == nil {
		profile = &models.Profile{UserEmail: email}
	}

	profile.Name = name
	profile.Title = title
	profile.Location = validation.Sanitize(in.Location)
	profile.Bio = validation.Sanitize(in.Bio)
	profile.Avatar = in.Avatar
	profile.Connections = in.Connections
	profile.MutualConnections = in.MutualConnections
	profile.Skills = strings.Join(NormalizeSkills(in.Skills), ",")

	if profile.Social, err = canonicalJSON(in.Social, "[]"); err != nil {
		return models.ProfileResponse{}, models.NewValidationError("Invalid social field")
	}
	if profile.Experience, err = canonicalJSON(in.Experience, "[]"); err != nil {
		return models.ProfileResponse{}, models.NewValidationError("Invalid experience field")
	}
	if profile.Education, err = canonicalJSON(in.Education, "[]"); err != nil {
		return models.ProfileResponse{}, models.NewValidationError("Invalid education field")
	}
	if profile.Contact, err = canonicalJSON(in.Contact, "{}"); err != nil {
		return models.ProfileResponse{}, models.NewValidationError("Invalid contact field")
	}
	if profile.Activity, err = canonicalJSON(in.Activity, "[]"); err != nil {
		return models.ProfileResponse{}, models.NewValidationError("Invalid activity field")
	}

	if err := s.saveWithRetry(ctx, profile); err != nil {
		return models.ProfileResponse{}, err
	}
	return profile.Response(s.backendURL), nil
}

// UploadAvatar stores a new avatar image for the user. The image is scaled
// to fit 400x400 and re-encoded as JPEG before storage.
func (s *ProfileService) UploadAvatar(ctx context.Context, email, filename string, data []byte) (models.ProfileResponse, error) {
	if int64(len(data)) > s.maxAvatarBytes {
		return models.ProfileResponse{}, models.NewValidationError(
			fmt.Sprintf("Avatar exceeds the %dMB limit", s.maxAvatarBytes/(1024*1024)))
	}
	if ext := fileExtension(filename); mediaKind(ext) != "image" {
		return models.ProfileResponse{}, models.NewValidationError("Avatar must be an image")
	}

	normalized, err := normalizeImage(data, AvatarMaxSize)
	if err != nil {
		return models.ProfileResponse{}, err
	}

	name := fmt.Sprintf("avatar_%d.jpg", time.Now().UnixNano())
	url, err := s.blobs.Put(ctx, name, "image/jpeg", bytes.NewReader(normalized), int64(len(normalized)))
	if err != nil {
		return models.ProfileResponse{}, models.NewInternalError(err)
	}
	observability.MediaUploads.WithLabelValues("avatar").Inc()

	profile, err := s.profiles.GetByUserEmail(ctx, email)
	if err != nil {
		return models.ProfileResponse{}, err
	}
	if profile == nil {
		profile = &models.Profile{UserEmail: email}
	}
	profile.Avatar = url

	if err := s.saveWithRetry(ctx, profile); err != nil {
		return models.ProfileResponse{}, err
	}
	return profile.Response(s.backendURL), nil
}

// saveWithRetry commits the profile, retrying transient failures with a
// short backoff before giving up.
func (s *ProfileService) saveWithRetry(ctx context.Context, profile *models.Profile) error {
	var err error
	for attempt := 1; attempt <= profileSaveAttempts; attempt++ {
		if err = s.profiles.Save(ctx, profile); err == nil {
			return nil
		}
		if attempt < profileSaveAttempts {
			observability.ProfileCommitRetries.Inc()
			middleware.Logger.WarnContext(ctx, "profile save failed, retrying",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			select {
			case <-ctx.Done():
				return models.NewInternalError(ctx.Err())
			case <-time.After(profileSaveBackoff * time.Duration(attempt)):
			}
		}
	}
	return err
}

// NormalizeSkills turns the raw skills payload into a flat, deduplicated
// list of strings. A JSON array is flattened recursively; a plain string is
// first tried as JSON and otherwise split on commas.
func NormalizeSkills(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return []string{}
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return []string{}
	}

	var items []string
	if str, ok := value.(string); ok {
		// A string payload may itself be JSON-encoded.
		var nested any
		if err := json.Unmarshal([]byte(str), &nested); err == nil {
			items = flattenSkillValues(nested)
		} else {
			items = strings.Split(str, ",")
		}
	} else {
		items = flattenSkillValues(value)
	}

	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		// Entries arrive with stray whitespace and quote characters when the
		// client sends a hand-built comma list.
		item = strings.TrimSpace(item)
		item = strings.TrimSpace(strings.Trim(item, `"'`))
		if item == "" {
			continue
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// flattenSkillValues recursively flattens nested arrays and stringifies
// scalar entries.
func flattenSkillValues(value any) []string {
	switch v := value.(type) {
	case []any:
		var out []string
		for _, item := range v {
			out = append(out, flattenSkillValues(item)...)
		}
		return out
	case string:
		return []string{v}
	case nil:
		return nil
	default:
		return []string{fmt.Sprintf("%v", v)}
	}
}

// contactEmail extracts the email entry from the contact payload. ok is false
// when the payload is not a JSON object (or a string wrapping one).
func contactEmail(raw json.RawMessage) (string, bool) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false
	}
	if str, isStr := value.(string); isStr {
		var nested any
		if err := json.Unmarshal([]byte(str), &nested); err != nil {
			return "", false
		}
		value = nested
	}
	obj, isObj := value.(map[string]any)
	if !isObj {
		return "", false
	}
	addr, _ := obj["email"].(string)
	return strings.TrimSpace(addr), true
}

// canonicalJSON validates the raw payload and re-serializes it so the stored
// text is canonical JSON. Absent fields get the given default.
func canonicalJSON(raw json.RawMessage, def string) (string, error) {
	if len(raw) == 0 {
		return def, nil
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", err
	}
	if value == nil {
		return def, nil
	}
	out, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
