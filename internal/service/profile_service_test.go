package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"prok/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// profileRepoStub is a stub for repository.ProfileRepository.
type profileRepoStub struct {
	getFn  func(context.Context, string) (*models.Profile, error)
	saveFn func(context.Context, *models.Profile) error
}

func (s *profileRepoStub) GetByUserEmail(ctx context.Context, email string) (*models.Profile, error) {
	if s.getFn != nil {
		return s.getFn(ctx, email)
	}
	return nil, nil
}

func (s *profileRepoStub) Save(ctx context.Context, profile *models.Profile) error {
	if s.saveFn != nil {
		return s.saveFn(ctx, profile)
	}
	return nil
}

func newTestProfileService(repo *profileRepoStub) *ProfileService {
	return NewProfileService(repo, &blobStoreStub{}, "http://localhost:8375", 5*1024*1024)
}

// validProfileInput carries the minimum payload an update accepts.
func validProfileInput() UpdateProfileInput {
	return UpdateProfileInput{
		Name:    "Alice",
		Title:   "Engineer",
		Contact: json.RawMessage(`{"email":"alice@x.com"}`),
	}
}

func TestNormalizeSkills(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"JSON array", `["Go","SQL"]`, []string{"Go", "SQL"}},
		{"Nested arrays flattened", `["Go",["SQL",["Redis"]]]`, []string{"Go", "SQL", "Redis"}},
		{"Comma string", `"Go, SQL,Redis"`, []string{"Go", "SQL", "Redis"}},
		{"Quote characters stripped", `"'Go', \"SQL\""`, []string{"Go", "SQL"}},
		{"JSON encoded in string", `"[\"Go\",\"SQL\"]"`, []string{"Go", "SQL"}},
		{"Duplicates removed keeping order", `["Go","SQL","Go"]`, []string{"Go", "SQL"}},
		{"Numbers stringified", `["Go",7]`, []string{"Go", "7"}},
		{"Blank entries dropped", `["", "  ", "Go"]`, []string{"Go"}},
		{"Empty payload", ``, []string{}},
		{"Null", `null`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeSkills(json.RawMessage(tt.raw))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUpdateProfile_RequiresName(t *testing.T) {
	svc := newTestProfileService(&profileRepoStub{})

	_, err := svc.UpdateProfile(context.Background(), "a@x.com", UpdateProfileInput{})
	assertAppErrCode(t, err, models.CodeValidation)

	// A name made entirely of markup sanitizes to empty.
	_, err = svc.UpdateProfile(context.Background(), "a@x.com", UpdateProfileInput{Name: "<b></b>"})
	assertAppErrCode(t, err, models.CodeValidation)
}

func TestUpdateProfile_RequiresTitleAndContact(t *testing.T) {
	svc := newTestProfileService(&profileRepoStub{})
	ctx := context.Background()

	_, err := svc.UpdateProfile(ctx, "a@x.com", UpdateProfileInput{Name: "Alice"})
	assertAppErrCode(t, err, models.CodeValidation)

	_, err = svc.UpdateProfile(ctx, "a@x.com", UpdateProfileInput{
		Name: "Alice", Title: "Engineer",
	})
	assertAppErrCode(t, err, models.CodeValidation)

	// A contact object without an email entry is rejected too.
	_, err = svc.UpdateProfile(ctx, "a@x.com", UpdateProfileInput{
		Name: "Alice", Title: "Engineer", Contact: json.RawMessage(`{}`),
	})
	assertAppErrCode(t, err, models.CodeValidation)

	_, err = svc.UpdateProfile(ctx, "a@x.com", UpdateProfileInput{
		Name: "Alice", Title: "Engineer", Contact: json.RawMessage(`{"email":"   "}`),
	})
	assertAppErrCode(t, err, models.CodeValidation)

	_, err = svc.UpdateProfile(ctx, "a@x.com", UpdateProfileInput{
		Name: "Alice", Title: "Engineer", Contact: json.RawMessage(`["not","an","object"]`),
	})
	assertAppErrCode(t, err, models.CodeValidation)

	_, err = svc.UpdateProfile(ctx, "a@x.com", validProfileInput())
	require.NoError(t, err)
}

func TestUpdateProfile_CanonicalizesFields(t *testing.T) {
	var saved *models.Profile
	repo := &profileRepoStub{
		saveFn: func(_ context.Context, p *models.Profile) error {
			saved = p
			return nil
		},
	}
	svc := newTestProfileService(repo)

	resp, err := svc.UpdateProfile(context.Background(), "a@x.com", UpdateProfileInput{
		Name:       "Alice <b>Smith</b>",
		Title:      "Engineer",
		Skills:     json.RawMessage(`["Go",["SQL"],"Go"]`),
		Experience: json.RawMessage(`[{"company":"Acme"}]`),
		Contact:    json.RawMessage(`{"email":"alice@x.com"}`),
	})
	require.NoError(t, err)
	require.NotNil(t, saved)

	assert.Equal(t, "Alice Smith", saved.Name)
	assert.Equal(t, "Go,SQL", saved.Skills)
	assert.JSONEq(t, `[{"company":"Acme"}]`, saved.Experience)
	assert.Equal(t, "[]", saved.Social, "absent list fields default to []")
	assert.JSONEq(t, `{"email":"alice@x.com"}`, saved.Contact)

	assert.Equal(t, []string{"Go", "SQL"}, resp.Skills)
	assert.Equal(t, map[string]any{"email": "alice@x.com"}, resp.Contact)
}

func TestUpdateProfile_StoresAvatarAndConnections(t *testing.T) {
	var saved *models.Profile
	repo := &profileRepoStub{
		saveFn: func(_ context.Context, p *models.Profile) error {
			saved = p
			return nil
		},
	}
	svc := newTestProfileService(repo)

	in := validProfileInput()
	in.Avatar = "/uploads/avatar_7.jpg"
	in.Connections = 42
	in.MutualConnections = 7

	_, err := svc.UpdateProfile(context.Background(), "a@x.com", in)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "/uploads/avatar_7.jpg", saved.Avatar)
	assert.Equal(t, 42, saved.Connections)
	assert.Equal(t, 7, saved.MutualConnections)
}

func TestUpdateProfile_RejectsMalformedJSONField(t *testing.T) {
	svc := newTestProfileService(&profileRepoStub{})

	in := validProfileInput()
	in.Social = json.RawMessage(`{not json`)
	_, err := svc.UpdateProfile(context.Background(), "a@x.com", in)
	assertAppErrCode(t, err, models.CodeValidation)
}

func TestUpdateProfile_RetriesTransientSaveFailure(t *testing.T) {
	attempts := 0
	repo := &profileRepoStub{
		saveFn: func(_ context.Context, _ *models.Profile) error {
			attempts++
			if attempts < 3 {
				return errors.New("deadlock detected")
			}
			return nil
		},
	}
	svc := newTestProfileService(repo)

	_, err := svc.UpdateProfile(context.Background(), "a@x.com", validProfileInput())
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestUpdateProfile_GivesUpAfterThreeAttempts(t *testing.T) {
	attempts := 0
	repo := &profileRepoStub{
		saveFn: func(_ context.Context, _ *models.Profile) error {
			attempts++
			return errors.New("still broken")
		},
	}
	svc := newTestProfileService(repo)

	_, err := svc.UpdateProfile(context.Background(), "a@x.com", validProfileInput())
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestGetProfile_DefaultWhenMissing(t *testing.T) {
	svc := newTestProfileService(&profileRepoStub{})

	resp, err := svc.GetProfile(context.Background(), "new@x.com")
	require.NoError(t, err)
	assert.Equal(t, []string{}, resp.Skills)
	assert.Equal(t, []any{}, resp.Social)
	assert.Equal(t, map[string]any{}, resp.Contact)
}

func TestGetProfile_AvatarAbsolutized(t *testing.T) {
	repo := &profileRepoStub{
		getFn: func(_ context.Context, _ string) (*models.Profile, error) {
			return &models.Profile{UserEmail: "a@x.com", Avatar: "/uploads/avatar_1.jpg"}, nil
		},
	}
	svc := newTestProfileService(repo)

	resp, err := svc.GetProfile(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8375/uploads/avatar_1.jpg", resp.Avatar)
}

func TestGetProfile_AbsoluteAvatarUntouched(t *testing.T) {
	repo := &profileRepoStub{
		getFn: func(_ context.Context, _ string) (*models.Profile, error) {
			return &models.Profile{Avatar: "https://cdn.example.com/a.jpg"}, nil
		},
	}
	svc := newTestProfileService(repo)

	resp, err := svc.GetProfile(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.jpg", resp.Avatar)
}

func TestUploadAvatar(t *testing.T) {
	ctx := context.Background()

	t.Run("stores normalized avatar", func(t *testing.T) {
		var saved *models.Profile
		repo := &profileRepoStub{
			saveFn: func(_ context.Context, p *models.Profile) error {
				saved = p
				return nil
			},
		}
		svc := newTestProfileService(repo)

		_, err := svc.UploadAvatar(ctx, "a@x.com", "me.png", pngBytes(t, 800, 600))
		require.NoError(t, err)
		require.NotNil(t, saved)
		assert.Contains(t, saved.Avatar, "/uploads/avatar_")
	})

	t.Run("rejects oversized avatar", func(t *testing.T) {
		svc := NewProfileService(&profileRepoStub{}, &blobStoreStub{}, "http://localhost:8375", 10)
		_, err := svc.UploadAvatar(ctx, "a@x.com", "me.png", make([]byte, 11))
		assertAppErrCode(t, err, models.CodeValidation)
	})

	t.Run("rejects non-image upload", func(t *testing.T) {
		svc := newTestProfileService(&profileRepoStub{})
		_, err := svc.UploadAvatar(ctx, "a@x.com", "clip.mp4", []byte("x"))
		assertAppErrCode(t, err, models.CodeValidation)
	})
}
