package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"strings"
	"testing"

	"prok/internal/cache"
	"prok/internal/models"
	"prok/internal/repository"
	"prok/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn     func(context.Context, *models.Post) error
	getByIDFn    func(context.Context, uint) (*models.Post, error)
	updateFn     func(context.Context, *models.Post) error
	deleteFn     func(context.Context, uint) error
	listFn       func(context.Context, repository.ListFilter) ([]*models.Post, int64, error)
	listAllFn    func(context.Context) ([]*models.Post, error)
	categoriesFn func(context.Context) ([]string, error)
	tagColumnsFn func(context.Context) ([]string, error)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post) error {
	return s.updateFn(ctx, post)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *postRepoStub) List(ctx context.Context, filter repository.ListFilter) ([]*models.Post, int64, error) {
	return s.listFn(ctx, filter)
}
func (s *postRepoStub) ListAll(ctx context.Context) ([]*models.Post, error) {
	return s.listAllFn(ctx)
}
func (s *postRepoStub) Categories(ctx context.Context) ([]string, error) {
	return s.categoriesFn(ctx)
}
func (s *postRepoStub) TagColumns(ctx context.Context) ([]string, error) {
	return s.tagColumnsFn(ctx)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:  func(_ context.Context, _ *models.Post) error { return nil },
		getByIDFn: func(_ context.Context, _ uint) (*models.Post, error) { return &models.Post{}, nil },
		updateFn:  func(_ context.Context, _ *models.Post) error { return nil },
		deleteFn:  func(_ context.Context, _ uint) error { return nil },
		listFn: func(_ context.Context, _ repository.ListFilter) ([]*models.Post, int64, error) {
			return nil, 0, nil
		},
		listAllFn:    func(_ context.Context) ([]*models.Post, error) { return nil, nil },
		categoriesFn: func(_ context.Context) ([]string, error) { return nil, nil },
		tagColumnsFn: func(_ context.Context) ([]string, error) { return nil, nil },
	}
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByEmailFn   func(context.Context, string) (*models.User, error)
	displayNamesFn func(context.Context, []string) (map[string]string, error)
}

func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.getByEmailFn != nil {
		return s.getByEmailFn(ctx, email)
	}
	return nil, nil
}
func (s *userRepoStub) GetByUsername(_ context.Context, _ string) (*models.User, error) {
	return nil, nil
}
func (s *userRepoStub) Create(_ context.Context, _ *models.User) error { return nil }
func (s *userRepoStub) DisplayNamesByEmails(ctx context.Context, emails []string) (map[string]string, error) {
	if s.displayNamesFn != nil {
		return s.displayNamesFn(ctx, emails)
	}
	return map[string]string{}, nil
}

// blobStoreStub is a stub for storage.BlobStore.
type blobStoreStub struct {
	putFn    func(context.Context, string, string, int64) (string, error)
	removeFn func(context.Context, string) error
}

func (s *blobStoreStub) Put(ctx context.Context, name, contentType string, _ io.Reader, size int64) (string, error) {
	if s.putFn != nil {
		return s.putFn(ctx, name, contentType, size)
	}
	return "/uploads/" + name, nil
}

func (s *blobStoreStub) Remove(ctx context.Context, name string) error {
	if s.removeFn != nil {
		return s.removeFn(ctx, name)
	}
	return nil
}

func mustLocalStore(t *testing.T) storage.BlobStore {
	t.Helper()
	blobs, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return blobs
}

func newTestPostService(t *testing.T, posts *postRepoStub) *PostService {
	t.Helper()
	return NewPostService(posts, &userRepoStub{}, cache.NewMemoryStore(), mustLocalStore(t),
		20*1024*1024, map[string]bool{"png": true, "jpg": true, "jpeg": true, "mp4": true, "webm": true})
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	require.NoError(t, png.Encode(buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func assertAppErrCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

func TestCreatePost_Validation(t *testing.T) {
	svc := newTestPostService(t, noopPostRepo())
	ctx := context.Background()

	_, err := svc.CreatePost(ctx, CreatePostInput{AuthorEmail: "a@x.com", Content: "c"})
	assertAppErrCode(t, err, models.CodeValidation)

	_, err = svc.CreatePost(ctx, CreatePostInput{AuthorEmail: "a@x.com", Title: "t"})
	assertAppErrCode(t, err, models.CodeValidation)

	_, err = svc.CreatePost(ctx, CreatePostInput{
		AuthorEmail: "a@x.com",
		Title:       strings.Repeat("x", maxTitleLen+1),
		Content:     "c",
	})
	assertAppErrCode(t, err, models.CodeValidation)
}

func TestCreatePost_SanitizesAndJoinsTags(t *testing.T) {
	var created *models.Post
	repo := noopPostRepo()
	repo.createFn = func(_ context.Context, p *models.Post) error {
		created = p
		return nil
	}
	svc := newTestPostService(t, repo)

	resp, err := svc.CreatePost(context.Background(), CreatePostInput{
		AuthorEmail: "a@x.com",
		Title:       "Launch <script>alert(1)</script>day",
		Content:     "we shipped",
		Tags:        []string{" golang ", "", "release"},
		IsPublic:    true,
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "Launch alert(1)day", created.Title)
	assert.Equal(t, "golang,release", created.Tags)
	assert.Equal(t, []string{"golang", "release"}, resp.Tags)
	assert.Equal(t, 0, resp.CommentsCount)
}

func TestCreatePost_MediaRules(t *testing.T) {
	ctx := context.Background()

	t.Run("disallowed extension", func(t *testing.T) {
		svc := newTestPostService(t, noopPostRepo())
		_, err := svc.CreatePost(ctx, CreatePostInput{
			AuthorEmail: "a@x.com", Title: "t", Content: "c",
			Media: &MediaUpload{Filename: "malware.exe", Data: []byte("x")},
		})
		assertAppErrCode(t, err, models.CodeValidation)
	})

	t.Run("oversized upload", func(t *testing.T) {
		small := NewPostService(noopPostRepo(), &userRepoStub{}, cache.NewMemoryStore(),
			mustLocalStore(t), 10, map[string]bool{"png": true})
		_, err := small.CreatePost(ctx, CreatePostInput{
			AuthorEmail: "a@x.com", Title: "t", Content: "c",
			Media: &MediaUpload{Filename: "big.png", Data: bytes.Repeat([]byte{0}, 11)},
		})
		assertAppErrCode(t, err, models.CodeValidation)
	})

	t.Run("image is normalized to jpeg", func(t *testing.T) {
		var created *models.Post
		repo := noopPostRepo()
		repo.createFn = func(_ context.Context, p *models.Post) error {
			created = p
			return nil
		}
		svc := newTestPostService(t, repo)

		_, err := svc.CreatePost(ctx, CreatePostInput{
			AuthorEmail: "a@x.com", Title: "t", Content: "c",
			Media: &MediaUpload{Filename: "photo.png", Data: pngBytes(t, 2400, 1200)},
		})
		require.NoError(t, err)
		require.NotNil(t, created)
		assert.Equal(t, "image", created.MediaType)
		assert.True(t, strings.HasSuffix(created.MediaURL, ".jpg"), "got %s", created.MediaURL)
	})

	t.Run("corrupt image rejected", func(t *testing.T) {
		svc := newTestPostService(t, noopPostRepo())
		_, err := svc.CreatePost(ctx, CreatePostInput{
			AuthorEmail: "a@x.com", Title: "t", Content: "c",
			Media: &MediaUpload{Filename: "broken.png", Data: []byte("not an image")},
		})
		assertAppErrCode(t, err, models.CodeValidation)
	})

	t.Run("video stored verbatim", func(t *testing.T) {
		var created *models.Post
		repo := noopPostRepo()
		repo.createFn = func(_ context.Context, p *models.Post) error {
			created = p
			return nil
		}
		svc := newTestPostService(t, repo)

		_, err := svc.CreatePost(ctx, CreatePostInput{
			AuthorEmail: "a@x.com", Title: "t", Content: "c",
			Media: &MediaUpload{Filename: "clip.mp4", Data: []byte("fake video bytes")},
		})
		require.NoError(t, err)
		assert.Equal(t, "video", created.MediaType)
		assert.True(t, strings.HasSuffix(created.MediaURL, ".mp4"))
	})
}

func TestListPosts_PaginationEnvelope(t *testing.T) {
	repo := noopPostRepo()
	var gotFilter repository.ListFilter
	repo.listFn = func(_ context.Context, f repository.ListFilter) ([]*models.Post, int64, error) {
		gotFilter = f
		return []*models.Post{{UserEmail: "a@x.com", Title: "t"}}, 25, nil
	}
	svc := newTestPostService(t, repo)

	page, err := svc.ListPosts(context.Background(), ListPostsInput{Page: 2, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, gotFilter.Limit)
	assert.Equal(t, 10, gotFilter.Offset)
	assert.Equal(t, 2, page.Page)
	assert.EqualValues(t, 25, page.Total)
	assert.Equal(t, 3, page.Pages)
	assert.True(t, page.HasNext)
	assert.True(t, page.HasPrev)
}

func TestListPosts_PerPageBounds(t *testing.T) {
	repo := noopPostRepo()
	var gotFilter repository.ListFilter
	repo.listFn = func(_ context.Context, f repository.ListFilter) ([]*models.Post, int64, error) {
		gotFilter = f
		return nil, 0, nil
	}
	svc := newTestPostService(t, repo)
	ctx := context.Background()

	_, err := svc.ListPosts(ctx, ListPostsInput{Page: 0, PerPage: 0})
	require.NoError(t, err)
	assert.Equal(t, defaultPerPage, gotFilter.Limit)
	assert.Equal(t, 0, gotFilter.Offset)

	_, err = svc.ListPosts(ctx, ListPostsInput{Page: 1, PerPage: 500})
	require.NoError(t, err)
	assert.Equal(t, maxPerPage, gotFilter.Limit, "per_page is capped")
}

func TestGetPost_PrivateVisibility(t *testing.T) {
	repo := noopPostRepo()
	repo.getByIDFn = func(_ context.Context, _ uint) (*models.Post, error) {
		return &models.Post{ID: 1, UserEmail: "author@x.com", IsPublic: false}, nil
	}
	svc := newTestPostService(t, repo)
	ctx := context.Background()

	_, err := svc.GetPost(ctx, 1, "other@x.com")
	assertAppErrCode(t, err, models.CodeForbidden)

	_, err = svc.GetPost(ctx, 1, "")
	assertAppErrCode(t, err, models.CodeForbidden)

	resp, err := svc.GetPost(ctx, 1, "author@x.com")
	require.NoError(t, err)
	assert.Equal(t, uint(1), resp.ID)
}

func TestGetPost_CountsView(t *testing.T) {
	repo := noopPostRepo()
	post := &models.Post{ID: 1, UserEmail: "a@x.com", IsPublic: true, Views: 4}
	repo.getByIDFn = func(_ context.Context, _ uint) (*models.Post, error) { return post, nil }
	var saved *models.Post
	repo.updateFn = func(_ context.Context, p *models.Post) error {
		saved = p
		return nil
	}
	svc := newTestPostService(t, repo)

	resp, err := svc.GetPost(context.Background(), 1, "viewer@x.com")
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Views)
	require.NotNil(t, saved)
	assert.Equal(t, 5, saved.Views)
}

func TestLikePost_Increments(t *testing.T) {
	repo := noopPostRepo()
	post := &models.Post{ID: 1, UserEmail: "a@x.com", IsPublic: true, Likes: 2}
	repo.getByIDFn = func(_ context.Context, _ uint) (*models.Post, error) { return post, nil }
	svc := newTestPostService(t, repo)
	ctx := context.Background()

	resp, err := svc.LikePost(ctx, 1, "anyone@x.com")
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Likes)

	// No idempotence guard: a second like from anyone keeps counting.
	resp, err = svc.LikePost(ctx, 1, "anyone@x.com")
	require.NoError(t, err)
	assert.Equal(t, 4, resp.Likes)
}

func TestLikePost_PrivateOnlyByAuthor(t *testing.T) {
	repo := noopPostRepo()
	post := &models.Post{ID: 1, UserEmail: "author@x.com", IsPublic: false}
	repo.getByIDFn = func(_ context.Context, _ uint) (*models.Post, error) { return post, nil }
	svc := newTestPostService(t, repo)
	ctx := context.Background()

	_, err := svc.LikePost(ctx, 1, "other@x.com")
	assertAppErrCode(t, err, models.CodeForbidden)

	_, err = svc.LikePost(ctx, 1, "")
	assertAppErrCode(t, err, models.CodeForbidden)
	assert.Equal(t, 0, post.Likes, "rejected likes must not count")

	resp, err := svc.LikePost(ctx, 1, "author@x.com")
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Likes)
}

func TestDeletePost_AuthorOnly(t *testing.T) {
	repo := noopPostRepo()
	repo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		if id != 1 {
			return nil, models.NewNotFoundError("Post", id)
		}
		return &models.Post{ID: 1, UserEmail: "author@x.com"}, nil
	}
	svc := newTestPostService(t, repo)
	ctx := context.Background()

	err := svc.DeletePost(ctx, 2, "author@x.com")
	assertAppErrCode(t, err, models.CodeNotFound)

	err = svc.DeletePost(ctx, 1, "other@x.com")
	assertAppErrCode(t, err, models.CodeForbidden)

	assert.NoError(t, svc.DeletePost(ctx, 1, "author@x.com"))
}

func TestDeletePost_RemovesBlobFirst(t *testing.T) {
	var calls []string
	repo := noopPostRepo()
	repo.getByIDFn = func(_ context.Context, _ uint) (*models.Post, error) {
		return &models.Post{ID: 1, UserEmail: "a@x.com", MediaURL: "/uploads/clip.mp4"}, nil
	}
	repo.deleteFn = func(_ context.Context, _ uint) error {
		calls = append(calls, "row")
		return nil
	}
	blobs := &blobStoreStub{
		removeFn: func(_ context.Context, _ string) error {
			calls = append(calls, "blob")
			return nil
		},
	}
	svc := NewPostService(repo, &userRepoStub{}, cache.NewMemoryStore(), blobs, 20*1024*1024, map[string]bool{})

	require.NoError(t, svc.DeletePost(context.Background(), 1, "a@x.com"))
	assert.Equal(t, []string{"blob", "row"}, calls)
}

func TestDeletePost_BlobFailureKeepsRow(t *testing.T) {
	repo := noopPostRepo()
	repo.getByIDFn = func(_ context.Context, _ uint) (*models.Post, error) {
		return &models.Post{ID: 1, UserEmail: "a@x.com", MediaURL: "/uploads/clip.mp4"}, nil
	}
	rowDeleted := false
	repo.deleteFn = func(_ context.Context, _ uint) error {
		rowDeleted = true
		return nil
	}
	blobs := &blobStoreStub{
		removeFn: func(_ context.Context, _ string) error { return errors.New("storage down") },
	}
	svc := NewPostService(repo, &userRepoStub{}, cache.NewMemoryStore(), blobs, 20*1024*1024, map[string]bool{})

	err := svc.DeletePost(context.Background(), 1, "a@x.com")
	require.Error(t, err)
	assert.False(t, rowDeleted)
}

func TestCategories_CachedBetweenCalls(t *testing.T) {
	repo := noopPostRepo()
	queries := 0
	repo.categoriesFn = func(_ context.Context) ([]string, error) {
		queries++
		return []string{"Career", "Tech"}, nil
	}
	svc := newTestPostService(t, repo)
	ctx := context.Background()

	got, err := svc.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Career", "Tech"}, got)

	_, err = svc.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, queries, "second call should be served from cache")
}

func TestPopularTags_TopTagsInvalidatedOnCreate(t *testing.T) {
	repo := noopPostRepo()
	columns := []string{"golang,hiring", "golang", "golang,career", "hiring"}
	repo.tagColumnsFn = func(_ context.Context) ([]string, error) { return columns, nil }
	svc := newTestPostService(t, repo)
	ctx := context.Background()

	tags, err := svc.PopularTags(ctx)
	require.NoError(t, err)
	require.True(t, len(tags) >= 3)
	assert.Equal(t, TagCount{Tag: "golang", Count: 3}, tags[0])
	assert.Equal(t, TagCount{Tag: "hiring", Count: 2}, tags[1])

	// A new post invalidates the cached listing.
	columns = append(columns, "rust,rust-lang")
	_, err = svc.CreatePost(ctx, CreatePostInput{AuthorEmail: "a@x.com", Title: "t", Content: "c"})
	require.NoError(t, err)

	tags, err = svc.PopularTags(ctx)
	require.NoError(t, err)
	found := false
	for _, tc := range tags {
		if tc.Tag == "rust" {
			found = true
		}
	}
	assert.True(t, found, "cache should have been refreshed after create")
}

func TestTopTags_LimitAndTies(t *testing.T) {
	columns := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		columns = append(columns, "tag"+string(rune('a'+i%25)))
	}
	tags := topTags(columns, 20)
	assert.Len(t, tags, 20)
	// Equal counts are ordered alphabetically.
	for i := 1; i < len(tags); i++ {
		if tags[i-1].Count == tags[i].Count {
			assert.Less(t, tags[i-1].Tag, tags[i].Tag)
		}
	}
}

func TestFeed_NewestFirstWithAuthors(t *testing.T) {
	repo := noopPostRepo()
	repo.listAllFn = func(_ context.Context) ([]*models.Post, error) {
		return []*models.Post{
			{ID: 2, UserEmail: "b@x.com", Title: "second"},
			{ID: 1, UserEmail: "a@x.com", Title: "first"},
		}, nil
	}
	users := &userRepoStub{
		displayNamesFn: func(_ context.Context, _ []string) (map[string]string, error) {
			return map[string]string{"a@x.com": "Alice", "b@x.com": "Bob"}, nil
		},
	}
	svc := NewPostService(repo, users, cache.NewMemoryStore(), mustLocalStore(t), 20*1024*1024, map[string]bool{})

	feed, err := svc.Feed(context.Background())
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, "Bob", feed[0].User.Name)
	assert.Equal(t, "Alice", feed[1].User.Name)
	assert.Equal(t, 0, feed[0].CommentsCount)
}
