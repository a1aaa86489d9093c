package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"prok/internal/cache"
	"prok/internal/middleware"
	"prok/internal/models"
	"prok/internal/observability"
	"prok/internal/repository"
	"prok/internal/storage"
	"prok/internal/validation"
)

const (
	maxTitleLen   = 300
	maxContentLen = 50000

	defaultPerPage = 10
	maxPerPage     = 50

	popularTagsLimit = 20
)

// PostService implements the post pipeline: creation with media, filtered
// listing, single-post reads, likes, deletion and the cached metadata views.
type PostService struct {
	posts         repository.PostRepository
	users         repository.UserRepository
	cache         cache.Store
	blobs         storage.BlobStore
	maxMediaBytes int64
	allowedExts   map[string]bool
}

// NewPostService creates a PostService.
func NewPostService(
	posts repository.PostRepository,
	users repository.UserRepository,
	cacheStore cache.Store,
	blobs storage.BlobStore,
	maxMediaBytes int64,
	allowedExts map[string]bool,
) *PostService {
	return &PostService{
		posts:         posts,
		users:         users,
		cache:         cacheStore,
		blobs:         blobs,
		maxMediaBytes: maxMediaBytes,
		allowedExts:   allowedExts,
	}
}

// MediaUpload is an uploaded file attached to a new post.
type MediaUpload struct {
	Filename string
	Data     []byte
}

// CreatePostInput carries the payload for creating a post.
type CreatePostInput struct {
	AuthorEmail   string
	Title         string
	Content       string
	Category      string
	Tags          []string
	IsPublic      bool
	AllowComments bool
	Media         *MediaUpload
}

// ListPostsInput selects and pages a post listing.
type ListPostsInput struct {
	Search     string
	Category   string
	Tag        string
	Visibility string
	Sort       string
	Page       int
	PerPage    int
}

// PostPage is a page of posts with the pagination envelope.
type PostPage struct {
	Posts   []models.PostResponse `json:"posts"`
	Page    int                   `json:"page"`
	PerPage int                   `json:"per_page"`
	Total   int64                 `json:"total"`
	Pages   int                   `json:"pages"`
	HasNext bool                  `json:"has_next"`
	HasPrev bool                  `json:"has_prev"`
}

// TagCount is a tag with its usage count.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// CreatePost validates the payload, stores the media blob if present, and
// persists the post. The metadata caches are invalidated on success.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.PostResponse, error) {
	title := validation.Sanitize(in.Title)
	content := validation.Sanitize(in.Content)

	if title == "" {
		return nil, models.NewValidationError("Title is required")
	}
	if len(title) > maxTitleLen {
		return nil, models.NewValidationError("Title too long (max 300 characters)")
	}
	if content == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if len(content) > maxContentLen {
		return nil, models.NewValidationError("Content too long (max 50000 characters)")
	}

	post := &models.Post{
		UserEmail:     in.AuthorEmail,
		Title:         title,
		Content:       content,
		Category:      validation.Sanitize(in.Category),
		Tags:          joinTags(in.Tags),
		IsPublic:      in.IsPublic,
		AllowComments: in.AllowComments,
	}

	if in.Media != nil {
		mediaURL, mediaType, err := s.storeMedia(ctx, in.Media)
		if err != nil {
			return nil, err
		}
		post.MediaURL = mediaURL
		post.MediaType = mediaType
	}

	if err := s.posts.Create(ctx, post); err != nil {
		// The post row is the source of truth; remove the orphaned blob.
		if post.MediaURL != "" {
			if rmErr := s.blobs.Remove(ctx, post.MediaURL); rmErr != nil {
				middleware.Logger.WarnContext(ctx, "failed to remove orphaned media blob",
					slog.String("url", post.MediaURL),
					slog.String("error", rmErr.Error()),
				)
			}
		}
		return nil, err
	}

	s.invalidateMetadata(ctx)

	resp := post.Response(s.authorName(ctx, post.UserEmail))
	return &resp, nil
}

// storeMedia enforces the extension allow-list and size cap, normalizes
// images, and writes the blob.
func (s *PostService) storeMedia(ctx context.Context, media *MediaUpload) (string, string, error) {
	ext := fileExtension(media.Filename)
	if !s.allowedExts[ext] {
		return "", "", models.NewValidationError(fmt.Sprintf("File type .%s is not allowed", ext))
	}
	if int64(len(media.Data)) > s.maxMediaBytes {
		return "", "", models.NewValidationError(
			fmt.Sprintf("File exceeds the %dMB limit", s.maxMediaBytes/(1024*1024)))
	}

	kind := mediaKind(ext)
	data := media.Data
	contentType := "application/octet-stream"

	if kind == "image" {
		normalized, err := normalizeImage(data, PostImageMaxSize)
		if err != nil {
			return "", "", err
		}
		data = normalized
		ext = "jpg"
		contentType = "image/jpeg"
	}

	name := fmt.Sprintf("post_%d.%s", time.Now().UnixNano(), ext)
	url, err := s.blobs.Put(ctx, name, contentType, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", "", models.NewInternalError(err)
	}
	observability.MediaUploads.WithLabelValues(kind).Inc()
	return url, kind, nil
}

// ListPosts returns the filtered, sorted page of posts with author data.
func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) (*PostPage, error) {
	page := in.Page
	if page < 1 {
		page = 1
	}
	perPage := in.PerPage
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	posts, total, err := s.posts.List(ctx, repository.ListFilter{
		Search:     in.Search,
		Category:   in.Category,
		Tag:        in.Tag,
		Visibility: in.Visibility,
		Sort:       in.Sort,
		Limit:      perPage,
		Offset:     (page - 1) * perPage,
	})
	if err != nil {
		return nil, err
	}

	pages := int((total + int64(perPage) - 1) / int64(perPage))

	return &PostPage{
		Posts:   s.enrich(ctx, posts),
		Page:    page,
		PerPage: perPage,
		Total:   total,
		Pages:   pages,
		HasNext: page < pages,
		HasPrev: page > 1,
	}, nil
}

// GetPost returns a single post, counting the view. Private posts are only
// visible to their author.
func (s *PostService) GetPost(ctx context.Context, id uint, viewerEmail string) (*models.PostResponse, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !post.IsPublic && post.UserEmail != viewerEmail {
		return nil, models.NewForbiddenError("This post is private")
	}

	// Read-modify-write; concurrent views may undercount.
	post.Views++
	if err := s.posts.Update(ctx, post); err != nil {
		return nil, err
	}

	resp := post.Response(s.authorName(ctx, post.UserEmail))
	return &resp, nil
}

// LikePost increments the like counter. Visibility follows GetPost: a
// private post can only be liked by its author. There is no per-user
// idempotence guard, so repeated requests from one account keep counting.
func (s *PostService) LikePost(ctx context.Context, id uint, viewerEmail string) (*models.PostResponse, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !post.IsPublic && post.UserEmail != viewerEmail {
		return nil, models.NewForbiddenError("This post is private")
	}

	post.Likes++
	if err := s.posts.Update(ctx, post); err != nil {
		return nil, err
	}

	resp := post.Response(s.authorName(ctx, post.UserEmail))
	return &resp, nil
}

// DeletePost removes the author's post, deleting the media blob before the
// row so a failed blob delete never leaves a dangling reference.
func (s *PostService) DeletePost(ctx context.Context, id uint, requesterEmail string) error {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if post.UserEmail != requesterEmail {
		return models.NewForbiddenError("Only the author can delete this post")
	}

	if post.MediaURL != "" {
		if err := s.blobs.Remove(ctx, post.MediaURL); err != nil {
			return models.NewInternalError(err)
		}
	}

	if err := s.posts.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidateMetadata(ctx)
	return nil
}

// Feed returns every post newest first with author data.
func (s *PostService) Feed(ctx context.Context) ([]models.PostResponse, error) {
	posts, err := s.posts.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, posts), nil
}

// Categories returns the distinct categories in use, cached for five minutes.
func (s *PostService) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	found, err := s.cache.GetJSON(ctx, cache.CategoriesKey, &categories)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "categories cache read failed", slog.String("error", err.Error()))
	}
	if found {
		observability.CacheHits.WithLabelValues(cache.CategoriesKey).Inc()
		return categories, nil
	}
	observability.CacheMisses.WithLabelValues(cache.CategoriesKey).Inc()

	categories, err = s.posts.Categories(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetJSON(ctx, cache.CategoriesKey, categories, cache.MetadataTTL); err != nil {
		middleware.Logger.WarnContext(ctx, "categories cache write failed", slog.String("error", err.Error()))
	}
	return categories, nil
}

// PopularTags returns the twenty most used tags with counts, cached for five
// minutes.
func (s *PostService) PopularTags(ctx context.Context) ([]TagCount, error) {
	var tags []TagCount
	found, err := s.cache.GetJSON(ctx, cache.PopularTagsKey, &tags)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "popular tags cache read failed", slog.String("error", err.Error()))
	}
	if found {
		observability.CacheHits.WithLabelValues(cache.PopularTagsKey).Inc()
		return tags, nil
	}
	observability.CacheMisses.WithLabelValues(cache.PopularTagsKey).Inc()

	columns, err := s.posts.TagColumns(ctx)
	if err != nil {
		return nil, err
	}
	tags = topTags(columns, popularTagsLimit)

	if err := s.cache.SetJSON(ctx, cache.PopularTagsKey, tags, cache.MetadataTTL); err != nil {
		middleware.Logger.WarnContext(ctx, "popular tags cache write failed", slog.String("error", err.Error()))
	}
	return tags, nil
}

// invalidateMetadata drops the cached categories and popular tags after a
// post is created or deleted.
func (s *PostService) invalidateMetadata(ctx context.Context) {
	if err := s.cache.Delete(ctx, cache.CategoriesKey, cache.PopularTagsKey); err != nil {
		middleware.Logger.WarnContext(ctx, "metadata cache invalidation failed", slog.String("error", err.Error()))
	}
}

// enrich renders posts for the API with their authors' display names.
func (s *PostService) enrich(ctx context.Context, posts []*models.Post) []models.PostResponse {
	emails := make([]string, 0, len(posts))
	seen := map[string]struct{}{}
	for _, p := range posts {
		if _, ok := seen[p.UserEmail]; ok {
			continue
		}
		seen[p.UserEmail] = struct{}{}
		emails = append(emails, p.UserEmail)
	}

	names, err := s.users.DisplayNamesByEmails(ctx, emails)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "author name lookup failed", slog.String("error", err.Error()))
		names = map[string]string{}
	}

	out := make([]models.PostResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Response(names[p.UserEmail]))
	}
	return out
}

func (s *PostService) authorName(ctx context.Context, email string) string {
	names, err := s.users.DisplayNamesByEmails(ctx, []string{email})
	if err != nil {
		return ""
	}
	return names[email]
}

// topTags splits the comma-joined tag columns, counts occurrences and
// returns the limit most used tags. Ties break alphabetically so the
// ordering is stable.
func topTags(columns []string, limit int) []TagCount {
	counts := map[string]int{}
	for _, column := range columns {
		for _, tag := range strings.Split(column, ",") {
			tag = strings.TrimSpace(tag)
			if tag != "" {
				counts[tag]++
			}
		}
	}

	tags := make([]TagCount, 0, len(counts))
	for tag, count := range counts {
		tags = append(tags, TagCount{Tag: tag, Count: count})
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Count != tags[j].Count {
			return tags[i].Count > tags[j].Count
		}
		return tags[i].Tag < tags[j].Tag
	})

	if len(tags) > limit {
		tags = tags[:limit]
	}
	return tags
}

func joinTags(tags []string) string {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(validation.Sanitize(tag))
		if tag != "" {
			cleaned = append(cleaned, tag)
		}
	}
	return strings.Join(cleaned, ",")
}
