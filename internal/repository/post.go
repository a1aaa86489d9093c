package repository

import (
	"context"
	"errors"

	"prok/internal/models"

	"gorm.io/gorm"
)

// Visibility filter values for ListFilter.
const (
	VisibilityAll     = "all"
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// ListFilter narrows and orders a post listing.
type ListFilter struct {
	Search     string
	Category   string
	Tag        string
	Visibility string
	Sort       string
	Limit      int
	Offset     int
}

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter ListFilter) ([]*models.Post, int64, error)
	ListAll(ctx context.Context) ([]*models.Post, error)
	Categories(ctx context.Context) ([]string, error)
	TagColumns(ctx context.Context) ([]string, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository returns a new PostRepository implementation.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Save(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Post{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// applyFilter appends the WHERE clauses for the requested filter.
// LOWER(...) LIKE is used instead of ILIKE so the query runs on both
// PostgreSQL and SQLite.
func applyFilter(db *gorm.DB, filter ListFilter) *gorm.DB {
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		db = db.Where("LOWER(title) LIKE LOWER(?) OR LOWER(content) LIKE LOWER(?)", like, like)
	}
	if filter.Category != "" {
		db = db.Where("category = ?", filter.Category)
	}
	if filter.Tag != "" {
		db = db.Where("LOWER(tags) LIKE LOWER(?)", "%"+filter.Tag+"%")
	}
	switch filter.Visibility {
	case VisibilityPublic:
		db = db.Where("is_public = ?", true)
	case VisibilityPrivate:
		db = db.Where("is_public = ?", false)
	}
	return db
}

// applySort appends the ORDER BY clause for the requested sort field. All
// sorts are descending with created_at as tiebreaker; unrecognized values
// fall back to newest first.
func applySort(db *gorm.DB, sort string) *gorm.DB {
	switch sort {
	case "likes":
		return db.Order("likes DESC, created_at DESC")
	case "views":
		return db.Order("views DESC, created_at DESC")
	default: // "created_at" and anything unrecognized
		return db.Order("created_at DESC")
	}
}

// List returns the filtered page of posts along with the total match count
// before pagination.
func (r *postRepository) List(ctx context.Context, filter ListFilter) ([]*models.Post, int64, error) {
	base := applyFilter(r.db.WithContext(ctx).Model(&models.Post{}), filter)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var posts []*models.Post
	err := applySort(base, filter.Sort).
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&posts).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return posts, total, nil
}

// ListAll returns every post newest first. Used by the feed.
func (r *postRepository) ListAll(ctx context.Context) ([]*models.Post, error) {
	var posts []*models.Post
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// Categories returns the distinct non-empty categories in use.
func (r *postRepository) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Distinct("category").
		Where("category <> ''").
		Order("category ASC").
		Pluck("category", &categories).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return categories, nil
}

// TagColumns returns the raw comma-joined tags column of every post that has
// tags. The caller splits and aggregates them.
func (r *postRepository) TagColumns(ctx context.Context) ([]string, error) {
	var columns []string
	err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("tags <> ''").
		Pluck("tags", &columns).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return columns, nil
}
