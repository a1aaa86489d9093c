// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"prok/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedOptions tune factory behavior.
type SeedOptions struct {
	// DryRun logs what would be created without touching the database.
	DryRun bool
	// SkipBcrypt stores a plain placeholder password for fast dev seeding.
	SkipBcrypt bool
	// MaxDays spreads created_at timestamps over this many days back.
	MaxDays int
}

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	db   *gorm.DB
	opts SeedOptions
	rng  *rand.Rand
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts SeedOptions) *Factory {
	gofakeit.Seed(time.Now().UnixNano())
	return &Factory{
		db:   db,
		opts: opts,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CreateUser constructs and persists a sample account. Optional override
// functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := &models.User{
		Username: strings.ToLower(gofakeit.Username()) + fmt.Sprintf("%d", gofakeit.Number(100, 999)),
		Email:    gofakeit.Email(),
	}

	if f.opts.SkipBcrypt {
		user.PasswordHash = "password123"
	} else {
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("Password123"), bcrypt.DefaultCost)
		user.PasswordHash = string(hashedPassword)
	}

	for _, override := range overrides {
		override(user)
	}

	if f.opts.DryRun {
		log.Printf("[dry-run] CreateUser: %s <%s>", user.Username, user.Email)
		return user, nil
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateProfile builds and persists a filled-in profile for the user,
// including the JSON-shaped columns in their canonical stored form.
func (f *Factory) CreateProfile(user *models.User, overrides ...func(*models.Profile)) (*models.Profile, error) {
	skills := make([]string, 0, 5)
	for i := 0; i < 3+f.rng.Intn(3); i++ {
		skills = append(skills, gofakeit.ProgrammingLanguage())
	}

	experience, _ := json.Marshal([]map[string]any{
		{
			"company": gofakeit.Company(),
			"role":    gofakeit.JobTitle(),
			"years":   1 + f.rng.Intn(8),
		},
	})
	education, _ := json.Marshal([]map[string]any{
		{"school": gofakeit.Company() + " University", "degree": "BSc"},
	})
	contact, _ := json.Marshal(map[string]any{
		"phone":   gofakeit.Phone(),
		"website": gofakeit.URL(),
	})

	profile := &models.Profile{
		UserEmail:  user.Email,
		Name:       gofakeit.Name(),
		Title:      gofakeit.JobTitle(),
		Location:   gofakeit.City(),
		Bio:        gofakeit.Sentence(12),
		Skills:     strings.Join(dedupe(skills), ","),
		Social:     "[]",
		Experience: string(experience),
		Education:  string(education),
		Contact:    string(contact),
		Activity:   "[]",
	}

	for _, override := range overrides {
		override(profile)
	}

	if f.opts.DryRun {
		log.Printf("[dry-run] CreateProfile: %s (%s)", profile.Name, profile.UserEmail)
		return profile, nil
	}
	if err := f.db.Create(profile).Error; err != nil {
		return nil, err
	}
	return profile, nil
}

// BuildPost constructs a post without persisting it. Useful for batching.
func (f *Factory) BuildPost(user *models.User, overrides ...func(*models.Post)) *models.Post {
	categories := []string{"engineering", "design", "career", "hiring", "announcements"}
	tagPool := []string{"go", "sql", "cloud", "frontend", "backend", "devops", "ai", "startups"}

	tags := make([]string, 0, 3)
	for i := 0; i < 1+f.rng.Intn(3); i++ {
		tags = append(tags, tagPool[f.rng.Intn(len(tagPool))])
	}

	post := &models.Post{
		UserEmail:     user.Email,
		Title:         gofakeit.Sentence(5),
		Content:       gofakeit.Paragraph(1, 3, 5, "\n"),
		Category:      categories[f.rng.Intn(len(categories))],
		Tags:          strings.Join(dedupe(tags), ","),
		AllowComments: true,
		IsPublic:      f.rng.Float32() < 0.9,
		Likes:         f.rng.Intn(500),
		Views:         f.rng.Intn(5000),
	}

	// realistic created_at spread
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	daysBack := f.rng.Intn(maxDays)
	hoursBack := f.rng.Intn(24)
	minsBack := f.rng.Intn(60)
	post.CreatedAt = time.Now().
		Add(-time.Duration(daysBack)*24*time.Hour -
			time.Duration(hoursBack)*time.Hour -
			time.Duration(minsBack)*time.Minute)

	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePostsBatch persists multiple posts in a single DB call when possible.
func (f *Factory) CreatePostsBatch(posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	if f.opts.DryRun {
		log.Printf("[dry-run] CreatePostsBatch: %d posts (no DB write)", len(posts))
		return nil
	}
	return f.db.Create(&posts).Error
}

// CreateMessage persists a direct message between two accounts.
func (f *Factory) CreateMessage(sender, receiver *models.User, overrides ...func(*models.Message)) (*models.Message, error) {
	message := &models.Message{
		SenderEmail:   sender.Email,
		ReceiverEmail: receiver.Email,
		Content:       gofakeit.Sentence(8),
	}

	for _, override := range overrides {
		override(message)
	}

	if f.opts.DryRun {
		log.Printf("[dry-run] CreateMessage: %s -> %s", message.SenderEmail, message.ReceiverEmail)
		return message, nil
	}
	if err := f.db.Create(message).Error; err != nil {
		return nil, err
	}
	return message, nil
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
