package seed

import (
	"fmt"
	"log"

	"prok/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder.
type Options struct {
	NumUsers    int
	NumPosts    int
	NumMessages int
	ShouldClean bool
	Factory     SeedOptions
}

// Seed populates the database with demo accounts, profiles, posts and
// messages.
func Seed(db *gorm.DB, opts Options) error {
	log.Printf("🌱 Starting database seeding with %d users and %d posts...", opts.NumUsers, opts.NumPosts)

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Println("⚠️  Warning: Could not clear all existing data, but continuing anyway...")
		}
	}

	factory := NewFactory(db, opts.Factory)

	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		user, err := factory.CreateUser()
		if err != nil {
			log.Printf("Failed to create user: %v", err)
			continue
		}
		if _, err := factory.CreateProfile(user); err != nil {
			log.Printf("Failed to create profile for %s: %v", user.Email, err)
		}
		users = append(users, user)

		if i > 0 && i%100 == 0 {
			log.Printf("Created %d users...", i)
		}
	}
	if len(users) == 0 {
		return fmt.Errorf("no users could be created")
	}
	log.Printf("✓ %d demo users created", len(users))

	posts := make([]*models.Post, 0, opts.NumPosts)
	for i := 0; i < opts.NumPosts; i++ {
		author := users[factory.rng.Intn(len(users))]
		posts = append(posts, factory.BuildPost(author))
	}
	if err := factory.CreatePostsBatch(posts); err != nil {
		return fmt.Errorf("failed to create posts: %w", err)
	}
	log.Printf("✓ %d posts created", len(posts))

	for i := 0; i < opts.NumMessages && len(users) > 1; i++ {
		sender := users[factory.rng.Intn(len(users))]
		receiver := users[factory.rng.Intn(len(users))]
		if receiver.Email == sender.Email {
			continue
		}
		if _, err := factory.CreateMessage(sender, receiver); err != nil {
			log.Printf("Failed to create message: %v", err)
		}
	}
	if opts.NumMessages > 0 {
		log.Printf("✓ messages created")
	}

	log.Println("🎉 Database seeding completed successfully!")
	return nil
}

func clearData(db *gorm.DB) error {
	log.Println("🗑️  Clearing existing data...")
	for _, model := range []any{&models.Message{}, &models.Post{}, &models.Profile{}, &models.User{}} {
		if err := db.Where("1 = 1").Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}
