// Package models contains data structures for the application's domain models.
package models

import "time"

// User represents an account in the Prok application. The email address is
// the primary identifier; posts and the profile reference it directly.
type User struct {
	Email        string    `gorm:"primaryKey;size:120" json:"email"`
	Username     string    `gorm:"uniqueIndex;size:80;not null" json:"username"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`

	Profile *Profile `gorm:"foreignKey:UserEmail;references:Email" json:"profile,omitempty"`
	Posts   []Post   `gorm:"foreignKey:UserEmail;references:Email" json:"posts,omitempty"`
}

// PublicUser is the subset of user data embedded in post and feed responses.
type PublicUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
