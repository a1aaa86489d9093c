package models

import (
	"strings"
	"time"
)

// Post represents a post in the Prok application. Tags are stored as
// comma-joined text; likes and views are plain counters incremented by
// dedicated endpoints.
type Post struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserEmail     string    `gorm:"size:120;not null;index" json:"user_email"`
	Title         string    `gorm:"size:255;not null" json:"title"`
	Content       string    `gorm:"type:text;not null" json:"content"`
	MediaURL      string    `gorm:"size:255" json:"media_url"`
	MediaType     string    `gorm:"size:100" json:"media_type"`
	AllowComments bool      `gorm:"default:true" json:"allow_comments"`
	IsPublic      bool      `gorm:"default:true" json:"is_public"`
	Category      string    `gorm:"size:100" json:"category"`
	Tags          string    `gorm:"size:255" json:"-"`
	Likes         int       `gorm:"default:0" json:"likes"`
	Views         int       `gorm:"default:0" json:"views"`
	CreatedAt     time.Time `json:"created_at"`
}

// TagList splits the comma-joined tags column, dropping empty entries.
func (p *Post) TagList() []string {
	if p.Tags == "" {
		return []string{}
	}
	var tags []string
	for _, t := range strings.Split(p.Tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	if tags == nil {
		return []string{}
	}
	return tags
}

// PostResponse is the API representation of a post, enriched with the
// author's display data. CommentsCount is a placeholder; comments are not
// implemented.
type PostResponse struct {
	ID            uint       `json:"id"`
	UserEmail     string     `json:"user_email"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	MediaURL      string     `json:"media_url,omitempty"`
	MediaType     string     `json:"media_type,omitempty"`
	AllowComments bool       `json:"allow_comments"`
	IsPublic      bool       `json:"is_public"`
	Category      string     `json:"category,omitempty"`
	Tags          []string   `json:"tags"`
	Likes         int        `json:"likes"`
	Views         int        `json:"views"`
	CreatedAt     time.Time  `json:"created_at"`
	User          PublicUser `json:"user"`
	CommentsCount int        `json:"comments_count"`
}

// Response renders the post for the API with the author's display name.
// authorName falls back to a placeholder when the author record is missing.
func (p *Post) Response(authorName string) PostResponse {
	if authorName == "" {
		authorName = "Unknown User"
	}
	return PostResponse{
		ID:            p.ID,
		UserEmail:     p.UserEmail,
		Title:         p.Title,
		Content:       p.Content,
		MediaURL:      p.MediaURL,
		MediaType:     p.MediaType,
		AllowComments: p.AllowComments,
		IsPublic:      p.IsPublic,
		Category:      p.Category,
		Tags:          p.TagList(),
		Likes:         p.Likes,
		Views:         p.Views,
		CreatedAt:     p.CreatedAt,
		User:          PublicUser{Name: authorName, Email: p.UserEmail},
		CommentsCount: 0,
	}
}
