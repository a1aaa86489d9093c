package models

import (
	"encoding/json"
	"strings"
)

// Profile holds the extended identity data for a user. Skills are stored as
// comma-joined text; the social/experience/education/contact/activity fields
// are stored as serialized JSON text (the canonical storage form) regardless
// of the shape the client submitted.
type Profile struct {
	ID                uint   `gorm:"primaryKey" json:"id"`
	UserEmail         string `gorm:"uniqueIndex;size:120;not null" json:"-"`
	Avatar            string `gorm:"size:255" json:"avatar"`
	Name              string `gorm:"size:120" json:"name"`
	Title             string `gorm:"size:120" json:"title"`
	Location          string `gorm:"size:120" json:"location"`
	Bio               string `gorm:"type:text" json:"bio"`
	Skills            string `gorm:"type:text" json:"-"`
	Social            string `gorm:"type:text" json:"-"`
	Experience        string `gorm:"type:text" json:"-"`
	Education         string `gorm:"type:text" json:"-"`
	Contact           string `gorm:"type:text" json:"-"`
	Activity          string `gorm:"type:text" json:"-"`
	Connections       int    `gorm:"default:0" json:"connections"`
	MutualConnections int    `gorm:"default:0" json:"mutualConnections"`
}

// ProfileResponse is the API representation of a profile: skills as a list,
// JSON-shaped fields decoded back into structured values.
type ProfileResponse struct {
	ID                uint     `json:"id"`
	Avatar            string   `json:"avatar"`
	Name              string   `json:"name"`
	Title             string   `json:"title"`
	Location          string   `json:"location"`
	Bio               string   `json:"bio"`
	Skills            []string `json:"skills"`
	Social            any      `json:"social"`
	Experience        any      `json:"experience"`
	Education         any      `json:"education"`
	Contact           any      `json:"contact"`
	Activity          any      `json:"activity"`
	Connections       int      `json:"connections"`
	MutualConnections int      `json:"mutualConnections"`
}

// Response renders the profile for the API. The avatar is rewritten to an
// absolute URL by prefixing backendURL when it is a relative reference; this
// is a presentation-time transform, the stored value is untouched.
func (p *Profile) Response(backendURL string) ProfileResponse {
	avatar := p.Avatar
	if avatar != "" && !strings.HasPrefix(avatar, "http") {
		avatar = backendURL + avatar
	}

	return ProfileResponse{
		ID:                p.ID,
		Avatar:            avatar,
		Name:              p.Name,
		Title:             p.Title,
		Location:          p.Location,
		Bio:               p.Bio,
		Skills:            splitCommaList(p.Skills),
		Social:            decodeJSONField(p.Social, []any{}),
		Experience:        decodeJSONField(p.Experience, []any{}),
		Education:         decodeJSONField(p.Education, []any{}),
		Contact:           decodeJSONField(p.Contact, map[string]any{}),
		Activity:          decodeJSONField(p.Activity, []any{}),
		Connections:       p.Connections,
		MutualConnections: p.MutualConnections,
	}
}

func splitCommaList(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

// decodeJSONField parses stored JSON text, falling back to the given default
// when the column is empty or holds text that predates normalization.
func decodeJSONField(raw string, fallback any) any {
	if raw == "" {
		return fallback
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return fallback
	}
	return v
}
