package domain

import "time"

// Platform identifies a social network an account belongs to.
type Platform string

const (
	PlatformInstagram Platform = "INSTAGRAM"
	PlatformTikTok    Platform = "TIKTOK"
	PlatformYouTube   Platform = "YOUTUBE"
)

// ValidPlatform reports whether p names a supported platform.
func ValidPlatform(p string) bool {
	switch Platform(p) {
	case PlatformInstagram, PlatformTikTok, PlatformYouTube:
		return true
	}
	return false
}

// PostStatus tracks a post through its publishing lifecycle.
type PostStatus string

const (
	PostDraft     PostStatus = "DRAFT"
	PostScheduled PostStatus = "SCHEDULED"
	PostPublished PostStatus = "PUBLISHED"
)

// Project groups posts under one campaign.
type Project struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Account is a connected social account owned by a user.
type Account struct {
	ID       int64    `json:"id"`
	Handle   string   `json:"handle"`
	Platform Platform `json:"platform"`
	UserID   int64    `json:"user_id"`
}

// Post is a piece of content belonging to a project, optionally linked
// to the accounts it will be published through.
type Post struct {
	ID          int64      `json:"id"`
	Caption     string     `json:"caption"`
	ProjectID   int64      `json:"project_id"`
	Status      PostStatus `json:"status"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Accounts    []Account  `json:"accounts,omitempty"`
}

// GeneratedFile is one extracted file from a model response. It exists
// only for the duration of a single generation request.
type GeneratedFile struct {
	Path     string `json:"path"`
	Contents string `json:"contents"`
}
