package models

import "time"

// Media types.
const (
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
)

// Item is a media item in the gallery. Paths are relative to the storage root.
type Item struct {
	ID               string    `json:"id" db:"id"`
	Title            string    `json:"title" db:"title"`
	SeriesID         string    `json:"series_id,omitempty" db:"series_id"`
	MediaType        string    `json:"media_type" db:"media_type"`
	MediaPath        string    `json:"media_path" db:"media_path"`
	ThumbPath        string    `json:"thumb_path" db:"thumb_path"`
	PosterPath       string    `json:"poster_path,omitempty" db:"poster_path"`
	CategoryID       string    `json:"category_id" db:"category_id"`
	AutoCategoryID   *string   `json:"auto_category_id,omitempty" db:"auto_category_id"`
	AutoConfidence   *float64  `json:"auto_confidence,omitempty" db:"auto_confidence"`
	AutoCandidates   *string   `json:"-" db:"auto_candidates_json"`
	IsCategoryLocked bool      `json:"is_category_locked" db:"is_category_locked"`
	CurrentVersionID string    `json:"current_version_id,omitempty" db:"current_version_id"`
	IsDeleted        bool      `json:"is_deleted" db:"is_deleted"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// ImagePath returns the relative image used for visual checks: the first non-empty of
// thumbnail, poster and media.
func (it *Item) ImagePath() string {
	for _, p := range []string{it.ThumbPath, it.PosterPath, it.MediaPath} {
		if p != "" {
			return p
		}
	}
	return ""
}

// ItemText is the textual context of an item used by the keyword hint.
type ItemText struct {
	Title        string   `json:"title"`
	Tags         []string `json:"tags"`
	Prompt       string   `json:"prompt"`
	SeriesName   string   `json:"series_name"`
	SeriesPrompt string   `json:"series_prompt"`
}

// Parts returns the non-empty text fragments in a fixed order.
func (t *ItemText) Parts() []string {
	if t == nil {
		return nil
	}
	parts := make([]string, 0, 4+len(t.Tags))
	if t.Title != "" {
		parts = append(parts, t.Title)
	}
	for _, tag := range t.Tags {
		if tag != "" {
			parts = append(parts, tag)
		}
	}
	for _, s := range []string{t.Prompt, t.SeriesName, t.SeriesPrompt} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

// Series groups items sharing a base prompt.
type Series struct {
	ID               string    `json:"id" db:"id"`
	Name             string    `json:"name" db:"name"`
	CurrentVersionID string    `json:"current_version_id,omitempty" db:"current_version_id"`
	IsDeleted        bool      `json:"is_deleted" db:"is_deleted"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}
