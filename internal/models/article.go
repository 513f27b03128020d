package models

import "time"

// Article is the minimal projection of an aggregated news article. Comments
// only depend on its existence.
type Article struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"size:500;not null" json:"title"`
	URL         string     `gorm:"uniqueIndex;size:1000;not null" json:"url"`
	Source      string     `gorm:"size:200" json:"source,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
