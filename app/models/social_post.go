package models

import "time"

// SocialPost is the append-only log of one cross-platform publish attempt.
// PlatformResultsJSON holds the per-platform success/error map; rows are
// created once per attempt and never mutated.
type SocialPost struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	PostID              string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"post_id"`
	Text                string    `gorm:"type:text;not null" json:"text"`
	PlatformResultsJSON string    `gorm:"type:text" json:"platform_results_json"`
	Success             bool      `gorm:"default:false;index" json:"success"`
	CreatedAt           time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName specifies the table name for the SocialPost model
func (SocialPost) TableName() string {
	return "social_posts"
}
