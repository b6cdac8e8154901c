package models

import "time"

type Tag struct {
	Base
	Label       string `json:"label"       gorm:"size:50;uniqueIndex;not null"`
	Description string `json:"description" gorm:"size:255"`
	Color       string `json:"color"       gorm:"size:7"`
	UsageCount  int64  `json:"usage_count" gorm:"not null;default:0"`
}

func (Tag) TableName() string { return "tags" }

// NoteTag links a note to a tag.
type NoteTag struct {
	NoteID    string    `gorm:"type:char(36);primaryKey"`
	TagID     string    `gorm:"type:char(36);primaryKey;index"`
	CreatedAt time.Time
}

func (NoteTag) TableName() string { return "note_tags" }
