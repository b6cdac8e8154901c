package models

// Visibility controls who may read a note without a share.
type Visibility string

const (
	VisibilityPrivate Visibility = "PRIVATE"
	VisibilityShared  Visibility = "SHARED"
	VisibilityPublic  Visibility = "PUBLIC"
)

// Valid reports whether v is one of the known visibility levels.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPrivate, VisibilityShared, VisibilityPublic:
		return true
	}
	return false
}

type Note struct {
	Base
	OwnerID    string     `json:"owner_id"   gorm:"type:char(36);index;not null"`
	Title      string     `json:"title"      gorm:"size:255;not null"`
	ContentMD  string     `json:"content_md" gorm:"type:text"`
	Visibility Visibility `json:"visibility" gorm:"size:16;index;not null"`
	ViewCount  int64      `json:"view_count" gorm:"not null;default:0"`
	Favorite   bool       `json:"favorite"   gorm:"not null;default:false"`
}

func (Note) TableName() string { return "notes" }
