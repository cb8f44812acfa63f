package models

import (
	"fmt"
	"path"
	"time"
)

// Report is a citizen-submitted incident. Photo and Video hold storage keys,
// empty when nothing is attached.
type Report struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	User        User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user"`
	Title       string    `gorm:"size:100;not null" json:"title"`
	Description string    `gorm:"type:text;not null" json:"description"`
	Location    string    `gorm:"size:255;not null;index" json:"location"`
	Photo       string    `gorm:"size:512" json:"photo,omitempty"`
	Video       string    `gorm:"size:512" json:"video,omitempty"`
	CreatedAt   time.Time `gorm:"index;<-:create" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r *Report) HasPhoto() bool { return r.Photo != "" }

func (r *Report) HasVideo() bool { return r.Video != "" }

// VideoName is the file name of the attached video.
func (r *Report) VideoName() string {
	if r.Video == "" {
		return ""
	}
	return path.Base(r.Video)
}

// PhotoName is the file name of the attached photo.
func (r *Report) PhotoName() string {
	if r.Photo == "" {
		return ""
	}
	return path.Base(r.Photo)
}

func (r Report) String() string {
	return fmt.Sprintf("%s by %s", r.Title, r.User.Username)
}
