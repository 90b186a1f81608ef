package database

import "time"

// TagRecord caches the tags extracted from one audio file. A record is valid
// while the file's size and modification time are unchanged.
type TagRecord struct {
	ID        uint32    `gorm:"primaryKey" json:"id"`
	Path      string    `gorm:"uniqueIndex;not null" json:"path"`
	Size      int64     `gorm:"not null" json:"size"`
	ModTime   time.Time `gorm:"not null" json:"mod_time"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	Album     string    `json:"album"`
	Genre     string    `json:"genre"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
