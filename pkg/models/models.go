// Package models defines the entities shared by every storage backend and
// the HTTP layer. IDs are typed wrappers around UUIDs so that a folder ID
// can never be passed where a note ID is expected, and so each backend can
// render them in its native format (RecordID for SurrealDB, uuid for
// PostgreSQL).
package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// FolderColor is one of the fixed palette tokens a folder can be tagged
// with. The palette is closed: backends store the token string verbatim.
type FolderColor string

const (
	ColorRed    FolderColor = "red"
	ColorOrange FolderColor = "orange"
	ColorYellow FolderColor = "yellow"
	ColorGreen  FolderColor = "green"
	ColorBlue   FolderColor = "blue"
	ColorPurple FolderColor = "purple"
	ColorPink   FolderColor = "pink"
	ColorGray   FolderColor = "gray"
)

// FolderColors lists every valid palette token in display order.
var FolderColors = []FolderColor{
	ColorRed, ColorOrange, ColorYellow, ColorGreen,
	ColorBlue, ColorPurple, ColorPink, ColorGray,
}

// Valid reports whether c is one of the palette tokens.
func (c FolderColor) Valid() bool {
	for _, v := range FolderColors {
		if c == v {
			return true
		}
	}
	return false
}

// DefaultFolderColor is assigned when a folder is created without an
// explicit color.
const DefaultFolderColor = ColorGray

// Folder groups notes. Deleting a folder never deletes its notes; their
// folder reference is cleared instead.
type Folder struct {
	ID        FolderID    `json:"id" gorm:"type:uuid;primaryKey"`
	Name      string      `json:"name" gorm:"not null"`
	Color     FolderColor `json:"color" gorm:"not null;default:gray"`
	UserID    UserID      `json:"user_id" gorm:"type:uuid;index;not null"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (f *Folder) BeforeCreate(tx *gorm.DB) error {
	if f.ID.IsZero() {
		f.ID = NewFolderID()
	}
	if f.Color == "" {
		f.Color = DefaultFolderColor
	}
	if !f.Color.Valid() {
		return fmt.Errorf("invalid folder color: %s", f.Color)
	}
	return nil
}

// Note is a single document. Content holds the serialized editor document
// as an opaque JSON string; the store layers never look inside it.
type Note struct {
	ID         NoteID    `json:"id" gorm:"type:uuid;primaryKey"`
	Title      string    `json:"title" gorm:"not null"`
	Content    string    `json:"content"`
	FolderID   *FolderID `json:"folder_id,omitempty" gorm:"type:uuid;index"`
	UserID     UserID    `json:"user_id" gorm:"type:uuid;index;not null"`
	IsFavorite bool      `json:"is_favorite"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (n *Note) BeforeCreate(tx *gorm.DB) error {
	if n.ID.IsZero() {
		n.ID = NewNoteID()
	}
	return nil
}

// ValidateTitle rejects titles that are empty once surrounding whitespace
// is stripped. Callers create no record when this fails.
func ValidateTitle(title string) (string, error) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return "", fmt.Errorf("note title must not be blank")
	}
	return trimmed, nil
}

// User is an account that owns folders and notes.
type User struct {
	ID        UserID    `json:"id" gorm:"type:uuid;primaryKey"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID.IsZero() {
		u.ID = NewUserID()
	}
	return nil
}
