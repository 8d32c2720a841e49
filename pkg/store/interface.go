// Package store defines the persistence contract implemented by the
// in-memory, SurrealDB, and PostgreSQL backends.
//
// Conventions shared by every implementation:
//   - Get* returns (nil, nil) when the record does not exist.
//   - List* returns an empty slice, never nil.
//   - Every method takes a context and honors its cancellation.
package store

import (
	"context"

	"github.com/notefold/notefold/pkg/models"
)

// ChangeAction classifies a change feed event.
type ChangeAction string

const (
	ActionCreated ChangeAction = "created"
	ActionUpdated ChangeAction = "updated"
	ActionDeleted ChangeAction = "deleted"
)

// ChangeCollection names the collection a change feed event belongs to.
type ChangeCollection string

const (
	CollectionFolders ChangeCollection = "folders"
	CollectionNotes   ChangeCollection = "notes"
)

// Change is a single change feed event. It is advisory: consumers reload
// the affected collection rather than patching local state from the event
// payload, so backends are free to omit record details.
type Change struct {
	Collection ChangeCollection
	Action     ChangeAction
	RecordID   string
}

// Store is the persistence interface for folders, notes, and users.
type Store interface {
	// Folder operations
	CreateFolder(ctx context.Context, folder *models.Folder) error
	GetFolder(ctx context.Context, id models.FolderID) (*models.Folder, error)
	UpdateFolder(ctx context.Context, folder *models.Folder) error
	// DeleteFolder removes the folder and clears the folder reference on
	// every note that pointed at it. The notes themselves survive.
	DeleteFolder(ctx context.Context, id models.FolderID) error
	// ListFolders returns the user's folders ordered by creation time,
	// oldest first.
	ListFolders(ctx context.Context, userID models.UserID) ([]*models.Folder, error)

	// Note operations
	CreateNote(ctx context.Context, note *models.Note) error
	GetNote(ctx context.Context, id models.NoteID) (*models.Note, error)
	UpdateNote(ctx context.Context, note *models.Note) error
	DeleteNote(ctx context.Context, id models.NoteID) error
	// ListNotes returns the user's notes ordered by last update, newest
	// first.
	ListNotes(ctx context.Context, userID models.UserID) ([]*models.Note, error)

	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id models.UserID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id models.UserID) error

	// Watch streams change feed events for the user's folders and notes
	// until ctx is canceled, at which point the channel is closed.
	Watch(ctx context.Context, userID models.UserID) (<-chan Change, error)

	// Migrate creates or updates the schema objects the backend needs.
	Migrate(ctx context.Context) error

	// Close releases the underlying connections.
	Close() error
}
