// Package notefoldtesting provides testing utilities for the notefold
// application.
//
// VirtualUser is a stateful simulated user driven through the HTTP
// client: it signs up, builds folders and notes, edits, moves, and
// deletes them, and verifies the server state afterwards. Behavior is
// deterministic per user index so failing scenarios can be replayed, and
// multiple virtual users can run concurrently for load testing.
package notefoldtesting

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/notefold/notefold/pkg/client"
	"github.com/notefold/notefold/pkg/models"
)

// VirtualUser simulates one user session against a running server.
type VirtualUser struct {
	Index    int // Virtual user index (0, 1, 2...) - NOT the database user ID
	Name     string
	Email    string
	Password string
	Client   *client.Client
	RNG      *rand.Rand // Deterministic random number generator seeded with Index

	// Session state
	User          *models.User
	CurrentFolder *models.Folder
	CurrentNote   *models.Note
	AuthToken     string

	// Tracking data created by this user
	Folders []*models.Folder
	Notes   map[models.FolderID][]*models.Note
	Unfiled []*models.Note

	// Track deleted items for verification
	DeletedFolders []models.FolderID
	DeletedNotes   []models.NoteID

	mu sync.RWMutex
}

// NewVirtualUser creates a new virtual user with a client. Emails embed
// a timestamp so repeated runs never collide.
func NewVirtualUser(index int, baseURL string) *VirtualUser {
	rng := rand.New(rand.NewSource(int64(index)))
	timestamp := time.Now().UnixNano()

	return &VirtualUser{
		Index:          index,
		Name:           fmt.Sprintf("Virtual User %d", index),
		Email:          fmt.Sprintf("user%d-%d@test.com", index, timestamp),
		Password:       fmt.Sprintf("password%d", index),
		Client:         client.NewClient(baseURL),
		RNG:            rng,
		Notes:          make(map[models.FolderID][]*models.Note),
		DeletedFolders: make([]models.FolderID, 0),
		DeletedNotes:   make([]models.NoteID, 0),
	}
}

// SignUp creates an account for this virtual user
func (vu *VirtualUser) SignUp(ctx context.Context) error {
	authResp, err := vu.Client.SignUp(ctx, vu.Email, vu.Password, vu.Name)
	if err != nil {
		return fmt.Errorf("virtual user %d signup failed: %w", vu.Index, err)
	}

	vu.mu.Lock()
	vu.User = authResp.User
	vu.AuthToken = authResp.Token
	vu.mu.Unlock()

	return nil
}

// SignIn authenticates this virtual user
func (vu *VirtualUser) SignIn(ctx context.Context) error {
	authResp, err := vu.Client.SignIn(ctx, vu.Email, vu.Password)
	if err != nil {
		return fmt.Errorf("virtual user %d signin failed: %w", vu.Index, err)
	}

	vu.mu.Lock()
	vu.User = authResp.User
	vu.AuthToken = authResp.Token
	vu.mu.Unlock()

	return nil
}

// SignOut ends the session and clears all session state
func (vu *VirtualUser) SignOut(ctx context.Context) error {
	if err := vu.Client.SignOut(ctx); err != nil {
		return fmt.Errorf("virtual user %d signout failed: %w", vu.Index, err)
	}

	vu.mu.Lock()
	vu.User = nil
	vu.AuthToken = ""
	vu.CurrentFolder = nil
	vu.CurrentNote = nil
	vu.mu.Unlock()

	return nil
}

// CreateFolder creates a folder and makes it current
func (vu *VirtualUser) CreateFolder(ctx context.Context, name string) (*models.Folder, error) {
	colors := models.FolderColors
	folder := &models.Folder{
		Name:  name,
		Color: colors[vu.RNG.Intn(len(colors))],
	}

	created, err := vu.Client.CreateFolder(ctx, folder)
	if err != nil {
		return nil, fmt.Errorf("virtual user %d failed to create folder: %w", vu.Index, err)
	}

	vu.mu.Lock()
	vu.Folders = append(vu.Folders, created)
	vu.CurrentFolder = created
	vu.mu.Unlock()

	return created, nil
}

// CreateNote creates a note in the current folder (or unfiled) and
// makes it current
func (vu *VirtualUser) CreateNote(ctx context.Context, title string) (*models.Note, error) {
	note := &models.Note{Title: title}

	vu.mu.RLock()
	var folderID *models.FolderID
	if vu.CurrentFolder != nil {
		id := vu.CurrentFolder.ID
		folderID = &id
	}
	vu.mu.RUnlock()
	note.FolderID = folderID

	created, err := vu.Client.CreateNote(ctx, note)
	if err != nil {
		return nil, fmt.Errorf("virtual user %d failed to create note: %w", vu.Index, err)
	}

	vu.mu.Lock()
	if folderID != nil {
		vu.Notes[*folderID] = append(vu.Notes[*folderID], created)
	} else {
		vu.Unfiled = append(vu.Unfiled, created)
	}
	vu.CurrentNote = created
	vu.mu.Unlock()

	return created, nil
}

// UpdateNoteContent saves new content to the current note
func (vu *VirtualUser) UpdateNoteContent(ctx context.Context, content string) (*models.Note, error) {
	vu.mu.RLock()
	current := vu.CurrentNote
	vu.mu.RUnlock()
	if current == nil {
		return nil, fmt.Errorf("virtual user %d has no current note", vu.Index)
	}

	current.Content = content
	updated, err := vu.Client.UpdateNote(ctx, current)
	if err != nil {
		return nil, fmt.Errorf("virtual user %d failed to update note: %w", vu.Index, err)
	}

	vu.mu.Lock()
	vu.CurrentNote = updated
	vu.mu.Unlock()

	return updated, nil
}

// MoveNote moves a note to the given folder (nil means unfiled)
func (vu *VirtualUser) MoveNote(ctx context.Context, noteID models.NoteID, folderID *models.FolderID) (*models.Note, error) {
	moved, err := vu.Client.MoveNote(ctx, noteID, folderID)
	if err != nil {
		return nil, fmt.Errorf("virtual user %d failed to move note: %w", vu.Index, err)
	}
	return moved, nil
}

// DeleteNote deletes a note and records it for verification
func (vu *VirtualUser) DeleteNote(ctx context.Context, noteID models.NoteID) error {
	if err := vu.Client.DeleteNote(ctx, noteID); err != nil {
		return fmt.Errorf("virtual user %d failed to delete note: %w", vu.Index, err)
	}

	vu.mu.Lock()
	vu.DeletedNotes = append(vu.DeletedNotes, noteID)
	if vu.CurrentNote != nil && vu.CurrentNote.ID == noteID {
		vu.CurrentNote = nil
	}
	vu.mu.Unlock()

	return nil
}

// DeleteFolder deletes a folder and records it for verification. The
// folder's notes survive unfiled.
func (vu *VirtualUser) DeleteFolder(ctx context.Context, folderID models.FolderID) error {
	if err := vu.Client.DeleteFolder(ctx, folderID); err != nil {
		return fmt.Errorf("virtual user %d failed to delete folder: %w", vu.Index, err)
	}

	vu.mu.Lock()
	vu.DeletedFolders = append(vu.DeletedFolders, folderID)
	vu.Unfiled = append(vu.Unfiled, vu.Notes[folderID]...)
	delete(vu.Notes, folderID)
	if vu.CurrentFolder != nil && vu.CurrentFolder.ID == folderID {
		vu.CurrentFolder = nil
	}
	vu.mu.Unlock()

	return nil
}

// RunScenario performs a representative session: sign up, create
// folders, fill them with notes, edit, move, and delete some of both.
func (vu *VirtualUser) RunScenario(ctx context.Context) error {
	if err := vu.SignUp(ctx); err != nil {
		return err
	}

	numFolders := 2 + vu.RNG.Intn(3)
	for i := 0; i < numFolders; i++ {
		if _, err := vu.CreateFolder(ctx, fmt.Sprintf("Folder %d-%d", vu.Index, i)); err != nil {
			return err
		}

		numNotes := 1 + vu.RNG.Intn(4)
		for j := 0; j < numNotes; j++ {
			if _, err := vu.CreateNote(ctx, fmt.Sprintf("Note %d-%d-%d", vu.Index, i, j)); err != nil {
				return err
			}
			if vu.RNG.Intn(2) == 0 {
				if _, err := vu.UpdateNoteContent(ctx, fmt.Sprintf(`{"blocks":[{"type":"paragraph","inlines":[{"text":"edit %d"}]}]}`, j)); err != nil {
					return err
				}
			}
		}
	}

	// Move one note out of its folder.
	vu.mu.RLock()
	var moveCandidate *models.Note
	for _, notes := range vu.Notes {
		if len(notes) > 0 {
			moveCandidate = notes[0]
			break
		}
	}
	vu.mu.RUnlock()
	if moveCandidate != nil {
		if _, err := vu.MoveNote(ctx, moveCandidate.ID, nil); err != nil {
			return err
		}
	}

	// Delete-heavy users also tear a folder down.
	if vu.Index%2 == 1 && len(vu.Folders) > 0 {
		if err := vu.DeleteFolder(ctx, vu.Folders[0].ID); err != nil {
			return err
		}
	}

	return nil
}

// CreateNoteInFolder creates a note in a specific folder through an already
// authenticated client. Used by tests that drive several clients against one
// account.
func CreateNoteInFolder(ctx context.Context, c *client.Client, title string, folderID models.FolderID) (*models.Note, error) {
	return c.CreateNote(ctx, &models.Note{Title: title, FolderID: &folderID})
}

// VerifyAllData checks the server against the user's tracked state:
// deleted records are gone, surviving notes are listed, and no note
// references a deleted folder.
func (vu *VirtualUser) VerifyAllData(ctx context.Context) error {
	folders, err := vu.Client.ListFolders(ctx)
	if err != nil {
		return fmt.Errorf("virtual user %d failed to list folders: %w", vu.Index, err)
	}
	notes, err := vu.Client.ListNotes(ctx, nil)
	if err != nil {
		return fmt.Errorf("virtual user %d failed to list notes: %w", vu.Index, err)
	}

	deletedFolders := make(map[models.FolderID]bool)
	vu.mu.RLock()
	for _, id := range vu.DeletedFolders {
		deletedFolders[id] = true
	}
	deletedNotes := make(map[models.NoteID]bool)
	for _, id := range vu.DeletedNotes {
		deletedNotes[id] = true
	}
	vu.mu.RUnlock()

	for _, f := range folders {
		if deletedFolders[f.ID] {
			return fmt.Errorf("virtual user %d: deleted folder %s still listed", vu.Index, f.ID)
		}
	}
	for _, n := range notes {
		if deletedNotes[n.ID] {
			return fmt.Errorf("virtual user %d: deleted note %s still listed", vu.Index, n.ID)
		}
		if n.FolderID != nil && deletedFolders[*n.FolderID] {
			return fmt.Errorf("virtual user %d: note %s references deleted folder %s", vu.Index, n.ID, *n.FolderID)
		}
	}

	return nil
}
