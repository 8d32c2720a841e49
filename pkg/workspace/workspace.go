// Package workspace holds the in-memory folder/note state for one signed
// in user and orchestrates every mutation against the persistence layer.
//
// The Workspace is an explicit state container: it is constructed with a
// store and passed by reference, never ambient package state, so it can
// be driven directly by tests without any UI environment.
//
// Every mutation is a single transaction: the change is applied to the
// in-memory state first, then sent to the store, and on store failure the
// in-memory change is deterministically reverted before the error is
// returned. The UI is therefore optimistically consistent and never left
// diverged from the backend by a failed call.
//
// Folder note counts are always derived by RecomputeCounts from the note
// collection after a mutation. They are never incremented or decremented
// on their own.
package workspace

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/notefold/notefold/pkg/document"
	"github.com/notefold/notefold/pkg/models"
	"github.com/notefold/notefold/pkg/store"
)

// MobilePanel is the panel shown on narrow screens. Wide screens show
// all three at once and ignore this state.
type MobilePanel string

const (
	PanelFolders MobilePanel = "folders"
	PanelNotes   MobilePanel = "notes"
	PanelEditor  MobilePanel = "editor"
)

// Selection is the per-session view state. It is never persisted and
// resets to defaults on every sign in.
type Selection struct {
	// ActiveFolder filters the note list; nil means the all-notes view.
	ActiveFolder *models.FolderID
	// SelectedNote is the note open in the editor, nil when none.
	SelectedNote *models.NoteID
	MobilePanel  MobilePanel
}

// ErrNotSignedIn is returned by operations that require a signed in user.
var ErrNotSignedIn = fmt.Errorf("no user signed in")

// Workspace owns the folder and note collections for one user.
//
// All exported methods are safe for concurrent use; a single mutex
// serializes mutations so each one observes and reverts a consistent
// snapshot.
type Workspace struct {
	store  store.Store
	logger zerolog.Logger

	mu        sync.Mutex
	userID    models.UserID
	signedIn  bool
	folders   []*models.Folder
	notes     []*models.Note
	counts    map[models.FolderID]int
	selection Selection
}

// NewWorkspace returns an empty workspace backed by s.
func NewWorkspace(s store.Store, logger zerolog.Logger) *Workspace {
	return &Workspace{
		store:  s,
		logger: logger,
		counts: map[models.FolderID]int{},
		selection: Selection{
			MobilePanel: PanelNotes,
		},
	}
}

// RecomputeCounts derives the note count per folder from the note
// collection. This is the single authority for folder counts.
func RecomputeCounts(notes []*models.Note) map[models.FolderID]int {
	counts := map[models.FolderID]int{}
	for _, n := range notes {
		if n.FolderID != nil {
			counts[*n.FolderID]++
		}
	}
	return counts
}

// Load signs the workspace in as userID and performs the initial load:
// folders ordered oldest first, notes ordered most recently updated
// first. If no note is selected afterwards the first loaded note is
// selected. View state resets to defaults.
func (w *Workspace) Load(ctx context.Context, userID models.UserID) error {
	folders, err := w.store.ListFolders(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load folders: %w", err)
	}
	notes, err := w.store.ListNotes(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load notes: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.userID = userID
	w.signedIn = true
	w.folders = folders
	w.notes = notes
	w.counts = RecomputeCounts(notes)
	w.selection = Selection{MobilePanel: PanelNotes}
	if len(notes) > 0 {
		id := notes[0].ID
		w.selection.SelectedNote = &id
	}

	w.logger.Info().
		Str("user_id", userID.String()).
		Int("folders", len(folders)).
		Int("notes", len(notes)).
		Msg("workspace loaded")
	return nil
}

// SignOut clears every collection and the view state.
func (w *Workspace) SignOut() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.userID = models.UserID{}
	w.signedIn = false
	w.folders = nil
	w.notes = nil
	w.counts = map[models.FolderID]int{}
	w.selection = Selection{MobilePanel: PanelNotes}
}

// UserID returns the signed in user, or false when signed out.
func (w *Workspace) UserID() (models.UserID, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.userID, w.signedIn
}

// Folders returns the folder list in load order.
func (w *Workspace) Folders() []*models.Folder {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*models.Folder, len(w.folders))
	copy(out, w.folders)
	return out
}

// Notes returns the notes visible under the given folder filter. A nil
// filter returns every note. Filtering never mutates the collection.
func (w *Workspace) Notes(filter *models.FolderID) []*models.Note {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.notesLocked(filter)
}

func (w *Workspace) notesLocked(filter *models.FolderID) []*models.Note {
	if filter == nil {
		out := make([]*models.Note, len(w.notes))
		copy(out, w.notes)
		return out
	}
	out := []*models.Note{}
	for _, n := range w.notes {
		if n.FolderID != nil && *n.FolderID == *filter {
			out = append(out, n)
		}
	}
	return out
}

// NoteCount returns the derived count for a folder.
func (w *Workspace) NoteCount(id models.FolderID) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.counts[id]
}

// Selection returns a copy of the current view state.
func (w *Workspace) Selection() Selection {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selection
}

// SelectFolder sets the active folder filter and switches the mobile
// panel to the note list. A nil id selects the all-notes view.
func (w *Workspace) SelectFolder(id *models.FolderID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.selection.ActiveFolder = id
	w.selection.MobilePanel = PanelNotes
}

// SelectNote opens a note in the editor.
func (w *Workspace) SelectNote(id models.NoteID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.selection.SelectedNote = &id
	w.selection.MobilePanel = PanelEditor
}

// ShowPanel switches the mobile panel without touching the selection.
func (w *Workspace) ShowPanel(p MobilePanel) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.selection.MobilePanel = p
}

// Folder mutations

// CreateFolder validates the name, applies the new folder locally, then
// persists it. On store failure the folder is removed again.
func (w *Workspace) CreateFolder(ctx context.Context, name string, color models.FolderColor) (*models.Folder, error) {
	trimmed, err := models.ValidateTitle(name)
	if err != nil {
		return nil, fmt.Errorf("folder name must not be blank")
	}
	if color == "" {
		color = models.DefaultFolderColor
	}
	if !color.Valid() {
		return nil, fmt.Errorf("invalid folder color: %s", color)
	}

	w.mu.Lock()
	if !w.signedIn {
		w.mu.Unlock()
		return nil, ErrNotSignedIn
	}
	folder := &models.Folder{
		ID:     models.NewFolderID(),
		Name:   trimmed,
		Color:  color,
		UserID: w.userID,
	}
	w.folders = append(w.folders, folder)
	w.mu.Unlock()

	if err := w.store.CreateFolder(ctx, folder); err != nil {
		w.mu.Lock()
		w.folders = removeFolder(w.folders, folder.ID)
		w.mu.Unlock()
		w.logger.Error().Err(err).Str("folder_id", folder.ID.String()).Msg("create folder failed")
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}
	return folder, nil
}

// RenameFolder applies the new name locally, then persists. On failure
// the previous name is restored.
func (w *Workspace) RenameFolder(ctx context.Context, id models.FolderID, newName string) error {
	trimmed, err := models.ValidateTitle(newName)
	if err != nil {
		return fmt.Errorf("folder name must not be blank")
	}

	w.mu.Lock()
	folder := findFolder(w.folders, id)
	if folder == nil {
		w.mu.Unlock()
		return fmt.Errorf("folder %s not found", id)
	}
	oldName := folder.Name
	folder.Name = trimmed
	snapshot := *folder
	w.mu.Unlock()

	if err := w.store.UpdateFolder(ctx, &snapshot); err != nil {
		w.mu.Lock()
		if f := findFolder(w.folders, id); f != nil {
			f.Name = oldName
		}
		w.mu.Unlock()
		w.logger.Error().Err(err).Str("folder_id", id.String()).Msg("rename folder failed")
		return fmt.Errorf("failed to rename folder: %w", err)
	}
	return nil
}

// DeleteFolder removes the folder, clears the folder reference on every
// note that pointed at it (the notes survive), resets the folder filter
// when it pointed at the deleted folder, and recomputes counts. On store
// failure the full previous state is restored.
func (w *Workspace) DeleteFolder(ctx context.Context, id models.FolderID) error {
	w.mu.Lock()
	if findFolder(w.folders, id) == nil {
		w.mu.Unlock()
		return fmt.Errorf("folder %s not found", id)
	}

	prevFolders := make([]*models.Folder, len(w.folders))
	copy(prevFolders, w.folders)
	var detached []models.NoteID
	prevSelection := w.selection

	w.folders = removeFolder(w.folders, id)
	for _, n := range w.notes {
		if n.FolderID != nil && *n.FolderID == id {
			n.FolderID = nil
			detached = append(detached, n.ID)
		}
	}
	if w.selection.ActiveFolder != nil && *w.selection.ActiveFolder == id {
		w.selection.ActiveFolder = nil
	}
	w.counts = RecomputeCounts(w.notes)
	w.mu.Unlock()

	if err := w.store.DeleteFolder(ctx, id); err != nil {
		w.mu.Lock()
		w.folders = prevFolders
		for _, noteID := range detached {
			if n := findNote(w.notes, noteID); n != nil {
				fid := id
				n.FolderID = &fid
			}
		}
		w.selection = prevSelection
		w.counts = RecomputeCounts(w.notes)
		w.mu.Unlock()
		w.logger.Error().Err(err).Str("folder_id", id.String()).Msg("delete folder failed")
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	return nil
}

// Note mutations

// CreateNote validates the title, creates a note in the active folder
// filter with placeholder content, selects it, and switches to the
// editor panel. A whitespace-only title is rejected before any state
// changes and no identifier is issued. On store failure the note and the
// previous selection are restored.
func (w *Workspace) CreateNote(ctx context.Context, title string) (*models.Note, error) {
	trimmed, err := models.ValidateTitle(title)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	if !w.signedIn {
		w.mu.Unlock()
		return nil, ErrNotSignedIn
	}
	note := &models.Note{
		ID:      models.NewNoteID(),
		Title:   trimmed,
		Content: document.PlaceholderContent(),
		UserID:  w.userID,
	}
	if w.selection.ActiveFolder != nil {
		fid := *w.selection.ActiveFolder
		note.FolderID = &fid
	}
	prevSelection := w.selection

	w.notes = append([]*models.Note{note}, w.notes...)
	w.counts = RecomputeCounts(w.notes)
	noteID := note.ID
	w.selection.SelectedNote = &noteID
	w.selection.MobilePanel = PanelEditor
	w.mu.Unlock()

	if err := w.store.CreateNote(ctx, note); err != nil {
		w.mu.Lock()
		w.notes = removeNote(w.notes, note.ID)
		w.counts = RecomputeCounts(w.notes)
		w.selection = prevSelection
		w.mu.Unlock()
		w.logger.Error().Err(err).Str("note_id", note.ID.String()).Msg("create note failed")
		return nil, fmt.Errorf("failed to create note: %w", err)
	}
	return note, nil
}

// RenameNote applies the new title locally, then persists. On failure
// the previous title is restored.
func (w *Workspace) RenameNote(ctx context.Context, id models.NoteID, newTitle string) error {
	trimmed, err := models.ValidateTitle(newTitle)
	if err != nil {
		return err
	}

	w.mu.Lock()
	note := findNote(w.notes, id)
	if note == nil {
		w.mu.Unlock()
		return fmt.Errorf("note %s not found", id)
	}
	oldTitle := note.Title
	note.Title = trimmed
	snapshot := *note
	w.mu.Unlock()

	if err := w.store.UpdateNote(ctx, &snapshot); err != nil {
		w.mu.Lock()
		if n := findNote(w.notes, id); n != nil {
			n.Title = oldTitle
		}
		w.mu.Unlock()
		w.logger.Error().Err(err).Str("note_id", id.String()).Msg("rename note failed")
		return fmt.Errorf("failed to rename note: %w", err)
	}
	return nil
}

// UpdateContent saves a new serialized document for the note. Each edit
// round-trips to the store; the document layer decides how often to emit
// changes. On failure the previous content is restored.
func (w *Workspace) UpdateContent(ctx context.Context, id models.NoteID, content string) error {
	w.mu.Lock()
	note := findNote(w.notes, id)
	if note == nil {
		w.mu.Unlock()
		return fmt.Errorf("note %s not found", id)
	}
	oldContent := note.Content
	note.Content = content
	snapshot := *note
	w.mu.Unlock()

	if err := w.store.UpdateNote(ctx, &snapshot); err != nil {
		w.mu.Lock()
		if n := findNote(w.notes, id); n != nil {
			n.Content = oldContent
		}
		w.mu.Unlock()
		w.logger.Error().Err(err).Str("note_id", id.String()).Msg("update content failed")
		return fmt.Errorf("failed to update note content: %w", err)
	}
	return nil
}

// MoveNote reassigns the note's folder reference and recomputes the
// counts for every folder. The source folder count goes down by one and
// the target up by one, both derived from the note collection rather
// than adjusted in place. On failure the previous assignment is
// restored. A nil target files the note as unfiled.
func (w *Workspace) MoveNote(ctx context.Context, id models.NoteID, target *models.FolderID) error {
	w.mu.Lock()
	note := findNote(w.notes, id)
	if note == nil {
		w.mu.Unlock()
		return fmt.Errorf("note %s not found", id)
	}
	if target != nil && findFolder(w.folders, *target) == nil {
		w.mu.Unlock()
		return fmt.Errorf("folder %s not found", *target)
	}
	oldFolder := note.FolderID
	if target != nil {
		fid := *target
		note.FolderID = &fid
	} else {
		note.FolderID = nil
	}
	w.counts = RecomputeCounts(w.notes)
	snapshot := *note
	w.mu.Unlock()

	if err := w.store.UpdateNote(ctx, &snapshot); err != nil {
		w.mu.Lock()
		if n := findNote(w.notes, id); n != nil {
			n.FolderID = oldFolder
		}
		w.counts = RecomputeCounts(w.notes)
		w.mu.Unlock()
		w.logger.Error().Err(err).Str("note_id", id.String()).Msg("move note failed")
		return fmt.Errorf("failed to move note: %w", err)
	}
	return nil
}

// ToggleFavorite flips the favorite flag. On failure the flag is
// restored.
func (w *Workspace) ToggleFavorite(ctx context.Context, id models.NoteID) error {
	w.mu.Lock()
	note := findNote(w.notes, id)
	if note == nil {
		w.mu.Unlock()
		return fmt.Errorf("note %s not found", id)
	}
	note.IsFavorite = !note.IsFavorite
	snapshot := *note
	w.mu.Unlock()

	if err := w.store.UpdateNote(ctx, &snapshot); err != nil {
		w.mu.Lock()
		if n := findNote(w.notes, id); n != nil {
			n.IsFavorite = !n.IsFavorite
		}
		w.mu.Unlock()
		w.logger.Error().Err(err).Str("note_id", id.String()).Msg("toggle favorite failed")
		return fmt.Errorf("failed to toggle favorite: %w", err)
	}
	return nil
}

// DeleteNote removes the note and recomputes counts. When the deleted
// note was selected, selection falls back to the first remaining note in
// the current filtered view, or to none when the view is empty. On store
// failure the note, counts, and selection are restored.
func (w *Workspace) DeleteNote(ctx context.Context, id models.NoteID) error {
	w.mu.Lock()
	idx := noteIndex(w.notes, id)
	if idx < 0 {
		w.mu.Unlock()
		return fmt.Errorf("note %s not found", id)
	}
	removed := w.notes[idx]
	prevSelection := w.selection

	w.notes = append(w.notes[:idx:idx], w.notes[idx+1:]...)
	w.counts = RecomputeCounts(w.notes)

	if w.selection.SelectedNote != nil && *w.selection.SelectedNote == id {
		remaining := w.notesLocked(w.selection.ActiveFolder)
		if len(remaining) > 0 {
			next := remaining[0].ID
			w.selection.SelectedNote = &next
		} else {
			w.selection.SelectedNote = nil
		}
	}
	w.mu.Unlock()

	if err := w.store.DeleteNote(ctx, id); err != nil {
		w.mu.Lock()
		// The collection may have changed while the lock was released
		// for the store call, so idx can be past the current length.
		at := idx
		if at > len(w.notes) {
			at = len(w.notes)
		}
		notes := make([]*models.Note, 0, len(w.notes)+1)
		notes = append(notes, w.notes[:at]...)
		notes = append(notes, removed)
		notes = append(notes, w.notes[at:]...)
		w.notes = notes
		w.counts = RecomputeCounts(w.notes)
		w.selection = prevSelection
		w.mu.Unlock()
		w.logger.Error().Err(err).Str("note_id", id.String()).Msg("delete note failed")
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return nil
}

// Change feed

// ApplyChange reloads the collection named by the change wholesale. The
// event payload is advisory; no incremental merge is attempted. The
// selection survives when its targets still exist, otherwise it falls
// back the same way a local delete does.
func (w *Workspace) ApplyChange(ctx context.Context, c store.Change) error {
	w.mu.Lock()
	if !w.signedIn {
		w.mu.Unlock()
		return nil
	}
	userID := w.userID
	w.mu.Unlock()

	switch c.Collection {
	case store.CollectionFolders:
		folders, err := w.store.ListFolders(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to reload folders: %w", err)
		}
		notes, err := w.store.ListNotes(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to reload notes: %w", err)
		}
		w.mu.Lock()
		w.folders = folders
		w.notes = notes
	case store.CollectionNotes:
		notes, err := w.store.ListNotes(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to reload notes: %w", err)
		}
		w.mu.Lock()
		w.notes = notes
	default:
		return nil
	}
	defer w.mu.Unlock()

	w.counts = RecomputeCounts(w.notes)
	if w.selection.ActiveFolder != nil && findFolder(w.folders, *w.selection.ActiveFolder) == nil {
		w.selection.ActiveFolder = nil
	}
	if w.selection.SelectedNote != nil && findNote(w.notes, *w.selection.SelectedNote) == nil {
		remaining := w.notesLocked(w.selection.ActiveFolder)
		if len(remaining) > 0 {
			next := remaining[0].ID
			w.selection.SelectedNote = &next
		} else {
			w.selection.SelectedNote = nil
		}
	}
	return nil
}

// Watch consumes the store's change feed until ctx is canceled, applying
// each event. Reload errors are logged and the loop keeps going.
func (w *Workspace) Watch(ctx context.Context) error {
	w.mu.Lock()
	if !w.signedIn {
		w.mu.Unlock()
		return ErrNotSignedIn
	}
	userID := w.userID
	w.mu.Unlock()

	changes, err := w.store.Watch(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to watch store: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			if err := w.ApplyChange(ctx, c); err != nil {
				w.logger.Error().Err(err).
					Str("collection", string(c.Collection)).
					Msg("change feed reload failed")
			}
		}
	}
}

// Slice helpers

func findFolder(folders []*models.Folder, id models.FolderID) *models.Folder {
	for _, f := range folders {
		if f.ID == id {
			return f
		}
	}
	return nil
}

func removeFolder(folders []*models.Folder, id models.FolderID) []*models.Folder {
	out := folders[:0:0]
	for _, f := range folders {
		if f.ID != id {
			out = append(out, f)
		}
	}
	return out
}

func findNote(notes []*models.Note, id models.NoteID) *models.Note {
	for _, n := range notes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

func noteIndex(notes []*models.Note, id models.NoteID) int {
	for i, n := range notes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func removeNote(notes []*models.Note, id models.NoteID) []*models.Note {
	out := notes[:0:0]
	for _, n := range notes {
		if n.ID != id {
			out = append(out, n)
		}
	}
	return out
}
