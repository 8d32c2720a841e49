// Package memory implements store.Store entirely in process memory. It
// backs local mode and the test suites.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/notefold/notefold/pkg/models"
	"github.com/notefold/notefold/pkg/store"
)

// Store keeps all records in maps guarded by a single mutex. Change feed
// subscribers each get a buffered channel; slow subscribers drop events
// rather than blocking writers.
type Store struct {
	mu      sync.RWMutex
	folders map[models.FolderID]*models.Folder
	notes   map[models.NoteID]*models.Note
	users   map[models.UserID]*models.User

	subMu   sync.Mutex
	subs    map[int]*subscriber
	nextSub int
}

type subscriber struct {
	userID models.UserID
	ch     chan store.Change
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		folders: make(map[models.FolderID]*models.Folder),
		notes:   make(map[models.NoteID]*models.Note),
		users:   make(map[models.UserID]*models.User),
		subs:    make(map[int]*subscriber),
	}
}

func (s *Store) notify(userID models.UserID, c store.Change) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, sub := range s.subs {
		if sub.userID != userID {
			continue
		}
		select {
		case sub.ch <- c:
		default:
		}
	}
}

func copyFolder(f *models.Folder) *models.Folder {
	c := *f
	return &c
}

func copyNote(n *models.Note) *models.Note {
	c := *n
	if n.FolderID != nil {
		fid := *n.FolderID
		c.FolderID = &fid
	}
	return &c
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}

// Folder operations

func (s *Store) CreateFolder(ctx context.Context, folder *models.Folder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if folder.ID.IsZero() {
		folder.ID = models.NewFolderID()
	}
	if folder.Color == "" {
		folder.Color = models.DefaultFolderColor
	}
	if !folder.Color.Valid() {
		s.mu.Unlock()
		return fmt.Errorf("invalid folder color: %s", folder.Color)
	}
	if folder.CreatedAt.IsZero() {
		folder.CreatedAt = time.Now()
	}
	if folder.UpdatedAt.IsZero() {
		folder.UpdatedAt = folder.CreatedAt
	}
	if _, exists := s.folders[folder.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("folder %s already exists", folder.ID)
	}
	s.folders[folder.ID] = copyFolder(folder)
	s.mu.Unlock()

	s.notify(folder.UserID, store.Change{
		Collection: store.CollectionFolders,
		Action:     store.ActionCreated,
		RecordID:   folder.ID.String(),
	})
	return nil
}

func (s *Store) GetFolder(ctx context.Context, id models.FolderID) (*models.Folder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.folders[id]
	if !ok {
		return nil, nil
	}
	return copyFolder(f), nil
}

func (s *Store) UpdateFolder(ctx context.Context, folder *models.Folder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if _, ok := s.folders[folder.ID]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("folder %s not found", folder.ID)
	}
	if !folder.Color.Valid() {
		s.mu.Unlock()
		return fmt.Errorf("invalid folder color: %s", folder.Color)
	}
	folder.UpdatedAt = time.Now()
	s.folders[folder.ID] = copyFolder(folder)
	s.mu.Unlock()

	s.notify(folder.UserID, store.Change{
		Collection: store.CollectionFolders,
		Action:     store.ActionUpdated,
		RecordID:   folder.ID.String(),
	})
	return nil
}

func (s *Store) DeleteFolder(ctx context.Context, id models.FolderID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	f, ok := s.folders[id]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	userID := f.UserID
	delete(s.folders, id)
	var cleared []models.NoteID
	for nid, n := range s.notes {
		if n.FolderID != nil && *n.FolderID == id {
			n.FolderID = nil
			cleared = append(cleared, nid)
		}
	}
	s.mu.Unlock()

	for _, nid := range cleared {
		s.notify(userID, store.Change{
			Collection: store.CollectionNotes,
			Action:     store.ActionUpdated,
			RecordID:   nid.String(),
		})
	}
	s.notify(userID, store.Change{
		Collection: store.CollectionFolders,
		Action:     store.ActionDeleted,
		RecordID:   id.String(),
	})
	return nil
}

func (s *Store) ListFolders(ctx context.Context, userID models.UserID) ([]*models.Folder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	folders := []*models.Folder{}
	for _, f := range s.folders {
		if f.UserID == userID {
			folders = append(folders, copyFolder(f))
		}
	}
	sort.Slice(folders, func(i, j int) bool {
		if folders[i].CreatedAt.Equal(folders[j].CreatedAt) {
			return folders[i].ID.String() < folders[j].ID.String()
		}
		return folders[i].CreatedAt.Before(folders[j].CreatedAt)
	})
	return folders, nil
}

// Note operations

func (s *Store) CreateNote(ctx context.Context, note *models.Note) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if note.ID.IsZero() {
		note.ID = models.NewNoteID()
	}
	now := time.Now()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	if note.UpdatedAt.IsZero() {
		note.UpdatedAt = now
	}
	if _, exists := s.notes[note.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("note %s already exists", note.ID)
	}
	if note.FolderID != nil {
		if _, ok := s.folders[*note.FolderID]; !ok {
			s.mu.Unlock()
			return fmt.Errorf("folder %s not found", *note.FolderID)
		}
	}
	s.notes[note.ID] = copyNote(note)
	s.mu.Unlock()

	s.notify(note.UserID, store.Change{
		Collection: store.CollectionNotes,
		Action:     store.ActionCreated,
		RecordID:   note.ID.String(),
	})
	return nil
}

func (s *Store) GetNote(ctx context.Context, id models.NoteID) (*models.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[id]
	if !ok {
		return nil, nil
	}
	return copyNote(n), nil
}

func (s *Store) UpdateNote(ctx context.Context, note *models.Note) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if _, ok := s.notes[note.ID]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("note %s not found", note.ID)
	}
	note.UpdatedAt = time.Now()
	s.notes[note.ID] = copyNote(note)
	s.mu.Unlock()

	s.notify(note.UserID, store.Change{
		Collection: store.CollectionNotes,
		Action:     store.ActionUpdated,
		RecordID:   note.ID.String(),
	})
	return nil
}

func (s *Store) DeleteNote(ctx context.Context, id models.NoteID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	n, ok := s.notes[id]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	userID := n.UserID
	delete(s.notes, id)
	s.mu.Unlock()

	s.notify(userID, store.Change{
		Collection: store.CollectionNotes,
		Action:     store.ActionDeleted,
		RecordID:   id.String(),
	})
	return nil
}

func (s *Store) ListNotes(ctx context.Context, userID models.UserID) ([]*models.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	notes := []*models.Note{}
	for _, n := range s.notes {
		if n.UserID == userID {
			notes = append(notes, copyNote(n))
		}
	}
	sort.Slice(notes, func(i, j int) bool {
		if notes[i].UpdatedAt.Equal(notes[j].UpdatedAt) {
			return notes[i].ID.String() < notes[j].ID.String()
		}
		return notes[i].UpdatedAt.After(notes[j].UpdatedAt)
	})
	return notes, nil
}

// User operations

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID.IsZero() {
		user.ID = models.NewUserID()
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}
	for _, u := range s.users {
		if u.Email == user.Email {
			return fmt.Errorf("user with email %s already exists", user.Email)
		}
	}
	s.users[user.ID] = copyUser(user)
	return nil
}

func (s *Store) GetUser(ctx context.Context, id models.UserID) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return copyUser(u), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return fmt.Errorf("user %s not found", user.ID)
	}
	user.UpdatedAt = time.Now()
	s.users[user.ID] = copyUser(user)
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id models.UserID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

// Watch registers a change feed subscriber for userID. The channel is
// closed when ctx is canceled.
func (s *Store) Watch(ctx context.Context, userID models.UserID) (<-chan store.Change, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := &subscriber{userID: userID, ch: make(chan store.Change, 64)}
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = sub
	s.subMu.Unlock()

	out := make(chan store.Change)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				s.subMu.Lock()
				delete(s.subs, id)
				s.subMu.Unlock()
				return
			case c := <-sub.ch:
				select {
				case out <- c:
				case <-ctx.Done():
					s.subMu.Lock()
					delete(s.subs, id)
					s.subMu.Unlock()
					return
				}
			}
		}
	}()
	return out, nil
}

// Migrate is a no-op; the in-memory store has no schema.
func (s *Store) Migrate(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }
