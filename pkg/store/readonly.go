package store

import (
	"context"
	"fmt"

	"github.com/notefold/notefold/pkg/models"
)

// ErrReadOnly is returned by every write method of a ReadOnlyStore whose
// predicate reports read-only mode.
var ErrReadOnly = fmt.Errorf("store is in read-only mode")

// ReadOnlyStore wraps a Store and rejects writes while the isReadOnly
// predicate returns true. Reads and Watch always pass through. The
// predicate is consulted per call, so the mode can be flipped at runtime.
type ReadOnlyStore struct {
	Store
	isReadOnly func() bool
}

// NewReadOnlyStore wraps store. A nil predicate means permanently
// read-only.
func NewReadOnlyStore(store Store, isReadOnly func() bool) *ReadOnlyStore {
	if isReadOnly == nil {
		isReadOnly = func() bool { return true }
	}
	return &ReadOnlyStore{Store: store, isReadOnly: isReadOnly}
}

func (s *ReadOnlyStore) checkReadOnly() error {
	if s.isReadOnly() {
		return ErrReadOnly
	}
	return nil
}

func (s *ReadOnlyStore) CreateFolder(ctx context.Context, folder *models.Folder) error {
	if err := s.checkReadOnly(); err != nil {
		return err
	}
	return s.Store.CreateFolder(ctx, folder)
}

func (s *ReadOnlyStore) UpdateFolder(ctx context.Context, folder *models.Folder) error {
	if err := s.checkReadOnly(); err != nil {
		return err
	}
	return s.Store.UpdateFolder(ctx, folder)
}

func (s *ReadOnlyStore) DeleteFolder(ctx context.Context, id models.FolderID) error {
	if err := s.checkReadOnly(); err != nil {
		return err
	}
	return s.Store.DeleteFolder(ctx, id)
}

func (s *ReadOnlyStore) CreateNote(ctx context.Context, note *models.Note) error {
	if err := s.checkReadOnly(); err != nil {
		return err
	}
	return s.Store.CreateNote(ctx, note)
}

func (s *ReadOnlyStore) UpdateNote(ctx context.Context, note *models.Note) error {
	if err := s.checkReadOnly(); err != nil {
		return err
	}
	return s.Store.UpdateNote(ctx, note)
}

func (s *ReadOnlyStore) DeleteNote(ctx context.Context, id models.NoteID) error {
	if err := s.checkReadOnly(); err != nil {
		return err
	}
	return s.Store.DeleteNote(ctx, id)
}

func (s *ReadOnlyStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.checkReadOnly(); err != nil {
		return err
	}
	return s.Store.CreateUser(ctx, user)
}

func (s *ReadOnlyStore) UpdateUser(ctx context.Context, user *models.User) error {
	if err := s.checkReadOnly(); err != nil {
		return err
	}
	return s.Store.UpdateUser(ctx, user)
}

func (s *ReadOnlyStore) DeleteUser(ctx context.Context, id models.UserID) error {
	if err := s.checkReadOnly(); err != nil {
		return err
	}
	return s.Store.DeleteUser(ctx, id)
}
