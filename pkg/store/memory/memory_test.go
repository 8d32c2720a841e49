package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notefold/notefold/pkg/models"
	"github.com/notefold/notefold/pkg/store"
	"github.com/notefold/notefold/pkg/store/memory"
)

func TestFolderCRUD(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	userID := models.NewUserID()

	t.Run("GetMissingReturnsNilNil", func(t *testing.T) {
		folder, err := s.GetFolder(ctx, models.NewFolderID())
		require.NoError(t, err)
		assert.Nil(t, folder)
	})

	t.Run("CreateAssignsDefaults", func(t *testing.T) {
		folder := &models.Folder{Name: "Inbox", UserID: userID}
		require.NoError(t, s.CreateFolder(ctx, folder))
		assert.False(t, folder.ID.IsZero(), "An identifier is assigned")
		assert.Equal(t, models.DefaultFolderColor, folder.Color)
		assert.False(t, folder.CreatedAt.IsZero())

		got, err := s.GetFolder(ctx, folder.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Inbox", got.Name)
	})

	t.Run("InvalidColorRejected", func(t *testing.T) {
		err := s.CreateFolder(ctx, &models.Folder{Name: "Bad", Color: "mauve", UserID: userID})
		assert.Error(t, err)
	})

	t.Run("Update", func(t *testing.T) {
		folder := &models.Folder{Name: "Before", Color: models.ColorBlue, UserID: userID}
		require.NoError(t, s.CreateFolder(ctx, folder))
		folder.Name = "After"
		require.NoError(t, s.UpdateFolder(ctx, folder))

		got, err := s.GetFolder(ctx, folder.ID)
		require.NoError(t, err)
		assert.Equal(t, "After", got.Name)
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		err := s.UpdateFolder(ctx, &models.Folder{ID: models.NewFolderID(), Name: "Ghost", Color: models.ColorRed})
		assert.Error(t, err)
	})
}

func TestListFoldersOrdering(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	userID := models.NewUserID()
	otherID := models.NewUserID()

	base := time.Now().Add(-time.Hour)
	third := &models.Folder{Name: "Third", UserID: userID, CreatedAt: base.Add(2 * time.Minute)}
	first := &models.Folder{Name: "First", UserID: userID, CreatedAt: base}
	second := &models.Folder{Name: "Second", UserID: userID, CreatedAt: base.Add(time.Minute)}
	foreign := &models.Folder{Name: "Foreign", UserID: otherID, CreatedAt: base}
	for _, f := range []*models.Folder{third, first, second, foreign} {
		require.NoError(t, s.CreateFolder(ctx, f))
	}

	folders, err := s.ListFolders(ctx, userID)
	require.NoError(t, err)
	require.Len(t, folders, 3, "Only the requesting user's folders are listed")
	assert.Equal(t, "First", folders[0].Name, "Oldest first")
	assert.Equal(t, "Second", folders[1].Name)
	assert.Equal(t, "Third", folders[2].Name)

	empty, err := s.ListFolders(ctx, models.NewUserID())
	require.NoError(t, err)
	assert.NotNil(t, empty, "List returns an empty slice, never nil")
	assert.Empty(t, empty)
}

func TestNoteCRUD(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	userID := models.NewUserID()

	t.Run("GetMissingReturnsNilNil", func(t *testing.T) {
		note, err := s.GetNote(ctx, models.NewNoteID())
		require.NoError(t, err)
		assert.Nil(t, note)
	})

	t.Run("CreateRequiresExistingFolder", func(t *testing.T) {
		missing := models.NewFolderID()
		err := s.CreateNote(ctx, &models.Note{Title: "Orphan", UserID: userID, FolderID: &missing})
		assert.Error(t, err)
	})

	t.Run("UpdateBumpsUpdatedAt", func(t *testing.T) {
		note := &models.Note{Title: "Doc", UserID: userID, UpdatedAt: time.Now().Add(-time.Hour)}
		require.NoError(t, s.CreateNote(ctx, note))
		before := note.UpdatedAt

		note.Content = `{"blocks":[]}`
		require.NoError(t, s.UpdateNote(ctx, note))
		assert.True(t, note.UpdatedAt.After(before), "Update refreshes the timestamp")
	})

	t.Run("DeleteMissingIsIdempotent", func(t *testing.T) {
		assert.NoError(t, s.DeleteNote(ctx, models.NewNoteID()))
	})
}

func TestListNotesOrdering(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	userID := models.NewUserID()

	base := time.Now().Add(-time.Hour)
	stale := &models.Note{Title: "Stale", UserID: userID, CreatedAt: base, UpdatedAt: base}
	fresh := &models.Note{Title: "Fresh", UserID: userID, CreatedAt: base, UpdatedAt: base.Add(time.Minute)}
	require.NoError(t, s.CreateNote(ctx, stale))
	require.NoError(t, s.CreateNote(ctx, fresh))

	notes, err := s.ListNotes(ctx, userID)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "Fresh", notes[0].Title, "Most recently updated first")
	assert.Equal(t, "Stale", notes[1].Title)
}

func TestDeleteFolderDetachesNotes(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	userID := models.NewUserID()

	folder := &models.Folder{Name: "Doomed", UserID: userID}
	require.NoError(t, s.CreateFolder(ctx, folder))
	folderID := folder.ID
	filed := &models.Note{Title: "Filed", UserID: userID, FolderID: &folderID}
	loose := &models.Note{Title: "Loose", UserID: userID}
	require.NoError(t, s.CreateNote(ctx, filed))
	require.NoError(t, s.CreateNote(ctx, loose))

	require.NoError(t, s.DeleteFolder(ctx, folder.ID))

	gone, err := s.GetFolder(ctx, folder.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	survivor, err := s.GetNote(ctx, filed.ID)
	require.NoError(t, err)
	require.NotNil(t, survivor, "Notes survive their folder")
	assert.Nil(t, survivor.FolderID, "The surviving note is unfiled")

	assert.NoError(t, s.DeleteFolder(ctx, folder.ID), "Deleting an absent folder is idempotent")
}

func TestUserOperations(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()

	user := &models.User{Email: "a@example.com", Name: "A"}
	require.NoError(t, s.CreateUser(ctx, user))

	t.Run("DuplicateEmailRejected", func(t *testing.T) {
		err := s.CreateUser(ctx, &models.User{Email: "a@example.com", Name: "Dup"})
		assert.Error(t, err)
	})

	t.Run("GetByEmail", func(t *testing.T) {
		got, err := s.GetUserByEmail(ctx, "a@example.com")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, user.ID, got.ID)

		missing, err := s.GetUserByEmail(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, s.DeleteUser(ctx, user.ID))
		got, err := s.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := memory.NewStore()
	userID := models.NewUserID()
	otherID := models.NewUserID()

	changes, err := s.Watch(ctx, userID)
	require.NoError(t, err)

	recv := func(t *testing.T) store.Change {
		t.Helper()
		select {
		case c := <-changes:
			return c
		case <-time.After(2 * time.Second):
			t.Fatal("Timed out waiting for change event")
			return store.Change{}
		}
	}

	folder := &models.Folder{Name: "Watched", UserID: userID}
	require.NoError(t, s.CreateFolder(ctx, folder))
	c := recv(t)
	assert.Equal(t, store.CollectionFolders, c.Collection)
	assert.Equal(t, store.ActionCreated, c.Action)
	assert.Equal(t, folder.ID.String(), c.RecordID)

	// A rename rides the feed too, and bumps UpdatedAt so polling
	// backends can spot it.
	folder.Name = "Renamed"
	require.NoError(t, s.UpdateFolder(ctx, folder))
	c = recv(t)
	assert.Equal(t, store.CollectionFolders, c.Collection)
	assert.Equal(t, store.ActionUpdated, c.Action)
	assert.Equal(t, folder.ID.String(), c.RecordID)
	renamed, err := s.GetFolder(ctx, folder.ID)
	require.NoError(t, err)
	require.NotNil(t, renamed)
	assert.Equal(t, "Renamed", renamed.Name)
	assert.True(t, renamed.UpdatedAt.After(renamed.CreatedAt), "Rename must move UpdatedAt past creation")

	// Another user's writes are invisible.
	require.NoError(t, s.CreateFolder(ctx, &models.Folder{Name: "Foreign", UserID: otherID}))

	folderID := folder.ID
	note := &models.Note{Title: "Filed", UserID: userID, FolderID: &folderID}
	require.NoError(t, s.CreateNote(ctx, note))
	c = recv(t)
	assert.Equal(t, store.CollectionNotes, c.Collection)
	assert.Equal(t, store.ActionCreated, c.Action)

	// Cascade emits a note update before the folder delete.
	require.NoError(t, s.DeleteFolder(ctx, folder.ID))
	c = recv(t)
	assert.Equal(t, store.CollectionNotes, c.Collection)
	assert.Equal(t, store.ActionUpdated, c.Action)
	assert.Equal(t, note.ID.String(), c.RecordID)
	c = recv(t)
	assert.Equal(t, store.CollectionFolders, c.Collection)
	assert.Equal(t, store.ActionDeleted, c.Action)

	cancel()
	select {
	case _, ok := <-changes:
		assert.False(t, ok, "Channel closes on cancellation")
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for channel close")
	}
}

func TestContextCancellation(t *testing.T) {
	s := memory.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, s.CreateFolder(ctx, &models.Folder{Name: "X"}))
	_, err := s.ListNotes(ctx, models.NewUserID())
	assert.Error(t, err)
	_, err = s.Watch(ctx, models.NewUserID())
	assert.Error(t, err)
}
