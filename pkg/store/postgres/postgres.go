// Package postgres implements the store interface using GORM on
// PostgreSQL.
//
// PostgreSQL has no push-based change feed equivalent to a live query,
// so Watch is implemented by polling created_at/updated_at watermarks.
// Consumers treat change events as advisory reload hints, which makes
// the coarser granularity of polling acceptable.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/notefold/notefold/pkg/models"
	"github.com/notefold/notefold/pkg/store"
)

// watchInterval is how often Watch polls for modified records.
const watchInterval = 2 * time.Second

// PostgresStore implements store.Store backed by PostgreSQL via GORM.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore connects to PostgreSQL using the given DSN.
func NewPostgresStore(dsn string) (store.Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Migrate creates or updates the tables for all entities.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.Folder{},
		&models.Note{},
	)
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Folder operations

func (s *PostgresStore) CreateFolder(ctx context.Context, folder *models.Folder) error {
	if err := s.db.WithContext(ctx).Create(folder).Error; err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetFolder(ctx context.Context, id models.FolderID) (*models.Folder, error) {
	var folder models.Folder
	err := s.db.WithContext(ctx).First(&folder, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}
	return &folder, nil
}

func (s *PostgresStore) UpdateFolder(ctx context.Context, folder *models.Folder) error {
	if !folder.Color.Valid() {
		return fmt.Errorf("invalid folder color: %s", folder.Color)
	}
	folder.UpdatedAt = time.Now()
	if err := s.db.WithContext(ctx).Save(folder).Error; err != nil {
		return fmt.Errorf("failed to update folder: %w", err)
	}
	return nil
}

// DeleteFolder clears the folder reference on the folder's notes and
// deletes the folder in one transaction.
func (s *PostgresStore) DeleteFolder(ctx context.Context, id models.FolderID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		if err := tx.Model(&models.Note{}).
			Where("folder_id = ?", id).
			Updates(map[string]any{"folder_id": nil, "updated_at": now}).Error; err != nil {
			return fmt.Errorf("failed to detach notes: %w", err)
		}
		if err := tx.Delete(&models.Folder{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete folder: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) ListFolders(ctx context.Context, userID models.UserID) ([]*models.Folder, error) {
	folders := []*models.Folder{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&folders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	return folders, nil
}

// Note operations

func (s *PostgresStore) CreateNote(ctx context.Context, note *models.Note) error {
	if err := s.db.WithContext(ctx).Create(note).Error; err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetNote(ctx context.Context, id models.NoteID) (*models.Note, error) {
	var note models.Note
	err := s.db.WithContext(ctx).First(&note, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return &note, nil
}

func (s *PostgresStore) UpdateNote(ctx context.Context, note *models.Note) error {
	note.UpdatedAt = time.Now()
	if err := s.db.WithContext(ctx).Save(note).Error; err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteNote(ctx context.Context, id models.NoteID) error {
	if err := s.db.WithContext(ctx).Delete(&models.Note{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNotes(ctx context.Context, userID models.UserID) ([]*models.Note, error) {
	notes := []*models.Note{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&notes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return notes, nil
}

// User operations

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id models.UserID) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

func (s *PostgresStore) UpdateUser(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, id models.UserID) error {
	if err := s.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// Watch polls for folders and notes modified since the previous tick and
// emits an updated event per modified record. Deletions are detected by
// record count going down, reported as a single deleted event with an
// empty RecordID; consumers reload the full collection either way.
func (s *PostgresStore) Watch(ctx context.Context, userID models.UserID) (<-chan store.Change, error) {
	out := make(chan store.Change)
	go func() {
		defer close(out)

		lastSeen := time.Now()
		var lastFolderCount, lastNoteCount int64
		_ = s.db.WithContext(ctx).Model(&models.Folder{}).Where("user_id = ?", userID).Count(&lastFolderCount).Error
		_ = s.db.WithContext(ctx).Model(&models.Note{}).Where("user_id = ?", userID).Count(&lastNoteCount).Error

		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			now := time.Now()

			var folders []*models.Folder
			if err := s.db.WithContext(ctx).
				Where("user_id = ? AND updated_at >= ?", userID, lastSeen).
				Find(&folders).Error; err == nil {
				for _, f := range folders {
					if !emit(ctx, out, store.Change{
						Collection: store.CollectionFolders,
						Action:     store.ActionUpdated,
						RecordID:   f.ID.String(),
					}) {
						return
					}
				}
			}

			var notes []*models.Note
			if err := s.db.WithContext(ctx).
				Where("user_id = ? AND updated_at >= ?", userID, lastSeen).
				Find(&notes).Error; err == nil {
				for _, n := range notes {
					if !emit(ctx, out, store.Change{
						Collection: store.CollectionNotes,
						Action:     store.ActionUpdated,
						RecordID:   n.ID.String(),
					}) {
						return
					}
				}
			}

			var folderCount, noteCount int64
			if err := s.db.WithContext(ctx).Model(&models.Folder{}).
				Where("user_id = ?", userID).Count(&folderCount).Error; err == nil {
				if folderCount < lastFolderCount {
					if !emit(ctx, out, store.Change{
						Collection: store.CollectionFolders,
						Action:     store.ActionDeleted,
					}) {
						return
					}
				}
				lastFolderCount = folderCount
			}
			if err := s.db.WithContext(ctx).Model(&models.Note{}).
				Where("user_id = ?", userID).Count(&noteCount).Error; err == nil {
				if noteCount < lastNoteCount {
					if !emit(ctx, out, store.Change{
						Collection: store.CollectionNotes,
						Action:     store.ActionDeleted,
					}) {
						return
					}
				}
				lastNoteCount = noteCount
			}

			lastSeen = now
		}
	}()
	return out, nil
}

func emit(ctx context.Context, out chan<- store.Change, c store.Change) bool {
	select {
	case out <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
