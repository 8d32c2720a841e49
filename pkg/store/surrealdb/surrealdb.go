// Package surrealdb implements the store interface on SurrealDB using
// native SurrealQL over WebSocket.
//
// The connection is configured with the surrealcbor codec so that
// time.Time and typed record IDs round-trip in the binary format
// SurrealDB uses internally. Typed IDs marshal to RecordIDs through
// their MarshalCBOR implementations, which keeps every query
// parameterized: structs and IDs are passed as $params, never
// interpolated into query strings.
//
// The change feed is built on SurrealDB live queries. One LIVE SELECT is
// opened per table and the notifications are filtered by owner before
// they are forwarded, so a watcher only sees its own records.
package surrealdb

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealdb_models "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/notefold/notefold/pkg/models"
	"github.com/notefold/notefold/pkg/store"
)

// SurrealStore implements store.Store against a SurrealDB instance.
type SurrealStore struct {
	db       *surrealdb.DB
	ns       string
	database string
}

// NewSurrealStore connects to SurrealDB at wsURL and selects the given
// namespace and database. Credentials are optional; when empty the
// connection is used unauthenticated.
func NewSurrealStore(wsURL, namespace, database, username, password string) (store.Store, error) {
	ctx := context.Background()

	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	conf := connection.NewConfig(u)

	// The surrealcbor codec is required for correct time.Time and
	// RecordID handling over the wire.
	codec := surrealcbor.New()
	conf.Marshaler = codec
	conf.Unmarshaler = codec

	conn := gorillaws.New(conf)

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if username != "" && password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": username,
			"pass": password,
		}); err != nil {
			return nil, fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := db.Use(ctx, namespace, database); err != nil {
		return nil, fmt.Errorf("failed to use namespace/database: %w", err)
	}

	return &SurrealStore{
		db:       db,
		ns:       namespace,
		database: database,
	}, nil
}

// Migrate is a no-op: SurrealDB creates tables implicitly on first
// insert, and this store relies on that schemaless behavior.
func (s *SurrealStore) Migrate(ctx context.Context) error {
	return nil
}

// Close closes the database connection.
func (s *SurrealStore) Close() error {
	return s.db.Close(context.Background())
}

// handleNotFound maps the SDK's empty-result errors to nil so that Get
// methods can return (nil, nil) for missing records.
func handleNotFound(err error) error {
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "Expected a single or multiple results but got 0") ||
			strings.Contains(errStr, "cannot unmarshal array into Go value") {
			return nil
		}
	}
	return err
}

// Folder operations

func (s *SurrealStore) CreateFolder(ctx context.Context, folder *models.Folder) error {
	if folder.ID.IsZero() {
		folder.ID = models.NewFolderID()
	}
	if folder.Color == "" {
		folder.Color = models.DefaultFolderColor
	}
	if !folder.Color.Valid() {
		return fmt.Errorf("invalid folder color: %s", folder.Color)
	}
	if folder.CreatedAt.IsZero() {
		folder.CreatedAt = time.Now()
	}
	if folder.UpdatedAt.IsZero() {
		folder.UpdatedAt = folder.CreatedAt
	}

	_, err := surrealdb.Create[models.Folder](ctx, s.db, "folders", folder)
	if err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}
	return nil
}

func (s *SurrealStore) GetFolder(ctx context.Context, id models.FolderID) (*models.Folder, error) {
	rid := id.RecordID()
	folder, err := surrealdb.Select[models.Folder](ctx, s.db, rid)
	if err != nil {
		if handleNotFound(err) == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}
	return folder, nil
}

func (s *SurrealStore) UpdateFolder(ctx context.Context, folder *models.Folder) error {
	if !folder.Color.Valid() {
		return fmt.Errorf("invalid folder color: %s", folder.Color)
	}
	rid := folder.ID.RecordID()
	folder.UpdatedAt = time.Now()

	_, err := surrealdb.Update[models.Folder](ctx, s.db, rid, folder)
	if err != nil {
		return fmt.Errorf("failed to update folder: %w", err)
	}
	return nil
}

// DeleteFolder clears the folder reference on every note in the folder
// before removing the folder record. Both statements run in one Query
// call so SurrealDB executes them in a single transaction scope.
func (s *SurrealStore) DeleteFolder(ctx context.Context, id models.FolderID) error {
	query := `UPDATE notes SET folder_id = NONE WHERE folder_id = $folder;
DELETE $folder;`
	params := map[string]any{
		"folder": id.RecordID(),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, query, params); err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	return nil
}

func (s *SurrealStore) ListFolders(ctx context.Context, userID models.UserID) ([]*models.Folder, error) {
	query := "SELECT * FROM folders WHERE user_id = $user_id ORDER BY created_at ASC"
	params := map[string]any{
		"user_id": userID,
	}
	result, err := surrealdb.Query[[]models.Folder](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	folders := []*models.Folder{}
	if result != nil && len(*result) > 0 {
		for i := range (*result)[0].Result {
			folders = append(folders, &(*result)[0].Result[i])
		}
	}
	return folders, nil
}

// Note operations

func (s *SurrealStore) CreateNote(ctx context.Context, note *models.Note) error {
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

	_, err := surrealdb.Create[models.Note](ctx, s.db, "notes", note)
	if err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}
	return nil
}

func (s *SurrealStore) GetNote(ctx context.Context, id models.NoteID) (*models.Note, error) {
	rid := id.RecordID()
	note, err := surrealdb.Select[models.Note](ctx, s.db, rid)
	if err != nil {
		if handleNotFound(err) == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return note, nil
}

func (s *SurrealStore) UpdateNote(ctx context.Context, note *models.Note) error {
	rid := note.ID.RecordID()
	note.UpdatedAt = time.Now()

	_, err := surrealdb.Update[models.Note](ctx, s.db, rid, note)
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}
	return nil
}

func (s *SurrealStore) DeleteNote(ctx context.Context, id models.NoteID) error {
	rid := id.RecordID()
	_, err := surrealdb.Delete[models.Note](ctx, s.db, rid)
	return err
}

func (s *SurrealStore) ListNotes(ctx context.Context, userID models.UserID) ([]*models.Note, error) {
	query := "SELECT * FROM notes WHERE user_id = $user_id ORDER BY updated_at DESC"
	params := map[string]any{
		"user_id": userID,
	}
	result, err := surrealdb.Query[[]models.Note](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}

	notes := []*models.Note{}
	if result != nil && len(*result) > 0 {
		for i := range (*result)[0].Result {
			notes = append(notes, &(*result)[0].Result[i])
		}
	}
	return notes, nil
}

// User operations

func (s *SurrealStore) CreateUser(ctx context.Context, user *models.User) error {
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

	_, err := surrealdb.Create[models.User](ctx, s.db, "users", user)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *SurrealStore) GetUser(ctx context.Context, id models.UserID) (*models.User, error) {
	rid := id.RecordID()
	user, err := surrealdb.Select[models.User](ctx, s.db, rid)
	if err != nil {
		if handleNotFound(err) == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *SurrealStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := "SELECT * FROM users WHERE email = $email"
	params := map[string]any{
		"email": email,
	}
	result, err := surrealdb.Query[[]models.User](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	if result != nil && len(*result) > 0 && len((*result)[0].Result) > 0 {
		return &(*result)[0].Result[0], nil
	}
	return nil, nil
}

func (s *SurrealStore) UpdateUser(ctx context.Context, user *models.User) error {
	rid := user.ID.RecordID()
	user.UpdatedAt = time.Now()

	_, err := surrealdb.Update[models.User](ctx, s.db, rid, user)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (s *SurrealStore) DeleteUser(ctx context.Context, id models.UserID) error {
	rid := id.RecordID()
	_, err := surrealdb.Delete[models.User](ctx, s.db, rid)
	return err
}

// Watch opens live queries on the folders and notes tables and forwards
// the notifications that belong to userID. The live queries are killed
// and the channel closed when ctx is canceled.
func (s *SurrealStore) Watch(ctx context.Context, userID models.UserID) (<-chan store.Change, error) {
	foldersLive, err := surrealdb.Live(ctx, s.db, "folders", false)
	if err != nil {
		return nil, fmt.Errorf("failed to start folders live query: %w", err)
	}
	notesLive, err := surrealdb.Live(ctx, s.db, "notes", false)
	if err != nil {
		_ = surrealdb.Kill(ctx, s.db, foldersLive.String())
		return nil, fmt.Errorf("failed to start notes live query: %w", err)
	}

	folderNotifications, err := s.db.LiveNotifications(foldersLive.String())
	if err != nil {
		_ = surrealdb.Kill(ctx, s.db, foldersLive.String())
		_ = surrealdb.Kill(ctx, s.db, notesLive.String())
		return nil, fmt.Errorf("failed to subscribe to folder notifications: %w", err)
	}
	noteNotifications, err := s.db.LiveNotifications(notesLive.String())
	if err != nil {
		_ = surrealdb.Kill(ctx, s.db, foldersLive.String())
		_ = surrealdb.Kill(ctx, s.db, notesLive.String())
		return nil, fmt.Errorf("failed to subscribe to note notifications: %w", err)
	}

	out := make(chan store.Change)
	go func() {
		defer close(out)
		defer func() {
			killCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = surrealdb.Kill(killCtx, s.db, foldersLive.String())
			_ = surrealdb.Kill(killCtx, s.db, notesLive.String())
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-folderNotifications:
				if !ok {
					return
				}
				s.forward(ctx, out, userID, store.CollectionFolders, n)
			case n, ok := <-noteNotifications:
				if !ok {
					return
				}
				s.forward(ctx, out, userID, store.CollectionNotes, n)
			}
		}
	}()
	return out, nil
}

func (s *SurrealStore) forward(ctx context.Context, out chan<- store.Change, userID models.UserID, coll store.ChangeCollection, n connection.Notification) {
	record, ok := n.Result.(map[string]any)
	if !ok {
		return
	}
	// Only forward changes to the watcher's own records. Delete
	// notifications still carry the record fields in non-diff mode.
	if owner, ok := record["user_id"].(surrealdb_models.RecordID); ok {
		if ownerID, ok := owner.ID.(string); !ok || ownerID != userID.String() {
			return
		}
	}

	var action store.ChangeAction
	switch n.Action {
	case connection.CreateAction:
		action = store.ActionCreated
	case connection.UpdateAction:
		action = store.ActionUpdated
	case connection.DeleteAction:
		action = store.ActionDeleted
	default:
		return
	}

	var recordID string
	if rid, ok := record["id"].(surrealdb_models.RecordID); ok {
		if id, ok := rid.ID.(string); ok {
			recordID = id
		}
	}

	select {
	case out <- store.Change{Collection: coll, Action: action, RecordID: recordID}:
	case <-ctx.Done():
	}
}
