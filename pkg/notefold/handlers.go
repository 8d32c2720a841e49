package notefold

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/notefold/notefold/pkg/auth"
	"github.com/notefold/notefold/pkg/models"
	"github.com/notefold/notefold/pkg/store"
)

// requireUser resolves the bearer token to a user. It writes a 401
// response and returns nil when the token is missing or unknown.
func (a *App) requireUser(w http.ResponseWriter, r *http.Request) *models.User {
	token := auth.TokenFromHeader(r)
	if token == "" {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return nil
	}
	user, ok := a.auth.GetSession(token)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return nil
	}
	return user
}

// Folder handlers

func (a *App) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	user := a.requireUser(w, r)
	if user == nil {
		return
	}

	var folder models.Folder
	if err := json.NewDecoder(r.Body).Decode(&folder); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if _, err := models.ValidateTitle(folder.Name); err != nil {
		respondError(w, http.StatusBadRequest, "Folder name must not be blank")
		return
	}
	folder.UserID = user.ID

	ctx := r.Context()
	if err := a.store.CreateFolder(ctx, &folder); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	a.hub.Broadcast(user.ID, ChangeMessage{
		Collection: store.CollectionFolders,
		Action:     store.ActionCreated,
		RecordID:   folder.ID.String(),
	})
	respondJSON(w, http.StatusCreated, folder)
}

func (a *App) handleGetFolder(w http.ResponseWriter, r *http.Request) {
	user := a.requireUser(w, r)
	if user == nil {
		return
	}

	id, err := models.ParseFolderID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid folder ID")
		return
	}

	ctx := r.Context()
	folder, err := a.store.GetFolder(ctx, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if folder == nil || folder.UserID != user.ID {
		respondError(w, http.StatusNotFound, "Folder not found")
		return
	}

	respondJSON(w, http.StatusOK, folder)
}

func (a *App) handleUpdateFolder(w http.ResponseWriter, r *http.Request) {
	user := a.requireUser(w, r)
	if user == nil {
		return
	}

	id, err := models.ParseFolderID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid folder ID")
		return
	}

	var folder models.Folder
	if err := json.NewDecoder(r.Body).Decode(&folder); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if _, err := models.ValidateTitle(folder.Name); err != nil {
		respondError(w, http.StatusBadRequest, "Folder name must not be blank")
		return
	}

	ctx := r.Context()
	existing, err := a.store.GetFolder(ctx, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if existing == nil || existing.UserID != user.ID {
		respondError(w, http.StatusNotFound, "Folder not found")
		return
	}

	folder.ID = id
	folder.UserID = user.ID
	folder.CreatedAt = existing.CreatedAt
	if folder.Color == "" {
		folder.Color = existing.Color
	}
	if err := a.store.UpdateFolder(ctx, &folder); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	a.hub.Broadcast(user.ID, ChangeMessage{
		Collection: store.CollectionFolders,
		Action:     store.ActionUpdated,
		RecordID:   id.String(),
	})
	respondJSON(w, http.StatusOK, folder)
}

func (a *App) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	user := a.requireUser(w, r)
	if user == nil {
		return
	}

	id, err := models.ParseFolderID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid folder ID")
		return
	}

	ctx := r.Context()
	existing, err := a.store.GetFolder(ctx, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if existing == nil || existing.UserID != user.ID {
		respondError(w, http.StatusNotFound, "Folder not found")
		return
	}

	if err := a.store.DeleteFolder(ctx, id); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Detaching notes counts as a note change too.
	a.hub.Broadcast(user.ID, ChangeMessage{
		Collection: store.CollectionFolders,
		Action:     store.ActionDeleted,
		RecordID:   id.String(),
	})
	a.hub.Broadcast(user.ID, ChangeMessage{
		Collection: store.CollectionNotes,
		Action:     store.ActionUpdated,
	})
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (a *App) handleListFolders(w http.ResponseWriter, r *http.Request) {
	user := a.requireUser(w, r)
	if user == nil {
		return
	}

	ctx := r.Context()
	folders, err := a.store.ListFolders(ctx, user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, folders)
}

// Note handlers

func (a *App) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	user := a.requireUser(w, r)
	if user == nil {
		return
	}

	var note models.Note
	if err := json.NewDecoder(r.Body).Decode(&note); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	title, err := models.ValidateTitle(note.Title)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Note title must not be blank")
		return
	}
	note.Title = title
	note.UserID = user.ID

	ctx := r.Context()
	if note.FolderID != nil {
		folder, err := a.store.GetFolder(ctx, *note.FolderID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if folder == nil || folder.UserID != user.ID {
			respondError(w, http.StatusBadRequest, "Folder not found")
			return
		}
	}

	if err := a.store.CreateNote(ctx, &note); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	a.hub.Broadcast(user.ID, ChangeMessage{
		Collection: store.CollectionNotes,
		Action:     store.ActionCreated,
		RecordID:   note.ID.String(),
	})
	respondJSON(w, http.StatusCreated, note)
}

func (a *App) handleGetNote(w http.ResponseWriter, r *http.Request) {
	user := a.requireUser(w, r)
	if user == nil {
		return
	}

	id, err := models.ParseNoteID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid note ID")
		return
	}

	ctx := r.Context()
	note, err := a.store.GetNote(ctx, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if note == nil || note.UserID != user.ID {
		respondError(w, http.StatusNotFound, "Note not found")
		return
	}

	respondJSON(w, http.StatusOK, note)
}

func (a *App) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	user := a.requireUser(w, r)
	if user == nil {
		return
	}

	id, err := models.ParseNoteID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid note ID")
		return
	}

	var note models.Note
	if err := json.NewDecoder(r.Body).Decode(&note); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	title, err := models.ValidateTitle(note.Title)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Note title must not be blank")
		return
	}

	ctx := r.Context()
	existing, err := a.store.GetNote(ctx, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if existing == nil || existing.UserID != user.ID {
		respondError(w, http.StatusNotFound, "Note not found")
		return
	}

	note.ID = id
	note.Title = title
	note.UserID = user.ID
	note.CreatedAt = existing.CreatedAt
	if err := a.store.UpdateNote(ctx, &note); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	a.hub.Broadcast(user.ID, ChangeMessage{
		Collection: store.CollectionNotes,
		Action:     store.ActionUpdated,
		RecordID:   id.String(),
	})
	respondJSON(w, http.StatusOK, note)
}

// handleMoveNote reassigns a note's folder reference. A null folder_id
// files the note as unfiled.
func (a *App) handleMoveNote(w http.ResponseWriter, r *http.Request) {
	user := a.requireUser(w, r)
	if user == nil {
		return
	}

	id, err := models.ParseNoteID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid note ID")
		return
	}

	var req struct {
		FolderID *models.FolderID `json:"folder_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	ctx := r.Context()
	note, err := a.store.GetNote(ctx, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if note == nil || note.UserID != user.ID {
		respondError(w, http.StatusNotFound, "Note not found")
		return
	}
	if req.FolderID != nil {
		folder, err := a.store.GetFolder(ctx, *req.FolderID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if folder == nil || folder.UserID != user.ID {
			respondError(w, http.StatusBadRequest, "Folder not found")
			return
		}
	}

	note.FolderID = req.FolderID
	if err := a.store.UpdateNote(ctx, note); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	a.hub.Broadcast(user.ID, ChangeMessage{
		Collection: store.CollectionNotes,
		Action:     store.ActionUpdated,
		RecordID:   id.String(),
	})
	respondJSON(w, http.StatusOK, note)
}

func (a *App) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	user := a.requireUser(w, r)
	if user == nil {
		return
	}

	id, err := models.ParseNoteID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid note ID")
		return
	}

	ctx := r.Context()
	note, err := a.store.GetNote(ctx, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if note == nil || note.UserID != user.ID {
		respondError(w, http.StatusNotFound, "Note not found")
		return
	}

	note.IsFavorite = !note.IsFavorite
	if err := a.store.UpdateNote(ctx, note); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	a.hub.Broadcast(user.ID, ChangeMessage{
		Collection: store.CollectionNotes,
		Action:     store.ActionUpdated,
		RecordID:   id.String(),
	})
	respondJSON(w, http.StatusOK, note)
}

func (a *App) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	user := a.requireUser(w, r)
	if user == nil {
		return
	}

	id, err := models.ParseNoteID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid note ID")
		return
	}

	ctx := r.Context()
	existing, err := a.store.GetNote(ctx, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if existing == nil || existing.UserID != user.ID {
		respondError(w, http.StatusNotFound, "Note not found")
		return
	}

	if err := a.store.DeleteNote(ctx, id); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	a.hub.Broadcast(user.ID, ChangeMessage{
		Collection: store.CollectionNotes,
		Action:     store.ActionDeleted,
		RecordID:   id.String(),
	})
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleListNotes returns the user's notes, most recently updated first.
// An optional folder_id query parameter filters to one folder without
// affecting the stored collection.
func (a *App) handleListNotes(w http.ResponseWriter, r *http.Request) {
	user := a.requireUser(w, r)
	if user == nil {
		return
	}

	ctx := r.Context()
	notes, err := a.store.ListNotes(ctx, user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if filterStr := r.URL.Query().Get("folder_id"); filterStr != "" {
		filter, err := models.ParseFolderID(filterStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid folder ID")
			return
		}
		filtered := []*models.Note{}
		for _, n := range notes {
			if n.FolderID != nil && *n.FolderID == filter {
				filtered = append(filtered, n)
			}
		}
		notes = filtered
	}

	respondJSON(w, http.StatusOK, notes)
}

// handleHealth reports server liveness and the active store backend.
func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"store":     string(a.config.Store),
		"read_only": a.IsReadOnly(),
	})
}

// respondJSON writes payload as JSON with the given status.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_, _ = w.Write(response)
	}
}

// respondError writes a standard JSON error body.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
