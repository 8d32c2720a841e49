// Package client provides a Go HTTP client for the notefold REST API.
//
// The client mirrors the server's endpoint structure with strongly-typed
// methods, handles JSON serialization, and manages the bearer token after
// a successful sign-in. It is used by the end-to-end tests and by the
// virtual user load driver.
//
// Client instances are safe for concurrent use by multiple goroutines
// once the auth token is set.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/notefold/notefold/pkg/models"
)

// Client provides typed access to the notefold REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	authToken  string
}

// NewClient creates a client for the server at baseURL, which should
// include the protocol and host without a trailing slash. The client has
// a 30-second request timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetAuthToken sets the authentication token for the client
func (c *Client) SetAuthToken(token string) {
	c.authToken = token
}

// doRequest performs an HTTP request with proper headers
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	return c.httpClient.Do(req)
}

// decodeResponse decodes the JSON response into the target struct
func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	if target != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Health checks the health status of the server
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// Folder management

// CreateFolder creates a new folder
func (c *Client) CreateFolder(ctx context.Context, folder *models.Folder) (*models.Folder, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/folders", folder)
	if err != nil {
		return nil, err
	}

	var result models.Folder
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// GetFolder retrieves a folder by ID
func (c *Client) GetFolder(ctx context.Context, id models.FolderID) (*models.Folder, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/folders/%s", id), nil)
	if err != nil {
		return nil, err
	}

	var result models.Folder
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// UpdateFolder updates an existing folder
func (c *Client) UpdateFolder(ctx context.Context, folder *models.Folder) (*models.Folder, error) {
	resp, err := c.doRequest(ctx, http.MethodPut, fmt.Sprintf("/api/folders/%s", folder.ID), folder)
	if err != nil {
		return nil, err
	}

	var result models.Folder
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// DeleteFolder deletes a folder; its notes survive unfiled
func (c *Client) DeleteFolder(ctx context.Context, id models.FolderID) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/api/folders/%s", id), nil)
	if err != nil {
		return err
	}

	return decodeResponse(resp, nil)
}

// ListFolders lists the authenticated user's folders, oldest first
func (c *Client) ListFolders(ctx context.Context) ([]*models.Folder, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/folders", nil)
	if err != nil {
		return nil, err
	}

	var result []*models.Folder
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// Note management

// CreateNote creates a new note
func (c *Client) CreateNote(ctx context.Context, note *models.Note) (*models.Note, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/notes", note)
	if err != nil {
		return nil, err
	}

	var result models.Note
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// GetNote retrieves a note by ID
func (c *Client) GetNote(ctx context.Context, id models.NoteID) (*models.Note, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/notes/%s", id), nil)
	if err != nil {
		return nil, err
	}

	var result models.Note
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// UpdateNote updates an existing note
func (c *Client) UpdateNote(ctx context.Context, note *models.Note) (*models.Note, error) {
	resp, err := c.doRequest(ctx, http.MethodPut, fmt.Sprintf("/api/notes/%s", note.ID), note)
	if err != nil {
		return nil, err
	}

	var result models.Note
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// MoveNoteRequest is the payload for MoveNote. A nil FolderID files the
// note as unfiled.
type MoveNoteRequest struct {
	FolderID *models.FolderID `json:"folder_id"`
}

// MoveNote reassigns a note's folder
func (c *Client) MoveNote(ctx context.Context, id models.NoteID, folderID *models.FolderID) (*models.Note, error) {
	resp, err := c.doRequest(ctx, http.MethodPut, fmt.Sprintf("/api/notes/%s/move", id), MoveNoteRequest{FolderID: folderID})
	if err != nil {
		return nil, err
	}

	var result models.Note
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// ToggleFavorite flips a note's favorite flag
func (c *Client) ToggleFavorite(ctx context.Context, id models.NoteID) (*models.Note, error) {
	resp, err := c.doRequest(ctx, http.MethodPut, fmt.Sprintf("/api/notes/%s/favorite", id), nil)
	if err != nil {
		return nil, err
	}

	var result models.Note
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// DeleteNote deletes a note
func (c *Client) DeleteNote(ctx context.Context, id models.NoteID) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/api/notes/%s", id), nil)
	if err != nil {
		return err
	}

	return decodeResponse(resp, nil)
}

// ListNotes lists the authenticated user's notes, most recently updated
// first. A non-nil folderID filters to one folder.
func (c *Client) ListNotes(ctx context.Context, folderID *models.FolderID) ([]*models.Note, error) {
	path := "/api/notes"
	if folderID != nil {
		path = fmt.Sprintf("/api/notes?folder_id=%s", folderID)
	}
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var result []*models.Note
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return result, nil
}
