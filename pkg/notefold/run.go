package notefold

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/notefold/notefold/pkg/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is token-authenticated, not cookie-authenticated, so
	// cross-origin upgrades are safe to accept.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket upgrades the connection and registers it with the hub
// so the client receives change events for its own records. The token is
// taken from the Authorization header or a token query parameter, since
// browser WebSocket clients cannot set headers.
func (a *App) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromHeader(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	user, ok := a.auth.GetSession(token)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	a.hub.HandleConnection(conn, user.ID)
}

// Run starts the HTTP server and blocks until ctx is canceled or the
// server fails.
//
// Routes:
//
//	GET  /health                     - liveness and active store backend
//	GET  /ws                         - change event stream (websocket)
//
//	POST /api/auth/signup            - register account
//	POST /api/auth/signin            - authenticate
//	POST /api/auth/signout           - end session
//	GET  /api/auth/me                - current user
//	POST /api/auth/refresh           - rotate session token
//
//	POST   /api/folders              - create folder
//	GET    /api/folders              - list folders, oldest first
//	GET    /api/folders/{id}         - get folder
//	PUT    /api/folders/{id}         - rename/recolor folder
//	DELETE /api/folders/{id}         - delete folder, notes survive unfiled
//
//	POST   /api/notes                - create note
//	GET    /api/notes                - list notes, newest update first
//	GET    /api/notes/{id}           - get note
//	PUT    /api/notes/{id}           - update title/content
//	PUT    /api/notes/{id}/move      - reassign folder
//	PUT    /api/notes/{id}/favorite  - toggle favorite
//	DELETE /api/notes/{id}           - delete note
//
// On shutdown, active requests get up to 5 seconds to complete.
func (a *App) Run(ctx context.Context, cmd *RunCommand) error {
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", a.handleHealth).Methods("GET")

	api.HandleFunc("/auth/signup", a.handleSignUp).Methods("POST")
	api.HandleFunc("/auth/signin", a.handleSignIn).Methods("POST")
	api.HandleFunc("/auth/signout", a.handleSignOut).Methods("POST")
	api.HandleFunc("/auth/me", a.handleGetCurrentUser).Methods("GET")
	api.HandleFunc("/auth/refresh", a.handleRefreshToken).Methods("POST")

	api.HandleFunc("/folders", a.handleCreateFolder).Methods("POST")
	api.HandleFunc("/folders", a.handleListFolders).Methods("GET")
	api.HandleFunc("/folders/{id}", a.handleGetFolder).Methods("GET")
	api.HandleFunc("/folders/{id}", a.handleUpdateFolder).Methods("PUT")
	api.HandleFunc("/folders/{id}", a.handleDeleteFolder).Methods("DELETE")

	api.HandleFunc("/notes", a.handleCreateNote).Methods("POST")
	api.HandleFunc("/notes", a.handleListNotes).Methods("GET")
	api.HandleFunc("/notes/{id}", a.handleGetNote).Methods("GET")
	api.HandleFunc("/notes/{id}", a.handleUpdateNote).Methods("PUT")
	api.HandleFunc("/notes/{id}/move", a.handleMoveNote).Methods("PUT")
	api.HandleFunc("/notes/{id}/favorite", a.handleToggleFavorite).Methods("PUT")
	api.HandleFunc("/notes/{id}", a.handleDeleteNote).Methods("DELETE")

	router.HandleFunc("/ws", a.handleWebSocket).Methods("GET")
	router.HandleFunc("/health", a.handleHealth).Methods("GET")

	go a.hub.Run()

	addr := fmt.Sprintf(":%s", a.config.ServerPort)
	a.logger.Info().
		Str("addr", addr).
		Str("store", string(a.config.Store)).
		Msg("starting notefold server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}
