package notefold

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notefold/notefold/pkg/models"
	"github.com/notefold/notefold/pkg/store"
)

// dialPair returns a connected websocket pair through a test server.
func dialPair(t *testing.T) (server, client *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case server = <-serverConns:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for server side of the connection")
	}
	return server, client
}

func TestHubSurvivesFailedWrite(t *testing.T) {
	h := NewHub(zerolog.Nop())
	go h.Run()

	deadUser := models.NewUserID()
	liveUser := models.NewUserID()

	// A client whose connection is already gone: every write fails.
	deadServer, _ := dialPair(t)
	dead := &hubClient{conn: deadServer, userID: deadUser}
	h.register <- dead
	require.NoError(t, deadServer.Close())

	h.Broadcast(deadUser, ChangeMessage{
		Collection: store.CollectionNotes,
		Action:     store.ActionUpdated,
	})

	// The hub must keep serving registrations after the failed write.
	liveServer, liveClient := dialPair(t)
	live := &hubClient{conn: liveServer, userID: liveUser}
	select {
	case h.register <- live:
	case <-time.After(2 * time.Second):
		t.Fatal("Hub stopped accepting registrations after a failed write")
	}

	// And broadcasts still reach healthy clients.
	h.Broadcast(liveUser, ChangeMessage{
		Collection: store.CollectionFolders,
		Action:     store.ActionCreated,
		RecordID:   "folder-1",
	})

	require.NoError(t, liveClient.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg ChangeMessage
	require.NoError(t, liveClient.ReadJSON(&msg))
	assert.Equal(t, store.CollectionFolders, msg.Collection)
	assert.Equal(t, store.ActionCreated, msg.Action)

	h.mu.RLock()
	_, stillRegistered := h.clients[dead]
	h.mu.RUnlock()
	assert.False(t, stillRegistered, "Failed client must be dropped")
}
