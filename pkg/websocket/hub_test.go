package websocket

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type update struct {
	DialogID string `json:"dialog_id"`
	Type     string `json:"type"`
}

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	logger, _ := zap.NewDevelopment()
	hub := NewHub(&Config{SendBuffer: 8, Logger: logger})
	server := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})

	return hub, server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.ClientCount() == n }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	hub, server := newTestHub(t)

	first := dial(t, server)
	second := dial(t, server)
	waitForClients(t, hub, 2)

	require.NoError(t, hub.Broadcast(update{DialogID: "d-1", Type: "quote"}))

	for _, conn := range []*websocket.Conn{first, second} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var got update
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, update{DialogID: "d-1", Type: "quote"}, got)
	}
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	hub, server := newTestHub(t)

	conn := dial(t, server)
	waitForClients(t, hub, 1)

	require.NoError(t, conn.Close())
	waitForClients(t, hub, 0)

	assert.NoError(t, hub.Broadcast(update{Type: "closed"}))
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	hub, server := newTestHub(t)

	conn := dial(t, server)
	waitForClients(t, hub, 1)

	hub.Close()
	assert.Equal(t, 0, hub.ClientCount())

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestHub_BroadcastUnencodable(t *testing.T) {
	hub := NewHub(&Config{})

	err := hub.Broadcast(make(chan int))
	assert.Error(t, err)
}
