package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *Hub, userID string, streams []string) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(userID, streams, w, r)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForSubscriber(t *testing.T, hub *Hub, stream, userID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.SubscriberCount(stream, userID) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestHubDeliversToSubscribedUser(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "user-1", []string{StreamNotifications})
	waitForSubscriber(t, hub, StreamNotifications, "user-1")

	hub.BroadcastToUser(StreamNotifications, "user-1", Message{
		Event: "notification.created",
		Data:  map[string]any{"id": "n-1"},
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var received Message
	require.NoError(t, conn.ReadJSON(&received))
	require.Equal(t, StreamNotifications, received.Stream)
	require.Equal(t, "notification.created", received.Event)
}

func TestHubDoesNotCrossUserBoundaries(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "user-a", []string{StreamNotifications})
	waitForSubscriber(t, hub, StreamNotifications, "user-a")

	hub.BroadcastToUser(StreamNotifications, "user-b", Message{Event: "notification.created"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond)))
	var received Message
	require.Error(t, conn.ReadJSON(&received))
}

func TestHubIgnoresUnknownStreams(t *testing.T) {
	hub := NewHub()
	dialHub(t, hub, "user-2", []string{"gossip", StreamThreads})
	waitForSubscriber(t, hub, StreamThreads, "user-2")

	require.Zero(t, hub.SubscriberCount("gossip", "user-2"))
}

func TestHubControlSubscribe(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "user-3", []string{StreamNotifications})
	waitForSubscriber(t, hub, StreamNotifications, "user-3")

	require.NoError(t, conn.WriteJSON(map[string]any{
		"action":  "subscribe",
		"streams": []string{StreamThreads},
	}))
	require.Eventually(t, func() bool {
		return hub.SubscriberCount(StreamThreads, "user-3") == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"action":  "unsubscribe",
		"streams": []string{StreamThreads},
	}))
	require.Eventually(t, func() bool {
		return hub.SubscriberCount(StreamThreads, "user-3") == 0
	}, time.Second, 10*time.Millisecond)
}

func TestHubBroadcastToUsers(t *testing.T) {
	hub := NewHub()
	first := dialHub(t, hub, "user-4", []string{StreamThreads})
	second := dialHub(t, hub, "user-5", []string{StreamThreads})
	waitForSubscriber(t, hub, StreamThreads, "user-4")
	waitForSubscriber(t, hub, StreamThreads, "user-5")

	hub.BroadcastToUsers(StreamThreads, []string{"user-4", "user-5"}, Message{Event: "message.created"})

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		var received Message
		require.NoError(t, conn.ReadJSON(&received))
		require.Equal(t, "message.created", received.Event)
	}
}

func TestHubUnregisterOnClose(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "user-6", []string{StreamNotifications})
	waitForSubscriber(t, hub, StreamNotifications, "user-6")

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return hub.SubscriberCount(StreamNotifications, "user-6") == 0
	}, time.Second, 10*time.Millisecond)
}
