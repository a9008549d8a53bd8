package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/sibyl/internal/logging"
	"github.com/fortuna/sibyl/internal/reconciliation"
	"github.com/fortuna/sibyl/internal/report"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(logging.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func TestHubBroadcast(t *testing.T) {
	hub := startHub(t)

	client := NewClient("c1", hub, nil)
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, time.Millisecond)

	hub.Broadcast(Message{Type: "test.event", Timestamp: time.Now(), Data: 1})

	select {
	case got := <-client.send:
		assert.Equal(t, "test.event", got.Type)
	case <-time.After(time.Second):
		t.Fatal("client did not receive message")
	}

	hub.unregister <- client
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, time.Millisecond)
	_, open := <-client.send
	assert.False(t, open)
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := startHub(t)

	client := NewClient("slow", hub, nil)
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, time.Millisecond)

	for i := 0; i < cap(client.send)+1; i++ {
		hub.Broadcast(Message{Type: "tick", Data: i})
	}
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, time.Millisecond)
}

func TestHubStoppedDoesNotBlock(t *testing.T) {
	hub := NewHub(logging.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	client := NewClient("c1", hub, nil)
	require.True(t, hub.Register(client))
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, time.Millisecond)

	cancel()
	<-stopped

	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.remove(client)

		late := NewClient("c2", hub, nil)
		assert.False(t, hub.Register(late))
		_, open := <-late.send
		assert.False(t, open)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub calls blocked after Run returned")
	}
	assert.Equal(t, 0, hub.ClientCount())
}

func TestServerStreamsReports(t *testing.T) {
	hub := startHub(t)
	srv := NewServer(hub, []string{"https://sheets.example.com"}, logging.Nop())
	assert.Same(t, hub, srv.Hub())
	assert.Equal(t, "websocket", srv.Name())

	ts := httptest.NewServer(http.HandlerFunc(srv.HandleReports))
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")

	// disallowed origin
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example.com"}})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://sheets.example.com"}})
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, time.Millisecond)

	odds := 130
	rep := report.New("2025-04-21", time.Now(), time.UTC, &reconciliation.Result{
		Records: []reconciliation.MergedRecord{{GameID: "abc123", AwayTeam: "Boston Red Sox", AwayOdds: &odds}},
	})
	require.NoError(t, srv.Write(context.Background(), rep))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type string        `json:"type"`
		Data report.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, MessageReportGenerated, msg.Type)
	assert.Equal(t, rep.RunID, msg.Data.RunID)
	require.Len(t, msg.Data.Records, 1)
	assert.Equal(t, "abc123", msg.Data.Records[0].GameID)
}
