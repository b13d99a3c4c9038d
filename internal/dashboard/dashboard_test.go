package dashboard

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodule-risk/internal/server"
)

func TestPublishNeverBlocks(t *testing.T) {
	d := New(0)

	// No broadcast loop running: fill the buffer past capacity and make
	// sure the prediction path is never held up.
	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(d.broadcast)+10; i++ {
			d.Publish(server.PredictionEvent{Tier: "small"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a saturated feed")
	}
}

func TestIndexPage(t *testing.T) {
	d := New(0)

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	d.handleIndex(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "Live Predictions")
	assert.Contains(t, rec.Body.String(), "/ws")
}

func TestWebSocketReceivesBroadcast(t *testing.T) {
	d := New(0)
	go d.broadcastLoop()
	defer d.Shutdown(context.Background())

	ts := httptest.NewServer(d.httpServer.Handler)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Registration happens inside the upgrade handler; wait for it before
	// broadcasting.
	require.Eventually(t, func() bool {
		d.clientsMu.RLock()
		defer d.clientsMu.RUnlock()
		return len(d.clients) == 1
	}, 2*time.Second, 10*time.Millisecond)

	d.Publish(server.PredictionEvent{
		Timestamp:   time.Now(),
		Tier:        "large",
		Diameter:    12,
		Probability: 0.61,
		Band:        "high",
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"tier":"large"`)
	assert.Contains(t, string(payload), `"band":"high"`)
}
