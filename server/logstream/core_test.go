package logstream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestFromZapEntry(t *testing.T) {
	entry := zapcore.Entry{
		Level:   zapcore.InfoLevel,
		Time:    time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
		Message: "Aggregation complete",
	}
	fields := []zapcore.Field{
		zap.String("source", "GitHub"),
		zap.Int("metrics", 6),
		zap.Bool("partial", false),
		zap.Duration("elapsed", 1500*time.Millisecond),
	}

	msg := FromZapEntry(entry, fields)

	assert.Equal(t, "info", msg.Level)
	assert.Equal(t, "Aggregation complete", msg.Message)
	assert.Equal(t, "GitHub", msg.Fields["source"])
	assert.Equal(t, int64(6), msg.Fields["metrics"])
	assert.Equal(t, false, msg.Fields["partial"])
	assert.Equal(t, "1.5s", msg.Fields["elapsed"])
}

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubDeliversLoggedEntries(t *testing.T) {
	hub := NewHub(8, func(*http.Request) bool { return true })
	conn := dialHub(t, hub)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 5*time.Millisecond)

	log := zap.New(NewCore(zapcore.InfoLevel, hub)).Sugar()
	log.Infow("Source cache hit", "key", "GitHub:90")
	log.Debugw("filtered out by level")

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))

	assert.Equal(t, "info", msg.Level)
	assert.Equal(t, "Source cache hit", msg.Message)
	assert.Equal(t, "GitHub:90", msg.Fields["key"])
}

func TestHubDropsWhenClientBufferFull(t *testing.T) {
	hub := NewHub(1, func(*http.Request) bool { return true })

	// A client with no running write pump: its buffer fills and stays full
	stalled := &client{send: make(chan Message, 1)}
	hub.clients[stalled] = struct{}{}

	hub.Broadcast(Message{Level: "info", Message: "fits"})
	hub.Broadcast(Message{Level: "info", Message: "dropped"})
	hub.Broadcast(Message{Level: "info", Message: "dropped"})

	assert.Equal(t, int64(2), hub.Dropped(), "a slow client must lose messages, not stall the logger")
}

func TestCoreWithCarriesScopedFields(t *testing.T) {
	hub := NewHub(8, func(*http.Request) bool { return true })
	conn := dialHub(t, hub)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 5*time.Millisecond)

	log := zap.New(NewCore(zapcore.DebugLevel, hub)).Sugar().With("component", "aggregator")
	log.Infow("starting", "days", 90)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))

	assert.Equal(t, "aggregator", msg.Fields["component"])
	assert.Equal(t, int64(90), msg.Fields["days"])
}
