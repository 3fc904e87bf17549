package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tempohq/teamtempo/errors"
)

// Connection is one open SSE stream. Lifecycle is UNOPENED (zero value,
// never observed outside the broker) to OPEN to CLOSED; there is no way
// back to OPEN.
//
// All writes serialize through the connection mutex: the HTTP response
// writer is not safe for the concurrent emits that arrive from the handler
// goroutine and the timer goroutine.
type Connection struct {
	id      string
	w       http.ResponseWriter
	flusher http.Flusher
	log     *zap.SugaredLogger
	timeNow func() time.Time

	mu           sync.Mutex
	closed       bool
	disconnected bool

	stopTimers chan struct{}
	stopOnce   sync.Once

	onDisconnect   func()
	disconnectOnce sync.Once
}

func newConnection(id string, w http.ResponseWriter, flusher http.Flusher, log *zap.SugaredLogger, timeNow func() time.Time) *Connection {
	return &Connection{
		id:         id,
		w:          w,
		flusher:    flusher,
		log:        log,
		timeNow:    timeNow,
		stopTimers: make(chan struct{}),
	}
}

// ID returns the connection id
func (c *Connection) ID() string {
	return c.id
}

// OnDisconnect registers fn to run exactly once if the client goes away
// out-of-band. A connection closed through the broker first never fires it.
// If the client already went away before registration, fn fires immediately.
func (c *Connection) OnDisconnect(fn func()) {
	c.mu.Lock()
	c.onDisconnect = fn
	fire := c.disconnected && !c.closed
	c.mu.Unlock()

	if fire {
		c.disconnectOnce.Do(fn)
	}
}

// Done returns a channel closed when the connection closes, whether by the
// broker, the stream timeout, or disconnect-driven teardown.
func (c *Connection) Done() <-chan struct{} {
	return c.stopTimers
}

// Emit frames one named event as "event: <name>\ndata: <json>\n\n" and
// flushes it. Emitting on a closed connection is a silent no-op.
func (c *Connection) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %s payload", event)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	if _, err := fmt.Fprintf(c.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return errors.Wrapf(err, "failed to write %s event", event)
	}
	c.flusher.Flush()
	return nil
}

// writePreamble sends the SSE response headers plus a keep-alive comment so
// intermediaries commit to the streaming response immediately.
func (c *Connection) writePreamble() {
	h := c.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	c.mu.Lock()
	fmt.Fprint(c.w, ": connected\n\n")
	c.flusher.Flush()
	c.mu.Unlock()
}

// start runs the heartbeat ticker and the overall timeout on one goroutine.
// When the timeout fires first, the connection emits the terminal timeout
// error and asks the broker (via closeSelf) to tear it down.
func (c *Connection) start(heartbeatInterval, streamTimeout time.Duration, closeSelf func()) {
	go func() {
		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()
		timeout := time.NewTimer(streamTimeout)
		defer timeout.Stop()

		for {
			select {
			case <-heartbeat.C:
				if err := c.Emit(EventHeartbeat, HeartbeatPayload{
					Timestamp: c.timeNow().UTC().Format(time.RFC3339),
				}); err != nil {
					c.log.Warnw("Heartbeat write failed", "error", err)
				}
			case <-timeout.C:
				c.log.Warnw("SSE stream timed out", "timeout", streamTimeout)
				if err := c.Emit(EventError, TimeoutPayload{Message: "Operation timed out"}); err != nil {
					c.log.Warnw("Timeout event write failed", "error", err)
				}
				closeSelf()
				return
			case <-c.stopTimers:
				return
			}
		}
	}()
}

// watchClient fires the disconnect callback if the request context ends
// before the connection is closed server-side.
func (c *Connection) watchClient(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-c.stopTimers:
		return
	}

	c.mu.Lock()
	c.disconnected = true
	fn := c.onDisconnect
	alreadyClosed := c.closed
	c.mu.Unlock()

	// fn may still be nil here if the handler has not registered yet;
	// OnDisconnect fires it on registration in that case.
	if alreadyClosed || fn == nil {
		return
	}
	c.disconnectOnce.Do(func() {
		c.log.Debugw("Client disconnected")
		fn()
	})
}

// close transitions to CLOSED: further emits become no-ops and both timers
// stop. Safe to call more than once.
func (c *Connection) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.stopOnce.Do(func() { close(c.stopTimers) })
	c.flusher.Flush()
}
