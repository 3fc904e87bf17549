// Package sse implements the Server-Sent-Events channel the streaming
// endpoints push through: named-event framing, heartbeats, an overall
// timeout, and exactly-once close semantics per connection.
package sse

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tempohq/teamtempo/errors"
)

// Event names emitted over the stream
const (
	EventProgress  = "progress"
	EventHeartbeat = "heartbeat"
	EventResult    = "result"
	EventError     = "error"
)

// HeartbeatPayload is pushed at every heartbeat interval to keep proxies and
// load balancers from idling out the connection.
type HeartbeatPayload struct {
	Timestamp string `json:"timestamp"`
}

// TimeoutPayload is the terminal error payload when the stream's overall
// timeout fires before a result does.
type TimeoutPayload struct {
	Message string `json:"message"`
}

// Broker owns the connection table: one *Connection per logical connection
// id, bound to one HTTP response. Safe for concurrent use.
type Broker struct {
	mu                sync.Mutex
	conns             map[string]*Connection
	heartbeatInterval time.Duration
	streamTimeout     time.Duration
	log               *zap.SugaredLogger
	timeNow           func() time.Time // injectable for testing
}

// NewBroker creates a connection broker. heartbeatInterval controls the
// keep-alive cadence; streamTimeout is the overall per-connection ceiling
// after which the broker emits a terminal timeout error and closes.
func NewBroker(heartbeatInterval, streamTimeout time.Duration, log *zap.SugaredLogger) *Broker {
	return &Broker{
		conns:             make(map[string]*Connection),
		heartbeatInterval: heartbeatInterval,
		streamTimeout:     streamTimeout,
		log:               log,
		timeNow:           time.Now,
	}
}

// Open binds id to w, writes the SSE preamble, and starts the connection's
// heartbeat and timeout timers. Fails with ErrConnectionExists if id is
// already bound and ErrInvalidRequest if w cannot stream.
//
// ctx is the inbound request's context; its cancellation is treated as the
// client going away and fires the connection's disconnect callback.
func (b *Broker) Open(ctx context.Context, id string, w http.ResponseWriter) (*Connection, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.Wrap(errors.ErrInvalidRequest, "response writer does not support streaming")
	}

	conn := newConnection(id, w, flusher, b.log.With("connection_id", id), b.timeNow)

	b.mu.Lock()
	if _, exists := b.conns[id]; exists {
		b.mu.Unlock()
		return nil, errors.Wrapf(errors.ErrConnectionExists, "connection %s", id)
	}
	b.conns[id] = conn
	b.mu.Unlock()

	conn.writePreamble()
	conn.start(b.heartbeatInterval, b.streamTimeout, func() { b.Close(id) })
	go conn.watchClient(ctx)

	b.log.Debugw("SSE connection opened", "connection_id", id)
	return conn, nil
}

// Emit sends one named event to id. Unknown ids fail with
// ErrConnectionNotFound; emitting on a connection that has since closed is a
// silent no-op, matching idempotent close.
func (b *Broker) Emit(id, event string, payload any) error {
	b.mu.Lock()
	conn, ok := b.conns[id]
	b.mu.Unlock()

	if !ok {
		return errors.Wrapf(errors.ErrConnectionNotFound, "connection %s", id)
	}
	return conn.Emit(event, payload)
}

// Close tears down id's connection: stops its timers, terminates the stream,
// and drops it from the table. Idempotent; closing an unknown or
// already-closed connection does nothing.
func (b *Broker) Close(id string) {
	b.mu.Lock()
	conn, ok := b.conns[id]
	delete(b.conns, id)
	b.mu.Unlock()

	if !ok {
		return
	}
	conn.close()
	b.log.Debugw("SSE connection closed", "connection_id", id)
}

// Len returns the number of open connections
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}
