package rs485

import (
	"context"
	"fmt"
	"sync"
)

// SubscriberFunc receives one inbound frame. id is the subscriber's own
// registration id, passed back so shared callbacks can tell their
// registrations apart.
type SubscriberFunc func(id string, frame []byte)

// Hub fans inbound gateway frames out to all registered subscribers and
// funnels outbound register requests through one write lock.
//
// Every subscriber self-identifies with a unique id. Subscribing twice
// with the same id overwrites the earlier registration; unsubscribing an
// absent id is a no-op.
//
// Thread Safety: all methods are safe for concurrent use.
type Hub struct {
	conn *Conn

	// mu guards the subscriber table and serialises outbound sends
	// against table mutation.
	mu   sync.Mutex
	subs map[string]SubscriberFunc

	// Logger (optional)
	logger   Logger
	loggerMu sync.RWMutex
}

// NewHub creates a hub wired to the given connection: the hub installs
// itself as the connection's frame handler.
func NewHub(conn *Conn) *Hub {
	h := &Hub{
		conn: conn,
		subs: make(map[string]SubscriberFunc),
	}
	conn.SetOnFrame(h.publish)
	return h
}

// SetLogger sets the logger for this hub.
func (h *Hub) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// Subscribe registers a callback under the given id.
//
// Returns ErrMissingSubscriberID when id is empty; the registration is
// skipped and the error logged.
func (h *Hub) Subscribe(id string, fn SubscriberFunc) error {
	if id == "" {
		h.logError("subscribe rejected", ErrMissingSubscriberID)
		return ErrMissingSubscriberID
	}

	h.mu.Lock()
	h.subs[id] = fn
	h.mu.Unlock()

	h.logDebug("subscriber added", "id", id)
	return nil
}

// Unsubscribe removes the callback registered under id.
// Removing an absent id is a no-op.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	_, found := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()

	if found {
		h.logDebug("subscriber removed", "id", id)
	} else {
		h.logDebug("no subscriber to remove", "id", id)
	}
}

// Len returns the number of registered subscribers. Callers use this to
// decide whether to tear down the underlying connection once the last
// subscriber departs.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// publish delivers one inbound frame to every subscriber.
//
// The subscriber table is snapshotted under the lock, then every callback
// runs in its own goroutine. A panicking subscriber is recovered and
// logged with its id without affecting the others. publish waits for all
// callbacks before returning, so the read loop does not fetch the next
// frame until the current one is fully processed.
func (h *Hub) publish(frame []byte) {
	h.mu.Lock()
	snapshot := make(map[string]SubscriberFunc, len(h.subs))
	for id, fn := range h.subs {
		snapshot[id] = fn
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for id, fn := range snapshot {
		wg.Add(1)
		go func(id string, fn SubscriberFunc) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					h.logError("subscriber panicked",
						fmt.Errorf("subscriber %s: %v", id, r))
				}
			}()
			fn(id, frame)
		}(id, fn)
	}
	wg.Wait()
}

// ReadRegister sends a read-holding-registers request to the gateway.
// The response arrives asynchronously through the subscriber callbacks.
func (h *Hub) ReadRegister(ctx context.Context, slave byte, register, count uint16) error {
	return h.send(ctx, EncodeRead(slave, register, count))
}

// WriteRegister sends a write-single-register request to the gateway.
func (h *Hub) WriteRegister(ctx context.Context, slave byte, register, value uint16) error {
	return h.send(ctx, EncodeWrite(slave, register, value))
}

// send transmits a frame under the hub lock, serialising writes relative
// to each other and to subscriber-table mutation.
func (h *Hub) send(ctx context.Context, frame []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn.Send(frame)
}

// logDebug logs a debug message if logger is set.
func (h *Hub) logDebug(msg string, keysAndValues ...any) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (h *Hub) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
