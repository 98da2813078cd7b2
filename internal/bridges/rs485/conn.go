package rs485

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Default timeouts and intervals for gateway communication.
const (
	// defaultConnectTimeout is the maximum time to wait for a connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultWriteTimeout is the timeout for socket write operations.
	defaultWriteTimeout = 5 * time.Second

	// defaultReadChunk is the number of bytes one socket read returns at
	// most. Each read chunk is treated as one logical frame; the gateway
	// sends one message per TCP segment.
	defaultReadChunk = 12

	// initialRetryDelay is the first reconnection backoff delay.
	initialRetryDelay = 1 * time.Second

	// defaultMaxRetryDelay caps the reconnection backoff.
	defaultMaxRetryDelay = 60 * time.Second
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// backoff computes exponential reconnection delays. The n-th consecutive
// failure yields min(initial * 2^(n-1), max); Reset returns to initial.
type backoff struct {
	initial time.Duration
	max     time.Duration
	next    time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{initial: initial, max: max, next: initial}
}

func (b *backoff) Next() time.Duration {
	d := b.next
	b.next *= 2
	if b.next > b.max {
		b.next = b.max
	}
	return d
}

func (b *backoff) Reset() {
	b.next = b.initial
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// FrameHandler receives one inbound frame per socket read. It is invoked
// synchronously from the read loop: the next frame is not read until the
// handler returns, throttling intake to the slowest consumer.
type FrameHandler func(frame []byte)

// ConnConfig holds gateway connection configuration.
type ConnConfig struct {
	// Host is the TCP-serial gateway address.
	Host string

	// Port is the gateway TCP port.
	Port int

	// ReadChunk is the maximum bytes per socket read; each read is one
	// logical frame. Default: 12.
	ReadChunk int

	// ConnectTimeout bounds each connection attempt. Default: 10 seconds.
	ConnectTimeout time.Duration

	// MaxRetryDelay caps the exponential reconnection backoff.
	// Default: 60 seconds.
	MaxRetryDelay time.Duration
}

// ConnStats holds operational statistics.
type ConnStats struct {
	FramesRx        uint64
	BytesTx         uint64
	ErrorsTotal     uint64
	ReconnectsTotal uint64 // Successful connects after the first
	LastActivity    time.Time
	Connected       bool
}

// Conn owns the single outbound TCP connection to the gateway.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - The frame handler is invoked from the read loop goroutine.
//
// Auto-Reconnection:
//   - Connection attempts are bounded by ConnectTimeout.
//   - Failures back off exponentially from 1s up to MaxRetryDelay; a
//     successful connect resets the delay to 1s.
//   - A zero-length read means the gateway closed the stream; the socket
//     is closed and the reconnect loop re-entered.
//   - Reconnection stops only when Close is called.
type Conn struct {
	cfg ConnConfig

	// Connection state
	connMu    sync.RWMutex
	conn      net.Conn
	connected bool

	// writeMu serialises socket writes to avoid interleaved partial frames.
	writeMu sync.Mutex

	// Frame handler callback
	onFrame   FrameHandler
	handlerMu sync.RWMutex

	// Run state. done is recreated on every Start so a closed connection
	// can be started again when a device re-attaches.
	stateMu sync.Mutex
	running bool
	done    *closeOnce
	wg      sync.WaitGroup

	// Logger (optional)
	logger   Logger
	loggerMu sync.RWMutex

	// Statistics (atomic for performance)
	framesRx        atomic.Uint64
	bytesTx         atomic.Uint64
	errorsTotal     atomic.Uint64
	reconnectsTotal atomic.Uint64
	everConnected   atomic.Bool
	lastActivity    atomic.Int64 // Unix timestamp
}

// NewConn creates a connection manager for the given gateway.
// Call Start to begin connecting; no I/O happens before that.
func NewConn(cfg ConnConfig) *Conn {
	if cfg.ReadChunk <= 0 {
		cfg.ReadChunk = defaultReadChunk
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = defaultMaxRetryDelay
	}

	return &Conn{cfg: cfg}
}

// SetOnFrame sets the callback for inbound frames.
// Must be set before Start; frames arriving without a handler are dropped.
func (c *Conn) SetOnFrame(handler FrameHandler) {
	c.handlerMu.Lock()
	c.onFrame = handler
	c.handlerMu.Unlock()
}

// SetLogger sets the logger for this connection.
func (c *Conn) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// Start launches the reconnect/read loop.
//
// Start is idempotent: calling it while the loop is already running logs
// and returns without creating a second loop.
func (c *Conn) Start() {
	c.stateMu.Lock()
	if c.running {
		c.stateMu.Unlock()
		c.logWarn("connection already started")
		return
	}
	c.running = true
	c.done = newCloseOnce()
	done := c.done
	c.stateMu.Unlock()

	c.wg.Add(1)
	go c.connectionLoop(done)
}

// connectionLoop dials the gateway, runs the read loop, and reconnects
// with exponential backoff until Close is called.
func (c *Conn) connectionLoop(done *closeOnce) {
	defer c.wg.Done()

	address := net.JoinHostPort(c.cfg.Host, fmt.Sprintf("%d", c.cfg.Port))
	retry := newBackoff(initialRetryDelay, c.cfg.MaxRetryDelay)

	for !closed(done) {
		conn, err := c.dial(address)
		if err != nil {
			c.errorsTotal.Add(1)
			c.logError("connect failed", err)
			if !c.sleep(done, retry.Next()) {
				return
			}
			continue
		}

		c.logInfo("connected to gateway", "address", address)
		retry.Reset()
		if c.everConnected.Swap(true) {
			c.reconnectsTotal.Add(1)
		}

		c.setConn(conn)
		c.readLoop(done, conn)
		c.dropConn()

		if closed(done) {
			return
		}
		if !c.sleep(done, retry.Next()) {
			return
		}
	}
}

// dial attempts one connection, bounded by the connect timeout.
func (c *Conn) dial(address string) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s after %s", ErrConnectTimeout, address, c.cfg.ConnectTimeout)
		}
		return nil, fmt.Errorf("%w: dial %s: %w", ErrConnectionReset, address, err)
	}
	return conn, nil
}

// readLoop reads frames until the connection is severed or Close is called.
// Each read chunk is delivered to the frame handler as one logical frame;
// there is no reassembly buffer.
func (c *Conn) readLoop(done *closeOnce, conn net.Conn) {
	buf := make([]byte, c.cfg.ReadChunk)

	for {
		if closed(done) {
			return
		}

		n, err := conn.Read(buf)
		if err != nil || n == 0 {
			if closed(done) {
				return
			}
			c.logWarn("gateway closed connection, reconnecting", "error", errString(err))
			return
		}

		c.framesRx.Add(1)
		c.lastActivity.Store(time.Now().Unix())

		// Copy so subscribers can hold the frame beyond the next read.
		frame := make([]byte, n)
		copy(frame, buf[:n])

		c.handlerMu.RLock()
		handler := c.onFrame
		c.handlerMu.RUnlock()

		if handler != nil {
			handler(frame)
		}
	}
}

// setConn installs a live socket and marks the connection up.
func (c *Conn) setConn(conn net.Conn) {
	c.connMu.Lock()
	c.conn = conn
	c.connected = true
	c.connMu.Unlock()
}

// dropConn closes and clears the live socket.
func (c *Conn) dropConn() {
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	c.connMu.Unlock()
}

// sleep waits for d or until Close is called. Returns false on shutdown.
func (c *Conn) sleep(done *closeOnce, d time.Duration) bool {
	c.logInfo("reconnecting to gateway", "delay", d.String())
	select {
	case <-done.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// closed reports whether the stop channel has been closed.
func closed(done *closeOnce) bool {
	select {
	case <-done.Done():
		return true
	default:
		return false
	}
}

// Send writes a frame to the gateway.
//
// Sends are serialised relative to each other. Returns ErrNotConnected
// when no live socket exists; failed sends are not queued or retried.
func (c *Conn) Send(frame []byte) error {
	c.connMu.RLock()
	conn := c.conn
	connected := c.connected
	c.connMu.RUnlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout)); err != nil {
		return fmt.Errorf("%w: set deadline: %w", ErrConnectionReset, err)
	}

	if _, err := conn.Write(frame); err != nil {
		c.errorsTotal.Add(1)
		return fmt.Errorf("%w: write: %w", ErrConnectionReset, err)
	}

	c.bytesTx.Add(uint64(len(frame)))
	c.lastActivity.Store(time.Now().Unix())

	return nil
}

// Close stops the reconnect loop and closes any live socket.
//
// It waits for the loop goroutine to finish before returning, so no
// further reconnection attempts happen after Close returns. Safe to call
// multiple times; a closed connection may be started again.
func (c *Conn) Close() error {
	c.stateMu.Lock()
	if !c.running {
		c.stateMu.Unlock()
		return nil
	}
	c.running = false
	done := c.done
	c.stateMu.Unlock()

	done.Close()

	// Unblock any in-flight read.
	c.dropConn()

	c.wg.Wait()

	c.logInfo("gateway connection closed")
	return nil
}

// IsConnected returns true if a live socket exists.
func (c *Conn) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// IsRunning returns true while the reconnect/read loop is active.
func (c *Conn) IsRunning() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.running
}

// Stats returns current operational statistics.
func (c *Conn) Stats() ConnStats {
	return ConnStats{
		FramesRx:        c.framesRx.Load(),
		BytesTx:         c.bytesTx.Load(),
		ErrorsTotal:     c.errorsTotal.Load(),
		ReconnectsTotal: c.reconnectsTotal.Load(),
		LastActivity:    time.Unix(c.lastActivity.Load(), 0),
		Connected:       c.IsConnected(),
	}
}

// errString renders an error for logging, tolerating nil.
func errString(err error) string {
	if err == nil {
		return "EOF"
	}
	return err.Error()
}

// logInfo logs an info message if logger is set.
func (c *Conn) logInfo(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning if logger is set.
func (c *Conn) logWarn(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (c *Conn) logError(msg string, err error) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
