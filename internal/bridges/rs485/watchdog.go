package rs485

import (
	"context"
	"sync"
	"time"
)

// WatchdogConfig carries everything a Watchdog needs to probe one slave.
type WatchdogConfig struct {
	Conn     *Conn
	Hub      *Hub
	Slave    byte
	Register uint16

	// Interval is the probe cadence.
	Interval time.Duration

	// ProbeTimeout bounds each individual read probe. Banks stagger this
	// by slave address so probes against a shared bus do not pile up.
	ProbeTimeout time.Duration
}

// Watchdog periodically issues read probes against a slave's state
// register while the gateway connection is up. The probe responses flow
// back through the hub like any other frame, so subscribers resynchronise
// even when the relay board changes state out of band (physical buttons,
// power cycles).
//
// Probes are skipped, not queued, while the connection is down.
type Watchdog struct {
	cfg WatchdogConfig

	loggerMu sync.RWMutex
	logger   Logger

	stateMu sync.Mutex
	running bool
	done    *closeOnce
	wg      sync.WaitGroup
}

// NewWatchdog creates a watchdog. Call Start to begin probing.
func NewWatchdog(cfg WatchdogConfig) *Watchdog {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultWatchdogInterval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = time.Duration(cfg.Slave) * time.Second
	}
	return &Watchdog{cfg: cfg}
}

// SetLogger installs a logger. Safe to call at any time.
func (w *Watchdog) SetLogger(logger Logger) {
	w.loggerMu.Lock()
	w.logger = logger
	w.loggerMu.Unlock()
}

// Start launches the probe loop. It is idempotent; calling Start on a
// running watchdog is a no-op. The loop runs until Stop is called or ctx
// is cancelled.
func (w *Watchdog) Start(ctx context.Context) {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.done = newCloseOnce()

	w.wg.Add(1)
	go w.probeLoop(ctx, w.done)
}

// Stop halts the probe loop and waits for it to exit.
func (w *Watchdog) Stop() {
	w.stateMu.Lock()
	if !w.running {
		w.stateMu.Unlock()
		return
	}
	w.running = false
	done := w.done
	w.stateMu.Unlock()

	done.Close()
	w.wg.Wait()
}

func (w *Watchdog) probeLoop(ctx context.Context, done *closeOnce) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-done.Done():
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.probe(ctx)
		}
	}
}

// probe issues one bounded read of the state register. Failures are
// logged and swallowed; the connection manager owns recovery.
func (w *Watchdog) probe(ctx context.Context) {
	if !w.cfg.Conn.IsConnected() {
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, w.cfg.ProbeTimeout)
	defer cancel()

	if err := w.cfg.Hub.ReadRegister(probeCtx, w.cfg.Slave, w.cfg.Register, 1); err != nil {
		w.logWarn("watchdog probe failed", "slave", w.cfg.Slave, "error", err.Error())
	}
}

func (w *Watchdog) logWarn(msg string, keysAndValues ...any) {
	w.loggerMu.RLock()
	logger := w.logger
	w.loggerMu.RUnlock()
	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}
