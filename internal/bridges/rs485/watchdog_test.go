package rs485

import (
	"context"
	"testing"
	"time"
)

func TestWatchdogProbesWhileConnected(t *testing.T) {
	gw, port := newFakeGateway(t, 1)

	conn := NewConn(ConnConfig{Host: "127.0.0.1", Port: port})
	hub := NewHub(conn)
	conn.Start()
	defer conn.Close()
	waitFor(t, 2*time.Second, conn.IsConnected)

	wd := NewWatchdog(WatchdogConfig{
		Conn:         conn,
		Hub:          hub,
		Slave:        1,
		Register:     DefaultRegisterAddress,
		Interval:     25 * time.Millisecond,
		ProbeTimeout: time.Second,
	})
	wd.Start(context.Background())
	defer wd.Stop()

	waitFor(t, 2*time.Second, func() bool {
		return gw.readCount() >= 3
	})
}

func TestWatchdogSkipsProbesWhileDisconnected(t *testing.T) {
	// Nothing listens, so the connection never comes up.
	ln, port := testListener(t)
	ln.Close()

	conn := NewConn(ConnConfig{Host: "127.0.0.1", Port: port, ConnectTimeout: 50 * time.Millisecond})
	hub := NewHub(conn)
	conn.Start()
	defer conn.Close()

	wd := NewWatchdog(WatchdogConfig{
		Conn:     conn,
		Hub:      hub,
		Slave:    1,
		Register: DefaultRegisterAddress,
		Interval: 10 * time.Millisecond,
	})
	wd.Start(context.Background())

	time.Sleep(60 * time.Millisecond)
	wd.Stop()

	// No probes could have been sent; the gateway socket never opened.
	if stats := conn.Stats(); stats.BytesTx != 0 {
		t.Errorf("BytesTx = %d while disconnected, want 0", stats.BytesTx)
	}
}

func TestWatchdogStopHaltsProbing(t *testing.T) {
	gw, port := newFakeGateway(t, 1)

	conn := NewConn(ConnConfig{Host: "127.0.0.1", Port: port})
	hub := NewHub(conn)
	conn.Start()
	defer conn.Close()
	waitFor(t, 2*time.Second, conn.IsConnected)

	wd := NewWatchdog(WatchdogConfig{
		Conn:         conn,
		Hub:          hub,
		Slave:        1,
		Register:     DefaultRegisterAddress,
		Interval:     10 * time.Millisecond,
		ProbeTimeout: time.Second,
	})
	wd.Start(context.Background())

	waitFor(t, 2*time.Second, func() bool { return gw.readCount() >= 1 })
	wd.Stop()

	after := gw.readCount()
	time.Sleep(50 * time.Millisecond)
	if got := gw.readCount(); got > after+1 {
		t.Errorf("probes continued after Stop: %d -> %d", after, got)
	}
}

func TestWatchdogStopIdempotent(t *testing.T) {
	conn := NewConn(ConnConfig{Host: "127.0.0.1", Port: 1})
	wd := NewWatchdog(WatchdogConfig{Conn: conn, Hub: NewHub(conn), Slave: 1})

	wd.Stop() // never started
	wd.Start(context.Background())
	wd.Stop()
	wd.Stop()
}

func TestWatchdogProbeTimeoutDefaultsToSlaveAddress(t *testing.T) {
	conn := NewConn(ConnConfig{Host: "127.0.0.1", Port: 1})
	wd := NewWatchdog(WatchdogConfig{Conn: conn, Hub: NewHub(conn), Slave: 4})

	if got := wd.cfg.ProbeTimeout; got != 4*time.Second {
		t.Errorf("ProbeTimeout = %v, want 4s", got)
	}
	if got := wd.cfg.Interval; got != defaultWatchdogInterval {
		t.Errorf("Interval = %v, want %v", got, defaultWatchdogInterval)
	}
}
