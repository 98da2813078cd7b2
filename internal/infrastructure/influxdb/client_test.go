package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-rs485/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-rs485/internal/infrastructure/influxdb"
)

// fakeInfluxServer answers the ping and write endpoints and records
// line protocol bodies.
type fakeInfluxServer struct {
	server *httptest.Server

	mu     sync.Mutex
	bodies []string
}

func newFakeInfluxServer(t *testing.T) *fakeInfluxServer {
	t.Helper()

	f := &fakeInfluxServer{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/ping"):
			w.WriteHeader(http.StatusNoContent)
		case strings.Contains(r.URL.Path, "/write"):
			body, _ := io.ReadAll(r.Body)
			f.mu.Lock()
			f.bodies = append(f.bodies, string(body))
			f.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(f.server.Close)

	return f
}

func (f *fakeInfluxServer) received() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.bodies, "\n")
}

func (f *fakeInfluxServer) config() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           f.server.URL,
		Token:         "test-token",
		Org:           "graylogic",
		Bucket:        "rs485",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func TestConnectDisabled(t *testing.T) {
	cfg := config.InfluxDBConfig{Enabled: false}

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnectUnreachableServer(t *testing.T) {
	cfg := config.InfluxDBConfig{
		Enabled: true,
		URL:     "http://127.0.0.1:1", // Nothing listens here
		Token:   "test-token",
		Org:     "graylogic",
		Bucket:  "rs485",
	}

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnectAndHealthCheck(t *testing.T) {
	fake := newFakeInfluxServer(t)

	client, err := influxdb.Connect(fake.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestWriteBankCounters(t *testing.T) {
	fake := newFakeInfluxServer(t)

	client, err := influxdb.Connect(fake.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	client.WriteBankCounters("hall", true, 42, 96, 2, 1)
	client.Flush()

	body := fake.received()
	if !strings.Contains(body, "rs485_bank,bank=hall") {
		t.Errorf("write body missing bank measurement: %q", body)
	}
	if !strings.Contains(body, "frames_rx=42i") {
		t.Errorf("write body missing frames counter: %q", body)
	}
}

func TestWriteStateChange(t *testing.T) {
	fake := newFakeInfluxServer(t)

	client, err := influxdb.Connect(fake.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	client.WriteStateChange("hall-3", "switch", map[string]any{"on": true})
	client.WriteStateChange("garage-door", "cover", map[string]any{
		"state":    "open",
		"position": 100,
	})
	client.Flush()

	body := fake.received()
	if !strings.Contains(body, "device_state,device_id=hall-3,device_type=switch") {
		t.Errorf("write body missing switch state: %q", body)
	}
	if !strings.Contains(body, "on=1i") {
		t.Errorf("write body missing boolean field: %q", body)
	}
	if !strings.Contains(body, "position=100i") {
		t.Errorf("write body missing position field: %q", body)
	}
}

func TestWritesDroppedAfterClose(t *testing.T) {
	fake := newFakeInfluxServer(t)

	client, err := influxdb.Connect(fake.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	client.WriteBankCounters("hall", true, 1, 1, 0, 0)
	client.Flush()

	if body := fake.received(); strings.Contains(body, "frames_rx=1i") {
		t.Errorf("write after Close() reached the server: %q", body)
	}
}

func TestCloseNilClient(t *testing.T) {
	var client *influxdb.Client
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}
