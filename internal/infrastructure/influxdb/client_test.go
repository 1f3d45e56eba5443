package influxdb

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/printwatch/internal/infrastructure/config"
)

// fakeWriter records points instead of sending them.
type fakeWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (w *fakeWriter) WritePoint(p *write.Point) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.points = append(w.points, p)
}

func (w *fakeWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushes++
}

// fakeServer answers pings with a fixed result.
type fakeServer struct {
	healthy bool
	err     error
	closed  int
}

func (s *fakeServer) Ping(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.healthy, s.err
}

func (s *fakeServer) Close() { s.closed++ }

var testTime = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T) (*Client, *fakeWriter, *fakeServer) {
	t.Helper()
	w := &fakeWriter{}
	s := &fakeServer{healthy: true}
	c := newClient(s, w, config.InfluxDBConfig{Enabled: true})
	c.now = func() time.Time { return testTime }
	return c, w, s
}

// fields flattens a point's fields for comparison.
func fields(p *write.Point) map[string]any {
	out := make(map[string]any)
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func tags(p *write.Point) map[string]string {
	out := make(map[string]string)
	for _, tag := range p.TagList() {
		out[tag.Key] = tag.Value
	}
	return out
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect_Disabled(t *testing.T) {
	client, err := Connect(context.Background(), config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
	if client != nil {
		t.Error("Connect() returned a client when disabled")
	}
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Connect(ctx, config.InfluxDBConfig{
		Enabled: true,
		URL:     "http://127.0.0.1:1",
		Org:     "printwatch",
		Bucket:  "telemetry",
	})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name    string
		server  fakeServer
		wantErr bool
	}{
		{"healthy", fakeServer{healthy: true}, false},
		{"unhealthy", fakeServer{healthy: false}, true},
		{"ping error", fakeServer{err: errors.New("refused")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := tt.server
			c := newClient(&server, &fakeWriter{}, config.InfluxDBConfig{})

			err := c.HealthCheck(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("HealthCheck() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHealthCheck_Cancelled(t *testing.T) {
	c, _, _ := newTestClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestClose(t *testing.T) {
	c, w, s := newTestClient(t)

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	if w.flushes != 1 || s.closed != 1 {
		t.Errorf("flushes = %d, closed = %d, want 1 and 1", w.flushes, s.closed)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() after Close() error = %v, want ErrNotConnected", err)
	}

	c.Flush()
	if w.flushes != 1 {
		t.Errorf("Flush() after Close() should be a no-op, flushes = %d", w.flushes)
	}
}

func TestClose_Nil(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() on nil client = true")
	}
}

// =============================================================================
// Write Tests
// =============================================================================

func TestWriteComponentProgress(t *testing.T) {
	c, w, _ := newTestClient(t)

	c.WriteComponentProgress("bracket", "printing", 40, 120, 33)

	if len(w.points) != 1 {
		t.Fatalf("points = %d, want 1", len(w.points))
	}
	p := w.points[0]

	if p.Name() != measurementComponentProgress {
		t.Errorf("Name() = %q", p.Name())
	}
	if got := tags(p); got["component"] != "bracket" || got["status"] != "printing" {
		t.Errorf("tags = %v", got)
	}
	got := fields(p)
	for key, want := range map[string]int64{"current_layer": 40, "total_layers": 120, "progress": 33} {
		if got[key] != want {
			t.Errorf("field %s = %v, want %d", key, got[key], want)
		}
	}
	if !p.Time().Equal(testTime) {
		t.Errorf("Time() = %v, want %v", p.Time(), testTime)
	}
}

func TestWriteMessage(t *testing.T) {
	c, w, _ := newTestClient(t)

	c.WriteMessage("printer/components/bracket", "incoming", 64)

	if len(w.points) != 1 {
		t.Fatalf("points = %d, want 1", len(w.points))
	}
	p := w.points[0]
	if p.Name() != measurementMessages {
		t.Errorf("Name() = %q", p.Name())
	}
	if got := tags(p); got["topic"] != "printer/components/bracket" || got["direction"] != "incoming" {
		t.Errorf("tags = %v", got)
	}
	if got := fields(p)["bytes"]; got != int64(64) {
		t.Errorf("bytes = %v, want 64", got)
	}
}

func TestWritePointWithTime(t *testing.T) {
	c, w, _ := newTestClient(t)
	stamp := testTime.Add(-time.Hour)

	c.WritePointWithTime("custom", nil, map[string]any{"value": 1.5}, stamp)

	if len(w.points) != 1 || !w.points[0].Time().Equal(stamp) {
		t.Fatalf("points = %v, want one point at %v", w.points, stamp)
	}
}

func TestWrite_AfterCloseDropped(t *testing.T) {
	c, w, _ := newTestClient(t)
	c.Close() //nolint:errcheck // test

	c.WriteComponentProgress("bracket", "printing", 1, 2, 50)
	c.WriteMessage("t", "outgoing", 1)

	if len(w.points) != 0 {
		t.Errorf("points written after Close(): %d", len(w.points))
	}
}

func TestSetOnError(t *testing.T) {
	c, _, _ := newTestClient(t)

	var got error
	c.SetOnError(func(err error) { got = err })

	c.mu.RLock()
	callback := c.onError
	c.mu.RUnlock()

	want := errors.New("write rejected")
	callback(want)
	if got != want {
		t.Errorf("callback received %v, want %v", got, want)
	}
}
