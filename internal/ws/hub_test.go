package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type recordingSink struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (r *recordingSink) SensorData(ctx context.Context, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, payload)
}

func dialTest(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count never reached %d (now %d)", n, h.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcastReachesAllClients(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	c1 := dialTest(t, srv)
	c2 := dialTest(t, srv)
	waitForClients(t, h, 2)

	h.Broadcast([]byte(`{"type":"gps_update","lat":45.0,"lon":9.0}`))

	for i, conn := range []*websocket.Conn{c1, c2} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("client %d read failed: %v", i, err)
		}
		if !strings.Contains(string(data), "gps_update") {
			t.Errorf("client %d got %q", i, data)
		}
	}
}

func TestControlCommandRelaysToOthersOnly(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	browser := dialTest(t, srv)
	device := dialTest(t, srv)
	waitForClients(t, h, 2)

	payload := `{"type":"control_command","command":"led_on"}`
	if err := browser.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	device.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := device.ReadMessage()
	if err != nil {
		t.Fatalf("device read failed: %v", err)
	}
	if string(data) != payload {
		t.Errorf("relayed = %q, want %q", data, payload)
	}

	// The sender must not get its own command echoed back.
	browser.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := browser.ReadMessage(); err == nil {
		t.Error("sender received its own control_command")
	}
}

func TestBinaryFramesRelayVerbatim(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	camera := dialTest(t, srv)
	viewer := dialTest(t, srv)
	waitForClients(t, h, 2)

	blob := []byte{0xFF, 0xD8, 0x00, 0x01, 0x02}
	if err := camera.WriteMessage(websocket.BinaryMessage, blob); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	viewer.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := viewer.ReadMessage()
	if err != nil {
		t.Fatalf("viewer read failed: %v", err)
	}
	if mt != websocket.BinaryMessage || string(data) != string(blob) {
		t.Errorf("relay altered frame: type=%d data=%v", mt, data)
	}
}

func TestSensorDataReachesSink(t *testing.T) {
	sink := &recordingSink{}
	h := NewHub(sink)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dialTest(t, srv)
	waitForClients(t, h, 1)

	payload := `{"type":"sensor_data","gps":{"lat":45.0,"lon":9.0}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		sink.mu.Lock()
		n := len(sink.payloads)
		sink.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("sensor_data never reached the sink")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDisconnectPrunesClient(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dialTest(t, srv)
	waitForClients(t, h, 1)

	conn.Close()
	waitForClients(t, h, 0)
}
