package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pet-monitor/tracker/internal/config"
	"pet-monitor/tracker/internal/domain"
)

type fakeConfigStore struct {
	perimeter *domain.Perimeter
	saved     []domain.Perimeter
	positions []domain.PositionRecord
}

func (f *fakeConfigStore) Perimeter(ctx context.Context) (*domain.Perimeter, error) {
	return f.perimeter, nil
}

func (f *fakeConfigStore) SavePerimeter(ctx context.Context, p domain.Perimeter) error {
	f.saved = append(f.saved, p)
	f.perimeter = &p
	return nil
}

func (f *fakeConfigStore) QueryPositions(ctx context.Context, petID string, from, to time.Time) ([]domain.PositionRecord, error) {
	var out []domain.PositionRecord
	for _, r := range f.positions {
		if r.PetID == petID && !r.Timestamp.Before(from) && !r.Timestamp.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeHotState struct {
	anchors []domain.AnchorStatus
	devices []domain.SeenDevice
	gps     map[string][2]float64
	env     map[string]*domain.EnvReading
}

func (f *fakeHotState) Anchors(ctx context.Context, liveWithin time.Duration) ([]domain.AnchorStatus, error) {
	return f.anchors, nil
}

func (f *fakeHotState) RecentUnregistered(ctx context.Context, within time.Duration) ([]domain.SeenDevice, error) {
	return f.devices, nil
}

func (f *fakeHotState) LatestGPS(ctx context.Context, key string) (float64, float64, bool, error) {
	p, ok := f.gps[key]
	return p[0], p[1], ok, nil
}

func (f *fakeHotState) LatestEnv(ctx context.Context, key string) (*domain.EnvReading, error) {
	return f.env[key], nil
}

type fakeSubscriber struct {
	chats []string
}

func (f *fakeSubscriber) Subscribe(ctx context.Context, chatID string) error {
	f.chats = append(f.chats, chatID)
	return nil
}

func newTestServer(t *testing.T) (*Server, *fakeConfigStore, *fakeHotState, *fakeSubscriber) {
	t.Helper()
	cfg := config.Load()
	cfg.ValidAPIKeys = []string{"test-key"}
	db := &fakeConfigStore{}
	hot := &fakeHotState{gps: map[string][2]float64{}, env: map[string]*domain.EnvReading{}}
	sub := &fakeSubscriber{}
	return NewServer(cfg, db, hot, nil, sub), db, hot, sub
}

func TestHealthz(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPerimeterRoundTrip(t *testing.T) {
	srv, db, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	// No config yet.
	resp, err := http.Get(ts.URL + "/api/perimeter")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := `{"center_lat":45.0,"center_lon":9.0,"radius_meters":50}`
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/perimeter", strings.NewReader(body))
	req.Header.Set("X-API-Key", "test-key")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, db.saved, 1)
	assert.Equal(t, 50.0, db.saved[0].RadiusMeters)

	resp, err = http.Get(ts.URL + "/api/perimeter")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got perimeterPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 45.0, got.CenterLat)
}

func TestPerimeterPutRequiresAPIKey(t *testing.T) {
	srv, db, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body := `{"center_lat":45.0,"center_lon":9.0,"radius_meters":50}`

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/perimeter", strings.NewReader(body))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ = http.NewRequest(http.MethodPut, ts.URL+"/api/perimeter", strings.NewReader(body))
	req.Header.Set("X-API-Key", "wrong")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Empty(t, db.saved)
}

func TestPerimeterPutRejectsBadValues(t *testing.T) {
	srv, db, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	for _, body := range []string{
		`{"center_lat":45.0,"center_lon":9.0,"radius_meters":0}`,
		`{"center_lat":95.0,"center_lon":9.0,"radius_meters":10}`,
		`{"center_lat":45.0,"center_lon":181.0,"radius_meters":10}`,
		`not json`,
	} {
		req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/perimeter", strings.NewReader(body))
		req.Header.Set("X-API-Key", "test-key")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "body: %s", body)
	}
	assert.Empty(t, db.saved)
}

func TestPetPositionsRange(t *testing.T) {
	srv, db, _, _ := newTestServer(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		db.positions = append(db.positions, domain.PositionRecord{
			PetID:     "p1",
			Source:    domain.SourceGPS,
			Class:     domain.ClassZoneAllowed,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		})
	}
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	url := ts.URL + "/api/pets/p1/positions?from=" + base.Format(time.RFC3339) +
		"&to=" + base.Add(time.Hour).Format(time.RFC3339)
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var recs []domain.PositionRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&recs))
	assert.Len(t, recs, 2)

	resp, err = http.Get(ts.URL + "/api/pets/p1/positions?from=garbage")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLatestPosition(t *testing.T) {
	srv, _, hot, _ := newTestServer(t)
	hot.gps["AA:BB:CC:DD:EE:FF"] = [2]float64{45.5, 9.25}
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/position/latest?key=AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got map[string]float64
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 45.5, got["lat"])
	assert.Equal(t, 9.25, got["lon"])

	resp, err = http.Get(ts.URL + "/api/position/latest?key=unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTelegramWebhookSubscribesOnStart(t *testing.T) {
	srv, _, _, sub := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	post := func(body string) *http.Response {
		resp, err := http.Post(ts.URL+"/telegram/webhook", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	resp := post(`{"message":{"chat":{"id":12345},"text":"/start"}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, sub.chats, 1)
	assert.Equal(t, "12345", sub.chats[0])

	// Group-chat command suffix is tolerated.
	post(`{"message":{"chat":{"id":777},"text":"/start@trackerbot"}}`)
	require.Len(t, sub.chats, 2)
	assert.Equal(t, "777", sub.chats[1])

	// Other text does not register anyone.
	post(`{"message":{"chat":{"id":999},"text":"hello"}}`)
	assert.Len(t, sub.chats, 2)
}

func TestCameraControlRelay(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/control", r.URL.Path)
		assert.Equal(t, "90", r.URL.Query().Get("pan"))
		w.Write([]byte("ok"))
	}))
	defer upstream.Close()

	srv, _, _, _ := newTestServer(t)
	srv.cfg.CameraBaseURL = upstream.URL
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/camera/control?pan=90")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Unreachable camera maps to a gateway error instead of a hang.
	srv.cfg.CameraBaseURL = "http://127.0.0.1:1"
	resp, err = http.Get(ts.URL + "/camera/control")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}
