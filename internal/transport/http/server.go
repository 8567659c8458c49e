package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"pet-monitor/tracker/internal/config"
	"pet-monitor/tracker/internal/domain"
	"pet-monitor/tracker/internal/metrics"
)

// ConfigStore is the durable-store slice the HTTP surface needs.
type ConfigStore interface {
	Perimeter(ctx context.Context) (*domain.Perimeter, error)
	SavePerimeter(ctx context.Context, p domain.Perimeter) error
	QueryPositions(ctx context.Context, petID string, from, to time.Time) ([]domain.PositionRecord, error)
}

// HotState is the cache-store slice backing discovery and latest-state
// endpoints.
type HotState interface {
	Anchors(ctx context.Context, liveWithin time.Duration) ([]domain.AnchorStatus, error)
	RecentUnregistered(ctx context.Context, within time.Duration) ([]domain.SeenDevice, error)
	LatestGPS(ctx context.Context, key string) (lat, lon float64, ok bool, err error)
	LatestEnv(ctx context.Context, key string) (*domain.EnvReading, error)
}

// Subscriber handles Telegram /start registrations.
type Subscriber interface {
	Subscribe(ctx context.Context, chatID string) error
}

type Server struct {
	cfg        *config.Config
	db         ConfigStore
	hot        HotState
	hub        http.Handler
	subscriber Subscriber
	camera     *http.Client
}

func NewServer(cfg *config.Config, db ConfigStore, hot HotState, hub http.Handler, subscriber Subscriber) *Server {
	return &Server{
		cfg:        cfg,
		db:         db,
		hot:        hot,
		hub:        hub,
		subscriber: subscriber,
		camera: &http.Client{
			Timeout: time.Duration(cfg.CameraTimeoutSec) * time.Second,
		},
	}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Get("/metrics", metrics.HandleMetrics)

	apikey := NewAPIKeyMiddleware(s.cfg.ValidAPIKeys)
	r.Route("/api", func(r chi.Router) {
		r.Get("/perimeter", s.getPerimeter)
		r.With(apikey.Wrap).Put("/perimeter", s.putPerimeter)
		r.Get("/anchors", s.listAnchors)
		r.Get("/devices/recent", s.listRecentDevices)
		r.Get("/pets/{petID}/positions", s.petPositions)
		r.Get("/position/latest", s.latestPosition)
		r.Get("/env/latest", s.latestEnv)
	})

	r.Post("/telegram/webhook", s.telegramWebhook)
	r.Get("/camera/control", s.cameraControl)

	if s.hub != nil {
		r.Get("/ws", s.hub.ServeHTTP)
	}

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// --- Perimeter config ---

type perimeterPayload struct {
	CenterLat    float64 `json:"center_lat"`
	CenterLon    float64 `json:"center_lon"`
	RadiusMeters float64 `json:"radius_meters"`
}

func (s *Server) getPerimeter(w http.ResponseWriter, r *http.Request) {
	p, err := s.db.Perimeter(r.Context())
	if err != nil {
		render.Render(w, r, errUnexpected(err))
		return
	}
	if p == nil {
		render.Render(w, r, &HttpErrResponse{
			HTTPStatusCode: http.StatusNotFound,
			ErrorText:      "perimeter not configured",
		})
		return
	}
	render.JSON(w, r, perimeterPayload{
		CenterLat:    p.CenterLat,
		CenterLon:    p.CenterLon,
		RadiusMeters: p.RadiusMeters,
	})
}

func (s *Server) putPerimeter(w http.ResponseWriter, r *http.Request) {
	var payload perimeterPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		render.Render(w, r, errInvalidRequest(err))
		return
	}
	if payload.RadiusMeters <= 0 {
		render.Render(w, r, errInvalidRequest(fmt.Errorf("radius must be positive")))
		return
	}
	if payload.CenterLat < -90 || payload.CenterLat > 90 ||
		payload.CenterLon < -180 || payload.CenterLon > 180 {
		render.Render(w, r, errInvalidRequest(fmt.Errorf("center out of range")))
		return
	}

	err := s.db.SavePerimeter(r.Context(), domain.Perimeter{
		CenterLat:    payload.CenterLat,
		CenterLon:    payload.CenterLon,
		RadiusMeters: payload.RadiusMeters,
	})
	if err != nil {
		render.Render(w, r, errUnexpected(err))
		return
	}
	render.JSON(w, r, payload)
}

// --- Discovery listings ---

func (s *Server) listAnchors(w http.ResponseWriter, r *http.Request) {
	liveWithin := time.Duration(s.cfg.AnchorLivenessSeconds) * time.Second
	anchors, err := s.hot.Anchors(r.Context(), liveWithin)
	if err != nil {
		render.Render(w, r, errUnexpected(err))
		return
	}
	render.JSON(w, r, anchors)
}

func (s *Server) listRecentDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.hot.RecentUnregistered(r.Context(), 15*time.Minute)
	if err != nil {
		render.Render(w, r, errUnexpected(err))
		return
	}
	render.JSON(w, r, devices)
}

// --- Position history and latest state ---

func (s *Server) petPositions(w http.ResponseWriter, r *http.Request) {
	petID := chi.URLParam(r, "petID")

	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			render.Render(w, r, errInvalidRequest(err))
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			render.Render(w, r, errInvalidRequest(err))
			return
		}
		to = t
	}

	recs, err := s.db.QueryPositions(r.Context(), petID, from, to)
	if err != nil {
		render.Render(w, r, errUnexpected(err))
		return
	}
	render.JSON(w, r, recs)
}

func (s *Server) latestPosition(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		key = "global"
	}
	lat, lon, ok, err := s.hot.LatestGPS(r.Context(), key)
	if err != nil {
		render.Render(w, r, errUnexpected(err))
		return
	}
	if !ok {
		render.Render(w, r, &HttpErrResponse{
			HTTPStatusCode: http.StatusNotFound,
			ErrorText:      "no position known",
		})
		return
	}
	render.JSON(w, r, map[string]float64{"lat": lat, "lon": lon})
}

func (s *Server) latestEnv(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		key = "global"
	}
	reading, err := s.hot.LatestEnv(r.Context(), key)
	if err != nil {
		render.Render(w, r, errUnexpected(err))
		return
	}
	if reading == nil {
		render.Render(w, r, &HttpErrResponse{
			HTTPStatusCode: http.StatusNotFound,
			ErrorText:      "no reading known",
		})
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"temp":      reading.Temp,
		"hum":       reading.Hum,
		"timestamp": reading.Timestamp,
	})
}

// --- Telegram webhook ---

type telegramUpdate struct {
	Message struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

func (s *Server) telegramWebhook(w http.ResponseWriter, r *http.Request) {
	var update telegramUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		render.Render(w, r, errInvalidRequest(err))
		return
	}

	if update.Message.Chat.ID != 0 && normalizeCommand(update.Message.Text) == "/start" {
		chatID := fmt.Sprintf("%d", update.Message.Chat.ID)
		if err := s.subscriber.Subscribe(r.Context(), chatID); err != nil {
			render.Render(w, r, errUnexpected(err))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// normalizeCommand trims the "@botname" suffix Telegram appends to commands
// in group chats.
func normalizeCommand(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '@'); i > 0 {
		text = text[:i]
	}
	return text
}

// --- Camera control relay ---

// cameraControl forwards control parameters to the camera module with a
// bounded timeout. It fails closed: an unreachable camera is a 502, never a
// hung request.
func (s *Server) cameraControl(w http.ResponseWriter, r *http.Request) {
	upstream := s.cfg.CameraBaseURL + "/control"
	u, err := url.Parse(upstream)
	if err != nil {
		render.Render(w, r, errUnexpected(err))
		return
	}
	u.RawQuery = r.URL.RawQuery

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, u.String(), nil)
	if err != nil {
		render.Render(w, r, errUnexpected(err))
		return
	}

	resp, err := s.camera.Do(req)
	if err != nil {
		render.Render(w, r, errBadGateway(err))
		return
	}
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "text/plain"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}
