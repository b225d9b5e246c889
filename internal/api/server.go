// Package api provides REST API endpoints over imported Formula 1 timing
// data: sessions, driver lists, race-control messages, and telemetry
// summaries.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"f1import/internal/storage"
)

// SessionStore is the PostgreSQL subset the server reads from.
type SessionStore interface {
	ListMeetings(ctx context.Context, year int) ([]storage.Meeting, error)
	ListSessions(ctx context.Context, meetingKey int) ([]storage.Session, error)
	ListDrivers(ctx context.Context, sessionKey int) ([]storage.Driver, error)
	ListRaceControl(ctx context.Context, sessionKey int) ([]storage.RaceControlMessage, error)
}

// TelemetryStats is the ClickHouse subset the server reads from.
type TelemetryStats interface {
	CountByDriver(ctx context.Context, sessionKey int) ([]storage.DriverSampleCount, error)
	CountSessionTelemetry(ctx context.Context, sessionKey int) (uint64, error)
}

// TimingServer provides REST API access to imported timing data.
type TimingServer struct {
	store       SessionStore
	telemetry   TelemetryStats
	port        int
	authEnabled bool
	apiKeys     map[string]bool // Simple API key auth (when enabled).
}

// Config holds configuration for the timing API server.
type Config struct {
	Port        int
	AuthEnabled bool
	APIKeys     []string // List of valid API keys.
}

// NewTimingServer creates a new timing API server.
func NewTimingServer(store SessionStore, telemetry TelemetryStats, cfg Config) *TimingServer {
	keys := make(map[string]bool)
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}

	return &TimingServer{
		store:       store,
		telemetry:   telemetry,
		port:        cfg.Port,
		authEnabled: cfg.AuthEnabled,
		apiKeys:     keys,
	}
}

// Run starts the HTTP server.
func (s *TimingServer) Run() error {
	r := chi.NewRouter()

	// Standard middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS for browser access.
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/", s.Router())
	})

	addr := ":" + strconv.Itoa(s.port)
	log.Printf("Timing API starting at http://localhost%s", addr)
	if s.authEnabled {
		log.Printf("Authentication: ENABLED (API key required)")
	} else {
		log.Printf("Authentication: DISABLED (open access)")
	}

	return http.ListenAndServe(addr, r)
}

// Router returns the configured chi router for embedding in other servers.
func (s *TimingServer) Router() chi.Router {
	r := chi.NewRouter()

	// Optional authentication.
	if s.authEnabled {
		r.Use(s.authMiddleware)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/meetings", s.handleListMeetings)
	r.Get("/meetings/{meeting_key}/sessions", s.handleListSessions)
	r.Get("/sessions/{session_key}/drivers", s.handleListDrivers)
	r.Get("/sessions/{session_key}/racecontrol", s.handleListRaceControl)
	r.Get("/sessions/{session_key}/telemetry", s.handleTelemetrySummary)

	return r
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates API key authentication.
func (s *TimingServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check X-API-Key header first.
		apiKey := r.Header.Get("X-API-Key")

		// Fall back to Authorization: Bearer <key>.
		if apiKey == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		// Fall back to query parameter (for simple testing).
		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}

		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}

		if !s.apiKeys[apiKey] {
			writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *TimingServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// MeetingResponse is the JSON shape of one meeting.
type MeetingResponse struct {
	MeetingKey   int    `json:"meeting_key"`
	Year         int    `json:"year"`
	Name         string `json:"name"`
	OfficialName string `json:"official_name,omitempty"`
	Location     string `json:"location,omitempty"`
	CountryName  string `json:"country_name,omitempty"`
	CircuitName  string `json:"circuit_name,omitempty"`
}

func (s *TimingServer) handleListMeetings(w http.ResponseWriter, r *http.Request) {
	year := 0
	if y := r.URL.Query().Get("year"); y != "" {
		parsed, err := strconv.Atoi(y)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year")
			return
		}
		year = parsed
	}

	meetings, err := s.store.ListMeetings(r.Context(), year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]MeetingResponse, 0, len(meetings))
	for _, m := range meetings {
		out = append(out, MeetingResponse{
			MeetingKey:   m.MeetingKey,
			Year:         m.Year,
			Name:         m.Name,
			OfficialName: m.OfficialName,
			Location:     m.Location,
			CountryName:  m.CountryName,
			CircuitName:  m.CircuitName,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// SessionResponse is the JSON shape of one session.
type SessionResponse struct {
	SessionKey int    `json:"session_key"`
	MeetingKey int    `json:"meeting_key"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	StartDate  string `json:"start_date,omitempty"`
	EndDate    string `json:"end_date,omitempty"`
}

func (s *TimingServer) handleListSessions(w http.ResponseWriter, r *http.Request) {
	meetingKey, err := strconv.Atoi(chi.URLParam(r, "meeting_key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid meeting key")
		return
	}

	sessions, err := s.store.ListSessions(r.Context(), meetingKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]SessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		resp := SessionResponse{
			SessionKey: sess.SessionKey,
			MeetingKey: sess.MeetingKey,
			Name:       sess.Name,
			Type:       sess.Type,
		}
		if !sess.StartDate.IsZero() {
			resp.StartDate = sess.StartDate.Format(time.RFC3339)
		}
		if !sess.EndDate.IsZero() {
			resp.EndDate = sess.EndDate.Format(time.RFC3339)
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

// DriverResponse is the JSON shape of one driver entry.
type DriverResponse struct {
	DriverNumber  int    `json:"driver_number"`
	BroadcastName string `json:"broadcast_name,omitempty"`
	FullName      string `json:"full_name,omitempty"`
	Acronym       string `json:"acronym,omitempty"`
	TeamName      string `json:"team_name,omitempty"`
	TeamColour    string `json:"team_colour,omitempty"`
	CountryCode   string `json:"country_code,omitempty"`
	HeadshotURL   string `json:"headshot_url,omitempty"`
}

func (s *TimingServer) handleListDrivers(w http.ResponseWriter, r *http.Request) {
	sessionKey, err := strconv.Atoi(chi.URLParam(r, "session_key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid session key")
		return
	}

	drivers, err := s.store.ListDrivers(r.Context(), sessionKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(drivers) == 0 {
		writeError(w, http.StatusNotFound, "No drivers imported for session")
		return
	}

	out := make([]DriverResponse, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, DriverResponse{
			DriverNumber:  d.DriverNumber,
			BroadcastName: d.BroadcastName,
			FullName:      d.FullName,
			Acronym:       d.Acronym,
			TeamName:      d.TeamName,
			TeamColour:    d.TeamColour,
			CountryCode:   d.CountryCode,
			HeadshotURL:   d.HeadshotURL,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// RaceControlResponse is the JSON shape of one race-control message.
type RaceControlResponse struct {
	OccurredAt   string `json:"occurred_at,omitempty"`
	Category     string `json:"category,omitempty"`
	Flag         string `json:"flag,omitempty"`
	Scope        string `json:"scope,omitempty"`
	Sector       *int   `json:"sector,omitempty"`
	Message      string `json:"message"`
	DriverNumber *int   `json:"driver_number,omitempty"`
	Lap          *int   `json:"lap,omitempty"`
}

func (s *TimingServer) handleListRaceControl(w http.ResponseWriter, r *http.Request) {
	sessionKey, err := strconv.Atoi(chi.URLParam(r, "session_key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid session key")
		return
	}

	messages, err := s.store.ListRaceControl(r.Context(), sessionKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]RaceControlResponse, 0, len(messages))
	for _, m := range messages {
		resp := RaceControlResponse{
			Category:     m.Category,
			Flag:         m.Flag,
			Scope:        m.Scope,
			Sector:       m.Sector,
			Message:      m.Message,
			DriverNumber: m.DriverNumber,
			Lap:          m.Lap,
		}
		if !m.OccurredAt.IsZero() {
			resp.OccurredAt = m.OccurredAt.Format(time.RFC3339)
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

// TelemetrySummaryResponse summarizes a session's imported telemetry.
type TelemetrySummaryResponse struct {
	SessionKey   int                     `json:"session_key"`
	TotalSamples uint64                  `json:"total_samples"`
	Drivers      []DriverSamplesResponse `json:"drivers"`
}

// DriverSamplesResponse is the per-driver telemetry summary.
type DriverSamplesResponse struct {
	DriverNumber int    `json:"driver_number"`
	Samples      uint64 `json:"samples"`
	MaxSpeed     uint16 `json:"max_speed"`
}

func (s *TimingServer) handleTelemetrySummary(w http.ResponseWriter, r *http.Request) {
	sessionKey, err := strconv.Atoi(chi.URLParam(r, "session_key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid session key")
		return
	}

	total, err := s.telemetry.CountSessionTelemetry(r.Context(), sessionKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	counts, err := s.telemetry.CountByDriver(r.Context(), sessionKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := TelemetrySummaryResponse{
		SessionKey:   sessionKey,
		TotalSamples: total,
		Drivers:      make([]DriverSamplesResponse, 0, len(counts)),
	}
	for _, c := range counts {
		resp.Drivers = append(resp.Drivers, DriverSamplesResponse{
			DriverNumber: c.DriverNumber,
			Samples:      c.Samples,
			MaxSpeed:     c.MaxSpeed,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Helper functions.

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
