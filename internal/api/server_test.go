package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"f1import/internal/storage"
)

// fakeSessionStore serves fixed rows for handler tests.
type fakeSessionStore struct {
	meetings    []storage.Meeting
	sessions    map[int][]storage.Session
	drivers     map[int][]storage.Driver
	raceControl map[int][]storage.RaceControlMessage
}

func (f *fakeSessionStore) ListMeetings(_ context.Context, year int) ([]storage.Meeting, error) {
	if year == 0 {
		return f.meetings, nil
	}
	var out []storage.Meeting
	for _, m := range f.meetings {
		if m.Year == year {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) ListSessions(_ context.Context, meetingKey int) ([]storage.Session, error) {
	return f.sessions[meetingKey], nil
}

func (f *fakeSessionStore) ListDrivers(_ context.Context, sessionKey int) ([]storage.Driver, error) {
	return f.drivers[sessionKey], nil
}

func (f *fakeSessionStore) ListRaceControl(_ context.Context, sessionKey int) ([]storage.RaceControlMessage, error) {
	return f.raceControl[sessionKey], nil
}

// fakeTelemetryStats serves fixed counts.
type fakeTelemetryStats struct {
	counts map[int][]storage.DriverSampleCount
}

func (f *fakeTelemetryStats) CountByDriver(_ context.Context, sessionKey int) ([]storage.DriverSampleCount, error) {
	return f.counts[sessionKey], nil
}

func (f *fakeTelemetryStats) CountSessionTelemetry(_ context.Context, sessionKey int) (uint64, error) {
	var total uint64
	for _, c := range f.counts[sessionKey] {
		total += c.Samples
	}
	return total, nil
}

func testStore() *fakeSessionStore {
	return &fakeSessionStore{
		meetings: []storage.Meeting{
			{MeetingKey: 1234, Year: 2026, Name: "Italian Grand Prix", Location: "Monza", CircuitName: "Monza"},
			{MeetingKey: 1100, Year: 2025, Name: "Italian Grand Prix", Location: "Monza"},
		},
		sessions: map[int][]storage.Session{
			1234: {
				{SessionKey: 9562, MeetingKey: 1234, Name: "Race", Type: "Race",
					StartDate: time.Date(2026, 9, 6, 13, 0, 0, 0, time.UTC)},
			},
		},
		drivers: map[int][]storage.Driver{
			9562: {
				{SessionKey: 9562, DriverNumber: 1, FullName: "Max VERSTAPPEN", Acronym: "VER"},
				{SessionKey: 9562, DriverNumber: 44, FullName: "Lewis HAMILTON", Acronym: "HAM"},
			},
		},
		raceControl: map[int][]storage.RaceControlMessage{
			9562: {
				{SessionKey: 9562, Category: "Flag", Flag: "GREEN", Scope: "Track", Message: "GREEN LIGHT - PIT EXIT OPEN"},
			},
		},
	}
}

func newTestServer(cfg Config) *TimingServer {
	return NewTimingServer(testStore(), &fakeTelemetryStats{
		counts: map[int][]storage.DriverSampleCount{
			9562: {
				{DriverNumber: 1, Samples: 45000, MaxSpeed: 348},
				{DriverNumber: 44, Samples: 44100, MaxSpeed: 342},
			},
		},
	}, cfg)
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestServer(Config{Port: 8081}).Router()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestAuthMiddleware(t *testing.T) {
	router := newTestServer(Config{
		Port:        8081,
		AuthEnabled: true,
		APIKeys:     []string{"test-key-123", "another-key"},
	}).Router()

	tests := []struct {
		name       string
		apiKey     string
		bearer     bool
		wantStatus int
	}{
		{
			name:       "no key",
			apiKey:     "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong key",
			apiKey:     "nope",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "valid key header",
			apiKey:     "test-key-123",
			wantStatus: http.StatusOK,
		},
		{
			name:       "valid bearer token",
			apiKey:     "another-key",
			bearer:     true,
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			if tt.apiKey != "" {
				if tt.bearer {
					req.Header.Set("Authorization", "Bearer "+tt.apiKey)
				} else {
					req.Header.Set("X-API-Key", tt.apiKey)
				}
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestListMeetings(t *testing.T) {
	router := newTestServer(Config{}).Router()

	req := httptest.NewRequest(http.MethodGet, "/meetings?year=2026", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var meetings []MeetingResponse
	if err := json.NewDecoder(rec.Body).Decode(&meetings); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(meetings) != 1 {
		t.Fatalf("got %d meetings, want 1 (year filter)", len(meetings))
	}
	if meetings[0].MeetingKey != 1234 || meetings[0].CircuitName != "Monza" {
		t.Errorf("meeting = %+v", meetings[0])
	}
}

func TestListMeetingsBadYear(t *testing.T) {
	router := newTestServer(Config{}).Router()

	req := httptest.NewRequest(http.MethodGet, "/meetings?year=next", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestListSessionDrivers(t *testing.T) {
	router := newTestServer(Config{}).Router()

	req := httptest.NewRequest(http.MethodGet, "/sessions/9562/drivers", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var drivers []DriverResponse
	if err := json.NewDecoder(rec.Body).Decode(&drivers); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(drivers) != 2 || drivers[1].Acronym != "HAM" {
		t.Errorf("drivers = %+v", drivers)
	}
}

func TestListSessionDriversNotImported(t *testing.T) {
	router := newTestServer(Config{}).Router()

	req := httptest.NewRequest(http.MethodGet, "/sessions/999/drivers", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestTelemetrySummary(t *testing.T) {
	router := newTestServer(Config{}).Router()

	req := httptest.NewRequest(http.MethodGet, "/sessions/9562/telemetry", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp TelemetrySummaryResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TotalSamples != 89100 {
		t.Errorf("total = %d, want 89100", resp.TotalSamples)
	}
	if len(resp.Drivers) != 2 || resp.Drivers[0].MaxSpeed != 348 {
		t.Errorf("drivers = %+v", resp.Drivers)
	}
}
