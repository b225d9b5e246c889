package resolve

import (
	"context"
	"errors"
	"testing"

	"f1import/internal/storage"
)

// fakeStore serves fixed meeting and session rows.
type fakeStore struct {
	meetings []storage.Meeting
	sessions map[int][]storage.Session
}

func (f *fakeStore) ListMeetings(_ context.Context, year int) ([]storage.Meeting, error) {
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

func (f *fakeStore) ListSessions(_ context.Context, meetingKey int) ([]storage.Session, error) {
	return f.sessions[meetingKey], nil
}

func testStore() *fakeStore {
	return &fakeStore{
		meetings: []storage.Meeting{
			{MeetingKey: 1229, Year: 2026, Name: "Bahrain Grand Prix"},
			{MeetingKey: 1234, Year: 2026, Name: "Italian Grand Prix"},
			{MeetingKey: 1240, Year: 2026, Name: "Singapore Grand Prix"},
		},
		sessions: map[int][]storage.Session{
			1234: {
				{SessionKey: 9560, MeetingKey: 1234, Type: "Practice", Name: "Practice 1",
					Path: "2026/2026-09-06_Italian_Grand_Prix/2026-09-04_Practice_1/"},
				{SessionKey: 9561, MeetingKey: 1234, Type: "Qualifying", Name: "Qualifying",
					Path: "2026/2026-09-06_Italian_Grand_Prix/2026-09-05_Qualifying/"},
				{SessionKey: 9562, MeetingKey: 1234, Type: "Race", Name: "Race",
					Path: "2026/2026-09-06_Italian_Grand_Prix/2026-09-06_Race/"},
			},
			1229: {
				{SessionKey: 9465, MeetingKey: 1229, Type: "Race", Name: "Race",
					Path: "2026/2026-03-01_Bahrain_Grand_Prix/2026-03-01_Race/"},
			},
		},
	}
}

func TestSessionResolution(t *testing.T) {
	tests := []struct {
		name    string
		race    string
		ident   string
		wantKey int
	}{
		{
			name:    "path substring match",
			race:    "italian",
			ident:   "qualifying",
			wantKey: 9561,
		},
		{
			name:    "case-insensitive race name",
			race:    "ITALIAN",
			ident:   "Race",
			wantKey: 9562,
		},
		{
			name:    "partial race name",
			race:    "bahr",
			ident:   "race",
			wantKey: 9465,
		},
		{
			name:    "path match wins over type fallback",
			race:    "italian",
			ident:   "practice_1",
			wantKey: 9560,
		},
		{
			name:    "practice shorthand",
			race:    "italian",
			ident:   "prac",
			wantKey: 9560,
		},
	}

	ctx := context.Background()
	store := testStore()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := Session(ctx, store, 0, tt.race, tt.ident)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if sess.SessionKey != tt.wantKey {
				t.Errorf("got session key %d, want %d", sess.SessionKey, tt.wantKey)
			}
		})
	}
}

func TestSessionResolutionTypeFallback(t *testing.T) {
	// Paths with no usable substring force the type fallback.
	store := &fakeStore{
		meetings: []storage.Meeting{{MeetingKey: 7, Year: 2026, Name: "Monaco Grand Prix"}},
		sessions: map[int][]storage.Session{
			7: {
				{SessionKey: 100, MeetingKey: 7, Type: "Practice", Path: "p/1/"},
				{SessionKey: 101, MeetingKey: 7, Type: "Qualifying", Path: "p/2/"},
			},
		},
	}

	sess, err := Session(context.Background(), store, 0, "monaco", "quali")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if sess.SessionKey != 101 {
		t.Errorf("got session key %d, want 101", sess.SessionKey)
	}
}

func TestSessionResolutionFirstMeetingWins(t *testing.T) {
	// "grand prix" matches every meeting; the first one must win.
	store := testStore()
	sess, err := Session(context.Background(), store, 0, "grand prix", "race")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if sess.SessionKey != 9465 {
		t.Errorf("got session key %d, want 9465 (first meeting)", sess.SessionKey)
	}
}

func TestSessionResolutionNotFound(t *testing.T) {
	ctx := context.Background()
	store := testStore()

	_, err := Session(ctx, store, 0, "belgian", "race")
	if !errors.Is(err, ErrMeetingNotFound) {
		t.Errorf("unknown race: got %v, want ErrMeetingNotFound", err)
	}

	_, err = Session(ctx, store, 0, "italian", "sprint")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("unknown session: got %v, want ErrSessionNotFound", err)
	}

	// Meeting with no sessions imported.
	_, err = Session(ctx, store, 0, "singapore", "race")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("meeting without sessions: got %v, want ErrSessionNotFound", err)
	}
}

func TestSessionResolutionYearFilter(t *testing.T) {
	store := testStore()
	store.meetings = append([]storage.Meeting{{MeetingKey: 900, Year: 2025, Name: "Italian Grand Prix"}}, store.meetings...)
	store.sessions[900] = []storage.Session{
		{SessionKey: 8000, MeetingKey: 900, Type: "Race", Path: "2025/italian/race/"},
	}

	sess, err := Session(context.Background(), store, 2026, "italian", "race")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if sess.SessionKey != 9562 {
		t.Errorf("got session key %d, want 9562 (2026 meeting)", sess.SessionKey)
	}
}
