// Package resolve maps human-readable race and session names to the timing
// feed's internal numeric session keys, using the meetings and sessions
// tables loaded by the index import.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"f1import/internal/storage"
)

// ErrMeetingNotFound is returned when no meeting name contains the query.
var ErrMeetingNotFound = errors.New("no meeting matches")

// ErrSessionNotFound is returned when a meeting matched but none of its
// sessions did.
var ErrSessionNotFound = errors.New("no session matches")

// Store is the subset of storage used for resolution.
type Store interface {
	ListMeetings(ctx context.Context, year int) ([]storage.Meeting, error)
	ListSessions(ctx context.Context, meetingKey int) ([]storage.Session, error)
}

// Session resolves a partial race name and partial session identifier to a
// session row. Matching is deliberately simple: case-insensitive substring,
// first match wins, no ranking.
//
//  1. The race name is matched against meeting names.
//  2. Within the matched meeting, the session identifier is matched against
//     session paths; if nothing matches, against session types.
//
// A year of 0 searches all imported years.
func Session(ctx context.Context, store Store, year int, raceName, sessionIdent string) (*storage.Session, error) {
	meetings, err := store.ListMeetings(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}

	meeting, ok := matchMeeting(meetings, raceName)
	if !ok {
		return nil, fmt.Errorf("race %q: %w", raceName, ErrMeetingNotFound)
	}

	sessions, err := store.ListSessions(ctx, meeting.MeetingKey)
	if err != nil {
		return nil, fmt.Errorf("list sessions for meeting %d: %w", meeting.MeetingKey, err)
	}

	if sess, ok := matchSession(sessions, sessionIdent); ok {
		return sess, nil
	}
	return nil, fmt.Errorf("session %q in %q: %w", sessionIdent, meeting.Name, ErrSessionNotFound)
}

func matchMeeting(meetings []storage.Meeting, raceName string) (*storage.Meeting, bool) {
	needle := strings.ToLower(strings.TrimSpace(raceName))
	for i := range meetings {
		if strings.Contains(strings.ToLower(meetings[i].Name), needle) {
			return &meetings[i], true
		}
	}
	return nil, false
}

func matchSession(sessions []storage.Session, ident string) (*storage.Session, bool) {
	needle := strings.ToLower(strings.TrimSpace(ident))

	for i := range sessions {
		if strings.Contains(strings.ToLower(sessions[i].Path), needle) {
			return &sessions[i], true
		}
	}
	// Fall back to the session type column.
	for i := range sessions {
		if strings.Contains(strings.ToLower(sessions[i].Type), needle) {
			return &sessions[i], true
		}
	}
	return nil, false
}
