package f1api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Timestamp handles the timing feed's mixed timestamp formats: RFC3339 with
// or without fractional seconds, and zone-less local-circuit timestamps,
// which are treated as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// UnmarshalJSON decodes a timestamp string, trying each known layout.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("parse timestamp %q: no known layout matched", s)
}

// MarshalJSON encodes the timestamp as RFC3339.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return json.Marshal("")
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// YearIndex is the per-year index document listing all meetings and their
// sessions.
type YearIndex struct {
	Year     int       `json:"Year"`
	Meetings []Meeting `json:"Meetings"`
}

// Meeting is one race weekend.
type Meeting struct {
	Key          int       `json:"Key"`
	Code         string    `json:"Code"`
	Name         string    `json:"Name"`
	OfficialName string    `json:"OfficialName"`
	Location     string    `json:"Location"`
	Country      Country   `json:"Country"`
	Circuit      Circuit   `json:"Circuit"`
	Sessions     []Session `json:"Sessions"`
}

// Country identifies the host country of a meeting.
type Country struct {
	Key  int    `json:"Key"`
	Code string `json:"Code"`
	Name string `json:"Name"`
}

// Circuit identifies the circuit of a meeting.
type Circuit struct {
	Key       int    `json:"Key"`
	ShortName string `json:"ShortName"`
}

// Session is one timed session within a meeting. Key is the feed's internal
// numeric session key; Path is the resource prefix for per-session documents.
type Session struct {
	Key       int       `json:"Key"`
	Type      string    `json:"Type"`
	Name      string    `json:"Name"`
	StartDate Timestamp `json:"StartDate"`
	EndDate   Timestamp `json:"EndDate"`
	GmtOffset string    `json:"GmtOffset"`
	Path      string    `json:"Path"`
}

// Driver is one entry of a session's DriverList document.
type Driver struct {
	RacingNumber  string `json:"RacingNumber"`
	BroadcastName string `json:"BroadcastName"`
	FullName      string `json:"FullName"`
	Tla           string `json:"Tla"`
	TeamName      string `json:"TeamName"`
	TeamColour    string `json:"TeamColour"`
	FirstName     string `json:"FirstName"`
	LastName      string `json:"LastName"`
	CountryCode   string `json:"CountryCode"`
	HeadshotURL   string `json:"HeadshotUrl"`
}

// CarSample is one car telemetry sample.
type CarSample struct {
	Date         Timestamp `json:"date"`
	DriverNumber int       `json:"driver_number"`
	RPM          int       `json:"rpm"`
	Speed        int       `json:"speed"`
	Gear         int       `json:"n_gear"`
	Throttle     int       `json:"throttle"`
	Brake        int       `json:"brake"`
	DRS          int       `json:"drs"`
}

// RaceControlMessage is one race-control message. Sector and Lap are
// pointers because the feed omits them for track-wide messages.
type RaceControlMessage struct {
	UTC          Timestamp `json:"Utc"`
	Category     string    `json:"Category"`
	Flag         string    `json:"Flag"`
	Scope        string    `json:"Scope"`
	Sector       *int      `json:"Sector"`
	Message      string    `json:"Message"`
	RacingNumber string    `json:"RacingNumber"`
	Lap          *int      `json:"Lap"`
}
