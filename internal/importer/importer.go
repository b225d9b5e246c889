// Package importer implements the individual import operations: year index,
// driver lists, car telemetry, and race-control messages. Each import is
// synchronous: fetch a JSON document, reshape its records into storage rows,
// write them out, and return counters. Failed records are logged and
// counted, never retried.
package importer

import (
	"fmt"
	"strconv"
	"strings"

	"f1import/internal/f1api"
	"f1import/internal/storage"
)

// Resource names recorded in the import journal.
const (
	ResourceDrivers     = "drivers"
	ResourceTelemetry   = "telemetry"
	ResourceRaceControl = "racecontrol"
)

// Stats holds the counters of one import run.
type Stats struct {
	Fetched  int // Records in the fetched document.
	Kept     int // Records remaining after filtering/downsampling.
	Deleted  int // Pre-existing rows removed before insert.
	Inserted int // Rows written.
	Errors   int // Records or batches that failed.
}

// String formats the counters as a one-line summary.
func (s Stats) String() string {
	return fmt.Sprintf("fetched=%d kept=%d deleted=%d inserted=%d errors=%d",
		s.Fetched, s.Kept, s.Deleted, s.Inserted, s.Errors)
}

// meetingRow reshapes an index meeting into a storage row.
func meetingRow(year int, m f1api.Meeting) storage.Meeting {
	return storage.Meeting{
		MeetingKey:   m.Key,
		Year:         year,
		Code:         m.Code,
		Name:         m.Name,
		OfficialName: m.OfficialName,
		Location:     m.Location,
		CountryCode:  m.Country.Code,
		CountryName:  m.Country.Name,
		CircuitName:  m.Circuit.ShortName,
	}
}

// sessionRow reshapes an index session into a storage row.
func sessionRow(meetingKey int, s f1api.Session) storage.Session {
	return storage.Session{
		SessionKey: s.Key,
		MeetingKey: meetingKey,
		Name:       s.Name,
		Type:       s.Type,
		Path:       s.Path,
		StartDate:  s.StartDate.Time,
		EndDate:    s.EndDate.Time,
		GmtOffset:  s.GmtOffset,
	}
}

// driverRow reshapes a driver-list entry into a storage row. The feed
// carries racing numbers as strings.
func driverRow(sessionKey int, d f1api.Driver) (storage.Driver, error) {
	num, err := strconv.Atoi(strings.TrimSpace(d.RacingNumber))
	if err != nil {
		return storage.Driver{}, fmt.Errorf("racing number %q: %w", d.RacingNumber, err)
	}
	return storage.Driver{
		SessionKey:    sessionKey,
		DriverNumber:  num,
		BroadcastName: d.BroadcastName,
		FullName:      d.FullName,
		Acronym:       d.Tla,
		TeamName:      d.TeamName,
		TeamColour:    d.TeamColour,
		FirstName:     d.FirstName,
		LastName:      d.LastName,
		CountryCode:   d.CountryCode,
		HeadshotURL:   d.HeadshotURL,
	}, nil
}

// telemetryRow reshapes a car telemetry sample into a storage row.
func telemetryRow(sessionKey int, s f1api.CarSample) storage.TelemetrySample {
	return storage.TelemetrySample{
		SessionKey:   sessionKey,
		DriverNumber: s.DriverNumber,
		SampledAt:    s.Date.Time,
		RPM:          s.RPM,
		Speed:        s.Speed,
		Gear:         s.Gear,
		Throttle:     s.Throttle,
		Brake:        s.Brake,
		DRS:          s.DRS,
	}
}

// raceControlRow reshapes a race-control message into a storage row. Racing
// number is empty for track-wide messages and becomes NULL.
func raceControlRow(sessionKey int, m f1api.RaceControlMessage) (storage.RaceControlMessage, error) {
	row := storage.RaceControlMessage{
		SessionKey: sessionKey,
		OccurredAt: m.UTC.Time,
		Category:   m.Category,
		Flag:       m.Flag,
		Scope:      m.Scope,
		Sector:     m.Sector,
		Message:    m.Message,
		Lap:        m.Lap,
	}
	if num := strings.TrimSpace(m.RacingNumber); num != "" {
		n, err := strconv.Atoi(num)
		if err != nil {
			return storage.RaceControlMessage{}, fmt.Errorf("racing number %q: %w", m.RacingNumber, err)
		}
		row.DriverNumber = &n
	}
	return row, nil
}
