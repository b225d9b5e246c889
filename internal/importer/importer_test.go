package importer

import (
	"context"
	"errors"
	"testing"
	"time"

	"f1import/internal/f1api"
	"f1import/internal/storage"
)

func ts(t time.Time) f1api.Timestamp {
	return f1api.Timestamp{Time: t}
}

var sessionStart = time.Date(2026, 9, 6, 13, 0, 0, 0, time.UTC)

// fakeAPI serves canned documents for every fetcher interface.
type fakeAPI struct {
	index       *f1api.YearIndex
	drivers     []f1api.Driver
	carData     []f1api.CarSample
	raceControl []f1api.RaceControlMessage
	err         error
}

func (f *fakeAPI) YearIndex(context.Context, int) (*f1api.YearIndex, error) {
	return f.index, f.err
}

func (f *fakeAPI) DriverList(context.Context, string) ([]f1api.Driver, error) {
	return f.drivers, f.err
}

func (f *fakeAPI) CarData(context.Context, string) ([]f1api.CarSample, error) {
	return f.carData, f.err
}

func (f *fakeAPI) RaceControl(context.Context, string) ([]f1api.RaceControlMessage, error) {
	return f.raceControl, f.err
}

// fakeStore records written rows and can fail selected operations.
type fakeStore struct {
	meetings      []storage.Meeting
	sessions      []storage.Session
	drivers       []storage.Driver
	telemetry     []storage.TelemetrySample
	raceControl   []storage.RaceControlMessage
	preexisting   int64
	telemetryGone bool

	failDriverNumber int // InsertDriver fails for this driver number.
	failBatchAfter   int // InsertTelemetryBatch fails after this many batches (0 = never).
	batches          int
}

func (f *fakeStore) UpsertMeeting(_ context.Context, m storage.Meeting) error {
	f.meetings = append(f.meetings, m)
	return nil
}

func (f *fakeStore) UpsertSession(_ context.Context, s storage.Session) error {
	f.sessions = append(f.sessions, s)
	return nil
}

func (f *fakeStore) DeleteSessionDrivers(context.Context, int) (int64, error) {
	return f.preexisting, nil
}

func (f *fakeStore) InsertDriver(_ context.Context, d storage.Driver) error {
	if f.failDriverNumber != 0 && d.DriverNumber == f.failDriverNumber {
		return errors.New("duplicate key")
	}
	f.drivers = append(f.drivers, d)
	return nil
}

func (f *fakeStore) InsertTelemetryBatch(_ context.Context, samples []storage.TelemetrySample) error {
	f.batches++
	if f.failBatchAfter != 0 && f.batches > f.failBatchAfter {
		return errors.New("connection reset")
	}
	f.telemetry = append(f.telemetry, samples...)
	return nil
}

func (f *fakeStore) DeleteSessionTelemetry(context.Context, int) error {
	f.telemetryGone = true
	return nil
}

func (f *fakeStore) DeleteRaceControl(context.Context, int) (int64, error) {
	return f.preexisting, nil
}

func (f *fakeStore) InsertRaceControl(_ context.Context, m storage.RaceControlMessage) error {
	f.raceControl = append(f.raceControl, m)
	return nil
}

// fakePublisher records published batches.
type fakePublisher struct {
	batches [][]storage.TelemetrySample
}

func (p *fakePublisher) PublishTelemetryBatch(_ int, samples []storage.TelemetrySample) error {
	p.batches = append(p.batches, samples)
	return nil
}

var raceSession = storage.Session{
	SessionKey: 9562,
	MeetingKey: 1234,
	Name:       "Race",
	Type:       "Race",
	Path:       "2026/2026-09-06_Italian_Grand_Prix/2026-09-06_Race/",
}

func TestImportIndex(t *testing.T) {
	api := &fakeAPI{
		index: &f1api.YearIndex{
			Year: 2026,
			Meetings: []f1api.Meeting{
				{
					Key:      1234,
					Name:     "Italian Grand Prix",
					Location: "Monza",
					Country:  f1api.Country{Code: "ITA", Name: "Italy"},
					Circuit:  f1api.Circuit{ShortName: "Monza"},
					Sessions: []f1api.Session{
						{Key: 9560, Type: "Practice", Name: "Practice 1", StartDate: ts(sessionStart)},
						{Key: 9562, Type: "Race", Name: "Race", StartDate: ts(sessionStart.Add(48 * time.Hour))},
					},
				},
			},
		},
	}
	store := &fakeStore{}

	stats, err := ImportIndex(context.Background(), api, store, 2026)
	if err != nil {
		t.Fatalf("import index: %v", err)
	}

	if stats.Inserted != 3 || stats.Errors != 0 {
		t.Errorf("stats = %s, want inserted=3 errors=0", stats)
	}
	if len(store.meetings) != 1 || len(store.sessions) != 2 {
		t.Fatalf("stored %d meetings, %d sessions", len(store.meetings), len(store.sessions))
	}
	if store.meetings[0].Year != 2026 || store.meetings[0].CircuitName != "Monza" {
		t.Errorf("meeting row = %+v", store.meetings[0])
	}
	if store.sessions[1].MeetingKey != 1234 || store.sessions[1].Type != "Race" {
		t.Errorf("session row = %+v", store.sessions[1])
	}
}

func TestImportDrivers(t *testing.T) {
	api := &fakeAPI{
		drivers: []f1api.Driver{
			{RacingNumber: "1", BroadcastName: "M VERSTAPPEN", FullName: "Max VERSTAPPEN", Tla: "VER", TeamName: "Red Bull Racing"},
			{RacingNumber: "44", BroadcastName: "L HAMILTON", FullName: "Lewis HAMILTON", Tla: "HAM", TeamName: "Ferrari"},
		},
	}
	store := &fakeStore{preexisting: 20}

	stats, err := ImportDrivers(context.Background(), api, store, raceSession)
	if err != nil {
		t.Fatalf("import drivers: %v", err)
	}

	if stats.Fetched != 2 || stats.Deleted != 20 || stats.Inserted != 2 || stats.Errors != 0 {
		t.Errorf("stats = %s", stats)
	}
	if store.drivers[1].DriverNumber != 44 || store.drivers[1].Acronym != "HAM" {
		t.Errorf("driver row = %+v", store.drivers[1])
	}
	if store.drivers[0].SessionKey != 9562 {
		t.Errorf("driver session key = %d, want 9562", store.drivers[0].SessionKey)
	}
}

func TestImportDriversCountsBadRecords(t *testing.T) {
	api := &fakeAPI{
		drivers: []f1api.Driver{
			{RacingNumber: "1", FullName: "Max VERSTAPPEN"},
			{RacingNumber: "not-a-number", FullName: "Broken ENTRY"},
			{RacingNumber: "16", FullName: "Charles LECLERC"},
		},
	}
	store := &fakeStore{failDriverNumber: 16}

	stats, err := ImportDrivers(context.Background(), api, store, raceSession)
	if err != nil {
		t.Fatalf("import drivers: %v", err)
	}

	// One reshape failure, one insert failure; the loop keeps going.
	if stats.Inserted != 1 || stats.Errors != 2 {
		t.Errorf("stats = %s, want inserted=1 errors=2", stats)
	}
	if len(store.drivers) != 1 || store.drivers[0].DriverNumber != 1 {
		t.Errorf("stored drivers = %+v", store.drivers)
	}
}

func carSamples(n int) []f1api.CarSample {
	out := make([]f1api.CarSample, n)
	for i := range out {
		driver := 1
		if i%2 == 1 {
			driver = 44
		}
		out[i] = f1api.CarSample{
			Date:         ts(sessionStart.Add(time.Duration(i) * 240 * time.Millisecond)),
			DriverNumber: driver,
			RPM:          11000 + i,
			Speed:        200 + i%120,
			Gear:         7,
			Throttle:     99,
			DRS:          12,
		}
	}
	return out
}

func TestImportTelemetry(t *testing.T) {
	api := &fakeAPI{carData: carSamples(2500)}
	store := &fakeStore{}

	stats, err := ImportTelemetry(context.Background(), api, store, raceSession, TelemetryOptions{})
	if err != nil {
		t.Fatalf("import telemetry: %v", err)
	}

	if stats.Fetched != 2500 || stats.Kept != 2500 || stats.Inserted != 2500 || stats.Errors != 0 {
		t.Errorf("stats = %s", stats)
	}
	// Default batch size of 1000 means three batches.
	if store.batches != 3 {
		t.Errorf("batches = %d, want 3", store.batches)
	}
	if store.telemetry[0].SessionKey != 9562 || store.telemetry[0].RPM != 11000 {
		t.Errorf("first row = %+v", store.telemetry[0])
	}
}

func TestImportTelemetryDriverFilterAndLimit(t *testing.T) {
	api := &fakeAPI{carData: carSamples(2000)}
	store := &fakeStore{}

	stats, err := ImportTelemetry(context.Background(), api, store, raceSession, TelemetryOptions{
		DriverNumber: 44,
		Limit:        100,
	})
	if err != nil {
		t.Fatalf("import telemetry: %v", err)
	}

	if stats.Fetched != 2000 {
		t.Errorf("fetched = %d, want 2000", stats.Fetched)
	}
	// 1000 samples for driver 44, downsampled to 100.
	if stats.Kept != 100 || stats.Inserted != 100 {
		t.Errorf("stats = %s, want kept=100 inserted=100", stats)
	}
	for _, row := range store.telemetry {
		if row.DriverNumber != 44 {
			t.Fatalf("row for driver %d leaked through filter", row.DriverNumber)
		}
	}
}

func TestImportTelemetryFailedBatchCountsAndContinues(t *testing.T) {
	api := &fakeAPI{carData: carSamples(250)}
	store := &fakeStore{failBatchAfter: 1}

	stats, err := ImportTelemetry(context.Background(), api, store, raceSession, TelemetryOptions{BatchSize: 100})
	if err != nil {
		t.Fatalf("import telemetry: %v", err)
	}

	// First batch of 100 lands, the remaining two fail (100 + 50 records).
	if stats.Inserted != 100 || stats.Errors != 150 {
		t.Errorf("stats = %s, want inserted=100 errors=150", stats)
	}
	if store.batches != 3 {
		t.Errorf("batches attempted = %d, want 3", store.batches)
	}
}

func TestImportTelemetryReplaceAndPublish(t *testing.T) {
	api := &fakeAPI{carData: carSamples(150)}
	store := &fakeStore{}
	pub := &fakePublisher{}

	stats, err := ImportTelemetry(context.Background(), api, store, raceSession, TelemetryOptions{
		BatchSize: 100,
		Replace:   true,
		Publisher: pub,
	})
	if err != nil {
		t.Fatalf("import telemetry: %v", err)
	}

	if !store.telemetryGone {
		t.Error("replace did not delete existing telemetry")
	}
	if stats.Inserted != 150 {
		t.Errorf("inserted = %d, want 150", stats.Inserted)
	}
	if len(pub.batches) != 2 {
		t.Fatalf("published %d batches, want 2", len(pub.batches))
	}
	if len(pub.batches[0]) != 100 || len(pub.batches[1]) != 50 {
		t.Errorf("published batch sizes = %d, %d", len(pub.batches[0]), len(pub.batches[1]))
	}
}

func TestImportRaceControl(t *testing.T) {
	lap := 1
	sector := 7
	api := &fakeAPI{
		raceControl: []f1api.RaceControlMessage{
			{UTC: ts(sessionStart), Category: "Flag", Flag: "GREEN", Scope: "Track", Message: "GREEN LIGHT - PIT EXIT OPEN", Lap: &lap},
			{UTC: ts(sessionStart.Add(time.Minute)), Category: "Flag", Flag: "YELLOW", Scope: "Sector", Sector: &sector, Message: "YELLOW IN TRACK SECTOR 7", Lap: &lap},
			{UTC: ts(sessionStart.Add(2 * time.Minute)), Category: "Other", Scope: "Driver", RacingNumber: "55", Message: "CAR 55 (SAI) TRACK LIMITS", Lap: &lap},
		},
	}
	store := &fakeStore{preexisting: 5}

	stats, err := ImportRaceControl(context.Background(), api, store, raceSession)
	if err != nil {
		t.Fatalf("import race control: %v", err)
	}

	if stats.Fetched != 3 || stats.Deleted != 5 || stats.Inserted != 3 || stats.Errors != 0 {
		t.Errorf("stats = %s", stats)
	}

	// Track-wide messages carry no driver number.
	if store.raceControl[0].DriverNumber != nil {
		t.Errorf("track message driver = %v, want nil", *store.raceControl[0].DriverNumber)
	}
	if store.raceControl[1].Sector == nil || *store.raceControl[1].Sector != 7 {
		t.Errorf("sector message = %+v", store.raceControl[1])
	}
	if store.raceControl[2].DriverNumber == nil || *store.raceControl[2].DriverNumber != 55 {
		t.Errorf("driver message = %+v", store.raceControl[2])
	}
}

func TestImportFetchErrorAborts(t *testing.T) {
	api := &fakeAPI{err: errors.New("status 404")}
	store := &fakeStore{}

	if _, err := ImportDrivers(context.Background(), api, store, raceSession); err == nil {
		t.Error("driver import with failing fetch did not error")
	}
	if _, err := ImportTelemetry(context.Background(), api, store, raceSession, TelemetryOptions{}); err == nil {
		t.Error("telemetry import with failing fetch did not error")
	}
	if _, err := ImportRaceControl(context.Background(), api, store, raceSession); err == nil {
		t.Error("race control import with failing fetch did not error")
	}
	if len(store.drivers)+len(store.telemetry)+len(store.raceControl) != 0 {
		t.Error("rows written despite fetch failure")
	}
}
