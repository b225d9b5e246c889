package importer

import (
	"context"
	"fmt"
	"log"

	"f1import/internal/f1api"
	"f1import/internal/storage"
)

// DriverAPI fetches a session's driver list.
type DriverAPI interface {
	DriverList(ctx context.Context, sessionPath string) ([]f1api.Driver, error)
}

// DriverStore receives driver rows.
type DriverStore interface {
	DeleteSessionDrivers(ctx context.Context, sessionKey int) (int64, error)
	InsertDriver(ctx context.Context, d storage.Driver) error
}

// ImportDrivers replaces a session's driver rows with the fetched list:
// delete existing rows, then insert one by one. A record that fails to
// reshape or insert is logged and counted, the loop continues.
func ImportDrivers(ctx context.Context, api DriverAPI, store DriverStore, sess storage.Session) (Stats, error) {
	var stats Stats

	drivers, err := api.DriverList(ctx, sess.Path)
	if err != nil {
		return stats, fmt.Errorf("fetch driver list: %w", err)
	}
	stats.Fetched = len(drivers)
	stats.Kept = len(drivers)

	deleted, err := store.DeleteSessionDrivers(ctx, sess.SessionKey)
	if err != nil {
		return stats, fmt.Errorf("delete session drivers: %w", err)
	}
	stats.Deleted = int(deleted)

	for _, d := range drivers {
		row, err := driverRow(sess.SessionKey, d)
		if err != nil {
			log.Printf("driver %s (%s): %v", d.RacingNumber, d.FullName, err)
			stats.Errors++
			continue
		}
		if err := store.InsertDriver(ctx, row); err != nil {
			log.Printf("driver %d (%s): insert: %v", row.DriverNumber, row.FullName, err)
			stats.Errors++
			continue
		}
		stats.Inserted++
	}

	return stats, nil
}
