package importer

import (
	"context"
	"fmt"
	"log"

	"f1import/internal/f1api"
	"f1import/internal/storage"
)

// IndexAPI fetches the per-year index document.
type IndexAPI interface {
	YearIndex(ctx context.Context, year int) (*f1api.YearIndex, error)
}

// IndexStore receives meeting and session rows.
type IndexStore interface {
	UpsertMeeting(ctx context.Context, m storage.Meeting) error
	UpsertSession(ctx context.Context, s storage.Session) error
}

// ImportIndex loads a year's meetings and sessions into the store. Each row
// is upserted independently; a failed row is logged and counted, the rest
// of the document still loads.
func ImportIndex(ctx context.Context, api IndexAPI, store IndexStore, year int) (Stats, error) {
	var stats Stats

	idx, err := api.YearIndex(ctx, year)
	if err != nil {
		return stats, fmt.Errorf("fetch year index: %w", err)
	}
	if idx.Year != 0 {
		year = idx.Year
	}

	for _, m := range idx.Meetings {
		stats.Fetched++
		if err := store.UpsertMeeting(ctx, meetingRow(year, m)); err != nil {
			log.Printf("meeting %d (%s): %v", m.Key, m.Name, err)
			stats.Errors++
			continue
		}
		stats.Inserted++

		for _, s := range m.Sessions {
			stats.Fetched++
			if err := store.UpsertSession(ctx, sessionRow(m.Key, s)); err != nil {
				log.Printf("session %d (%s %s): %v", s.Key, m.Name, s.Name, err)
				stats.Errors++
				continue
			}
			stats.Inserted++
		}
	}

	stats.Kept = stats.Fetched
	return stats, nil
}
