package importer

import (
	"context"
	"fmt"
	"log"

	"f1import/internal/f1api"
	"f1import/internal/storage"
)

// RaceControlAPI fetches a session's race-control messages.
type RaceControlAPI interface {
	RaceControl(ctx context.Context, sessionPath string) ([]f1api.RaceControlMessage, error)
}

// RaceControlStore receives race-control rows.
type RaceControlStore interface {
	DeleteRaceControl(ctx context.Context, sessionKey int) (int64, error)
	InsertRaceControl(ctx context.Context, m storage.RaceControlMessage) error
}

// ImportRaceControl replaces a session's race-control rows with the fetched
// messages: delete existing rows, then insert one by one with per-record
// error counting.
func ImportRaceControl(ctx context.Context, api RaceControlAPI, store RaceControlStore, sess storage.Session) (Stats, error) {
	var stats Stats

	messages, err := api.RaceControl(ctx, sess.Path)
	if err != nil {
		return stats, fmt.Errorf("fetch race control messages: %w", err)
	}
	stats.Fetched = len(messages)
	stats.Kept = len(messages)

	deleted, err := store.DeleteRaceControl(ctx, sess.SessionKey)
	if err != nil {
		return stats, fmt.Errorf("delete race control messages: %w", err)
	}
	stats.Deleted = int(deleted)

	for i, m := range messages {
		row, err := raceControlRow(sess.SessionKey, m)
		if err != nil {
			log.Printf("race control message %d: %v", i, err)
			stats.Errors++
			continue
		}
		if err := store.InsertRaceControl(ctx, row); err != nil {
			log.Printf("race control message %d: insert: %v", i, err)
			stats.Errors++
			continue
		}
		stats.Inserted++
	}

	return stats, nil
}
