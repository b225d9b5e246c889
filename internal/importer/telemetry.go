package importer

import (
	"context"
	"fmt"
	"log"

	"f1import/internal/f1api"
	"f1import/internal/sample"
	"f1import/internal/storage"
)

// DefaultBatchSize is the telemetry insert batch size.
const DefaultBatchSize = 1000

// TelemetryAPI fetches a session's car telemetry document.
type TelemetryAPI interface {
	CarData(ctx context.Context, sessionPath string) ([]f1api.CarSample, error)
}

// TelemetryStore receives telemetry batches.
type TelemetryStore interface {
	InsertTelemetryBatch(ctx context.Context, samples []storage.TelemetrySample) error
	DeleteSessionTelemetry(ctx context.Context, sessionKey int) error
}

// BatchPublisher publishes inserted telemetry batches to a live feed.
type BatchPublisher interface {
	PublishTelemetryBatch(sessionKey int, samples []storage.TelemetrySample) error
}

// TelemetryOptions configures a telemetry import.
type TelemetryOptions struct {
	DriverNumber int            // Keep only this driver's samples (0 = all).
	Limit        int            // Downsample to at most this many records (0 = all).
	BatchSize    int            // Insert batch size (0 = DefaultBatchSize).
	Replace      bool           // Delete the session's existing telemetry first.
	Publisher    BatchPublisher // Optional feed for inserted batches.
}

// ImportTelemetry loads a session's car telemetry. Samples are optionally
// filtered to one driver and uniformly downsampled, then inserted in
// batches. A failed batch is logged and counted by its size, the loop
// continues. Publish failures are logged but do not count against the
// import.
func ImportTelemetry(ctx context.Context, api TelemetryAPI, store TelemetryStore, sess storage.Session, opts TelemetryOptions) (Stats, error) {
	var stats Stats

	samples, err := api.CarData(ctx, sess.Path)
	if err != nil {
		return stats, fmt.Errorf("fetch car data: %w", err)
	}
	stats.Fetched = len(samples)

	if opts.DriverNumber != 0 {
		filtered := samples[:0]
		for _, s := range samples {
			if s.DriverNumber == opts.DriverNumber {
				filtered = append(filtered, s)
			}
		}
		samples = filtered
	}

	samples = sample.Downsample(samples, opts.Limit)
	stats.Kept = len(samples)

	if opts.Replace {
		if err := store.DeleteSessionTelemetry(ctx, sess.SessionKey); err != nil {
			return stats, fmt.Errorf("delete session telemetry: %w", err)
		}
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	for start := 0; start < len(samples); start += batchSize {
		end := start + batchSize
		if end > len(samples) {
			end = len(samples)
		}

		rows := make([]storage.TelemetrySample, 0, end-start)
		for _, s := range samples[start:end] {
			rows = append(rows, telemetryRow(sess.SessionKey, s))
		}

		if err := store.InsertTelemetryBatch(ctx, rows); err != nil {
			log.Printf("telemetry batch %d-%d: %v", start, end, err)
			stats.Errors += len(rows)
			continue
		}
		stats.Inserted += len(rows)

		if opts.Publisher != nil {
			if err := opts.Publisher.PublishTelemetryBatch(sess.SessionKey, rows); err != nil {
				log.Printf("publish telemetry batch %d-%d: %v", start, end, err)
			}
		}
	}

	return stats, nil
}
