// Package feed publishes imported telemetry batches to NATS so downstream
// consumers (dashboards, live graphs) can follow an import as it runs.
package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"f1import/internal/storage"
)

// TelemetrySubjectPrefix is the subject root for telemetry batches.
const TelemetrySubjectPrefix = "f1.telemetry"

// Publisher publishes telemetry batches to a NATS server.
type Publisher struct {
	nc *nats.Conn
}

// Connect connects to the NATS server at the given URL. An empty URL uses
// the default local server.
func Connect(url string) (*Publisher, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url,
		nats.Name("f1import"),
		nats.Timeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{nc: nc}, nil
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() {
	if p.nc == nil {
		return
	}
	_ = p.nc.Flush()
	p.nc.Close()
}

// TelemetrySubject returns the subject for a session's telemetry batches.
func TelemetrySubject(sessionKey int) string {
	return fmt.Sprintf("%s.%d", TelemetrySubjectPrefix, sessionKey)
}

// batchMessage is the wire format of one published batch.
type batchMessage struct {
	SessionKey int               `json:"session_key"`
	Count      int               `json:"count"`
	Samples    []telemetrySample `json:"samples"`
}

type telemetrySample struct {
	DriverNumber int       `json:"driver_number"`
	SampledAt    time.Time `json:"sampled_at"`
	RPM          int       `json:"rpm"`
	Speed        int       `json:"speed"`
	Gear         int       `json:"gear"`
	Throttle     int       `json:"throttle"`
	Brake        int       `json:"brake"`
	DRS          int       `json:"drs"`
}

// PublishTelemetryBatch publishes one inserted batch as a single JSON
// message on the session's subject.
func (p *Publisher) PublishTelemetryBatch(sessionKey int, samples []storage.TelemetrySample) error {
	if len(samples) == 0 {
		return nil
	}

	msg := batchMessage{
		SessionKey: sessionKey,
		Count:      len(samples),
		Samples:    make([]telemetrySample, 0, len(samples)),
	}
	for _, s := range samples {
		msg.Samples = append(msg.Samples, telemetrySample{
			DriverNumber: s.DriverNumber,
			SampledAt:    s.SampledAt,
			RPM:          s.RPM,
			Speed:        s.Speed,
			Gear:         s.Gear,
			Throttle:     s.Throttle,
			Brake:        s.Brake,
			DRS:          s.DRS,
		})
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal telemetry batch: %w", err)
	}
	if err := p.nc.Publish(TelemetrySubject(sessionKey), payload); err != nil {
		return fmt.Errorf("publish telemetry batch: %w", err)
	}
	return nil
}
