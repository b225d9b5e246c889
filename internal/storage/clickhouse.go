// Package storage provides persistent storage for imported Formula 1 timing
// data: PostgreSQL for reference rows (meetings, sessions, drivers,
// race-control messages), ClickHouse for high-volume car telemetry, and a
// local SQLite journal of completed import runs.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// ClickHouseDB wraps a ClickHouse connection for telemetry storage.
type ClickHouseDB struct {
	conn driver.Conn
}

// Conn returns the underlying ClickHouse connection for direct queries.
func (d *ClickHouseDB) Conn() driver.Conn {
	return d.conn
}

// OpenClickHouse opens a connection to ClickHouse.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	// Test the connection.
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection.
func (d *ClickHouseDB) Close() error {
	return d.conn.Close()
}

// CreateSchema creates the ClickHouse tables.
func (d *ClickHouseDB) CreateSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS car_telemetry (
			session_key     UInt32,
			driver_number   UInt16,
			sampled_at      DateTime64(3),
			rpm             UInt16,
			speed           UInt16,
			gear            Int8,
			throttle        UInt8,
			brake           UInt8,
			drs             UInt8,
			imported_at     DateTime64(3) DEFAULT now64(3)
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(sampled_at)
		ORDER BY (session_key, driver_number, sampled_at)
		SETTINGS index_granularity = 8192`,
	}

	for _, q := range queries {
		if err := d.conn.Exec(ctx, q); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	return nil
}

// TelemetrySample represents one car telemetry row.
type TelemetrySample struct {
	SessionKey   int
	DriverNumber int
	SampledAt    time.Time
	RPM          int
	Speed        int
	Gear         int
	Throttle     int
	Brake        int
	DRS          int
}

// InsertTelemetryBatch stores a batch of telemetry samples efficiently.
func (d *ClickHouseDB) InsertTelemetryBatch(ctx context.Context, samples []TelemetrySample) error {
	if len(samples) == 0 {
		return nil
	}

	batch, err := d.conn.PrepareBatch(ctx, `
		INSERT INTO car_telemetry (session_key, driver_number, sampled_at, rpm, speed, gear, throttle, brake, drs)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, s := range samples {
		err = batch.Append(
			uint32(s.SessionKey), uint16(s.DriverNumber), s.SampledAt,
			uint16(s.RPM), uint16(s.Speed), int8(s.Gear),
			uint8(s.Throttle), uint8(s.Brake), uint8(s.DRS),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// DeleteSessionTelemetry removes all telemetry rows for a session. Uses a
// lightweight delete, which ClickHouse applies asynchronously.
func (d *ClickHouseDB) DeleteSessionTelemetry(ctx context.Context, sessionKey int) error {
	err := d.conn.Exec(ctx, `DELETE FROM car_telemetry WHERE session_key = ?`, uint32(sessionKey))
	if err != nil {
		return fmt.Errorf("delete session telemetry: %w", err)
	}
	return nil
}

// DriverSampleCount is a per-driver telemetry row count for one session.
type DriverSampleCount struct {
	DriverNumber int
	Samples      uint64
	MaxSpeed     uint16
}

// CountByDriver returns telemetry row counts and top speed per driver for a
// session, ordered by driver number.
func (d *ClickHouseDB) CountByDriver(ctx context.Context, sessionKey int) ([]DriverSampleCount, error) {
	rows, err := d.conn.Query(ctx, `
		SELECT driver_number, count(), max(speed)
		FROM car_telemetry
		WHERE session_key = ?
		GROUP BY driver_number
		ORDER BY driver_number
	`, uint32(sessionKey))
	if err != nil {
		return nil, fmt.Errorf("count by driver: %w", err)
	}
	defer rows.Close()

	var counts []DriverSampleCount
	for rows.Next() {
		var c DriverSampleCount
		var num uint16
		if err := rows.Scan(&num, &c.Samples, &c.MaxSpeed); err != nil {
			return nil, fmt.Errorf("scan driver count: %w", err)
		}
		c.DriverNumber = int(num)
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate driver counts: %w", err)
	}
	return counts, nil
}

// CountSessionTelemetry returns the total telemetry row count for a session.
func (d *ClickHouseDB) CountSessionTelemetry(ctx context.Context, sessionKey int) (uint64, error) {
	var count uint64
	row := d.conn.QueryRow(ctx, `SELECT count() FROM car_telemetry WHERE session_key = ?`, uint32(sessionKey))
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
