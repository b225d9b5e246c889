package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// PostgresDB wraps a PostgreSQL connection pool for session reference data.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool to PostgreSQL.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// Test the connection.
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the PostgreSQL connection pool.
func (d *PostgresDB) Close() {
	d.pool.Close()
}

// Pool returns the underlying connection pool for advanced operations.
func (d *PostgresDB) Pool() *pgxpool.Pool {
	return d.pool
}

// CreateSchema creates the PostgreSQL tables.
func (d *PostgresDB) CreateSchema(ctx context.Context) error {
	schema := `
	-- Race weekends, one row per meeting per year.
	CREATE TABLE IF NOT EXISTS meetings (
		meeting_key     INTEGER PRIMARY KEY,
		year            INTEGER NOT NULL,
		code            TEXT,
		name            TEXT NOT NULL,
		official_name   TEXT,
		location        TEXT,
		country_code    TEXT,
		country_name    TEXT,
		circuit_name    TEXT,
		imported_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_meetings_year ON meetings(year);

	-- Timed sessions within a meeting. The session key is the timing feed's
	-- internal numeric key; path is the feed resource prefix.
	CREATE TABLE IF NOT EXISTS sessions (
		session_key     INTEGER PRIMARY KEY,
		meeting_key     INTEGER NOT NULL REFERENCES meetings(meeting_key) ON DELETE CASCADE,
		name            TEXT,
		session_type    TEXT,
		path            TEXT,
		start_date      TIMESTAMPTZ,
		end_date        TIMESTAMPTZ,
		gmt_offset      TEXT,
		imported_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_meeting ON sessions(meeting_key);
	CREATE INDEX IF NOT EXISTS idx_sessions_type ON sessions(session_type);

	-- Per-session driver entry lists. Replaced wholesale on each import.
	CREATE TABLE IF NOT EXISTS drivers (
		session_key     INTEGER NOT NULL REFERENCES sessions(session_key) ON DELETE CASCADE,
		driver_number   INTEGER NOT NULL,
		broadcast_name  TEXT,
		full_name       TEXT,
		acronym         TEXT,
		team_name       TEXT,
		team_colour     TEXT,
		first_name      TEXT,
		last_name       TEXT,
		country_code    TEXT,
		headshot_url    TEXT,
		imported_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (session_key, driver_number)
	);

	-- Race-control messages. Replaced wholesale on each import.
	CREATE TABLE IF NOT EXISTS race_control_messages (
		id              SERIAL PRIMARY KEY,
		session_key     INTEGER NOT NULL REFERENCES sessions(session_key) ON DELETE CASCADE,
		occurred_at     TIMESTAMPTZ,
		category        TEXT,
		flag            TEXT,
		scope           TEXT,
		sector          INTEGER,
		message         TEXT NOT NULL,
		driver_number   INTEGER,
		lap             INTEGER,
		imported_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_race_control_session ON race_control_messages(session_key, occurred_at);
	`

	_, err := d.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	// Expression index created separately (used by name resolution lookups).
	_, _ = d.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_meetings_name ON meetings(LOWER(name))`)

	return nil
}

// Meeting represents a race weekend row.
type Meeting struct {
	MeetingKey   int
	Year         int
	Code         string
	Name         string
	OfficialName string
	Location     string
	CountryCode  string
	CountryName  string
	CircuitName  string
}

// UpsertMeeting inserts or updates a meeting row.
func (d *PostgresDB) UpsertMeeting(ctx context.Context, m Meeting) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO meetings (meeting_key, year, code, name, official_name, location, country_code, country_name, circuit_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (meeting_key) DO UPDATE SET
			year = EXCLUDED.year,
			code = EXCLUDED.code,
			name = EXCLUDED.name,
			official_name = EXCLUDED.official_name,
			location = EXCLUDED.location,
			country_code = EXCLUDED.country_code,
			country_name = EXCLUDED.country_name,
			circuit_name = EXCLUDED.circuit_name,
			imported_at = NOW()
	`, m.MeetingKey, m.Year, m.Code, m.Name, m.OfficialName, m.Location, m.CountryCode, m.CountryName, m.CircuitName)
	return err
}

// ListMeetings retrieves meetings, optionally filtered by year (0 = all),
// ordered by meeting key.
func (d *PostgresDB) ListMeetings(ctx context.Context, year int) ([]Meeting, error) {
	query := `
		SELECT meeting_key, year, code, name, official_name, location, country_code, country_name, circuit_name
		FROM meetings`
	var args []interface{}
	if year != 0 {
		query += ` WHERE year = $1`
		args = append(args, year)
	}
	query += ` ORDER BY meeting_key`

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var meetings []Meeting
	for rows.Next() {
		var m Meeting
		if err := rows.Scan(&m.MeetingKey, &m.Year, &m.Code, &m.Name, &m.OfficialName, &m.Location, &m.CountryCode, &m.CountryName, &m.CircuitName); err != nil {
			return nil, err
		}
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

// Session represents a session row.
type Session struct {
	SessionKey int
	MeetingKey int
	Name       string
	Type       string
	Path       string
	StartDate  time.Time
	EndDate    time.Time
	GmtOffset  string
}

// UpsertSession inserts or updates a session row.
func (d *PostgresDB) UpsertSession(ctx context.Context, s Session) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO sessions (session_key, meeting_key, name, session_type, path, start_date, end_date, gmt_offset)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_key) DO UPDATE SET
			meeting_key = EXCLUDED.meeting_key,
			name = EXCLUDED.name,
			session_type = EXCLUDED.session_type,
			path = EXCLUDED.path,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			gmt_offset = EXCLUDED.gmt_offset,
			imported_at = NOW()
	`, s.SessionKey, s.MeetingKey, s.Name, s.Type, s.Path, s.StartDate, s.EndDate, s.GmtOffset)
	return err
}

// ListSessions retrieves the sessions of a meeting ordered by start date.
func (d *PostgresDB) ListSessions(ctx context.Context, meetingKey int) ([]Session, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT session_key, meeting_key, name, session_type, path, start_date, end_date, gmt_offset
		FROM sessions
		WHERE meeting_key = $1
		ORDER BY start_date, session_key
	`, meetingKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.SessionKey, &s.MeetingKey, &s.Name, &s.Type, &s.Path, &s.StartDate, &s.EndDate, &s.GmtOffset); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// GetSession retrieves a session by key.
func (d *PostgresDB) GetSession(ctx context.Context, sessionKey int) (*Session, error) {
	var s Session
	err := d.pool.QueryRow(ctx, `
		SELECT session_key, meeting_key, name, session_type, path, start_date, end_date, gmt_offset
		FROM sessions WHERE session_key = $1
	`, sessionKey).Scan(&s.SessionKey, &s.MeetingKey, &s.Name, &s.Type, &s.Path, &s.StartDate, &s.EndDate, &s.GmtOffset)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Driver represents a driver entry row for one session.
type Driver struct {
	SessionKey    int
	DriverNumber  int
	BroadcastName string
	FullName      string
	Acronym       string
	TeamName      string
	TeamColour    string
	FirstName     string
	LastName      string
	CountryCode   string
	HeadshotURL   string
}

// DeleteSessionDrivers removes all driver rows for a session, returning the
// number of rows removed.
func (d *PostgresDB) DeleteSessionDrivers(ctx context.Context, sessionKey int) (int64, error) {
	tag, err := d.pool.Exec(ctx, `DELETE FROM drivers WHERE session_key = $1`, sessionKey)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// InsertDriver inserts a single driver row.
func (d *PostgresDB) InsertDriver(ctx context.Context, dr Driver) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO drivers (session_key, driver_number, broadcast_name, full_name, acronym, team_name, team_colour, first_name, last_name, country_code, headshot_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, dr.SessionKey, dr.DriverNumber, dr.BroadcastName, dr.FullName, dr.Acronym, dr.TeamName, dr.TeamColour, dr.FirstName, dr.LastName, dr.CountryCode, dr.HeadshotURL)
	return err
}

// ListDrivers retrieves the drivers of a session ordered by racing number.
func (d *PostgresDB) ListDrivers(ctx context.Context, sessionKey int) ([]Driver, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT session_key, driver_number, broadcast_name, full_name, acronym, team_name, team_colour, first_name, last_name, country_code, headshot_url
		FROM drivers
		WHERE session_key = $1
		ORDER BY driver_number
	`, sessionKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []Driver
	for rows.Next() {
		var dr Driver
		if err := rows.Scan(&dr.SessionKey, &dr.DriverNumber, &dr.BroadcastName, &dr.FullName, &dr.Acronym, &dr.TeamName, &dr.TeamColour, &dr.FirstName, &dr.LastName, &dr.CountryCode, &dr.HeadshotURL); err != nil {
			return nil, err
		}
		drivers = append(drivers, dr)
	}
	return drivers, rows.Err()
}

// RaceControlMessage represents a race-control message row. Sector,
// DriverNumber and Lap are pointers because the feed omits them for
// track-wide messages.
type RaceControlMessage struct {
	ID           int64
	SessionKey   int
	OccurredAt   time.Time
	Category     string
	Flag         string
	Scope        string
	Sector       *int
	Message      string
	DriverNumber *int
	Lap          *int
}

// DeleteRaceControl removes all race-control rows for a session, returning
// the number of rows removed.
func (d *PostgresDB) DeleteRaceControl(ctx context.Context, sessionKey int) (int64, error) {
	tag, err := d.pool.Exec(ctx, `DELETE FROM race_control_messages WHERE session_key = $1`, sessionKey)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// InsertRaceControl inserts a single race-control message row.
func (d *PostgresDB) InsertRaceControl(ctx context.Context, m RaceControlMessage) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO race_control_messages (session_key, occurred_at, category, flag, scope, sector, message, driver_number, lap)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, m.SessionKey, m.OccurredAt, m.Category, m.Flag, m.Scope, m.Sector, m.Message, m.DriverNumber, m.Lap)
	return err
}

// ListRaceControl retrieves the race-control messages of a session in
// chronological order.
func (d *PostgresDB) ListRaceControl(ctx context.Context, sessionKey int) ([]RaceControlMessage, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, session_key, occurred_at, category, flag, scope, sector, message, driver_number, lap
		FROM race_control_messages
		WHERE session_key = $1
		ORDER BY occurred_at, id
	`, sessionKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []RaceControlMessage
	for rows.Next() {
		var m RaceControlMessage
		if err := rows.Scan(&m.ID, &m.SessionKey, &m.OccurredAt, &m.Category, &m.Flag, &m.Scope, &m.Sector, &m.Message, &m.DriverNumber, &m.Lap); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
