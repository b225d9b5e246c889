// Command-line entry point for the Formula 1 timing data importer.
//
// Each subcommand is one synchronous import: parse flags, fetch JSON from
// the public timing API, reshape the records, write them to the databases,
// print a summary, exit. Sessions are addressed either directly by numeric
// key (-session-key) or by fuzzy name (-race monza -session race), resolved
// against the meetings and sessions imported by the "index" subcommand.
//
// Database settings come from flags with environment fallbacks
// (POSTGRES_HOST, CLICKHOUSE_HOST, ...); see usage output.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"f1import/internal/f1api"
	"f1import/internal/feed"
	"f1import/internal/importer"
	"f1import/internal/resolve"
	"f1import/internal/storage"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "f1import - Formula 1 timing data importer:")
	fmt.Fprintln(w, "  schema       - create database schemas (PostgreSQL + ClickHouse)")
	fmt.Fprintln(w, "  index        - import a year's meetings and sessions")
	fmt.Fprintln(w, "  drivers      - import a session's driver list")
	fmt.Fprintln(w, "  telemetry    - import a session's car telemetry")
	fmt.Fprintln(w, "  racecontrol  - import a session's race-control messages")
	fmt.Fprintln(w, "  status       - show the local import journal")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  f1import index -year 2026")
	fmt.Fprintln(w, "  f1import drivers -race monza -session race")
	fmt.Fprintln(w, "  f1import telemetry -race monza -session race [-driver 44] [-limit 5000] [-nats-url nats://localhost:4222]")
	fmt.Fprintln(w, "  f1import racecontrol -session-key 9562")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run a subcommand with -h for its full flag list.")
	fmt.Fprintln(w, "")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	cmd := strings.ToLower(os.Args[1])
	switch cmd {
	case "schema":
		runSchema(os.Args[2:])
	case "index":
		runIndex(os.Args[2:])
	case "drivers":
		runDrivers(os.Args[2:])
	case "telemetry":
		runTelemetry(os.Args[2:])
	case "racecontrol":
		runRaceControl(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// registerPostgresFlags adds the PostgreSQL connection flags with
// environment fallbacks.
func registerPostgresFlags(fs *flag.FlagSet, cfg *storage.PostgresConfig) {
	def := storage.DefaultConfig().Postgres
	fs.StringVar(&cfg.Host, "pg-host", envOrDefault("POSTGRES_HOST", def.Host), "PostgreSQL host")
	fs.IntVar(&cfg.Port, "pg-port", envOrDefaultInt("POSTGRES_PORT", def.Port), "PostgreSQL port")
	fs.StringVar(&cfg.Database, "pg-database", envOrDefault("POSTGRES_DATABASE", def.Database), "PostgreSQL database")
	fs.StringVar(&cfg.User, "pg-user", envOrDefault("POSTGRES_USER", def.User), "PostgreSQL user")
	fs.StringVar(&cfg.Password, "pg-password", envOrDefault("POSTGRES_PASSWORD", def.Password), "PostgreSQL password")
}

// registerClickHouseFlags adds the ClickHouse connection flags with
// environment fallbacks.
func registerClickHouseFlags(fs *flag.FlagSet, cfg *storage.ClickHouseConfig) {
	def := storage.DefaultConfig().ClickHouse
	fs.StringVar(&cfg.Host, "ch-host", envOrDefault("CLICKHOUSE_HOST", def.Host), "ClickHouse host")
	fs.IntVar(&cfg.Port, "ch-port", envOrDefaultInt("CLICKHOUSE_PORT", def.Port), "ClickHouse port")
	fs.StringVar(&cfg.Database, "ch-database", envOrDefault("CLICKHOUSE_DATABASE", def.Database), "ClickHouse database")
	fs.StringVar(&cfg.User, "ch-user", envOrDefault("CLICKHOUSE_USER", def.User), "ClickHouse user")
	fs.StringVar(&cfg.Password, "ch-password", envOrDefault("CLICKHOUSE_PASSWORD", def.Password), "ClickHouse password")
}

// sessionFlags is the shared addressing for per-session imports.
type sessionFlags struct {
	sessionKey int
	race       string
	session    string
	year       int
}

func registerSessionFlags(fs *flag.FlagSet, sf *sessionFlags) {
	fs.IntVar(&sf.sessionKey, "session-key", 0, "Numeric session key (skips name resolution)")
	fs.StringVar(&sf.race, "race", "", "Partial race name, e.g. \"monza\" or \"italian\"")
	fs.StringVar(&sf.session, "session", "race", "Partial session identifier, e.g. \"race\", \"qualifying\", \"practice_1\"")
	fs.IntVar(&sf.year, "year", 0, "Restrict name resolution to one year (0 = all imported years)")
}

// resolveSession turns the addressing flags into a session row.
func resolveSession(ctx context.Context, pg *storage.PostgresDB, sf sessionFlags) (*storage.Session, error) {
	if sf.sessionKey != 0 {
		sess, err := pg.GetSession(ctx, sf.sessionKey)
		if err != nil {
			return nil, fmt.Errorf("get session %d: %w", sf.sessionKey, err)
		}
		if sess == nil {
			return nil, fmt.Errorf("session %d not imported (run \"f1import index\" first)", sf.sessionKey)
		}
		return sess, nil
	}
	if sf.race == "" {
		return nil, fmt.Errorf("either -session-key or -race is required")
	}
	sess, err := resolve.Session(ctx, pg, sf.year, sf.race, sf.session)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func runSchema(args []string) {
	fs := flag.NewFlagSet("schema", flag.ExitOnError)
	var cfg storage.Config
	registerPostgresFlags(fs, &cfg.Postgres)
	registerClickHouseFlags(fs, &cfg.ClickHouse)
	_ = fs.Parse(args)

	ctx := context.Background()
	db, err := storage.Open(ctx, cfg)
	if err != nil {
		fatalf("Failed to open databases: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.CreateSchemas(ctx); err != nil {
		fatalf("Failed to create schemas: %v", err)
	}
	fmt.Println("Schemas created.")
}

func runIndex(args []string) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	year := fs.Int("year", 0, "Season year to import (required)")
	apiURL := fs.String("api", envOrDefault("F1_API_URL", f1api.DefaultBaseURL), "Timing API base URL")
	var pgCfg storage.PostgresConfig
	registerPostgresFlags(fs, &pgCfg)
	_ = fs.Parse(args)

	if *year == 0 {
		fatalf("-year is required")
	}

	ctx := context.Background()
	pg, err := storage.OpenPostgres(ctx, pgCfg)
	if err != nil {
		fatalf("Failed to open PostgreSQL: %v", err)
	}
	defer pg.Close()

	client := f1api.NewClient(*apiURL)
	stats, err := importer.ImportIndex(ctx, client, pg, *year)
	if err != nil {
		fatalf("Index import failed: %v", err)
	}
	fmt.Printf("index %d: %s\n", *year, stats)
	if stats.Errors > 0 {
		os.Exit(1)
	}
}

func runDrivers(args []string) {
	fs := flag.NewFlagSet("drivers", flag.ExitOnError)
	apiURL := fs.String("api", envOrDefault("F1_API_URL", f1api.DefaultBaseURL), "Timing API base URL")
	var sf sessionFlags
	registerSessionFlags(fs, &sf)
	var pgCfg storage.PostgresConfig
	registerPostgresFlags(fs, &pgCfg)
	journalPath := fs.String("journal", envOrDefault("F1IMPORT_JOURNAL", "f1import.db"), "Import journal path (empty to disable)")
	skipImported := fs.Bool("skip-imported", false, "Skip if the journal records a clean import for this session")
	_ = fs.Parse(args)

	ctx := context.Background()
	pg, err := storage.OpenPostgres(ctx, pgCfg)
	if err != nil {
		fatalf("Failed to open PostgreSQL: %v", err)
	}
	defer pg.Close()

	sess, err := resolveSession(ctx, pg, sf)
	if err != nil {
		fatalf("Session lookup failed: %v", err)
	}
	fmt.Printf("session %d (%s)\n", sess.SessionKey, sess.Path)

	journal := openJournal(*journalPath)
	if journal != nil {
		defer func() { _ = journal.Close() }()
		if *skipImported && journalHas(journal, sess.SessionKey, importer.ResourceDrivers) {
			fmt.Println("drivers: already imported, skipping")
			return
		}
	}

	client := f1api.NewClient(*apiURL)
	stats, err := importer.ImportDrivers(ctx, client, pg, *sess)
	if err != nil {
		fatalf("Driver import failed: %v", err)
	}
	fmt.Printf("drivers: %s\n", stats)

	recordRun(journal, sess.SessionKey, importer.ResourceDrivers, stats)
	if stats.Errors > 0 {
		os.Exit(1)
	}
}

func runTelemetry(args []string) {
	fs := flag.NewFlagSet("telemetry", flag.ExitOnError)
	apiURL := fs.String("api", envOrDefault("F1_API_URL", f1api.DefaultBaseURL), "Timing API base URL")
	var sf sessionFlags
	registerSessionFlags(fs, &sf)
	driver := fs.Int("driver", 0, "Import only this driver number (0 = all)")
	limit := fs.Int("limit", 0, "Downsample to at most this many records (0 = all)")
	batchSize := fs.Int("batch-size", importer.DefaultBatchSize, "Insert batch size")
	replace := fs.Bool("replace", false, "Delete the session's existing telemetry first")
	natsURL := fs.String("nats-url", envOrDefault("NATS_URL", ""), "Publish inserted batches to this NATS server (empty to disable)")
	var pgCfg storage.PostgresConfig
	registerPostgresFlags(fs, &pgCfg)
	var chCfg storage.ClickHouseConfig
	registerClickHouseFlags(fs, &chCfg)
	journalPath := fs.String("journal", envOrDefault("F1IMPORT_JOURNAL", "f1import.db"), "Import journal path (empty to disable)")
	skipImported := fs.Bool("skip-imported", false, "Skip if the journal records a clean import for this session")
	_ = fs.Parse(args)

	ctx := context.Background()
	pg, err := storage.OpenPostgres(ctx, pgCfg)
	if err != nil {
		fatalf("Failed to open PostgreSQL: %v", err)
	}
	defer pg.Close()

	sess, err := resolveSession(ctx, pg, sf)
	if err != nil {
		fatalf("Session lookup failed: %v", err)
	}
	fmt.Printf("session %d (%s)\n", sess.SessionKey, sess.Path)

	journal := openJournal(*journalPath)
	if journal != nil {
		defer func() { _ = journal.Close() }()
		if *skipImported && journalHas(journal, sess.SessionKey, importer.ResourceTelemetry) {
			fmt.Println("telemetry: already imported, skipping")
			return
		}
	}

	ch, err := storage.OpenClickHouse(ctx, chCfg)
	if err != nil {
		fatalf("Failed to open ClickHouse: %v", err)
	}
	defer func() { _ = ch.Close() }()

	opts := importer.TelemetryOptions{
		DriverNumber: *driver,
		Limit:        *limit,
		BatchSize:    *batchSize,
		Replace:      *replace,
	}
	if *natsURL != "" {
		pub, err := feed.Connect(*natsURL)
		if err != nil {
			fatalf("Failed to connect to NATS: %v", err)
		}
		defer pub.Close()
		opts.Publisher = pub
		fmt.Printf("publishing batches to %s\n", feed.TelemetrySubject(sess.SessionKey))
	}

	client := f1api.NewClient(*apiURL)
	stats, err := importer.ImportTelemetry(ctx, client, ch, *sess, opts)
	if err != nil {
		fatalf("Telemetry import failed: %v", err)
	}
	fmt.Printf("telemetry: %s\n", stats)

	recordRun(journal, sess.SessionKey, importer.ResourceTelemetry, stats)
	if stats.Errors > 0 {
		os.Exit(1)
	}
}

func runRaceControl(args []string) {
	fs := flag.NewFlagSet("racecontrol", flag.ExitOnError)
	apiURL := fs.String("api", envOrDefault("F1_API_URL", f1api.DefaultBaseURL), "Timing API base URL")
	var sf sessionFlags
	registerSessionFlags(fs, &sf)
	var pgCfg storage.PostgresConfig
	registerPostgresFlags(fs, &pgCfg)
	journalPath := fs.String("journal", envOrDefault("F1IMPORT_JOURNAL", "f1import.db"), "Import journal path (empty to disable)")
	skipImported := fs.Bool("skip-imported", false, "Skip if the journal records a clean import for this session")
	_ = fs.Parse(args)

	ctx := context.Background()
	pg, err := storage.OpenPostgres(ctx, pgCfg)
	if err != nil {
		fatalf("Failed to open PostgreSQL: %v", err)
	}
	defer pg.Close()

	sess, err := resolveSession(ctx, pg, sf)
	if err != nil {
		fatalf("Session lookup failed: %v", err)
	}
	fmt.Printf("session %d (%s)\n", sess.SessionKey, sess.Path)

	journal := openJournal(*journalPath)
	if journal != nil {
		defer func() { _ = journal.Close() }()
		if *skipImported && journalHas(journal, sess.SessionKey, importer.ResourceRaceControl) {
			fmt.Println("racecontrol: already imported, skipping")
			return
		}
	}

	client := f1api.NewClient(*apiURL)
	stats, err := importer.ImportRaceControl(ctx, client, pg, *sess)
	if err != nil {
		fatalf("Race control import failed: %v", err)
	}
	fmt.Printf("racecontrol: %s\n", stats)

	recordRun(journal, sess.SessionKey, importer.ResourceRaceControl, stats)
	if stats.Errors > 0 {
		os.Exit(1)
	}
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	journalPath := fs.String("journal", envOrDefault("F1IMPORT_JOURNAL", "f1import.db"), "Import journal path")
	_ = fs.Parse(args)

	journal, err := storage.OpenJournal(*journalPath)
	if err != nil {
		fatalf("Failed to open journal: %v", err)
	}
	defer func() { _ = journal.Close() }()

	runs, err := journal.List()
	if err != nil {
		fatalf("Failed to read journal: %v", err)
	}
	if len(runs) == 0 {
		fmt.Println("No imports recorded.")
		return
	}

	fmt.Printf("%-10s %-12s %9s %9s %7s  %s\n", "SESSION", "RESOURCE", "FETCHED", "INSERTED", "ERRORS", "FINISHED")
	for _, r := range runs {
		fmt.Printf("%-10d %-12s %9d %9d %7d  %s\n",
			r.SessionKey, r.Resource, r.Fetched, r.Inserted, r.Errors,
			r.FinishedAt.Format("2006-01-02 15:04:05"))
	}
}

// openJournal opens the import journal, or returns nil when disabled.
// Journal failures never block an import.
func openJournal(path string) *storage.Journal {
	if path == "" {
		return nil
	}
	journal, err := storage.OpenJournal(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: journal unavailable: %v\n", err)
		return nil
	}
	return journal
}

func journalHas(journal *storage.Journal, sessionKey int, resource string) bool {
	ok, err := journal.HasSuccessfulRun(sessionKey, resource)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: journal read failed: %v\n", err)
		return false
	}
	return ok
}

func recordRun(journal *storage.Journal, sessionKey int, resource string, stats importer.Stats) {
	if journal == nil {
		return
	}
	err := journal.Record(storage.ImportRun{
		SessionKey: sessionKey,
		Resource:   resource,
		Fetched:    stats.Fetched,
		Inserted:   stats.Inserted,
		Errors:     stats.Errors,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: journal write failed: %v\n", err)
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
