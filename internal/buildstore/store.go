// Package buildstore is an optional telemetry sink for compile_core: it
// records one row per compilation (duration per pass, specialization
// count, symbol-table occupancy) to whichever database/sql driver the
// caller's DSN names. Telemetry is written after compile_core returns
// and is never read back into a later compilation — this package has no
// opinion about the source it measured, only about durably recording
// that it ran.
package buildstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Record is one compile_core invocation's telemetry row.
type Record struct {
	ID                  uuid.UUID
	EntryPoints         []string
	Elapsed             time.Duration
	PassDurations       map[string]time.Duration
	SpecializationCount int
	SymbolTableTotal    int
	SymbolTableUsed     int
	SymbolTableDeallocated int
}

// Store is a handle to the telemetry database. It is safe for
// concurrent use by multiple goroutines (database/sql pools its own
// connections), unlike the core's own symbol.Table — coreserver keeps
// one Store shared across every connection handler for exactly this
// reason.
type Store struct {
	db     *sql.DB
	driver string
}

// Open selects a driver by the DSN's URL scheme and opens a connection
// pool. A DSN with no recognized scheme (including a bare file path, or
// the empty string) is treated as a sqlite file path, so a caller with
// no database of its own still gets telemetry for free. Open does not
// verify connectivity; call Migrate to do that as part of schema setup.
func Open(dsn string) (*Store, error) {
	driver, dataSource := resolveDSN(dsn)
	db, err := sql.Open(driver, dataSource)
	if err != nil {
		return nil, fmt.Errorf("buildstore: open %s: %w", driver, err)
	}
	return &Store{db: db, driver: driver}, nil
}

func resolveDSN(dsn string) (driver, dataSource string) {
	scheme := ""
	if u, err := url.Parse(dsn); err == nil {
		scheme = u.Scheme
	} else if s, _, ok := strings.Cut(dsn, "://"); ok {
		// url.Parse rejects the mysql driver's "tcp(host:port)" address
		// form, so fall back to the literal scheme prefix.
		scheme = s
	}
	if scheme == "" {
		return "sqlite", dsn
	}
	switch scheme {
	case "sqlite", "sqlite3", "file":
		return "sqlite", strings.TrimPrefix(dsn, scheme+"://")
	case "postgres", "postgresql":
		return "postgres", dsn
	case "mysql":
		return "mysql", strings.TrimPrefix(dsn, "mysql://")
	case "sqlserver", "mssql":
		return "sqlserver", dsn
	default:
		return "sqlite", dsn
	}
}

// Migrate creates the compilations table if it does not already exist.
// The schema is deliberately narrow (portable column types only) since
// it must create cleanly across all four supported dialects.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS compilations (
	id                 VARCHAR(36)  NOT NULL,
	recorded_date      VARCHAR(10)  NOT NULL,
	entry_points       VARCHAR(2048) NOT NULL,
	elapsed_ns         BIGINT       NOT NULL,
	pass_durations     VARCHAR(2048) NOT NULL,
	specialization_count INTEGER    NOT NULL,
	symbol_table_total      INTEGER NOT NULL,
	symbol_table_used       INTEGER NOT NULL,
	symbol_table_deallocated INTEGER NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("buildstore: migrate: %w", err)
	}
	return nil
}

// Record inserts one telemetry row. now is passed in rather than read
// from time.Now() here so callers with their own clock (and tests) can
// produce a deterministic recorded_date.
func (s *Store) Record(ctx context.Context, rec Record, now time.Time) error {
	passJSON, err := json.Marshal(durationsToMillis(rec.PassDurations))
	if err != nil {
		return fmt.Errorf("buildstore: marshal pass durations: %w", err)
	}
	date := civil.DateOf(now)

	query := bindQuery(s.driver, `INSERT INTO compilations (
		id, recorded_date, entry_points, elapsed_ns, pass_durations,
		specialization_count, symbol_table_total, symbol_table_used, symbol_table_deallocated
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err = s.db.ExecContext(ctx, query,
		rec.ID.String(),
		date.String(),
		strings.Join(rec.EntryPoints, ","),
		rec.Elapsed.Nanoseconds(),
		string(passJSON),
		rec.SpecializationCount,
		rec.SymbolTableTotal,
		rec.SymbolTableUsed,
		rec.SymbolTableDeallocated,
	)
	if err != nil {
		return fmt.Errorf("buildstore: record %s: %w", rec.ID, err)
	}
	return nil
}

func durationsToMillis(durations map[string]time.Duration) map[string]int64 {
	out := make(map[string]int64, len(durations))
	for pass, d := range durations {
		out[pass] = d.Milliseconds()
	}
	return out
}

// bindQuery rewrites the ?-placeholder query above into each driver's
// own bind-variable syntax: postgres wants $1, $2, ...; sqlite and
// mysql accept ? as written; sqlserver wants @p1, @p2, ....
func bindQuery(driver, query string) string {
	switch driver {
	case "postgres":
		return rewritePlaceholders(query, func(i int) string { return fmt.Sprintf("$%d", i) })
	case "sqlserver":
		return rewritePlaceholders(query, func(i int) string { return fmt.Sprintf("@p%d", i) })
	default:
		return query
	}
}

func rewritePlaceholders(query string, format func(i int) string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(format(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
