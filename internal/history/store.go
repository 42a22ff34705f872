package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/wfkeeper/internal/backup"
	"github.com/roach88/wfkeeper/internal/n8n"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on cycles.started_at
const currentSchemaVersion = 1

// timeLayout is fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is the SQLite ledger. Uses WAL mode so the history command can read
// while the monitor writes.
type Store struct {
	db *sql.DB
}

// Open creates or opens a ledger at path and applies pragmas and
// migrations. Safe to call repeatedly on the same file.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Cycle is one recorded backup cycle.
type Cycle struct {
	CycleID          string
	StartedAt        time.Time
	FinishedAt       time.Time
	TotalCount       int
	ChangedCount     int
	HiddenCount      int
	SkippedCount     int
	Success          bool
	Error            string
	GitState         string
	ChangedWorkflows []string
}

// HealthEvent is one recorded health transition.
type HealthEvent struct {
	Seq        int64
	ObservedAt time.Time
	Status     string
	Error      string
	Response   time.Duration
}

// RecordCycle stores a finished cycle. Re-recording the same cycle id
// replaces the row.
func (s *Store) RecordCycle(ctx context.Context, res backup.Result) error {
	if res.CycleID == "" {
		return fmt.Errorf("record cycle: missing cycle id")
	}
	names := res.ChangedWorkflows
	if names == nil {
		names = []string{}
	}
	changed, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("record cycle: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cycles (
			cycle_id, started_at, finished_at, total_count, changed_count,
			hidden_count, skipped_count, success, error, git_state, changed_workflows
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.CycleID,
		res.StartedAt.UTC().Format(timeLayout),
		res.FinishedAt.UTC().Format(timeLayout),
		res.TotalCount,
		res.ChangedCount,
		res.Hidden,
		len(res.Skipped),
		boolToInt(res.Success),
		res.Error,
		string(res.Sync.State),
		string(changed),
	)
	if err != nil {
		return fmt.Errorf("record cycle %s: %w", res.CycleID, err)
	}
	return nil
}

// RecordHealth stores st when it is a transition. Steady-state probes are
// ignored.
func (s *Store) RecordHealth(ctx context.Context, st n8n.HealthStatus, transition bool) error {
	if !transition {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO health_events (observed_at, status, error, response_ms)
		VALUES (?, ?, ?, ?)`,
		st.Timestamp.UTC().Format(timeLayout),
		string(st.Status),
		st.Error,
		st.ResponseTime.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record health: %w", err)
	}
	return nil
}

// RecentCycles returns up to limit cycles, newest first.
func (s *Store) RecentCycles(ctx context.Context, limit int) ([]Cycle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cycle_id, started_at, finished_at, total_count, changed_count,
		       hidden_count, skipped_count, success, error, git_state, changed_workflows
		FROM cycles
		ORDER BY started_at DESC, cycle_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	var out []Cycle
	for rows.Next() {
		var (
			c                 Cycle
			started, finished string
			success           int
			changed           string
		)
		if err := rows.Scan(&c.CycleID, &started, &finished, &c.TotalCount, &c.ChangedCount,
			&c.HiddenCount, &c.SkippedCount, &success, &c.Error, &c.GitState, &changed); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		if c.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if c.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		if err := json.Unmarshal([]byte(changed), &c.ChangedWorkflows); err != nil {
			return nil, fmt.Errorf("decode changed_workflows: %w", err)
		}
		c.Success = success != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// RecentHealth returns up to limit health transitions, newest first.
func (s *Store) RecentHealth(ctx context.Context, limit int) ([]HealthEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, observed_at, status, error, response_ms
		FROM health_events
		ORDER BY seq DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query health events: %w", err)
	}
	defer rows.Close()

	var out []HealthEvent
	for rows.Next() {
		var (
			e        HealthEvent
			observed string
			ms       int64
		)
		if err := rows.Scan(&e.Seq, &observed, &e.Status, &e.Error, &ms); err != nil {
			return nil, fmt.Errorf("scan health event: %w", err)
		}
		if e.ObservedAt, err = time.Parse(timeLayout, observed); err != nil {
			return nil, fmt.Errorf("parse observed_at: %w", err)
		}
		e.Response = time.Duration(ms) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_cycles_started ON cycles(started_at)`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
