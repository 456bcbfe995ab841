package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/goccy/go-json"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"TGEMonitor/internal/domain"
	"TGEMonitor/internal/ports"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	insertBatch = 500
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS state_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS processed_ids (
		seq BIGINT NOT NULL,
		id TEXT PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS seen_hashes (
		seq BIGINT NOT NULL,
		digest TEXT PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS alert_history (
		seq BIGINT NOT NULL,
		item_id TEXT NOT NULL,
		source_kind TEXT NOT NULL,
		recorded_at TEXT NOT NULL,
		payload TEXT NOT NULL
	)`,
}

// SQLStore persists CycleState in sqlite or Postgres. Each save rewrites the
// tables inside one transaction, so readers never observe a partial state.
type SQLStore struct {
	db     *sql.DB
	sb     sq.StatementBuilderType
	limits domain.Limits
	logger *slog.Logger
}

var _ ports.StateStore = (*SQLStore)(nil)

// OpenSQL opens the database for driver ("sqlite" or "postgres").
func OpenSQL(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported state driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// NewSQLStore wires a sql.DB and creates the schema when missing.
func NewSQLStore(ctx context.Context, db *sql.DB, driver string, limits domain.Limits, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var placeholder sq.PlaceholderFormat = sq.Question
	if driver == DriverPostgres {
		placeholder = sq.Dollar
	}
	s := &SQLStore{
		db:     db,
		sb:     sq.StatementBuilder.PlaceholderFormat(placeholder),
		limits: limits,
		logger: logger.With("component", "sql_store", "driver", driver),
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return s, nil
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Load reads the state. Undecodable rows are dropped with a warning; a
// database failure is reported as a PersistenceError.
func (s *SQLStore) Load(ctx context.Context) (domain.CycleState, error) {
	state := domain.NewCycleState()

	ids, err := s.loadColumn(ctx, "processed_ids", "id")
	if err != nil {
		return domain.NewCycleState(), &domain.PersistenceError{Op: "load", Err: err}
	}
	hashes, err := s.loadColumn(ctx, "seen_hashes", "digest")
	if err != nil {
		return domain.NewCycleState(), &domain.PersistenceError{Op: "load", Err: err}
	}
	for _, id := range ids {
		state.ProcessedIDs.Add(id)
	}
	for _, h := range hashes {
		state.SeenHashes.Add(h)
	}

	history, err := s.loadHistory(ctx)
	if err != nil {
		return domain.NewCycleState(), &domain.PersistenceError{Op: "load", Err: err}
	}
	state.AlertHistory = history

	meta, err := s.loadMeta(ctx)
	if err != nil {
		return domain.NewCycleState(), &domain.PersistenceError{Op: "load", Err: err}
	}
	if raw, ok := meta["totals"]; ok {
		if err := json.Unmarshal([]byte(raw), &state.Totals); err != nil {
			s.logger.Warn("totals corrupt, resetting", "error", err)
			state.Totals = domain.Totals{}
		}
	}
	if raw, ok := meta["last_updated"]; ok {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			state.LastUpdated = ts
		}
	}
	state.Normalize()
	return state, nil
}

func (s *SQLStore) loadColumn(ctx context.Context, table, column string) ([]string, error) {
	query, args, err := s.sb.Select(column).From(table).OrderBy("seq").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s query: %w", table, err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func (s *SQLStore) loadHistory(ctx context.Context) ([]domain.Analysis, error) {
	query, args, err := s.sb.Select("item_id", "payload").From("alert_history").OrderBy("seq").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	history := []domain.Analysis{}
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		var a domain.Analysis
		if err := json.Unmarshal([]byte(payload), &a); err != nil {
			s.logger.Warn("dropping corrupt history row", "item_id", id, "error", err)
			continue
		}
		history = append(history, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return history, nil
}

func (s *SQLStore) loadMeta(ctx context.Context) (map[string]string, error) {
	query, args, err := s.sb.Select("key", "value").From("state_meta").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build meta query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query meta: %w", err)
	}
	defer rows.Close()

	meta := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

// Save compacts a copy of state and rewrites every table in one transaction.
func (s *SQLStore) Save(ctx context.Context, state domain.CycleState) error {
	state = state.Clone()
	state.Compact(s.limits)

	totals, err := json.Marshal(state.Totals)
	if err != nil {
		return &domain.PersistenceError{Op: "encode", Err: err}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.PersistenceError{Op: "save", Err: fmt.Errorf("begin: %w", err)}
	}
	if err := s.rewrite(ctx, tx, state, string(totals)); err != nil {
		_ = tx.Rollback()
		return &domain.PersistenceError{Op: "save", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &domain.PersistenceError{Op: "save", Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

func (s *SQLStore) rewrite(ctx context.Context, tx *sql.Tx, state domain.CycleState, totals string) error {
	for _, table := range []string{"processed_ids", "seen_hashes", "alert_history", "state_meta"} {
		query, args, err := s.sb.Delete(table).ToSql()
		if err != nil {
			return fmt.Errorf("build delete %s: %w", table, err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err := s.insertColumn(ctx, tx, "processed_ids", "id", state.ProcessedIDs.Values()); err != nil {
		return err
	}
	if err := s.insertColumn(ctx, tx, "seen_hashes", "digest", state.SeenHashes.Values()); err != nil {
		return err
	}

	history := s.sb.Insert("alert_history").Columns("seq", "item_id", "source_kind", "recorded_at", "payload")
	pending := 0
	for i, a := range state.AlertHistory {
		payload, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encode history %s: %w", a.Item.ID, err)
		}
		history = history.Values(i, a.Item.ID, string(a.SourceKind), a.RecordedAt().UTC().Format(time.RFC3339Nano), string(payload))
		pending++
		if pending == insertBatch {
			if err := execInsert(ctx, tx, history); err != nil {
				return fmt.Errorf("insert history: %w", err)
			}
			history = s.sb.Insert("alert_history").Columns("seq", "item_id", "source_kind", "recorded_at", "payload")
			pending = 0
		}
	}
	if pending > 0 {
		if err := execInsert(ctx, tx, history); err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
	}

	meta := s.sb.Insert("state_meta").Columns("key", "value").
		Values("totals", totals).
		Values("last_updated", state.LastUpdated.UTC().Format(time.RFC3339Nano))
	if err := execInsert(ctx, tx, meta); err != nil {
		return fmt.Errorf("insert meta: %w", err)
	}
	return nil
}

func (s *SQLStore) insertColumn(ctx context.Context, tx *sql.Tx, table, column string, values []string) error {
	for start := 0; start < len(values); start += insertBatch {
		end := min(start+insertBatch, len(values))
		ins := s.sb.Insert(table).Columns("seq", column)
		for i, v := range values[start:end] {
			ins = ins.Values(start+i, v)
		}
		if err := execInsert(ctx, tx, ins); err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	return nil
}

func execInsert(ctx context.Context, tx *sql.Tx, ins sq.InsertBuilder) error {
	query, args, err := ins.ToSql()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}
