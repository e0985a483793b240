package leaderboard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stellarlinkco/rag-eval/internal/harness"
)

const defaultLimit = 50

type Store struct {
	db *sql.DB
}

// Entry is one leaderboard row: how a strategy scored on a dataset at one
// retrieval depth. Entries from repeated runs accumulate; ranking picks the
// best recall first.
type Entry struct {
	ID         int64
	Strategy   string
	Dataset    string
	K          int
	Precision  float64
	Recall     float64
	MRR        float64
	AvgLatency int64
	RunID      string
	EvalDate   time.Time
}

func NewStore(dbPath string) (*Store, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, errors.New("leaderboard: empty db path")
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("leaderboard: create db dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: open db: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("leaderboard: ping db: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("leaderboard: nil db")
	}

	stmts := []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS leaderboard_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			strategy TEXT NOT NULL,
			dataset TEXT NOT NULL,
			k INTEGER NOT NULL,
			precision REAL NOT NULL,
			recall REAL NOT NULL,
			mrr REAL NOT NULL,
			avg_latency INTEGER NOT NULL,
			run_id TEXT NOT NULL,
			eval_date INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_leaderboard_dataset ON leaderboard_entries(dataset)`,
		`CREATE INDEX IF NOT EXISTS idx_leaderboard_strategy_dataset ON leaderboard_entries(strategy, dataset)`,
		`CREATE INDEX IF NOT EXISTS idx_leaderboard_eval_date ON leaderboard_entries(eval_date)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("leaderboard: init schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Save(ctx context.Context, entry *Entry) error {
	if s == nil || s.db == nil {
		return errors.New("leaderboard: nil store")
	}
	if ctx == nil {
		return errors.New("leaderboard: nil context")
	}
	if entry == nil {
		return errors.New("leaderboard: nil entry")
	}

	strategy := strings.TrimSpace(entry.Strategy)
	dataset := strings.TrimSpace(entry.Dataset)
	if strategy == "" || dataset == "" {
		return errors.New("leaderboard: missing strategy/dataset")
	}
	if entry.K <= 0 {
		return fmt.Errorf("leaderboard: k must be positive (got %d)", entry.K)
	}

	evalDate := entry.EvalDate
	if evalDate.IsZero() {
		evalDate = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO leaderboard_entries (
			strategy, dataset, k, precision, recall, mrr, avg_latency, run_id, eval_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, strategy, dataset, entry.K, entry.Precision, entry.Recall, entry.MRR,
		entry.AvgLatency, strings.TrimSpace(entry.RunID), evalDate.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("leaderboard: insert entry: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		entry.ID = id
	}
	entry.EvalDate = evalDate
	entry.Strategy = strategy
	entry.Dataset = dataset
	return nil
}

// GetLeaderboard ranks entries for a dataset, best recall first with MRR,
// precision, then latency as tiebreaks. A positive k restricts the board to
// one retrieval depth; k <= 0 mixes all depths.
func (s *Store) GetLeaderboard(ctx context.Context, dataset string, k, limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("leaderboard: nil store")
	}
	if ctx == nil {
		return nil, errors.New("leaderboard: nil context")
	}
	dataset = strings.TrimSpace(dataset)
	if dataset == "" {
		return nil, errors.New("leaderboard: empty dataset")
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	query := `
		SELECT id, strategy, dataset, k, precision, recall, mrr, avg_latency, run_id, eval_date
		FROM leaderboard_entries
		WHERE dataset = ?`
	args := []any{dataset}
	if k > 0 {
		query += ` AND k = ?`
		args = append(args, k)
	}
	query += `
		ORDER BY recall DESC, mrr DESC, precision DESC, avg_latency ASC, eval_date DESC
		LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: query leaderboard: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

func (s *Store) GetStrategyHistory(ctx context.Context, strategy, dataset string) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("leaderboard: nil store")
	}
	if ctx == nil {
		return nil, errors.New("leaderboard: nil context")
	}
	strategy = strings.TrimSpace(strategy)
	dataset = strings.TrimSpace(dataset)
	if strategy == "" || dataset == "" {
		return nil, errors.New("leaderboard: missing strategy/dataset")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, strategy, dataset, k, precision, recall, mrr, avg_latency, run_id, eval_date
		FROM leaderboard_entries
		WHERE strategy = ? AND dataset = ?
		ORDER BY eval_date DESC
	`, strategy, dataset)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: query strategy history: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var e Entry
		var evalDateMS int64
		if err := rows.Scan(
			&e.ID,
			&e.Strategy,
			&e.Dataset,
			&e.K,
			&e.Precision,
			&e.Recall,
			&e.MRR,
			&e.AvgLatency,
			&e.RunID,
			&evalDateMS,
		); err != nil {
			return nil, fmt.Errorf("leaderboard: scan entry: %w", err)
		}
		e.EvalDate = time.UnixMilli(evalDateMS).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leaderboard: scan rows: %w", err)
	}
	return out, nil
}

// FromReport converts a run report into leaderboard entries, one per
// aggregate row. Average latency comes from the row's query cells.
func FromReport(report *harness.Report, runID string) []Entry {
	if report == nil {
		return nil
	}

	type key struct {
		strategy string
		k        int
	}
	latSums := make(map[key]int64, len(report.Rows))
	latCounts := make(map[key]int64, len(report.Rows))
	for i := range report.Records {
		rec := &report.Records[i]
		kk := key{strategy: rec.Strategy, k: rec.K}
		latSums[kk] += rec.LatencyMs
		latCounts[kk]++
	}

	entries := make([]Entry, 0, len(report.Rows))
	for _, row := range report.Rows {
		kk := key{strategy: row.Strategy, k: row.K}
		var avgLatency int64
		if latCounts[kk] > 0 {
			avgLatency = latSums[kk] / latCounts[kk]
		}
		entries = append(entries, Entry{
			Strategy:   row.Strategy,
			Dataset:    report.Dataset,
			K:          row.K,
			Precision:  row.Precision,
			Recall:     row.Recall,
			MRR:        row.MRR,
			AvgLatency: avgLatency,
			RunID:      strings.TrimSpace(runID),
			EvalDate:   report.FinishedAt,
		})
	}
	return entries
}
