package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const defaultListLimit = 50

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	insertRunStmt *sql.Stmt
	insertRowStmt *sql.Stmt
	getRunStmt    *sql.Stmt
	rowsByRunStmt *sql.Stmt
}

var (
	sqliteOpen              = sql.Open
	sqlitePrepareStatements = (*SQLiteStore).prepareStatements
)

// NewSQLiteStore opens or creates a SQLite store at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store: empty sqlite path")
	}
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create sqlite dir: %w", err)
			}
		}
	}

	db, err := sqliteOpen("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}

	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	st := &SQLiteStore{db: db}
	if err := sqlitePrepareStatements(st); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func initSQLiteSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS eval_runs (
			id TEXT PRIMARY KEY,
			dataset TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			strategies TEXT NOT NULL,
			ks TEXT NOT NULL,
			config_json TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS eval_rows (
			run_id TEXT NOT NULL,
			ord INTEGER NOT NULL,
			strategy TEXT NOT NULL,
			k INTEGER NOT NULL,
			precision REAL NOT NULL,
			recall REAL NOT NULL,
			mrr REAL NOT NULL,
			queries INTEGER NOT NULL,
			failures INTEGER NOT NULL,
			records BLOB NOT NULL,
			PRIMARY KEY (run_id, strategy, k),
			FOREIGN KEY(run_id) REFERENCES eval_runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_eval_rows_run_id ON eval_rows(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_eval_runs_dataset ON eval_runs(dataset, finished_at)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) prepareStatements() error {
	if s == nil || s.db == nil {
		return errors.New("store: nil sqlite store")
	}

	ctx := context.Background()
	type stmtSpec struct {
		dst    **sql.Stmt
		query  string
		errFmt string
	}

	specs := []stmtSpec{
		{
			dst: &s.insertRunStmt,
			query: `
				INSERT INTO eval_runs (
					id, dataset, started_at, finished_at, strategies, ks, config_json
				) VALUES (?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert run: %w",
		},
		{
			dst: &s.insertRowStmt,
			query: `
				INSERT INTO eval_rows (
					run_id, ord, strategy, k, precision, recall, mrr, queries, failures, records
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert row: %w",
		},
		{
			dst: &s.getRunStmt,
			query: `
				SELECT id, dataset, started_at, finished_at, strategies, ks, config_json
				FROM eval_runs WHERE id = ?
			`,
			errFmt: "store: prepare get run: %w",
		},
		{
			dst: &s.rowsByRunStmt,
			query: `
				SELECT run_id, strategy, k, precision, recall, mrr, queries, failures, records
				FROM eval_rows
				WHERE run_id = ?
				ORDER BY ord ASC
			`,
			errFmt: "store: prepare get rows: %w",
		},
	}

	for _, spec := range specs {
		stmt, err := s.db.PrepareContext(ctx, spec.query)
		if err != nil {
			return fmt.Errorf(spec.errFmt, err)
		}
		*spec.dst = stmt
	}

	return nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() error {
	if s == nil {
		return nil
	}
	stmts := []*sql.Stmt{
		s.insertRunStmt,
		s.insertRowStmt,
		s.getRunStmt,
		s.rowsByRunStmt,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveRun persists a run summary.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *RunRecord) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	if run == nil {
		return errors.New("store: nil run")
	}

	id := strings.TrimSpace(run.ID)
	if id == "" {
		return errors.New("store: empty run id")
	}
	if strings.TrimSpace(run.Dataset) == "" {
		return errors.New("store: empty dataset name")
	}
	if run.StartedAt.IsZero() || run.FinishedAt.IsZero() {
		return errors.New("store: missing run timestamps")
	}

	strategiesJSON, err := json.Marshal(run.Strategies)
	if err != nil {
		return fmt.Errorf("store: marshal strategies: %w", err)
	}
	ksJSON, err := json.Marshal(run.Ks)
	if err != nil {
		return fmt.Errorf("store: marshal ks: %w", err)
	}
	cfgJSON := []byte("null")
	if run.Config != nil {
		cfgJSON, err = json.Marshal(run.Config)
		if err != nil {
			return fmt.Errorf("store: marshal run config: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin run tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt := tx.StmtContext(ctx, s.insertRunStmt)
	defer stmt.Close()

	_, err = stmt.ExecContext(
		ctx,
		id,
		run.Dataset,
		run.StartedAt.UTC().UnixMilli(),
		run.FinishedAt.UTC().UnixMilli(),
		string(strategiesJSON),
		string(ksJSON),
		string(cfgJSON),
	)
	if err != nil {
		return fmt.Errorf("store: insert run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit run: %w", err)
	}
	return nil
}

// SaveRows persists the aggregate rows of one run in one transaction. The
// slice order becomes the stored row order.
func (s *SQLiteStore) SaveRows(ctx context.Context, rows []*RowRecord) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	if len(rows) == 0 {
		return errors.New("store: no rows")
	}
	for i, row := range rows {
		if row == nil {
			return fmt.Errorf("store: nil row at %d", i)
		}
		if strings.TrimSpace(row.RunID) == "" {
			return fmt.Errorf("store: row %d missing run id", i)
		}
		if strings.TrimSpace(row.Strategy) == "" {
			return fmt.Errorf("store: row %d missing strategy", i)
		}
		if row.K <= 0 {
			return fmt.Errorf("store: row %d invalid k %d", i, row.K)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin rows tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt := tx.StmtContext(ctx, s.insertRowStmt)
	defer stmt.Close()

	for i, row := range rows {
		recordsJSON, err := json.Marshal(row.Records)
		if err != nil {
			return fmt.Errorf("store: marshal row records: %w", err)
		}
		_, err = stmt.ExecContext(
			ctx,
			row.RunID,
			i,
			row.Strategy,
			row.K,
			row.Precision,
			row.Recall,
			row.MRR,
			row.Queries,
			row.Failures,
			recordsJSON,
		)
		if err != nil {
			return fmt.Errorf("store: insert row %s@%d: %w", row.Strategy, row.K, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit rows: %w", err)
	}
	return nil
}

// GetRun loads a run by id.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("store: empty run id")
	}

	row := s.getRunStmt.QueryRowContext(ctx, id)
	rec, err := scanRun(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: get run: %w", err)
	}
	return rec, nil
}

// ListRuns returns runs matching the filter, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}

	dataset := strings.TrimSpace(filter.Dataset)
	strategy := strings.TrimSpace(filter.Strategy)
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var sb strings.Builder
	sb.WriteString(`SELECT DISTINCT e.id, e.dataset, e.started_at, e.finished_at, e.strategies, e.ks, e.config_json FROM eval_runs e`)
	if strategy != "" {
		sb.WriteString(` JOIN eval_rows r ON r.run_id = e.id`)
	}
	sb.WriteString(` WHERE 1=1`)

	var args []any
	if dataset != "" {
		sb.WriteString(` AND e.dataset = ?`)
		args = append(args, dataset)
	}
	if strategy != "" {
		sb.WriteString(` AND r.strategy = ?`)
		args = append(args, strategy)
	}
	if !filter.Since.IsZero() {
		sb.WriteString(` AND e.started_at >= ?`)
		args = append(args, filter.Since.UTC().UnixMilli())
	}
	if !filter.Until.IsZero() {
		sb.WriteString(` AND e.started_at <= ?`)
		args = append(args, filter.Until.UTC().UnixMilli())
	}
	sb.WriteString(` ORDER BY e.started_at DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []*RunRecord
	for rows.Next() {
		rec, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	return out, nil
}

// GetRows lists the aggregate rows of a run in stored order.
func (s *SQLiteStore) GetRows(ctx context.Context, runID string) ([]*RowRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, errors.New("store: empty run id")
	}

	rows, err := s.rowsByRunStmt.QueryContext(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("store: get rows: %w", err)
	}
	defer rows.Close()
	return scanRowRecords(rows)
}

// History returns the metric trend for a dataset, newest run first.
func (s *SQLiteStore) History(ctx context.Context, filter HistoryFilter) ([]*HistoryPoint, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	dataset := strings.TrimSpace(filter.Dataset)
	if dataset == "" {
		return nil, errors.New("store: empty dataset name")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var sb strings.Builder
	sb.WriteString(`
		SELECT r.run_id, e.dataset, e.finished_at, r.strategy, r.k, r.precision, r.recall, r.mrr
		FROM eval_rows r
		JOIN eval_runs e ON e.id = r.run_id
		WHERE e.dataset = ?
	`)
	args := []any{dataset}
	if strategy := strings.TrimSpace(filter.Strategy); strategy != "" {
		sb.WriteString(` AND r.strategy = ?`)
		args = append(args, strategy)
	}
	if filter.K > 0 {
		sb.WriteString(` AND r.k = ?`)
		args = append(args, filter.K)
	}
	sb.WriteString(` ORDER BY e.finished_at DESC, r.ord ASC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("store: history: %w", err)
	}
	defer rows.Close()

	var out []*HistoryPoint
	for rows.Next() {
		var (
			p          HistoryPoint
			finishedMS int64
		)
		if err := rows.Scan(&p.RunID, &p.Dataset, &finishedMS, &p.Strategy, &p.K, &p.Precision, &p.Recall, &p.MRR); err != nil {
			return nil, fmt.Errorf("store: scan history: %w", err)
		}
		p.FinishedAt = time.UnixMilli(finishedMS).UTC()
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: history: %w", err)
	}
	return out, nil
}

// CompareRuns diffs two stored runs over the (strategy, k) pairs they share.
func (s *SQLiteStore) CompareRuns(ctx context.Context, baselineID, candidateID string, epsilon float64) (*RunComparison, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	baselineID = strings.TrimSpace(baselineID)
	candidateID = strings.TrimSpace(candidateID)
	if baselineID == "" || candidateID == "" {
		return nil, errors.New("store: missing run id")
	}
	if epsilon < 0 {
		return nil, fmt.Errorf("store: negative epsilon %v", epsilon)
	}

	baseline, err := s.GetRun(ctx, baselineID)
	if err != nil {
		return nil, err
	}
	candidate, err := s.GetRun(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	baseRows, err := s.GetRows(ctx, baselineID)
	if err != nil {
		return nil, err
	}
	candRows, err := s.GetRows(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	deltas, regressions, improvements := diffRows(baseRows, candRows, epsilon)

	return &RunComparison{
		Baseline:      baseline,
		Candidate:     candidate,
		BaselineRows:  baseRows,
		CandidateRows: candRows,
		Deltas:        deltas,
		Regressions:   regressions,
		Improvements:  improvements,
	}, nil
}

func scanRun(scan func(dest ...any) error) (*RunRecord, error) {
	var (
		id             string
		ds             string
		startedAtMS    int64
		finishedAtMS   int64
		strategiesJSON string
		ksJSON         string
		cfgJSON        sql.NullString
	)
	if err := scan(&id, &ds, &startedAtMS, &finishedAtMS, &strategiesJSON, &ksJSON, &cfgJSON); err != nil {
		return nil, err
	}

	var strategies []string
	if err := json.Unmarshal([]byte(strategiesJSON), &strategies); err != nil {
		return nil, fmt.Errorf("decode strategies: %w", err)
	}
	var ks []int
	if err := json.Unmarshal([]byte(ksJSON), &ks); err != nil {
		return nil, fmt.Errorf("decode ks: %w", err)
	}
	cfg, err := decodeConfig(cfgJSON)
	if err != nil {
		return nil, fmt.Errorf("decode run config: %w", err)
	}

	return &RunRecord{
		ID:         id,
		Dataset:    ds,
		StartedAt:  time.UnixMilli(startedAtMS).UTC(),
		FinishedAt: time.UnixMilli(finishedAtMS).UTC(),
		Strategies: strategies,
		Ks:         ks,
		Config:     cfg,
	}, nil
}

func scanRowRecords(rows *sql.Rows) ([]*RowRecord, error) {
	var out []*RowRecord
	for rows.Next() {
		var (
			rec         RowRecord
			recordsJSON []byte
		)
		if err := rows.Scan(
			&rec.RunID,
			&rec.Strategy,
			&rec.K,
			&rec.Precision,
			&rec.Recall,
			&rec.MRR,
			&rec.Queries,
			&rec.Failures,
			&recordsJSON,
		); err != nil {
			return nil, fmt.Errorf("store: scan row: %w", err)
		}
		if len(recordsJSON) > 0 {
			if err := json.Unmarshal(recordsJSON, &rec.Records); err != nil {
				return nil, fmt.Errorf("store: decode row records: %w", err)
			}
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan rows: %w", err)
	}
	return out, nil
}

func decodeConfig(cfgJSON sql.NullString) (map[string]any, error) {
	if !cfgJSON.Valid {
		return nil, nil
	}
	raw := strings.TrimSpace(cfgJSON.String)
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var cfg map[string]any
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func diffRows(baseline, candidate []*RowRecord, epsilon float64) ([]RowDelta, []string, []string) {
	type key struct {
		strategy string
		k        int
	}
	base := make(map[key]*RowRecord, len(baseline))
	for _, row := range baseline {
		base[key{row.Strategy, row.K}] = row
	}

	var (
		deltas       []RowDelta
		regressions  []string
		improvements []string
	)
	note := func(strategy string, k int, metric string, delta float64) {
		switch {
		case delta < -epsilon:
			regressions = append(regressions, fmt.Sprintf("%s@%d %s", strategy, k, metric))
		case delta > epsilon:
			improvements = append(improvements, fmt.Sprintf("%s@%d %s", strategy, k, metric))
		}
	}

	for _, cand := range candidate {
		b, ok := base[key{cand.Strategy, cand.K}]
		if !ok {
			continue
		}
		d := RowDelta{
			Strategy:  cand.Strategy,
			K:         cand.K,
			Precision: cand.Precision - b.Precision,
			Recall:    cand.Recall - b.Recall,
			MRR:       cand.MRR - b.MRR,
		}
		deltas = append(deltas, d)
		note(cand.Strategy, cand.K, "precision", d.Precision)
		note(cand.Strategy, cand.K, "recall", d.Recall)
		note(cand.Strategy, cand.K, "mrr", d.MRR)
	}

	sort.Strings(regressions)
	sort.Strings(improvements)
	return deltas, regressions, improvements
}
