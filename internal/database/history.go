package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/linkcheck/internal/model"
)

// FileName is the name of the history database file.
const FileName = "linkcheck.db"

// HistoryDB stores run summaries in SQLite.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging, so a watch loop can write
	// while the history command reads.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error
// wrapping ErrNotFound is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}

	db, err := sql.Open("sqlite", dbPath+"?mode="+mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the path of the database file.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		root TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		source_pages INTEGER NOT NULL DEFAULT 0,
		target_pages INTEGER NOT NULL DEFAULT 0,
		links_checked INTEGER NOT NULL DEFAULT 0,
		links_broken INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_runs_root ON runs(root, start_time);

	CREATE TABLE IF NOT EXISTS broken_links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		source TEXT NOT NULL,
		href TEXT NOT NULL,
		text TEXT NOT NULL DEFAULT '',
		target_path TEXT NOT NULL,
		fragment TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		fetch_error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_broken_run ON broken_links(run_id);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// RunRecord is the stored metadata of one run.
type RunRecord struct {
	ID           string
	Root         string
	StartTime    time.Time
	EndTime      time.Time
	SourcePages  int
	TargetPages  int
	LinksChecked int
	LinksBroken  int
	Error        string
}

// Elapsed returns the duration of the run.
func (r RunRecord) Elapsed() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// SaveSummary stores a run summary and its broken links in one transaction.
func (hdb *HistoryDB) SaveSummary(ctx context.Context, s *model.Summary) (err error) {
	if s.RunID == "" {
		return ErrMissingRunID
	}

	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (id, root, start_time, end_time, source_pages, target_pages, links_checked, links_broken, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.RunID,
		s.Root,
		formatTimestamp(s.StartTime),
		formatTimestamp(s.EndTime),
		s.SourcePages,
		s.TargetPages,
		s.LinksChecked,
		s.LinksBroken,
		s.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO broken_links (run_id, source, href, text, target_path, fragment, reason, fetch_error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare broken link insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range s.Broken {
		if _, err = stmt.ExecContext(ctx,
			s.RunID, b.Source, b.Href, b.Text, b.TargetPath, b.Fragment, b.Reason, b.FetchError,
		); err != nil {
			return fmt.Errorf("failed to save broken link: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// ListRuns returns the stored runs of root, newest first. An empty root
// lists the runs of every directory. A limit <= 0 means no limit.
func (hdb *HistoryDB) ListRuns(ctx context.Context, root string, limit int) ([]RunRecord, error) {
	query := `
	SELECT id, root, start_time, end_time, source_pages, target_pages, links_checked, links_broken, error
	FROM runs
	WHERE 1=1
	`
	args := make([]any, 0, 2)

	if root != "" {
		query += " AND root = ?"
		args = append(args, root)
	}

	query += " ORDER BY start_time DESC, rowid DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var rec RunRecord
	var start, end string

	if err := row.Scan(
		&rec.ID,
		&rec.Root,
		&start,
		&end,
		&rec.SourcePages,
		&rec.TargetPages,
		&rec.LinksChecked,
		&rec.LinksBroken,
		&rec.Error,
	); err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	rec.StartTime = parseTimestamp(start)
	rec.EndTime = parseTimestamp(end)
	return &rec, nil
}

// GetSummary loads the summary of a stored run.
// It returns nil and no error when the run does not exist.
func (hdb *HistoryDB) GetSummary(ctx context.Context, runID string) (*model.Summary, error) {
	row := hdb.db.QueryRowContext(ctx, `
	SELECT id, root, start_time, end_time, source_pages, target_pages, links_checked, links_broken, error
	FROM runs
	WHERE id = ?
	`, runID)

	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s := &model.Summary{
		RunID:        rec.ID,
		Root:         rec.Root,
		StartTime:    rec.StartTime,
		EndTime:      rec.EndTime,
		SourcePages:  rec.SourcePages,
		TargetPages:  rec.TargetPages,
		LinksChecked: rec.LinksChecked,
		LinksBroken:  rec.LinksBroken,
		Error:        rec.Error,
	}

	rows, err := hdb.db.QueryContext(ctx, `
	SELECT source, href, text, target_path, fragment, reason, fetch_error
	FROM broken_links
	WHERE run_id = ?
	ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load broken links: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b model.BrokenLink
		if err := rows.Scan(&b.Source, &b.Href, &b.Text, &b.TargetPath, &b.Fragment, &b.Reason, &b.FetchError); err != nil {
			return nil, fmt.Errorf("failed to scan broken link: %w", err)
		}
		s.Broken = append(s.Broken, b)
	}

	return s, rows.Err()
}

// LatestSummaries returns up to n summaries of root, newest first.
func (hdb *HistoryDB) LatestSummaries(ctx context.Context, root string, n int) ([]*model.Summary, error) {
	records, err := hdb.ListRuns(ctx, root, n)
	if err != nil {
		return nil, err
	}

	summaries := make([]*model.Summary, 0, len(records))
	for _, rec := range records {
		s, err := hdb.GetSummary(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
		if s != nil {
			summaries = append(summaries, s)
		}
	}
	return summaries, nil
}

// ListRoots returns every directory with stored runs.
func (hdb *HistoryDB) ListRoots(ctx context.Context) ([]string, error) {
	rows, err := hdb.db.QueryContext(ctx, `SELECT DISTINCT root FROM runs ORDER BY root`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roots: %w", err)
	}
	defer rows.Close()

	var roots []string
	for rows.Next() {
		var root string
		if err := rows.Scan(&root); err != nil {
			return nil, fmt.Errorf("failed to scan root: %w", err)
		}
		roots = append(roots, root)
	}

	return roots, rows.Err()
}

// Prune deletes all but the newest keep runs of root and returns the
// number of deleted runs.
func (hdb *HistoryDB) Prune(ctx context.Context, root string, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	stale := `
	SELECT id FROM runs WHERE root = ?
	ORDER BY start_time DESC, rowid DESC
	LIMIT -1 OFFSET ?
	`

	if _, err := hdb.db.ExecContext(ctx,
		"DELETE FROM broken_links WHERE run_id IN ("+stale+")", root, keep,
	); err != nil {
		return 0, fmt.Errorf("failed to prune broken links: %w", err)
	}

	res, err := hdb.db.ExecContext(ctx, "DELETE FROM runs WHERE id IN ("+stale+")", root, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}

	return res.RowsAffected()
}

// storedTimeFormat is fixed-width so that stored times sort lexically.
const storedTimeFormat = "2006-01-02T15:04:05.000000000Z"

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(storedTimeFormat)
}

// parseTimestamp parses a stored timestamp, returning the zero time when
// no format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
