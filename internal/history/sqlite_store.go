// Package history keeps the append-only generation log in a SQLite file.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"perfumevisual/internal/domain"
)

// SQLiteStore implements domain.HistoryStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates when missing) the history database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("history: path is required")
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open sqlite db: %w", err)
	}
	// One writer at a time is all the log needs.
	db.SetMaxOpenConns(1)
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS generation_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		brand TEXT NOT NULL,
		perfume_name TEXT NOT NULL,
		description TEXT NOT NULL,
		original_image TEXT,
		final_image TEXT NOT NULL,
		final_image_path TEXT,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS generation_history_timestamp_idx ON generation_history (timestamp);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("history: migrate schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append adds rec to the end of the log.
func (s *SQLiteStore) Append(ctx context.Context, rec domain.GenerationRecord) error {
	if strings.TrimSpace(rec.Timestamp) == "" {
		return fmt.Errorf("history: %w: timestamp is required", domain.ErrInvalidRequest)
	}
	if rec.Status == "" {
		rec.Status = domain.GenerationPending
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generation_history (timestamp, brand, perfume_name, description, original_image, final_image, final_image_path, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp, rec.Brand, rec.PerfumeName, rec.Description, nullable(rec.OriginalImage), rec.FinalImage,
		nullable(rec.FinalImagePath), string(rec.Status), rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("history: insert record: %w", err)
	}
	return nil
}

// List returns every record in append order.
func (s *SQLiteStore) List(ctx context.Context) ([]domain.GenerationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM generation_history ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("history: list records: %w", err)
	}
	defer rows.Close()

	var out []domain.GenerationRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate records: %w", err)
	}
	return out, nil
}

// Get returns the first record appended with the given timestamp.
func (s *SQLiteStore) Get(ctx context.Context, timestamp string) (*domain.GenerationRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM generation_history WHERE timestamp = ? ORDER BY id ASC LIMIT 1`, timestamp)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rec, err
}

// Complete marks the first record with timestamp as completed and stores the
// final artifact path. It is the only mutation the log allows.
func (s *SQLiteStore) Complete(ctx context.Context, timestamp, finalImagePath string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE generation_history SET status = ?, final_image_path = ?
		 WHERE id = (SELECT id FROM generation_history WHERE timestamp = ? ORDER BY id ASC LIMIT 1)`,
		string(domain.GenerationCompleted), nullable(finalImagePath), timestamp,
	)
	if err != nil {
		return fmt.Errorf("history: complete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("history: rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const columns = `timestamp, brand, perfume_name, description, original_image, final_image, final_image_path, status, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*domain.GenerationRecord, error) {
	var (
		rec       domain.GenerationRecord
		original  sql.NullString
		finalPath sql.NullString
		status    string
		createdAt string
	)
	if err := row.Scan(&rec.Timestamp, &rec.Brand, &rec.PerfumeName, &rec.Description, &original,
		&rec.FinalImage, &finalPath, &status, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("history: scan record: %w", err)
	}
	rec.OriginalImage = original.String
	rec.FinalImagePath = finalPath.String
	rec.Status = domain.GenerationStatus(status)
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		rec.CreatedAt = t
	}
	return &rec, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ domain.HistoryStore = (*SQLiteStore)(nil)
