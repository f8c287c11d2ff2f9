// Package store persists converted records in PostgreSQL.
//
// Each import creates one sheet_conversions row and one sheet_records row per
// record. The record column is JSON rather than JSONB so the stored text keeps
// the key order produced by the converter. Records are written with COPY inside a transaction, so an
// import is either fully visible or absent.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/sheetjson/internal/config"
	"github.com/JonMunkholm/sheetjson/internal/core"
)

var (
	// ErrNotConfigured is returned when an import is requested without a database.
	ErrNotConfigured = errors.New("database not configured")

	// ErrConversionNotFound is returned for an id with no stored conversion.
	ErrConversionNotFound = errors.New("conversion not found")
)

// recordColumns are the sheet_records columns filled by COPY, in order.
var recordColumns = []string{"conversion_id", "sheet_name", "row_index", "record"}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sheet_conversions (
	id           UUID PRIMARY KEY,
	source_name  TEXT NOT NULL,
	sheet_count  INTEGER NOT NULL,
	record_count INTEGER NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sheet_records (
	conversion_id UUID NOT NULL REFERENCES sheet_conversions(id) ON DELETE CASCADE,
	sheet_name    TEXT NOT NULL,
	row_index     INTEGER NOT NULL,
	record        JSON NOT NULL,
	PRIMARY KEY (conversion_id, sheet_name, row_index)
);`

// Store writes conversions to PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// ImportSummary describes one stored conversion.
type ImportSummary struct {
	ConversionID uuid.UUID      `json:"conversion_id"`
	Source       string         `json:"source"`
	Records      int64          `json:"records"`
	Sheets       map[string]int `json:"sheets"`
	CreatedAt    time.Time      `json:"created_at"`
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pool from cfg, verifies it, and makes sure the schema
// exists. It returns ErrNotConfigured when cfg has no URL.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := New(pool)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	slog.Info("connected to database", "database", poolConfig.ConnConfig.Database)
	return s, nil
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Import stores every record of res under a new conversion id.
func (s *Store) Import(ctx context.Context, id uuid.UUID, source string, res *core.Result) (*ImportSummary, error) {
	rows, err := CopyRows(id, res)
	if err != nil {
		return nil, err
	}

	summary := &ImportSummary{
		ConversionID: id,
		Source:       source,
		Sheets:       SheetCounts(res),
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	err = tx.QueryRow(ctx, `
		INSERT INTO sheet_conversions (id, source_name, sheet_count, record_count)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		pgUUID(id), source, len(res.Sheets), len(rows),
	).Scan(&summary.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert conversion: %w", err)
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"sheet_records"}, recordColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return nil, fmt.Errorf("copy records: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit import: %w", err)
	}

	summary.Records = n
	return summary, nil
}

// Records returns the stored records of one sheet of a conversion in row order.
// A known conversion without that sheet yields an empty slice.
func (s *Store) Records(ctx context.Context, id uuid.UUID, sheet string) ([]json.RawMessage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT record FROM sheet_records
		WHERE conversion_id = $1 AND sheet_name = $2
		ORDER BY row_index`,
		pgUUID(id), sheet,
	)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (json.RawMessage, error) {
		var raw []byte
		err := row.Scan(&raw)
		return json.RawMessage(raw), err
	})
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	if len(records) > 0 {
		return records, nil
	}

	// No rows: an empty sheet, an unknown sheet, or an unknown conversion.
	var exists bool
	err = s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM sheet_conversions WHERE id = $1)`, pgUUID(id),
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("query conversion: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", id, ErrConversionNotFound)
	}
	return []json.RawMessage{}, nil
}

// Delete removes a conversion and its records. It returns
// ErrConversionNotFound when nothing was stored under id.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sheet_conversions WHERE id = $1`, pgUUID(id))
	if err != nil {
		return fmt.Errorf("delete conversion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", id, ErrConversionNotFound)
	}
	return nil
}

// CopyRows builds the COPY input for res: one row per record with the
// record encoded as ordered JSON.
func CopyRows(id uuid.UUID, res *core.Result) ([][]any, error) {
	if res == nil {
		return nil, nil
	}

	rows := make([][]any, 0, res.RowCount())
	for _, sheet := range res.Sheets {
		for i, rec := range sheet.Rows {
			data, err := json.Marshal(rec)
			if err != nil {
				return nil, fmt.Errorf("encode record %d of sheet %q: %w", i, sheet.Name, err)
			}
			rows = append(rows, []any{pgUUID(id), sheet.Name, int32(i), json.RawMessage(data)})
		}
	}
	return rows, nil
}

// SheetCounts returns the number of records per sheet.
func SheetCounts(res *core.Result) map[string]int {
	counts := make(map[string]int)
	if res == nil {
		return counts
	}
	for _, sheet := range res.Sheets {
		counts[sheet.Name] = len(sheet.Rows)
	}
	return counts
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}
