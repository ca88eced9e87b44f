// Package postgres is a RecordStore backed by PostgreSQL through pgx.
//
// Sheets, records and snapshots live in three tables (see Migrate). Record
// values and annotations are stored together as one jsonb document per
// record, so a schema change never needs a migration.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/recordqa/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	SendBatch(context.Context, *pgx.Batch) pgx.BatchResults
}

// DB is a DBTX that can open transactions, such as *pgxpool.Pool.
type DB interface {
	DBTX
	Begin(context.Context) (pgx.Tx, error)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sheets (
	id         TEXT PRIMARY KEY,
	schema     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS records (
	sheet_id TEXT NOT NULL REFERENCES sheets(id) ON DELETE CASCADE,
	id       TEXT NOT NULL,
	position BIGINT NOT NULL,
	data     JSONB NOT NULL DEFAULT '{}',
	PRIMARY KEY (sheet_id, id)
);

CREATE INDEX IF NOT EXISTS records_sheet_position_idx ON records (sheet_id, position);

CREATE TABLE IF NOT EXISTS snapshots (
	id           UUID PRIMARY KEY,
	sheet_id     TEXT NOT NULL REFERENCES sheets(id) ON DELETE CASCADE,
	label        TEXT NOT NULL DEFAULT '',
	record_count INTEGER NOT NULL,
	records      JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store implements core.RecordStore on PostgreSQL.
type Store struct {
	db DB
}

// New creates a store. Call Migrate once before use.
func New(db DB) *Store {
	return &Store{db: db}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// CreateSheet stores a new sheet and its records in one transaction.
// Records without an id get a generated one.
func (s *Store) CreateSheet(ctx context.Context, schema core.Schema, records []*core.Record) (string, error) {
	if _, err := core.NewSchema(schema...); err != nil {
		return "", err
	}
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("encode schema: %w", err)
	}

	sheetID := uuid.New().String()

	err = pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO sheets (id, schema) VALUES ($1, $2)`, sheetID, schemaJSON); err != nil {
			return fmt.Errorf("insert sheet: %w", err)
		}

		batch := &pgx.Batch{}
		for i, r := range records {
			id := r.ID
			if id == "" {
				id = uuid.New().String()
			}
			values, err := encodeValues(r)
			if err != nil {
				return err
			}
			batch.Queue(`INSERT INTO records (sheet_id, id, position, data) VALUES ($1, $2, $3, $4)`,
				sheetID, id, i, values)
		}
		return execBatch(ctx, tx, batch, nil)
	})
	if err != nil {
		return "", err
	}
	return sheetID, nil
}

// Schema implements core.RecordStore.
func (s *Store) Schema(ctx context.Context, sheetID string) (core.Schema, error) {
	var raw []byte
	err := s.db.QueryRow(ctx, `SELECT schema FROM sheets WHERE id = $1`, sheetID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrSheetNotFound, sheetID)
	}
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	var schema core.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return schema, nil
}

func (s *Store) ensureSheet(ctx context.Context, db DBTX, sheetID string) error {
	var exists bool
	if err := db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sheets WHERE id = $1)`, sheetID).Scan(&exists); err != nil {
		return fmt.Errorf("check sheet: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", core.ErrSheetNotFound, sheetID)
	}
	return nil
}

// ListRecords implements core.RecordStore.
func (s *Store) ListRecords(ctx context.Context, sheetID string, opts core.ListOptions) ([]*core.Record, error) {
	if err := s.ensureSheet(ctx, s.db, sheetID); err != nil {
		return nil, err
	}

	limit, offset := limitOffset(opts.Page, opts.PageSize)
	rows, err := s.db.Query(ctx, `
		SELECT id, data FROM records
		WHERE sheet_id = $1 AND (cardinality($2::text[]) = 0 OR id = ANY($2))
		ORDER BY position
		LIMIT $3 OFFSET $4`,
		sheetID, idsParam(opts.IDs), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*core.Record, error) {
		var id string
		var raw []byte
		if err := row.Scan(&id, &raw); err != nil {
			return nil, err
		}
		return decodeRecord(id, raw)
	})
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	return records, nil
}

// CountRecords implements core.RecordStore.
func (s *Store) CountRecords(ctx context.Context, sheetID string) (int, error) {
	if err := s.ensureSheet(ctx, s.db, sheetID); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM records WHERE sheet_id = $1`, sheetID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// DeleteRecords implements core.RecordStore. Unknown ids are ignored.
func (s *Store) DeleteRecords(ctx context.Context, sheetID string, ids []string) error {
	if err := s.ensureSheet(ctx, s.db, sheetID); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM records WHERE sheet_id = $1 AND id = ANY($2)`, sheetID, ids); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	return nil
}

// UpdateRecords implements core.RecordStore. All records are written in
// one transaction; a missing record rolls back the whole update.
func (s *Store) UpdateRecords(ctx context.Context, sheetID string, records []*core.Record) error {
	if err := s.ensureSheet(ctx, s.db, sheetID); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	ids := make([]string, len(records))
	for i, r := range records {
		values, err := encodeValues(r)
		if err != nil {
			return err
		}
		ids[i] = r.ID
		batch.Queue(`UPDATE records SET data = $3 WHERE sheet_id = $1 AND id = $2`, sheetID, r.ID, values)
	}

	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return execBatch(ctx, tx, batch, func(i int, tag pgconn.CommandTag) error {
			if tag.RowsAffected() != 1 {
				return fmt.Errorf("update: %w: %s", core.ErrRecordNotFound, ids[i])
			}
			return nil
		})
	})
}

// CreateSnapshot implements core.RecordStore. The snapshot holds a jsonb
// copy of every record in sheet order.
func (s *Store) CreateSnapshot(ctx context.Context, sheetID, label string) (core.Snapshot, error) {
	if err := s.ensureSheet(ctx, s.db, sheetID); err != nil {
		return core.Snapshot{}, err
	}

	id := core.ToPgUUID(uuid.New().String())
	var count int
	var created pgtype.Timestamptz
	err := s.db.QueryRow(ctx, `
		INSERT INTO snapshots (id, sheet_id, label, record_count, records)
		SELECT $1, $2, $3, count(*),
			COALESCE(jsonb_agg(jsonb_build_object('id', id, 'values', data) ORDER BY position), '[]'::jsonb)
		FROM records WHERE sheet_id = $2
		RETURNING record_count, created_at`,
		id, sheetID, label).Scan(&count, &created)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}

	return core.Snapshot{
		ID:        core.PgUUIDToString(id),
		SheetID:   sheetID,
		Label:     label,
		Records:   count,
		CreatedAt: created.Time.UTC().Format(time.RFC3339),
	}, nil
}

// execBatch sends a batch and checks every result with check, if set.
func execBatch(ctx context.Context, db DBTX, batch *pgx.Batch, check func(int, pgconn.CommandTag) error) (err error) {
	if batch.Len() == 0 {
		return nil
	}
	br := db.SendBatch(ctx, batch)
	defer func() {
		if cerr := br.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	for i := 0; i < batch.Len(); i++ {
		tag, err := br.Exec()
		if err != nil {
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
		if check != nil {
			if err := check(i, tag); err != nil {
				return err
			}
		}
	}
	return nil
}

// storedRecord is the jsonb layout of a record's data column.
type storedRecord map[string]*core.CellValue

func encodeValues(r *core.Record) ([]byte, error) {
	values := storedRecord(r.Values)
	if values == nil {
		values = storedRecord{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("encode record %s: %w", r.ID, err)
	}
	return b, nil
}

func decodeRecord(id string, raw []byte) (*core.Record, error) {
	var values storedRecord
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", id, err)
		}
	}
	rec := &core.Record{ID: id, Values: make(map[string]*core.CellValue, len(values))}
	for k, c := range values {
		if c == nil {
			c = &core.CellValue{}
		}
		rec.Values[k] = c
	}
	return rec, nil
}

func idsParam(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// limitOffset converts a 1-based page to LIMIT/OFFSET. A non-positive
// page size means no limit, which Postgres spells LIMIT NULL.
func limitOffset(page, size int) (*int, int) {
	if size <= 0 {
		return nil, 0
	}
	if page < 1 {
		page = 1
	}
	return &size, (page - 1) * size
}
