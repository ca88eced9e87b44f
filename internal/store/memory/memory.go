// Package memory is an in-process RecordStore. The server uses it when no
// database is configured, and tests use it as a fake.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/recordqa/internal/core"
	"github.com/google/uuid"
)

type sheet struct {
	schema    core.Schema
	records   []*core.Record
	snapshots []snapshot
}

type snapshot struct {
	meta    core.Snapshot
	records []*core.Record
}

// Store keeps sheets in memory. Records are cloned on the way in and out,
// so callers never share state with the store.
type Store struct {
	mu     sync.RWMutex
	sheets map[string]*sheet
}

// New creates an empty store.
func New() *Store {
	return &Store{sheets: make(map[string]*sheet)}
}

// CreateSheet adds a sheet and returns its id.
func (s *Store) CreateSheet(ctx context.Context, schema core.Schema, records []*core.Record) (string, error) {
	id := uuid.New().String()
	if err := s.PutSheet(id, schema, records); err != nil {
		return "", err
	}
	return id, nil
}

// PutSheet creates or replaces a sheet under a caller-chosen id. Records
// without an id get a generated one.
func (s *Store) PutSheet(id string, schema core.Schema, records []*core.Record) error {
	if _, err := core.NewSchema(schema...); err != nil {
		return err
	}

	sh := &sheet{schema: schema, records: make([]*core.Record, 0, len(records))}
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		c := r.Clone()
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if seen[c.ID] {
			return fmt.Errorf("sheet %s: %w: %s", id, core.ErrDuplicateRecordID, c.ID)
		}
		seen[c.ID] = true
		sh.records = append(sh.records, c)
	}

	s.mu.Lock()
	s.sheets[id] = sh
	s.mu.Unlock()
	return nil
}

func (s *Store) sheet(id string) (*sheet, error) {
	sh, ok := s.sheets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrSheetNotFound, id)
	}
	return sh, nil
}

// Schema implements core.RecordStore.
func (s *Store) Schema(ctx context.Context, sheetID string) (core.Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sh, err := s.sheet(sheetID)
	if err != nil {
		return nil, err
	}
	return append(core.Schema(nil), sh.schema...), nil
}

// ListRecords implements core.RecordStore.
func (s *Store) ListRecords(ctx context.Context, sheetID string, opts core.ListOptions) ([]*core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sh, err := s.sheet(sheetID)
	if err != nil {
		return nil, err
	}

	matched := sh.records
	if len(opts.IDs) > 0 {
		want := make(map[string]bool, len(opts.IDs))
		for _, id := range opts.IDs {
			want[id] = true
		}
		matched = nil
		for _, r := range sh.records {
			if want[r.ID] {
				matched = append(matched, r)
			}
		}
	}

	start, end := pageBounds(len(matched), opts.Page, opts.PageSize)
	out := make([]*core.Record, 0, end-start)
	for _, r := range matched[start:end] {
		out = append(out, r.Clone())
	}
	return out, nil
}

// pageBounds returns the slice bounds of a 1-based page. A non-positive
// page size returns everything.
func pageBounds(n, page, size int) (int, int) {
	if size <= 0 {
		return 0, n
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * size
	if start >= n {
		return n, n
	}
	return start, min(start+size, n)
}

// CountRecords implements core.RecordStore.
func (s *Store) CountRecords(ctx context.Context, sheetID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sh, err := s.sheet(sheetID)
	if err != nil {
		return 0, err
	}
	return len(sh.records), nil
}

// DeleteRecords implements core.RecordStore. Unknown ids are ignored.
func (s *Store) DeleteRecords(ctx context.Context, sheetID string, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sh, err := s.sheet(sheetID)
	if err != nil {
		return err
	}

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := sh.records[:0]
	for _, r := range sh.records {
		if !drop[r.ID] {
			kept = append(kept, r)
		}
	}
	clear(sh.records[len(kept):])
	sh.records = kept
	return nil
}

// UpdateRecords implements core.RecordStore. Every record must exist; on
// failure nothing is written.
func (s *Store) UpdateRecords(ctx context.Context, sheetID string, records []*core.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sh, err := s.sheet(sheetID)
	if err != nil {
		return err
	}

	pos := make(map[string]int, len(sh.records))
	for i, r := range sh.records {
		pos[r.ID] = i
	}
	for _, r := range records {
		if _, ok := pos[r.ID]; !ok {
			return fmt.Errorf("update: %w: %s", core.ErrRecordNotFound, r.ID)
		}
	}
	for _, r := range records {
		sh.records[pos[r.ID]] = r.Clone()
	}
	return nil
}

// CreateSnapshot implements core.RecordStore.
func (s *Store) CreateSnapshot(ctx context.Context, sheetID, label string) (core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, err := s.sheet(sheetID)
	if err != nil {
		return core.Snapshot{}, err
	}

	snap := snapshot{
		meta: core.Snapshot{
			ID:        uuid.New().String(),
			SheetID:   sheetID,
			Label:     label,
			Records:   len(sh.records),
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		},
		records: make([]*core.Record, len(sh.records)),
	}
	for i, r := range sh.records {
		snap.records[i] = r.Clone()
	}
	sh.snapshots = append(sh.snapshots, snap)
	return snap.meta, nil
}

// Snapshots lists a sheet's snapshots, oldest first.
func (s *Store) Snapshots(sheetID string) ([]core.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sh, err := s.sheet(sheetID)
	if err != nil {
		return nil, err
	}
	out := make([]core.Snapshot, len(sh.snapshots))
	for i, snap := range sh.snapshots {
		out[i] = snap.meta
	}
	return out, nil
}

// SnapshotRecords returns the records captured by a snapshot.
func (s *Store) SnapshotRecords(sheetID, snapshotID string) ([]*core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sh, err := s.sheet(sheetID)
	if err != nil {
		return nil, err
	}
	for _, snap := range sh.snapshots {
		if snap.meta.ID == snapshotID {
			out := make([]*core.Record, len(snap.records))
			for i, r := range snap.records {
				out[i] = r.Clone()
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("snapshot not found: %s", snapshotID)
}
