package core

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/JonMunkholm/recordqa/internal/logging"
	"golang.org/x/sync/errgroup"
)

// DefaultPageSize is the number of records fetched per store call.
const DefaultPageSize = 1000

// DefaultWorkers bounds concurrent record validation.
const DefaultWorkers = 4

// RecordStore is the remote record collection a sheet lives in.
type RecordStore interface {
	// Schema returns the sheet's field list, or ErrSheetNotFound.
	Schema(ctx context.Context, sheetID string) (Schema, error)

	// ListRecords returns one page of records in sheet order. When
	// opts.IDs is set, only those records are considered.
	ListRecords(ctx context.Context, sheetID string, opts ListOptions) ([]*Record, error)

	CountRecords(ctx context.Context, sheetID string) (int, error)

	DeleteRecords(ctx context.Context, sheetID string, ids []string) error

	// UpdateRecords replaces the values and annotations of existing records.
	UpdateRecords(ctx context.Context, sheetID string, records []*Record) error

	CreateSnapshot(ctx context.Context, sheetID, label string) (Snapshot, error)
}

// SheetCreator is implemented by stores that can create sheets.
type SheetCreator interface {
	CreateSheet(ctx context.Context, schema Schema, records []*Record) (string, error)
}

// ServiceConfig tunes a Service. Zero values select the defaults.
type ServiceConfig struct {
	PageSize   int
	Workers    int
	ExemptKeys []string
}

// Service applies merge plans and validation results to sheets in a store.
// The engines it calls never touch the store themselves.
type Service struct {
	store     RecordStore
	validator *RecordValidator
	cfg       ServiceConfig
}

// NewService creates a Service. A nil validator uses DefaultRules without
// reference data.
func NewService(store RecordStore, validator *RecordValidator, cfg ServiceConfig) *Service {
	if validator == nil {
		validator = NewRecordValidator(DefaultRules(nil))
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Service{store: store, validator: validator, cfg: cfg}
}

// Planner returns a merge planner exempting the configured keys plus the
// schema's merge-exempt fields.
func (s *Service) Planner(schema Schema) *MergePlanner {
	return NewMergePlanner(WithExemptKeys(s.cfg.ExemptKeys...), WithSchema(schema))
}

// Validator returns the validator used for sheets.
func (s *Service) Validator() *RecordValidator {
	return s.validator
}

// FetchAll pages through a sheet until a short page. When ids is non-empty
// only those records are fetched.
func (s *Service) FetchAll(ctx context.Context, sheetID string, ids []string) ([]*Record, error) {
	var all []*Record
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch, err := s.store.ListRecords(ctx, sheetID, ListOptions{
			IDs:      ids,
			Page:     page,
			PageSize: s.cfg.PageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("list records page %d: %w", page, err)
		}
		all = append(all, batch...)
		ReportProgress(ctx, "fetch", len(all), 0)

		if len(batch) < s.cfg.PageSize {
			return all, nil
		}
	}
}

// MergeAll reconciles every record of a sheet into the first one. An empty
// sheet has nothing to merge: MergeAll returns a nil plan and no error.
func (s *Service) MergeAll(ctx context.Context, sheetID string) (*MergePlan, error) {
	return s.merge(ctx, sheetID, nil)
}

// MergeSelected reconciles the given records into the first of them in
// sheet order. Every id must exist in the sheet.
func (s *Service) MergeSelected(ctx context.Context, sheetID string, ids []string) (*MergePlan, error) {
	if len(ids) == 0 {
		return nil, ErrEmptyInput
	}
	return s.merge(ctx, sheetID, ids)
}

func (s *Service) merge(ctx context.Context, sheetID string, ids []string) (*MergePlan, error) {
	logger := logging.FromContext(ctx).With("sheet_id", sheetID)

	schema, err := s.store.Schema(ctx, sheetID)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	records, err := s.FetchAll(ctx, sheetID, ids)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		if missing := missingIDs(ids, records); len(missing) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, strings.Join(missing, ", "))
		}
	} else if len(records) == 0 {
		logger.Info("sheet is empty, nothing to merge")
		return nil, nil
	}
	logger.Debug("fetched records for merge", "records", len(records))

	plan, err := s.Planner(schema).Plan(records)
	if err != nil {
		return nil, fmt.Errorf("plan merge: %w", err)
	}

	if err := s.apply(ctx, sheetID, []*MergePlan{plan}); err != nil {
		return nil, err
	}

	logger.Info("merged records", "survivor", plan.Survivor.ID, "discarded", len(plan.Discarded))
	return plan, nil
}

// MergeDuplicates groups a sheet's records by keyField and reconciles each
// group of two or more. Groups are planned concurrently.
func (s *Service) MergeDuplicates(ctx context.Context, sheetID, keyField string) ([]*MergePlan, error) {
	if keyField == "" {
		return nil, fmt.Errorf("merge duplicates: key field is required")
	}

	schema, err := s.store.Schema(ctx, sheetID)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if _, ok := schema.Field(keyField); !ok {
		return nil, fmt.Errorf("merge duplicates: %w: unknown field %q", ErrInvalidSchema, keyField)
	}

	records, err := s.FetchAll(ctx, sheetID, nil)
	if err != nil {
		return nil, err
	}

	var groups [][]*Record
	for _, g := range GroupByField(records, keyField) {
		if len(g) > 1 {
			groups = append(groups, g)
		}
	}

	planner := s.Planner(schema)
	plans := make([]*MergePlan, len(groups))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, group := range groups {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			plan, err := planner.Plan(group)
			if err != nil {
				return fmt.Errorf("plan group %d: %w", i, err)
			}
			plans[i] = plan
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.apply(ctx, sheetID, plans); err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("merged duplicate groups", "sheet_id", sheetID, "key", keyField, "groups", len(plans))
	return plans, nil
}

// apply deletes the discarded records, then writes the survivors.
func (s *Service) apply(ctx context.Context, sheetID string, plans []*MergePlan) error {
	if len(plans) == 0 {
		return nil
	}

	var discarded []string
	survivors := make([]*Record, 0, len(plans))
	for _, p := range plans {
		discarded = append(discarded, p.Discarded...)
		survivors = append(survivors, p.Survivor)
	}

	if len(discarded) > 0 {
		ReportProgress(ctx, "delete", 0, len(discarded))
		if err := s.store.DeleteRecords(ctx, sheetID, discarded); err != nil {
			return fmt.Errorf("delete merged records: %w", err)
		}
	}

	ReportProgress(ctx, "update", 0, len(survivors))
	if err := s.store.UpdateRecords(ctx, sheetID, survivors); err != nil {
		return fmt.Errorf("update survivors: %w", err)
	}
	return nil
}

// ValidationSummary counts the outcome of validating a sheet.
type ValidationSummary struct {
	SheetID string `json:"sheetId"`
	Records int    `json:"records"`
	Invalid int    `json:"invalid"`
	Errors  int    `json:"errors"`
	Info    int    `json:"info"`
}

// ValidateSheet clears old annotations, validates every record of a sheet,
// flags unique-constraint violations and writes the results back.
func (s *Service) ValidateSheet(ctx context.Context, sheetID string) (*ValidationSummary, error) {
	schema, err := s.store.Schema(ctx, sheetID)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	records, err := s.FetchAll(ctx, sheetID, nil)
	if err != nil {
		return nil, err
	}

	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for _, rec := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec.ResetAnnotations()
			s.validator.Validate(rec, schema)
			ReportProgress(ctx, "validate", int(done.Add(1)), len(records))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	CheckUnique(records, schema)

	if len(records) > 0 {
		if err := s.store.UpdateRecords(ctx, sheetID, records); err != nil {
			return nil, fmt.Errorf("write annotations: %w", err)
		}
	}

	summary := Summarize(records)
	summary.SheetID = sheetID
	logging.FromContext(ctx).Info("validated sheet",
		"sheet_id", sheetID,
		"records", summary.Records,
		"invalid", summary.Invalid,
		"errors", summary.Errors,
	)
	return &summary, nil
}

// Summarize counts annotations across records.
func Summarize(records []*Record) ValidationSummary {
	var sum ValidationSummary
	sum.Records = len(records)
	for _, rec := range records {
		n := rec.ErrorCount()
		if n > 0 {
			sum.Invalid++
		}
		sum.Errors += n
		for _, c := range rec.Values {
			if c != nil {
				sum.Info += len(c.Info)
			}
		}
	}
	return sum
}

// CreateSnapshot stores a labeled copy of a sheet. An empty label is allowed.
func (s *Service) CreateSnapshot(ctx context.Context, sheetID, label string) (Snapshot, error) {
	if strings.TrimSpace(sheetID) == "" {
		return Snapshot{}, fmt.Errorf("create snapshot: %w", ErrSheetNotFound)
	}
	snap, err := s.store.CreateSnapshot(ctx, sheetID, label)
	if err != nil {
		return Snapshot{}, fmt.Errorf("create snapshot: %w", err)
	}
	logging.FromContext(ctx).Info("created snapshot", "sheet_id", sheetID, "snapshot_id", snap.ID, "records", snap.Records)
	return snap, nil
}

// CreateSheet stores a new sheet when the store supports it.
func (s *Service) CreateSheet(ctx context.Context, schema Schema, records []*Record) (string, error) {
	creator, ok := s.store.(SheetCreator)
	if !ok {
		return "", fmt.Errorf("create sheet: store does not support creating sheets")
	}
	if _, err := NewSchema(schema...); err != nil {
		return "", err
	}
	if err := checkRecordIDs(records); err != nil {
		return "", err
	}

	id, err := creator.CreateSheet(ctx, schema, records)
	if err != nil {
		return "", fmt.Errorf("create sheet: %w", err)
	}
	logging.FromContext(ctx).Info("created sheet", "sheet_id", id, "records", len(records))
	return id, nil
}

// Schema returns a sheet's field list.
func (s *Service) Schema(ctx context.Context, sheetID string) (Schema, error) {
	return s.store.Schema(ctx, sheetID)
}

// ListRecords returns one page of a sheet's records.
func (s *Service) ListRecords(ctx context.Context, sheetID string, page, pageSize int) ([]*Record, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.cfg.PageSize
	}

	total, err := s.store.CountRecords(ctx, sheetID)
	if err != nil {
		return nil, 0, fmt.Errorf("count records: %w", err)
	}
	records, err := s.store.ListRecords(ctx, sheetID, ListOptions{Page: page, PageSize: pageSize})
	if err != nil {
		return nil, 0, fmt.Errorf("list records: %w", err)
	}
	return records, total, nil
}

// Plan computes a merge plan without touching any store.
func (s *Service) Plan(records []*Record, schema Schema) (*MergePlan, error) {
	return s.Planner(schema).Plan(records)
}

// Validate annotates records against schema without touching any store.
func (s *Service) Validate(records []*Record, schema Schema) ValidationSummary {
	s.validator.ValidateAll(records, schema)
	return Summarize(records)
}

func missingIDs(ids []string, records []*Record) []string {
	found := make(map[string]bool, len(records))
	for _, r := range records {
		found[r.ID] = true
	}
	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

func checkRecordIDs(records []*Record) error {
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if r == nil || r.ID == "" {
			continue
		}
		if seen[r.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateRecordID, r.ID)
		}
		seen[r.ID] = true
	}
	return nil
}
