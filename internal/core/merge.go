package core

// merge.go reconciles duplicate records of one entity into a single survivor.
//
// The first record is the survivor. Later records are folded into it in input
// order and every non-empty value overwrites what the survivor holds, so the
// last non-empty value for a key wins. Empty strings and nulls never
// overwrite. Merge-exempt (bookkeeping) keys are copied verbatim when present
// and stripped from the survivor before the plan is returned.
//
// The planner only computes values. Deleting discarded records and persisting
// the survivor belong to the Service.

import "fmt"

// MergePlanner computes merge plans. The zero value has no exempt keys.
type MergePlanner struct {
	exempt map[string]bool
}

// PlannerOption configures a MergePlanner.
type PlannerOption func(*MergePlanner)

// WithExemptKeys marks keys as merge-exempt in addition to those the schema declares.
func WithExemptKeys(keys ...string) PlannerOption {
	return func(p *MergePlanner) {
		for _, k := range keys {
			if k != "" {
				p.exempt[k] = true
			}
		}
	}
}

// WithSchema marks the schema's MergeExempt fields as exempt.
func WithSchema(s Schema) PlannerOption {
	return WithExemptKeys(s.ExemptKeys()...)
}

// NewMergePlanner creates a planner.
func NewMergePlanner(opts ...PlannerOption) *MergePlanner {
	p := &MergePlanner{exempt: make(map[string]bool)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IsExempt reports whether key is a bookkeeping key.
func (p *MergePlanner) IsExempt(key string) bool {
	return p != nil && p.exempt[key]
}

// Plan merges records in order. The inputs are not modified.
func (p *MergePlanner) Plan(records []*Record) (*MergePlan, error) {
	if len(records) == 0 {
		return nil, ErrEmptyInput
	}

	seen := make(map[string]bool, len(records))
	for i, r := range records {
		if r == nil {
			return nil, fmt.Errorf("merge input: nil record at position %d", i)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateRecordID, r.ID)
		}
		seen[r.ID] = true
	}

	survivor := records[0].Clone()
	if survivor.Values == nil {
		survivor.Values = make(map[string]*CellValue)
	}

	discarded := make([]string, 0, len(records)-1)
	for _, src := range records[1:] {
		p.mergeValues(survivor, src)
		discarded = append(discarded, src.ID)
	}

	for key := range p.exempt {
		delete(survivor.Values, key)
	}

	return &MergePlan{Survivor: survivor, Discarded: discarded}, nil
}

// mergeValues folds src into dst.
func (p *MergePlanner) mergeValues(dst, src *Record) {
	for key, cell := range src.Values {
		if p.exempt[key] {
			dst.Values[key] = cell.Clone()
			continue
		}

		if cell == nil || normalizeMergeValue(cell.Value) == nil {
			continue
		}
		dst.Values[key] = cell.Clone()
	}
}

// normalizeMergeValue maps "" to nil. Every other value is returned as-is.
func normalizeMergeValue(v any) any {
	if IsEmpty(v) {
		return nil
	}
	return v
}

// PlanGroups partitions records by the value of keyField and plans each group
// with more than one record. Groups keep first-seen order and records keep
// input order within a group. Records with an empty key value are never merged.
func (p *MergePlanner) PlanGroups(records []*Record, keyField string) ([]*MergePlan, error) {
	groups := GroupByField(records, keyField)

	plans := make([]*MergePlan, 0, len(groups))
	for _, g := range groups {
		if len(g) < 2 {
			continue
		}
		plan, err := p.Plan(g)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// GroupByField partitions records by the string form of keyField.
func GroupByField(records []*Record, keyField string) [][]*Record {
	index := make(map[string]int)
	var groups [][]*Record

	for _, r := range records {
		s, ok := ValueString(r.Get(keyField))
		if !ok || s == "" {
			continue
		}
		i, exists := index[s]
		if !exists {
			i = len(groups)
			index[s] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], r)
	}
	return groups
}
