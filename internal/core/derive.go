package core

import (
	"fmt"
	"strings"
)

// Derivation computes a field value from its siblings. It reads the record
// and reports what to set; the validator performs the write, and only for
// schemas that declare the computed key with ConstraintComputed.
type Derivation interface {
	// Computes returns the key the derivation writes.
	Computes() string
	Derive(rec *Record) (key string, value any, info string, ok bool)
}

// ConcatDerivation fills Target with the non-empty Sources joined by Sep.
// An existing non-empty Target is left alone.
type ConcatDerivation struct {
	Target  string
	Sources []string
	Sep     string
}

// FullNameDerivation fills "full" from first, middle and last name.
func FullNameDerivation() ConcatDerivation {
	return ConcatDerivation{Target: "full", Sources: []string{"first", "middle", "last"}, Sep: " "}
}

func (d ConcatDerivation) Computes() string {
	return d.Target
}

func (d ConcatDerivation) Derive(rec *Record) (string, any, string, bool) {
	if !IsEmpty(rec.Get(d.Target)) {
		return "", nil, "", false
	}

	parts := make([]string, 0, len(d.Sources))
	for _, key := range d.Sources {
		s, ok := ValueString(rec.Get(key))
		if s = strings.TrimSpace(s); ok && s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "", nil, "", false
	}

	info := fmt.Sprintf("%s set based on %s.", d.Target, strings.Join(d.Sources, ", "))
	return d.Target, strings.Join(parts, d.Sep), info, true
}
