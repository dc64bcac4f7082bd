package recon

import (
	"strings"
)

// CompareResult is the diff of one existing ledger record against one
// incoming record. HasChanges is defined as len(ChangedFields) > 0; callers
// that write regardless (the idempotent match-flag touch) do so explicitly,
// not by reading HasChanges.
type CompareResult struct {
	HasChanges    bool
	ChangedFields []string
	FieldChanges  map[string]FieldChange
}

// CompareRecords diffs field by field over the union of both records'
// canonical fields.
//
// An empty incoming value never counts against a populated existing value:
// insurer extracts are routinely partial and must not blank out previously
// known data. The merged write-back (MergeForWrite) enforces the same rule.
// Calculated/formula sheet columns are still reported here; the variation
// aggregator is what excludes them from the audit counts.
func CompareRecords(existing, incoming CanonicalRecord) CompareResult {
	result := CompareResult{
		FieldChanges: make(map[string]FieldChange),
	}

	for _, field := range unionFields(existing, incoming) {
		oldVal := strings.TrimSpace(existing.Get(field))
		newVal := strings.TrimSpace(incoming.Get(field))

		if field == HeaderPolicyNumber {
			// Sheets text-format artifact: a leading apostrophe on the
			// incoming number is not a change.
			newVal = strings.TrimPrefix(newVal, "'")
			oldVal = strings.TrimPrefix(oldVal, "'")
		}

		if newVal == "" {
			continue
		}
		if oldVal == newVal {
			continue
		}
		// Spelling-level differences ("1,500" vs "1500.00", date formats) are
		// not variations. Empty normalized forms stay raw-compared so two
		// distinct unparseable values still surface.
		normOld := NormalizeFieldValue(field, oldVal)
		if normOld != "" && normOld == NormalizeFieldValue(field, newVal) {
			continue
		}
		result.ChangedFields = append(result.ChangedFields, field)
		result.FieldChanges[field] = FieldChange{Old: oldVal, New: newVal}
	}

	result.HasChanges = len(result.ChangedFields) > 0
	return result
}

// MergeForWrite builds the full row to write back: the incoming record's
// non-empty fields layered over the existing record, so partial extracts
// preserve previously known values.
func MergeForWrite(existing, incoming CanonicalRecord) CanonicalRecord {
	merged := existing.Clone()
	for _, field := range incoming.Fields() {
		if v := incoming.Get(field); strings.TrimSpace(v) != "" {
			_ = merged.Set(field, v)
		}
	}
	return merged
}

func unionFields(a, b CanonicalRecord) []string {
	out := make([]string, 0, len(CanonicalHeaders))
	for _, h := range CanonicalHeaders {
		if a.Has(h) || b.Has(h) {
			out = append(out, h)
		}
	}
	return out
}
