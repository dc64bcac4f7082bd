package recon

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// InsurerMapping maps one insurer's raw extract column names to canonical
// header names. A raw "column" may be a +-joined formula over several raw
// columns (GST components); MapCSV handles those.
type InsurerMapping map[string]string

// CanonicalRecord is one ledger row keyed by canonical header. Canonical
// fields go through Set, which rejects names outside the fixed schema so bad
// mappings fail where the record is produced, not three layers later. Columns
// an insurer sends that we do not map are carried as extras for operator
// inspection and never written to the ledger.
type CanonicalRecord struct {
	fields map[string]string
	extras map[string]string
}

func NewCanonicalRecord() CanonicalRecord {
	return CanonicalRecord{
		fields: make(map[string]string),
		extras: make(map[string]string),
	}
}

func (r CanonicalRecord) Set(field, value string) error {
	if !IsCanonicalHeader(field) {
		return fmt.Errorf("unknown canonical header %q", field)
	}
	r.fields[field] = value
	return nil
}

func (r CanonicalRecord) SetExtra(field, value string) {
	r.extras[field] = value
}

func (r CanonicalRecord) Get(field string) string {
	if v, ok := r.fields[field]; ok {
		return v
	}
	return r.extras[field]
}

func (r CanonicalRecord) Has(field string) bool {
	if _, ok := r.fields[field]; ok {
		return true
	}
	_, ok := r.extras[field]
	return ok
}

// Fields returns the canonical field names present on this record in
// canonical header order.
func (r CanonicalRecord) Fields() []string {
	out := make([]string, 0, len(r.fields))
	for _, h := range CanonicalHeaders {
		if _, ok := r.fields[h]; ok {
			out = append(out, h)
		}
	}
	return out
}

func (r CanonicalRecord) Extras() []string {
	out := make([]string, 0, len(r.extras))
	for k := range r.extras {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NonEmptyCount is the completeness score used by Dedupe.
func (r CanonicalRecord) NonEmptyCount() int {
	n := 0
	for _, v := range r.fields {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}

func (r CanonicalRecord) PolicyNumber() string {
	return r.fields[HeaderPolicyNumber]
}

// Clone copies the record so ledger write-back merging cannot alias the
// incoming record's maps.
func (r CanonicalRecord) Clone() CanonicalRecord {
	out := NewCanonicalRecord()
	for k, v := range r.fields {
		out.fields[k] = v
	}
	for k, v := range r.extras {
		out.extras[k] = v
	}
	return out
}

// ExistingLedgerRecord is a match candidate already present in the external
// ledger. PolicyNumber is stored normalized; the engine never mutates the
// record in place, changes are expressed as a full-row write.
type ExistingLedgerRecord struct {
	Record       CanonicalRecord
	PolicyNumber string
	ChildID      string
}

// CompositeKey is the identity used for matching: normalized policy number,
// extended with the child ID when one is present. Policy number alone is not
// identity when a child ID exists, since insurers reuse policy numbers across
// sub-broker codes.
func CompositeKey(normalizedPolicyNumber, childID string) string {
	childID = strings.TrimSpace(childID)
	if childID == "" {
		return normalizedPolicyNumber
	}
	return normalizedPolicyNumber + "|" + childID
}

// QuarterTarget addresses one quarter sheet.
type QuarterTarget struct {
	Quarter int `json:"quarter" binding:"min=1,max=4"`
	Year    int `json:"year" binding:"min=2000"`
}

func (q QuarterTarget) String() string {
	return fmt.Sprintf("Q%d-%d", q.Quarter, q.Year)
}

// LedgerStore is the narrow contract the orchestrator needs from the external
// ledger. Write calls report failure as false rather than an error: a failed
// row write is per-record data for the stats, never a reason to abort the
// upload. The production implementation is ledger.SheetsStore.
type LedgerStore interface {
	// GetExistingRecords returns ledger rows, filtered by insurer name when
	// insurerName is non-empty.
	GetExistingRecords(ctx context.Context, insurerName string) ([]ExistingLedgerRecord, error)
	UpdateRecord(ctx context.Context, policyNumber string, rec CanonicalRecord) bool
	AddRecord(ctx context.Context, rec CanonicalRecord) bool

	GetQuarterRecords(ctx context.Context, target QuarterTarget) ([]ExistingLedgerRecord, error)
	UpdateQuarterRecord(ctx context.Context, target QuarterTarget, policyNumber string, rec CanonicalRecord) bool
	AddQuarterRecord(ctx context.Context, target QuarterTarget, rec CanonicalRecord) bool
}

// FieldChange is one before/after pair reported by CompareRecords.
type FieldChange struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// RecordChangeDetail is the per-record outcome fed to the variation
// aggregator and returned to the caller. Transient; not persisted row by row.
type RecordChangeDetail struct {
	PolicyNumber  string                 `json:"policy_number"`
	RecordType    string                 `json:"record_type"`
	Action        string                 `json:"action"`
	ChangedFields []string               `json:"changed_fields"`
	FieldChanges  map[string]FieldChange `json:"field_changes"`
}

const (
	ActionUpdated  = "updated"
	ActionAdded    = "added"
	ActionNoChange = "no_change"
)

// RecordError is a per-row failure carried as data. The orchestrator loop
// aggregates these; nothing about one bad row aborts the batch.
type RecordError struct {
	PolicyNumber string
	Message      string
}

func (e RecordError) String() string {
	if e.PolicyNumber == "" {
		return e.Message
	}
	return fmt.Sprintf("policy %s: %s", e.PolicyNumber, e.Message)
}

// recordOutcome is the Result type of one orchestrator loop iteration.
// Exactly one of Detail or Err is set.
type recordOutcome struct {
	Detail *RecordChangeDetail
	Err    *RecordError
}

// ReconciliationStats accumulates across one upload.
type ReconciliationStats struct {
	TotalProcessed int
	TotalUpdated   int
	TotalAdded     int
	TotalSkipped   int
	TotalErrors    int
	FieldChanges   map[string]int
	ErrorDetails   []string
}

func newReconciliationStats() *ReconciliationStats {
	return &ReconciliationStats{FieldChanges: make(map[string]int)}
}

func (s *ReconciliationStats) recordError(e RecordError) {
	s.TotalErrors++
	s.ErrorDetails = append(s.ErrorDetails, e.String())
}

// ProcessingReport is the upload response payload.
type ProcessingReport struct {
	InsurerName           string         `json:"insurer_name"`
	TotalRecordsProcessed int            `json:"total_records_processed"`
	TotalRecordsUpdated   int            `json:"total_records_updated"`
	TotalRecordsAdded     int            `json:"total_records_added"`
	TotalRecordsSkipped   int            `json:"total_records_skipped"`
	TotalErrors           int            `json:"total_errors"`
	ProcessingTimeSeconds float64        `json:"processing_time_seconds"`
	FieldChanges          map[string]int `json:"field_changes"`
	ErrorDetails          []string       `json:"error_details"`
	DuplicateCounts       map[string]int `json:"duplicate_counts,omitempty"`
	UnmappedHeaders       []string       `json:"unmapped_headers,omitempty"`
	Quarters              []string       `json:"quarters,omitempty"`
}
