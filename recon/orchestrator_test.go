package recon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"bitbucket.org/insurezeal/brokerage_backend/utils"
)

// fakeLedgerStore is an in-memory LedgerStore. Writes mutate its state the way
// the sheet would, so a second Process run sees the first run's effects.
type fakeLedgerStore struct {
	mu              sync.Mutex
	master          []ExistingLedgerRecord
	quarters        map[string][]ExistingLedgerRecord
	failWrites      bool
	failQuarterName string
}

func newFakeLedgerStore() *fakeLedgerStore {
	return &fakeLedgerStore{quarters: make(map[string][]ExistingLedgerRecord)}
}

func toLedgerRecord(rec CanonicalRecord) ExistingLedgerRecord {
	return ExistingLedgerRecord{
		Record:       rec.Clone(),
		PolicyNumber: NormalizePolicyNumber(rec.PolicyNumber()),
		ChildID:      strings.TrimSpace(rec.Get(HeaderChildID)),
	}
}

func filterByInsurer(records []ExistingLedgerRecord, insurerName string) []ExistingLedgerRecord {
	if insurerName == "" {
		return append([]ExistingLedgerRecord(nil), records...)
	}
	out := make([]ExistingLedgerRecord, 0, len(records))
	for _, rec := range records {
		if strings.EqualFold(strings.TrimSpace(rec.Record.Get(HeaderInsurerName)), insurerName) {
			out = append(out, rec)
		}
	}
	return out
}

func updateIn(records []ExistingLedgerRecord, policyNumber string, rec CanonicalRecord) bool {
	normPN := NormalizePolicyNumber(policyNumber)
	key := CompositeKey(normPN, rec.Get(HeaderChildID))
	for i := range records {
		if CompositeKey(records[i].PolicyNumber, records[i].ChildID) == key {
			records[i] = toLedgerRecord(rec)
			return true
		}
	}
	for i := range records {
		if records[i].PolicyNumber == normPN {
			records[i] = toLedgerRecord(rec)
			return true
		}
	}
	return false
}

func (s *fakeLedgerStore) GetExistingRecords(_ context.Context, insurerName string) ([]ExistingLedgerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filterByInsurer(s.master, insurerName), nil
}

func (s *fakeLedgerStore) UpdateRecord(_ context.Context, policyNumber string, rec CanonicalRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return false
	}
	return updateIn(s.master, policyNumber, rec)
}

func (s *fakeLedgerStore) AddRecord(_ context.Context, rec CanonicalRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return false
	}
	s.master = append(s.master, toLedgerRecord(rec))
	return true
}

func (s *fakeLedgerStore) GetQuarterRecords(_ context.Context, target QuarterTarget) ([]ExistingLedgerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failQuarterName == target.String() {
		return nil, errors.New("sheet unavailable")
	}
	return append([]ExistingLedgerRecord(nil), s.quarters[target.String()]...), nil
}

func (s *fakeLedgerStore) UpdateQuarterRecord(_ context.Context, target QuarterTarget, policyNumber string, rec CanonicalRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return false
	}
	return updateIn(s.quarters[target.String()], policyNumber, rec)
}

func (s *fakeLedgerStore) AddQuarterRecord(_ context.Context, target QuarterTarget, rec CanonicalRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return false
	}
	s.quarters[target.String()] = append(s.quarters[target.String()], toLedgerRecord(rec))
	return true
}

func (s *fakeLedgerStore) masterRecord(t *testing.T, policyNumber, childID string) ExistingLedgerRecord {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	key := CompositeKey(NormalizePolicyNumber(policyNumber), childID)
	for _, rec := range s.master {
		if CompositeKey(rec.PolicyNumber, rec.ChildID) == key {
			return rec
		}
	}
	t.Fatalf("no master record for %s", key)
	return ExistingLedgerRecord{}
}

const testInsurer = "Acme General"

func testRegistry(t *testing.T) *MappingRegistry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mappings.csv")
	content := "Insurer Name,Policy number,Child ID/ User ID [Provided by Insure Zeal],Customer Name,Gross premium\n" +
		testInsurer + ",POL_NO,CHILD,NAME,PREMIUM\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing mapping table: %v", err)
	}
	return NewMappingRegistry(path, nil)
}

func seededRecord(t *testing.T, insurer, pn, childID string, fields map[string]string) ExistingLedgerRecord {
	t.Helper()
	rec := mustRecord(t, map[string]string{
		HeaderPolicyNumber: pn,
		HeaderInsurerName:  insurer,
	})
	if childID != "" {
		if err := rec.Set(HeaderChildID, childID); err != nil {
			t.Fatalf("Set child id: %v", err)
		}
	}
	for k, v := range fields {
		if err := rec.Set(k, v); err != nil {
			t.Fatalf("Set(%q): %v", k, err)
		}
	}
	return toLedgerRecord(rec)
}

func TestProcessAddsNewRecords(t *testing.T) {
	store := newFakeLedgerStore()
	r := NewReconciler(store, testRegistry(t), nil, nil)

	csvText := "POL_NO,CHILD,NAME,PREMIUM\n" +
		"P-100,,Ravi Kumar,5000\n" +
		"P-101,CH-1,A Singh,7000\n"

	report, err := r.Process(context.Background(), csvText, testInsurer, "op-1")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if report.TotalRecordsProcessed != 2 || report.TotalRecordsAdded != 2 || report.TotalRecordsUpdated != 0 {
		t.Fatalf("expected 2 processed / 2 added / 0 updated, got %d / %d / %d",
			report.TotalRecordsProcessed, report.TotalRecordsAdded, report.TotalRecordsUpdated)
	}

	added := store.masterRecord(t, "P-100", "")
	if got := added.Record.Get(HeaderInsurerName); got != testInsurer {
		t.Fatalf("added record insurer expected %q, got %q", testInsurer, got)
	}
	if got := added.Record.Get(HeaderMatch); got != "FALSE" {
		t.Fatalf("added record Match expected FALSE, got %q", got)
	}
}

// Policy numbers are reused across child IDs; only the full composite key may
// match. The sibling record with the same policy number must stay untouched.
func TestProcessMatchesByCompositeKey(t *testing.T) {
	store := newFakeLedgerStore()
	store.master = []ExistingLedgerRecord{
		seededRecord(t, testInsurer, "P-100", "CH-A", map[string]string{"Customer Name": "Child A", "Gross premium": "100"}),
		seededRecord(t, testInsurer, "P-100", "CH-B", map[string]string{"Customer Name": "Child B", "Gross premium": "200"}),
	}
	r := NewReconciler(store, testRegistry(t), nil, nil)

	csvText := "POL_NO,CHILD,NAME,PREMIUM\n" +
		"P-100,CH-B,Child B,999\n"

	report, err := r.Process(context.Background(), csvText, testInsurer, "op-1")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if report.TotalRecordsUpdated != 1 || report.TotalRecordsAdded != 0 {
		t.Fatalf("expected 1 updated / 0 added, got %d / %d", report.TotalRecordsUpdated, report.TotalRecordsAdded)
	}

	b := store.masterRecord(t, "P-100", "CH-B")
	if got := b.Record.Get("Gross premium"); got != "999" {
		t.Fatalf("CH-B premium expected 999, got %q", got)
	}
	if got := b.Record.Get(HeaderMatch); got != "TRUE" {
		t.Fatalf("matched record Match expected TRUE, got %q", got)
	}
	a := store.masterRecord(t, "P-100", "CH-A")
	if got := a.Record.Get("Gross premium"); got != "100" {
		t.Fatalf("CH-A must stay untouched, premium %q", got)
	}
}

// Running one extract twice against the same ledger must change nothing the
// second time: no adds, no updates, no field changes. Only the match-flag
// touch recurs, reported as skipped.
func TestProcessIsIdempotent(t *testing.T) {
	store := newFakeLedgerStore()
	r := NewReconciler(store, testRegistry(t), nil, nil)

	csvText := "POL_NO,CHILD,NAME,PREMIUM\n" +
		"P-100,,Ravi Kumar,5000\n" +
		"P-101,CH-1,A Singh,7000\n"

	if _, err := r.Process(context.Background(), csvText, testInsurer, "op-1"); err != nil {
		t.Fatalf("first run: %v", err)
	}

	second, err := r.Process(context.Background(), csvText, testInsurer, "op-1")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.TotalRecordsAdded != 0 || second.TotalRecordsUpdated != 0 {
		t.Fatalf("second run expected 0 added / 0 updated, got %d / %d",
			second.TotalRecordsAdded, second.TotalRecordsUpdated)
	}
	if second.TotalRecordsSkipped != 2 {
		t.Fatalf("second run expected 2 skipped (match-flag touch), got %d", second.TotalRecordsSkipped)
	}
	if len(second.FieldChanges) != 0 {
		t.Fatalf("second run expected no field changes, got %v", second.FieldChanges)
	}
	if len(store.master) != 2 {
		t.Fatalf("ledger expected 2 records after both runs, got %d", len(store.master))
	}
}

func TestProcessScreensRowsWithoutPolicyNumber(t *testing.T) {
	store := newFakeLedgerStore()
	r := NewReconciler(store, testRegistry(t), nil, nil)

	csvText := "POL_NO,CHILD,NAME,PREMIUM\n" +
		"P-1,,A,1\n" +
		"P-2,,B,2\n" +
		",,No Policy,3\n" +
		"P-3,,C,4\n" +
		"P-4,,D,5\n" +
		"P-5,,E,6\n"

	report, err := r.Process(context.Background(), csvText, testInsurer, "op-1")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if report.TotalRecordsProcessed != 5 {
		t.Fatalf("rows without a policy number must not count as processed, got %d", report.TotalRecordsProcessed)
	}
	if report.TotalErrors != 1 || len(report.ErrorDetails) != 1 {
		t.Fatalf("expected 1 error for the missing policy number, got %d (%v)", report.TotalErrors, report.ErrorDetails)
	}
	if report.TotalRecordsAdded != 5 {
		t.Fatalf("expected the 5 valid rows added, got %d", report.TotalRecordsAdded)
	}
}

func TestProcessMatchesPolicyNumberSpellingVariants(t *testing.T) {
	store := newFakeLedgerStore()
	store.master = []ExistingLedgerRecord{
		seededRecord(t, testInsurer, "'p-100/22", "", map[string]string{"Gross premium": "500"}),
	}
	r := NewReconciler(store, testRegistry(t), nil, nil)

	csvText := "POL_NO,CHILD,NAME,PREMIUM\n" +
		"P-100/22,,Ravi Kumar,500\n"

	report, err := r.Process(context.Background(), csvText, testInsurer, "op-1")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if report.TotalRecordsAdded != 0 {
		t.Fatalf("spelling variant must match, not add: %d added", report.TotalRecordsAdded)
	}
	if got := report.TotalRecordsUpdated + report.TotalRecordsSkipped; got != 1 {
		t.Fatalf("expected the variant row written as a match, got updated+skipped=%d", got)
	}
}

func TestProcessCrossInsurerRefilesUnderUploadedInsurer(t *testing.T) {
	store := newFakeLedgerStore()
	store.master = []ExistingLedgerRecord{
		seededRecord(t, "Other Insurer", "P-900", "", map[string]string{"Gross premium": "300"}),
	}
	r := NewReconciler(store, testRegistry(t), nil, nil)

	csvText := "POL_NO,CHILD,NAME,PREMIUM\n" +
		"P-900,,Ravi Kumar,300\n"

	report, err := r.Process(context.Background(), csvText, testInsurer, "op-1")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if report.TotalRecordsAdded != 0 {
		t.Fatalf("cross-insurer match expected, got %d added", report.TotalRecordsAdded)
	}

	rec := store.masterRecord(t, "P-900", "")
	if got := rec.Record.Get(HeaderInsurerName); got != testInsurer {
		t.Fatalf("record expected re-filed under %q, got %q", testInsurer, got)
	}
	if got := rec.Record.Get(HeaderMatch); got != "TRUE" {
		t.Fatalf("re-filed record Match expected TRUE, got %q", got)
	}
}

func TestProcessCountsFailedWritesAsErrors(t *testing.T) {
	store := newFakeLedgerStore()
	store.failWrites = true
	r := NewReconciler(store, testRegistry(t), nil, nil)

	csvText := "POL_NO,CHILD,NAME,PREMIUM\n" +
		"P-1,,A,1\n" +
		"P-2,,B,2\n"

	report, err := r.Process(context.Background(), csvText, testInsurer, "op-1")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if report.TotalErrors != 2 || report.TotalRecordsAdded != 0 {
		t.Fatalf("expected 2 errors / 0 added, got %d / %d", report.TotalErrors, report.TotalRecordsAdded)
	}
}

func TestProcessUnknownInsurerIsAnUploadError(t *testing.T) {
	r := NewReconciler(newFakeLedgerStore(), testRegistry(t), nil, nil)

	_, err := r.Process(context.Background(), "POL_NO\nP-1\n", "No Such Insurer", "op-1")
	if err == nil {
		t.Fatalf("expected error for unknown insurer")
	}
	if !errors.Is(err, utils.ErrMappingNotFound) {
		t.Fatalf("expected ErrMappingNotFound, got %v", err)
	}
}

func TestProcessQuartersScopesEachTarget(t *testing.T) {
	store := newFakeLedgerStore()
	q1 := QuarterTarget{Quarter: 1, Year: 2026}
	q2 := QuarterTarget{Quarter: 2, Year: 2026}
	store.quarters[q1.String()] = []ExistingLedgerRecord{
		seededRecord(t, testInsurer, "P-100", "", map[string]string{"Gross premium": "500"}),
	}
	r := NewReconciler(store, testRegistry(t), nil, nil)

	csvText := "POL_NO,CHILD,NAME,PREMIUM\n" +
		"P-100,,Ravi Kumar,550\n"

	report, err := r.ProcessQuarters(context.Background(), csvText, testInsurer, "op-1", []QuarterTarget{q1, q2})
	if err != nil {
		t.Fatalf("ProcessQuarters: %v", err)
	}
	if report.TotalRecordsUpdated != 1 || report.TotalRecordsAdded != 1 {
		t.Fatalf("expected Q1 update and Q2 add, got %d updated / %d added",
			report.TotalRecordsUpdated, report.TotalRecordsAdded)
	}
	if len(report.Quarters) != 2 || report.Quarters[0] != "Q1-2026" || report.Quarters[1] != "Q2-2026" {
		t.Fatalf("report quarters expected [Q1-2026 Q2-2026], got %v", report.Quarters)
	}

	q1Records := store.quarters[q1.String()]
	if len(q1Records) != 1 || q1Records[0].Record.Get("Gross premium") != "550" {
		t.Fatalf("Q1 expected in-place update to 550, got %+v", q1Records)
	}
	if len(store.quarters[q2.String()]) != 1 {
		t.Fatalf("Q2 expected 1 added record, got %d", len(store.quarters[q2.String()]))
	}
	if len(store.master) != 0 {
		t.Fatalf("quarter run must not touch the master scope, got %d master records", len(store.master))
	}
}

// A quarter whose sheet fetch fails contributes exactly one quarter-level
// error; the run still processes the remaining targets.
func TestProcessQuartersFailedFetchIsOneErrorAndRunContinues(t *testing.T) {
	store := newFakeLedgerStore()
	q1 := QuarterTarget{Quarter: 1, Year: 2026}
	q2 := QuarterTarget{Quarter: 2, Year: 2026}
	store.failQuarterName = q1.String()
	r := NewReconciler(store, testRegistry(t), nil, nil)

	csvText := "POL_NO,CHILD,NAME,PREMIUM\n" +
		"P-100,,Ravi Kumar,550\n" +
		"P-200,,Meera Shah,900\n"

	report, err := r.ProcessQuarters(context.Background(), csvText, testInsurer, "op-1", []QuarterTarget{q1, q2})
	if err != nil {
		t.Fatalf("ProcessQuarters: %v", err)
	}
	if report.TotalErrors != 1 || len(report.ErrorDetails) != 1 {
		t.Fatalf("expected exactly 1 error for the failed quarter, got %d (%v)",
			report.TotalErrors, report.ErrorDetails)
	}
	if !strings.Contains(report.ErrorDetails[0], "Q1-2026") {
		t.Fatalf("error detail expected to name the failed quarter, got %q", report.ErrorDetails[0])
	}
	if report.TotalRecordsAdded != 2 {
		t.Fatalf("Q2 expected both records added, got %d", report.TotalRecordsAdded)
	}
	if len(store.quarters[q2.String()]) != 2 {
		t.Fatalf("Q2 expected 2 records, got %d", len(store.quarters[q2.String()]))
	}
	if len(store.quarters[q1.String()]) != 0 {
		t.Fatalf("failed quarter must receive no writes, got %d", len(store.quarters[q1.String()]))
	}
}

func TestProcessQuartersRequiresTargets(t *testing.T) {
	r := NewReconciler(newFakeLedgerStore(), testRegistry(t), nil, nil)
	if _, err := r.ProcessQuarters(context.Background(), "POL_NO\nP-1\n", testInsurer, "op-1", nil); err == nil {
		t.Fatalf("expected error for empty quarter targets")
	}
}
