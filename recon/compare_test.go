package recon

import "testing"

func mustRecord(t *testing.T, fields map[string]string) CanonicalRecord {
	t.Helper()
	rec := NewCanonicalRecord()
	for k, v := range fields {
		if err := rec.Set(k, v); err != nil {
			t.Fatalf("Set(%q, %q): %v", k, v, err)
		}
	}
	return rec
}

func TestCompareRecordsDetectsValueChange(t *testing.T) {
	existing := mustRecord(t, map[string]string{
		HeaderPolicyNumber: "P-100",
		"Gross premium":    "500",
	})
	incoming := mustRecord(t, map[string]string{
		HeaderPolicyNumber: "P-100",
		"Gross premium":    "550",
	})

	result := CompareRecords(existing, incoming)
	if !result.HasChanges {
		t.Fatalf("expected HasChanges for 500 -> 550")
	}
	if len(result.ChangedFields) != 1 || result.ChangedFields[0] != "Gross premium" {
		t.Fatalf("ChangedFields expected [Gross premium], got %v", result.ChangedFields)
	}
	change := result.FieldChanges["Gross premium"]
	if change.Old != "500" || change.New != "550" {
		t.Fatalf("FieldChange expected 500 -> 550, got %q -> %q", change.Old, change.New)
	}
}

// Insurer extracts are routinely partial: an empty incoming value must never
// register as a change against populated ledger data.
func TestCompareRecordsEmptyIncomingIsNotAChange(t *testing.T) {
	existing := mustRecord(t, map[string]string{
		HeaderPolicyNumber: "P-100",
		"Gross premium":    "500",
		"Customer Name":    "Ravi Kumar",
	})
	incoming := mustRecord(t, map[string]string{
		HeaderPolicyNumber: "P-100",
		"Gross premium":    "",
	})

	result := CompareRecords(existing, incoming)
	if result.HasChanges {
		t.Fatalf("expected no changes, got %v", result.ChangedFields)
	}
	if len(result.FieldChanges) != 0 {
		t.Fatalf("expected empty FieldChanges, got %v", result.FieldChanges)
	}
}

func TestCompareRecordsIgnoresPolicyNumberApostrophe(t *testing.T) {
	existing := mustRecord(t, map[string]string{HeaderPolicyNumber: "'P-100"})
	incoming := mustRecord(t, map[string]string{HeaderPolicyNumber: "P-100"})

	if result := CompareRecords(existing, incoming); result.HasChanges {
		t.Fatalf("leading apostrophe should not count as a change, got %v", result.FieldChanges)
	}
}

func TestCompareRecordsIgnoresSpellingLevelDifferences(t *testing.T) {
	existing := mustRecord(t, map[string]string{
		HeaderPolicyNumber:  "P-100",
		"Gross premium":     "1,500",
		"Policy Start Date": "15/03/2024",
	})
	incoming := mustRecord(t, map[string]string{
		HeaderPolicyNumber:  "P-100",
		"Gross premium":     "1500.00",
		"Policy Start Date": "2024-03-15",
	})

	if result := CompareRecords(existing, incoming); result.HasChanges {
		t.Fatalf("equivalent spellings must not count as changes, got %v", result.FieldChanges)
	}
}

func TestCompareRecordsIdenticalRecordsHaveNoChanges(t *testing.T) {
	rec := mustRecord(t, map[string]string{
		HeaderPolicyNumber: "P-100",
		"Gross premium":    "500",
		"Customer Name":    "Ravi Kumar",
	})
	if result := CompareRecords(rec, rec.Clone()); result.HasChanges {
		t.Fatalf("identical records must not report changes, got %v", result.ChangedFields)
	}
}

func TestMergeForWritePreservesExistingOnEmptyIncoming(t *testing.T) {
	existing := mustRecord(t, map[string]string{
		HeaderPolicyNumber: "P-100",
		"Gross premium":    "500",
		"Customer Name":    "Ravi Kumar",
	})
	incoming := mustRecord(t, map[string]string{
		HeaderPolicyNumber: "P-100",
		"Gross premium":    "550",
		"Customer Name":    "",
	})

	merged := MergeForWrite(existing, incoming)
	if got := merged.Get("Gross premium"); got != "550" {
		t.Fatalf("Gross premium expected 550, got %q", got)
	}
	if got := merged.Get("Customer Name"); got != "Ravi Kumar" {
		t.Fatalf("Customer Name expected preserved, got %q", got)
	}
	// Merge must not alias the existing record.
	if got := existing.Get("Gross premium"); got != "500" {
		t.Fatalf("existing record mutated: Gross premium %q", got)
	}
}
