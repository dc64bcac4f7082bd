package recon

import "testing"

func TestDedupeMergesGroupAsFieldLevelUnion(t *testing.T) {
	first := mustRecord(t, map[string]string{
		HeaderPolicyNumber: "P-100",
		"Gross premium":    "500",
		"Customer Name":    "",
	})
	second := mustRecord(t, map[string]string{
		HeaderPolicyNumber: "P-100",
		"Gross premium":    "",
		"Customer Name":    "Ravi Kumar",
	})

	deduped, duplicateCounts := Dedupe([]CanonicalRecord{first, second})
	if len(deduped) != 1 {
		t.Fatalf("expected 1 record after dedupe, got %d", len(deduped))
	}
	merged := deduped[0]
	if got := merged.Get("Gross premium"); got != "500" {
		t.Fatalf("Gross premium expected 500 from first row, got %q", got)
	}
	if got := merged.Get("Customer Name"); got != "Ravi Kumar" {
		t.Fatalf("Customer Name expected backfilled from second row, got %q", got)
	}
	if duplicateCounts["P-100"] != 2 {
		t.Fatalf("duplicateCounts[P-100] expected 2, got %d", duplicateCounts["P-100"])
	}
}

func TestDedupePicksMostCompleteWinner(t *testing.T) {
	sparse := mustRecord(t, map[string]string{
		HeaderPolicyNumber: "P-200",
		"Gross premium":    "100",
	})
	full := mustRecord(t, map[string]string{
		HeaderPolicyNumber: "P-200",
		"Gross premium":    "150",
		"Customer Name":    "A Singh",
		"Fuel Type":        "Petrol",
	})

	deduped, _ := Dedupe([]CanonicalRecord{sparse, full})
	if len(deduped) != 1 {
		t.Fatalf("expected 1 record, got %d", len(deduped))
	}
	// Conflicting values come from the most complete row, not the first.
	if got := deduped[0].Get("Gross premium"); got != "150" {
		t.Fatalf("Gross premium expected 150 from the fuller row, got %q", got)
	}
}

func TestDedupeThreeWayMergeIsUnionOfMostComplete(t *testing.T) {
	a := mustRecord(t, map[string]string{
		HeaderPolicyNumber: "P-300",
		"Gross premium":    "100",
	})
	b := mustRecord(t, map[string]string{
		HeaderPolicyNumber: "P-300",
		"Customer Name":    "B Only",
	})
	c := mustRecord(t, map[string]string{
		HeaderPolicyNumber: "P-300",
		"Gross premium":    "300",
		"Customer Name":    "C Wins",
		"Fuel Type":        "CNG",
	})

	deduped, _ := Dedupe([]CanonicalRecord{a, b, c})
	if len(deduped) != 1 {
		t.Fatalf("expected 1 record, got %d", len(deduped))
	}
	merged := deduped[0]
	if got := merged.Get("Gross premium"); got != "300" {
		t.Fatalf("Gross premium expected 300 from the most complete row, got %q", got)
	}
	if got := merged.Get("Customer Name"); got != "C Wins" {
		t.Fatalf("Customer Name expected C Wins, got %q", got)
	}
	if got := merged.Get("Fuel Type"); got != "CNG" {
		t.Fatalf("Fuel Type expected CNG, got %q", got)
	}
}

func TestDedupePreservesFirstSeenOrderAndDropsMissingPolicyNumbers(t *testing.T) {
	a := mustRecord(t, map[string]string{HeaderPolicyNumber: "P-1", "Customer Name": "A"})
	noPN := mustRecord(t, map[string]string{"Customer Name": "Nobody"})
	b := mustRecord(t, map[string]string{HeaderPolicyNumber: "P-2", "Customer Name": "B"})
	aAgain := mustRecord(t, map[string]string{HeaderPolicyNumber: "P-1", "Fuel Type": "Diesel"})

	deduped, duplicateCounts := Dedupe([]CanonicalRecord{a, noPN, b, aAgain})
	if len(deduped) != 2 {
		t.Fatalf("expected 2 records, got %d", len(deduped))
	}
	if deduped[0].PolicyNumber() != "P-1" || deduped[1].PolicyNumber() != "P-2" {
		t.Fatalf("first-seen order lost: got %q, %q", deduped[0].PolicyNumber(), deduped[1].PolicyNumber())
	}
	if got := deduped[0].Get("Fuel Type"); got != "Diesel" {
		t.Fatalf("P-1 group expected merged Fuel Type, got %q", got)
	}
	if len(duplicateCounts) != 1 {
		t.Fatalf("duplicateCounts expected only P-1, got %v", duplicateCounts)
	}
}
