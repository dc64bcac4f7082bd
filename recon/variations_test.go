package recon

import (
	"testing"

	"bitbucket.org/insurezeal/brokerage_backend/models"
)

func TestAggregateFieldVariationsCountsEverySlug(t *testing.T) {
	details := []RecordChangeDetail{
		{
			PolicyNumber:  "P-100",
			ChangedFields: []string{"Gross premium", "Customer Name"},
		},
		{
			PolicyNumber:  "P-101",
			ChangedFields: []string{"Gross premium"},
		},
	}

	counts := AggregateFieldVariations(details)
	if len(counts) < len(CanonicalHeaders) {
		t.Fatalf("expected a count for every canonical header, got %d of %d", len(counts), len(CanonicalHeaders))
	}
	if counts["gross_premium"] != 2 {
		t.Fatalf("gross_premium expected 2, got %d", counts["gross_premium"])
	}
	if counts["customer_name"] != 1 {
		t.Fatalf("customer_name expected 1, got %d", counts["customer_name"])
	}
	// Untouched headers are present with an explicit zero.
	if got, ok := counts["net_premium"]; !ok || got != 0 {
		t.Fatalf("net_premium expected present with 0, got %d (present=%v)", got, ok)
	}
}

func TestAggregateFieldVariationsExcludesCalculatedColumns(t *testing.T) {
	details := []RecordChangeDetail{
		{
			PolicyNumber:  "P-100",
			ChangedFields: []string{"Running Bal", "Gross premium"},
		},
	}

	counts := AggregateFieldVariations(details)
	if counts["running_bal"] != 0 {
		t.Fatalf("calculated column counted: running_bal = %d", counts["running_bal"])
	}
	if counts["gross_premium"] != 1 {
		t.Fatalf("gross_premium expected 1, got %d", counts["gross_premium"])
	}
}

func TestAggregateFieldVariationsResolvesAliasSpellings(t *testing.T) {
	details := []RecordChangeDetail{
		{PolicyNumber: "P-100", ChangedFields: []string{"Policy Number"}},
		{PolicyNumber: "P-101", ChangedFields: []string{"GST"}},
	}

	counts := AggregateFieldVariations(details)
	if counts["policy_number"] != 1 {
		t.Fatalf("alias Policy Number expected under policy_number, got %d", counts["policy_number"])
	}
	if counts["gst_amount"] != 1 {
		t.Fatalf("alias GST expected under gst_amount, got %d", counts["gst_amount"])
	}
}

func TestAggregateFieldVariationsDerivesSlugForUnknownFields(t *testing.T) {
	details := []RecordChangeDetail{
		{PolicyNumber: "P-100", ChangedFields: []string{"Some Future Column"}},
	}
	counts := AggregateFieldVariations(details)
	if counts["some_future_column"] != 1 {
		t.Fatalf("unknown field expected under derived slug, got %v", counts["some_future_column"])
	}
}

// Every canonical header must have a variation column on the report row, and
// every report column must trace back to a canonical header. Drift in either
// direction silently drops audit counts.
func TestReportVariationColumnsCoverCanonicalHeaders(t *testing.T) {
	reportSlugs := make(map[string]bool)
	for _, slug := range models.VariationSlugs() {
		reportSlugs[slug] = true
	}

	canonical := make(map[string]bool, len(CanonicalHeaders))
	for _, header := range CanonicalHeaders {
		slug := HeaderSlug(header)
		canonical[slug] = true
		if !reportSlugs[slug] {
			t.Fatalf("header %q has no report column for slug %q", header, slug)
		}
	}
	for slug := range reportSlugs {
		if !canonical[slug] {
			t.Fatalf("report column %q matches no canonical header", slug)
		}
	}
}

func TestReportSetVariationRoundTrip(t *testing.T) {
	row := models.NewReconciliationReport("Acme General", "op-1")
	if err := row.SetVariation("gross_premium", 3); err != nil {
		t.Fatalf("SetVariation: %v", err)
	}
	got, ok := row.Variation("gross_premium")
	if !ok || got != 3 {
		t.Fatalf("Variation(gross_premium) expected 3, got %d (ok=%v)", got, ok)
	}
	if err := row.SetVariation("not_a_column", 1); err == nil {
		t.Fatalf("expected error for unknown variation slug")
	}
}
