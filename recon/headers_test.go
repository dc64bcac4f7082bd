package recon

import "testing"

func TestHeaderSlugIsDeterministicSnakeCase(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"Policy number", "policy_number"},
		{"Reporting Month (mmm'yy)", "reporting_month_mmm_yy"},
		{"Child ID/ User ID [Provided by Insure Zeal]", "child_id_user_id_provided_by_insure_zeal"},
		{"Total Receivable from Broker Include 18% GST", "total_receivable_from_broker_include_18_gst"},
		{"Registration.no", "registration_no"},
		{"NCB (YES/NO)", "ncb_yes_no"},
		{"Match", "match"},
	}
	for _, tc := range cases {
		if got := HeaderSlug(tc.in); got != tc.expected {
			t.Fatalf("HeaderSlug(%q) expected %q, got %q", tc.in, tc.expected, got)
		}
		// Slugging a slug must be a no-op.
		if again := HeaderSlug(tc.expected); again != tc.expected {
			t.Fatalf("HeaderSlug not stable on %q: got %q", tc.expected, again)
		}
	}
}

func TestCanonicalHeaderSlugsAreUnique(t *testing.T) {
	seen := make(map[string]string, len(CanonicalHeaders))
	for _, header := range CanonicalHeaders {
		slug := HeaderSlug(header)
		if prev, dup := seen[slug]; dup {
			t.Fatalf("slug %q produced by both %q and %q", slug, prev, header)
		}
		seen[slug] = header
	}
}

func TestCalculatedAndDateHeadersAreCanonical(t *testing.T) {
	for header := range calculatedHeaders {
		if !IsCanonicalHeader(header) {
			t.Fatalf("calculated header %q is not canonical", header)
		}
	}
	for header := range dateHeaders {
		if !IsCanonicalHeader(header) {
			t.Fatalf("date header %q is not canonical", header)
		}
	}
}

func TestCompositeKey(t *testing.T) {
	if got := CompositeKey("P-100", ""); got != "P-100" {
		t.Fatalf("bare policy key expected P-100, got %q", got)
	}
	if got := CompositeKey("P-100", " CH-9 "); got != "P-100|CH-9" {
		t.Fatalf("composite key expected P-100|CH-9, got %q", got)
	}
}
