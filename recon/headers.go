package recon

import (
	"strings"
)

// Canonical quarterly-ledger headers. Order matters: it is the column order of
// the master/quarter sheets and the iteration order for record writes.
// Any change here must be mirrored in models.ReconciliationReport's
// <slug>_variations columns (covered by a test in models).
var CanonicalHeaders = []string{
	"Reporting Month (mmm'yy)",
	"Child ID/ User ID [Provided by Insure Zeal]",
	"Insurer /broker code",
	"Policy Start Date",
	"Policy End Date",
	"Booking Date(Click to select Date)",
	"Broker Name",
	"Insurer name",
	"Major Categorisation(Motor/Life/Health)",
	"Product (Insurer Report)",
	"Product Type",
	"Plan type (Comp/STP/SAOD)",
	"Gross premium",
	"GST Amount",
	"Net premium",
	"OD Premium",
	"TP Premium",
	"Policy number",
	"Formatted Policy number",
	"Registration.no",
	"Make & Model",
	"Model",
	"Vehicle Variant",
	"GVW",
	"RTO",
	"State",
	"Cluster",
	"Fuel Type",
	"CC",
	"Age(Year)",
	"NCB (YES/NO)",
	"Discount %",
	"Business Type",
	"Seating Capacity",
	"Veh Wheels",
	"Customer Name",
	"Customer Number",
	"Commissionable Premium",
	"Incoming Grid %",
	"Receivable from Broker",
	"Extra Grid",
	"Extra Amount Receivable from Broker",
	"Total Receivable from Broker",
	"Claimed By",
	"Payment by",
	"Payment Mode",
	"Agent Code",
	"Cut Pay Amount Received From Agent",
	"Already Given to agent",
	"Actual Agent_PO%",
	"Agent_PO_AMT",
	"Agent_Extra%",
	"Agent_Extra_Amount",
	"Agent Total PO Amount",
	"Payment By Office",
	"PO Paid To Agent",
	"Running Bal",
	"Total Receivable from Broker Include 18% GST",
	"IZ Total PO%",
	"As per Broker PO%",
	"As per Broker PO AMT",
	"PO% Diff Broker",
	"PO AMT Diff Broker",
	"As per Agent Payout%",
	"As per Agent Payout Amount",
	"PO% Diff Agent",
	"PO AMT Diff Agent",
	"Invoice Status",
	"Invoice Number",
	"Cluster Code",
	"Remarks",
	"Match",
}

const (
	HeaderPolicyNumber = "Policy number"
	HeaderChildID      = "Child ID/ User ID [Provided by Insure Zeal]"
	HeaderInsurerName  = "Insurer name"
	HeaderGSTAmount    = "GST Amount"
	HeaderMatch        = "Match"
)

// Canonical targets the mapper normalizes through NormalizeDate automatically.
var dateHeaders = map[string]bool{
	"Policy Start Date":                  true,
	"Policy End Date":                    true,
	"Booking Date(Click to select Date)": true,
}

// Formula-driven sheet columns. The quarter sheets recompute these cells, so a
// raw-text difference on them is not an operator-visible variation.
var calculatedHeaders = map[string]bool{
	"Formatted Policy number":                      true,
	"Receivable from Broker":                       true,
	"Total Receivable from Broker":                 true,
	"Agent Total PO Amount":                        true,
	"Running Bal":                                  true,
	"Total Receivable from Broker Include 18% GST": true,
	"IZ Total PO%":               true,
	"As per Broker PO%":          true,
	"As per Broker PO AMT":       true,
	"PO% Diff Broker":            true,
	"PO AMT Diff Broker":         true,
	"As per Agent Payout%":       true,
	"As per Agent Payout Amount": true,
	"PO% Diff Agent":             true,
	"PO AMT Diff Agent":          true,
}

var canonicalHeaderSet = func() map[string]bool {
	set := make(map[string]bool, len(CanonicalHeaders))
	for _, h := range CanonicalHeaders {
		set[h] = true
	}
	return set
}()

func IsCanonicalHeader(name string) bool {
	return canonicalHeaderSet[name]
}

func IsDateHeader(name string) bool {
	return dateHeaders[name]
}

func IsCalculatedHeader(name string) bool {
	return calculatedHeaders[name]
}

// HeaderSlug converts a header name to the snake_case key used for the
// report's per-field variation columns. It is deterministic: lowercase, every
// run of non-alphanumeric characters becomes one underscore, edges trimmed.
func HeaderSlug(name string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// canonicalSlugByField resolves raw changed-field names back onto canonical
// slugs. Canonical header names map to themselves; the extra entries cover
// spellings that show up in insurer extracts and older sheets.
var canonicalSlugByField = func() map[string]string {
	m := make(map[string]string, len(CanonicalHeaders)+16)
	for _, h := range CanonicalHeaders {
		slug := HeaderSlug(h)
		m[h] = slug
		m[slug] = slug
	}
	aliases := map[string]string{
		"Policy Number":    HeaderPolicyNumber,
		"POLICY NUMBER":    HeaderPolicyNumber,
		"Policy No":        HeaderPolicyNumber,
		"Child ID":         HeaderChildID,
		"Child Id":         HeaderChildID,
		"User ID":          HeaderChildID,
		"Insurer Name":     HeaderInsurerName,
		"Gross Premium":    "Gross premium",
		"Net Premium":      "Net premium",
		"GST":              HeaderGSTAmount,
		"Registration No":  "Registration.no",
		"Registration No.": "Registration.no",
		"Customer name":    "Customer Name",
	}
	for raw, canonical := range aliases {
		m[raw] = HeaderSlug(canonical)
	}
	return m
}()
