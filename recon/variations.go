package recon

import (
	"bitbucket.org/insurezeal/brokerage_backend/config"
	"github.com/sirupsen/logrus"
)

// AggregateFieldVariations maps every changed-field name from one upload's
// change details back onto the canonical header schema and counts
// occurrences. Every canonical slug is present in the result, zero included,
// because the report row has one column per header.
//
// Calculated/formula sheet columns are excluded: the spreadsheet recomputes
// those cells, so raw-text drift on them is not an operator-visible
// variation. Changed-field names with no canonical lookup entry are counted
// under their derived slug and logged so operators can extend the table.
func AggregateFieldVariations(details []RecordChangeDetail) map[string]int {
	counts := make(map[string]int, len(CanonicalHeaders))
	for _, h := range CanonicalHeaders {
		counts[HeaderSlug(h)] = 0
	}

	logger := config.GetLogger()
	for _, detail := range details {
		for _, field := range detail.ChangedFields {
			if IsCalculatedHeader(field) {
				continue
			}
			slug, ok := canonicalSlugByField[field]
			if !ok {
				slug = HeaderSlug(field)
				logger.WithFields(logrus.Fields{
					"module": "recon",
					"field":  field,
					"slug":   slug,
				}).Warn("changed field not in canonical lookup, counting under derived slug")
			}
			counts[slug]++
		}
	}
	return counts
}
