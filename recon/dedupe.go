package recon

import (
	"strings"

	"bitbucket.org/insurezeal/brokerage_backend/config"
	"github.com/sirupsen/logrus"
)

// Dedupe collapses rows that share a policy number into the single most
// complete record. Grouping is by the raw mapped "Policy number" value (the
// orchestrator normalizes later). Selection is by non-empty field count;
// after picking the winner, every other record in the group backfills fields
// the winner is missing — a field-level union, not first-wins. Rows with no
// policy number are dropped silently here: they never had an identity to
// collapse under, and the orchestrator separately rejects them from mapping
// output.
func Dedupe(records []CanonicalRecord) ([]CanonicalRecord, map[string]int) {
	groups := make(map[string][]CanonicalRecord)
	order := make([]string, 0, len(records))
	for _, rec := range records {
		pn := strings.TrimSpace(rec.PolicyNumber())
		if pn == "" {
			continue
		}
		if _, seen := groups[pn]; !seen {
			order = append(order, pn)
		}
		groups[pn] = append(groups[pn], rec)
	}

	deduped := make([]CanonicalRecord, 0, len(order))
	duplicateCounts := make(map[string]int)
	for _, pn := range order {
		group := groups[pn]
		if len(group) == 1 {
			deduped = append(deduped, group[0])
			continue
		}
		duplicateCounts[pn] = len(group)
		deduped = append(deduped, mergeGroup(group))
	}

	if len(duplicateCounts) > 0 {
		config.GetLogger().WithFields(logrus.Fields{
			"module":     "recon",
			"duplicates": duplicateCounts,
		}).Info("collapsed duplicate extract rows")
	}
	return deduped, duplicateCounts
}

func mergeGroup(group []CanonicalRecord) CanonicalRecord {
	best := group[0]
	bestScore := best.NonEmptyCount()
	for _, candidate := range group[1:] {
		if score := candidate.NonEmptyCount(); score > bestScore {
			best, bestScore = candidate, score
		}
	}

	merged := best.Clone()
	for _, candidate := range group {
		for _, field := range candidate.Fields() {
			if strings.TrimSpace(merged.Get(field)) != "" {
				continue
			}
			if v := candidate.Get(field); strings.TrimSpace(v) != "" {
				_ = merged.Set(field, v)
			}
		}
	}
	return merged
}
