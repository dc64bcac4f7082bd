package recon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/insurezeal/brokerage_backend/config"
	"bitbucket.org/insurezeal/brokerage_backend/models"
	"bitbucket.org/insurezeal/brokerage_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Reconciler drives one universal-record upload end to end: resolve the
// insurer mapping, map and dedupe the extract, match against the external
// ledger by composite key, write updates/additions, and persist one audit
// report row. All collaborators are injected; nothing here reaches for
// module-level state.
type Reconciler struct {
	store    LedgerStore
	registry *MappingRegistry
	db       *gorm.DB // nil skips report persistence (CLIs, tests)
	logger   *logrus.Logger
}

func NewReconciler(store LedgerStore, registry *MappingRegistry, db *gorm.DB, logger *logrus.Logger) *Reconciler {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Reconciler{
		store:    store,
		registry: registry,
		db:       db,
		logger:   logger,
	}
}

// ledgerOps scopes record writes to either the master ledger or one quarter
// sheet so the per-record loop is identical for both entry points.
type ledgerOps struct {
	update func(ctx context.Context, policyNumber string, rec CanonicalRecord) bool
	add    func(ctx context.Context, rec CanonicalRecord) bool
}

// Process reconciles one extract against the master ledger scope.
//
// Only upload-wide preconditions return an error (unknown insurer, unreadable
// or empty CSV, ledger fetch failure): nothing has been written at that
// point. Every per-record failure afterwards is recorded in the report's
// error details and processing continues; one bad row never aborts a batch.
func (r *Reconciler) Process(ctx context.Context, csvContent, insurerName, operatorID string) (*ProcessingReport, error) {
	started := time.Now()

	prepared, err := r.prepare(csvContent, insurerName)
	if err != nil {
		return nil, err
	}

	existing, err := r.store.GetExistingRecords(ctx, insurerName)
	if err != nil {
		return nil, fmt.Errorf("fetching existing ledger records: %w", err)
	}
	index := buildCompositeIndex(existing)

	// Cross-insurer fallback candidates are fetched once, on first miss.
	var allByPolicy map[string][]*ExistingLedgerRecord
	lookupAll := func(c context.Context) map[string][]*ExistingLedgerRecord {
		if allByPolicy != nil {
			return allByPolicy
		}
		all, fetchErr := r.store.GetExistingRecords(c, "")
		if fetchErr != nil {
			config.LogError(r.logger, "orchestrator.go", "Process", "cross-insurer fetch", insurerName, fetchErr)
			allByPolicy = map[string][]*ExistingLedgerRecord{}
			return allByPolicy
		}
		allByPolicy = buildPolicyIndex(all)
		return allByPolicy
	}

	ops := ledgerOps{
		update: r.store.UpdateRecord,
		add:    r.store.AddRecord,
	}

	stats := newReconciliationStats()
	stats.recordMappingErrors(prepared)
	var details []RecordChangeDetail
	for _, rec := range prepared.records {
		outcome := r.processRecord(ctx, rec, insurerName, index, lookupAll, ops)
		if outcome.Err != nil {
			stats.recordError(*outcome.Err)
			continue
		}
		applyOutcome(stats, &details, outcome)
	}

	report := r.buildReport(insurerName, prepared, stats, details, time.Since(started))
	r.persistReport(insurerName, operatorID, stats, details, report)
	return report, nil
}

// ProcessQuarters reconciles one extract into one or more explicit quarter
// sheets instead of the master scope. Steps repeat independently per
// (quarter, year); stats and the report row are shared across all targets. A
// quarter whose fetch fails contributes one quarter-level error and the run
// moves on to the next target.
func (r *Reconciler) ProcessQuarters(ctx context.Context, csvContent, insurerName, operatorID string, targets []QuarterTarget) (*ProcessingReport, error) {
	started := time.Now()
	if len(targets) == 0 {
		return nil, fmt.Errorf("no quarter targets given")
	}

	prepared, err := r.prepare(csvContent, insurerName)
	if err != nil {
		return nil, err
	}

	stats := newReconciliationStats()
	stats.recordMappingErrors(prepared)
	var details []RecordChangeDetail
	quarters := make([]string, 0, len(targets))

	for _, target := range targets {
		target := target
		quarters = append(quarters, target.String())

		existing, fetchErr := r.store.GetQuarterRecords(ctx, target)
		if fetchErr != nil {
			config.LogError(r.logger, "orchestrator.go", "ProcessQuarters", "fetching "+target.String(), insurerName, fetchErr)
			stats.recordError(RecordError{Message: fmt.Sprintf("%s: fetching quarter records: %v", target, fetchErr)})
			continue
		}
		index := buildCompositeIndex(existing)
		// Quarter sheets hold every insurer, so the fallback scan works off
		// the same fetch.
		byPolicy := buildPolicyIndex(existing)
		lookupAll := func(context.Context) map[string][]*ExistingLedgerRecord { return byPolicy }

		ops := ledgerOps{
			update: func(c context.Context, pn string, rec CanonicalRecord) bool {
				return r.store.UpdateQuarterRecord(c, target, pn, rec)
			},
			add: func(c context.Context, rec CanonicalRecord) bool {
				return r.store.AddQuarterRecord(c, target, rec)
			},
		}

		for _, rec := range prepared.records {
			outcome := r.processRecord(ctx, rec, insurerName, index, lookupAll, ops)
			if outcome.Err != nil {
				outcome.Err.Message = target.String() + ": " + outcome.Err.Message
				stats.recordError(*outcome.Err)
				continue
			}
			applyOutcome(stats, &details, outcome)
		}
	}

	report := r.buildReport(insurerName, prepared, stats, details, time.Since(started))
	report.Quarters = quarters
	r.persistReport(insurerName, operatorID, stats, details, report)
	return report, nil
}

// preparedUpload is the outcome of the pre-ledger stages: mapping resolution,
// CSV mapping, policy-number screening and deduplication.
type preparedUpload struct {
	records         []CanonicalRecord
	missingPolicyNo int
	duplicateCounts map[string]int
	unmappedHeaders []string
}

func (s *ReconciliationStats) recordMappingErrors(p *preparedUpload) {
	for i := 0; i < p.missingPolicyNo; i++ {
		s.recordError(RecordError{Message: "row has no policy number, skipped"})
	}
}

func (r *Reconciler) prepare(csvContent, insurerName string) (*preparedUpload, error) {
	r.registry.Load()
	mapping := r.registry.GetMapping(insurerName)
	if mapping == nil {
		return nil, fmt.Errorf("%w: %s", utils.ErrMappingNotFound, insurerName)
	}

	mapped, _, unmappedHeaders, err := MapCSV(csvContent, mapping)
	if err != nil {
		return nil, err
	}
	if len(mapped) == 0 {
		return nil, fmt.Errorf("extract has no data rows")
	}

	// Rows without a policy number are excluded from the processed count and
	// surface as errors instead.
	valid := make([]CanonicalRecord, 0, len(mapped))
	missing := 0
	for _, rec := range mapped {
		if strings.TrimSpace(rec.PolicyNumber()) == "" {
			missing++
			continue
		}
		valid = append(valid, rec)
	}

	deduped, duplicateCounts := Dedupe(valid)
	return &preparedUpload{
		records:         deduped,
		missingPolicyNo: missing,
		duplicateCounts: duplicateCounts,
		unmappedHeaders: unmappedHeaders,
	}, nil
}

// processRecord handles one deduplicated incoming record. It returns an
// outcome, never an error: failures are data for the stats.
func (r *Reconciler) processRecord(
	ctx context.Context,
	incoming CanonicalRecord,
	insurerName string,
	index map[string]*ExistingLedgerRecord,
	lookupAll func(context.Context) map[string][]*ExistingLedgerRecord,
	ops ledgerOps,
) recordOutcome {
	rawPN := incoming.PolicyNumber()
	normPN := NormalizePolicyNumber(rawPN)
	if normPN == "" {
		return recordOutcome{Err: &RecordError{
			PolicyNumber: rawPN,
			Message:      "policy number normalizes to empty",
		}}
	}

	childID := strings.TrimSpace(incoming.Get(HeaderChildID))
	key := CompositeKey(normPN, childID)

	if match, ok := index[key]; ok {
		return r.applyMatch(ctx, match, incoming, normPN, "", ops)
	}

	if config.CrossInsurerMatchEnabled() {
		if match := findCrossInsurerMatch(lookupAll(ctx), normPN); match != nil {
			// Deliberate policy: the uploaded file's insurer assignment is
			// authoritative, so the stored record is re-filed under it.
			r.logger.WithFields(logrus.Fields{
				"module":        "recon",
				"policy_number": normPN,
				"old_insurer":   match.Record.Get(HeaderInsurerName),
				"new_insurer":   insurerName,
			}).Warn("cross-insurer match, re-filing record under uploaded insurer")
			return r.applyMatch(ctx, match, incoming, normPN, insurerName, ops)
		}
	}

	added := incoming.Clone()
	_ = added.Set(HeaderInsurerName, insurerName)
	_ = added.Set(HeaderMatch, "FALSE")
	if !ops.add(ctx, added) {
		return recordOutcome{Err: &RecordError{
			PolicyNumber: normPN,
			Message:      "ledger add failed",
		}}
	}
	return recordOutcome{Detail: &RecordChangeDetail{
		PolicyNumber: normPN,
		RecordType:   "universal",
		Action:       ActionAdded,
		FieldChanges: map[string]FieldChange{},
	}}
}

// applyMatch merges the incoming record over the matched ledger record,
// flips the match flag, and writes the full row back. The write happens even
// with zero changed fields: the match-flag touch is idempotent and is the one
// effect allowed to recur on a re-upload. overrideInsurer is non-empty only
// on the cross-insurer path.
func (r *Reconciler) applyMatch(
	ctx context.Context,
	match *ExistingLedgerRecord,
	incoming CanonicalRecord,
	normPN string,
	overrideInsurer string,
	ops ledgerOps,
) recordOutcome {
	cmp := CompareRecords(match.Record, incoming)

	merged := MergeForWrite(match.Record, incoming)
	_ = merged.Set(HeaderMatch, "TRUE")
	recordType := "universal"
	if overrideInsurer != "" {
		_ = merged.Set(HeaderInsurerName, overrideInsurer)
		recordType = "cross_insurer"
	}

	if !ops.update(ctx, normPN, merged) {
		return recordOutcome{Err: &RecordError{
			PolicyNumber: normPN,
			Message:      "ledger update failed",
		}}
	}

	action := ActionUpdated
	if !cmp.HasChanges {
		action = ActionNoChange
	}
	return recordOutcome{Detail: &RecordChangeDetail{
		PolicyNumber:  normPN,
		RecordType:    recordType,
		Action:        action,
		ChangedFields: cmp.ChangedFields,
		FieldChanges:  cmp.FieldChanges,
	}}
}

// findCrossInsurerMatch scans the whole-ledger index by normalized policy
// number alone. With several candidates the first in ledger order wins; that
// tie-break matters only when an insurer reuses a policy number across child
// IDs, and those rows are unreachable here because the composite-key lookup
// already ran.
func findCrossInsurerMatch(byPolicy map[string][]*ExistingLedgerRecord, normPN string) *ExistingLedgerRecord {
	candidates := byPolicy[normPN]
	if len(candidates) == 0 {
		return nil
	}
	return candidates[0]
}

func buildCompositeIndex(records []ExistingLedgerRecord) map[string]*ExistingLedgerRecord {
	index := make(map[string]*ExistingLedgerRecord, len(records))
	for i := range records {
		rec := &records[i]
		if rec.PolicyNumber == "" {
			continue
		}
		index[CompositeKey(rec.PolicyNumber, rec.ChildID)] = rec
	}
	return index
}

func buildPolicyIndex(records []ExistingLedgerRecord) map[string][]*ExistingLedgerRecord {
	index := make(map[string][]*ExistingLedgerRecord, len(records))
	for i := range records {
		rec := &records[i]
		if rec.PolicyNumber == "" {
			continue
		}
		index[rec.PolicyNumber] = append(index[rec.PolicyNumber], rec)
	}
	return index
}

func applyOutcome(stats *ReconciliationStats, details *[]RecordChangeDetail, outcome recordOutcome) {
	detail := outcome.Detail
	stats.TotalProcessed++
	switch detail.Action {
	case ActionAdded:
		stats.TotalAdded++
	case ActionUpdated:
		stats.TotalUpdated++
	case ActionNoChange:
		// The idempotent match-flag touch still wrote the row, but a
		// re-upload of identical data must report zero updates.
		stats.TotalSkipped++
	}
	for field := range detail.FieldChanges {
		stats.FieldChanges[field]++
	}
	*details = append(*details, *detail)
}

func (r *Reconciler) buildReport(
	insurerName string,
	prepared *preparedUpload,
	stats *ReconciliationStats,
	details []RecordChangeDetail,
	elapsed time.Duration,
) *ProcessingReport {
	report := &ProcessingReport{
		InsurerName:           insurerName,
		TotalRecordsProcessed: stats.TotalProcessed,
		TotalRecordsUpdated:   stats.TotalUpdated,
		TotalRecordsAdded:     stats.TotalAdded,
		TotalRecordsSkipped:   stats.TotalSkipped,
		TotalErrors:           stats.TotalErrors,
		ProcessingTimeSeconds: elapsed.Seconds(),
		FieldChanges:          stats.FieldChanges,
		ErrorDetails:          stats.ErrorDetails,
		DuplicateCounts:       prepared.duplicateCounts,
		UnmappedHeaders:       prepared.unmappedHeaders,
	}
	r.logger.WithFields(logrus.Fields{
		"module":    "recon",
		"insurer":   insurerName,
		"processed": stats.TotalProcessed,
		"updated":   stats.TotalUpdated,
		"added":     stats.TotalAdded,
		"errors":    stats.TotalErrors,
		"elapsed":   elapsed.String(),
	}).Info("reconciliation run finished")
	return report
}

// persistReport writes the append-only audit row. Failure here is logged and
// swallowed: the ledger writes already happened and are not transactionally
// linked to the report (documented limitation).
func (r *Reconciler) persistReport(
	insurerName, operatorID string,
	stats *ReconciliationStats,
	details []RecordChangeDetail,
	report *ProcessingReport,
) {
	if r.db == nil {
		return
	}

	variations := AggregateFieldVariations(details)
	row := models.NewReconciliationReport(insurerName, operatorID)
	row.TotalRecordsProcessed = stats.TotalProcessed
	row.TotalRecordsUpdated = stats.TotalUpdated
	row.NewRecordsAdded = stats.TotalAdded
	row.TotalErrors = stats.TotalErrors
	row.ProcessingTimeSeconds = report.ProcessingTimeSeconds
	row.DataVariancePercentage = variancePercentage(stats.TotalProcessed, details)
	for slug, count := range variations {
		if err := row.SetVariation(slug, count); err != nil {
			config.LogError(r.logger, "orchestrator.go", "persistReport", "setting variation column", slug, err)
		}
	}

	if err := r.db.Create(row).Error; err != nil {
		config.LogError(r.logger, "orchestrator.go", "persistReport", "saving reconciliation report", insurerName, err)
	}
}

// variancePercentage: share of processed records that carried at least one
// real field variation.
func variancePercentage(processed int, details []RecordChangeDetail) float64 {
	if processed == 0 {
		return 0
	}
	varied := 0
	for _, d := range details {
		for _, f := range d.ChangedFields {
			if !IsCalculatedHeader(f) {
				varied++
				break
			}
		}
	}
	return float64(varied) / float64(processed) * 100
}
