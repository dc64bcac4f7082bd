package ledger

import (
	"context"
	"os"
	"strings"
	"sync"

	"bitbucket.org/insurezeal/brokerage_backend/config"
	"bitbucket.org/insurezeal/brokerage_backend/recon"
	"github.com/sirupsen/logrus"
)

// SheetsStore implements recon.LedgerStore against the quarterly
// Google-Sheets ledger: one master sheet plus per-quarter sheets named
// "Q<q>-<year>", all sharing the canonical header row.
//
// The sheet offers no row locking and no multi-row transaction, so
// read-then-write is not atomic. Two concurrent uploads for one insurer race
// with last-write-wins semantics; the upload layer serializes per insurer via
// redislock as a best-effort mitigation.
type SheetsStore struct {
	client *sheetsClient
	logger *logrus.Logger

	masterSheet string

	// Row positions per sheet from the most recent read, keyed by composite
	// key and by bare normalized policy number. Sheets writes are keyed by
	// row number, the engine keys by policy number; this bridges the two.
	mu       sync.Mutex
	rowIndex map[string]map[string]int
	headers  map[string][]string
}

func NewSheetsStore(ctx context.Context, logger *logrus.Logger) (*SheetsStore, error) {
	client, err := newSheetsClient(ctx)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = config.GetLogger()
	}
	masterSheet := strings.TrimSpace(os.Getenv("LEDGER_MASTER_SHEET"))
	if masterSheet == "" {
		masterSheet = "Master"
	}
	return &SheetsStore{
		client:      client,
		logger:      logger,
		masterSheet: masterSheet,
		rowIndex:    make(map[string]map[string]int),
		headers:     make(map[string][]string),
	}, nil
}

func quarterSheetName(target recon.QuarterTarget) string {
	return target.String()
}

func (s *SheetsStore) GetExistingRecords(ctx context.Context, insurerName string) ([]recon.ExistingLedgerRecord, error) {
	return s.fetchSheet(ctx, s.masterSheet, insurerName)
}

func (s *SheetsStore) UpdateRecord(ctx context.Context, policyNumber string, rec recon.CanonicalRecord) bool {
	return s.updateRow(ctx, s.masterSheet, policyNumber, rec)
}

func (s *SheetsStore) AddRecord(ctx context.Context, rec recon.CanonicalRecord) bool {
	return s.appendRecord(ctx, s.masterSheet, rec)
}

func (s *SheetsStore) GetQuarterRecords(ctx context.Context, target recon.QuarterTarget) ([]recon.ExistingLedgerRecord, error) {
	return s.fetchSheet(ctx, quarterSheetName(target), "")
}

func (s *SheetsStore) UpdateQuarterRecord(ctx context.Context, target recon.QuarterTarget, policyNumber string, rec recon.CanonicalRecord) bool {
	return s.updateRow(ctx, quarterSheetName(target), policyNumber, rec)
}

func (s *SheetsStore) AddQuarterRecord(ctx context.Context, target recon.QuarterTarget, rec recon.CanonicalRecord) bool {
	return s.appendRecord(ctx, quarterSheetName(target), rec)
}

// fetchSheet reads one sheet into ledger records, caching header order and
// row positions for the writes that follow. insurerName filters client-side
// ("" keeps everything); the Sheets API has no server-side filter worth
// using here.
func (s *SheetsStore) fetchSheet(ctx context.Context, sheetName, insurerName string) ([]recon.ExistingLedgerRecord, error) {
	rows, err := s.client.readRows(ctx, sheetName)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		s.setSheetState(sheetName, recon.CanonicalHeaders, map[string]int{})
		return nil, nil
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	index := make(map[string]int, len(rows)-1)
	records := make([]recon.ExistingLedgerRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rowNumber := i + 2 // 1-based, header is row 1

		rec := recon.NewCanonicalRecord()
		for col, header := range headers {
			if header == "" || col >= len(row) {
				continue
			}
			if err := rec.Set(header, row[col]); err != nil {
				rec.SetExtra(header, row[col])
			}
		}

		normPN := recon.NormalizePolicyNumber(rec.Get(recon.HeaderPolicyNumber))
		if normPN == "" {
			continue
		}
		childID := strings.TrimSpace(rec.Get(recon.HeaderChildID))
		// First occurrence wins on sheet-level duplicates; later rows are
		// unreachable by row-number lookup and stay untouched. The composite
		// key disambiguates policy numbers shared across child IDs.
		if key := recon.CompositeKey(normPN, childID); key != normPN {
			if _, seen := index[key]; !seen {
				index[key] = rowNumber
			}
		}
		if _, seen := index[normPN]; !seen {
			index[normPN] = rowNumber
		}

		if insurerName != "" && !strings.EqualFold(strings.TrimSpace(rec.Get(recon.HeaderInsurerName)), strings.TrimSpace(insurerName)) {
			continue
		}
		records = append(records, recon.ExistingLedgerRecord{
			Record:       rec,
			PolicyNumber: normPN,
			ChildID:      childID,
		})
	}

	s.setSheetState(sheetName, headers, index)
	return records, nil
}

func (s *SheetsStore) setSheetState(sheetName string, headers []string, index map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headers[sheetName] = headers
	s.rowIndex[sheetName] = index
}

func (s *SheetsStore) sheetState(sheetName string) ([]string, map[string]int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	headers, ok1 := s.headers[sheetName]
	index, ok2 := s.rowIndex[sheetName]
	return headers, index, ok1 && ok2
}

func (s *SheetsStore) updateRow(ctx context.Context, sheetName, policyNumber string, rec recon.CanonicalRecord) bool {
	normPN := recon.NormalizePolicyNumber(policyNumber)

	headers, index, ok := s.sheetState(sheetName)
	if !ok {
		// Writes without a prior read happen on retries; refresh the state.
		if _, err := s.fetchSheet(ctx, sheetName, ""); err != nil {
			config.LogError(s.logger, "store.go", "updateRow", "refreshing "+sheetName, policyNumber, err)
			return false
		}
		headers, index, _ = s.sheetState(sheetName)
	}

	rowNumber, found := index[recon.CompositeKey(normPN, strings.TrimSpace(rec.Get(recon.HeaderChildID)))]
	if !found {
		rowNumber, found = index[normPN]
	}
	if !found {
		s.logger.WithFields(logrus.Fields{
			"module":        "ledger",
			"sheet":         sheetName,
			"policy_number": normPN,
		}).Error("update requested for policy number not present in sheet")
		return false
	}

	if err := s.client.writeRow(ctx, sheetName, rowNumber, rowValues(headers, rec)); err != nil {
		config.LogError(s.logger, "store.go", "updateRow", "writing "+sheetName, policyNumber, err)
		return false
	}
	return true
}

func (s *SheetsStore) appendRecord(ctx context.Context, sheetName string, rec recon.CanonicalRecord) bool {
	headers, index, ok := s.sheetState(sheetName)
	if !ok {
		if _, err := s.fetchSheet(ctx, sheetName, ""); err != nil {
			config.LogError(s.logger, "store.go", "appendRecord", "refreshing "+sheetName, rec.PolicyNumber(), err)
			return false
		}
		headers, index, _ = s.sheetState(sheetName)
	}

	if err := s.client.appendRow(ctx, sheetName, rowValues(headers, rec)); err != nil {
		config.LogError(s.logger, "store.go", "appendRecord", "appending to "+sheetName, rec.PolicyNumber(), err)
		return false
	}

	// Track the new row so a later update in the same upload can reach it.
	if normPN := recon.NormalizePolicyNumber(rec.PolicyNumber()); normPN != "" {
		s.mu.Lock()
		maxRow := 1
		for _, n := range index {
			if n > maxRow {
				maxRow = n
			}
		}
		if key := recon.CompositeKey(normPN, strings.TrimSpace(rec.Get(recon.HeaderChildID))); key != normPN {
			if _, seen := index[key]; !seen {
				index[key] = maxRow + 1
			}
		}
		if _, seen := index[normPN]; !seen {
			index[normPN] = maxRow + 1
		}
		s.mu.Unlock()
	}
	return true
}

// rowValues lays the record out in the sheet's own header order. Headers the
// record has no value for become empty cells; canonical fields the sheet
// lacks are dropped, since the sheet's header row is authoritative for
// column positions.
func rowValues(headers []string, rec recon.CanonicalRecord) []interface{} {
	out := make([]interface{}, len(headers))
	for i, header := range headers {
		if header == "" {
			out[i] = ""
			continue
		}
		out[i] = rec.Get(header)
	}
	return out
}
