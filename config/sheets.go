package config

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var (
	sheetsService   *sheets.Service
	sheetsServiceMu sync.Mutex
)

// GetSheetsService returns the shared Google Sheets client for the quarterly
// ledger. Prefers ADC; set SHEETS_CREDENTIALS_JSON for explicit credentials
// (e.g. locally).
func GetSheetsService(ctx context.Context) (*sheets.Service, error) {
	sheetsServiceMu.Lock()
	defer sheetsServiceMu.Unlock()
	if sheetsService != nil {
		return sheetsService, nil
	}

	var (
		svc *sheets.Service
		err error
	)
	if credJSON := strings.TrimSpace(os.Getenv("SHEETS_CREDENTIALS_JSON")); credJSON != "" {
		svc, err = sheets.NewService(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	} else {
		svc, err = sheets.NewService(ctx)
	}
	if err != nil {
		return nil, err
	}
	sheetsService = svc
	return sheetsService, nil
}

// GetLedgerSpreadsheetID returns the spreadsheet holding the master ledger
// and the quarter sheets.
func GetLedgerSpreadsheetID() (string, error) {
	id := strings.TrimSpace(os.Getenv("LEDGER_SPREADSHEET_ID"))
	if id == "" {
		return "", errors.New("LEDGER_SPREADSHEET_ID is required")
	}
	return id, nil
}
