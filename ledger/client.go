package ledger

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/insurezeal/brokerage_backend/config"
	"google.golang.org/api/sheets/v4"
)

// sheetsClient wraps the Sheets API with the spreadsheet id and a crude
// client-side rate limiter. The Sheets API enforces per-minute quotas and a
// multi-thousand-row upload will hit them without pacing.
type sheetsClient struct {
	svc           *sheets.Service
	spreadsheetID string
	limiter       <-chan time.Time
}

func newSheetsClient(ctx context.Context) (*sheetsClient, error) {
	svc, err := config.GetSheetsService(ctx)
	if err != nil {
		return nil, err
	}
	spreadsheetID, err := config.GetLedgerSpreadsheetID()
	if err != nil {
		return nil, err
	}

	ratePerMin := int64(50)
	if v := strings.TrimSpace(os.Getenv("SHEETS_RATE_LIMIT_PER_MIN")); v != "" {
		if n, parseErr := strconv.ParseInt(v, 10, 64); parseErr == nil && n > 0 {
			ratePerMin = n
		}
	}
	interval := time.Minute / time.Duration(ratePerMin)

	return &sheetsClient{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		limiter:       time.Tick(interval),
	}, nil
}

// readRows fetches all populated rows of one sheet as strings.
func (c *sheetsClient) readRows(ctx context.Context, sheetName string) ([][]string, error) {
	<-c.limiter
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, sheetName).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("sheets read %q: %w", sheetName, err)
	}
	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, len(raw))
		for i, cell := range raw {
			row[i] = fmt.Sprint(cell)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// writeRow overwrites one full row (1-based row number) of a sheet.
func (c *sheetsClient) writeRow(ctx context.Context, sheetName string, rowNumber int, values []interface{}) error {
	<-c.limiter
	rng := fmt.Sprintf("%s!A%d", sheetName, rowNumber)
	vr := &sheets.ValueRange{Values: [][]interface{}{values}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets update %q row %d: %w", sheetName, rowNumber, err)
	}
	return nil
}

// appendRow appends one row after the sheet's current data.
func (c *sheetsClient) appendRow(ctx context.Context, sheetName string, values []interface{}) error {
	<-c.limiter
	vr := &sheets.ValueRange{Values: [][]interface{}{values}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, sheetName, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets append %q: %w", sheetName, err)
	}
	return nil
}
