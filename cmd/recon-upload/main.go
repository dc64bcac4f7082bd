// recon-upload runs one reconciliation from a local extract file, without the
// HTTP layer. Useful for backfills and for replaying archived extracts.
//
// Usage:
//   LEDGER_SPREADSHEET_ID=... go run ./cmd/recon-upload \
//     -file extract.csv -insurer "ICICI Lombard" -operator ops@insurezeal.in
//
// Add -quarters "1:2026,2:2026" to target quarter sheets instead of the
// master scope. Set DB_HOST to also persist the report row.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"bitbucket.org/insurezeal/brokerage_backend/config"
	"bitbucket.org/insurezeal/brokerage_backend/ledger"
	"bitbucket.org/insurezeal/brokerage_backend/models"
	"bitbucket.org/insurezeal/brokerage_backend/recon"
	"bitbucket.org/insurezeal/brokerage_backend/utils"
	"gorm.io/gorm"
)

func main() {
	var (
		filePath    = flag.String("file", "", "path to the insurer extract (.csv or .xlsx)")
		insurerName = flag.String("insurer", "", "insurer name as registered in the mapping table")
		operatorID  = flag.String("operator", "cli", "operator identity recorded on the report")
		quarters    = flag.String("quarters", "", "optional quarter targets, e.g. \"1:2026,2:2026\"")
		mappings    = flag.String("mappings", "", "optional mapping table path (default INSURER_MAPPINGS_CSV)")
	)
	flag.Parse()

	if *filePath == "" || *insurerName == "" {
		flag.Usage()
		os.Exit(2)
	}

	targets, err := parseQuarters(*quarters)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading %s: %v\n", *filePath, err)
		os.Exit(1)
	}
	csvText, err := recon.ParseExtract(*filePath, data)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := context.Background()
	logger := config.GetLogger()

	var db *gorm.DB
	if strings.TrimSpace(os.Getenv("DB_HOST")) != "" {
		config.ConnectDatabaseWithRetry()
		db = config.GetDB()
		models.MigrateTable()
	} else {
		fmt.Fprintln(os.Stderr, "DB_HOST not set: report row will not be persisted")
	}

	store, err := ledger.NewSheetsStore(ctx, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledger store: %v\n", err)
		os.Exit(1)
	}

	registry := recon.NewMappingRegistry(*mappings, logger)
	reconciler := recon.NewReconciler(store, registry, db, logger)

	var report *recon.ProcessingReport
	if len(targets) > 0 {
		report, err = reconciler.ProcessQuarters(ctx, csvText, *insurerName, *operatorID, targets)
	} else {
		report, err = reconciler.Process(ctx, csvText, *insurerName, *operatorID)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	out, _ := utils.MarshalToJSON(report)
	fmt.Println(out)
	if report.TotalErrors > 0 {
		os.Exit(3)
	}
}

func parseQuarters(s string) ([]recon.QuarterTarget, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var targets []recon.QuarterTarget
	for _, part := range strings.Split(s, ",") {
		bits := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(bits) != 2 {
			return nil, fmt.Errorf("bad quarter target %q, want Q:YYYY", part)
		}
		q, err1 := strconv.Atoi(bits[0])
		y, err2 := strconv.Atoi(bits[1])
		if err1 != nil || err2 != nil || q < 1 || q > 4 || y < 2000 {
			return nil, fmt.Errorf("bad quarter target %q, want Q:YYYY", part)
		}
		targets = append(targets, recon.QuarterTarget{Quarter: q, Year: y})
	}
	return targets, nil
}
