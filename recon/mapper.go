package recon

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"bitbucket.org/insurezeal/brokerage_backend/config"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// Characters Excel exports sneak into headers: BOM plus zero-width spaces.
var bomReplacer = strings.NewReplacer(
	"\uFEFF", "",
	"​", "",
	"‌", "",
	"‍", "",
)

func stripBOM(s string) string {
	return bomReplacer.Replace(s)
}

// ParseExtract turns an uploaded insurer extract (CSV or XLSX) into CSV text
// for MapCSV. XLSX extracts are read from the first sheet.
func ParseExtract(filename string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return string(data), nil
	case ".xlsx":
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("opening xlsx: %w", err)
		}
		defer f.Close()
		sheet := f.GetSheetName(0)
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("reading xlsx sheet %q: %w", sheet, err)
		}
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		for _, row := range rows {
			if err := w.Write(row); err != nil {
				return "", err
			}
		}
		w.Flush()
		return buf.String(), w.Error()
	default:
		return "", fmt.Errorf("unsupported extract type %q (want .csv or .xlsx)", filepath.Ext(filename))
	}
}

// gstFormula is one +-joined composite source column, e.g.
// "IGST+CGST+SGST+UTGST+CESS" -> "GST Amount". The sum of the component
// columns overrides any direct mapping of the target field.
type gstFormula struct {
	target     string
	components []string
}

func formulaColumns(mapping InsurerMapping) []gstFormula {
	var out []gstFormula
	for raw, canonical := range mapping {
		if canonical != HeaderGSTAmount || !strings.Contains(raw, "+") {
			continue
		}
		parts := strings.Split(raw, "+")
		components := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				components = append(components, p)
			}
		}
		if len(components) > 1 {
			out = append(out, gstFormula{target: canonical, components: components})
		}
	}
	return out
}

// MapCSV applies one insurer's mapping to raw CSV text, producing canonical
// records. Mapped columns are renamed onto canonical headers (dates
// normalized on the way in); unmapped columns ride along as extras so
// operators can inspect what was ignored. Rows without a policy number are
// still returned; rejection is the orchestrator's call, not the mapper's.
func MapCSV(csvText string, mapping InsurerMapping) (records []CanonicalRecord, originalHeaders []string, unmappedHeaders []string, err error) {
	if strings.TrimSpace(csvText) == "" {
		return nil, nil, nil, errors.New("empty csv content")
	}

	reader := csv.NewReader(strings.NewReader(csvText))
	reader.FieldsPerRecord = -1

	headerRow, err := reader.Read()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("reading csv header: %w", err)
	}
	headers := make([]string, len(headerRow))
	for i, h := range headerRow {
		headers[i] = strings.TrimSpace(stripBOM(h))
	}

	formulas := formulaColumns(mapping)
	formulaComponent := make(map[string]bool)
	for _, f := range formulas {
		for _, c := range f.components {
			formulaComponent[c] = true
		}
	}

	logger := config.GetLogger()
	for {
		row, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, nil, nil, fmt.Errorf("reading csv row: %w", readErr)
		}

		rec := NewCanonicalRecord()
		rowByHeader := make(map[string]string, len(headers))
		for i, header := range headers {
			if header == "" || i >= len(row) {
				continue
			}
			value := stripBOM(row[i])
			rowByHeader[header] = value

			canonical, mapped := mapping[header]
			if !mapped {
				rec.SetExtra(header, value)
				continue
			}
			if IsDateHeader(canonical) {
				value = NormalizeDate(value)
			}
			if setErr := rec.Set(canonical, value); setErr != nil {
				// Mapping table points at a header outside the canonical
				// schema; keep the value visible instead of dropping it.
				logger.WithFields(logrus.Fields{
					"module": "recon",
					"raw":    header,
					"target": canonical,
				}).Warn("mapping targets unknown canonical header, keeping as extra")
				rec.SetExtra(header, value)
			}
		}

		for _, f := range formulas {
			sum := decimal.Zero
			for _, component := range f.components {
				raw := strings.TrimSpace(rowByHeader[component])
				if raw == "" {
					logger.WithFields(logrus.Fields{
						"module":    "recon",
						"component": component,
					}).Debug("blank GST component treated as 0")
					continue
				}
				d, parseErr := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
				if parseErr != nil {
					logger.WithFields(logrus.Fields{
						"module":    "recon",
						"component": component,
						"value":     raw,
					}).Warn("non-numeric GST component treated as 0")
					continue
				}
				sum = sum.Add(d)
			}
			// Formula result wins over any direct mapping of the target.
			_ = rec.Set(f.target, sum.StringFixed(2))
		}

		records = append(records, rec)
	}

	for _, header := range headers {
		if header == "" {
			continue
		}
		if _, mapped := mapping[header]; mapped || formulaComponent[header] {
			continue
		}
		unmappedHeaders = append(unmappedHeaders, header)
	}
	return records, headers, unmappedHeaders, nil
}

// PreviewCSV returns up to limit raw rows keyed by cleaned header, with no
// mapping or filtering applied. Backs the operator preview endpoint.
func PreviewCSV(csvText string, limit int) ([]map[string]string, []string, error) {
	reader := csv.NewReader(strings.NewReader(csvText))
	reader.FieldsPerRecord = -1

	headerRow, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("reading csv header: %w", err)
	}
	headers := make([]string, len(headerRow))
	for i, h := range headerRow {
		headers[i] = strings.TrimSpace(stripBOM(h))
	}

	var rows []map[string]string
	for limit <= 0 || len(rows) < limit {
		row, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, nil, readErr
		}
		m := make(map[string]string, len(headers))
		for i, header := range headers {
			if header == "" || i >= len(row) {
				continue
			}
			m[header] = stripBOM(row[i])
		}
		rows = append(rows, m)
	}
	return rows, headers, nil
}
