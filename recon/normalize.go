package recon

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"bitbucket.org/insurezeal/brokerage_backend/config"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const canonicalDateLayout = "02/01/2006"

// Four-digit-year layouts in precedence order. Two-digit years are handled
// separately because time.Parse widens "2006" to any digit run and would
// swallow DD/MM/YY as year 0024.
var dateLayouts = []string{
	"02/01/2006",
	"02-01-2006",
	"02-01-2006 15:04",
	"2006-01-02",
	"2006/01/02",
	"2006-01-02 15:04",
}

// NormalizeDate parses the date spellings insurers actually send and returns
// the ledger's DD/MM/YYYY form. Unparseable input is "no date supplied": it
// logs at warn level and returns "", never an error.
func NormalizeDate(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = padDateWidths(s)
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.Year() < 1000 {
			// A two-digit year slipped through the lenient parser.
			continue
		}
		return t.Format(canonicalDateLayout)
	}
	if out, ok := parseTwoDigitYearDate(s); ok {
		return out
	}
	config.GetLogger().WithFields(logrus.Fields{
		"module": "recon",
		"value":  raw,
	}).Warn("unparseable date, treating as empty")
	return ""
}

// padDateWidths zero-pads single-digit day/month components so the fixed-width
// layouts accept extracts like "5/6/2024". An optional time suffix is kept.
func padDateWidths(s string) string {
	datePart, timePart, hasTime := strings.Cut(s, " ")
	sep := "/"
	if !strings.Contains(datePart, sep) {
		sep = "-"
	}
	parts := strings.Split(datePart, sep)
	if len(parts) != 3 {
		return s
	}
	for i, p := range parts {
		if len(p) == 1 {
			parts[i] = "0" + p
		}
	}
	out := strings.Join(parts, sep)
	if hasTime {
		out += " " + timePart
	}
	return out
}

// parseTwoDigitYearDate handles DD/MM/YY and DD-MM-YY. Sheet convention for
// the century: 00-30 is 20xx, 31-99 is 19xx.
func parseTwoDigitYearDate(s string) (string, bool) {
	sep := "/"
	if !strings.Contains(s, sep) {
		sep = "-"
	}
	parts := strings.Split(s, sep)
	if len(parts) != 3 || len(parts[2]) != 2 {
		return "", false
	}
	day, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	yy, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return "", false
	}
	year := 1900 + yy
	if yy <= 30 {
		year = 2000 + yy
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return "", false
	}
	return t.Format(canonicalDateLayout), true
}

// NormalizePolicyNumber canonicalizes a policy number for identity
// comparison: trim, strip wrapping quote/apostrophe artifacts (insurers
// prefix ' to force text cells), drop internal whitespace, uppercase.
// Separators like - and / are part of many insurers' formats and are kept.
// Idempotent; empty input stays empty.
func NormalizePolicyNumber(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "'\"‘’")
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

// NormalizeFieldValue canonicalizes one scalar for equality comparison,
// dispatching on the field name: premium/amount fields become 2-dp decimals
// with thousands separators stripped, date fields go through NormalizeDate,
// everything else is trimmed. Numeric parse failures fall through to the
// trimmed string rather than erroring.
func NormalizeFieldValue(fieldName, raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	name := strings.ToLower(fieldName)
	switch {
	case strings.Contains(name, "premium") || strings.Contains(name, "amount"):
		cleaned := strings.ReplaceAll(value, ",", "")
		if d, err := decimal.NewFromString(cleaned); err == nil {
			return d.StringFixed(2)
		}
		return value
	case strings.Contains(name, "date"):
		return NormalizeDate(value)
	default:
		return value
	}
}
