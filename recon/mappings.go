package recon

import (
	"encoding/csv"
	"os"
	"sort"
	"strings"
	"sync"

	"bitbucket.org/insurezeal/brokerage_backend/config"
	"github.com/sirupsen/logrus"
)

// MappingRegistry loads and serves per-insurer column mappings. Construct one
// at the composition root and pass it into the Reconciler; there is no hidden
// module-level registry. Load is idempotent and never returns an error: if
// the source table is unreadable the registry falls back to the bundled
// mappings so uploads for known insurers keep working.
type MappingRegistry struct {
	mu       sync.RWMutex
	loaded   bool
	mappings map[string]InsurerMapping
	logger   *logrus.Logger
	source   string
}

// NewMappingRegistry reads the mapping table from sourcePath, or from
// INSURER_MAPPINGS_CSV when sourcePath is empty.
func NewMappingRegistry(sourcePath string, logger *logrus.Logger) *MappingRegistry {
	if sourcePath == "" {
		sourcePath = strings.TrimSpace(os.Getenv("INSURER_MAPPINGS_CSV"))
	}
	if sourcePath == "" {
		sourcePath = "insurer_mappings.csv"
	}
	if logger == nil {
		logger = config.GetLogger()
	}
	return &MappingRegistry{
		mappings: make(map[string]InsurerMapping),
		logger:   logger,
		source:   sourcePath,
	}
}

// Load populates the registry once. Safe to call repeatedly.
func (r *MappingRegistry) Load() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return
	}
	r.loadLocked()
}

// Reload re-reads the source table, replacing the cached mappings.
func (r *MappingRegistry) Reload() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadLocked()
}

func (r *MappingRegistry) loadLocked() {
	r.loaded = true

	data, err := os.ReadFile(r.source)
	if err != nil {
		config.LogError(r.logger, "mappings.go", "Load", "reading mapping table "+r.source, nil, err)
		r.mappings = FallbackMappings()
		return
	}
	mappings, err := ParseMappingTable(string(data))
	if err != nil {
		config.LogError(r.logger, "mappings.go", "Load", "parsing mapping table "+r.source, nil, err)
		r.mappings = FallbackMappings()
		return
	}
	if len(mappings) == 0 {
		r.logger.WithField("source", r.source).Error("mapping table has no insurer rows, using fallback mappings")
		r.mappings = FallbackMappings()
		return
	}
	r.mappings = mappings
	r.logger.WithFields(logrus.Fields{
		"source":   r.source,
		"insurers": len(mappings),
	}).Info("insurer mappings loaded")
}

// GetMapping returns the mapping for insurerName, or nil when unknown.
// Lookup is exact first, then case-insensitive.
func (r *MappingRegistry) GetMapping(insurerName string) InsurerMapping {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.mappings[insurerName]; ok {
		return m
	}
	for name, m := range r.mappings {
		if strings.EqualFold(name, insurerName) {
			return m
		}
	}
	return nil
}

func (r *MappingRegistry) ListInsurers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.mappings))
	for name := range r.mappings {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ParseMappingTable parses the configuration table. Row 0 is an identity
// column followed by the canonical headers; each later row is one insurer
// name followed by that insurer's raw column names aligned positionally to
// the header row. Blank raw cells mean the insurer does not supply that
// canonical field and are skipped.
func ParseMappingTable(text string) (map[string]InsurerMapping, error) {
	reader := csv.NewReader(strings.NewReader(stripBOM(text)))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return map[string]InsurerMapping{}, nil
	}

	headerRow := rows[0]
	mappings := make(map[string]InsurerMapping)
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		insurer := strings.TrimSpace(stripBOM(row[0]))
		if insurer == "" {
			continue
		}
		mapping := make(InsurerMapping)
		for col := 1; col < len(row) && col < len(headerRow); col++ {
			rawName := strings.TrimSpace(row[col])
			canonical := strings.TrimSpace(headerRow[col])
			if rawName == "" || canonical == "" {
				continue
			}
			mapping[rawName] = canonical
		}
		if len(mapping) > 0 {
			mappings[insurer] = mapping
		}
	}
	return mappings, nil
}

// FallbackMappings keeps the pipeline partially functional when the mapping
// table is missing. Covers the insurers whose layouts are stable enough to
// bundle.
func FallbackMappings() map[string]InsurerMapping {
	return map[string]InsurerMapping{
		"ICICI Lombard": {
			"POLICY_NUMBER":           HeaderPolicyNumber,
			"CHILD_ID":                HeaderChildID,
			"POLICY_START_DATE":       "Policy Start Date",
			"POLICY_END_DATE":         "Policy End Date",
			"BOOKING_DATE":            "Booking Date(Click to select Date)",
			"CUSTOMER_NAME":           "Customer Name",
			"PRODUCT":                 "Product (Insurer Report)",
			"GROSS_PREMIUM":           "Gross premium",
			"NET_PREMIUM":             "Net premium",
			"OD_PREMIUM":              "OD Premium",
			"TP_PREMIUM":              "TP Premium",
			"IGST+CGST+SGST+UTGST+CESS": HeaderGSTAmount,
			"REGISTRATION_NO":         "Registration.no",
			"MAKE_MODEL":              "Make & Model",
			"FUEL_TYPE":               "Fuel Type",
			"RTO_CODE":                "RTO",
		},
		"HDFC Ergo": {
			"Policy No":         HeaderPolicyNumber,
			"Child ID":          HeaderChildID,
			"Risk Start Date":   "Policy Start Date",
			"Risk End Date":     "Policy End Date",
			"Issue Date":        "Booking Date(Click to select Date)",
			"Insured Name":      "Customer Name",
			"Product Name":      "Product (Insurer Report)",
			"Total Premium":     "Gross premium",
			"Premium Amount":    "Net premium",
			"GST":               HeaderGSTAmount,
			"Vehicle Reg No":    "Registration.no",
			"Make Model":        "Make & Model",
		},
	}
}
