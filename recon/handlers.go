package recon

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"bitbucket.org/insurezeal/brokerage_backend/config"
	"bitbucket.org/insurezeal/brokerage_backend/models"
	"github.com/gin-gonic/gin"
)

const defaultPreviewRows = 20
const reportsPageSize = 25

// InsurersHandler lists the insurers the registry has a mapping for.
func InsurersHandler(registry *MappingRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		registry.Load()
		c.JSON(http.StatusOK, gin.H{"insurers": registry.ListInsurers()})
	}
}

// ReloadMappingsHandler re-reads the mapping table so operators can extend it
// without a redeploy.
func ReloadMappingsHandler(registry *MappingRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		registry.Reload()
		c.JSON(http.StatusOK, gin.H{"insurers": registry.ListInsurers()})
	}
}

// PreviewHandler shows the raw rows of an uploaded extract plus mapping
// diagnostics for the selected insurer, without touching the ledger. Rows are
// intentionally unfiltered here: operators use the preview to spot rows the
// pipeline would reject.
func PreviewHandler(registry *MappingRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		insurerName := strings.TrimSpace(c.PostForm("insurer_name"))
		if insurerName == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "insurer_name is required"})
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open file"})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
			return
		}

		csvText, err := ParseExtract(fileHeader.Filename, data)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		limit := defaultPreviewRows
		if v := c.Query("rows"); v != "" {
			if n, convErr := strconv.Atoi(v); convErr == nil && n > 0 {
				limit = n
			}
		}

		rows, headers, err := PreviewCSV(csvText, limit)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		registry.Load()
		resp := gin.H{
			"headers": headers,
			"rows":    rows,
		}
		if mapping := registry.GetMapping(insurerName); mapping != nil {
			var unmapped []string
			for _, h := range headers {
				if _, ok := mapping[h]; !ok {
					unmapped = append(unmapped, h)
				}
			}
			resp["unmapped_headers"] = unmapped
		} else {
			resp["warning"] = "no mapping registered for " + insurerName
		}
		c.JSON(http.StatusOK, resp)
	}
}

// ReportsHandler lists reconciliation report rows, newest first.
func ReportsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not ready"})
			return
		}

		page := 1
		if v := c.Query("page"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				page = n
			}
		}

		query := db.WithContext(c.Request.Context()).Model(&models.ReconciliationReport{})
		if insurer := strings.TrimSpace(c.Query("insurer_name")); insurer != "" {
			query = query.Where("insurer_name = ?", insurer)
		}

		var reports []models.ReconciliationReport
		if err := query.Order("created_at DESC").
			Limit(reportsPageSize).
			Offset((page - 1) * reportsPageSize).
			Find(&reports).Error; err != nil {
			config.LogError(config.GetLogger(), "handlers.go", "ReportsHandler", "listing reports", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list reports"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"reports": reports, "page": page})
	}
}
