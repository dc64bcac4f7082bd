package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"bitbucket.org/insurezeal/brokerage_backend/config"
	"bitbucket.org/insurezeal/brokerage_backend/recon"
	"bitbucket.org/insurezeal/brokerage_backend/utils"
	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const maxExtractSizeBytes int64 = 32 << 20

// Large extracts go through Pub/Sub when async uploads are enabled; small
// ones always process inline so the operator sees the report immediately.
const asyncThresholdBytes int64 = 2 << 20

const uploadLockTTL = 10 * time.Minute

var extractExtensions = map[string]bool{
	".csv":  true,
	".xlsx": true,
}

type uploadRequest struct {
	insurerName string
	operatorID  string
	filename    string
	data        []byte
}

type uploadForm struct {
	InsurerName string `form:"insurer_name" binding:"required"`
	OperatorId  string `form:"operator_id"`
}

// readUploadRequest validates the multipart form shared by both upload
// endpoints. These are the upload-wide preconditions: failures here are
// terminal and nothing has been processed.
func readUploadRequest(c *gin.Context) (*uploadRequest, bool) {
	var form uploadForm
	if err := c.ShouldBind(&form); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid upload form"})
		}
		return nil, false
	}

	insurerName := strings.TrimSpace(form.InsurerName)
	if insurerName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "insurer_name is required"})
		return nil, false
	}
	operatorID := strings.TrimSpace(form.OperatorId)
	if operatorID == "" {
		if v, ok := utils.GetOperatorIdFromContext(c.Request.Context()); ok {
			operatorID = v
		}
	}
	if operatorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "operator_id is required"})
		return nil, false
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return nil, false
	}
	if fileHeader.Size > maxExtractSizeBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file exceeds 32MB limit"})
		return nil, false
	}
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !extractExtensions[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type, want .csv or .xlsx"})
		return nil, false
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open uploaded file"})
		return nil, false
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded file"})
		return nil, false
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "uploaded file is empty"})
		return nil, false
	}

	return &uploadRequest{
		insurerName: insurerName,
		operatorID:  operatorID,
		filename:    fileHeader.Filename,
		data:        data,
	}, true
}

func uploadHandler(c *gin.Context, reconciler *recon.Reconciler) {
	req, ok := readUploadRequest(c)
	if !ok {
		return
	}
	runUpload(c, reconciler, req, nil)
}

func uploadQuartersHandler(c *gin.Context, reconciler *recon.Reconciler) {
	req, ok := readUploadRequest(c)
	if !ok {
		return
	}

	var targets []recon.QuarterTarget
	if raw := strings.TrimSpace(c.PostForm("quarters")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &targets); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quarters must be JSON like [{\"quarter\":1,\"year\":2026}]"})
			return
		}
	}
	for _, t := range targets {
		if t.Quarter < 1 || t.Quarter > 4 || t.Year < 2000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quarter target " + t.String()})
			return
		}
	}
	if len(targets) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one quarter target is required"})
		return
	}
	runUpload(c, reconciler, req, targets)
}

func runUpload(c *gin.Context, reconciler *recon.Reconciler, req *uploadRequest, targets []recon.QuarterTarget) {
	ctx := c.Request.Context()
	logger := config.GetLogger()

	// Archive the raw bytes first; the run must be traceable even if it
	// fails halfway. Archive failure is non-fatal for synchronous runs.
	objectKey, archiveErr := utils.ArchiveExtractToGCS(ctx, req.insurerName, req.filename, req.data)
	if archiveErr != nil {
		config.LogError(logger, "uploads.go", "runUpload", "archiving extract", req.filename, archiveErr)
	}

	if config.AsyncUploadsEnabled() && int64(len(req.data)) >= asyncThresholdBytes {
		if archiveErr != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "async upload requires extract archival, which failed"})
			return
		}
		cid, _ := utils.GetCorrelationIdFromContext(ctx)
		payload := recon.ReconRunPayload{
			InsurerName:   req.insurerName,
			OperatorId:    req.operatorID,
			ObjectKey:     objectKey,
			Filename:      req.filename,
			Quarters:      targets,
			CorrelationId: cid,
		}
		if err := recon.PublishRun(ctx, payload); err != nil {
			config.LogError(logger, "uploads.go", "runUpload", "publishing run", payload, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue upload"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "queued", "object_key": objectKey})
		return
	}

	lock, err := recon.AcquireInsurerUploadLock(ctx, req.insurerName, uploadLockTTL)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			c.JSON(http.StatusConflict, gin.H{"error": "another upload for this insurer is in progress"})
			return
		}
		// Redis trouble is not a reason to block reconciliation; the ledger
		// contract accepts last-write-wins.
		config.LogError(logger, "uploads.go", "runUpload", "acquiring upload lock", req.insurerName, err)
	}
	if lock != nil {
		defer lock.Release(context.WithoutCancel(ctx))
	}

	csvText, err := recon.ParseExtract(req.filename, req.data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var report *recon.ProcessingReport
	if len(targets) > 0 {
		report, err = reconciler.ProcessQuarters(ctx, csvText, req.insurerName, req.operatorID, targets)
	} else {
		report, err = reconciler.Process(ctx, csvText, req.insurerName, req.operatorID)
	}
	if err != nil {
		if errors.Is(err, utils.ErrMappingNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		config.LogError(logger, "uploads.go", "runUpload", "processing", req.insurerName, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}
