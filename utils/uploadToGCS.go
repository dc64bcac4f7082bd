package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// getGoogleClient initializes a Google Cloud Storage client.
// Prefers ADC (service account / GOOGLE_APPLICATION_CREDENTIALS). Set
// GCS_CREDENTIALS_JSON to provide explicit JSON (e.g. locally).
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		client, err := storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// ArchiveExtractToGCS stores the raw uploaded insurer extract before any
// processing, so every reconciliation run can be traced back to the exact
// bytes it consumed. Returns the object key.
func ArchiveExtractToGCS(ctx context.Context, insurerName, filename string, data []byte) (string, error) {
	bucketName := os.Getenv("GCS_EXTRACTS_BUCKET")
	if bucketName == "" {
		return "", errors.New("GCS_EXTRACTS_BUCKET is required")
	}

	client, err := getGoogleClient(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	objectKey := path.Join(
		"universal-records",
		strings.ReplaceAll(strings.TrimSpace(insurerName), " ", "_"),
		time.Now().UTC().Format("2006/01/02"),
		GenerateUniqueFilename()+"_"+path.Base(filename),
	)

	w := client.Bucket(bucketName).Object(objectKey).NewWriter(ctx)
	w.ContentType = contentTypeForExtract(filename)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("writing extract to gcs: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("closing gcs writer: %w", err)
	}
	return objectKey, nil
}

// ReadExtractFromGCS fetches an archived extract for the async worker path.
func ReadExtractFromGCS(ctx context.Context, objectKey string) ([]byte, error) {
	bucketName := os.Getenv("GCS_EXTRACTS_BUCKET")
	if bucketName == "" {
		return nil, errors.New("GCS_EXTRACTS_BUCKET is required")
	}

	client, err := getGoogleClient(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	r, err := client.Bucket(bucketName).Object(objectKey).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}

func contentTypeForExtract(filename string) string {
	if strings.HasSuffix(strings.ToLower(filename), ".xlsx") {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}
