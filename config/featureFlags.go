package config

import (
	"os"
	"strings"
)

// AsyncUploadsEnabled routes large extract uploads through Pub/Sub instead of
// processing them inside the request.
//
// Set via env:
// - RECON_ASYNC_UPLOADS=true
func AsyncUploadsEnabled() bool {
	return envBool("RECON_ASYNC_UPLOADS")
}

// CrossInsurerMatchEnabled controls the fallback scan that re-files a policy
// found under another insurer. The uploaded file's insurer assignment is
// authoritative, so this defaults to on; turn it off when backfilling
// historical extracts of unknown provenance.
//
// Set via env:
// - RECON_CROSS_INSURER_MATCH=false
func CrossInsurerMatchEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("RECON_CROSS_INSURER_MATCH")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
