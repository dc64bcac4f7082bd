package utils

import "errors"

// ErrMappingNotFound is the upload-wide precondition failure: no column
// mapping is registered for the requested insurer. Nothing has been
// written when this is returned.
var ErrMappingNotFound = errors.New("insurer mapping not found")
