// Package sync drives the mirror cycle: resolve each configured folder's
// sharing URL, list remote changes against the stored cursor, plan which
// files to fetch, package and unpack them locally, project the results
// into the catalog, and persist the cursor only after everything else
// succeeded.
package sync

import (
	"errors"
	"fmt"
)

// ErrNothingExtracted means an archive unpacked zero files. The cycle
// treats this as a failed fetch and leaves the cursor untouched.
var ErrNothingExtracted = errors.New("sync: nothing extracted from archive")

// ErrNoShareURL means the folder has no sharing URL configured.
var ErrNoShareURL = errors.New("sync: no sharing URL configured")

// RemoteListError wraps a listing failure with the folder it hit. The
// folder's cursor is never advanced past one of these.
type RemoteListError struct {
	Folder string
	Err    error
}

func (e *RemoteListError) Error() string {
	return fmt.Sprintf("sync: listing folder %s: %v", e.Folder, e.Err)
}

func (e *RemoteListError) Unwrap() error {
	return e.Err
}
