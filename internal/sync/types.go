package sync

import (
	"time"

	"github.com/csflash/flashsync/internal/graph"
)

// FolderState tracks where a folder's cycle is. States advance strictly
// forward; any failure jumps to StateFailed and the cycle for that folder
// ends there.
type FolderState int

const (
	StateIdle FolderState = iota
	StateResolving
	StateListing
	StatePlanning
	StateFetching
	StateUnpacking
	StateMaterializing
	StatePersisting
	StateDone
	StateFailed
)

var stateNames = map[FolderState]string{
	StateIdle:          "idle",
	StateResolving:     "resolving",
	StateListing:       "listing",
	StatePlanning:      "planning",
	StateFetching:      "fetching",
	StateUnpacking:     "unpacking",
	StateMaterializing: "materializing",
	StatePersisting:    "persisting",
	StateDone:          "done",
	StateFailed:        "failed",
}

func (s FolderState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return "unknown"
}

// PlanItem is one remote file the cycle decided to fetch, with the path it
// will occupy relative to the folder's local root.
type PlanItem struct {
	Entry   graph.Entry
	RelPath string
}

// FolderResult summarizes one folder's cycle.
type FolderResult struct {
	Folder    string
	State     FolderState
	Planned   int
	Fetched   int
	Extracted int
	Created   int
	Updated   int
	Skipped   int
	Duration  time.Duration
	Err       error

	// FetchErrors and CatalogErrors are per-file failures that did not
	// sink the whole folder. Either being non-empty still fails the cycle
	// for cursor purposes.
	FetchErrors   []error
	CatalogErrors []error
}

// Failed reports whether this folder's cycle ended without persisting.
func (r *FolderResult) Failed() bool {
	return r.State == StateFailed
}

// RunResult aggregates all folder cycles of one invocation.
type RunResult struct {
	Folders []FolderResult
	Started time.Time
}

// Failed reports whether any folder cycle failed.
func (r *RunResult) Failed() bool {
	for i := range r.Folders {
		if r.Folders[i].Failed() {
			return true
		}
	}

	return false
}
