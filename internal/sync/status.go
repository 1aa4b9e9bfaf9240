package sync

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/csflash/flashsync/internal/config"
	"github.com/csflash/flashsync/internal/statestore"
)

// FolderStatus is the stored bookkeeping for one folder.
type FolderStatus struct {
	Key        string
	Configured bool // has a sharing URL
	HasCursor  bool
	LastSync   time.Time // zero when the folder never completed a cycle
	TotalFiles int       // running fetch total across all cycles
}

// Statuses reads the stored bookkeeping for each configured folder.
func Statuses(ctx context.Context, store statestore.Store, folders []config.Folder) ([]FolderStatus, error) {
	statuses := make([]FolderStatus, 0, len(folders))

	for _, folder := range folders {
		status := FolderStatus{
			Key:        folder.Key,
			Configured: folder.ShareURL != "",
		}

		if _, err := store.Get(ctx, statestore.DeltaKey(folder.Key)); err == nil {
			status.HasCursor = true
		} else if !errors.Is(err, statestore.ErrNotFound) {
			return nil, err
		}

		if stamp, err := store.Get(ctx, statestore.LastSyncKey(folder.Key)); err == nil {
			if at, parseErr := time.Parse(time.RFC3339, stamp); parseErr == nil {
				status.LastSync = at
			}
		} else if !errors.Is(err, statestore.ErrNotFound) {
			return nil, err
		}

		if count, err := store.Get(ctx, statestore.StatsCountKey(folder.Key)); err == nil {
			if n, convErr := strconv.Atoi(count); convErr == nil {
				status.TotalFiles = n
			}
		} else if !errors.Is(err, statestore.ErrNotFound) {
			return nil, err
		}

		statuses = append(statuses, status)
	}

	return statuses, nil
}
