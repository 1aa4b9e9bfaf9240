package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/csflash/flashsync/internal/catalog"
	"github.com/csflash/flashsync/internal/config"
	"github.com/csflash/flashsync/internal/graph"
	"github.com/csflash/flashsync/internal/statestore"
)

// Remote is the slice of the Graph client the cycle needs.
type Remote interface {
	ResolveShare(ctx context.Context, shareURL string) (graph.FolderRef, error)
	ListAll(ctx context.Context, folder graph.FolderRef, cursor string) (*graph.Listing, error)
	ChildLister
	Downloader
}

// Materializer projects extracted files into the catalog.
type Materializer interface {
	Materialize(ctx context.Context, folderKey string, files []catalog.File) (catalog.Result, error)
}

// RunOptions controls one invocation.
type RunOptions struct {
	// Force discards stored cursors and refetches every matching file.
	Force bool

	// Folder restricts the run to one folder key. Empty means all.
	Folder string
}

// Orchestrator runs the cycle for each configured folder in sequence.
// Folders fail independently, with one exception: a credential failure
// aborts the whole run, because every remaining folder would hit the same
// wall. A folder's cursor and bookkeeping are persisted only after every
// prior step of its cycle succeeded.
type Orchestrator struct {
	folders  []config.Folder
	baseDir  string
	remote   Remote
	store    statestore.Store
	transfer *Transfer
	rec      *Reconciler
	mat      Materializer
	logger   *slog.Logger

	now func() time.Time
}

// NewOrchestrator wires the cycle's collaborators together.
func NewOrchestrator(
	folders []config.Folder,
	baseDir string,
	remote Remote,
	store statestore.Store,
	transfer *Transfer,
	rec *Reconciler,
	mat Materializer,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		folders:  folders,
		baseDir:  baseDir,
		remote:   remote,
		store:    store,
		transfer: transfer,
		rec:      rec,
		mat:      mat,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes one cycle. The returned error is non-nil only for
// run-aborting conditions (credential failure, unknown folder key);
// per-folder failures live in the result.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	result := &RunResult{Started: o.now()}

	folders := o.folders

	if opts.Folder != "" {
		folders = nil

		for _, f := range o.folders {
			if f.Key == opts.Folder {
				folders = append(folders, f)
			}
		}

		if len(folders) == 0 {
			return result, fmt.Errorf("sync: unknown folder %q", opts.Folder)
		}
	}

	for _, folder := range folders {
		fr := o.syncFolder(ctx, folder, opts.Force)
		result.Folders = append(result.Folders, fr)

		if isAuthFailure(fr.Err) {
			o.logger.Error("credential failure, aborting run",
				slog.String("folder", folder.Key),
				slog.String("error", fr.Err.Error()),
			)

			return result, fr.Err
		}
	}

	return result, nil
}

func (o *Orchestrator) syncFolder(ctx context.Context, folder config.Folder, force bool) (result FolderResult) {
	start := o.now()

	result = FolderResult{Folder: folder.Key, State: StateResolving}

	defer func() {
		result.Duration = o.now().Sub(start)

		o.logger.Info("folder cycle finished",
			slog.String("folder", folder.Key),
			slog.String("state", result.State.String()),
			slog.Int("planned", result.Planned),
			slog.Int("fetched", result.Fetched),
			slog.Duration("duration", result.Duration),
		)
	}()

	fail := func(err error) FolderResult {
		result.State = StateFailed
		result.Err = err

		o.logger.Error("folder cycle failed",
			slog.String("folder", folder.Key),
			slog.String("error", err.Error()),
		)

		return result
	}

	if folder.ShareURL == "" {
		return fail(fmt.Errorf("%w: folder %s", ErrNoShareURL, folder.Key))
	}

	ref, err := o.remote.ResolveShare(ctx, folder.ShareURL)
	if err != nil {
		return fail(fmt.Errorf("sync: resolving folder %s: %w", folder.Key, err))
	}

	result.State = StateListing

	listing, err := o.listChanges(ctx, folder.Key, ref, force)
	if err != nil {
		return fail(err)
	}

	result.State = StatePlanning

	local, err := o.rec.ScanLocal(filepath.Join(o.baseDir, folder.Key))
	if err != nil {
		return fail(err)
	}

	plan, err := o.rec.Plan(ctx, listing.Entries, local, force)
	if err != nil {
		return fail(err)
	}

	result.Planned = len(plan)

	if len(plan) == 0 {
		// Nothing to move, but the cursor still advances: an empty change
		// set is a successful cycle.
		result.State = StatePersisting

		if err := o.persist(ctx, folder.Key, listing.NextCursor, 0); err != nil {
			return fail(err)
		}

		result.State = StateDone

		return result
	}

	result.State = StateFetching

	archivePath, fetched, fetchErrs, err := o.transfer.PackageAndFetch(ctx, folder.Key, plan)
	if err != nil {
		result.FetchErrors = fetchErrs
		return fail(err)
	}

	result.Fetched = fetched
	result.FetchErrors = fetchErrs

	result.State = StateUnpacking

	extracted, err := o.transfer.Unpack(folder.Key, archivePath)
	if err != nil {
		return fail(err)
	}

	result.Extracted = len(extracted)

	result.State = StateMaterializing

	catResult, err := o.mat.Materialize(ctx, folder.Key, o.catalogFiles(folder.Key, plan, extracted))
	if err != nil {
		return fail(fmt.Errorf("sync: materializing folder %s: %w", folder.Key, err))
	}

	result.Created = catResult.Created
	result.Updated = catResult.Updated
	result.Skipped = catResult.Skipped
	result.CatalogErrors = catResult.Errors

	if len(fetchErrs) > 0 {
		// Partial fetches keep their local files and catalog rows, but the
		// cursor stays put so the next cycle retries the misses.
		return fail(fmt.Errorf("sync: folder %s: %d of %d fetches failed",
			folder.Key, len(fetchErrs), len(plan)))
	}

	if len(catResult.Errors) > 0 {
		return fail(fmt.Errorf("sync: folder %s: %d catalog writes failed",
			folder.Key, len(catResult.Errors)))
	}

	result.State = StatePersisting

	if err := o.persist(ctx, folder.Key, listing.NextCursor, fetched); err != nil {
		return fail(err)
	}

	result.State = StateDone

	return result
}

// listChanges reads the folder's stored cursor and lists changes since.
// Force discards the cursor first. A cursor the provider no longer honors
// restarts the enumeration from scratch once.
func (o *Orchestrator) listChanges(
	ctx context.Context, folderKey string, ref graph.FolderRef, force bool,
) (*graph.Listing, error) {
	cursor := ""

	if force {
		if err := o.store.Forget(ctx, statestore.DeltaKey(folderKey)); err != nil {
			return nil, fmt.Errorf("sync: discarding cursor for %s: %w", folderKey, err)
		}
	} else {
		stored, err := o.store.Get(ctx, statestore.DeltaKey(folderKey))
		if err != nil && !errors.Is(err, statestore.ErrNotFound) {
			return nil, fmt.Errorf("sync: reading cursor for %s: %w", folderKey, err)
		}

		cursor = stored
	}

	listing, err := o.remote.ListAll(ctx, ref, cursor)

	if err != nil && cursor != "" && errors.Is(err, graph.ErrGone) {
		o.logger.Warn("stored cursor rejected, restarting enumeration",
			slog.String("folder", folderKey),
		)

		listing, err = o.remote.ListAll(ctx, ref, "")
	}

	if err != nil {
		return nil, &RemoteListError{Folder: folderKey, Err: err}
	}

	return listing, nil
}

// catalogFiles joins the extraction results back onto the plan so the
// catalog sees remote identity and modification time, not just local
// stat data.
func (o *Orchestrator) catalogFiles(folderKey string, plan []PlanItem, extracted []ExtractedFile) []catalog.File {
	byRel := make(map[string]graph.Entry, len(plan))
	for _, item := range plan {
		byRel[item.RelPath] = item.Entry
	}

	destRoot := filepath.Join(o.baseDir, folderKey)

	files := make([]catalog.File, 0, len(extracted))

	for _, ex := range extracted {
		f := catalog.File{
			Name:       ex.Name,
			Path:       ex.Path,
			Size:       ex.Size,
			ModifiedAt: o.now(),
		}

		if rel, err := filepath.Rel(destRoot, ex.Path); err == nil {
			if entry, ok := byRel[filepath.ToSlash(rel)]; ok {
				f.RemoteID = entry.ID

				if !entry.ModifiedAt.IsZero() {
					f.ModifiedAt = entry.ModifiedAt
				}
			}
		}

		files = append(files, f)
	}

	return files
}

// persist writes the folder's post-cycle bookkeeping: the next cursor, the
// completion timestamp, and the running fetch total. Runs only after every
// other step succeeded.
func (o *Orchestrator) persist(ctx context.Context, folderKey, cursor string, fetched int) error {
	if cursor != "" {
		if err := o.store.Put(ctx, statestore.DeltaKey(folderKey), cursor, 0); err != nil {
			return fmt.Errorf("sync: persisting cursor for %s: %w", folderKey, err)
		}
	}

	stamp := o.now().UTC().Format(time.RFC3339)
	if err := o.store.Put(ctx, statestore.LastSyncKey(folderKey), stamp, 0); err != nil {
		return fmt.Errorf("sync: persisting sync time for %s: %w", folderKey, err)
	}

	if fetched > 0 {
		total := fetched

		if prev, err := o.store.Get(ctx, statestore.StatsCountKey(folderKey)); err == nil {
			if n, convErr := strconv.Atoi(prev); convErr == nil {
				total += n
			}
		}

		if err := o.store.Put(ctx, statestore.StatsCountKey(folderKey), strconv.Itoa(total), 0); err != nil {
			return fmt.Errorf("sync: persisting stats for %s: %w", folderKey, err)
		}
	}

	return nil
}

// isAuthFailure reports whether err is a credential problem that would hit
// every folder equally.
func isAuthFailure(err error) bool {
	if err == nil {
		return false
	}

	var authErr *graph.AuthError

	return errors.As(err, &authErr) || errors.Is(err, graph.ErrNotAuthenticated)
}
