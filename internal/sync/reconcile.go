package sync

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/csflash/flashsync/internal/graph"
)

// ChildLister enumerates the direct children of a remote folder. Used for
// descending into subfolders that appear in a change listing.
type ChildLister interface {
	ListChildren(ctx context.Context, folder graph.FolderRef) ([]graph.Entry, error)
}

// Reconciler decides which remote files need fetching. The rule is size
// equality: a file whose local copy exists with the same byte size is
// up to date, everything else is fetched. Deleted remote entries are
// ignored, so local files never disappear because of a remote deletion.
type Reconciler struct {
	ext    string // lowercase, with leading dot
	lister ChildLister
	logger *slog.Logger
}

// NewReconciler builds a Reconciler filtering on the given extension
// (case-insensitive).
func NewReconciler(ext string, lister ChildLister, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{
		ext:    strings.ToLower(ext),
		lister: lister,
		logger: logger,
	}
}

// ScanLocal walks dir and returns sizes of existing matching files keyed
// by slash-separated path relative to dir. A missing dir is an empty
// mirror, not an error.
func (r *Reconciler) ScanLocal(dir string) (map[string]int64, error) {
	sizes := make(map[string]int64)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return sizes, nil
	}

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !r.matchesExt(d.Name()) {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		sizes[filepath.ToSlash(rel)] = info.Size()

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sync: scanning %s: %w", dir, err)
	}

	return sizes, nil
}

// queued pairs a folder reference with the local path prefix its children
// land under.
type queued struct {
	ref    graph.FolderRef
	prefix string
}

// Plan walks the change listing and returns the files to fetch. Folders in
// the listing are descended iteratively via the child lister, so deeply
// nested trees cannot blow the stack. Change feeds list nested items both
// at the top level and under their folders; descent runs first and entries
// are deduplicated by ID, so the path derived from descent wins. With
// force set, size equality is ignored and every matching file is fetched.
func (r *Reconciler) Plan(
	ctx context.Context, entries []graph.Entry, local map[string]int64, force bool,
) ([]PlanItem, error) {
	var (
		plan    []PlanItem
		queue   []queued
		visited = make(map[string]bool)
		planned = make(map[string]bool)
	)

	consider := func(e graph.Entry, prefix string) {
		switch {
		case e.IsDeleted:
			// Remote deletions never propagate.
		case e.IsFolder:
			// The delta feed lists the watched folder itself with a root
			// facet. Its children are already top-level entries; descending
			// into it would prefix every path with the folder's own name.
			if e.IsRoot || visited[e.ID] {
				return
			}

			visited[e.ID] = true

			queue = append(queue, queued{
				ref:    graph.FolderRef{DriveID: e.DriveID, ItemID: e.ID},
				prefix: path.Join(prefix, e.Name),
			})
		case r.matchesExt(e.Name):
			if planned[e.ID] {
				return
			}

			planned[e.ID] = true

			rel := path.Join(prefix, e.Name)

			if size, ok := local[rel]; ok && size == e.Size && !force {
				r.logger.Debug("up to date", slog.String("path", rel))
				return
			}

			plan = append(plan, PlanItem{Entry: e, RelPath: rel})
		}
	}

	for _, e := range entries {
		if e.IsFolder {
			consider(e, "")
		}
	}

	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		children, err := r.lister.ListChildren(ctx, next.ref)
		if err != nil {
			return nil, fmt.Errorf("sync: descending into %s: %w", next.prefix, err)
		}

		for _, child := range children {
			consider(child, next.prefix)
		}
	}

	for _, e := range entries {
		if !e.IsFolder {
			consider(e, "")
		}
	}

	return plan, nil
}

func (r *Reconciler) matchesExt(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), r.ext)
}
