package main

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/csflash/flashsync/internal/graph"
	"github.com/csflash/flashsync/internal/sync"
)

func newStatusCmd() *cobra.Command {
	var (
		flagRemote bool
		flagProbe  bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-folder sync state",
		Long: `Shows each folder's stored bookkeeping: whether a change cursor
exists, when the last successful cycle finished, and the running fetch total.
With --remote, each sharing URL is also resolved against the provider. With
--probe, token validity is checked first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(buildLogger(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if flagProbe {
				if err := a.client.Probe(ctx); err != nil {
					if errors.Is(err, graph.ErrNotAuthenticated) {
						fmt.Fprintln(out, "Auth: not logged in")
					} else {
						fmt.Fprintf(out, "Auth: probe failed: %v\n", err)
					}
				} else {
					fmt.Fprintln(out, "Auth: connected")
				}
			}

			statuses, err := sync.Statuses(ctx, a.store, a.cfg.Sync.Folders)
			if err != nil {
				return err
			}

			headers := []string{"FOLDER", "CONFIGURED", "CURSOR", "LAST SYNC", "FETCHED", "LOCAL", "SIZE"}

			rows := make([][]string, 0, len(statuses))
			for _, s := range statuses {
				lastSync := "never"
				if !s.LastSync.IsZero() {
					lastSync = formatTime(s.LastSync)
				}

				count, bytes := localSummary(
					filepath.Join(a.cfg.Sync.BaseDir, s.Key), a.cfg.Sync.Extension)

				rows = append(rows, []string{
					s.Key,
					yesNo(s.Configured),
					yesNo(s.HasCursor),
					lastSync,
					fmt.Sprint(s.TotalFiles),
					fmt.Sprint(count),
					formatSize(bytes),
				})
			}

			printTable(out, headers, rows)

			if flagRemote {
				return printRemoteStatus(cmd, a)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&flagRemote, "remote", false, "resolve each sharing URL against the provider")
	cmd.Flags().BoolVar(&flagProbe, "probe", false, "check token validity first")

	return cmd
}

// printRemoteStatus resolves each configured sharing URL and reports the
// outcome. A resolution failure here is diagnostic output, not a command
// failure; a credential failure still is.
func printRemoteStatus(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	for _, folder := range a.cfg.Sync.Folders {
		if folder.ShareURL == "" {
			fmt.Fprintf(out, "%s: no sharing URL configured\n", folder.Key)
			continue
		}

		ref, err := a.client.ResolveShare(ctx, folder.ShareURL)
		if err != nil {
			var authErr *graph.AuthError
			if errors.As(err, &authErr) {
				return err
			}

			fmt.Fprintf(out, "%s: resolution failed: %v\n", folder.Key, err)

			continue
		}

		fmt.Fprintf(out, "%s: drive %s item %s\n", folder.Key, ref.DriveID, ref.ItemID)
	}

	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}

	return "no"
}

// localSummary counts matching files under dir and their total size. A
// missing mirror directory reads as zero of each.
func localSummary(dir, ext string) (count int, bytes int64) {
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		// Unreadable subtrees just shrink the summary.
		if err != nil || d.IsDir() {
			return nil
		}

		if !strings.HasSuffix(strings.ToLower(d.Name()), strings.ToLower(ext)) {
			return nil
		}

		if info, infoErr := d.Info(); infoErr == nil {
			count++
			bytes += info.Size()
		}

		return nil
	})

	return count, bytes
}
