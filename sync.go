package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/csflash/flashsync/internal/sync"
)

func newSyncCmd() *cobra.Command {
	var (
		flagFull       bool
		flagFolder     string
		flagBatchSize  int
		flagBatchDelay time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one mirror cycle",
		Long: `Lists remote changes for each configured folder, fetches new and
changed flash files, and projects them into the catalog. Folders fail
independently; a folder's cursor only advances when its whole cycle succeeded.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flagBatchSize > 0 {
				loadedCfg.Sync.BatchSize = flagBatchSize
			}

			if cmd.Flags().Changed("batch-delay") {
				loadedCfg.Sync.BatchDelaySeconds = int(flagBatchDelay.Seconds())
			}

			a, err := newApp(buildLogger(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.orch.Run(cmd.Context(), sync.RunOptions{
				Force:  flagFull,
				Folder: flagFolder,
			})
			if err != nil {
				return err
			}

			printRunResult(cmd, result)

			if result.Failed() {
				return fmt.Errorf("sync finished with failures")
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&flagFull, "full", false, "discard cursors and refetch every file")
	cmd.Flags().StringVar(&flagFolder, "folder", "", "sync only this folder key")
	cmd.Flags().IntVar(&flagBatchSize, "batch-size", 0, "override catalog batch size")
	cmd.Flags().DurationVar(&flagBatchDelay, "batch-delay", 0, "override pause between catalog batches")

	return cmd
}

func printRunResult(cmd *cobra.Command, result *sync.RunResult) {
	headers := []string{"FOLDER", "STATE", "PLANNED", "FETCHED", "CREATED", "UPDATED", "SKIPPED", "TIME"}

	rows := make([][]string, 0, len(result.Folders))
	for _, fr := range result.Folders {
		rows = append(rows, []string{
			fr.Folder,
			fr.State.String(),
			fmt.Sprint(fr.Planned),
			fmt.Sprint(fr.Fetched),
			fmt.Sprint(fr.Created),
			fmt.Sprint(fr.Updated),
			fmt.Sprint(fr.Skipped),
			fr.Duration.Round(time.Millisecond).String(),
		})
	}

	printTable(cmd.OutOrStdout(), headers, rows)

	for _, fr := range result.Folders {
		for _, fetchErr := range fr.FetchErrors {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %v\n", fr.Folder, fetchErr)
		}
	}
}
