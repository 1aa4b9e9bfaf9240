package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/csflash/flashsync/internal/catalog"
)

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Summarize the catalog per category",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(buildLogger(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			rows, err := catalog.Report(a.db)
			if err != nil {
				return err
			}

			headers := []string{"CATEGORY", "SLUG", "PRODUCTS", "SIZE"}

			table := make([][]string, 0, len(rows))
			for _, r := range rows {
				table = append(table, []string{
					r.Category,
					r.Slug,
					fmt.Sprint(r.Products),
					formatSize(r.TotalBytes),
				})
			}

			printTable(cmd.OutOrStdout(), headers, table)

			return nil
		},
	}
}
