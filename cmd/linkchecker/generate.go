package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/user/linkchecker-service/internal/entity"
)

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:     "generate",
		Aliases: []string{"g"},
		Short:   "Run one report generation and print its stats",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.feed.GenerateDataFeed(cmd.Context())
			if err != nil {
				return err
			}
			if err := printStats(cmd.OutOrStdout(), stats); err != nil {
				return err
			}
			if output == "" {
				return nil
			}
			data, err := a.feed.CSV(cmd.Context())
			if err != nil {
				return err
			}
			return os.WriteFile(output, data, 0o644)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "also write the CSV report to this file")
	cmd.Flags().String("search-path", "", "root of the scanned content (default /content)")
	cmd.Flags().String("links-type", "", "check only INTERNAL or EXTERNAL links")
	cmd.Flags().StringSlice("excluded-paths", nil, "regular expressions of paths to skip with their subtree")
	cmd.Flags().IntSlice("allowed-status-codes", nil, "report only broken links with these codes")
	cmd.Flags().Bool("check-activation", false, "skip pages and assets that are not activated")
	bindLocal(opts.v, cmd, map[string]string{
		"generator.search_path":          "search-path",
		"generator.links_type":           "links-type",
		"generator.excluded_paths":       "excluded-paths",
		"generator.allowed_status_codes": "allowed-status-codes",
		"generator.check_activation":     "check-activation",
	})
	return cmd
}

func printStats(w io.Writer, stats *entity.GenerationStats) error {
	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Internal", "External", "Custom", "Total")
	rows := [][]string{
		countRow("Checked links", stats.CheckedLinks),
		countRow("Broken links", stats.BrokenLinks),
	}
	for _, r := range rows {
		if err := table.Append(r); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d nodes traversed, %d rows reported in %s\n",
		stats.TraversedNodes, stats.ReportedRows, time.Duration(stats.DurationMS)*time.Millisecond)
	return err
}

func countRow(name string, c entity.LinksCount) []string {
	return []string{
		name,
		strconv.FormatInt(c.Internal, 10),
		strconv.FormatInt(c.External, 10),
		strconv.FormatInt(c.Custom, 10),
		strconv.FormatInt(c.Total(), 10),
	}
}
