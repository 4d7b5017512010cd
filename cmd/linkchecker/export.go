package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/user/linkchecker-service/internal/entity"
	"github.com/user/linkchecker-service/internal/usecase"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		output string
		format string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the stored report as CSV or as a table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "csv" && format != "table" {
				return fmt.Errorf("unknown format %q, expected csv or table", format)
			}
			a, err := opts.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			if format == "table" {
				rows, err := a.feed.ReadAll(cmd.Context())
				if err != nil {
					return err
				}
				return printRows(w, rows)
			}
			data, err := a.feed.CSV(cmd.Context())
			if errors.Is(err, usecase.ErrNoReport) {
				return errors.New("no report found, run generate first")
			}
			if err != nil {
				return err
			}
			_, err = w.Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "output format (csv or table)")
	return cmd
}

func printRows(w io.Writer, rows []entity.GridResource) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No broken links reported.")
		return err
	}
	code := color.New(color.FgRed).SprintFunc()
	table := tablewriter.NewWriter(w)
	table.Header("Link", "Type", "Code", "Status Message", "Location")
	for _, r := range rows {
		if err := table.Append([]string{
			r.Link.Href,
			r.Link.TypeName(),
			code(strconv.Itoa(r.Link.Status.Code)),
			r.Link.Status.Message,
			r.Location().String(),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}
