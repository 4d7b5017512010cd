package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/user/linkchecker-service/internal/usecase"
)

func newFixCmd(opts *rootOptions) *cobra.Command {
	var req usecase.FixRequest
	cmd := &cobra.Command{
		Use:   "fix",
		Short: "Replace one link in one property",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.fixer.Fix(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printFixResult(cmd.OutOrStdout(), res)
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Path, "path", "", "path of the node holding the link")
	f.StringVar(&req.PropertyName, "property", "", "name of the property holding the link")
	f.StringVar(&req.CurrentLink, "current", "", "link to replace")
	f.StringVar(&req.NewLink, "new", "", "replacement link")
	f.BoolVar(&req.SkipValidation, "skip-validation", false, "do not validate the replacement link")
	for _, name := range []string{"path", "property", "current", "new"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func printFixResult(w io.Writer, res usecase.FixResult) error {
	var err error
	switch res.Outcome {
	case usecase.FixApplied:
		_, err = fmt.Fprintln(w, color.GreenString("Link replaced (new link: %d %s)", res.Status.Code, res.Status.Message))
	case usecase.FixInvalidLink:
		return fmt.Errorf("new link is not valid: %d %s", res.Status.Code, res.Status.Message)
	case usecase.FixUnchanged:
		_, err = fmt.Fprintln(w, "Current and new link are equal, nothing to do.")
	case usecase.FixNotReplaced:
		_, err = fmt.Fprintln(w, color.YellowString("Current link was not found at the location."))
	default:
		return fmt.Errorf("path, property, current and new link are required")
	}
	return err
}

func newReplaceCmd(opts *rootOptions) *cobra.Command {
	var (
		pattern     string
		replacement string
		dryRun      bool
	)
	cmd := &cobra.Command{
		Use:   "replace",
		Short: "Rewrite every reported link matching a regular expression",
		Example: `  linkchecker replace --pattern '^http://old\.example\.com/(.*)' \
    --replacement 'https://new.example.com/${1}' --dry-run`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if pattern == replacement {
				return fmt.Errorf("pattern and replacement are equal")
			}
			a, err := opts.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.fixer.ReplaceByPattern(cmd.Context(), pattern, replacement, dryRun)
			if err != nil {
				return err
			}
			return printUpdatedItems(cmd.OutOrStdout(), items, dryRun)
		},
	}
	f := cmd.Flags()
	f.StringVar(&pattern, "pattern", "", "regular expression matched against reported links")
	f.StringVar(&replacement, "replacement", "", "replacement, ${1} refers to the first group")
	f.BoolVar(&dryRun, "dry-run", false, "only print what would change")
	_ = cmd.MarkFlagRequired("pattern")
	_ = cmd.MarkFlagRequired("replacement")
	return cmd
}

func printUpdatedItems(w io.Writer, items []usecase.UpdatedItem, dryRun bool) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "No links matched.")
		return err
	}
	table := tablewriter.NewWriter(w)
	table.Header("Link", "Updated Link", "Location")
	for _, it := range items {
		if err := table.Append([]string{it.CurrentLink, it.UpdatedLink, it.ResourcePath + "@" + it.PropertyName}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	verb := "updated"
	if dryRun {
		verb = "would be updated"
	}
	_, err := fmt.Fprintf(w, "%d links %s.\n", len(items), verb)
	return err
}
