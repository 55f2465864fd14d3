package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newClassifyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <project.json|->",
		Short: "Show the discipline categories and standards that apply to a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := opts.catalog()
			if err != nil {
				return err
			}
			cfg, err := readProject(cmd, args[0])
			if err != nil {
				return err
			}
			categories := catalog.Classify(cfg)
			ids := catalog.StandardsFor(categories)
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"categories": nonEmpty(categories),
					"standards":  nonEmpty(ids),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "categories: %s\n", strings.Join(categories, ", "))
			fmt.Fprintf(out, "standards:  %s\n", strings.Join(ids, ", "))
			return nil
		},
	}
}

func newCheckCmd(opts *options) *cobra.Command {
	var ids []string
	cmd := &cobra.Command{
		Use:   "check <project.json|->",
		Short: "Evaluate compliance rules against a project configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			checker, err := opts.checker()
			if err != nil {
				return err
			}
			cfg, err := readProject(cmd, args[0])
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				ids = []string{"DIN 18015", "VDI 2052"}
			}

			violations := checker.Check(cmd.Context(), cfg, ids)
			report := checker.Summarize(ids, violations)
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"standards":        ids,
					"violations":       violations,
					"complianceReport": report,
				})
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STANDARD\tCOMPLIANT\tSCORE\tVIOLATIONS")
			for _, r := range report {
				fmt.Fprintf(w, "%s\t%t\t%d\t%s\n", r.StandardID, r.Compliant, r.Score, strings.Join(r.Violations, ","))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			for _, v := range violations {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", v.StandardID, v.RuleID, v.Recommendation)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&ids, "standard", nil, "standard to check, repeatable (default DIN 18015 and VDI 2052)")
	return cmd
}

func nonEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
