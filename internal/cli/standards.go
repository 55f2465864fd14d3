package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tga-backend/internal/standards"
)

func newStandardsCmd(opts *options) *cobra.Command {
	var withRules bool
	cmd := &cobra.Command{
		Use:   "standards [id]",
		Short: "List catalog standards or show one with its rules",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := opts.catalog()
			if err != nil {
				return err
			}
			list := catalog.Standards()
			if len(args) == 1 {
				std := catalog.Get(args[0])
				if std == nil {
					return fmt.Errorf("standard %q not found", args[0])
				}
				list = []*standards.Standard{std}
				withRules = true
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), standardsJSON(list, withRules))
			}
			return printStandards(cmd, list, withRules)
		},
	}
	cmd.Flags().BoolVar(&withRules, "rules", false, "include each standard's rules")
	return cmd
}

type ruleJSON struct {
	ID             string `json:"id"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
	Condition      string `json:"condition"`
}

type standardJSON struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Type     string     `json:"type"`
	Category string     `json:"category"`
	Rules    []ruleJSON `json:"rules,omitempty"`
}

func standardsJSON(list []*standards.Standard, withRules bool) []standardJSON {
	out := make([]standardJSON, 0, len(list))
	for _, s := range list {
		v := standardJSON{ID: s.ID, Title: s.Title, Type: string(s.Type), Category: s.Category}
		if withRules {
			for _, r := range s.Rules {
				v.Rules = append(v.Rules, ruleJSON{
					ID:             r.ID,
					Description:    r.Description,
					Recommendation: r.Recommendation,
					Condition:      r.Condition.Source(),
				})
			}
		}
		out = append(out, v)
	}
	return out
}

func printStandards(cmd *cobra.Command, list []*standards.Standard, withRules bool) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tCATEGORY\tRULES\tTITLE")
	for _, s := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", s.ID, s.Type, s.Category, len(s.Rules), s.Title)
		if !withRules {
			continue
		}
		for _, r := range s.Rules {
			fmt.Fprintf(w, "  %s\t\t\t\t%s (violated when %s)\n", r.ID, r.Description, r.Condition.Source())
		}
	}
	return w.Flush()
}
