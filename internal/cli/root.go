package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tga-backend/internal/project"
	"tga-backend/internal/standards"
	"tga-backend/internal/standards/condition"
)

type options struct {
	standardsFile string
	policy        string
	jsonOutput    bool
}

// NewRootCmd builds the tgactl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "tgactl",
		Short:         "Inspect the standards catalog and check project configurations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.standardsFile, "standards-file", os.Getenv("STANDARDS_FILE"), "YAML catalog to use instead of the embedded one")
	root.PersistentFlags().StringVar(&opts.policy, "policy", string(condition.PolicyCompliant),
		fmt.Sprintf("how unresolved conditions are treated (%s or %s)", condition.PolicyCompliant, condition.PolicyViolation))
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "print JSON instead of a table")

	root.AddCommand(newStandardsCmd(opts))
	root.AddCommand(newClassifyCmd(opts))
	root.AddCommand(newCheckCmd(opts))
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func (o *options) catalog() (*standards.Catalog, error) {
	if path := strings.TrimSpace(o.standardsFile); path != "" {
		return standards.LoadFile(path)
	}
	return standards.Load()
}

func (o *options) checker() (*standards.Checker, error) {
	catalog, err := o.catalog()
	if err != nil {
		return nil, err
	}
	policy, err := condition.ParsePolicy(o.policy)
	if err != nil {
		return nil, err
	}
	return standards.NewChecker(catalog, policy), nil
}

// readProject decodes a project configuration from path, or stdin when path
// is "-".
func readProject(cmd *cobra.Command, path string) (project.Config, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return project.Config{}, fmt.Errorf("read project config: %w", err)
	}
	return project.Decode(raw)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
