package cli

import (
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/stemtrack/internal/locator"
	"github.com/roach88/stemtrack/internal/record"
)

type annotateOptions struct {
	*RootOptions
	ref         refFlags
	Description string
	Features    []string
}

// AnnotateOutput is the result of annotate.
type AnnotateOutput struct {
	Record   record.Record    `json:"record"`
	Features []record.Feature `json:"features"`
}

func (o AnnotateOutput) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "annotated %s %s", o.Record.Registry, o.Record.UID)
	for _, f := range o.Features {
		fmt.Fprintf(&b, "\n  %s = %s", f.Name, strings.Join(f.Values, ", "))
	}
	return b.String()
}

// NewAnnotateCommand creates the annotate command.
func NewAnnotateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &annotateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "annotate [url]",
		Short: "Set the description or features of a record",
		Long: `Set the description or features of a record.

A feature is name=value. A comma separated value is a list, and values
may be double quoted to contain commas.

Examples:
  stemtrack annotate --key cells.csv --feature assay=scRNA-seq
  stemtrack annotate --uid abcd1234efgh --feature 'tissues="lung","liver"'
  stemtrack annotate --key analysis.py --description "QC of batch 3"`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnnotate(opts, args, cmd)
		},
	}

	opts.ref.bind(cmd)
	cmd.Flags().StringVar(&opts.Description, "description", "", "new description")
	cmd.Flags().StringArrayVar(&opts.Features, "feature", nil, "feature as name=value (repeatable)")

	return cmd
}

func runAnnotate(opts *annotateOptions, args []string, cmd *cobra.Command) error {
	if opts.Description == "" && len(opts.Features) == 0 {
		return NewExitError(ExitCommandError, "pass --description or --feature")
	}
	features, err := ParseFeatures(opts.Features)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid feature", err)
	}
	ref, err := opts.ref.ref(args, opts.cfg.Instance)
	if err != nil {
		return err
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	ctx := context.Background()

	rec, err := locator.New(st).Locate(ctx, ref)
	if err != nil {
		return fail("failed to locate "+ref.String(), err)
	}
	if opts.Description != "" {
		if err := st.UpdateDescription(ctx, rec.UID, opts.Description); err != nil {
			return fail("failed to update description", err)
		}
		rec.Description = opts.Description
	}
	if len(features) > 0 {
		if err := st.Annotate(ctx, rec.UID, features); err != nil {
			return fail("failed to annotate", err)
		}
	}
	all, err := st.Features(ctx, rec.UID)
	if err != nil {
		return fail("failed to read features", err)
	}
	opts.logger.Info("annotated", "uid", rec.UID, "features", len(features))
	return opts.formatter(cmd).Success(AnnotateOutput{Record: rec, Features: all})
}

// ParseFeatures parses name=value pairs. The value is split like a CSV
// record, so a="x","y" and b=1,2 are lists and c=v is a single value.
func ParseFeatures(pairs []string) ([]record.Feature, error) {
	out := make([]record.Feature, 0, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%q: expected name=value", pair)
		}
		r := csv.NewReader(strings.NewReader(value))
		r.TrimLeadingSpace = true
		values, err := r.Read()
		if err != nil {
			return nil, fmt.Errorf("%q: %w", pair, err)
		}
		out = append(out, record.Feature{Name: name, Values: values})
	}
	return out, nil
}
