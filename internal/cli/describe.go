package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/stemtrack/internal/track"
)

// DescribeOutput is the result of describe.
type DescribeOutput struct {
	*track.Description
	URL string `json:"url,omitempty"`
}

func (o DescribeOutput) String() string {
	var b strings.Builder
	r := o.Record
	fmt.Fprintf(&b, "%s %s\n", r.Registry, r.UID)

	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(w, "  %s:\t%s\n", name, value)
		}
	}
	field("key", r.Key)
	field("description", r.Description)
	field("kind", r.Kind)
	field("version", r.VersionLabel)
	field("hash", string(r.ContentHash))
	field("revises", string(r.Revises))
	field("created", fmt.Sprintf("%s by %s", r.CreatedAt.Format(time.RFC3339), r.CreatedBy))
	field("url", o.URL)
	w.Flush()

	b.WriteString("versions:\n")
	w = tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	for _, v := range o.Family {
		marker := " "
		if v.UID == r.UID {
			marker = "*"
		}
		fmt.Fprintf(w, " %s %s\t%s\t%s\t%s\n", marker, v.UID, v.VersionLabel, v.CreatedBy, v.CreatedAt.Format(time.RFC3339))
	}
	w.Flush()

	if len(o.Runs) > 0 {
		b.WriteString("runs:\n")
		w = tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		for _, run := range o.Runs {
			state := "running"
			if run.FinishedAt != nil {
				state = "finished " + run.FinishedAt.Format(time.RFC3339)
			}
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", run.ID, run.CreatedBy, run.StartedAt.Format(time.RFC3339), state)
		}
		w.Flush()
	}

	if len(o.Features) > 0 {
		b.WriteString("features:\n")
		for _, f := range o.Features {
			fmt.Fprintf(&b, "  %s = %s\n", f.Name, strings.Join(f.Values, ", "))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

type describeOptions struct {
	*RootOptions
	ref refFlags
}

// NewDescribeCommand creates the describe command.
func NewDescribeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &describeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "describe [url]",
		Short: "Show a record with its versions, runs and features",
		Long: `Show a record together with every version of its family, its runs
and its features.

Examples:
  stemtrack describe --key analysis.py
  stemtrack describe --uid abcd1234efgh --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDescribe(opts, args, cmd)
		},
	}
	opts.ref.bind(cmd)
	return cmd
}

func runDescribe(opts *describeOptions, args []string, cmd *cobra.Command) error {
	ref, err := opts.ref.ref(args, opts.cfg.Instance)
	if err != nil {
		return err
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	desc, err := opts.tracker(cmd, st).Describe(context.Background(), ref)
	if err != nil {
		return fail("failed to describe "+ref.String(), err)
	}
	return opts.formatter(cmd).Success(DescribeOutput{
		Description: desc,
		URL:         opts.cfg.InstanceURL(string(desc.Record.Registry), string(desc.Record.UID)),
	})
}
