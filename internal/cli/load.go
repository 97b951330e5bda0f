package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/stemtrack/internal/record"
	"github.com/roach88/stemtrack/internal/track"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	ref     refFlags
	Dir     string
	WithEnv bool
}

// LoadOutput is the result of load.
type LoadOutput struct {
	Record      record.Record `json:"record"`
	Path        string        `json:"path"`
	NextUID     string        `json:"next_uid,omitempty"`
	Environment string        `json:"environment,omitempty"`
}

func (o LoadOutput) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "loaded %s %s to %s", o.Record.Registry, o.Record.UID, o.Path)
	if o.NextUID != "" {
		fmt.Fprintf(&b, "\nthe next save creates %s", o.NextUID)
	}
	if o.Environment != "" {
		fmt.Fprintf(&b, "\nenvironment written to %s", o.Environment)
	}
	return b.String()
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load [url]",
		Short: "Write a stored version into the working tree",
		Long: `Write the stored content of a record to <dir>/<key>.

A notebook that embeds its uid is written with the uid of its next
version, so saving it after editing continues the family.

Examples:
  stemtrack load --key analysis.py
  stemtrack load --uid abcd1234efgh --with-env
  stemtrack load https://lamin.ai/acc/inst/transform/abcd1234efgh0000`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(opts, args, cmd)
		},
	}

	opts.ref.bind(cmd)
	cmd.Flags().StringVar(&opts.Dir, "dir", ".", "directory to write into")
	cmd.Flags().BoolVar(&opts.WithEnv, "with-env", false, "also write the environment of the latest run")

	return cmd
}

func runLoad(opts *LoadOptions, args []string, cmd *cobra.Command) error {
	ref, err := opts.ref.ref(args, opts.cfg.Instance)
	if err != nil {
		return err
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	loaded, err := opts.tracker(cmd, st).Load(context.Background(), track.LoadRequest{
		Ref:     ref,
		Dir:     opts.Dir,
		WithEnv: opts.WithEnv,
	})
	if err != nil {
		return fail("failed to load "+ref.String(), err)
	}
	return opts.formatter(cmd).Success(LoadOutput{
		Record:      loaded.Record,
		Path:        loaded.Path,
		NextUID:     string(loaded.NextUID),
		Environment: loaded.Environment,
	})
}
