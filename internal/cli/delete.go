package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/stemtrack/internal/locator"
	"github.com/roach88/stemtrack/internal/record"
)

type deleteOptions struct {
	*RootOptions
	ref refFlags
}

// DeleteOutput is the result of delete.
type DeleteOutput struct {
	Record record.Record `json:"record"`
}

func (o DeleteOutput) String() string {
	return fmt.Sprintf("deleted %s %s (version %s)", o.Record.Registry, o.Record.UID, o.Record.VersionLabel)
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &deleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete [url]",
		Short: "Delete a version",
		Long: `Delete one version together with its runs and features.

Only the latest version of a family can be deleted; delete later versions
first.

Example:
  stemtrack delete --uid abcd1234efgh0001`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(opts, args, cmd)
		},
	}
	opts.ref.bind(cmd)
	return cmd
}

func runDelete(opts *deleteOptions, args []string, cmd *cobra.Command) error {
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
	if err := st.Delete(ctx, rec.UID); err != nil {
		return fail("failed to delete "+string(rec.UID), err)
	}
	opts.logger.Info("deleted", "uid", rec.UID)
	return opts.formatter(cmd).Success(DeleteOutput{Record: rec})
}
