package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/stemtrack/internal/record"
	"github.com/roach88/stemtrack/internal/runfile"
)

// TrackOutput is the result of track.
type TrackOutput struct {
	Record  record.Record `json:"record"`
	RunID   string        `json:"run"`
	RunFile string        `json:"run_file"`
}

func (o TrackOutput) String() string {
	return fmt.Sprintf("tracking %s %s (version %s) in run %s", o.Record.Key, o.Record.UID, o.Record.VersionLabel, o.RunID)
}

// NewTrackCommand creates the track command.
func NewTrackCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track <script.sh>",
		Short: "Save a shell script and start a run",
		Long: `Save a shell script as a transform and start a run for it.

Shell scripts cannot embed their uid, so the run id is kept in the cache
directory until "stemtrack finish" closes the run.

Example:
  stemtrack track pipeline.sh && ./pipeline.sh && stemtrack finish`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrack(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runTrack(opts *RootOptions, path string, cmd *cobra.Command) error {
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	res, err := opts.tracker(cmd, st).TrackShell(context.Background(), path)
	if err != nil {
		return fail("failed to track "+path, err)
	}
	rf := runfile.In(opts.cfg.CacheDir)
	if err := rf.Write(res.Run.ID); err != nil {
		return WrapExitError(ExitCommandError, "failed to remember run", err)
	}
	return opts.formatter(cmd).Success(TrackOutput{Record: res.Record, RunID: res.Run.ID, RunFile: rf.Path})
}

// FinishOutput is the result of finish.
type FinishOutput struct {
	Run record.Run `json:"run"`
}

func (o FinishOutput) String() string {
	s := fmt.Sprintf("finished run %s of %s", o.Run.ID, o.Run.TransformUID)
	if o.Run.EnvironmentUID != "" {
		s += fmt.Sprintf("\nenvironment %s", o.Run.EnvironmentUID)
	}
	return s
}

// NewFinishCommand creates the finish command.
func NewFinishCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "finish",
		Short: "Finish the run started by track",
		Long: `Mark the run started by "stemtrack track" as finished.

The captured environment (run_env_pip_<run>.txt in the cache directory)
is attached when present.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFinish(rootOpts, cmd)
		},
	}
	return cmd
}

func runFinish(opts *RootOptions, cmd *cobra.Command) error {
	rf := runfile.In(opts.cfg.CacheDir)
	runID, err := rf.Read()
	if err != nil {
		return WrapExitError(ExitFailure, "nothing to finish", err)
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := opts.tracker(cmd, st).Finish(context.Background(), runID)
	if err != nil {
		return fail("failed to finish run "+runID, err)
	}
	if err := rf.Remove(); err != nil {
		return WrapExitError(ExitCommandError, "failed to forget run", err)
	}
	return opts.formatter(cmd).Success(FinishOutput{Run: run})
}
