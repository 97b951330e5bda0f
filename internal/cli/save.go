package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/stemtrack/internal/record"
	"github.com/roach88/stemtrack/internal/resolver"
	"github.com/roach88/stemtrack/internal/track"
)

// SaveOptions holds flags for the save command.
type SaveOptions struct {
	*RootOptions
	Stem        string
	CreateStem  bool
	Description string
	Key         string
	Registry    string
}

// SaveOutput is the result of a save.
type SaveOutput struct {
	Outcome      resolver.Outcome `json:"outcome"`
	Record       record.Record    `json:"record"`
	URL          string           `json:"url,omitempty"`
	Run          *record.Run      `json:"run,omitempty"`
	Report       *record.Record   `json:"report,omitempty"`
	ReportAction string           `json:"report_action,omitempty"`
	Environment  *record.Record   `json:"environment,omitempty"`
}

func (o SaveOutput) String() string {
	var b strings.Builder
	if o.Outcome == resolver.ReuseExisting {
		fmt.Fprintf(&b, "mapped %q on %s %s (version %s)", o.Record.Key, o.Record.Registry, o.Record.UID, o.Record.VersionLabel)
	} else {
		fmt.Fprintf(&b, "created %s %s (key %q, version %s)", o.Record.Registry, o.Record.UID, o.Record.Key, o.Record.VersionLabel)
		if o.Record.Revises != "" {
			fmt.Fprintf(&b, ", revises %s", o.Record.Revises)
		}
	}
	if o.URL != "" {
		fmt.Fprintf(&b, "\n  %s", o.URL)
	}
	if o.Run != nil {
		fmt.Fprintf(&b, "\nrun %s", o.Run.ID)
	}
	if o.Report != nil {
		fmt.Fprintf(&b, "\nreport %s (%s)", o.Report.UID, o.ReportAction)
	}
	if o.Environment != nil {
		fmt.Fprintf(&b, "\nenvironment %s", o.Environment.UID)
	}
	return b.String()
}

func newSaveOutput(opts *RootOptions, res *track.Result) SaveOutput {
	out := SaveOutput{
		Outcome:     res.Decision.Outcome,
		Record:      res.Record,
		URL:         opts.cfg.InstanceURL(string(res.Record.Registry), string(res.Record.UID)),
		Run:         res.Run,
		Report:      res.Report,
		Environment: res.Environment,
	}
	if res.Report != nil {
		out.ReportAction = res.ReportAction.String()
	}
	return out
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SaveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "save <path>",
		Short: "Save a script, notebook or data file as a version",
		Long: `Save a file as a version of a transform or an artifact.

Scripts and notebooks (.py, .ipynb, .R, .Rmd, .qmd, .sh) are saved as
transforms. Their identity comes from the uid or stem in the tracking
call, from --stem, or from the key. Notebooks also get their rendered
report and environment attached to your latest run.

Any other file is saved as an artifact and needs --key or --description.

Examples:
  stemtrack save analysis.py
  stemtrack save explore.ipynb --description "First look"
  stemtrack save cells.csv --key data/cells.csv
  stemtrack save cells.csv --stem abcd1234efgh`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Stem, "stem", "", "version family to continue")
	cmd.Flags().BoolVar(&opts.CreateStem, "create", false, "start the --stem family if it has no versions")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description of the record")
	cmd.Flags().StringVar(&opts.Key, "key", "", "key of an artifact (default: none)")
	cmd.Flags().StringVar(&opts.Registry, "registry", "", "force transform or artifact (default: by file suffix)")

	return cmd
}

func runSave(opts *SaveOptions, path string, cmd *cobra.Command) error {
	ctx := context.Background()

	registry, err := registryFor(opts.Registry, path)
	if err != nil {
		return err
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	tr := opts.tracker(cmd, st)

	var res *track.Result
	if registry == record.Artifact {
		res, err = tr.SaveArtifact(ctx, track.ArtifactRequest{
			Path:        path,
			Key:         opts.Key,
			Description: opts.Description,
			Stem:        opts.Stem,
			CreateStem:  opts.CreateStem,
		})
	} else {
		if opts.Key != "" {
			return NewExitError(ExitCommandError, "--key applies to artifacts; transform keys are derived from the path")
		}
		res, err = tr.SaveTransform(ctx, track.SaveRequest{
			Path:        path,
			Stem:        opts.Stem,
			CreateStem:  opts.CreateStem,
			Description: opts.Description,
		})
	}
	if err != nil {
		return fail("failed to save "+path, err)
	}
	return opts.formatter(cmd).Success(newSaveOutput(opts.RootOptions, res))
}

func registryFor(flag, path string) (record.Registry, error) {
	switch record.Registry(flag) {
	case "":
		if track.IsArtifactPath(path) {
			return record.Artifact, nil
		}
		return record.Transform, nil
	case record.Transform:
		if track.IsArtifactPath(path) {
			return "", NewExitError(ExitCommandError,
				fmt.Sprintf("%s cannot be saved as a transform; supported suffixes are .py .ipynb .R .Rmd .qmd .sh", path))
		}
		return record.Transform, nil
	case record.Artifact:
		return record.Artifact, nil
	}
	return "", NewExitError(ExitCommandError, fmt.Sprintf("invalid registry %q: must be transform or artifact", flag))
}

// PlanOutput is the result of a dry-run resolution.
type PlanOutput struct {
	Outcome      resolver.Outcome `json:"outcome"`
	UID          string           `json:"uid"`
	Version      string           `json:"version,omitempty"`
	Revises      string           `json:"revises,omitempty"`
	AttachSource bool             `json:"attach_source"`
	UpdateKey    bool             `json:"update_key"`
}

func (o PlanOutput) String() string {
	s := fmt.Sprintf("%s %s", o.Outcome, o.UID)
	if o.Version != "" {
		s += " version " + o.Version
	}
	if o.Revises != "" {
		s += " revises " + o.Revises
	}
	return s
}

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Stem       string
	CreateStem bool
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <path>",
		Short: "Show what saving a file would do",
		Long: `Resolve the identity of a script or notebook without writing anything.

Prints whether saving would reuse an existing version, create a version
in a known family, or start a new family.

Example:
  stemtrack resolve analysis.py --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Stem, "stem", "", "version family to continue")
	cmd.Flags().BoolVar(&opts.CreateStem, "create", false, "start the --stem family if it has no versions")

	return cmd
}

func runResolve(opts *ResolveOptions, path string, cmd *cobra.Command) error {
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	d, err := opts.tracker(cmd, st).Plan(context.Background(), track.SaveRequest{
		Path:       path,
		Stem:       opts.Stem,
		CreateStem: opts.CreateStem,
	})
	if err != nil {
		return fail("failed to resolve "+path, err)
	}
	return opts.formatter(cmd).Success(PlanOutput{
		Outcome:      d.Outcome,
		UID:          string(d.UID),
		Version:      d.Label,
		Revises:      string(d.Revises),
		AttachSource: d.AttachSource,
		UpdateKey:    d.UpdateKey,
	})
}
