package cli

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/stemtrack/internal/config"
	"github.com/roach88/stemtrack/internal/report"
	"github.com/roach88/stemtrack/internal/resolver"
	"github.com/roach88/stemtrack/internal/store"
	"github.com/roach88/stemtrack/internal/track"
	"github.com/roach88/stemtrack/internal/uid"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Home     string
	Database string
	User     string
	Yes      bool
	NoInput  bool

	// Stdin answers consent prompts. If nil, prompts are only shown when
	// os.Stdin is a terminal.
	Stdin io.Reader

	// Generators and renderer, overridable for testing. Nil values get the
	// production defaults.
	Stems    uid.StemGenerator
	RunIDs   track.IDGenerator
	Renderer report.Renderer

	cfg    *config.Config
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the stemtrack CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stemtrack",
		Short: "stemtrack - versioned scripts, notebooks and data files",
		Long: `Track scripts, notebooks and data files as content-addressed versions.

Every saved file gets a 16-character uid: a 12-character stem naming its
version family and a 4-character suffix naming the version. Saving the
same content again reuses the existing version; saving changed content
creates the next one.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.Home, "home", "", "settings directory (default $STEMTRACK_HOME or ~/.stemtrack)")
	flags.StringVar(&opts.Database, "db", "", "path to SQLite database (default from settings)")
	flags.StringVar(&opts.User, "user", "", "user owning created records (default from settings)")
	flags.BoolVarP(&opts.Yes, "yes", "y", false, "confirm every prompt")
	flags.BoolVar(&opts.NoInput, "no-input", false, "decline every prompt except version bumps")

	cmd.AddCommand(NewSaveCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewTrackCommand(opts))
	cmd.AddCommand(NewFinishCommand(opts))
	cmd.AddCommand(NewLoadCommand(opts))
	cmd.AddCommand(NewDescribeCommand(opts))
	cmd.AddCommand(NewAnnotateCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))

	return cmd
}

// Execute runs the CLI with args and returns the process exit code.
// Errors are written to stderr, or to stdout as a JSON response when
// --format json is set.
func Execute(args []string, stdout, stderr io.Writer) int {
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}
	f := &OutputFormatter{Format: opts.Format, Writer: stderr, Verbose: opts.Verbose}
	if opts.Format == "json" {
		f.Writer = stdout
	}
	_ = f.Fail(err)
	return GetExitCode(err)
}

// setup validates global flags, installs the logger and loads settings.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}
	if o.Yes && o.NoInput {
		return NewExitError(ExitCommandError, "--yes and --no-input cannot be combined")
	}

	logLevel := slog.LevelInfo
	if o.Verbose {
		logLevel = slog.LevelDebug
	}
	o.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(o.logger)

	cfg, err := config.Load(o.Home)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load settings", err)
	}
	if o.Database != "" {
		cfg.DB = o.Database
	}
	if o.User != "" {
		cfg.User = o.User
	}
	o.cfg = cfg
	o.logger.Debug("settings loaded", "home", cfg.Home, "db", cfg.DB, "user", cfg.User, "consent", cfg.Consent)
	return nil
}

// openStore opens the configured database, creating it if needed.
func (o *RootOptions) openStore() (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(o.cfg.DB), 0o755); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	st, err := store.Open(o.cfg.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func (o *RootOptions) tracker(cmd *cobra.Command, st *store.Store) *track.Tracker {
	return track.New(st, track.Options{
		User:     o.cfg.User,
		DevDir:   o.cfg.DevDir,
		CacheDir: o.cfg.CacheDir,
		Consent:  o.consent(cmd),
		Stems:    o.Stems,
		RunIDs:   o.RunIDs,
		Renderer: o.Renderer,
		Logger:   o.logger,
	})
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// consent picks the policy: flags first, then settings.
func (o *RootOptions) consent(cmd *cobra.Command) resolver.ConsentPolicy {
	switch {
	case o.Yes:
		return resolver.Always
	case o.NoInput:
		return resolver.Never
	}
	return o.cfg.Policy(o.prompter(cmd))
}

// prompter returns a function asking prompts on stdin, or nil when there
// is nobody to ask.
func (o *RootOptions) prompter(cmd *cobra.Command) func(resolver.Prompt) bool {
	in := o.Stdin
	if in == nil {
		if !isTerminal(os.Stdin) {
			return nil
		}
		in = os.Stdin
	}
	r := bufio.NewReader(in)
	out := cmd.ErrOrStderr()
	return func(p resolver.Prompt) bool {
		fmt.Fprintf(out, "%s [y/N]: ", p)
		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(out)
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	}
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
