package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/stemtrack/internal/locator"
	"github.com/roach88/stemtrack/internal/record"
)

// refFlags are the ways to name an existing record: a canonical URL as
// the argument, or --uid / --key with --registry.
type refFlags struct {
	registry string
	uid      string
	key      string
}

func (r *refFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.registry, "registry", string(record.Transform), "registry to search (transform|artifact|collection)")
	cmd.Flags().StringVar(&r.uid, "uid", "", "uid or uid prefix")
	cmd.Flags().StringVar(&r.key, "key", "", "key, the newest match wins")
}

// ref builds the reference from the optional URL argument and the flags.
func (r *refFlags) ref(args []string, instance string) (locator.Ref, error) {
	if len(args) == 1 {
		if r.uid != "" || r.key != "" {
			return locator.Ref{}, NewExitError(ExitCommandError, "pass either a URL or --uid/--key, not both")
		}
		if !locator.IsURL(args[0]) {
			return locator.Ref{}, NewExitError(ExitCommandError,
				fmt.Sprintf("%q is not a URL; use --uid or --key to name a record", args[0]))
		}
		ref, err := locator.ParseURL(args[0])
		if err != nil {
			return locator.Ref{}, fail("failed to parse URL", err)
		}
		if ref.Instance != "" && instance != "" && ref.Instance != instance {
			return locator.Ref{}, NewExitError(ExitCommandError,
				fmt.Sprintf("URL belongs to instance %s but %s is configured", ref.Instance, instance))
		}
		return ref, nil
	}

	reg := record.Registry(r.registry)
	if !reg.Valid() {
		return locator.Ref{}, NewExitError(ExitCommandError, fmt.Sprintf("unknown registry %q", r.registry))
	}
	switch {
	case r.uid != "" && r.key != "":
		return locator.Ref{}, NewExitError(ExitCommandError, "pass --uid or --key, not both")
	case r.uid != "":
		return locator.Ref{Registry: reg, UIDPrefix: r.uid}, nil
	case r.key != "":
		return locator.Ref{Registry: reg, Key: r.key}, nil
	}
	return locator.Ref{}, NewExitError(ExitCommandError, "pass a URL, --uid or --key")
}
