// Package cli implements the crudkit command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/crudkit/internal/store"
	"github.com/mesh-intelligence/crudkit/pkg/crudkit"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values for one command tree.
type rootFlags struct {
	configDir string
	dataDir   string
	logLevel  string
}

// NewRootCmd creates the "crudkit" command with its subcommands.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:     "crudkit",
		Short:   "Generic CRUD over configured entity types",
		Long:    "crudkit stores records of the entity types declared in config.yaml and\nserves list, count, create, get, update, patch and delete over HTTP and the CLI.",
		Version: crudkit.Version,

		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usagef("%v", err)
	})

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: $CRUDKIT_CONFIG_DIR or the platform config dir)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "SQLite data directory (default: data_dir from config.yaml, $CRUDKIT_DATA_DIR or the platform data dir)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(flags))
	root.AddCommand(newServeCmd(flags))
	root.AddCommand(newTypesCmd(flags))
	root.AddCommand(newListCmd(flags))
	root.AddCommand(newCountCmd(flags))
	root.AddCommand(newCreateCmd(flags))
	root.AddCommand(newGetCmd(flags))
	root.AddCommand(newUpdateCmd(flags))
	root.AddCommand(newPatchCmd(flags))
	root.AddCommand(newDeleteCmd(flags))

	return root
}

// Execute runs the root command and exits with the matching code.
func Execute() {
	os.Exit(run(NewRootCmd(), os.Args[1:], os.Stderr))
}

// run executes root with args and returns the process exit code.
func run(root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintln(stderr, "crudkit:", err)
	return exitCode(err)
}

// exitCode classifies err: mistakes in the request are user errors, the rest
// are system errors.
func exitCode(err error) int {
	var ue *usageError
	switch {
	case errors.As(err, &ue),
		errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrEntityTypeNotFound),
		errors.Is(err, types.ErrInvalidData),
		errors.Is(err, types.ErrInvalidID),
		types.IsSpecError(err),
		store.IsConstraintViolation(err):
		return exitUserError
	}
	return exitSysError
}

// usageError marks a malformed command line.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// exactArgs is cobra.ExactArgs reporting a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usagef("%s: accepts %d arg(s), received %d", cmd.CommandPath(), n, len(args))
		}
		return nil
	}
}
