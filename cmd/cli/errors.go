package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/malivvan/pcscctl/config"
	"github.com/malivvan/pcscctl/runner"
	"github.com/spf13/cobra"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitDevice      = 1
	ExitConfig      = 2
	ExitUsage       = 3
	ExitInterrupted = 130
)

var ErrUsage = errors.New("usage")

func usageErr(err error) error {
	if err == nil || errors.Is(err, ErrUsage) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUsage, err)
}

// usageArgs marks argument validation failures as usage errors.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return usageErr(fn(cmd, args))
	}
}

// ExitCode classifies err for the process exit status. A forced pass with
// failures returns no error and exits 0.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, ErrUsage):
		return ExitUsage
	case errors.Is(err, config.ErrConfigParse),
		errors.Is(err, config.ErrUnknownCommand),
		errors.Is(err, runner.ErrMissingWriteData):
		return ExitConfig
	default:
		return ExitDevice
	}
}
