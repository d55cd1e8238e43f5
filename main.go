package main

import (
	"os"

	"github.com/malivvan/pcscctl/cmd/cli"
	"github.com/malivvan/pcscctl/internal/logging"
)

var version = "dev"

func main() {
	err := cli.New(version).Execute()
	code := cli.ExitCode(err)
	switch code {
	case cli.ExitOK:
	case cli.ExitInterrupted:
		logging.Warnf("interrupted")
	case cli.ExitUsage:
		logging.Errorf("%s (see --help)", err)
	default:
		logging.Errorf("%s", err)
	}
	os.Exit(code)
}
