package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/petal-labs/taskgate/cli"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	root := cli.NewRootCmd(version)
	root.SetVersionTemplate(fmt.Sprintf("taskgate version %s\n", version))

	if err := root.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
