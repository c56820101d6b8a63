package main

import (
	"fmt"

	"github.com/juju/loggo"
)

// configureLogging routes the packages' loggo output to stderr: warnings always, everything
// with --debug.
func configureLogging(debug bool) error {
	levels := "<root>=WARNING"
	if debug {
		levels = "<root>=DEBUG"
	}
	if err := loggo.ConfigureLoggers(levels); err != nil {
		return fmt.Errorf("confluence-migrate: couldn't configure logging: %w", err)
	}
	return nil
}

var logger = loggo.GetLogger("confluence-migrate.cmd")
