/*
Copyright © 2024 paul <paul@denknerd.org>
*/

package main

import (
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE:  versionRun,
	Args:  cobra.ExactArgs(0),
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

var (
	// Version is the module version when installed with "go install url/tool@version", otherwise
	// "(devel)".
	Version = "unknown"
	// Revision is taken from the vcs.revision build setting.
	Revision = "unknown"
	// LastCommit is taken from the vcs.time build setting.
	LastCommit time.Time
	// DirtyBuild is taken from the vcs.modified build setting.
	DirtyBuild = true
)

func versionRun(cmd *cobra.Command, args []string) error {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return fmt.Errorf("cmd: could not read build info")
	}
	fmt.Println(shortVersion(info))
	return nil
}

func shortVersion(info *debug.BuildInfo) string {
	if v := info.Main.Version; v != "" {
		Version = v
	}
	for _, kv := range info.Settings {
		switch kv.Key {
		case "vcs.revision":
			Revision = kv.Value
		case "vcs.time":
			LastCommit, _ = time.Parse(time.RFC3339, kv.Value)
		case "vcs.modified":
			DirtyBuild = kv.Value == "true"
		}
	}

	parts := make([]string, 0, 4)
	if Version != "unknown" && Version != "(devel)" {
		parts = append(parts, Version)
	}
	if Revision != "unknown" && Revision != "" {
		parts = append(parts, "rev", Revision)
		if DirtyBuild {
			parts = append(parts, "dirty")
		}
	}
	short := "devel"
	if len(parts) > 0 {
		short = strings.Join(parts, "-")
	}
	return "confluence-migrate version " + short
}
