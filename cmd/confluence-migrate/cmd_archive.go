/*
Copyright © 2024 paul <paul@denknerd.org>
*/

package main

import (
	"context"
	"fmt"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/toothbrush/confluence-migrate/archive"
	"github.com/toothbrush/confluence-migrate/confluence"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Look at the Markdown copies kept with --archive-dir",
}

var archiveListCmd = &cobra.Command{
	Use:   "list SPACEKEY",
	Short: "List the archived pages of a space",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openArchive(cmd.Context())
		if err != nil {
			return err
		}
		entries, err := a.Entries(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("%s/%s: %d pages\n", a.Domain, args[0], len(entries))
		for _, e := range entries {
			if e.Header.DestinationID != "" {
				fmt.Printf("  - %s -> %s: %s\n", e.Header.ObjectID, e.Header.DestinationID, e.RelativePath)
				continue
			}
			fmt.Printf("  - %s: %s\n", e.Header.ObjectID, e.RelativePath)
		}
		return nil
	},
}

var archivePruneCmd = &cobra.Command{
	Use:   "prune SPACEKEY",
	Short: "Remove copies left behind by renamed pages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openArchive(cmd.Context())
		if err != nil {
			return err
		}
		removed, err := a.Prune(args[0])
		for _, r := range removed {
			fmt.Printf("  - removed %s\n", r)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Pruned %d files.\n", len(removed))
		return nil
	},
}

// openArchive opens --archive-dir for the source site, taken from --source-domain or the saved
// credentials.
func openArchive(ctx context.Context) (*archive.Archive, error) {
	if ArchiveDir == "" {
		return nil, fmt.Errorf("cmd: no archive directory set.  Use --archive-dir or set it in your config file")
	}
	dir, err := homedir.Expand(ArchiveDir)
	if err != nil {
		return nil, fmt.Errorf("cmd: couldn't expand homedir: %w", err)
	}

	domain := confluence.CleanDomain(SourceDomain)
	if domain == "" {
		s, err := openSession()
		if err != nil {
			return nil, err
		}
		defer s.Close()
		if domain, err = s.sourceDomain(ctx); err != nil {
			return nil, err
		}
	}
	return archive.New(dir, domain)
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archivePruneCmd)
}
