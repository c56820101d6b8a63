/*
Copyright © 2024 paul <paul@denknerd.org>
*/

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Commands to list items",
	Long: `
Commands in this namespace are to help you explore the source wiki.
`,
}

var listSpacesUsage = strings.TrimSpace(`
If you want to find out which spaces the source site has, use this command.  Global, personal and
v2-only spaces are all listed once.
`)

var listSpacesCmd = &cobra.Command{
	Use:   "spaces",
	Short: "Print list of source spaces",
	Long:  listSpacesUsage,
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		spaces, err := s.svc.ListSpaces(cmd.Context())
		if err != nil {
			return fmt.Errorf("cmd: couldn't list source spaces: %w", err)
		}
		logger.Infof("found %d spaces", len(spaces))

		fmt.Printf("spaces:\n")
		for _, space := range spaces {
			if space.Type == "personal" {
				fmt.Printf("  - %s: %s (personal)\n", space.Key, space.Name)
				continue
			}
			fmt.Printf("  - %s: %s\n", space.Key, space.Name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.AddCommand(listSpacesCmd)
}
