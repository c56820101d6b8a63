/*
Copyright © 2024 paul <paul@denknerd.org>
*/

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var configUsage = strings.TrimSpace(`
Commands in this namespace are to help you configure the app.  Find out what the current config is,
or learn where it's being read from.
`)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Commands to work with the app config",
	Long:  configUsage,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Output current config",
	Long: `
Is something not working for you?  Have a look whether your config is as you expect.
`,
	Args: cobra.ExactArgs(0),
	Run: func(cmd *cobra.Command, args []string) {
		// Only persistent flags are visible here.
		fmt.Printf("Dump current config state:\n\n")

		fmt.Printf("  Config file: %s\n", Config)
		fmt.Printf("  Debug: %v\n", Debug)
		fmt.Println()
		fmt.Printf("  Parsed YAML:\n%#v\n", ParsedConfig)
		fmt.Println()
		fmt.Printf("  StateDB: %s\n", StateDB)
		fmt.Printf("  ArchiveDir: %s\n", ArchiveDir)
		fmt.Printf("  WithVCR: %v\n", WithVCR)
		fmt.Printf("  SourceDomain: %s\n", SourceDomain)
		fmt.Printf("  SourceUsername: %s\n", SourceUsername)
		fmt.Printf("  SourceTokenCmd: %v\n", SourceTokenCmd)
		fmt.Printf("  DestDomain: %s\n", DestDomain)
		fmt.Printf("  DestUsername: %s\n", DestUsername)
		fmt.Printf("  DestTokenCmd: %v\n", DestTokenCmd)
	},
}

var configWhichCmd = &cobra.Command{
	Use:   "which",
	Short: "Tell me the resolved config path",
	Long: `
Output the filename that's being used to store your config.  Empty when no config file was found.
`,
	Args: cobra.ExactArgs(0),
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Config path: %s\n", ConfigActual)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configWhichCmd)
}
