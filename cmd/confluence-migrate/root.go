/*
Copyright © 2024 paul <paul@denknerd.org>
*/

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/fatih/structs"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/toothbrush/confluence-migrate/internal/termfmt"
)

const defaultConfig = "~/.config/confluence-migrate.yaml"

var (
	// Store the result of binding cobra flags
	Config       string
	ConfigActual string
	Debug        bool

	StateDB    string
	WithVCR    bool
	ArchiveDir string

	SourceDomain   string
	SourceUsername string
	SourceTokenCmd []string

	DestDomain   string
	DestUsername string
	DestTokenCmd []string

	ParsedConfig YamlConfig
)

// Build the cobra command that handles our command line tool.
var rootCmd = &cobra.Command{
	Use:   "confluence-migrate",
	Short: "Copy a Confluence space from one site to another",
	Long: `
Moving a space between two Confluence Cloud sites?  This tool recreates a space's whole tree on the
destination site, pages, folders, databases, whiteboards and embeds, along with attachments,
comments, labels and emoji, a few items at a time so that a migration can be stopped and resumed.
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loadDotEnv()

		if err := initializeConfig(cmd); err != nil {
			return fmt.Errorf("confluence-migrate: failed to initialise config: %w", err)
		}
		if err := configureLogging(Debug); err != nil {
			return err
		}

		termfmt.SetEnabled(isatty.IsTerminal(os.Stdout.Fd()) && os.Getenv("NO_COLOR") == "")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&Config, "config", "", "config file location (default: "+defaultConfig+", respects CONFLUENCE_MIGRATE_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "display debug output")
	rootCmd.PersistentFlags().StringVar(&StateDB, "state-db", "~/.local/share/confluence-migrate/state.db", "SQLite file holding credentials and migration state")
	rootCmd.PersistentFlags().BoolVar(&WithVCR, "with-vcr", false, "use go-vcr to record and replay API responses")
	rootCmd.PersistentFlags().StringVar(&ArchiveDir, "archive-dir", "", "also write every migrated page as Markdown below this directory")

	rootCmd.PersistentFlags().StringVar(&SourceDomain, "source-domain", "", "source site, e.g. ORG.atlassian.net")
	rootCmd.PersistentFlags().StringVar(&SourceUsername, "source-username", "", "your Atlassian email on the source site")
	rootCmd.PersistentFlags().StringSliceVar(&SourceTokenCmd, "source-token-cmd", []string{}, "shell command to retrieve the source site's API token")
	rootCmd.PersistentFlags().StringVar(&DestDomain, "dest-domain", "", "destination site, e.g. NEWORG.atlassian.net")
	rootCmd.PersistentFlags().StringVar(&DestUsername, "dest-username", "", "your Atlassian email on the destination site")
	rootCmd.PersistentFlags().StringSliceVar(&DestTokenCmd, "dest-token-cmd", []string{}, "shell command to retrieve the destination site's API token")
}

// loadDotEnv reads the nearest .env.local, looking in the working directory and its parents.
// Variables already set in the environment win.
func loadDotEnv() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for {
		path := filepath.Join(dir, ".env.local")
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

func initializeConfig(cmd *cobra.Command) error {
	explicit := true
	if Config == "" {
		// Did the user provide an ENV?
		if envConfig := os.Getenv("CONFLUENCE_MIGRATE_CONFIG"); envConfig != "" {
			Config = envConfig
		} else {
			Config = defaultConfig
			explicit = false
		}
	}
	config, err := homedir.Expand(Config)
	if err != nil {
		return fmt.Errorf("confluence-migrate: unable to expand homedir: %w", err)
	}
	Config = config

	yamlFile, err := os.ReadFile(Config)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		// flags and environment are enough to get going
		ConfigActual = ""
		return nil
	}
	if err != nil {
		return fmt.Errorf("confluence-migrate: error reading config file: %w", err)
	}
	ConfigActual = Config

	// I'd like to bark if a user sets a flag we don't recognise:
	if err := yaml.UnmarshalStrict(yamlFile, &ParsedConfig); err != nil {
		return fmt.Errorf("confluence-migrate: issue parsing config file: %w", err)
	}

	if err := bindFlags(cmd, ParsedConfig); err != nil {
		return fmt.Errorf("confluence-migrate: failed to bind flags: %w", err)
	}
	return nil
}

type YamlConfig struct {
	WithVCR  *bool `yaml:"with-vcr"`
	Finalize *bool `yaml:"finalize"`

	StateDB    string `yaml:"state-db"`
	ArchiveDir string `yaml:"archive-dir"`
	BatchSize  int    `yaml:"batch-size"`
	Delay      string `yaml:"delay"`

	SourceDomain   string   `yaml:"source-domain"`
	SourceUsername string   `yaml:"source-username"`
	SourceTokenCmd []string `yaml:"source-token-cmd"`

	DestDomain   string   `yaml:"dest-domain"`
	DestUsername string   `yaml:"dest-username"`
	DestTokenCmd []string `yaml:"dest-token-cmd"`
}

// Bind each config value to its cobra flag, unless the flag was given on the command line.
func bindFlags(cmd *cobra.Command, v YamlConfig) error {
	for _, field := range structs.Fields(v) {
		key := field.Tag("yaml")
		if key == "" {
			return fmt.Errorf("confluence-migrate: could not retrieve struct tag 'yaml'")
		}
		if flag := cmd.Flag(key); flag == nil {
			// Legitimate: `creds show` has no --batch-size, but the config may set one.
			continue
		}
		if cmd.Flags().Changed(key) {
			continue
		}

		var err error
		switch field.Kind() {
		case reflect.Ptr:
			// YamlConfig only uses pointers for bools.
			b, ok := field.Value().(*bool)
			if !ok {
				return fmt.Errorf("confluence-migrate: found unrecognised field: %+v", field.Name())
			}
			if b != nil {
				err = cmd.Flags().Set(key, fmt.Sprintf("%v", *b))
			}

		case reflect.String:
			if s := field.Value().(string); s != "" {
				err = cmd.Flags().Set(key, s)
			}

		case reflect.Int:
			if n := field.Value().(int); n != 0 {
				err = cmd.Flags().Set(key, fmt.Sprintf("%d", n))
			}

		case reflect.Slice:
			ss, ok := field.Value().([]string)
			if !ok {
				return fmt.Errorf("confluence-migrate: found unrecognised field: %+v", field.Name())
			}
			for _, s := range ss {
				// repeatedly calling Set() appends to the slice
				if err = cmd.Flags().Set(key, s); err != nil {
					break
				}
			}

		default:
			return fmt.Errorf("confluence-migrate: found unrecognised field: %+v", field.Name())
		}
		if err != nil {
			return fmt.Errorf("confluence-migrate: bad value for %s in %s: %w", key, ConfigActual, err)
		}
	}

	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("confluence-migrate: execution error: %w", err)
	}
	return nil
}
