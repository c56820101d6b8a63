/*
Copyright © 2024 paul <paul@denknerd.org>
*/

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/toothbrush/confluence-migrate/credentials"
	"github.com/toothbrush/confluence-migrate/internal/termfmt"
)

var credsCmd = &cobra.Command{
	Use:   "creds",
	Short: "Manage the credentials for both sites",
	Long: strings.TrimSpace(`
Credentials are kept in the state database, one set for the source site and one for the
destination.  Save them once, after which every other command uses them.
`),
}

var credsSaveCmd = &cobra.Command{
	Use:       "save source|dest",
	Short:     "Save a site's domain, username and API token",
	Long:      "Reads domain and username from --source-*/--dest-* and the token from the matching token command or environment variable.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(credentials.Source), string(credentials.Destination)},
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := credentials.ParseRole(args[0])
		if err != nil {
			return err
		}
		domain, username, tokenCmd, envVar := SourceDomain, SourceUsername, SourceTokenCmd, "CONFLUENCE_MIGRATE_SOURCE_TOKEN"
		if role == credentials.Destination {
			domain, username, tokenCmd, envVar = DestDomain, DestUsername, DestTokenCmd, "CONFLUENCE_MIGRATE_DEST_TOKEN"
		}
		token, err := resolveToken(tokenCmd, envVar)
		if err != nil {
			return err
		}

		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.svc.SaveCredentials(cmd.Context(), role, domain, username, token); err != nil {
			return fmt.Errorf("cmd: couldn't save %s credentials: %w", role, err)
		}
		fmt.Printf("Saved %s credentials for %s.\n", role, username)
		return nil
	},
}

var credsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show what's saved, without tokens",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		for _, role := range []credentials.Role{credentials.Source, credentials.Destination} {
			view, err := s.svc.GetCredentials(cmd.Context(), role)
			if err != nil {
				return err
			}
			if view == nil {
				fmt.Printf("%s: not configured\n", role)
				continue
			}
			token := "no token"
			if view.HasToken {
				token = "token saved"
			}
			fmt.Printf("%s: %s as %s (%s)\n", role, view.Domain, view.Email, token)
		}
		return nil
	},
}

var credsTestCmd = &cobra.Command{
	Use:   "test [source|dest]",
	Short: "Check that saved credentials work",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roles := []credentials.Role{credentials.Source, credentials.Destination}
		if len(args) == 1 {
			role, err := credentials.ParseRole(args[0])
			if err != nil {
				return err
			}
			roles = []credentials.Role{role}
		}

		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		failed := 0
		for _, role := range roles {
			res := s.svc.TestConnection(cmd.Context(), role)
			if res.Success {
				fmt.Println(termfmt.LogLine(fmt.Sprintf("  ✓ %s: connected to %s", role, res.SiteTitle)))
				continue
			}
			failed++
			fmt.Println(termfmt.LogLine(fmt.Sprintf("  ❌ %s: %s", role, res.Error)))
		}
		if failed > 0 {
			return fmt.Errorf("cmd: %d of %d connections failed", failed, len(roles))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(credsCmd)
	credsCmd.AddCommand(credsSaveCmd)
	credsCmd.AddCommand(credsShowCmd)
	credsCmd.AddCommand(credsTestCmd)
}
