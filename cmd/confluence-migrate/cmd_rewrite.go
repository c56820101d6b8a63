/*
Copyright © 2024 paul <paul@denknerd.org>
*/

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/toothbrush/confluence-migrate/confluence"
	"github.com/toothbrush/confluence-migrate/credentials"
	"github.com/toothbrush/confluence-migrate/rewrite"
)

var RewriteSpace string

var rewriteCmd = &cobra.Command{
	Use:   "rewrite",
	Short: "Inspect how page bodies are rewritten",
}

var rewriteDiffCmd = &cobra.Command{
	Use:   "diff [FILE]",
	Short: "Show what migrating would change in a storage-format body",
	Long: strings.TrimSpace(`
Reads a page body in storage format from FILE, or stdin, and prints a unified diff of the body as
it would be created on the destination, followed by the rules that changed it.  Domains default to
the saved credentials.
`),
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := io.Reader(os.Stdin)
		name := "stdin"
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("cmd: couldn't open body: %w", err)
			}
			defer f.Close()
			in, name = f, args[0]
		}
		body, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("cmd: couldn't read body: %w", err)
		}

		src, dst := confluence.CleanDomain(SourceDomain), confluence.CleanDomain(DestDomain)
		if src == "" || dst == "" {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()
			if src == "" {
				if v, _ := s.svc.GetCredentials(cmd.Context(), credentials.Source); v != nil {
					src = v.Domain
				}
			}
			if dst == "" {
				if v, _ := s.svc.GetCredentials(cmd.Context(), credentials.Destination); v != nil {
					dst = v.Domain
				}
			}
		}
		if src == "" || dst == "" {
			return fmt.Errorf("cmd: need both --source-domain and --dest-domain, or saved credentials")
		}

		diff, changedBy, err := diffBody(string(body), name, src, dst, RewriteSpace)
		if err != nil {
			return err
		}
		if diff == "" {
			fmt.Println("No changes.")
			return nil
		}
		fmt.Print(diff)
		fmt.Printf("\nChanged by: %s\n", strings.Join(changedBy, ", "))
		return nil
	},
}

// diffBody rewrites body like a migration would and returns the unified diff together with the
// names of the rules that changed something.
func diffBody(body, name, src, dst, spaceKey string) (string, []string, error) {
	var changedBy []string
	out := body
	for _, r := range rewrite.Rules(src, dst, spaceKey) {
		next := r.Apply(out)
		if next != out {
			changedBy = append(changedBy, r.Name)
		}
		out = next
	}
	if out == body {
		return "", nil, nil
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(body),
		B:        difflib.SplitLines(out),
		FromFile: name + " (" + src + ")",
		ToFile:   name + " (" + dst + ")",
		Context:  3,
	})
	if err != nil {
		return "", nil, fmt.Errorf("cmd: couldn't diff body: %w", err)
	}
	return diff, changedBy, nil
}

func init() {
	rootCmd.AddCommand(rewriteCmd)
	rewriteCmd.AddCommand(rewriteDiffCmd)

	rewriteDiffCmd.Flags().StringVar(&RewriteSpace, "space", "", "space key the body belongs to")
	_ = rewriteDiffCmd.MarkFlagRequired("space")
}
