/*
Copyright © 2024 paul <paul@denknerd.org>
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/toothbrush/confluence-migrate/internal/termfmt"
	"github.com/toothbrush/confluence-migrate/migrate"
)

var (
	BatchSize        int
	Delay            time.Duration
	Finalize         bool
	SpaceName        string
	SpaceDescription string
	ShowLog          bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Prepare, advance and finish a space migration",
	Long: strings.TrimSpace(`
A migration is prepared once, which creates the destination space and records the source tree,
then advanced batch by batch until every item is done.  Progress lives in the state database, so
any of these commands can be interrupted and picked up again later.
`),
}

var migratePrepareCmd = &cobra.Command{
	Use:   "prepare SPACEKEY",
	Short: "Create the destination space and discover the source tree",
	Long:  "Starts a new migration of SPACEKEY, replacing any migration in progress.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := s.svc.PrepareMigration(cmd.Context(), args[0], SpaceName, SpaceDescription)
		printLog(os.Stdout, res.Log)
		if err != nil {
			return fmt.Errorf("cmd: prepare failed: %w", err)
		}
		fmt.Printf("\nReady to migrate %d items.  Continue with `confluence-migrate migrate run`.\n", res.Total)
		return nil
	},
}

var migrateAdvanceCmd = &cobra.Command{
	Use:   "advance",
	Short: "Migrate the next batch of items",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.withArchive(cmd.Context()); err != nil {
			return err
		}

		report, err := s.svc.AdvanceMigration(cmd.Context(), BatchSize)
		printLog(os.Stdout, report.Log)
		if err != nil {
			return fmt.Errorf("cmd: advance failed: %w", err)
		}
		fmt.Printf("\n%d/%d (%d%%)\n", report.Progress, report.Total, report.Percent)
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how far the migration in progress is",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		status, err := s.svc.MigrationStatus(cmd.Context())
		if err != nil {
			return err
		}
		if !status.Active {
			fmt.Println("No migration in progress.")
			return nil
		}
		fmt.Printf("%s: %d/%d items (%d%%)\n", status.SpaceKey, status.Progress, status.Total, status.Percent)
		if status.Failed == 0 && !ShowLog {
			return nil
		}

		state, err := s.svc.LoadState(cmd.Context())
		if err != nil {
			return err
		}
		if len(state.Failed) > 0 {
			fmt.Printf("\nFailed:\n")
			for _, f := range state.Failed {
				fmt.Printf("  - %s %q: %s\n", f.ID, f.Title, f.Reason)
			}
		}
		if ShowLog {
			fmt.Println()
			printLog(os.Stdout, state.Log)
		}
		return nil
	},
}

var migrateFinalizeCmd = &cobra.Command{
	Use:   "finalize",
	Short: "Forget the migration in progress",
	Long:  "Removes the migration record from the state database.  Nothing on either site changes.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.svc.FinalizeMigration(cmd.Context()); err != nil {
			return fmt.Errorf("cmd: finalize failed: %w", err)
		}
		fmt.Println("Migration finalized.")
		return nil
	},
}

var migrateRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Advance batch after batch until the migration is done",
	Long: strings.TrimSpace(`
Interrupting with ^C abandons the item in flight unless it was already created, and saves
everything before it.  Running again resumes from the first item that wasn't created.
`),
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.withArchive(ctx); err != nil {
			return err
		}

		status, err := s.svc.MigrationStatus(ctx)
		if err != nil {
			return err
		}
		if !status.Active {
			return migrate.ErrNoMigration
		}

		p := mpb.New(mpb.WithWidth(64))
		bar := p.AddBar(int64(max(status.Total, 1)),
			mpb.PrependDecorators(
				decor.Name(status.SpaceKey+":", decor.WC{C: decor.DindentRight | decor.DextraSpace}),
			),
			mpb.AppendDecorators(
				decor.CountersNoUnit("(%d/%d) "),
				decor.NewPercentage("%d"),
			),
		)
		bar.SetCurrent(int64(status.Progress))

		report, err := s.svc.Run(ctx, migrate.RunOptions{
			BatchSize: BatchSize,
			Delay:     Delay,
			Finalize:  Finalize,
			OnBatch: func(r migrate.BatchReport) {
				printLog(p, r.Log)
				if r.Done {
					// an empty tree still completes the one-unit bar
					bar.SetCurrent(int64(max(r.Total, 1)))
					return
				}
				bar.SetCurrent(int64(r.Progress))
			},
		})
		if !report.Done {
			bar.Abort(false)
		}
		p.Wait()

		if errors.Is(err, context.Canceled) {
			fmt.Printf("Stopped at %d/%d.  Run again to resume.\n", report.Progress, report.Total)
			return nil
		}
		return err
	},
}

func printLog(w io.Writer, lines []string) {
	for _, l := range lines {
		fmt.Fprintln(w, termfmt.LogLine(l))
	}
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migratePrepareCmd)
	migrateCmd.AddCommand(migrateAdvanceCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
	migrateCmd.AddCommand(migrateFinalizeCmd)
	migrateCmd.AddCommand(migrateRunCmd)

	migratePrepareCmd.Flags().StringVar(&SpaceName, "name", "", "destination space name (default: the space key)")
	migratePrepareCmd.Flags().StringVar(&SpaceDescription, "description", "", "destination space description")

	for _, c := range []*cobra.Command{migrateAdvanceCmd, migrateRunCmd} {
		c.Flags().IntVar(&BatchSize, "batch-size", migrate.DefaultBatchSize, "items to migrate per batch")
	}
	migrateRunCmd.Flags().DurationVar(&Delay, "delay", time.Second, "pause between batches")
	migrateRunCmd.Flags().BoolVar(&Finalize, "finalize", false, "forget the migration once it's done")

	migrateStatusCmd.Flags().BoolVar(&ShowLog, "log", false, "print the full migration log")
}
