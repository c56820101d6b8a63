package migrate

import (
	"context"
	"time"

	"github.com/juju/clock"
)

// RunOptions configure Run.
type RunOptions struct {
	BatchSize int

	// Delay is the pause between batches, to go easy on the sites.
	Delay time.Duration
	Clock clock.Clock

	// Finalize forgets the job once every item has been processed.
	Finalize bool

	// OnBatch, when set, sees every batch report as it arrives.
	OnBatch func(BatchReport)
}

// Run advances the active job until it is done or ctx is cancelled.  A cancelled run leaves the
// job where the last completed batch put it; running again resumes from there.
func (s *Service) Run(ctx context.Context, opts RunOptions) (BatchReport, error) {
	clk := opts.Clock
	if clk == nil {
		clk = clock.WallClock
	}

	for {
		report, err := s.AdvanceMigration(ctx, opts.BatchSize)
		if err != nil {
			return report, err
		}
		if opts.OnBatch != nil {
			opts.OnBatch(report)
		}
		if report.Done {
			if opts.Finalize {
				if err := s.FinalizeMigration(ctx); err != nil {
					return report, err
				}
			}
			return report, nil
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if opts.Delay > 0 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-clk.After(opts.Delay):
			}
		}
	}
}
