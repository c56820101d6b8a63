package migrate

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/exp/maps"

	"github.com/toothbrush/confluence-migrate/confluence"
)

// PageArchiver receives every source page the engine migrates, e.g. to keep a local copy.
type PageArchiver interface {
	ArchivePage(ctx context.Context, spaceKey string, page *confluence.Content, destID string) error
}

// Engine migrates items between two sites.  It holds clients only; all job data travels in the
// JobState passed to Advance.
type Engine struct {
	Source *confluence.API
	Dest   *confluence.API

	// Archive, when set, is handed every migrated source page.
	Archive PageArchiver
}

// Advance migrates up to batchSize pending items of state and returns the updated state with a
// report of what happened.  The input state is not modified.  Per-item failures are logged and
// recorded in Failed; the item stays unmapped and its children attach to the destination homepage.
// When ctx is cancelled, the batch ends before the first item that wasn't created.
func (e *Engine) Advance(ctx context.Context, state JobState, batchSize int) (JobState, BatchReport) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	next := state
	next.IDMap = IDMap(maps.Clone(state.IDMap))
	if next.IDMap == nil {
		next.IDMap = IDMap{}
	}
	next.Log = slices.Clone(state.Log)
	next.Failed = slices.Clone(state.Failed)

	total := len(state.Items)
	end := min(state.Progress+batchSize, total)
	var log []string

	for i := state.Progress; i < end; i++ {
		if ctx.Err() != nil {
			log = append(log, fmt.Sprintf("  ⚠ batch interrupted: %v", ctx.Err()))
			end = i
			break
		}

		item := state.Items[i]
		log = append(log, fmt.Sprintf("[%d/%d] %s [%s] %q", i+1, total, item.icon(), item.typeName(), item.Title))

		parentID := next.IDMap.Resolve(item.ParentID, state.DstHomeID)
		m := &migration{Engine: e, state: &next, log: &log}
		outcome := m.item(ctx, item, parentID)
		if ctx.Err() != nil && !outcome.Mapped() {
			// nothing was created, so the item is retried by the next batch
			log = append(log, fmt.Sprintf("  ⚠ batch interrupted: %v", ctx.Err()))
			end = i
			break
		}

		if outcome.Mapped() {
			next.IDMap.Record(item.ID, outcome.DestID)
		}
		switch outcome.Kind {
		case Failed:
			log = append(log, "  ❌ "+outcome.Reason)
			next.Failed = append(next.Failed, FailedItem{ID: item.ID, Title: item.Title, Reason: outcome.Reason})
		case Skipped:
			next.Failed = append(next.Failed, FailedItem{ID: item.ID, Title: item.Title, Reason: outcome.Reason})
		}
	}

	next.Progress = max(end, state.Progress)
	done := next.Progress >= total
	if done && end > state.Progress {
		log = append(log, fmt.Sprintf("✅ All %d items migrated!", total))
	}
	next.Log = append(next.Log, log...)

	return next, BatchReport{
		Log:      log,
		Progress: next.Progress,
		Total:    total,
		Done:     done,
		Percent:  percent(next.Progress, total),
	}
}

// item dispatches on the closed set of content types; anything unknown becomes a plain page.
func (m *migration) item(ctx context.Context, item DiscoveredItem, parentID string) Outcome {
	switch item.ContentType {
	case confluence.FolderContent:
		return m.folder(ctx, item, parentID)
	case confluence.PageContent:
		return m.page(ctx, item, parentID)
	case confluence.DatabaseContent:
		return m.database(ctx, item, parentID)
	case confluence.WhiteboardContent:
		return m.whiteboard(ctx, item, parentID)
	default:
		return m.embed(ctx, item, parentID)
	}
}
