// Package migrate copies a Confluence space's content tree from one site to another.
//
// A migration is a persisted JobState: Prepare discovers every node below the source homepage in
// breadth-first order, and each Advance call creates the next few of them on the destination,
// translating parent references through the job's IDMap.  Nothing is kept in memory between
// calls, so a job can be advanced from separate processes and resumed after any interruption.
package migrate

import (
	"encoding/json"
	"fmt"

	"github.com/juju/loggo"

	"github.com/toothbrush/confluence-migrate/confluence"
)

var logger = loggo.GetLogger("confluence-migrate.migrate")

const (
	// DefaultBatchSize is how many items one Advance call migrates when asked for zero.
	DefaultBatchSize = 5

	childrenPageLimit = 50
	attachmentWindow  = 25
	commentLimit      = 100

	// StateKey is where the single active job lives in the store.
	StateKey = "migration_state"

	emojiProperty      = "emoji-title-published"
	draftEmojiProperty = "emoji-title-draft"
)

// DiscoveredItem is one node of the source tree, recorded once during discovery.
type DiscoveredItem struct {
	ID          string                 `json:"id"`
	Title       string                 `json:"title"`
	ParentID    string                 `json:"parentId,omitempty"`
	ContentType confluence.ContentType `json:"contentType"`

	// RawType is the type as the API declared it; it differs from ContentType only for types
	// the engine doesn't know, which migrate as plain pages.
	RawType string          `json:"rawType,omitempty"`
	Emoji   json.RawMessage `json:"emoji,omitempty"`
	Labels  []string        `json:"labels"`
}

func (i DiscoveredItem) icon() string {
	switch i.ContentType {
	case confluence.FolderContent:
		return "📁"
	case confluence.DatabaseContent:
		return "🗄"
	case confluence.WhiteboardContent:
		return "🖼"
	case confluence.EmbedContent:
		return "🔗"
	default:
		return "📄"
	}
}

func (i DiscoveredItem) typeName() string {
	if i.ContentType == confluence.OtherContent && i.RawType != "" {
		return i.RawType
	}
	return i.ContentType.String()
}

// IDMap translates source ids to destination ids.  Entries are only ever added.
type IDMap map[string]string

// Resolve returns the destination id for src, or fallback when src isn't mapped.
func (m IDMap) Resolve(src, fallback string) string {
	if src == "" {
		return fallback
	}
	if dst, ok := m[src]; ok && dst != "" {
		return dst
	}
	return fallback
}

// Record maps src to dst unless src is already mapped, and reports whether it did.
func (m IDMap) Record(src, dst string) bool {
	if src == "" || dst == "" {
		return false
	}
	if _, ok := m[src]; ok {
		return false
	}
	m[src] = dst
	return true
}

// Merge records every entry of other.
func (m IDMap) Merge(other map[string]string) {
	for src, dst := range other {
		m.Record(src, dst)
	}
}

// FailedItem remembers an item that was passed over without a destination counterpart.
type FailedItem struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// JobState is the persisted record of one migration.
type JobState struct {
	SpaceKey   string `json:"spaceKey"`
	SrcDomain  string `json:"srcDomain"`
	DstDomain  string `json:"dstDomain"`
	DstHomeID  string `json:"dstHomeId"`
	DstSpaceID string `json:"dstSpaceId"`

	Items    []DiscoveredItem `json:"items"`
	IDMap    IDMap            `json:"idMap"`
	Progress int              `json:"progress"`
	Log      []string         `json:"log"`
	Failed   []FailedItem     `json:"failed,omitempty"`
}

func (s JobState) Total() int { return len(s.Items) }

func (s JobState) Done() bool { return s.Progress >= len(s.Items) }

func (s JobState) Percent() int { return percent(s.Progress, len(s.Items)) }

// percent rounds like the progress display expects; an empty job is complete.
func percent(progress, total int) int {
	if total == 0 {
		return 100
	}
	return (progress*100 + total/2) / total
}

// BatchReport is what one Advance call did.
type BatchReport struct {
	Log      []string `json:"log"`
	Progress int      `json:"progress"`
	Total    int      `json:"total"`
	Done     bool     `json:"done"`
	Percent  int      `json:"percent"`
}

// Status is a read-only view of the active job.
type Status struct {
	Active   bool   `json:"active"`
	SpaceKey string `json:"spaceKey,omitempty"`
	Progress int    `json:"progress,omitempty"`
	Total    int    `json:"total,omitempty"`
	Percent  int    `json:"percent,omitempty"`
	Failed   int    `json:"failed,omitempty"`
}

// OutcomeKind classifies how a single item's migration ended.
type OutcomeKind int

const (
	// Created means the item has an equivalent on the destination.
	Created OutcomeKind = iota
	// Placeholder means a stand-in page was created because the real type couldn't be.
	Placeholder
	// Skipped means the item was deliberately not created.
	Skipped
	// Failed means creation was attempted and errored.
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Created:
		return "created"
	case Placeholder:
		return "placeholder"
	case Skipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Outcome is the result of migrating one item.  DestID is set for Created and Placeholder.
type Outcome struct {
	Kind   OutcomeKind
	DestID string
	Reason string
}

func created(id string) Outcome { return Outcome{Kind: Created, DestID: id} }

func placeholder(id, reason string) Outcome {
	return Outcome{Kind: Placeholder, DestID: id, Reason: reason}
}

func skipped(format string, args ...interface{}) Outcome {
	return Outcome{Kind: Skipped, Reason: fmt.Sprintf(format, args...)}
}

func failed(err error) Outcome {
	return Outcome{Kind: Failed, Reason: err.Error()}
}

// Mapped reports whether the item now has a destination id.
func (o Outcome) Mapped() bool {
	return (o.Kind == Created || o.Kind == Placeholder) && o.DestID != ""
}
