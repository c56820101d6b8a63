package migrate

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/exp/maps"

	"github.com/toothbrush/confluence-migrate/confluence"
)

type queued struct {
	id       string
	nodeType confluence.ContentType
}

// Discover walks the source tree below rootID breadth first and returns every node found, each
// after its parent.  The root itself is not part of the result.  A node whose children can't be
// listed is logged and left unexpanded; the rest of the walk carries on.
func Discover(ctx context.Context, src *confluence.API, rootID string) ([]DiscoveredItem, []string) {
	var (
		items []DiscoveredItem
		log   []string
		queue = []queued{{id: rootID, nodeType: confluence.PageContent}}
		seen  = map[string]bool{rootID: true}
	)

	for len(queue) > 0 {
		if ctx.Err() != nil {
			log = append(log, fmt.Sprintf("  ⚠ discovery interrupted: %v", ctx.Err()))
			break
		}
		node := queue[0]
		queue = queue[1:]

		for children, err := range src.DirectChildren(ctx, node.id, node.nodeType, childrenPageLimit) {
			if err != nil {
				logger.Warningf("listing children of %s %s: %v", node.nodeType, node.id, err)
				log = append(log, fmt.Sprintf("  ⚠ direct-children failed for %s %s: %v", node.nodeType, node.id, err))
				break
			}
			for _, child := range children {
				if seen[child.ID] {
					continue
				}
				seen[child.ID] = true

				ct := confluence.ParseContentType(child.Type)
				logger.Debugf("[bfs] type=%s title=%q id=%s parent=%s", ct, child.Title, child.ID, node.id)

				item := DiscoveredItem{
					ID:          child.ID,
					Title:       child.Title,
					ParentID:    node.id,
					ContentType: ct,
					Emoji:       child.EmojiTitlePublished,
					Labels:      []string{},
				}
				if ct == confluence.OtherContent {
					item.RawType = strings.ToLower(child.Type)
				}
				items = append(items, item)

				if ct.HasChildren() {
					queue = append(queue, queued{id: child.ID, nodeType: ct})
				}
			}
		}
	}

	return items, log
}

// Tally counts items per content type.
func Tally(items []DiscoveredItem) map[confluence.ContentType]int {
	counts := make(map[confluence.ContentType]int)
	for _, it := range items {
		counts[it.ContentType]++
	}
	return counts
}

// Summary renders a tally the way the job log reports it.
func Summary(items []DiscoveredItem) string {
	counts := Tally(items)
	s := fmt.Sprintf("  ✓ Found %d items: %d pages, %d folders, %d databases, %d whiteboards, %d embeds",
		len(items),
		counts[confluence.PageContent],
		counts[confluence.FolderContent],
		counts[confluence.DatabaseContent],
		counts[confluence.WhiteboardContent],
		counts[confluence.EmbedContent])
	if n := counts[confluence.OtherContent]; n > 0 {
		s += fmt.Sprintf(", %d other", n)
	}
	return s
}

// TallyTypes lists the content types present, in enum order, for display.
func TallyTypes(items []DiscoveredItem) []confluence.ContentType {
	types := maps.Keys(Tally(items))
	slices.Sort(types)
	return types
}
