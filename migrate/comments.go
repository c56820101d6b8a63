package migrate

import (
	"context"
	"fmt"
	"sort"

	"github.com/toothbrush/confluence-migrate/confluence"
	"github.com/toothbrush/confluence-migrate/rewrite"
)

// CommentNode is a source comment with the chain of comments it replies to, outermost first.
type CommentNode struct {
	ID        string
	Body      string
	Ancestors []string
}

func (c CommentNode) parent() string {
	if len(c.Ancestors) == 0 {
		return ""
	}
	return c.Ancestors[len(c.Ancestors)-1]
}

func commentNodes(comments []confluence.Content) []CommentNode {
	nodes := make([]CommentNode, 0, len(comments))
	for _, c := range comments {
		n := CommentNode{ID: c.ID, Body: c.StorageValue()}
		for _, a := range c.Ancestors {
			n.Ancestors = append(n.Ancestors, a.ID)
		}
		nodes = append(nodes, n)
	}
	return nodes
}

// CommentOrder returns comments in an order where every reply follows the comment it answers:
// top-level comments first as listed, then replies by increasing depth.
func CommentOrder(comments []CommentNode) []CommentNode {
	var top, replies []CommentNode
	for _, c := range comments {
		if len(c.Ancestors) == 0 {
			top = append(top, c)
		} else {
			replies = append(replies, c)
		}
	}
	sort.SliceStable(replies, func(i, j int) bool {
		return len(replies[i].Ancestors) < len(replies[j].Ancestors)
	})
	return append(top, replies...)
}

// comments recreates a page's comment threads.  A reply whose parent didn't make it is skipped.
func (m *migration) comments(ctx context.Context, srcPageID, dstPageID string) {
	all, err := m.Source.Comments(ctx, srcPageID, commentLimit)
	if err != nil {
		m.logf("    ⚠ Comments: %v", err)
		return
	}
	if len(all) == 0 {
		return
	}

	ids := make(map[string]string)
	var migrated, dropped int
	for _, c := range CommentOrder(commentNodes(all)) {
		payload := confluence.ContentCreate{
			Type:      "comment",
			Container: &confluence.ContainerRef{ID: dstPageID, Type: "page"},
			Space:     &confluence.SpaceRef{Key: m.state.SpaceKey},
			Body:      confluence.StorageBody(rewrite.Body(c.Body, m.state.SrcDomain, m.state.DstDomain, m.state.SpaceKey)),
		}
		if p := c.parent(); p != "" {
			dst, ok := ids[p]
			if !ok {
				dropped++
				continue
			}
			payload.Ancestors = []confluence.ContentRef{{ID: dst}}
		}

		reply, err := m.Dest.CreateContent(ctx, payload)
		if err != nil {
			logger.Warningf("comment %s on page %s: %v", c.ID, srcPageID, err)
			dropped++
			continue
		}
		ids[c.ID] = reply.ID
		migrated++
	}

	line := fmt.Sprintf("    ✓ Comments migrated (%d)", migrated)
	if dropped > 0 {
		line += fmt.Sprintf(", ⚠ %d skipped", dropped)
	}
	m.logf("%s", line)
}
