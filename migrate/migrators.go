package migrate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/toothbrush/confluence-migrate/confluence"
	"github.com/toothbrush/confluence-migrate/rewrite"
)

// migration is the context of one item being migrated: the engine's clients, the job it belongs
// to and the batch log lines are appended to.
type migration struct {
	*Engine
	state *JobState
	log   *[]string
}

func (m *migration) logf(format string, args ...interface{}) {
	*m.log = append(*m.log, fmt.Sprintf(format, args...))
}

func (m *migration) nodePayload(item DiscoveredItem, parentID string, withEmoji bool) confluence.NodeCreate {
	payload := confluence.NodeCreate{
		SpaceID:  m.state.DstSpaceID,
		Title:    item.Title,
		ParentID: parentID,
	}
	if withEmoji && hasEmoji(item.Emoji) {
		payload.EmojiTitlePublished = item.Emoji
	}
	return payload
}

func (m *migration) pagePayload(title, body, parentID string) confluence.ContentCreate {
	payload := confluence.ContentCreate{
		Type:  "page",
		Title: title,
		Space: &confluence.SpaceRef{Key: m.state.SpaceKey},
		Body:  confluence.StorageBody(body),
	}
	if parentID != "" {
		payload.Ancestors = []confluence.ContentRef{{ID: parentID}}
	}
	return payload
}

func (m *migration) folder(ctx context.Context, item DiscoveredItem, parentID string) Outcome {
	folder, err := m.Dest.CreateNode(ctx, confluence.FolderContent, m.nodePayload(item, parentID, false))
	if err != nil {
		return failed(err)
	}
	m.logf("  ✓ Folder created (dst: %s)", folder.ID)

	if hasEmoji(item.Emoji) {
		if err := m.Dest.CreateFolderProperty(ctx, folder.ID, emojiProperty, item.Emoji); err != nil {
			logger.Debugf("folder %s emoji: %v", folder.ID, err)
		}
	}
	return created(folder.ID)
}

func (m *migration) page(ctx context.Context, item DiscoveredItem, parentID string) Outcome {
	full, err := m.Source.GetContent(ctx, item.ID,
		"body.storage",
		"version",
		"metadata.labels",
		"metadata.properties."+emojiProperty,
		"metadata.properties."+draftEmojiProperty,
	)
	if err != nil {
		return failed(err)
	}

	title := full.Title
	if title == "" {
		title = item.Title
	}
	body := rewrite.Body(full.StorageValue(), m.state.SrcDomain, m.state.DstDomain, m.state.SpaceKey)

	page, err := m.Dest.CreateContent(ctx, m.pagePayload(title, body, parentID))
	if err != nil {
		return failed(err)
	}
	m.logf("  ✓ Page created (dst: %s)", page.ID)

	m.setEmoji(ctx, page.ID, pageEmoji(full, item.Emoji))

	if labels := full.LabelNames(); len(labels) > 0 {
		if err := m.Dest.AddLabels(ctx, page.ID, labels); err != nil {
			m.logf("  ⚠ Labels: %v", err)
		} else {
			m.logf("  ✓ Labels: %s", strings.Join(labels, ", "))
		}
	}

	attachments := m.attachments(ctx, item.ID, page.ID)
	m.state.IDMap.Merge(attachments)
	if len(attachments) > 0 {
		m.republish(ctx, page, title, rewrite.AttachmentRefs(body, item.ID, page.ID, attachments))
	}

	m.comments(ctx, item.ID, page.ID)
	m.likes(ctx, item.ID, page.ID)

	if m.Archive != nil {
		if err := m.Archive.ArchivePage(ctx, m.state.SpaceKey, full, page.ID); err != nil {
			m.logf("  ⚠ Archive: %v", err)
		}
	}
	return created(page.ID)
}

// republish stores the body a second time, now that attachment ids are known.
func (m *migration) republish(ctx context.Context, page *confluence.Content, title, body string) {
	version := 2
	if page.Version != nil && page.Version.Number > 0 {
		version = page.Version.Number + 1
	}
	_, err := m.Dest.UpdateContent(ctx, page.ID, confluence.ContentUpdate{
		Version: confluence.VersionRef{Number: version},
		Title:   title,
		Type:    "page",
		Body:    confluence.StorageBody(body),
	})
	if err != nil {
		m.logf("  ⚠ Body update: %v", err)
		return
	}
	m.logf("  ✓ Body updated with attachment refs")
}

func (m *migration) database(ctx context.Context, item DiscoveredItem, parentID string) Outcome {
	db, err := m.Dest.CreateNode(ctx, confluence.DatabaseContent, m.nodePayload(item, parentID, true))
	if err == nil {
		m.logf("  ✓ Database created (dst: %s)", db.ID)
		m.logf("  ℹ Database rows must be re-entered manually (API limitation)")
		return created(db.ID)
	}

	m.logf("  ⚠ Database v2 failed (%v), creating placeholder page", err)
	title := html.EscapeString(item.Title)
	body := fmt.Sprintf("<p><strong>🗄 Database: %s</strong></p>"+
		"<p><em>This was a Confluence Database. Row data is not accessible via REST API, please recreate manually.</em></p>", title)
	page, err := m.Dest.CreateContent(ctx, m.pagePayload("[Database] "+item.Title, body, parentID))
	if err != nil {
		return failed(err)
	}
	m.logf("  ✓ Placeholder page created (dst: %s)", page.ID)
	return placeholder(page.ID, "database rows are not accessible through the API")
}

func (m *migration) whiteboard(ctx context.Context, item DiscoveredItem, parentID string) Outcome {
	wb, err := m.Dest.CreateNode(ctx, confluence.WhiteboardContent, m.nodePayload(item, parentID, true))
	if err != nil {
		m.logf("  ⚠ Whiteboard v2 failed (%v), skipping", err)
		return skipped("whiteboard creation failed: %v", err)
	}
	m.logf("  ✓ Whiteboard created (dst: %s)", wb.ID)
	m.logf("  ℹ Whiteboard drawing content cannot be migrated via API, recreate manually")
	return created(wb.ID)
}

// embed recreates a smart link (or any node of a type the engine doesn't know) as a plain page
// holding its title and, when there is one, its URL.
func (m *migration) embed(ctx context.Context, item DiscoveredItem, parentID string) Outcome {
	var embedURL string
	if item.ContentType == confluence.EmbedContent {
		if node, err := m.Source.GetEmbed(ctx, item.ID); err != nil {
			logger.Debugf("embed %s lookup: %v", item.ID, err)
		} else {
			embedURL = node.EmbedURL
		}
	}

	title := html.EscapeString(item.Title)
	var body string
	if item.ContentType == confluence.EmbedContent {
		body = fmt.Sprintf("<p><strong>🔗 Embed: %s</strong></p>", title)
	} else {
		body = fmt.Sprintf("<p><strong>📄 %s</strong></p><p><em>Migrated from a %s, which has no equivalent on this site.</em></p>",
			title, html.EscapeString(item.typeName()))
	}
	if embedURL != "" {
		u := html.EscapeString(embedURL)
		body += fmt.Sprintf(`<p><a href="%s">%s</a></p>`, u, u)
	} else if item.ContentType == confluence.EmbedContent {
		body += "<p><em>Embed URL not available.</em></p>"
	}

	page, err := m.Dest.CreateContent(ctx, m.pagePayload(item.Title, body, parentID))
	if err != nil {
		return failed(fmt.Errorf("embed: %w", err))
	}
	m.logf("  ✓ Embed page created (dst: %s)", page.ID)
	return created(page.ID)
}

// setEmoji copies a page's title emoji.  Creating the property fails when the destination already
// has one, in which case it is overwritten instead.
func (m *migration) setEmoji(ctx context.Context, pageID string, emoji json.RawMessage) {
	if !hasEmoji(emoji) {
		return
	}
	if err := m.Dest.CreateContentProperty(ctx, pageID, emojiProperty, emoji); err == nil {
		m.logf("  ✓ Emoji: %s", emojiLabel(emoji))
		return
	}
	if err := m.Dest.UpdateContentProperty(ctx, pageID, emojiProperty, emoji, 1); err != nil {
		m.logf("  ⚠ Emoji: %v", err)
		return
	}
	m.logf("  ✓ Emoji updated")
}

func pageEmoji(full *confluence.Content, fallback json.RawMessage) json.RawMessage {
	if full.Metadata != nil {
		for _, key := range []string{emojiProperty, draftEmojiProperty} {
			if p, ok := full.Metadata.Properties[key]; ok && hasEmoji(p.Value) {
				return p.Value
			}
		}
	}
	return fallback
}

func hasEmoji(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) && !bytes.Equal(trimmed, []byte(`""`))
}

// emojiLabel renders an emoji property for the log: strings as-is, objects by their value field.
func emojiLabel(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Value string `json:"value"`
	}
	if json.Unmarshal(raw, &obj) == nil && obj.Value != "" {
		return obj.Value
	}
	return string(raw)
}
