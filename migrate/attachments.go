package migrate

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/toothbrush/confluence-migrate/confluence"
)

// attachments copies every attachment of a source page onto the destination page and returns the
// source→destination attachment ids of those that made it.  Failures are logged per file.
func (m *migration) attachments(ctx context.Context, srcPageID, dstPageID string) map[string]string {
	ids := make(map[string]string)
	for start := 0; ; start += attachmentWindow {
		window, err := m.Source.Attachments(ctx, srcPageID, start, attachmentWindow)
		if err != nil {
			m.logf("    ⚠ Attachments: %v", err)
			return ids
		}
		for _, att := range window.Results {
			m.attachment(ctx, srcPageID, dstPageID, att, ids)
		}
		if len(window.Results) < attachmentWindow {
			return ids
		}
	}
}

func (m *migration) attachment(ctx context.Context, srcPageID, dstPageID string, att confluence.Content, ids map[string]string) {
	link := att.Links.Download
	if link == "" {
		link = fmt.Sprintf("/download/attachments/%s/%s", srcPageID, url.PathEscape(att.Title))
	}

	data, err := m.Source.Download(ctx, link)
	if err != nil {
		m.logf("    ⚠ Download failed: %s (%v)", att.Title, err)
		return
	}

	mimeType := att.MediaType()
	if mimeType == "" {
		mimeType = GuessMimeType(att.Title)
	}

	uploaded, err := m.Dest.UploadAttachment(ctx, dstPageID, att.Title, mimeType, data)
	if err != nil {
		m.logf("    ⚠ %q: %v", att.Title, err)
		return
	}
	ids[att.ID] = uploaded.ID
	m.logf("    ✓ %s (%s)", att.Title, humanize.IBytes(uint64(len(data))))
}

var mimeTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"svg":  "image/svg+xml",
	"webp": "image/webp",
	"pdf":  "application/pdf",
	"zip":  "application/zip",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"ppt":  "application/vnd.ms-powerpoint",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"txt":  "text/plain",
	"csv":  "text/csv",
	"json": "application/json",
	"mp4":  "video/mp4",
	"mp3":  "audio/mpeg",
}

// GuessMimeType picks a media type from a file name's extension for attachments the source
// didn't describe.
func GuessMimeType(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if t, ok := mimeTypes[ext]; ok {
		return t
	}
	return "application/octet-stream"
}
