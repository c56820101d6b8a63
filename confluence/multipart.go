package confluence

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// BuildMultipartBody assembles the upload body Confluence expects for a single attachment: one
// file part with its filename and mime type, the raw bytes, a minorEdit=true field, and the
// closing boundary.
func BuildMultipartBody(boundary, filename, mimeType string, data []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(data) + 256)

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	fmt.Fprintf(&buf, "Content-Disposition: form-data; name=\"file\"; filename=\"%s\"\r\n", escapeQuotes(filename))
	fmt.Fprintf(&buf, "Content-Type: %s\r\n\r\n", mimeType)
	buf.Write(data)
	fmt.Fprintf(&buf, "\r\n--%s\r\n", boundary)
	buf.WriteString("Content-Disposition: form-data; name=\"minorEdit\"\r\n\r\ntrue")
	fmt.Fprintf(&buf, "\r\n--%s--\r\n", boundary)

	return buf.Bytes()
}

func escapeQuotes(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NewBoundary returns a fresh multipart boundary.
func NewBoundary() string {
	return "----MigrateBoundary" + uuid.NewString()
}

// UploadAttachment adds (or re-versions, if the filename exists) an attachment on a page and
// returns the created attachment.
func (api *API) UploadAttachment(ctx context.Context, pageID, filename, mimeType string, data []byte) (*Content, error) {
	path := contentPath(pageID, "child", "attachment")
	ep, err := api.endpoint(V1, path)
	if err != nil {
		return nil, err
	}

	boundary := NewBoundary()
	payload := BuildMultipartBody(boundary, filename, mimeType, data)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, ep.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("confluence: couldn't instantiate http request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)
	req.Header.Set("X-Atlassian-Token", "no-check")
	api.authorise(req)

	body, err := api.do(req, V1, path)
	if err != nil {
		return nil, fmt.Errorf("confluence: upload %q: %w", filename, err)
	}

	var resp uploadResponse
	if err := decode(body, &resp); err != nil {
		return nil, err
	}
	att := resp.first()
	if att.ID == "" {
		return nil, fmt.Errorf("confluence: upload %q returned no attachment id", filename)
	}
	return &att, nil
}
