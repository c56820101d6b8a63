package rewrite

import (
	"regexp"
	"strings"
)

var attachmentIDAttr = regexp.MustCompile(`((?:ri:content-id|data-linked-resource-id|data-attachment-id)=")([^"]+)(")`)

// AttachmentRefs points attachment references in a body at their copies on the destination page.
// ids maps source attachment ids to destination ones, in either the "att123" form the REST API
// uses or the bare numeric form found in markup attributes; download and thumbnail paths under
// the source page are moved to the destination page.
func AttachmentRefs(body, srcPageID, dstPageID string, ids map[string]string) string {
	if body == "" {
		return ""
	}

	if len(ids) > 0 {
		body = attachmentIDAttr.ReplaceAllStringFunc(body, func(m string) string {
			parts := attachmentIDAttr.FindStringSubmatch(m)
			if dst, ok := lookupAttachment(ids, parts[2]); ok {
				return parts[1] + dst + parts[3]
			}
			return m
		})
	}

	if srcPageID != "" && dstPageID != "" && srcPageID != dstPageID {
		for _, kind := range []string{"attachments", "thumbnails"} {
			src := regexp.MustCompile(`/download/` + kind + `/` + regexp.QuoteMeta(srcPageID) + `/`)
			body = src.ReplaceAllLiteralString(body, "/download/"+kind+"/"+dstPageID+"/")
		}
	}
	return body
}

// lookupAttachment resolves id as written in the markup, keeping its form: a bare id maps to a
// bare id even when the table is keyed by "att…".
func lookupAttachment(ids map[string]string, id string) (string, bool) {
	if dst, ok := ids[id]; ok {
		return dst, true
	}
	if !strings.HasPrefix(id, "att") {
		if dst, ok := ids["att"+id]; ok {
			return strings.TrimPrefix(dst, "att"), true
		}
	}
	return "", false
}
