package confluence

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-querystring/query"
)

// Surface picks one of the two REST APIs Confluence Cloud exposes side by side.
type Surface int

const (
	// V1 is the legacy /wiki/rest/api surface: offset paging, _links.next, content creation.
	V1 Surface = iota
	// V2 is /wiki/api/v2: cursor paging, folders, databases, whiteboards, direct-children.
	V2
)

func (s Surface) prefix() string {
	if s == V2 {
		return "/wiki/api/v2"
	}
	return "/wiki/rest/api"
}

func (s Surface) String() string {
	if s == V2 {
		return "v2"
	}
	return "v1"
}

// withQuery appends the encoded opts to path, keeping whatever query path already carries.
func withQuery(path string, opts interface{}) (string, error) {
	if opts == nil {
		return path, nil
	}

	v, err := query.Values(opts)
	if err != nil {
		return "", fmt.Errorf("confluence: couldn't encode query params: %w", err)
	}
	encoded := v.Encode()
	if encoded == "" {
		return path, nil
	}
	if strings.Contains(path, "?") {
		return path + "&" + encoded, nil
	}
	return path + "?" + encoded, nil
}

// endpoint returns the absolute URL for a surface-relative path such as "/content/123".
func (a *API) endpoint(surface Surface, path string) (*url.URL, error) {
	ep, err := a.resolveEndpoint(surface.prefix() + path)
	if err != nil {
		return nil, fmt.Errorf("confluence: couldn't resolve endpoint: %w", err)
	}
	return ep, nil
}

// downloadEndpoint resolves an attachment's _links.download, which is relative to /wiki.
func (a *API) downloadEndpoint(link string) (*url.URL, error) {
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return url.Parse(link)
	}
	if !strings.HasPrefix(link, "/wiki/") {
		link = "/wiki" + link
	}
	return a.resolveEndpoint(link)
}

// nextLinkEndpoint resolves a v1 _links.next.  Those are relative to the /wiki context path,
// e.g. "/rest/api/space?limit=50&start=50".
func (a *API) nextLinkEndpoint(next string) (*url.URL, error) {
	return a.downloadEndpoint(next)
}

// Do a bit of error checking on endpoint format, and return it relative to the base URI.
func (a *API) resolveEndpoint(endpoint string) (*url.URL, error) {
	baseUri := a.BaseURI

	ref, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("confluence: failed to parse endpoint ref: %w", err)
	}

	return baseUri.ResolveReference(ref), nil
}

func contentPath(id string, rest ...string) string {
	p := "/content/" + url.PathEscape(id)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

// directChildrenPath picks the listing endpoint by the parent's own type: folders have their own,
// everything else is asked as a page.
func directChildrenPath(parentID string, parentType ContentType) string {
	if parentType == FolderContent {
		return fmt.Sprintf("/folders/%s/direct-children", url.PathEscape(parentID))
	}
	return fmt.Sprintf("/pages/%s/direct-children", url.PathEscape(parentID))
}

// nodeCollectionPath is where v2 creates nodes of a given type.
func nodeCollectionPath(t ContentType) (string, error) {
	switch t {
	case FolderContent:
		return "/folders", nil
	case DatabaseContent:
		return "/databases", nil
	case WhiteboardContent:
		return "/whiteboards", nil
	default:
		return "", fmt.Errorf("confluence: %s nodes aren't created through v2", t)
	}
}
