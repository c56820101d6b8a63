package confluence

// SpacesQuery defines the query parameters for:
// https://developer.atlassian.com/cloud/confluence/rest/v2/api-group-space/#api-spaces-get
type SpacesQuery struct {
	// Filter the results to spaces based on...
	IDs    []int    `url:"ids,omitempty,comma"`    // their IDs.
	Keys   []string `url:"keys,omitempty,comma"`   // their keys.
	Type   string   `url:"type,omitempty"`         // their types. Valid values: "global" or "personal"
	Status string   `url:"status,omitempty"`       // their status: current, archived.
	Labels []string `url:"labels,omitempty,comma"` // their labels.

	Sort string `url:"sort,omitempty"` // Sort order: id, -id, key, -key, name, -name

	// 'Cursor' is used for pagination; this opaque cursor will be returned in the 'next' URL in the
	// 'Link' response header.  Use the relative URL in the 'Link' header to retrieve the next set
	// of results.
	Cursor string `url:"cursor,omitempty"`
	Limit  int    `url:"limit,omitempty"` // page limit; default 25, range 1-250
}

// LegacySpacesQuery defines the query parameters for the v1 listing:
// https://developer.atlassian.com/cloud/confluence/rest/v1/api-group-space/#api-wiki-rest-api-space-get
//
// This one pages by start/limit and hands back a ready-made _links.next.
type LegacySpacesQuery struct {
	Type   string `url:"type,omitempty"`   // global, personal
	Status string `url:"status,omitempty"` // current, archived
	Expand string `url:"expand,omitempty"`
	Start  int    `url:"start,omitempty"`
	Limit  int    `url:"limit,omitempty"`
}

// DirectChildrenQuery defines the query parameters for both
// https://developer.atlassian.com/cloud/confluence/rest/v2/api-group-children/#api-pages-id-direct-children-get
// and the folder equivalent.
type DirectChildrenQuery struct {
	Cursor string `url:"cursor,omitempty"`
	Limit  int    `url:"limit,omitempty"` // default 25, range 1-250
	Sort   string `url:"sort,omitempty"`
}

// ContentQuery defines the query parameters for v1 GET /content/{id}:
// https://developer.atlassian.com/cloud/confluence/rest/v1/api-group-content/#api-wiki-rest-api-content-id-get
type ContentQuery struct {
	Expand []string `url:"expand,omitempty,comma"`
	Status string   `url:"status,omitempty"`
}

// ChildContentQuery defines the query parameters for v1 GET /content/{id}/child/{type}, which is
// how attachments and comments are listed.
type ChildContentQuery struct {
	Expand []string `url:"expand,omitempty,comma"`
	Depth  string   `url:"depth,omitempty"` // comments only: "all" or "root"
	Start  int      `url:"start,omitempty"`
	Limit  int      `url:"limit,omitempty"`
}
