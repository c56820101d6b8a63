package confluence

// MultiResponse is the envelope of every listing on either surface.
type MultiResponse[T any] struct {
	Results []T `json:"results"`

	// v1 only
	Start int `json:"start,omitempty"`
	Limit int `json:"limit,omitempty"`
	Size  int `json:"size,omitempty"`

	Links struct {
		// Contains the relative URL for the next set of results, using a cursor query
		// parameter. This property will not be present if there is no additional data available.
		Next string `json:"next"`
	} `json:"_links"`
}

// uploadResponse covers both shapes PUT /child/attachment is known to return: a listing wrapper
// for fresh uploads, or the bare object.
type uploadResponse struct {
	Content
	Results []Content `json:"results"`
}

func (u uploadResponse) first() Content {
	if len(u.Results) > 0 {
		return u.Results[0]
	}
	return u.Content
}
