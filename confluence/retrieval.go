package confluence

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// Pagination on v2 hands back _links.next with an opaque cursor; we only ever need the cursor.
var cursorPattern = regexp.MustCompile(`cursor=([^&]+)`)

// NextCursor extracts the cursor from a next link.  An empty result means there is no next page,
// either because the link is missing or because its cursor can't be decoded.
func NextCursor(next string) string {
	if next == "" {
		return ""
	}
	m := cursorPattern.FindStringSubmatch(next)
	if m == nil {
		return ""
	}
	cursor, err := url.QueryUnescape(m[1])
	if err != nil {
		return ""
	}
	return cursor
}

// Paginate walks a v2 listing page by page.  Each iteration yields one page's results; the
// sequence ends after the page without a usable next cursor, or after the first error.  Every
// range over the returned sequence starts again from the first page.
func Paginate[T any](ctx context.Context, api *API, path string) iter.Seq2[[]T, error] {
	return func(yield func([]T, error) bool) {
		cursor := ""
		for {
			p := path
			if cursor != "" {
				sep := "?"
				if strings.Contains(path, "?") {
					sep = "&"
				}
				p = path + sep + "cursor=" + url.QueryEscape(cursor)
			}

			var page MultiResponse[T]
			if err := api.Get(ctx, V2, p, &page); err != nil {
				yield(nil, fmt.Errorf("confluence: couldn't fetch page of %s: %w", path, err))
				return
			}

			if !yield(page.Results, nil) {
				return
			}

			cursor = NextCursor(page.Links.Next)
			if cursor == "" {
				return
			}
		}
	}
}

// PaginateLinks walks a v1 listing by following _links.next verbatim until it disappears.
func PaginateLinks[T any](ctx context.Context, api *API, path string) iter.Seq2[[]T, error] {
	return func(yield func([]T, error) bool) {
		ep, err := api.endpoint(V1, path)
		if err != nil {
			yield(nil, err)
			return
		}
		current := path

		for ep != nil {
			body, err := api.request(ctx, http.MethodGet, V1, current, ep, nil, "")
			if err != nil {
				yield(nil, fmt.Errorf("confluence: couldn't fetch page of %s: %w", path, err))
				return
			}

			var page MultiResponse[T]
			if err := decode(body, &page); err != nil {
				yield(nil, err)
				return
			}

			if !yield(page.Results, nil) {
				return
			}

			if page.Links.Next == "" {
				return
			}
			current = page.Links.Next
			ep, err = api.nextLinkEndpoint(page.Links.Next)
			if err != nil {
				yield(nil, fmt.Errorf("confluence: couldn't parse _links.next: %w", err))
				return
			}
		}
	}
}

// LegacySpaces lists spaces of one type ("global" or "personal") through v1.
func (api *API) LegacySpaces(ctx context.Context, spaceType string) iter.Seq2[[]Space, error] {
	return func(yield func([]Space, error) bool) {
		path, err := withQuery("/space", LegacySpacesQuery{
			Type:   spaceType,
			Status: "current",
			Expand: "description.plain",
			Limit:  50,
		})
		if err != nil {
			yield(nil, err)
			return
		}

		for page, err := range PaginateLinks[SpaceV1](ctx, api, path) {
			if err != nil {
				yield(nil, err)
				return
			}
			spaces := make([]Space, 0, len(page))
			for _, s := range page {
				sp := s.toSpace()
				if sp.Type == "" {
					sp.Type = spaceType
				}
				spaces = append(spaces, sp)
			}
			if !yield(spaces, nil) {
				return
			}
		}
	}
}

// Spaces lists every space visible through v2.
func (api *API) Spaces(ctx context.Context, opts SpacesQuery) iter.Seq2[[]Space, error] {
	return func(yield func([]Space, error) bool) {
		if opts.Limit == 0 {
			opts.Limit = 50
		}
		path, err := withQuery("/spaces", opts)
		if err != nil {
			yield(nil, err)
			return
		}

		for page, err := range Paginate[spaceV2](ctx, api, path) {
			if err != nil {
				yield(nil, err)
				return
			}
			spaces := make([]Space, 0, len(page))
			for _, s := range page {
				sp := Space{
					ID:     s.ID,
					Key:    s.Key,
					Name:   s.Name,
					Type:   s.Type,
					Status: s.Status,
				}
				if sp.Type == "" {
					sp.Type = "global"
				}
				if sp.Status == "" {
					sp.Status = "current"
				}
				if s.Description != nil {
					sp.Description = s.Description.Plain.Value
				}
				spaces = append(spaces, sp)
			}
			if !yield(spaces, nil) {
				return
			}
		}
	}
}

// DirectChildren lists the immediate children of a page or folder, with each child's own type.
func (api *API) DirectChildren(ctx context.Context, parentID string, parentType ContentType, limit int) iter.Seq2[[]DirectChild, error] {
	path, err := withQuery(directChildrenPath(parentID, parentType), DirectChildrenQuery{Limit: limit})
	if err != nil {
		return func(yield func([]DirectChild, error) bool) { yield(nil, err) }
	}
	return Paginate[DirectChild](ctx, api, path)
}
