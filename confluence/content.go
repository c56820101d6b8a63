package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// ContentCreate is the v1 creation payload used for pages and comments.
// https://developer.atlassian.com/cloud/confluence/rest/v1/api-group-content/#api-wiki-rest-api-content-post
type ContentCreate struct {
	Type      string        `json:"type"`
	Title     string        `json:"title,omitempty"`
	Space     *SpaceRef     `json:"space,omitempty"`
	Container *ContainerRef `json:"container,omitempty"`
	Ancestors []ContentRef  `json:"ancestors,omitempty"`
	Body      Body          `json:"body"`
}

// ContentUpdate is the v1 PUT payload; Version must be one more than the current version.
type ContentUpdate struct {
	Version VersionRef `json:"version"`
	Title   string     `json:"title"`
	Type    string     `json:"type"`
	Body    Body       `json:"body"`
}

// NodeCreate is the v2 creation payload for folders, databases and whiteboards.
type NodeCreate struct {
	SpaceID             string          `json:"spaceId"`
	Title               string          `json:"title"`
	ParentID            string          `json:"parentId,omitempty"`
	EmojiTitlePublished json.RawMessage `json:"emojiTitlePublished,omitempty"`
}

type spaceCreate struct {
	Key         string           `json:"key"`
	Name        string           `json:"name"`
	Description PlainDescription `json:"description"`
}

// CreateSpace creates a global space through v1.
func (api *API) CreateSpace(ctx context.Context, key, name, description string) (*SpaceV1, error) {
	payload := spaceCreate{
		Key:  key,
		Name: name,
		Description: PlainDescription{
			Plain: Storage{Value: description, Representation: "plain"},
		},
	}

	var space SpaceV1
	if err := api.Post(ctx, V1, "/space", payload, &space); err != nil {
		return nil, fmt.Errorf("confluence: couldn't create space %s: %w", key, err)
	}
	return &space, nil
}

// SpaceByKey fetches a space with its homepage reference expanded.
func (api *API) SpaceByKey(ctx context.Context, key string) (*SpaceV1, error) {
	path, err := withQuery("/space/"+url.PathEscape(key), ContentQuery{Expand: []string{"homepage"}})
	if err != nil {
		return nil, err
	}

	var space SpaceV1
	if err := api.Get(ctx, V1, path, &space); err != nil {
		return nil, fmt.Errorf("confluence: couldn't get space %s: %w", key, err)
	}
	return &space, nil
}

// SpaceIDByKey resolves the v2 (numeric) space id that folder/database/whiteboard creation wants.
// It returns "" without error when no space matches.
func (api *API) SpaceIDByKey(ctx context.Context, key string) (string, error) {
	path, err := withQuery("/spaces", SpacesQuery{Keys: []string{key}, Limit: 1})
	if err != nil {
		return "", err
	}

	var spaces MultiResponse[spaceV2]
	if err := api.Get(ctx, V2, path, &spaces); err != nil {
		return "", fmt.Errorf("confluence: couldn't look up space id for %s: %w", key, err)
	}
	if len(spaces.Results) == 0 {
		return "", nil
	}
	return spaces.Results[0].ID, nil
}

// Ping performs the cheapest authenticated call there is.
func (api *API) Ping(ctx context.Context) error {
	path, err := withQuery("/space", LegacySpacesQuery{Limit: 1})
	if err != nil {
		return err
	}
	return api.Get(ctx, V1, path, nil)
}

// GetContent fetches one v1 content object with the given expansions.
func (api *API) GetContent(ctx context.Context, id string, expand ...string) (*Content, error) {
	path, err := withQuery(contentPath(id), ContentQuery{Expand: expand})
	if err != nil {
		return nil, err
	}

	var content Content
	if err := api.Get(ctx, V1, path, &content); err != nil {
		return nil, err
	}
	return &content, nil
}

func (api *API) CreateContent(ctx context.Context, payload ContentCreate) (*Content, error) {
	var created Content
	if err := api.Post(ctx, V1, "/content", payload, &created); err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, fmt.Errorf("confluence: created %s has no id", payload.Type)
	}
	return &created, nil
}

func (api *API) UpdateContent(ctx context.Context, id string, payload ContentUpdate) (*Content, error) {
	var updated Content
	if err := api.Put(ctx, V1, contentPath(id), payload, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// CreateNode creates a folder, database or whiteboard through v2.
func (api *API) CreateNode(ctx context.Context, t ContentType, payload NodeCreate) (*Node, error) {
	path, err := nodeCollectionPath(t)
	if err != nil {
		return nil, err
	}

	var created Node
	if err := api.Post(ctx, V2, path, payload, &created); err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, fmt.Errorf("confluence: created %s has no id", t)
	}
	return &created, nil
}

// GetEmbed fetches a smart-link node, which is the only place its URL lives.
func (api *API) GetEmbed(ctx context.Context, id string) (*Node, error) {
	var embed Node
	if err := api.Get(ctx, V2, "/embeds/"+url.PathEscape(id), &embed); err != nil {
		return nil, err
	}
	return &embed, nil
}

// AddLabels attaches global labels in one call.
func (api *API) AddLabels(ctx context.Context, id string, names []string) error {
	labels := make([]Label, 0, len(names))
	for _, n := range names {
		labels = append(labels, Label{Prefix: "global", Name: n})
	}
	return api.Post(ctx, V1, contentPath(id, "label"), labels, nil)
}

// CreateContentProperty sets a property on v1 content; it fails if the key already exists.
func (api *API) CreateContentProperty(ctx context.Context, id, key string, value json.RawMessage) error {
	return api.Post(ctx, V1, contentPath(id, "property"), Property{Key: key, Value: value}, nil)
}

// UpdateContentProperty overwrites a property at the given version.
func (api *API) UpdateContentProperty(ctx context.Context, id, key string, value json.RawMessage, version int) error {
	payload := Property{Key: key, Value: value, Version: &VersionRef{Number: version}}
	return api.Put(ctx, V1, contentPath(id, "property", url.PathEscape(key)), payload, nil)
}

// CreateFolderProperty sets a property on a v2 folder.
func (api *API) CreateFolderProperty(ctx context.Context, id, key string, value json.RawMessage) error {
	path := fmt.Sprintf("/folders/%s/properties", url.PathEscape(id))
	return api.Post(ctx, V2, path, Property{Key: key, Value: value}, nil)
}

// Attachments lists one window of a page's attachments.
func (api *API) Attachments(ctx context.Context, pageID string, start, limit int) (*MultiResponse[Content], error) {
	path, err := withQuery(contentPath(pageID, "child", "attachment"), ChildContentQuery{
		Expand: []string{"version", "metadata"},
		Start:  start,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}

	var attachments MultiResponse[Content]
	if err := api.Get(ctx, V1, path, &attachments); err != nil {
		return nil, err
	}
	return &attachments, nil
}

// Comments returns every comment on a page, threaded ones included, with bodies and ancestors.
func (api *API) Comments(ctx context.Context, pageID string, limit int) ([]Content, error) {
	path, err := withQuery(contentPath(pageID, "child", "comment"), ChildContentQuery{
		Expand: []string{"body.storage", "ancestors"},
		Depth:  "all",
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}

	var comments MultiResponse[Content]
	if err := api.Get(ctx, V1, path, &comments); err != nil {
		return nil, err
	}
	return comments.Results, nil
}

// LikeCount reads how many people liked a page.
func (api *API) LikeCount(ctx context.Context, pageID string) (int, error) {
	var count LikeCount
	path := fmt.Sprintf("/pages/%s/likes/count", url.PathEscape(pageID))
	if err := api.Get(ctx, V2, path, &count); err != nil {
		return 0, err
	}
	return count.Count, nil
}

// AddLike likes a page as the calling user.
func (api *API) AddLike(ctx context.Context, pageID string) error {
	return api.Post(ctx, V1, contentPath(pageID, "likes"), nil, nil)
}
