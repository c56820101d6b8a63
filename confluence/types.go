package confluence

import (
	"encoding/json"
	"fmt"
	"strings"
)

// See https://developer.atlassian.com/cloud/confluence/rest/v2/api-group-space/#api-spaces-get.
// Spaces found through the v1 listing are folded into the same shape.
type Space struct {
	ID          string `json:"id,omitempty"`
	Key         string `json:"key,omitempty"`
	Name        string `json:"name,omitempty"`
	Type        string `json:"type,omitempty"`
	Status      string `json:"status,omitempty"`
	Description string `json:"description,omitempty"`
}

// spaceV2 is the wire shape of https://developer.atlassian.com/cloud/confluence/rest/v2/api-group-space/#api-spaces-get
type spaceV2 struct {
	ID          string            `json:"id"`
	Key         string            `json:"key"`
	Name        string            `json:"name"`
	Type        string            `json:"type"`
	Status      string            `json:"status"`
	Description *PlainDescription `json:"description,omitempty"`
}

// SpaceV1 is what the legacy surface hands back for GET /space/{key}; note the numeric id.
// https://developer.atlassian.com/cloud/confluence/rest/v1/api-group-space/#api-wiki-rest-api-space-spacekey-get
type SpaceV1 struct {
	ID          json.Number       `json:"id,omitempty"`
	Key         string            `json:"key"`
	Name        string            `json:"name"`
	Type        string            `json:"type,omitempty"`
	Status      string            `json:"status,omitempty"`
	Description *PlainDescription `json:"description,omitempty"`
	Homepage    *ContentRef       `json:"homepage,omitempty"`
}

func (s SpaceV1) toSpace() Space {
	out := Space{
		ID:     s.ID.String(),
		Key:    s.Key,
		Name:   s.Name,
		Type:   s.Type,
		Status: s.Status,
	}
	if s.Description != nil {
		out.Description = s.Description.Plain.Value
	}
	return out
}

type PlainDescription struct {
	Plain Storage `json:"plain"`
}

// ContentRef is a bare {id} reference, as used for ancestors and homepages.
type ContentRef struct {
	ID string `json:"id"`
}

type SpaceRef struct {
	Key string `json:"key"`
}

type ContainerRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Content is the v1 content object: pages, comments and attachments all come back like this.
// https://developer.atlassian.com/cloud/confluence/rest/v1/api-group-content/#api-wiki-rest-api-content-id-get
type Content struct {
	ID        string       `json:"id"`
	Type      string       `json:"type,omitempty"`
	Status    string       `json:"status,omitempty"`
	Title     string       `json:"title,omitempty"`
	Space     *SpaceRef    `json:"space,omitempty"`
	Body      *Body        `json:"body,omitempty"`
	Version   *Version     `json:"version,omitempty"`
	Ancestors []ContentRef `json:"ancestors,omitempty"`
	Metadata  *Metadata    `json:"metadata,omitempty"`

	// attachments only
	Extensions *struct {
		MediaType string `json:"mediaType,omitempty"`
		FileSize  int64  `json:"fileSize,omitempty"`
	} `json:"extensions,omitempty"`

	Links Links `json:"_links"`
}

// StorageValue is the body in storage representation, or "" if it wasn't expanded.
func (c Content) StorageValue() string {
	if c.Body == nil {
		return ""
	}
	return c.Body.Storage.Value
}

// LabelNames flattens metadata.labels.
func (c Content) LabelNames() []string {
	if c.Metadata == nil || c.Metadata.Labels == nil {
		return nil
	}
	names := make([]string, 0, len(c.Metadata.Labels.Results))
	for _, l := range c.Metadata.Labels.Results {
		names = append(names, l.Name)
	}
	return names
}

// MediaType of an attachment, from whichever of metadata/extensions carries it.
func (c Content) MediaType() string {
	if c.Metadata != nil && c.Metadata.MediaType != "" {
		return c.Metadata.MediaType
	}
	if c.Extensions != nil {
		return c.Extensions.MediaType
	}
	return ""
}

type Metadata struct {
	Labels     *LabelList          `json:"labels,omitempty"`
	Properties map[string]Property `json:"properties,omitempty"`
	MediaType  string              `json:"mediaType,omitempty"`
}

type LabelList struct {
	Results []Label `json:"results"`
}

type Label struct {
	Prefix string `json:"prefix"`
	Name   string `json:"name"`
}

// Property is a content property.  Values are arbitrary JSON (emoji are strings or objects).
type Property struct {
	Key     string          `json:"key"`
	Value   json.RawMessage `json:"value"`
	Version *VersionRef     `json:"version,omitempty"`
}

type Links struct {
	WebUI    string `json:"webui,omitempty"`
	EditUI   string `json:"editui,omitempty"`
	TinyUI   string `json:"tinyui,omitempty"`
	Download string `json:"download,omitempty"`
	Base     string `json:"base,omitempty"`
	Context  string `json:"context,omitempty"`
	Next     string `json:"next,omitempty"`
}

// Version defines the content version number
// the version number is used for updating content
type Version struct {
	When      string `json:"when,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	Message   string `json:"message,omitempty"`
	Number    int    `json:"number"`
	MinorEdit bool   `json:"minorEdit,omitempty"`
}

type VersionRef struct {
	Number int `json:"number"`
}

// Body holds the storage information
type Body struct {
	Storage        Storage  `json:"storage"`
	AtlasDocFormat *Storage `json:"atlas_doc_format,omitempty"`
	View           *Storage `json:"view,omitempty"`
}

// Storage defines the storage information
type Storage struct {
	Representation string `json:"representation,omitempty"`
	Value          string `json:"value"`
}

// StorageBody wraps markup in the storage representation.
func StorageBody(value string) Body {
	return Body{Storage: Storage{Value: value, Representation: "storage"}}
}

// Node is the v2 shape shared by folders, databases, whiteboards and embeds.
// https://developer.atlassian.com/cloud/confluence/rest/v2/api-group-folder/#api-folders-id-get
type Node struct {
	ID         string `json:"id,omitempty"`
	Type       string `json:"type,omitempty"`
	Status     string `json:"status,omitempty"` // current, archived, deleted, trashed
	Title      string `json:"title,omitempty"`
	SpaceID    string `json:"spaceId,omitempty"`
	ParentID   string `json:"parentId,omitempty"`
	ParentType string `json:"parentType,omitempty"`
	Position   int    `json:"position,omitempty"`
	AuthorID   string `json:"authorId,omitempty"`
	OwnerID    string `json:"ownerId,omitempty"`

	// embeds only
	EmbedURL string `json:"embedUrl,omitempty"`

	Version *Version `json:"version,omitempty"`
}

// DirectChild is one entry of a direct-children listing.  Only Type tells the entries apart.
// https://developer.atlassian.com/cloud/confluence/rest/v2/api-group-children/#api-pages-id-direct-children-get
type DirectChild struct {
	ID                  string          `json:"id"`
	Status              string          `json:"status,omitempty"`
	Title               string          `json:"title"`
	Type                string          `json:"type,omitempty"`
	SpaceID             string          `json:"spaceId,omitempty"`
	ChildPosition       int             `json:"childPosition,omitempty"`
	EmojiTitlePublished json.RawMessage `json:"emojiTitlePublished,omitempty"`
}

type LikeCount struct {
	Count int `json:"count"`
}

// ContentType is the closed set of tree node kinds the engine knows how to recreate.  Anything
// else the API invents lands in OtherContent.
type ContentType int

const (
	PageContent ContentType = iota
	FolderContent
	DatabaseContent
	WhiteboardContent
	EmbedContent
	OtherContent
)

// ParseContentType classifies a declared type.  A missing type means page.
func ParseContentType(s string) ContentType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "page":
		return PageContent
	case "folder":
		return FolderContent
	case "database":
		return DatabaseContent
	case "whiteboard":
		return WhiteboardContent
	case "embed":
		return EmbedContent
	default:
		return OtherContent
	}
}

func (c ContentType) String() string {
	switch c {
	case FolderContent:
		return "folder"
	case DatabaseContent:
		return "database"
	case WhiteboardContent:
		return "whiteboard"
	case EmbedContent:
		return "embed"
	case OtherContent:
		return "other"
	default:
		return "page"
	}
}

// HasChildren reports whether nodes of this type are expanded during discovery.
func (c ContentType) HasChildren() bool {
	return c == PageContent || c == FolderContent
}

func (c ContentType) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ContentType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("confluence: content type must be a string: %w", err)
	}
	*c = ParseContentType(s)
	return nil
}
