package fakeconfluence

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/toothbrush/confluence-migrate/confluence"
)

const (
	v1 = "/wiki/rest/api"
	v2 = "/wiki/api/v2"
)

func (s *Server) routes() {
	s.mux.HandleFunc("GET "+v1+"/space", s.listSpacesV1)
	s.mux.HandleFunc("POST "+v1+"/space", s.createSpace)
	s.mux.HandleFunc("GET "+v1+"/space/{key}", s.getSpace)
	s.mux.HandleFunc("POST "+v1+"/content", s.createContent)
	s.mux.HandleFunc("GET "+v1+"/content/{id}", s.getContent)
	s.mux.HandleFunc("PUT "+v1+"/content/{id}", s.updateContent)
	s.mux.HandleFunc("POST "+v1+"/content/{id}/label", s.addLabels)
	s.mux.HandleFunc("POST "+v1+"/content/{id}/property", s.createProperty)
	s.mux.HandleFunc("PUT "+v1+"/content/{id}/property/{key}", s.updateProperty)
	s.mux.HandleFunc("GET "+v1+"/content/{id}/child/attachment", s.listAttachments)
	s.mux.HandleFunc("PUT "+v1+"/content/{id}/child/attachment", s.uploadAttachment)
	s.mux.HandleFunc("GET "+v1+"/content/{id}/child/comment", s.listComments)
	s.mux.HandleFunc("POST "+v1+"/content/{id}/likes", s.like)
	s.mux.HandleFunc("GET /wiki/download/attachments/{page}/{name}", s.download)

	s.mux.HandleFunc("GET "+v2+"/spaces", s.listSpacesV2)
	s.mux.HandleFunc("GET "+v2+"/pages/{id}/direct-children", s.directChildren)
	s.mux.HandleFunc("GET "+v2+"/folders/{id}/direct-children", s.directChildren)
	s.mux.HandleFunc("POST "+v2+"/folders", s.createNode("folder"))
	s.mux.HandleFunc("POST "+v2+"/databases", s.createNode("database"))
	s.mux.HandleFunc("POST "+v2+"/whiteboards", s.createNode("whiteboard"))
	s.mux.HandleFunc("POST "+v2+"/folders/{id}/properties", s.createProperty)
	s.mux.HandleFunc("GET "+v2+"/embeds/{id}", s.getEmbed)
	s.mux.HandleFunc("GET "+v2+"/pages/{id}/likes/count", s.likeCount)
}

func (s *Server) listSpacesV1(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.mu.Lock()
	var matching []confluence.SpaceV1
	for _, sp := range s.spaces {
		if t := q.Get("type"); t != "" && t != sp.Type {
			continue
		}
		matching = append(matching, spaceV1(sp))
	}
	s.mu.Unlock()

	page, next := window(matching, intParam(q, "start", 0), intParam(q, "limit", 25))
	resp := confluence.MultiResponse[confluence.SpaceV1]{Results: page, Start: intParam(q, "start", 0), Size: len(page)}
	if next >= 0 {
		// v1 next links are relative to the /wiki context path
		q.Set("start", strconv.Itoa(next))
		resp.Links.Next = "/rest/api/space?" + q.Encode()
	}
	writeJSON(w, http.StatusOK, resp)
}

func spaceV1(sp *Space) confluence.SpaceV1 {
	out := confluence.SpaceV1{
		ID:     json.Number(sp.ID),
		Key:    sp.Key,
		Name:   sp.Name,
		Type:   sp.Type,
		Status: "current",
		Description: &confluence.PlainDescription{
			Plain: confluence.Storage{Value: sp.Description, Representation: "plain"},
		},
	}
	if sp.HomepageID != "" {
		out.Homepage = &confluence.ContentRef{ID: sp.HomepageID}
	}
	return out
}

func (s *Server) createSpace(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Key         string                      `json:"key"`
		Name        string                      `json:"name"`
		Description confluence.PlainDescription `json:"description"`
	}
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.space(in.Key) != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("A space with key %s already exists", in.Key))
		return
	}
	sp := s.addSpace(in.Key, in.Name, "global", in.Description.Plain.Value, true)
	writeJSON(w, http.StatusOK, spaceV1(sp))
}

func (s *Server) getSpace(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp := s.space(r.PathValue("key"))
	if sp == nil {
		writeError(w, http.StatusNotFound, "No space with key : "+r.PathValue("key"))
		return
	}
	writeJSON(w, http.StatusOK, spaceV1(sp))
}

func (s *Server) listSpacesV2(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var keys map[string]bool
	if k := q.Get("keys"); k != "" {
		keys = make(map[string]bool)
		for _, key := range strings.Split(k, ",") {
			keys[key] = true
		}
	}

	type v2Space struct {
		ID          string                       `json:"id"`
		Key         string                       `json:"key"`
		Name        string                       `json:"name"`
		Type        string                       `json:"type"`
		Status      string                       `json:"status"`
		Description *confluence.PlainDescription `json:"description,omitempty"`
	}

	s.mu.Lock()
	var matching []v2Space
	for _, sp := range s.spaces {
		if keys != nil && !keys[sp.Key] {
			continue
		}
		matching = append(matching, v2Space{
			ID:     sp.ID,
			Key:    sp.Key,
			Name:   sp.Name,
			Type:   sp.Type,
			Status: "current",
		})
	}
	s.mu.Unlock()

	page, next := window(matching, cursorOffset(q), intParam(q, "limit", 25))
	resp := confluence.MultiResponse[v2Space]{Results: page}
	if next >= 0 {
		resp.Links.Next = nextCursorLink(r, next)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) directChildren(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	q := r.URL.Query()

	s.mu.Lock()
	parent, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "parent not found")
		return
	}
	wantFolder := strings.HasPrefix(r.URL.Path, v2+"/folders/")
	if wantFolder != (parent.Type == "folder") {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s %s is not reachable through this endpoint", parent.Type, id))
		return
	}

	var children []confluence.DirectChild
	for _, it := range s.sorted() {
		if it.ParentID != id || it.Type == "attachment" || it.Type == "comment" {
			continue
		}
		children = append(children, confluence.DirectChild{
			ID:                  it.ID,
			Status:              "current",
			Title:               it.Title,
			Type:                it.Type,
			ChildPosition:       it.seq,
			EmojiTitlePublished: it.Emoji,
		})
	}
	s.mu.Unlock()

	page, next := window(children, cursorOffset(q), intParam(q, "limit", 25))
	resp := confluence.MultiResponse[confluence.DirectChild]{Results: page}
	if next >= 0 {
		resp.Links.Next = nextCursorLink(r, next)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) content(it *Item, expand string) confluence.Content {
	c := confluence.Content{
		ID:      it.ID,
		Type:    it.Type,
		Status:  "current",
		Title:   it.Title,
		Version: &confluence.Version{Number: it.Version},
	}
	if it.SpaceKey != "" {
		c.Space = &confluence.SpaceRef{Key: it.SpaceKey}
	}
	if strings.Contains(expand, "body.storage") {
		b := confluence.StorageBody(it.Body)
		c.Body = &b
	}
	if strings.Contains(expand, "ancestors") {
		for _, a := range it.Ancestors {
			c.Ancestors = append(c.Ancestors, confluence.ContentRef{ID: a})
		}
	}
	if strings.Contains(expand, "metadata") {
		c.Metadata = &confluence.Metadata{MediaType: it.MediaType}
		if len(it.Labels) > 0 {
			c.Metadata.Labels = &confluence.LabelList{}
			for _, l := range it.Labels {
				c.Metadata.Labels.Results = append(c.Metadata.Labels.Results, confluence.Label{Prefix: "global", Name: l})
			}
		}
		if len(it.Properties) > 0 {
			c.Metadata.Properties = make(map[string]confluence.Property)
			for k, v := range it.Properties {
				c.Metadata.Properties[k] = confluence.Property{Key: k, Value: v}
			}
		}
	}
	if it.Type == "attachment" {
		c.Links.Download = fmt.Sprintf("/download/attachments/%s/%s?version=%d&api=v2", it.ParentID, url.PathEscape(it.Title), it.Version)
	}
	return c
}

func (s *Server) getContent(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "No content found with id: "+r.PathValue("id"))
		return
	}
	writeJSON(w, http.StatusOK, s.content(it, r.URL.Query().Get("expand")))
}

func (s *Server) createContent(w http.ResponseWriter, r *http.Request) {
	var in confluence.ContentCreate
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch in.Type {
	case "page":
		if in.Space == nil || s.space(in.Space.Key) == nil {
			writeError(w, http.StatusBadRequest, "space is required")
			return
		}
		for _, it := range s.items {
			if it.Type == "page" && it.SpaceKey == in.Space.Key && it.Title == in.Title {
				writeError(w, http.StatusBadRequest, "A page with this title already exists: "+in.Title)
				return
			}
		}
		parent := s.space(in.Space.Key).HomepageID
		if len(in.Ancestors) > 0 {
			parent = in.Ancestors[len(in.Ancestors)-1].ID
			if _, ok := s.items[parent]; !ok {
				writeError(w, http.StatusBadRequest, "ancestor not found: "+parent)
				return
			}
		}
		it := &Item{
			ID:       s.newID(),
			Type:     "page",
			Title:    in.Title,
			SpaceKey: in.Space.Key,
			ParentID: parent,
			Body:     in.Body.Storage.Value,
			Version:  1,
		}
		s.store(it)
		writeJSON(w, http.StatusOK, s.content(it, "body.storage"))

	case "comment":
		if in.Container == nil {
			writeError(w, http.StatusBadRequest, "container is required")
			return
		}
		page, ok := s.items[in.Container.ID]
		if !ok {
			writeError(w, http.StatusBadRequest, "container not found")
			return
		}
		it := &Item{
			ID:       s.newID(),
			Type:     "comment",
			SpaceKey: page.SpaceKey,
			ParentID: page.ID,
			Body:     in.Body.Storage.Value,
			Version:  1,
		}
		if len(in.Ancestors) > 0 {
			parent, ok := s.items[in.Ancestors[len(in.Ancestors)-1].ID]
			if !ok || parent.Type != "comment" {
				writeError(w, http.StatusBadRequest, "parent comment not found")
				return
			}
			it.Ancestors = append(append([]string{}, parent.Ancestors...), parent.ID)
		}
		s.store(it)
		writeJSON(w, http.StatusOK, s.content(it, "body.storage,ancestors"))

	default:
		writeError(w, http.StatusBadRequest, "unsupported content type "+in.Type)
	}
}

func (s *Server) updateContent(w http.ResponseWriter, r *http.Request) {
	var in confluence.ContentUpdate
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "No content found with id: "+r.PathValue("id"))
		return
	}
	if in.Version.Number != it.Version+1 {
		writeError(w, http.StatusConflict, fmt.Sprintf("Version must be incremented on update. Current version is: %d", it.Version))
		return
	}
	it.Version = in.Version.Number
	it.Title = in.Title
	it.Body = in.Body.Storage.Value
	writeJSON(w, http.StatusOK, s.content(it, "body.storage"))
}

func (s *Server) addLabels(w http.ResponseWriter, r *http.Request) {
	var in []confluence.Label
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "content not found")
		return
	}
	for _, l := range in {
		it.Labels = append(it.Labels, l.Name)
	}
	writeJSON(w, http.StatusOK, confluence.MultiResponse[confluence.Label]{Results: in})
}

func (s *Server) createProperty(w http.ResponseWriter, r *http.Request) {
	var in confluence.Property
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "content not found")
		return
	}
	if _, exists := it.Properties[in.Key]; exists {
		writeError(w, http.StatusConflict, "property already exists: "+in.Key)
		return
	}
	it.Properties[in.Key] = in.Value
	writeJSON(w, http.StatusOK, in)
}

func (s *Server) updateProperty(w http.ResponseWriter, r *http.Request) {
	var in confluence.Property
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "content not found")
		return
	}
	it.Properties[r.PathValue("key")] = in.Value
	writeJSON(w, http.StatusOK, in)
}

func (s *Server) listAttachments(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	q := r.URL.Query()

	s.mu.Lock()
	var all []confluence.Content
	for _, it := range s.sorted() {
		if it.ParentID == id && it.Type == "attachment" {
			all = append(all, s.content(it, q.Get("expand")))
		}
	}
	s.mu.Unlock()

	start := intParam(q, "start", 0)
	page, next := window(all, start, intParam(q, "limit", 25))
	resp := confluence.MultiResponse[confluence.Content]{Results: page, Start: start, Size: len(page)}
	if next >= 0 {
		q.Set("start", strconv.Itoa(next))
		resp.Links.Next = fmt.Sprintf("/rest/api/content/%s/child/attachment?%s", id, q.Encode())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) uploadAttachment(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Atlassian-Token") != "no-check" {
		writeError(w, http.StatusForbidden, "XSRF check failed")
		return
	}
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var filename, mediaType string
	var data []byte
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if part.FormName() == "file" {
			filename = part.FileName()
			mediaType = part.Header.Get("Content-Type")
			data, _ = io.ReadAll(part)
		}
	}
	if filename == "" {
		writeError(w, http.StatusBadRequest, "no file part")
		return
	}

	pageID := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	page, ok := s.items[pageID]
	if !ok {
		writeError(w, http.StatusNotFound, "content not found")
		return
	}

	var att *Item
	for _, it := range s.items {
		if it.ParentID == pageID && it.Type == "attachment" && it.Title == filename {
			att = it
		}
	}
	if att != nil {
		att.Version++
		att.Data = data
		att.MediaType = mediaType
	} else {
		att = &Item{
			ID:        "att" + s.newID(),
			Type:      "attachment",
			Title:     filename,
			SpaceKey:  page.SpaceKey,
			ParentID:  pageID,
			MediaType: mediaType,
			Data:      data,
			Version:   1,
		}
		s.store(att)
	}
	writeJSON(w, http.StatusOK, confluence.MultiResponse[confluence.Content]{
		Results: []confluence.Content{s.content(att, "version,metadata")},
		Size:    1,
	})
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	pageID, name := r.PathValue("page"), r.PathValue("name")

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.ParentID == pageID && it.Type == "attachment" && it.Title == name {
			w.Header().Set("Content-Type", it.MediaType)
			_, _ = w.Write(it.Data)
			return
		}
	}
	http.NotFound(w, r)
}

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	q := r.URL.Query()
	all := q.Get("depth") == "all"

	s.mu.Lock()
	var comments []confluence.Content
	for _, it := range s.sorted() {
		if it.ParentID != id || it.Type != "comment" {
			continue
		}
		if !all && len(it.Ancestors) > 0 {
			continue
		}
		comments = append(comments, s.content(it, q.Get("expand")))
	}
	s.mu.Unlock()

	page, _ := window(comments, intParam(q, "start", 0), intParam(q, "limit", 25))
	writeJSON(w, http.StatusOK, confluence.MultiResponse[confluence.Content]{Results: page, Size: len(page)})
}

func (s *Server) like(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "content not found")
		return
	}
	it.Likes++
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": it.ID})
}

func (s *Server) likeCount(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "page not found")
		return
	}
	writeJSON(w, http.StatusOK, confluence.LikeCount{Count: it.Likes})
}

func (s *Server) createNode(nodeType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in confluence.NodeCreate
		if err := readJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		sp := s.spaceByID(in.SpaceID)
		if sp == nil {
			writeError(w, http.StatusBadRequest, "unknown spaceId "+in.SpaceID)
			return
		}
		parent := in.ParentID
		if parent == "" {
			parent = sp.HomepageID
		} else if _, ok := s.items[parent]; !ok {
			writeError(w, http.StatusBadRequest, "unknown parentId "+parent)
			return
		}

		it := &Item{
			ID:       s.newID(),
			Type:     nodeType,
			Title:    in.Title,
			SpaceKey: sp.Key,
			ParentID: parent,
			Emoji:    in.EmojiTitlePublished,
			Version:  1,
		}
		s.store(it)
		writeJSON(w, http.StatusOK, confluence.Node{
			ID:       it.ID,
			Type:     nodeType,
			Status:   "current",
			Title:    it.Title,
			SpaceID:  sp.ID,
			ParentID: parent,
		})
	}
}

func (s *Server) getEmbed(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[r.PathValue("id")]
	if !ok || it.Type != "embed" {
		writeError(w, http.StatusNotFound, "embed not found")
		return
	}
	writeJSON(w, http.StatusOK, confluence.Node{
		ID:       it.ID,
		Type:     "embed",
		Status:   "current",
		Title:    it.Title,
		ParentID: it.ParentID,
		EmbedURL: it.EmbedURL,
	})
}
