// Package fakeconfluence serves the subset of the Confluence Cloud v1 and v2 REST surfaces the
// migration engine talks to, from memory.  Tests build a source tree with the Add* helpers, point
// a confluence.API at the server and inspect what got created through Item and Requests.
package fakeconfluence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/toothbrush/confluence-migrate/confluence"
)

// Item is any stored node: pages, folders, databases, whiteboards, embeds, attachments and
// comments all share this record.
type Item struct {
	ID         string
	Type       string
	Title      string
	SpaceKey   string
	ParentID   string
	Body       string
	Version    int
	Labels     []string
	Properties map[string]json.RawMessage
	Emoji      json.RawMessage
	EmbedURL   string
	Likes      int
	MediaType  string
	Data       []byte

	// comments only: enclosing comment ids, outermost first
	Ancestors []string

	seq int
}

type Space struct {
	ID          string
	Key         string
	Name        string
	Type        string
	Description string
	HomepageID  string
}

// Request is one recorded call, body included.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

type Server struct {
	*httptest.Server

	t   testing.TB
	mux *http.ServeMux

	mu       sync.Mutex
	nextID   int
	seq      int
	spaces   []*Space
	items    map[string]*Item
	requests []Request
	failures map[string]int

	// When set, basic auth must match.
	username, token string
}

type Option func(*Server)

// IDBase makes generated ids start above n, so two fakes in one test hand out distinct ids.
func IDBase(n int) Option {
	return func(s *Server) { s.nextID = n }
}

// Credentials makes the fake reject any request not authenticated as username:token.
func Credentials(username, token string) Option {
	return func(s *Server) {
		s.username = username
		s.token = token
	}
}

// New starts a fake that is shut down when the test ends.
func New(t testing.TB, opts ...Option) *Server {
	s := &Server{
		t:        t,
		mux:      http.NewServeMux(),
		nextID:   100,
		items:    make(map[string]*Item),
		failures: make(map[string]int),
	}
	for _, o := range opts {
		o(s)
	}
	s.routes()
	s.Server = httptest.NewServer(s)
	t.Cleanup(s.Close)
	return s
}

// API returns a client for this fake that believes it talks to domain.
func (s *Server) API(domain string) *confluence.API {
	user, token := s.username, s.token
	if user == "" {
		user, token = "migrator@example.net", "secret"
	}
	return s.APIAs(domain, user, token)
}

// APIAs is API with explicit credentials.
func (s *Server) APIAs(domain, username, token string) *confluence.API {
	api, err := confluence.NewAPI(domain, username, token)
	if err != nil {
		s.t.Fatalf("fakeconfluence: %v", err)
	}
	u, err := url.Parse(s.URL)
	if err != nil {
		s.t.Fatalf("fakeconfluence: %v", err)
	}
	api.BaseURI = u
	api.Client = s.Client()
	return api
}

// Fail makes every request for method and path (e.g. "/wiki/api/v2/databases") answer status.
func (s *Server) Fail(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = status
}

func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]int)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,
	})
	status, failing := s.failures[r.Method+" "+r.URL.Path]
	s.mu.Unlock()

	if failing {
		writeError(w, status, "injected failure")
		return
	}
	if !s.authorised(r) {
		writeError(w, http.StatusUnauthorized, "Client must be authenticated to access this resource.")
		return
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) authorised(r *http.Request) bool {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	if s.username == "" {
		return true
	}
	return user == s.username && pass == s.token
}

// Requests returns the recorded calls matching method and path; an empty path matches all.
func (s *Server) Requests(method, path string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Request
	for _, r := range s.requests {
		if r.Method == method && (path == "" || r.Path == path) {
			out = append(out, r)
		}
	}
	return out
}

// Item returns a copy of the stored item, or nil.
func (s *Server) Item(id string) *Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil
	}
	cp := *it
	return &cp
}

// ItemsOfType lists copies of every item of one type in creation order.
func (s *Server) ItemsOfType(t string) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Item
	for _, it := range s.sorted() {
		if it.Type == t {
			out = append(out, *it)
		}
	}
	return out
}

func (s *Server) SpaceByKey(key string) *Space {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sp := s.space(key); sp != nil {
		cp := *sp
		return &cp
	}
	return nil
}

// AddSpace creates a global space with a homepage and returns the homepage id.
func (s *Server) AddSpace(key, name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addSpace(key, name, "global", "", true).HomepageID
}

// AddPersonalSpace creates a personal space (key usually "~user").
func (s *Server) AddPersonalSpace(key, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addSpace(key, name, "personal", "", true)
}

// AddSpaceWithoutHome creates a space whose homepage has been removed.
func (s *Server) AddSpaceWithoutHome(key, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addSpace(key, name, "global", "", false)
}

func (s *Server) AddPage(spaceKey, parentID, title, body string) string {
	return s.Add(Item{Type: "page", SpaceKey: spaceKey, ParentID: parentID, Title: title, Body: body})
}

func (s *Server) AddFolder(spaceKey, parentID, title string) string {
	return s.Add(Item{Type: "folder", SpaceKey: spaceKey, ParentID: parentID, Title: title})
}

// AddAttachment stores a file on a page and returns the attachment id ("att…").
func (s *Server) AddAttachment(pageID, title, mediaType string, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	parent := s.items[pageID]
	it := &Item{
		ID:        "att" + s.newID(),
		Type:      "attachment",
		Title:     title,
		ParentID:  pageID,
		MediaType: mediaType,
		Data:      data,
		Version:   1,
	}
	if parent != nil {
		it.SpaceKey = parent.SpaceKey
	}
	s.store(it)
	return it.ID
}

// AddComment adds a comment to a page, as a reply to parentCommentID when that isn't empty.
func (s *Server) AddComment(pageID, parentCommentID, body string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := &Item{ID: s.newID(), Type: "comment", ParentID: pageID, Body: body, Version: 1}
	if parent, ok := s.items[parentCommentID]; ok {
		it.Ancestors = append(append([]string{}, parent.Ancestors...), parent.ID)
	}
	s.store(it)
	return it.ID
}

// Add stores an arbitrary item and returns its id.  Version defaults to 1.
func (s *Server) Add(it Item) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it.ID == "" {
		it.ID = s.newID()
	}
	if it.Version == 0 {
		it.Version = 1
	}
	s.store(&it)
	return it.ID
}

// Update changes a stored item in place.
func (s *Server) Update(id string, fn func(*Item)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it, ok := s.items[id]; ok {
		fn(it)
	}
}

// Children returns the copies of every item whose parent is id, in creation order.
func (s *Server) Children(id string) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Item
	for _, it := range s.sorted() {
		if it.ParentID == id {
			out = append(out, *it)
		}
	}
	return out
}

func (s *Server) newID() string {
	s.nextID++
	return strconv.Itoa(s.nextID)
}

func (s *Server) store(it *Item) {
	s.seq++
	it.seq = s.seq
	if it.Properties == nil {
		it.Properties = make(map[string]json.RawMessage)
	}
	s.items[it.ID] = it
}

func (s *Server) sorted() []*Item {
	out := make([]*Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (s *Server) addSpace(key, name, spaceType, description string, withHome bool) *Space {
	sp := &Space{ID: s.newID(), Key: key, Name: name, Type: spaceType, Description: description}
	if withHome {
		home := &Item{ID: s.newID(), Type: "page", Title: name + " Home", SpaceKey: key, Version: 1}
		s.store(home)
		sp.HomepageID = home.ID
	}
	s.spaces = append(s.spaces, sp)
	return sp
}

func (s *Server) space(key string) *Space {
	for _, sp := range s.spaces {
		if sp.Key == key {
			return sp
		}
	}
	return nil
}

func (s *Server) spaceByID(id string) *Space {
	for _, sp := range s.spaces {
		if sp.ID == id {
			return sp
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"statusCode": status,
		"message":    message,
	})
}

func readJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("bad json: %w", err)
	}
	return nil
}

// window cuts items[offset:offset+limit] and reports the next offset, or -1 at the end.
func window[T any](items []T, offset, limit int) ([]T, int) {
	if limit <= 0 {
		limit = 25
	}
	if offset >= len(items) {
		return []T{}, -1
	}
	end := offset + limit
	if end >= len(items) {
		return items[offset:], -1
	}
	return items[offset:end], end
}

func intParam(q url.Values, name string, def int) int {
	v, err := strconv.Atoi(q.Get(name))
	if err != nil {
		return def
	}
	return v
}

func cursorOffset(q url.Values) int {
	c := q.Get("cursor")
	if !strings.HasPrefix(c, "off:") {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimPrefix(c, "off:"))
	if err != nil {
		return 0
	}
	return n
}

// nextCursorLink mirrors how Confluence builds v2 next links: path relative to the site root,
// original query, cursor appended.
func nextCursorLink(r *http.Request, next int) string {
	q := r.URL.Query()
	q.Set("cursor", "off:"+strconv.Itoa(next))
	return r.URL.Path + "?" + q.Encode()
}
