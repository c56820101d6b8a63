package migrate

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"strings"

	"github.com/juju/errors"
	"golang.org/x/sync/errgroup"

	"github.com/toothbrush/confluence-migrate/confluence"
	"github.com/toothbrush/confluence-migrate/credentials"
	"github.com/toothbrush/confluence-migrate/kvstore"
)

// ErrNoMigration is returned by operations that need an active job when there is none.
var ErrNoMigration = errors.ConstError("no migration in progress")

// Service is the boundary the CLI drives: one method per job phase, each loading and storing
// what it needs so consecutive calls may come from different processes.
type Service struct {
	Store       kvstore.Store
	Credentials *credentials.Store

	// Dial builds a client from saved credentials; tests and --with-vcr substitute their own.
	Dial func(credentials.Credentials) (*confluence.API, error)

	// Archive is passed on to the Engine.
	Archive PageArchiver
}

func NewService(store kvstore.Store) *Service {
	return &Service{
		Store:       store,
		Credentials: credentials.NewStore(store),
		Dial:        credentials.Dial,
	}
}

func (s *Service) SaveCredentials(ctx context.Context, role credentials.Role, domain, email, token string) error {
	return s.Credentials.Save(ctx, role, credentials.Credentials{Domain: domain, Email: email, APIToken: token})
}

// GetCredentials returns nil when the role has nothing saved.
func (s *Service) GetCredentials(ctx context.Context, role credentials.Role) (*credentials.View, error) {
	return s.Credentials.View(ctx, role)
}

// ConnectionResult says whether a role's credentials work, in words fit for the operator.
type ConnectionResult struct {
	Success   bool   `json:"success"`
	SiteTitle string `json:"siteTitle,omitempty"`
	Error     string `json:"error,omitempty"`
}

// TestConnection makes one cheap authenticated call with a role's saved credentials.
func (s *Service) TestConnection(ctx context.Context, role credentials.Role) ConnectionResult {
	creds, err := s.Credentials.Load(ctx, role)
	if err != nil {
		return ConnectionResult{Error: "No credentials saved."}
	}
	api, err := s.Dial(creds)
	if err != nil {
		return ConnectionResult{Error: err.Error()}
	}

	err = api.Ping(ctx)
	if err == nil {
		return ConnectionResult{Success: true, SiteTitle: api.Domain}
	}

	var apiErr *confluence.APIError
	if !errors.As(err, &apiErr) {
		return ConnectionResult{Error: "Network error: " + err.Error()}
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized:
		return ConnectionResult{Error: "401 — Wrong email or API token."}
	case http.StatusForbidden:
		return ConnectionResult{Error: "403 — No Confluence access."}
	case http.StatusNotFound:
		return ConnectionResult{Error: fmt.Sprintf("404 — %q not found.", api.Domain)}
	}
	return ConnectionResult{Error: fmt.Sprintf("HTTP %d: %s", apiErr.StatusCode, confluence.Clip(apiErr.Body, 200))}
}

func (s *Service) dial(ctx context.Context, role credentials.Role) (*confluence.API, error) {
	creds, err := s.Credentials.Load(ctx, role)
	if err != nil {
		return nil, err
	}
	return s.Dial(creds)
}

func (s *Service) engine(ctx context.Context) (*Engine, error) {
	src, err := s.dial(ctx, credentials.Source)
	if err != nil {
		return nil, fmt.Errorf("credentials not configured: %w", err)
	}
	dst, err := s.dial(ctx, credentials.Destination)
	if err != nil {
		return nil, fmt.Errorf("credentials not configured: %w", err)
	}
	return &Engine{Source: src, Dest: dst, Archive: s.Archive}, nil
}

// ListSpaces enumerates the source spaces through the v1 global and personal listings and the
// v2 listing at once.  Results are merged in that order and deduplicated by key; a listing that
// fails is logged and skipped, and only if all of them fail is that an error.
func (s *Service) ListSpaces(ctx context.Context) ([]confluence.Space, error) {
	api, err := s.dial(ctx, credentials.Source)
	if err != nil {
		return nil, fmt.Errorf("source credentials not configured: %w", err)
	}

	listings := []struct {
		name  string
		fetch func() ([]confluence.Space, error)
	}{
		{"v1 global", func() ([]confluence.Space, error) { return collect(api.LegacySpaces(ctx, "global")) }},
		{"v1 personal", func() ([]confluence.Space, error) { return collect(api.LegacySpaces(ctx, "personal")) }},
		{"v2", func() ([]confluence.Space, error) { return collect(api.Spaces(ctx, confluence.SpacesQuery{})) }},
	}

	results := make([][]confluence.Space, len(listings))
	errs := make([]error, len(listings))
	var g errgroup.Group
	for i, l := range listings {
		g.Go(func() error {
			results[i], errs[i] = l.fetch()
			if errs[i] != nil {
				logger.Warningf("listing spaces (%s): %v", l.name, errs[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
		}
	}
	if failures == len(listings) {
		return nil, fmt.Errorf("listing spaces: %w", errs[0])
	}

	seen := make(map[string]bool)
	var spaces []confluence.Space
	for _, batch := range results {
		for _, sp := range batch {
			if seen[sp.Key] {
				continue
			}
			seen[sp.Key] = true
			spaces = append(spaces, sp)
		}
	}
	return spaces, nil
}

// collect drains a paginated listing.  Pages fetched before a failure are kept.
func collect[T any](seq iter.Seq2[[]T, error]) ([]T, error) {
	var out []T
	for page, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, page...)
	}
	return out, nil
}

// PrepareResult is what PrepareMigration reports; Log is filled even when it fails.
type PrepareResult struct {
	Total int      `json:"total"`
	Log   []string `json:"log"`
}

// PrepareMigration creates the destination space if needed, resolves both homepages and the
// destination space id, discovers the source tree and persists a new job, replacing any previous
// one.  Nothing is persisted when it fails.
func (s *Service) PrepareMigration(ctx context.Context, spaceKey, spaceName, spaceDescription string) (PrepareResult, error) {
	var res PrepareResult
	logf := func(format string, args ...interface{}) {
		res.Log = append(res.Log, fmt.Sprintf(format, args...))
	}
	fail := func(err error) (PrepareResult, error) {
		logf("❌ %v", err)
		return res, err
	}

	if spaceKey == "" {
		return res, errors.NotValidf("empty space key")
	}
	if spaceName == "" {
		spaceName = spaceKey
	}

	e, err := s.engine(ctx)
	if err != nil {
		return res, err
	}

	logf("Creating space %q (%s) on destination…", spaceName, spaceKey)
	if _, err := e.Dest.CreateSpace(ctx, spaceKey, spaceName, spaceDescription); err != nil {
		if !spaceExists(err) {
			return fail(fmt.Errorf("space creation failed: %w", err))
		}
		logf("  ⚠ Space already exists.")
	} else {
		logf("  ✓ Space created.")
	}

	dstSpace, err := e.Dest.SpaceByKey(ctx, spaceKey)
	if err != nil {
		return fail(err)
	}
	if dstSpace.Homepage == nil || dstSpace.Homepage.ID == "" {
		return fail(fmt.Errorf("destination space %s has no homepage", spaceKey))
	}
	logf("  ✓ Destination homepage: %s", dstSpace.Homepage.ID)

	srcSpace, err := e.Source.SpaceByKey(ctx, spaceKey)
	if err != nil {
		return fail(err)
	}
	if srcSpace.Homepage == nil || srcSpace.Homepage.ID == "" {
		return fail(fmt.Errorf("source space has no homepage"))
	}

	dstSpaceID, err := e.Dest.SpaceIDByKey(ctx, spaceKey)
	if err != nil {
		return fail(err)
	}
	if dstSpaceID == "" {
		return fail(fmt.Errorf("cannot resolve destination spaceId for key %s", spaceKey))
	}
	logf("  ✓ Destination spaceId (v2): %s", dstSpaceID)

	logf("Scanning all content (pages, folders, databases, whiteboards)…")
	items, discoveryLog := Discover(ctx, e.Source, srcSpace.Homepage.ID)
	res.Log = append(res.Log, discoveryLog...)
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	logf("%s", Summary(items))
	logger.Debugf("content types in %s: %v", spaceKey, TallyTypes(items))

	state := JobState{
		SpaceKey:   spaceKey,
		SrcDomain:  e.Source.Domain,
		DstDomain:  e.Dest.Domain,
		DstHomeID:  dstSpace.Homepage.ID,
		DstSpaceID: dstSpaceID,
		Items:      items,
		IDMap:      IDMap{},
		Log:        append([]string(nil), res.Log...),
	}
	if err := s.Store.Set(ctx, StateKey, state); err != nil {
		return fail(fmt.Errorf("saving migration state: %w", err))
	}

	res.Total = len(items)
	return res, nil
}

func spaceExists(err error) bool {
	var apiErr *confluence.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusBadRequest || strings.Contains(apiErr.Body, "already exist")
}

// LoadState returns the active job, or ErrNoMigration.
func (s *Service) LoadState(ctx context.Context) (JobState, error) {
	var state JobState
	if err := s.Store.Get(ctx, StateKey, &state); err != nil {
		if errors.Is(err, errors.NotFound) {
			return JobState{}, ErrNoMigration
		}
		return JobState{}, err
	}
	if state.IDMap == nil {
		state.IDMap = IDMap{}
	}
	return state, nil
}

// AdvanceMigration migrates the next batchSize items of the active job and persists the result.
func (s *Service) AdvanceMigration(ctx context.Context, batchSize int) (BatchReport, error) {
	state, err := s.LoadState(ctx)
	if err != nil {
		return BatchReport{}, err
	}
	e, err := s.engine(ctx)
	if err != nil {
		return BatchReport{}, err
	}

	next, report := e.Advance(ctx, state, batchSize)
	// Whatever the batch created must be recorded, even if ctx was cancelled halfway.
	if err := s.Store.Set(context.WithoutCancel(ctx), StateKey, next); err != nil {
		return report, fmt.Errorf("saving migration state: %w", err)
	}
	return report, nil
}

func (s *Service) MigrationStatus(ctx context.Context) (Status, error) {
	state, err := s.LoadState(ctx)
	if errors.Is(err, ErrNoMigration) {
		return Status{Active: false}, nil
	}
	if err != nil {
		return Status{}, err
	}
	return Status{
		Active:   true,
		SpaceKey: state.SpaceKey,
		Progress: state.Progress,
		Total:    state.Total(),
		Percent:  state.Percent(),
		Failed:   len(state.Failed),
	}, nil
}

// FinalizeMigration forgets the active job.  Finalizing when there is none is fine.
func (s *Service) FinalizeMigration(ctx context.Context) error {
	return s.Store.Delete(ctx, StateKey)
}
