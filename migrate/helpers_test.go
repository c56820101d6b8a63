package migrate_test

import (
	"context"
	"fmt"
	"strings"

	qt "github.com/frankban/quicktest"

	"github.com/toothbrush/confluence-migrate/confluence"
	"github.com/toothbrush/confluence-migrate/credentials"
	"github.com/toothbrush/confluence-migrate/internal/fakeconfluence"
	"github.com/toothbrush/confluence-migrate/kvstore"
	"github.com/toothbrush/confluence-migrate/migrate"
)

const (
	srcDomain = "src.example.net"
	dstDomain = "dst.example.net"
)

// env is a source and destination site plus a service wired to both.
type env struct {
	src  *fakeconfluence.Server
	dst  *fakeconfluence.Server
	kv   kvstore.Store
	svc  *migrate.Service
	home string
}

func newEnv(c *qt.C) *env {
	return newEnvWithStore(c, kvstore.NewMemory())
}

func newEnvWithStore(c *qt.C, store kvstore.Store) *env {
	e := &env{
		src: fakeconfluence.New(c, fakeconfluence.IDBase(1000)),
		dst: fakeconfluence.New(c, fakeconfluence.IDBase(5000)),
		kv:  store,
	}
	e.svc = migrate.NewService(e.kv)
	e.svc.Dial = func(creds credentials.Credentials) (*confluence.API, error) {
		switch creds.Domain {
		case srcDomain:
			return e.src.API(srcDomain), nil
		case dstDomain:
			return e.dst.API(dstDomain), nil
		}
		return nil, fmt.Errorf("no fake for %s", creds.Domain)
	}

	ctx := context.Background()
	c.Assert(e.svc.SaveCredentials(ctx, credentials.Source, "https://"+srcDomain+"/", "me@example.net", "tok"), qt.IsNil)
	c.Assert(e.svc.SaveCredentials(ctx, credentials.Destination, dstDomain, "me@example.net", "tok"), qt.IsNil)

	e.home = e.src.AddSpace("ENG", "Engineering")
	return e
}

func (e *env) prepare(c *qt.C) migrate.PrepareResult {
	res, err := e.svc.PrepareMigration(context.Background(), "ENG", "Engineering", "copied")
	c.Assert(err, qt.IsNil, qt.Commentf("%s", strings.Join(res.Log, "\n")))
	return res
}

func (e *env) state(c *qt.C) migrate.JobState {
	state, err := e.svc.LoadState(context.Background())
	c.Assert(err, qt.IsNil)
	return state
}

// advanceAll advances with the given batch sizes, then with the last size until done.
func (e *env) advanceAll(c *qt.C, sizes ...int) []migrate.BatchReport {
	var reports []migrate.BatchReport
	for i := 0; ; i++ {
		size := sizes[min(i, len(sizes)-1)]
		report, err := e.svc.AdvanceMigration(context.Background(), size)
		c.Assert(err, qt.IsNil)
		reports = append(reports, report)
		if report.Done {
			return reports
		}
		c.Assert(i < 1000, qt.IsTrue, qt.Commentf("migration never finished"))
	}
}

func (e *env) dstHome(c *qt.C) string {
	sp := e.dst.SpaceByKey("ENG")
	c.Assert(sp, qt.Not(qt.IsNil))
	return sp.HomepageID
}

// dstChild finds the destination item with the given title.
func (e *env) dstItem(c *qt.C, itemType, title string) fakeconfluence.Item {
	for _, it := range e.dst.ItemsOfType(itemType) {
		if it.Title == title {
			return it
		}
	}
	c.Fatalf("no %s titled %q on destination", itemType, title)
	return fakeconfluence.Item{}
}

func hasLine(log []string, substr string) bool {
	for _, l := range log {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}
