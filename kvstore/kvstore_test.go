package kvstore_test

import (
	"context"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/juju/errors"

	"github.com/toothbrush/confluence-migrate/kvstore"
)

type record struct {
	Name  string            `json:"name"`
	Count int               `json:"count"`
	Map   map[string]string `json:"map"`
}

func stores(c *qt.C) map[string]kvstore.Store {
	sqlite, err := kvstore.OpenSQLite(filepath.Join(c.TempDir(), "state", "kv.db"))
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { sqlite.Close() })
	return map[string]kvstore.Store{
		"memory": kvstore.NewMemory(),
		"sqlite": sqlite,
	}
}

func TestStores(t *testing.T) {
	c := qt.New(t)
	for name, store := range stores(c) {
		c.Run(name, func(c *qt.C) {
			ctx := context.Background()

			var got record
			err := store.Get(ctx, "migration_state", &got)
			c.Assert(errors.Is(err, errors.NotFound), qt.IsTrue, qt.Commentf("%v", err))

			want := record{Name: "ENG", Count: 3, Map: map[string]string{"1": "9"}}
			c.Assert(store.Set(ctx, "migration_state", want), qt.IsNil)
			c.Assert(store.Get(ctx, "migration_state", &got), qt.IsNil)
			c.Assert(got, qt.DeepEquals, want)

			want.Count = 4
			c.Assert(store.Set(ctx, "migration_state", want), qt.IsNil)
			got = record{}
			c.Assert(store.Get(ctx, "migration_state", &got), qt.IsNil)
			c.Assert(got.Count, qt.Equals, 4)

			c.Assert(store.Delete(ctx, "migration_state"), qt.IsNil)
			c.Assert(store.Delete(ctx, "migration_state"), qt.IsNil)
			err = store.Get(ctx, "migration_state", &got)
			c.Assert(errors.Is(err, errors.NotFound), qt.IsTrue)
		})
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	path := filepath.Join(c.TempDir(), "kv.db")

	s, err := kvstore.OpenSQLite(path)
	c.Assert(err, qt.IsNil)
	c.Assert(s.Set(ctx, "creds_source", record{Name: "src"}), qt.IsNil)
	c.Assert(s.Close(), qt.IsNil)

	s, err = kvstore.OpenSQLite(path)
	c.Assert(err, qt.IsNil)
	defer s.Close()
	var got record
	c.Assert(s.Get(ctx, "creds_source", &got), qt.IsNil)
	c.Assert(got.Name, qt.Equals, "src")
}
