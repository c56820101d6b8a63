package migrate_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/toothbrush/confluence-migrate/confluence"
	"github.com/toothbrush/confluence-migrate/internal/fakeconfluence"
	"github.com/toothbrush/confluence-migrate/migrate"
)

func TestMigrateTree(t *testing.T) {
	c := qt.New(t)
	e := newEnv(c)

	// home
	// ├── A (folder)
	// │   └── B (page)
	// └── C (page)
	a := e.src.AddFolder("ENG", e.home, "A")
	cPage := e.src.AddPage("ENG", e.home, "C", "<p>see https://src.example.net/wiki/spaces/ENG</p>")
	b := e.src.AddPage("ENG", a, "B", "<p>child of a folder</p>")

	res := e.prepare(c)
	c.Assert(res.Total, qt.Equals, 3)
	c.Assert(hasLine(res.Log, "  ✓ Space created."), qt.IsTrue)
	c.Assert(hasLine(res.Log, "  ✓ Found 3 items: 2 pages, 1 folders, 0 databases, 0 whiteboards, 0 embeds"), qt.IsTrue)

	state := e.state(c)
	c.Assert(state.DstHomeID, qt.Equals, e.dstHome(c))
	c.Assert(state.DstSpaceID, qt.Equals, e.dst.SpaceByKey("ENG").ID)
	var order []string
	for _, it := range state.Items {
		order = append(order, it.ID)
	}
	c.Assert(order, qt.DeepEquals, []string{a, cPage, b})
	c.Assert(state.Items[2].ParentID, qt.Equals, a)

	report, err := e.svc.AdvanceMigration(context.Background(), 2)
	c.Assert(err, qt.IsNil)
	c.Assert(report.Progress, qt.Equals, 2)
	c.Assert(report.Done, qt.IsFalse)
	c.Assert(report.Percent, qt.Equals, 67)
	c.Assert(report.Log[0], qt.Equals, `[1/3] 📁 [folder] "A"`)

	report, err = e.svc.AdvanceMigration(context.Background(), 2)
	c.Assert(err, qt.IsNil)
	c.Assert(report.Progress, qt.Equals, 3)
	c.Assert(report.Done, qt.IsTrue)
	c.Assert(report.Log[len(report.Log)-1], qt.Equals, "✅ All 3 items migrated!")

	state = e.state(c)
	c.Assert(state.IDMap, qt.HasLen, 3)
	c.Assert(state.Failed, qt.HasLen, 0)

	dstA := e.dstItem(c, "folder", "A")
	dstB := e.dstItem(c, "page", "B")
	dstC := e.dstItem(c, "page", "C")
	c.Assert(dstA.ParentID, qt.Equals, state.DstHomeID)
	c.Assert(dstC.ParentID, qt.Equals, state.DstHomeID)
	c.Assert(dstB.ParentID, qt.Equals, dstA.ID)
	c.Assert(state.IDMap[b], qt.Equals, dstB.ID)
	c.Assert(dstC.Body, qt.Equals, "<p>see https://dst.example.net/wiki/spaces/ENG</p>")

	// A finished job stays finished.
	report, err = e.svc.AdvanceMigration(context.Background(), 2)
	c.Assert(err, qt.IsNil)
	c.Assert(report.Done, qt.IsTrue)
	c.Assert(report.Log, qt.HasLen, 0)
}

func TestResumeAcrossPartitions(t *testing.T) {
	c := qt.New(t)

	build := func(c *qt.C) *env {
		e := newEnv(c)
		f := e.src.AddFolder("ENG", e.home, "Docs")
		p := e.src.AddPage("ENG", f, "Guide", "<p>guide</p>")
		e.src.AddPage("ENG", p, "Guide details", "<p>details</p>")
		e.src.AddPage("ENG", e.home, "Intro", "<p>intro</p>")
		sub := e.src.AddFolder("ENG", f, "Archive")
		e.src.AddPage("ENG", sub, "Old notes", "")
		e.prepare(c)
		return e
	}

	reference := build(c)
	reference.advanceAll(c, 6)
	want := reference.state(c)
	c.Assert(want.IDMap, qt.HasLen, 6)

	for _, sizes := range [][]int{{1}, {2}, {4, 1}, {3, 1, 100}} {
		c.Run(fmt.Sprint(sizes), func(c *qt.C) {
			e := build(c)
			e.advanceAll(c, sizes...)
			got := e.state(c)
			c.Assert(got.Progress, qt.Equals, want.Progress)
			c.Assert(got.IDMap, qt.DeepEquals, want.IDMap)
			c.Assert(got.Log, qt.DeepEquals, want.Log)
		})
	}
}

func TestDefaultBatchSize(t *testing.T) {
	c := qt.New(t)
	e := newEnv(c)
	for i := range 7 {
		e.src.AddPage("ENG", e.home, fmt.Sprintf("Page %d", i), "")
	}
	e.prepare(c)

	report, err := e.svc.AdvanceMigration(context.Background(), 0)
	c.Assert(err, qt.IsNil)
	c.Assert(report.Progress, qt.Equals, migrate.DefaultBatchSize)
	c.Assert(report.Total, qt.Equals, 7)
}

func TestFailedItemFallsBackToHomepage(t *testing.T) {
	c := qt.New(t)
	e := newEnv(c)
	a := e.src.AddFolder("ENG", e.home, "A")
	e.src.AddPage("ENG", a, "B", "")
	e.prepare(c)

	e.dst.Fail(http.MethodPost, "/wiki/api/v2/folders", http.StatusInternalServerError)
	reports := e.advanceAll(c, 5)
	c.Assert(hasLine(reports[0].Log, "  ❌ "), qt.IsTrue)

	state := e.state(c)
	c.Assert(state.Progress, qt.Equals, 2)
	_, mapped := state.IDMap[a]
	c.Assert(mapped, qt.IsFalse)
	c.Assert(state.Failed, qt.HasLen, 1)
	c.Assert(state.Failed[0].ID, qt.Equals, a)
	c.Assert(state.Failed[0].Title, qt.Equals, "A")

	c.Assert(e.dstItem(c, "page", "B").ParentID, qt.Equals, state.DstHomeID)
}

func TestPageExtras(t *testing.T) {
	c := qt.New(t)
	e := newEnv(c)
	p := e.src.Add(fakeconfluence.Item{
		Type:     "page",
		SpaceKey: "ENG",
		ParentID: e.home,
		Title:    "Runbook",
		Body:     `<p>Ask <ac:link><ri:user ri:account-id="abc"/></ac:link></p>`,
		Labels:   []string{"runbook", "ops"},
		Likes:    3,
		Properties: map[string]json.RawMessage{
			"emoji-title-published": json.RawMessage(`"📘"`),
		},
	})
	c1 := e.src.AddComment(p, "", "<p>first</p>")
	c2 := e.src.AddComment(p, c1, "<p>reply</p>")
	e.src.AddComment(p, c2, "<p>reply to reply</p>")
	e.src.AddComment(p, "", "<p>second</p>")

	archive := &recordingArchive{}
	e.svc.Archive = archive
	e.prepare(c)
	reports := e.advanceAll(c, 5)
	log := reports[0].Log

	dst := e.dstItem(c, "page", "Runbook")
	c.Assert(dst.Body, qt.Equals, "<p>Ask <strong>@[user]</strong></p>")
	c.Assert(dst.Labels, qt.DeepEquals, []string{"runbook", "ops"})
	c.Assert(string(dst.Properties["emoji-title-published"]), qt.Equals, `"📘"`)
	c.Assert(dst.Likes, qt.Equals, 1)
	c.Assert(hasLine(log, "  ✓ Emoji: 📘"), qt.IsTrue)
	c.Assert(hasLine(log, "  ✓ Labels: runbook, ops"), qt.IsTrue)
	c.Assert(hasLine(log, "    ✓ Likes: 3 on source (1 added)"), qt.IsTrue)
	c.Assert(hasLine(log, "    ✓ Comments migrated (4)"), qt.IsTrue)

	bodies := make(map[string]string)
	var deepest fakeconfluence.Item
	for _, cm := range e.dst.ItemsOfType("comment") {
		c.Assert(cm.ParentID, qt.Equals, dst.ID)
		bodies[cm.ID] = cm.Body
		if cm.Body == "<p>reply to reply</p>" {
			deepest = cm
		}
	}
	c.Assert(bodies, qt.HasLen, 4)
	c.Assert(deepest.Ancestors, qt.HasLen, 2)
	c.Assert(bodies[deepest.Ancestors[0]], qt.Equals, "<p>first</p>")
	c.Assert(bodies[deepest.Ancestors[1]], qt.Equals, "<p>reply</p>")

	c.Assert(archive.pages, qt.DeepEquals, []archived{{Space: "ENG", ID: p, Title: "Runbook", DestID: dst.ID}})
}

func TestPageEmojiFallsBackToUpdate(t *testing.T) {
	c := qt.New(t)
	e := newEnv(c)
	e.src.Add(fakeconfluence.Item{
		Type:       "page",
		SpaceKey:   "ENG",
		ParentID:   e.home,
		Title:      "Shiny",
		Properties: map[string]json.RawMessage{"emoji-title-draft": json.RawMessage(`"✨"`)},
	})
	e.prepare(c)

	// The destination hands out ids in sequence: the space, its homepage, then this page.
	e.dst.Fail(http.MethodPost, "/wiki/rest/api/content/5003/property", http.StatusConflict)
	reports := e.advanceAll(c, 1)

	dst := e.dstItem(c, "page", "Shiny")
	c.Assert(dst.ID, qt.Equals, "5003")
	c.Assert(string(dst.Properties["emoji-title-published"]), qt.Equals, `"✨"`)
	c.Assert(hasLine(reports[0].Log, "  ✓ Emoji updated"), qt.IsTrue)
}

func TestAttachmentsAreRemapped(t *testing.T) {
	c := qt.New(t)
	e := newEnv(c)
	p := e.src.AddPage("ENG", e.home, "Diagram", "")
	att := e.src.AddAttachment(p, "arch.png", "image/png", []byte("png bytes"))
	e.src.AddAttachment(p, "notes.bin", "", []byte{0, 1, 2})
	e.src.Update(p, func(it *fakeconfluence.Item) {
		it.Body = fmt.Sprintf(`<p><img data-linked-resource-id="%s" src="https://src.example.net/wiki/download/attachments/%s/arch.png"/></p>`,
			strings.TrimPrefix(att, "att"), p)
	})
	e.prepare(c)
	reports := e.advanceAll(c, 5)

	dst := e.dstItem(c, "page", "Diagram")
	uploaded := e.dst.Children(dst.ID)
	c.Assert(uploaded, qt.HasLen, 2)
	c.Assert(uploaded[0].Title, qt.Equals, "arch.png")
	c.Assert(uploaded[0].Data, qt.DeepEquals, []byte("png bytes"))
	c.Assert(uploaded[0].MediaType, qt.Equals, "image/png")
	c.Assert(uploaded[1].MediaType, qt.Equals, "application/octet-stream")

	state := e.state(c)
	c.Assert(state.IDMap[att], qt.Equals, uploaded[0].ID)
	c.Assert(state.IDMap, qt.HasLen, 3)

	c.Assert(e.dst.Requests(http.MethodPut, "/wiki/rest/api/content/"+dst.ID), qt.HasLen, 1)
	c.Assert(dst.Version, qt.Equals, 2)
	c.Assert(dst.Body, qt.Equals, fmt.Sprintf(
		`<p><img data-linked-resource-id="%s" src="https://dst.example.net/wiki/download/attachments/%s/arch.png"/></p>`,
		strings.TrimPrefix(uploaded[0].ID, "att"), dst.ID))
	c.Assert(hasLine(reports[0].Log, "    ✓ arch.png (9 B)"), qt.IsTrue)
	c.Assert(hasLine(reports[0].Log, "  ✓ Body updated with attachment refs"), qt.IsTrue)
}

func TestOtherNodeTypes(t *testing.T) {
	c := qt.New(t)

	seed := func(c *qt.C) (*env, map[string]string) {
		e := newEnv(c)
		ids := make(map[string]string)
		for _, it := range []fakeconfluence.Item{
			{Type: "database", Title: "Metrics"},
			{Type: "whiteboard", Title: "Sketch"},
			{Type: "embed", Title: "Roadmap", EmbedURL: "https://example.com/roadmap?a=1&b=2"},
			{Type: "smartlink", Title: "Card"},
		} {
			it.SpaceKey, it.ParentID = "ENG", e.home
			ids[it.Type] = e.src.Add(it)
		}
		res := e.prepare(c)
		c.Assert(hasLine(res.Log, "  ✓ Found 4 items: 0 pages, 0 folders, 1 databases, 1 whiteboards, 1 embeds, 1 other"), qt.IsTrue)
		return e, ids
	}

	c.Run("created natively", func(c *qt.C) {
		e, ids := seed(c)
		reports := e.advanceAll(c, 10)
		state := e.state(c)

		c.Assert(state.IDMap[ids["database"]], qt.Equals, e.dstItem(c, "database", "Metrics").ID)
		c.Assert(state.IDMap[ids["whiteboard"]], qt.Equals, e.dstItem(c, "whiteboard", "Sketch").ID)
		c.Assert(hasLine(reports[0].Log, "  ℹ Database rows must be re-entered manually (API limitation)"), qt.IsTrue)
		c.Assert(hasLine(reports[0].Log, `[4/4] 📄 [smartlink] "Card"`), qt.IsTrue)

		embed := e.dstItem(c, "page", "Roadmap")
		c.Assert(embed.Body, qt.Equals, `<p><strong>🔗 Embed: Roadmap</strong></p>`+
			`<p><a href="https://example.com/roadmap?a=1&amp;b=2">https://example.com/roadmap?a=1&amp;b=2</a></p>`)
		card := e.dstItem(c, "page", "Card")
		c.Assert(card.Body, qt.Contains, "Migrated from a smartlink")
		c.Assert(state.Failed, qt.HasLen, 0)
	})

	c.Run("fallbacks", func(c *qt.C) {
		e, ids := seed(c)
		e.dst.Fail(http.MethodPost, "/wiki/api/v2/databases", http.StatusBadRequest)
		e.dst.Fail(http.MethodPost, "/wiki/api/v2/whiteboards", http.StatusBadRequest)
		e.src.Fail(http.MethodGet, "/wiki/api/v2/embeds/"+ids["embed"], http.StatusNotFound)
		e.advanceAll(c, 10)
		state := e.state(c)

		placeholder := e.dstItem(c, "page", "[Database] Metrics")
		c.Assert(state.IDMap[ids["database"]], qt.Equals, placeholder.ID)
		c.Assert(placeholder.Body, qt.Contains, "🗄 Database: Metrics")

		_, mapped := state.IDMap[ids["whiteboard"]]
		c.Assert(mapped, qt.IsFalse)
		c.Assert(state.Failed, qt.HasLen, 1)
		c.Assert(state.Failed[0].ID, qt.Equals, ids["whiteboard"])
		c.Assert(state.Failed[0].Reason, qt.Matches, `whiteboard creation failed: .*`)

		c.Assert(e.dstItem(c, "page", "Roadmap").Body, qt.Contains, "Embed URL not available.")
		c.Assert(state.Progress, qt.Equals, 4)
	})
}

func TestDiscoverContinuesPastFailures(t *testing.T) {
	c := qt.New(t)
	e := newEnv(c)
	a := e.src.AddFolder("ENG", e.home, "A")
	e.src.AddPage("ENG", a, "Hidden", "")
	p := e.src.AddPage("ENG", e.home, "P", "")
	e.src.AddPage("ENG", p, "Visible", "")

	e.src.Fail(http.MethodGet, "/wiki/api/v2/folders/"+a+"/direct-children", http.StatusInternalServerError)
	res := e.prepare(c)
	c.Assert(res.Total, qt.Equals, 3)
	c.Assert(hasLine(res.Log, "  ⚠ direct-children failed for folder "+a), qt.IsTrue)

	var titles []string
	for _, it := range e.state(c).Items {
		titles = append(titles, it.Title)
	}
	c.Assert(titles, qt.DeepEquals, []string{"A", "P", "Visible"})
}

func TestDiscoverPagesThroughChildren(t *testing.T) {
	c := qt.New(t)
	e := newEnv(c)
	for i := range 55 {
		e.src.AddPage("ENG", e.home, fmt.Sprintf("Page %02d", i), "")
	}

	items, log := migrate.Discover(context.Background(), e.src.API(srcDomain), e.home)
	c.Assert(log, qt.HasLen, 0)
	c.Assert(items, qt.HasLen, 55)
	c.Assert(items[54].Title, qt.Equals, "Page 54")
	c.Assert(e.src.Requests(http.MethodGet, "/wiki/api/v2/pages/"+e.home+"/direct-children"), qt.HasLen, 2)
	c.Assert(migrate.TallyTypes(items), qt.DeepEquals, []confluence.ContentType{confluence.PageContent})
}

func TestAdvanceLeavesInputAlone(t *testing.T) {
	c := qt.New(t)
	src := fakeconfluence.New(c, fakeconfluence.IDBase(1000))
	dst := fakeconfluence.New(c, fakeconfluence.IDBase(5000))
	home := src.AddSpace("ENG", "Engineering")
	dstHome := dst.AddSpace("ENG", "Engineering")
	p := src.AddPage("ENG", home, "Only", "<p>x</p>")

	engine := &migrate.Engine{Source: src.API(srcDomain), Dest: dst.API(dstDomain)}
	in := migrate.JobState{
		SpaceKey:   "ENG",
		SrcDomain:  srcDomain,
		DstDomain:  dstDomain,
		DstHomeID:  dstHome,
		DstSpaceID: dst.SpaceByKey("ENG").ID,
		Items:      []migrate.DiscoveredItem{{ID: p, Title: "Only", ParentID: home, ContentType: confluence.PageContent}},
		IDMap:      migrate.IDMap{},
		Log:        []string{"prepared"},
	}

	out, report := engine.Advance(context.Background(), in, 1)
	c.Assert(report.Done, qt.IsTrue)
	c.Assert(out.IDMap, qt.HasLen, 1)
	c.Assert(out.Log[0], qt.Equals, "prepared")
	c.Assert(in.Progress, qt.Equals, 0)
	c.Assert(in.IDMap, qt.HasLen, 0)
	c.Assert(in.Log, qt.DeepEquals, []string{"prepared"})
}

func TestAdvanceStopsWhenCancelled(t *testing.T) {
	c := qt.New(t)
	e := newEnv(c)
	e.src.AddPage("ENG", e.home, "One", "")
	e.prepare(c)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine := &migrate.Engine{Source: e.src.API(srcDomain), Dest: e.dst.API(dstDomain)}
	out, report := engine.Advance(ctx, e.state(c), 5)
	c.Assert(out.Progress, qt.Equals, 0)
	c.Assert(report.Done, qt.IsFalse)
	c.Assert(report.Log, qt.DeepEquals, []string{"  ⚠ batch interrupted: context canceled"})
}

func TestCommentOrder(t *testing.T) {
	c := qt.New(t)
	in := []migrate.CommentNode{
		{ID: "r2", Ancestors: []string{"t1", "r1"}},
		{ID: "t1"},
		{ID: "r1", Ancestors: []string{"t1"}},
		{ID: "r3", Ancestors: []string{"t2"}},
		{ID: "t2"},
	}
	var got []string
	for _, n := range migrate.CommentOrder(in) {
		got = append(got, n.ID)
	}
	c.Assert(got, qt.DeepEquals, []string{"t1", "t2", "r1", "r3", "r2"})
}

func TestIDMap(t *testing.T) {
	c := qt.New(t)
	m := migrate.IDMap{}
	c.Assert(m.Record("1", "a"), qt.IsTrue)
	c.Assert(m.Record("1", "b"), qt.IsFalse)
	c.Assert(m.Record("", "b"), qt.IsFalse)
	c.Assert(m.Record("2", ""), qt.IsFalse)
	m.Merge(map[string]string{"1": "z", "3": "c"})
	c.Assert(m, qt.DeepEquals, migrate.IDMap{"1": "a", "3": "c"})

	c.Assert(m.Resolve("1", "home"), qt.Equals, "a")
	c.Assert(m.Resolve("9", "home"), qt.Equals, "home")
	c.Assert(m.Resolve("", "home"), qt.Equals, "home")
}

func TestJobStatePercent(t *testing.T) {
	c := qt.New(t)
	items := make([]migrate.DiscoveredItem, 3)
	for _, test := range []struct {
		progress int
		items    []migrate.DiscoveredItem
		want     int
	}{
		{0, items, 0},
		{1, items, 33},
		{2, items, 67},
		{3, items, 100},
		{0, nil, 100},
	} {
		s := migrate.JobState{Progress: test.progress, Items: test.items}
		c.Check(s.Percent(), qt.Equals, test.want, qt.Commentf("%d/%d", test.progress, len(test.items)))
	}
}

func TestGuessMimeType(t *testing.T) {
	c := qt.New(t)
	for name, want := range map[string]string{
		"diagram.PNG":  "image/png",
		"photo.jpeg":   "image/jpeg",
		"report.pdf":   "application/pdf",
		"sheet.xlsx":   "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"archive.tar":  "application/octet-stream",
		"no-extension": "application/octet-stream",
	} {
		c.Check(migrate.GuessMimeType(name), qt.Equals, want, qt.Commentf("%s", name))
	}
}

func TestSummary(t *testing.T) {
	c := qt.New(t)
	items := []migrate.DiscoveredItem{
		{ContentType: confluence.PageContent},
		{ContentType: confluence.PageContent},
		{ContentType: confluence.FolderContent},
		{ContentType: confluence.WhiteboardContent},
	}
	c.Assert(migrate.Summary(items), qt.Equals, "  ✓ Found 4 items: 2 pages, 1 folders, 0 databases, 1 whiteboards, 0 embeds")
	c.Assert(migrate.Summary(nil), qt.Equals, "  ✓ Found 0 items: 0 pages, 0 folders, 0 databases, 0 whiteboards, 0 embeds")
}

type archived struct {
	Space, ID, Title, DestID string
}

type recordingArchive struct {
	pages []archived
}

func (r *recordingArchive) ArchivePage(_ context.Context, spaceKey string, page *confluence.Content, destID string) error {
	r.pages = append(r.pages, archived{Space: spaceKey, ID: page.ID, Title: page.Title, DestID: destID})
	return nil
}
