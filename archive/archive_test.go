package archive_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/toothbrush/confluence-migrate/archive"
	"github.com/toothbrush/confluence-migrate/confluence"
)

func TestSlug(t *testing.T) {
	c := qt.New(t)
	for title, want := range map[string]string{
		"Hello, World!":             "hello-world",
		"  Release notes 2.0  ":     "release-notes-2-0",
		"Ünïcode & friends":         "n-code-friends",
		strings.Repeat("abcd ", 30): strings.TrimSuffix(strings.Repeat("abcd-", 20), "-"),
	} {
		got, err := archive.Slug(title)
		c.Assert(err, qt.IsNil)
		c.Check(got, qt.Equals, want, qt.Commentf("%q", title))
	}

	_, err := archive.Slug("🚀")
	c.Assert(err, qt.ErrorMatches, `archive: slug too short: .*`)
}

func page() *confluence.Content {
	body := confluence.StorageBody(`<h1>Intro</h1>` +
		`<p>Hello <strong>there</strong>, see <a href="/wiki/spaces/ENG/pages/1">Home</a>.</p>` +
		`<ac:structured-macro ac:name="info"><ac:parameter ac:name="title">SECRETPARAM</ac:parameter>` +
		`<ac:rich-text-body><p>Careful now</p></ac:rich-text-body></ac:structured-macro>` +
		`<ac:structured-macro ac:name="code"><ac:parameter ac:name="language">go</ac:parameter>` +
		`<ac:plain-text-body><![CDATA[fmt.Println("hi")]]></ac:plain-text-body></ac:structured-macro>` +
		`<p><ac:image ac:alt="diagram"><ri:attachment ri:filename="arch diagram.png"/></ac:image></p>` +
		`<p><ac:link><ri:page ri:content-title="Other"/><ac:plain-text-link-body><![CDATA[the other page]]></ac:plain-text-link-body></ac:link></p>`)
	return &confluence.Content{
		ID:      "42",
		Type:    "page",
		Title:   "Team Handbook",
		Body:    &body,
		Version: &confluence.Version{Number: 7, When: "2024-03-01T10:00:00.000Z"},
		Metadata: &confluence.Metadata{Labels: &confluence.LabelList{Results: []confluence.Label{
			{Prefix: "global", Name: "handbook"},
		}}},
		Links: confluence.Links{WebUI: "/spaces/ENG/pages/42/Team+Handbook"},
	}
}

func TestConvert(t *testing.T) {
	c := qt.New(t)
	a, err := archive.New(c.TempDir(), "https://src.example.net/")
	c.Assert(err, qt.IsNil)
	c.Assert(a.Domain, qt.Equals, "src.example.net")

	doc, err := a.Convert("ENG", page(), "5003")
	c.Assert(err, qt.IsNil)
	c.Assert(doc.RelativePath, qt.Equals, "src.example.net/ENG/42-team-handbook.md")
	c.Assert(doc.Header, qt.DeepEquals, archive.Header{
		Title:         "Team Handbook",
		ObjectID:      "42",
		DestinationID: "5003",
		Version:       7,
		Space:         "ENG",
		URI:           "https://src.example.net/wiki/spaces/ENG/pages/42/Team+Handbook",
		Labels:        []string{"handbook"},
		Updated:       "2024-03-01T10:00:00.000Z",
	})

	for _, want := range []string{
		"# Intro",
		"Hello **there**",
		"[Home](https://src.example.net/wiki/spaces/ENG/pages/1)",
		"Careful now",
		"```",
		`fmt.Println("hi")`,
		"![diagram](https://src.example.net/wiki/download/attachments/42/arch%20diagram.png)",
		"the other page",
	} {
		c.Check(doc.Markdown, qt.Contains, want)
	}
	c.Check(doc.Markdown, qt.Not(qt.Contains), "SECRETPARAM")
	c.Check(doc.Markdown, qt.Not(qt.Contains), "ac:")
}

func TestConvertFallbacks(t *testing.T) {
	c := qt.New(t)
	a, err := archive.New(c.TempDir(), "src.example.net")
	c.Assert(err, qt.IsNil)

	doc, err := a.Convert("ENG", &confluence.Content{ID: "9", Title: "🚀"}, "")
	c.Assert(err, qt.IsNil)
	c.Assert(doc.RelativePath, qt.Equals, "src.example.net/ENG/9.md")
	c.Assert(doc.Header.URI, qt.Equals, "https://src.example.net/wiki/pages/viewpage.action?pageId=9")
	c.Assert(doc.Markdown, qt.Equals, "")

	_, err = a.Convert("ENG", &confluence.Content{}, "")
	c.Assert(err, qt.ErrorMatches, "archive: page without an id")
}

func TestArchivePage(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	a, err := archive.New(filepath.Join(dir, "nested", "archive"), "src.example.net")
	c.Assert(err, qt.IsNil)

	c.Assert(a.ArchivePage(context.Background(), "ENG", page(), "5003"), qt.IsNil)
	other := &confluence.Content{ID: "7", Title: "Another page"}
	c.Assert(a.ArchivePage(context.Background(), "ENG", other, "5004"), qt.IsNil)

	path := filepath.Join(dir, "nested", "archive", "src.example.net", "ENG", "42-team-handbook.md")
	contents, err := os.ReadFile(path)
	c.Assert(err, qt.IsNil)
	c.Assert(strings.HasPrefix(string(contents), "---\ntitle: Team Handbook\nobject_id: \"42\"\n"), qt.IsTrue,
		qt.Commentf("%s", contents))

	header, err := archive.ReadHeader(path)
	c.Assert(err, qt.IsNil)
	c.Assert(header.DestinationID, qt.Equals, "5003")
	c.Assert(header.Labels, qt.DeepEquals, []string{"handbook"})

	entries, err := a.Entries("ENG")
	c.Assert(err, qt.IsNil)
	c.Assert(entries, qt.HasLen, 2)
	c.Assert(entries[0].RelativePath, qt.Equals, "src.example.net/ENG/42-team-handbook.md")
	c.Assert(entries[1].RelativePath, qt.Equals, "src.example.net/ENG/7-another-page.md")
	c.Assert(entries[1].Header.DestinationID, qt.Equals, "5004")

	entries, err = a.Entries("OPS")
	c.Assert(err, qt.IsNil)
	c.Assert(entries, qt.HasLen, 0)
}

func TestArchivePageCancelled(t *testing.T) {
	c := qt.New(t)
	a, err := archive.New(c.TempDir(), "src.example.net")
	c.Assert(err, qt.IsNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Assert(a.ArchivePage(ctx, "ENG", page(), ""), qt.Equals, context.Canceled)
}

func TestNewRejectsFiles(t *testing.T) {
	c := qt.New(t)
	file := filepath.Join(c.TempDir(), "plain")
	c.Assert(os.WriteFile(file, []byte("x"), 0600), qt.IsNil)

	_, err := archive.New(file, "src.example.net")
	c.Assert(err, qt.ErrorMatches, "archive: not a directory: .*")

	_, err = archive.New(c.TempDir(), "")
	c.Assert(err, qt.ErrorMatches, "archive: no source domain")
}

func TestArchivePageSkipsCurrentCopy(t *testing.T) {
	c := qt.New(t)
	a, err := archive.New(c.TempDir(), "src.example.net")
	c.Assert(err, qt.IsNil)
	ctx := context.Background()
	path := filepath.Join(a.Dir, "src.example.net", "ENG", "42-team-handbook.md")

	c.Assert(a.ArchivePage(ctx, "ENG", page(), "5003"), qt.IsNil)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	c.Assert(err, qt.IsNil)
	_, err = f.WriteString("LOCAL EDIT\n")
	c.Assert(err, qt.IsNil)
	c.Assert(f.Close(), qt.IsNil)

	c.Assert(a.ArchivePage(ctx, "ENG", page(), "5003"), qt.IsNil)
	contents, err := os.ReadFile(path)
	c.Assert(err, qt.IsNil)
	c.Assert(string(contents), qt.Contains, "LOCAL EDIT")

	// a new destination means a new migration, so the copy is refreshed
	c.Assert(a.ArchivePage(ctx, "ENG", page(), "9001"), qt.IsNil)
	contents, err = os.ReadFile(path)
	c.Assert(err, qt.IsNil)
	c.Assert(string(contents), qt.Not(qt.Contains), "LOCAL EDIT")
}

func TestPrune(t *testing.T) {
	c := qt.New(t)
	a, err := archive.New(c.TempDir(), "src.example.net")
	c.Assert(err, qt.IsNil)
	ctx := context.Background()

	old := page()
	old.Title = "Old Handbook"
	old.Version = &confluence.Version{Number: 3}
	c.Assert(a.ArchivePage(ctx, "ENG", old, "5003"), qt.IsNil)
	c.Assert(a.ArchivePage(ctx, "ENG", page(), "5003"), qt.IsNil)
	c.Assert(a.ArchivePage(ctx, "ENG", &confluence.Content{ID: "7", Title: "Another page"}, "5004"), qt.IsNil)

	entries, err := a.Entries("ENG")
	c.Assert(err, qt.IsNil)
	c.Assert(entries, qt.HasLen, 3)

	removed, err := a.Prune("ENG")
	c.Assert(err, qt.IsNil)
	c.Assert(removed, qt.DeepEquals, []string{"src.example.net/ENG/42-old-handbook.md"})

	entries, err = a.Entries("ENG")
	c.Assert(err, qt.IsNil)
	c.Assert(entries, qt.HasLen, 2)
	c.Assert(entries[0].RelativePath, qt.Equals, "src.example.net/ENG/42-team-handbook.md")

	removed, err = a.Prune("ENG")
	c.Assert(err, qt.IsNil)
	c.Assert(removed, qt.HasLen, 0)
}
