package main

import (
	"runtime/debug"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/spf13/cobra"
)

func TestBindFlags(t *testing.T) {
	c := qt.New(t)

	var (
		vcr      bool
		domain   string
		username string
		tokenCmd []string
		batch    int
		delay    time.Duration
	)
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().BoolVar(&vcr, "with-vcr", false, "")
	cmd.Flags().StringVar(&domain, "source-domain", "", "")
	cmd.Flags().StringVar(&username, "source-username", "", "")
	cmd.Flags().StringSliceVar(&tokenCmd, "source-token-cmd", []string{}, "")
	cmd.Flags().IntVar(&batch, "batch-size", 5, "")
	cmd.Flags().DurationVar(&delay, "delay", 0, "")
	c.Assert(cmd.Flags().Parse([]string{"--source-username", "cli@example.net"}), qt.IsNil)

	on := true
	err := bindFlags(cmd, YamlConfig{
		WithVCR:        &on,
		SourceDomain:   "old.atlassian.net",
		SourceUsername: "yaml@example.net",
		SourceTokenCmd: []string{"pass", "show", "confluence"},
		BatchSize:      12,
		Delay:          "2s",
		// no such flag on this command
		ArchiveDir: "~/archive",
	})
	c.Assert(err, qt.IsNil)

	c.Check(vcr, qt.IsTrue)
	c.Check(domain, qt.Equals, "old.atlassian.net")
	c.Check(username, qt.Equals, "cli@example.net")
	c.Check(tokenCmd, qt.DeepEquals, []string{"pass", "show", "confluence"})
	c.Check(batch, qt.Equals, 12)
	c.Check(delay, qt.Equals, 2*time.Second)
}

func TestBindFlagsBadValue(t *testing.T) {
	c := qt.New(t)

	var delay time.Duration
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().DurationVar(&delay, "delay", 0, "")

	err := bindFlags(cmd, YamlConfig{Delay: "soon"})
	c.Assert(err, qt.ErrorMatches, `confluence-migrate: bad value for delay in .*`)
}

func TestResolveToken(t *testing.T) {
	c := qt.New(t)

	token, err := resolveToken([]string{"printf", "s3cret\nsecond line\n"}, "UNUSED")
	c.Assert(err, qt.IsNil)
	c.Check(token, qt.Equals, "s3cret")

	_, err = resolveToken([]string{"true"}, "UNUSED")
	c.Check(err, qt.ErrorMatches, `cmd: token command .* printed nothing`)

	_, err = resolveToken([]string{"false"}, "UNUSED")
	c.Check(err, qt.ErrorMatches, `cmd: couldn't execute token command .*`)

	c.Setenv("CONFLUENCE_MIGRATE_TEST_TOKEN", "from-env")
	token, err = resolveToken(nil, "CONFLUENCE_MIGRATE_TEST_TOKEN")
	c.Assert(err, qt.IsNil)
	c.Check(token, qt.Equals, "from-env")

	c.Setenv("CONFLUENCE_MIGRATE_TEST_TOKEN", "")
	_, err = resolveToken(nil, "CONFLUENCE_MIGRATE_TEST_TOKEN")
	c.Check(err, qt.ErrorMatches, `cmd: no token command configured and CONFLUENCE_MIGRATE_TEST_TOKEN is empty`)
}

func TestDiffBody(t *testing.T) {
	c := qt.New(t)

	body := strings.Join([]string{
		`<p>Intro</p>`,
		`<p><a href="https://old.atlassian.net/wiki/spaces/ENG/pages/1">link</a></p>`,
		`<p>Outro</p>`,
		``,
	}, "\n")

	diff, changedBy, err := diffBody(body, "page.xml", "old.atlassian.net", "new.atlassian.net", "ENG")
	c.Assert(err, qt.IsNil)
	c.Check(changedBy, qt.DeepEquals, []string{"domain"})
	c.Check(diff, qt.Contains, "--- page.xml (old.atlassian.net)\n+++ page.xml (new.atlassian.net)\n")
	c.Check(diff, qt.Contains, `-<p><a href="https://old.atlassian.net/wiki/spaces/ENG/pages/1">link</a></p>`)
	c.Check(diff, qt.Contains, `+<p><a href="https://new.atlassian.net/wiki/spaces/ENG/pages/1">link</a></p>`)

	diff, changedBy, err = diffBody("<p>nothing to see</p>", "page.xml", "old.atlassian.net", "new.atlassian.net", "ENG")
	c.Assert(err, qt.IsNil)
	c.Check(diff, qt.Equals, "")
	c.Check(changedBy, qt.HasLen, 0)
}

func TestShortVersion(t *testing.T) {
	c := qt.New(t)
	c.Cleanup(func() {
		Version, Revision, DirtyBuild = "unknown", "unknown", true
	})

	info := &debug.BuildInfo{
		Main: debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.modified", Value: "false"},
		},
	}
	c.Check(shortVersion(info), qt.Equals, "confluence-migrate version rev-abc123")

	info = &debug.BuildInfo{Main: debug.Module{Version: "v1.2.0"}}
	Revision = "unknown"
	c.Check(shortVersion(info), qt.Equals, "confluence-migrate version v1.2.0")
}
