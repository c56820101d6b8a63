package termfmt_test

import (
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/toothbrush/confluence-migrate/internal/termfmt"
)

func TestStyle(t *testing.T) {
	c := qt.New(t)
	c.Cleanup(func() { termfmt.SetEnabled(true) })

	termfmt.SetEnabled(true)
	c.Assert(fmt.Sprintf("%s", termfmt.Fg(termfmt.Red).V("boom")), qt.Equals, "\x1b[31mboom\x1b[0m")
	c.Assert(fmt.Sprintf("%5d", termfmt.Bold().Fg(termfmt.Green).V(42)), qt.Equals, "\x1b[1;32m   42\x1b[0m")
	c.Assert(fmt.Sprintf("%s", termfmt.Style{}.V("plain")), qt.Equals, "plain")
	c.Assert(termfmt.Fg(termfmt.Cyan).Sprint("bell\a"), qt.Equals, "\x1b[36mbell\x1b[0m")

	termfmt.SetEnabled(false)
	c.Assert(termfmt.Fg(termfmt.Red).Sprint("boom"), qt.Equals, "boom")
}

func TestLogLine(t *testing.T) {
	c := qt.New(t)
	c.Cleanup(func() { termfmt.SetEnabled(true) })
	termfmt.SetEnabled(true)

	for line, want := range map[string]string{
		"  ✓ Page created (dst: 5)":     "\x1b[32m  ✓ Page created (dst: 5)\x1b[0m",
		"  ⚠ Space already exists.":     "\x1b[33m  ⚠ Space already exists.\x1b[0m",
		"  ❌ boom":                      "\x1b[1;31m  ❌ boom\x1b[0m",
		"  ℹ Source likes: 3":           "\x1b[36m  ℹ Source likes: 3\x1b[0m",
		"✅ All 3 items migrated!":       "\x1b[1;32m✅ All 3 items migrated!\x1b[0m",
		`[1/3] 📁 [folder] "A"`:          "\x1b[1m[1/3] 📁 [folder] \"A\"\x1b[0m",
		"Scanning all content (pages…)": "Scanning all content (pages…)",
	} {
		c.Check(termfmt.LogLine(line), qt.Equals, want, qt.Commentf("%q", line))
	}
}
