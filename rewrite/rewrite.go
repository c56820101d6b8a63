// Package rewrite adapts Confluence storage-format markup copied from one site so that it reads
// correctly on another.  Every rule is a plain string transformation, applied in a fixed order by
// Body; each rule only matches markup that it would itself remove or complete, so running the
// pipeline twice changes nothing the second time.
package rewrite

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

// Rule is one named step of the pipeline.
type Rule struct {
	Name  string
	Apply func(body string) string
}

// Rules returns the pipeline for one migration, in application order.
func Rules(srcDomain, dstDomain, spaceKey string) []Rule {
	return []Rule{
		{"page-space-key", func(b string) string { return PageSpaceKeys(b, spaceKey) }},
		{"domain", func(b string) string { return Domains(b, srcDomain, dstDomain) }},
		{"jira-server", JiraServerParams},
		{"include-space-key", func(b string) string { return IncludeSpaceKeys(b, spaceKey) }},
		{"mentions", Mentions},
		{"task-ids", TaskIDs},
	}
}

// Body runs every rule over a storage-format body.
func Body(body, srcDomain, dstDomain, spaceKey string) string {
	if body == "" {
		return ""
	}
	for _, r := range Rules(srcDomain, dstDomain, spaceKey) {
		body = r.Apply(body)
	}
	return body
}

var pageRef = regexp.MustCompile(`<ri:page([^/]*?)/>`)

// PageSpaceKeys pins <ri:page/> references that rely on "same space" to spaceKey, since the
// reference would otherwise resolve against whatever space the page lands in.
func PageSpaceKeys(body, spaceKey string) string {
	if spaceKey == "" {
		return body
	}
	return pageRef.ReplaceAllStringFunc(body, func(m string) string {
		attrs := pageRef.FindStringSubmatch(m)[1]
		if strings.Contains(attrs, "ri:space-key") {
			return m
		}
		return fmt.Sprintf(`<ri:page ri:space-key="%s"%s/>`, html.EscapeString(spaceKey), attrs)
	})
}

// Domains points absolute links at the destination site.  Links into /wiki are rewritten first,
// then anything else rooted at the source host.
func Domains(body, srcDomain, dstDomain string) string {
	if srcDomain == "" || dstDomain == "" || srcDomain == dstDomain {
		return body
	}
	src := regexp.QuoteMeta(srcDomain)
	wiki := regexp.MustCompile(`https://` + src + `/wiki`)
	body = wiki.ReplaceAllLiteralString(body, "https://"+dstDomain+"/wiki")
	root := regexp.MustCompile(`https://` + src + `/`)
	return root.ReplaceAllLiteralString(body, "https://"+dstDomain+"/")
}

var (
	jiraMacro   = regexp.MustCompile(`(<ac:structured-macro[^>]*ac:name="jira"[^>]*>)([\s\S]*?)(</ac:structured-macro>)`)
	serverParam = regexp.MustCompile(`<ac:parameter ac:name="server(?:Id)?">[^<]*</ac:parameter>`)
)

// JiraServerParams drops the server and serverId parameters of Jira macros.  They name the
// source site's application link, which doesn't exist on the destination; without them the
// macro falls back to the destination's default Jira.
func JiraServerParams(body string) string {
	return jiraMacro.ReplaceAllStringFunc(body, func(m string) string {
		parts := jiraMacro.FindStringSubmatch(m)
		return parts[1] + serverParam.ReplaceAllString(parts[2], "") + parts[3]
	})
}

var includeMacro = regexp.MustCompile(`(<ac:structured-macro[^>]*ac:name="(?:include|excerpt-include)"[^>]*>)([\s\S]*?)(</ac:structured-macro>)`)

// IncludeSpaceKeys applies PageSpaceKeys inside include and excerpt-include macros only.
func IncludeSpaceKeys(body, spaceKey string) string {
	if spaceKey == "" {
		return body
	}
	return includeMacro.ReplaceAllStringFunc(body, func(m string) string {
		parts := includeMacro.FindStringSubmatch(m)
		return parts[1] + PageSpaceKeys(parts[2], spaceKey) + parts[3]
	})
}

var (
	namedMention = regexp.MustCompile(`<ac:link>\s*<ri:user ri:account-id="[^"]*"[^/]*/>\s*<ac:plain-text-link-body><!\[CDATA\[([^\]]*)\]\]></ac:plain-text-link-body>\s*</ac:link>`)
	bareMention  = regexp.MustCompile(`<ac:link>\s*<ri:user[^/]*/>\s*</ac:link>`)
	userRef      = regexp.MustCompile(`<ri:user[^/]*/>`)
)

// MentionPlaceholder stands in for a mention whose display name isn't in the markup.
const MentionPlaceholder = "<strong>@[user]</strong>"

// Mentions turns user mentions into bold text.  Account ids differ between sites, so a mention
// kept as-is would render as an unknown user.
func Mentions(body string) string {
	body = namedMention.ReplaceAllStringFunc(body, func(m string) string {
		name := namedMention.FindStringSubmatch(m)[1]
		return "<strong>@" + html.EscapeString(name) + "</strong>"
	})
	body = bareMention.ReplaceAllLiteralString(body, MentionPlaceholder)
	return userRef.ReplaceAllLiteralString(body, "")
}

var taskID = regexp.MustCompile(`<ac:task-id>\d+</ac:task-id>`)

// TaskIDs renumbers task list items from 1 in document order.
func TaskIDs(body string) string {
	n := 0
	return taskID.ReplaceAllStringFunc(body, func(string) string {
		n++
		return fmt.Sprintf("<ac:task-id>%d</ac:task-id>", n)
	})
}
