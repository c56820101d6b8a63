package archive

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	mdplugin "github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	"gopkg.in/yaml.v3"

	"github.com/toothbrush/confluence-migrate/confluence"
)

// Header is the YAML front matter of an archived page.
type Header struct {
	Title         string   `yaml:"title"`
	ObjectID      string   `yaml:"object_id"`
	DestinationID string   `yaml:"destination_id,omitempty"`
	Version       int      `yaml:"version,omitempty"`
	Space         string   `yaml:"space"`
	URI           string   `yaml:"uri"`
	Labels        []string `yaml:"labels,omitempty"`
	Updated       string   `yaml:"updated,omitempty"`
}

// Document is a converted page and where it goes, relative to the archive root.
type Document struct {
	Header       Header
	Markdown     string
	RelativePath string
}

// Render produces the file contents: front matter, then the Markdown body.
func (d Document) Render() (string, error) {
	yamlHeader, err := yaml.Marshal(d.Header)
	if err != nil {
		return "", fmt.Errorf("archive: couldn't marshal header YAML: %w", err)
	}
	return fmt.Sprintf("---\n%s\n---\n%s\n", strings.TrimSpace(string(yamlHeader)), d.Markdown), nil
}

var nonSlug = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Slug turns a title into a file name fragment.  Titles with too little ASCII in them to name a
// file by are an error.
func Slug(title string) (string, error) {
	str := nonSlug.ReplaceAllString(title, " ")
	str = strings.ToLower(str)
	str = strings.Join(strings.Fields(str), "-")

	if len(str) > 100 {
		str = str[:100]
	}
	str = strings.Trim(str, "-")

	if len(str) < 2 {
		return "", fmt.Errorf("archive: slug too short: title was '%s'", title)
	}
	return str, nil
}

// Convert renders a source page as a Document.  Relative links are made absolute against the
// source site so the snapshot stays useful once the page has moved.
func (a *Archive) Convert(spaceKey string, page *confluence.Content, destID string) (Document, error) {
	if page == nil || page.ID == "" {
		return Document{}, fmt.Errorf("archive: page without an id")
	}

	simplified, err := simplify(page.StorageValue(), page.ID)
	if err != nil {
		return Document{}, fmt.Errorf("archive: couldn't parse body of %s: %w", page.ID, err)
	}

	// md.NewConverter only takes a host, so the scheme is filled in here.  Adapted from
	// https://github.com/JohannesKaufmann/html-to-markdown/issues/44
	opt := &md.Options{
		GetAbsoluteURL: func(_ *goquery.Selection, rawURL string, domain string) string {
			if domain == "" {
				return rawURL
			}
			u, err := url.Parse(rawURL)
			if err != nil || u.Scheme == "data" {
				return rawURL
			}
			if u.Scheme == "" {
				u.Scheme = "https"
			}
			if u.Host == "" {
				u.Host = domain
			}
			return u.String()
		},
	}
	converter := md.NewConverter(a.Domain, true, opt)
	converter.Use(mdplugin.GitHubFlavored())

	markdown, err := converter.ConvertString(simplified)
	if err != nil {
		return Document{}, fmt.Errorf("archive: failed to convert %s to Markdown: %w", page.ID, err)
	}

	header := Header{
		Title:         page.Title,
		ObjectID:      page.ID,
		DestinationID: destID,
		Space:         spaceKey,
		URI:           a.pageURL(page),
		Labels:        page.LabelNames(),
	}
	if page.Version != nil {
		header.Version = page.Version.Number
		header.Updated = page.Version.When
		if header.Updated == "" {
			header.Updated = page.Version.CreatedAt
		}
	}

	name := page.ID + ".md"
	if slug, err := Slug(page.Title); err == nil {
		name = page.ID + "-" + slug + ".md"
	}

	return Document{
		Header:       header,
		Markdown:     markdown,
		RelativePath: strings.Join([]string{a.Domain, spaceKey, name}, "/"),
	}, nil
}

func (a *Archive) pageURL(page *confluence.Content) string {
	if page.Links.WebUI != "" {
		return "https://" + a.Domain + "/wiki" + page.Links.WebUI
	}
	return fmt.Sprintf("https://%s/wiki/pages/viewpage.action?pageId=%s", a.Domain, url.QueryEscape(page.ID))
}

var cdata = regexp.MustCompile(`<!\[CDATA\[([\s\S]*?)\]\]>`)

// simplify rewrites storage-format markup into plain HTML the Markdown converter understands:
// images and code macros become their HTML equivalents, macro parameters are dropped and every
// other ac:/ri: element is replaced by its contents.
func simplify(body, pageID string) (string, error) {
	if body == "" {
		return "", nil
	}
	// An HTML parser treats CDATA as a bogus comment; keep its text.
	body = cdata.ReplaceAllStringFunc(body, func(m string) string {
		return html.EscapeString(cdata.FindStringSubmatch(m)[1])
	})

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", err
	}

	named := func(name string) *goquery.Selection {
		return doc.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return goquery.NodeName(s) == name
		})
	}

	named("ac:parameter").Remove()

	named("ac:image").Each(func(_ int, s *goquery.Selection) {
		var src string
		if u, ok := s.Find("*").FilterFunction(func(_ int, c *goquery.Selection) bool {
			return goquery.NodeName(c) == "ri:url"
		}).Attr("ri:value"); ok {
			src = u
		} else if f, ok := s.Find("*").FilterFunction(func(_ int, c *goquery.Selection) bool {
			return goquery.NodeName(c) == "ri:attachment"
		}).Attr("ri:filename"); ok {
			src = fmt.Sprintf("/wiki/download/attachments/%s/%s", pageID, url.PathEscape(f))
		}
		if src == "" {
			s.Remove()
			return
		}
		alt, _ := s.Attr("ac:alt")
		s.ReplaceWithHtml(fmt.Sprintf(`<img src="%s" alt="%s">`, html.EscapeString(src), html.EscapeString(alt)))
	})

	named("ac:structured-macro").Each(func(_ int, s *goquery.Selection) {
		if name, _ := s.Attr("ac:name"); name != "code" {
			return
		}
		code := s.Find("*").FilterFunction(func(_ int, c *goquery.Selection) bool {
			return goquery.NodeName(c) == "ac:plain-text-body"
		}).Text()
		s.ReplaceWithHtml("<pre><code>" + html.EscapeString(code) + "</code></pre>")
	})

	// Unwrap the rest, innermost first so outer elements still hold their content.
	confluenceOnly := doc.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
		name := goquery.NodeName(s)
		return strings.HasPrefix(name, "ac:") || strings.HasPrefix(name, "ri:")
	})
	for i := confluenceOnly.Length() - 1; i >= 0; i-- {
		s := confluenceOnly.Eq(i)
		s.ReplaceWithSelection(s.Contents())
	}

	return doc.Find("body").Html()
}
