package confluence

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("confluence-migrate.confluence")

// CleanDomain normalises a user-supplied site name: it drops any scheme and trailing slash, so
// "https://acme.atlassian.net/" becomes "acme.atlassian.net".
func CleanDomain(domain string) string {
	d := strings.TrimSpace(domain)
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimRight(d, "/")
	return strings.TrimSpace(d)
}

func NewAPI(domain string, username string, token string) (*API, error) {
	domain = CleanDomain(domain)

	if domain == "" {
		return &API{}, fmt.Errorf("confluence: configure your Confluence site, e.g. ORG.atlassian.net")
	}
	if username == "" {
		return &API{}, fmt.Errorf("confluence: configure your Atlassian account email")
	}
	if token == "" {
		return &API{}, fmt.Errorf("confluence: auth token is empty, please check your token command")
	}

	u, err := url.ParseRequestURI(fmt.Sprintf("https://%s", domain))
	if err != nil {
		return nil, fmt.Errorf("confluence: couldn't parse REST API URL: %w", err)
	}

	a := &API{
		BaseURI:  u,
		Domain:   domain,
		token:    token,
		username: username,
	}
	a.Client = &http.Client{}

	return a, nil
}

type API struct {
	// Root of the site, e.g. https://ORG.atlassian.net.  Both REST surfaces hang off this.
	BaseURI *url.URL

	// Domain is the cleaned site name the credentials were saved with.  It's what the body
	// rewriter matches on, independently of where BaseURI points (tests, proxies).
	Domain string

	// An HTTP client - you can substitute VCR or whatnot.
	Client *http.Client

	// Auth info
	username, token string
}
