// Package archive keeps a local Markdown copy of every page a migration copies, one file per page
// under <dir>/<source-domain>/<SPACE>/<id>-<slug>.md, each starting with a YAML header that says
// where the page came from and where it went.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/juju/loggo"
	"gopkg.in/yaml.v3"

	"github.com/toothbrush/confluence-migrate/confluence"
)

var logger = loggo.GetLogger("confluence-migrate.archive")

// Archive writes pages of one source site below Dir.  It is safe for concurrent use.
type Archive struct {
	Dir    string
	Domain string

	mu sync.Mutex
}

// New prepares an archive rooted at dir, creating it if needed.
func New(dir, domain string) (*Archive, error) {
	domain = confluence.CleanDomain(domain)
	if domain == "" {
		return nil, fmt.Errorf("archive: no source domain")
	}

	stat, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("archive: couldn't create directory %s: %w", dir, err)
		}
	case err != nil:
		return nil, fmt.Errorf("archive: cannot stat '%s': %w", dir, err)
	case !stat.IsDir():
		return nil, fmt.Errorf("archive: not a directory: '%s'", dir)
	}

	return &Archive{Dir: dir, Domain: domain}, nil
}

// ArchivePage converts and writes one page, replacing any earlier copy unless that copy is of the
// same version.
func (a *Archive) ArchivePage(ctx context.Context, spaceKey string, page *confluence.Content, destID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := a.Convert(spaceKey, page, destID)
	if err != nil {
		return err
	}
	if a.isCurrent(doc) {
		logger.Debugf("%s is up to date, skipping", doc.RelativePath)
		return nil
	}
	return a.Write(doc)
}

// Write stores a Document at its relative path.
func (a *Archive) Write(doc Document) error {
	contents, err := doc.Render()
	if err != nil {
		return err
	}

	abs := filepath.Join(a.Dir, filepath.FromSlash(doc.RelativePath))
	directory := filepath.Dir(abs)

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(directory, 0750); err != nil {
		return fmt.Errorf("archive: couldn't create directory %s: %w", directory, err)
	}

	f, err := os.Create(abs)
	if err != nil {
		return fmt.Errorf("archive: couldn't create file %s: %w", abs, err)
	}
	if _, err := f.WriteString(contents); err != nil {
		f.Close()
		return fmt.Errorf("archive: couldn't write to file %s: %w", abs, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("archive: couldn't close file %s: %w", abs, err)
	}
	logger.Debugf("archived %s to %s", doc.Header.ObjectID, doc.RelativePath)
	return nil
}

// ReadHeader parses the front matter of an archived file.
func ReadHeader(path string) (Header, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return Header{}, fmt.Errorf("archive: couldn't read file %s: %w", path, err)
	}

	// The header is the first YAML document in the file.
	var header Header
	if err := yaml.NewDecoder(bytes.NewReader(source)).Decode(&header); err != nil {
		return Header{}, fmt.Errorf("archive: couldn't parse header of file %s: %w", path, err)
	}
	if header.ObjectID == "" {
		return Header{}, fmt.Errorf("archive: header seems broken in %s", path)
	}
	return header, nil
}

// Entry is an archived file and its header.
type Entry struct {
	Header       Header
	RelativePath string
}

// Entries lists what has been archived for one space, ordered by path.  A space never archived
// has no entries.
func (a *Archive) Entries(spaceKey string) ([]Entry, error) {
	root := filepath.Join(a.Dir, a.Domain, spaceKey)
	files, err := markdownFiles(root)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]string)
	entries := make([]Entry, 0, len(files))
	for _, file := range files {
		rel, err := filepath.Rel(a.Dir, file)
		if err != nil {
			return nil, fmt.Errorf("archive: couldn't compute relative path of %s: %w", file, err)
		}
		header, err := ReadHeader(file)
		if err != nil {
			return nil, err
		}
		if other, ok := seen[header.ObjectID]; ok {
			// a page renamed between runs leaves its old file behind
			logger.Warningf("page %s archived twice: %s and %s", header.ObjectID, other, rel)
		}
		seen[header.ObjectID] = rel
		entries = append(entries, Entry{Header: header, RelativePath: filepath.ToSlash(rel)})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].RelativePath < entries[j].RelativePath })
	return entries, nil
}

func markdownFiles(dir string) ([]string, error) {
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("archive: error opening %s for file tree walk: %w", dir, err)
	}

	var filenames []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("archive: error during file tree walk: %w", err)
		}
		if !info.IsDir() && strings.HasSuffix(path, ".md") {
			filenames = append(filenames, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return filenames, nil
}
