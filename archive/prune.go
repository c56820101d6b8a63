package archive

import (
	"fmt"
	"os"
	"path/filepath"
)

// isCurrent reports whether doc's file already holds this version of the page, migrated to the
// same destination.
func (a *Archive) isCurrent(doc Document) bool {
	if doc.Header.Version == 0 {
		return false
	}
	existing, err := ReadHeader(filepath.Join(a.Dir, filepath.FromSlash(doc.RelativePath)))
	if err != nil {
		// missing or unreadable, either way it gets rewritten
		return false
	}
	return existing.ObjectID == doc.Header.ObjectID &&
		existing.Version == doc.Header.Version &&
		existing.DestinationID == doc.Header.DestinationID
}

// Prune removes the stale copies of pages archived more than once, which happens when a page is
// renamed between migrations.  The copy with the highest version is kept.  It returns the
// relative paths it removed.
func (a *Archive) Prune(spaceKey string) ([]string, error) {
	entries, err := a.Entries(spaceKey)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]Entry)
	for _, e := range entries {
		if best, ok := latest[e.Header.ObjectID]; !ok || e.Header.Version > best.Header.Version {
			latest[e.Header.ObjectID] = e
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var removed []string
	for _, e := range entries {
		if latest[e.Header.ObjectID].RelativePath == e.RelativePath {
			continue
		}
		abs := filepath.Join(a.Dir, filepath.FromSlash(e.RelativePath))
		if err := os.Remove(abs); err != nil {
			return removed, fmt.Errorf("archive: failed to remove %s: %w", abs, err)
		}
		logger.Infof("pruned %s, page %s now lives at %s", e.RelativePath, e.Header.ObjectID, latest[e.Header.ObjectID].RelativePath)
		removed = append(removed, e.RelativePath)
	}
	return removed, nil
}
