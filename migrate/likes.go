package migrate

import "context"

// likes can only record that a page was liked: the API likes as the calling user, so one like is
// added whatever the source count.
func (m *migration) likes(ctx context.Context, srcPageID, dstPageID string) {
	count, err := m.Source.LikeCount(ctx, srcPageID)
	if err != nil {
		logger.Debugf("like count of %s: %v", srcPageID, err)
		return
	}
	if count == 0 {
		return
	}
	if err := m.Dest.AddLike(ctx, dstPageID); err != nil {
		logger.Debugf("liking %s: %v", dstPageID, err)
		m.logf("    ℹ Source likes: %d", count)
		return
	}
	m.logf("    ✓ Likes: %d on source (1 added)", count)
}
