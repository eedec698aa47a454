// Package digest groups unsent entries per feed and renders them into an
// email body.
package digest

import (
	"context"
	"errors"
	"fmt"

	"newsdigest/models"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// ErrNothingToSend is returned by Compose when no feed has unsent entries
var ErrNothingToSend = errors.New("there are no entries to send")

// Store is the persistence needed to compose a digest
type Store interface {
	UnsentEntries(ctx context.Context, feedId int64) ([]models.Entry, error)
	SetEntriesSent(ctx context.Context, ids []int64, sent bool) error
}

// Group holds the unsent entries of one feed
type Group struct {
	FeedName string
	Entries  []models.Entry
}

type Digest struct {
	Groups []Group
	// EntryIds are exactly the entries marked as sent by Compose
	EntryIds []int64
	Count    int
}

// Compose collects the unsent entries of every feed, in feed order, and marks
// them as sent. The returned digest carries the ids that were marked so a
// failed delivery can revert exactly those.
func Compose(ctx context.Context, store Store, feeds []models.Feed) (*Digest, error) {
	digest := &Digest{}

	for _, feed := range feeds {
		entries, err := store.UnsentEntries(ctx, feed.Id)
		if err != nil {
			return nil, fmt.Errorf("failed to get unsent entries for feed %s: %w", feed.Name, err)
		}
		if len(entries) == 0 {
			continue
		}

		digest.Groups = append(digest.Groups, Group{FeedName: feed.Name, Entries: entries})
		digest.EntryIds = append(digest.EntryIds, lo.Map(entries, func(e models.Entry, _ int) int64 { return e.Id })...)
		digest.Count += len(entries)
	}

	if digest.Count == 0 {
		return nil, ErrNothingToSend
	}

	if err := store.SetEntriesSent(ctx, digest.EntryIds, true); err != nil {
		return nil, fmt.Errorf("failed to mark entries as sent: %w", err)
	}

	log.WithFields(log.Fields{
		"feeds":   len(digest.Groups),
		"entries": digest.Count,
	}).Debug("Composed digest")

	return digest, nil
}
