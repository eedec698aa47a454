package feeds

import (
	"context"
	"strings"
	"time"

	"newsdigest/models"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// Store is the persistence needed to sync a feed
type Store interface {
	ExistingEntryIds(ctx context.Context, entryIds []string) (map[string]bool, error)
	CreateEntries(ctx context.Context, entries []models.Entry) error
	UpdateFeedLastUpdate(ctx context.Context, feedId int64, t time.Time) error
}

// SyncResult summarises one sync call
type SyncResult struct {
	Created    int
	Stale      bool
	FetchError error
	StoreError error
}

// Syncer fetches feeds and persists their new entries
type Syncer struct {
	store    Store
	parser   Parser
	location *time.Location
	now      func() time.Time
}

type SyncerOption func(*Syncer)

// WithClock replaces the wall clock used for the feed watermark
func WithClock(now func() time.Time) SyncerOption {
	return func(s *Syncer) {
		s.now = now
	}
}

// NewSyncer creates a syncer. Watermarks are recorded in location.
func NewSyncer(store Store, parser Parser, location *time.Location, opts ...SyncerOption) *Syncer {
	if location == nil {
		location = time.UTC
	}
	s := &Syncer{
		store:    store,
		parser:   parser,
		location: location,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync fetches a feed, stores entries not seen before and moves the feed
// watermark to the current time. Errors are logged and absorbed, the
// watermark is advanced whatever happened.
func (s *Syncer) Sync(ctx context.Context, feed *models.Feed) SyncResult {
	logger := log.WithFields(log.Fields{
		"feed": feed.Name,
		"url":  feed.Url,
	})
	logger.Info("Fetching entries")

	var result SyncResult

	doc, err := s.parser.Fetch(ctx, feed.Url)
	if err != nil {
		logger.WithError(err).Warn("Error fetching feed")
		result.FetchError = err
	}
	if doc == nil {
		doc = &Document{}
	}

	published, err := doc.LastPublished()
	switch {
	case err != nil:
		logger.WithError(err).Warn("Could not determine when the feed was last published")
	case published.Before(feed.LastUpdate.UTC()):
		result.Stale = true
	}

	if result.Stale {
		logger.WithField("lastPublished", published).Info("There are no new entries")
	} else {
		created, err := s.storeNewEntries(ctx, logger, feed, doc.Entries)
		if err != nil {
			logger.WithError(err).Error("Error storing entries")
			result.StoreError = err
		} else {
			result.Created = created
			logger.WithField("created", created).Info("Stored new entries")
		}
	}

	now := s.now().In(s.location)
	if err := s.store.UpdateFeedLastUpdate(ctx, feed.Id, now); err != nil {
		logger.WithError(err).Error("Error updating feed watermark")
		if result.StoreError == nil {
			result.StoreError = err
		}
		return result
	}
	feed.LastUpdate = now

	return result
}

func (s *Syncer) storeNewEntries(ctx context.Context, logger *log.Entry, feed *models.Feed, items []DocumentEntry) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	keys := lo.Compact(lo.Map(items, func(item DocumentEntry, _ int) string { return item.Key() }))
	existing, err := s.store.ExistingEntryIds(ctx, keys)
	if err != nil {
		return 0, err
	}

	fallback := s.now().UTC()
	seen := make(map[string]bool, len(items))
	var entries []models.Entry

	for _, item := range items {
		key := item.Key()
		if key == "" {
			logger.WithField("title", item.Title).Warn("Skipping entry without id or link")
			continue
		}
		if existing[key] || seen[key] {
			continue
		}
		seen[key] = true

		entries = append(entries, models.Entry{
			EntryId:         key,
			Title:           item.Title,
			Summary:         item.Summary,
			Tags:            strings.Join(item.Tags, ", "),
			Url:             item.Link,
			PublicationDate: publicationDate(logger, item, fallback),
			FeedId:          feed.Id,
		})
	}

	if err := s.store.CreateEntries(ctx, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

func publicationDate(logger *log.Entry, item DocumentEntry, fallback time.Time) time.Time {
	t, err := ParseDate(item.Published)
	if err == nil {
		return t
	}
	if item.PublishedAt != nil {
		return item.PublishedAt.UTC()
	}
	logger.WithError(err).WithField("entry", item.Key()).Warn("Could not parse entry publication date, using sync time")
	return fallback
}
