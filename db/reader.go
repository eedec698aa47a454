package db

import (
	"context"
	"database/sql"
	"fmt"
	"newsdigest/models"

	"github.com/samber/lo"
)

// Read operations

var entryColumns = []string{
	"entries.id",
	"entries.entry_id",
	"entries.title",
	"entries.summary",
	"entries.tags",
	"entries.url",
	"entries.publication_date",
	"entries.sent",
	"entries.feed_id",
}

func (db *DB) ListFeeds(ctx context.Context) ([]models.Feed, error) {
	sb := db.flavor.NewSelectBuilder()
	sb.Select("id", "name", "url", "last_update").From("feeds").OrderBy("id").Asc()
	query, args := sb.Build()

	rows, err := db.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query feeds: %w", err)
	}
	defer rows.Close()

	var feeds []models.Feed
	for rows.Next() {
		var feed models.Feed
		if err := rows.Scan(&feed.Id, &feed.Name, &feed.Url, &feed.LastUpdate); err != nil {
			return nil, fmt.Errorf("scan feed: %w", err)
		}
		feeds = append(feeds, feed)
	}
	return feeds, rows.Err()
}

func (db *DB) GetFeed(ctx context.Context, id int64) (models.Feed, error) {
	sb := db.flavor.NewSelectBuilder()
	sb.Select("id", "name", "url", "last_update").From("feeds").Where(sb.Equal("id", id))
	query, args := sb.Build()

	var feed models.Feed
	err := db.q.QueryRowContext(ctx, query, args...).Scan(&feed.Id, &feed.Name, &feed.Url, &feed.LastUpdate)
	if err != nil {
		return models.Feed{}, fmt.Errorf("query feed %d: %w", id, err)
	}
	return feed, nil
}

// ExistingEntryIds returns the subset of the given feed entry ids that are
// already stored, across all feeds.
func (db *DB) ExistingEntryIds(ctx context.Context, entryIds []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(entryIds) == 0 {
		return existing, nil
	}

	for _, chunk := range lo.Chunk(lo.Uniq(entryIds), inBatchSize) {
		sb := db.flavor.NewSelectBuilder()
		sb.Select("entry_id").From("entries").Where(sb.In("entry_id", lo.ToAnySlice(chunk)...))
		query, args := sb.Build()

		if err := db.collectEntryIds(ctx, query, args, existing); err != nil {
			return nil, err
		}
	}
	return existing, nil
}

func (db *DB) collectEntryIds(ctx context.Context, query string, args []interface{}, existing map[string]bool) error {
	rows, err := db.q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query entry ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan entry id: %w", err)
		}
		existing[id] = true
	}
	return rows.Err()
}

// UnsentEntries returns the unsent entries of a feed, newest first. On
// PostgreSQL the rows are locked until the surrounding transaction ends.
func (db *DB) UnsentEntries(ctx context.Context, feedId int64) ([]models.Entry, error) {
	sb := db.flavor.NewSelectBuilder()
	sb.Select(entryColumns...).From("entries").
		Where(sb.Equal("entries.feed_id", feedId), sb.Equal("entries.sent", false)).
		OrderBy("entries.publication_date").Desc()
	if db.postgres {
		sb.ForUpdate()
	}
	query, args := sb.Build()

	return db.queryEntries(ctx, query, args)
}

func (db *DB) EntriesByFeed(ctx context.Context, feedId int64) ([]models.Entry, error) {
	sb := db.flavor.NewSelectBuilder()
	sb.Select(entryColumns...).From("entries").
		Where(sb.Equal("entries.feed_id", feedId)).
		OrderBy("entries.publication_date").Desc()
	query, args := sb.Build()

	return db.queryEntries(ctx, query, args)
}

// ListEntries returns entries of all feeds with their feed name, newest
// first, limited to unsent ones when unsentOnly is set.
func (db *DB) ListEntries(ctx context.Context, unsentOnly bool, limit int) ([]models.EntryWithFeed, error) {
	sb := db.flavor.NewSelectBuilder()
	sb.Select(append(entryColumns, "feeds.name")...).From("entries").
		Join("feeds", "feeds.id = entries.feed_id")
	if unsentOnly {
		sb.Where(sb.Equal("entries.sent", false))
	}
	sb.OrderBy("entries.publication_date").Desc()
	if limit > 0 {
		sb.Limit(limit)
	}
	query, args := sb.Build()

	rows, err := db.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []models.EntryWithFeed
	for rows.Next() {
		var e models.EntryWithFeed
		if err := rows.Scan(entryDest(&e.Entry, &e.FeedName)...); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (db *DB) ListSubscribers(ctx context.Context) ([]models.Subscriber, error) {
	sb := db.flavor.NewSelectBuilder()
	sb.Select("id", "name", "email").From("subscribers").OrderBy("id").Asc()
	query, args := sb.Build()

	rows, err := db.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer rows.Close()

	var subscribers []models.Subscriber
	for rows.Next() {
		var s models.Subscriber
		if err := rows.Scan(&s.Id, &s.Name, &s.Email); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		subscribers = append(subscribers, s)
	}
	return subscribers, rows.Err()
}

// SubscriberEmails returns the distinct recipient addresses
func (db *DB) SubscriberEmails(ctx context.Context) ([]string, error) {
	subscribers, err := db.ListSubscribers(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Uniq(lo.Map(subscribers, func(s models.Subscriber, _ int) string {
		return s.Email
	})), nil
}

func (db *DB) queryEntries(ctx context.Context, query string, args []interface{}) ([]models.Entry, error) {
	rows, err := db.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]models.Entry, error) {
	var entries []models.Entry
	for rows.Next() {
		var e models.Entry
		if err := rows.Scan(entryDest(&e)...); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func entryDest(e *models.Entry, extra ...interface{}) []interface{} {
	return append([]interface{}{
		&e.Id,
		&e.EntryId,
		&e.Title,
		&e.Summary,
		&e.Tags,
		&e.Url,
		&e.PublicationDate,
		&e.Sent,
		&e.FeedId,
	}, extra...)
}
