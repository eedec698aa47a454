package db

import (
	"context"
	"fmt"
	"newsdigest/models"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// Write operations

func (db *DB) CreateFeed(ctx context.Context, name, url string, now time.Time) (models.Feed, error) {
	ib := db.flavor.NewInsertBuilder()
	ib.InsertInto("feeds").Cols("name", "url", "last_update").Values(name, url, now.UTC())
	sql, args := ib.Build()

	feed := models.Feed{Name: name, Url: url, LastUpdate: now}
	if err := db.q.QueryRowContext(ctx, sql+" RETURNING id", args...).Scan(&feed.Id); err != nil {
		return models.Feed{}, fmt.Errorf("insert feed: %w", err)
	}

	log.WithFields(log.Fields{
		"id":   feed.Id,
		"name": name,
		"url":  url,
	}).Info("Created feed")

	return feed, nil
}

// UpdateFeedLastUpdate moves the watermark of a feed
func (db *DB) UpdateFeedLastUpdate(ctx context.Context, feedId int64, t time.Time) error {
	ub := db.flavor.NewUpdateBuilder()
	ub.Update("feeds").Set(ub.Assign("last_update", t.UTC())).Where(ub.Equal("id", feedId))
	sql, args := ub.Build()

	if _, err := db.q.ExecContext(ctx, sql, args...); err != nil {
		return fmt.Errorf("update feed last_update: %w", err)
	}
	return nil
}

// CreateEntries inserts all entries in a single transaction. A failed batch
// is retried as a whole, so either every entry is stored or none is.
// Constraint violations are not retried.
func (db *DB) CreateEntries(ctx context.Context, entries []models.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second

	op := func() error {
		err := db.WithTx(ctx, func(tx *DB) error {
			return tx.insertEntries(ctx, entries)
		})
		if isConstraintError(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		log.WithFields(log.Fields{
			"entries": len(entries),
			"retryIn": next,
		}).WithError(err).Warn("Inserting entries failed, retrying batch")
	}

	return backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(b, 3), ctx), notify)
}

// insertEntries writes the entries in chunks of insertBatchSize rows to stay
// below the bound parameter limit of the database
func (db *DB) insertEntries(ctx context.Context, entries []models.Entry) error {
	for _, chunk := range lo.Chunk(entries, insertBatchSize) {
		ib := db.flavor.NewInsertBuilder()
		ib.InsertInto("entries").Cols("entry_id", "title", "summary", "tags", "url", "publication_date", "sent", "feed_id")
		for _, e := range chunk {
			ib.Values(e.EntryId, e.Title, e.Summary, e.Tags, e.Url, e.PublicationDate.UTC(), e.Sent, e.FeedId)
		}
		sql, args := ib.Build()

		if _, err := db.q.ExecContext(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert entries: %w", err)
		}
	}
	return nil
}

// SetEntriesSent sets the sent flag on exactly the given entry ids
func (db *DB) SetEntriesSent(ctx context.Context, ids []int64, sent bool) error {
	if len(ids) == 0 {
		return nil
	}

	return db.WithTx(ctx, func(tx *DB) error {
		var affected int64
		for _, chunk := range lo.Chunk(ids, inBatchSize) {
			ub := tx.flavor.NewUpdateBuilder()
			ub.Update("entries").Set(ub.Assign("sent", sent)).Where(ub.In("id", lo.ToAnySlice(chunk)...))
			sql, args := ub.Build()

			res, err := tx.q.ExecContext(ctx, sql, args...)
			if err != nil {
				return fmt.Errorf("update entries sent: %w", err)
			}
			if n, err := res.RowsAffected(); err == nil {
				affected += n
			}
		}

		log.WithFields(log.Fields{
			"sent":     sent,
			"entries":  len(ids),
			"affected": affected,
		}).Debug("Updated sent flag")
		return nil
	})
}

func (db *DB) CreateSubscriber(ctx context.Context, name, email string) (models.Subscriber, error) {
	ib := db.flavor.NewInsertBuilder()
	ib.InsertInto("subscribers").Cols("name", "email").Values(name, email)
	sql, args := ib.Build()

	sub := models.Subscriber{Name: name, Email: email}
	if err := db.q.QueryRowContext(ctx, sql+" RETURNING id", args...).Scan(&sub.Id); err != nil {
		return models.Subscriber{}, fmt.Errorf("insert subscriber: %w", err)
	}

	log.WithFields(log.Fields{
		"id":    sub.Id,
		"email": email,
	}).Info("Created subscriber")

	return sub, nil
}
