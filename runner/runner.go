// Package runner performs one complete newsletter run: sync every feed, then
// compose, deliver and, on failure, roll back a single digest.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"newsdigest/db"
	"newsdigest/digest"
	"newsdigest/feeds"
	"newsdigest/mailer"
	"newsdigest/metrics"

	log "github.com/sirupsen/logrus"
)

// Mailer delivers a message to its recipients
type Mailer interface {
	Send(ctx context.Context, message mailer.Message) error
}

// Outcome is the result of delivering a digest, either Sent or Failed
type Outcome interface {
	outcome()
}

type Sent struct {
	Count int
}

// Failed carries the ids that were marked as sent for the failed digest
type Failed struct {
	IDs []int64
	Err error
}

func (Sent) outcome()   {}
func (Failed) outcome() {}

type Options struct {
	Subject        string
	From           string
	PushgatewayURL string
	Job            string
}

type Runner struct {
	db       *db.DB
	syncer   *feeds.Syncer
	renderer *digest.Renderer
	mailer   Mailer
	metrics  *metrics.Metrics
	opts     Options
}

func New(database *db.DB, syncer *feeds.Syncer, renderer *digest.Renderer, sender Mailer, m *metrics.Metrics, opts Options) *Runner {
	if m == nil {
		m = metrics.New()
	}
	return &Runner{
		db:       database,
		syncer:   syncer,
		renderer: renderer,
		mailer:   sender,
		metrics:  m,
		opts:     opts,
	}
}

// Run syncs all feeds and sends the digest of unsent entries. Fetch errors,
// an empty digest and delivery failures are handled here, only unexpected
// store errors are returned.
func (r *Runner) Run(ctx context.Context) error {
	start := time.Now()

	feedList, err := r.db.ListFeeds(ctx)
	if err != nil {
		return fmt.Errorf("failed to list feeds: %w", err)
	}

	log.WithField("feeds", len(feedList)).Info("Start syncing feeds")
	for i := range feedList {
		r.recordSync(r.syncer.Sync(ctx, &feedList[i]))
	}
	log.Info("End syncing feeds")

	outcome, err := r.sendDigest(ctx)
	if err != nil {
		return err
	}

	switch o := outcome.(type) {
	case Sent:
		log.WithField("entries", o.Count).Info("Email sent")
		r.metrics.Digests.WithLabelValues("sent").Inc()
		r.metrics.EntriesDelivered.Add(float64(o.Count))
	case Failed:
		log.WithError(o.Err).WithField("entries", len(o.IDs)).Error("There was a problem sending the email")
		r.metrics.Digests.WithLabelValues("failed").Inc()
	default:
		r.metrics.Digests.WithLabelValues("empty").Inc()
	}

	r.metrics.LastRun.SetToCurrentTime()
	r.pushMetrics(ctx)

	log.WithField("duration", time.Since(start)).Debug("Run finished")
	return nil
}

// sendDigest composes, delivers and rolls back in one transaction. A nil
// outcome means there was nothing to send.
func (r *Runner) sendDigest(ctx context.Context) (Outcome, error) {
	var outcome Outcome

	err := r.db.WithTx(ctx, func(tx *db.DB) error {
		feedList, err := tx.ListFeeds(ctx)
		if err != nil {
			return fmt.Errorf("failed to list feeds: %w", err)
		}

		d, err := digest.Compose(ctx, tx, feedList)
		if errors.Is(err, digest.ErrNothingToSend) {
			log.Info("There are no entries")
			return nil
		}
		if err != nil {
			return err
		}

		outcome = r.deliver(ctx, tx, d)

		if failed, ok := outcome.(Failed); ok {
			if err := tx.SetEntriesSent(ctx, failed.IDs, false); err != nil {
				return fmt.Errorf("failed to mark entries as not sent: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (r *Runner) deliver(ctx context.Context, tx *db.DB, d *digest.Digest) Outcome {
	subject := fmt.Sprintf("%s (%d)", r.opts.Subject, d.Count)

	body, err := r.renderer.Render(subject, d)
	if err != nil {
		return Failed{IDs: d.EntryIds, Err: err}
	}

	recipients, err := tx.SubscriberEmails(ctx)
	if err != nil {
		return Failed{IDs: d.EntryIds, Err: err}
	}
	if len(recipients) == 0 {
		return Failed{IDs: d.EntryIds, Err: mailer.ErrNoRecipients}
	}

	err = r.mailer.Send(ctx, mailer.Message{
		Subject:    subject,
		HTMLBody:   body.HTML,
		TextBody:   body.Text,
		From:       r.opts.From,
		Recipients: recipients,
	})
	if err != nil {
		return Failed{IDs: d.EntryIds, Err: err}
	}

	return Sent{Count: d.Count}
}

func (r *Runner) recordSync(result feeds.SyncResult) {
	r.metrics.FeedsSynced.Inc()
	r.metrics.EntriesCreated.Add(float64(result.Created))
	if result.FetchError != nil {
		r.metrics.FeedErrors.WithLabelValues("fetch").Inc()
	}
	if result.StoreError != nil {
		r.metrics.FeedErrors.WithLabelValues("store").Inc()
	}
}

func (r *Runner) pushMetrics(ctx context.Context) {
	if r.opts.PushgatewayURL == "" {
		return
	}
	if err := r.metrics.Push(ctx, r.opts.PushgatewayURL, r.opts.Job); err != nil {
		log.WithError(err).Warn("Error pushing metrics")
	}
}
