package runner_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"newsdigest/db"
	"newsdigest/digest"
	"newsdigest/feeds"
	"newsdigest/mailer"
	"newsdigest/metrics"
	"newsdigest/runner"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, message mailer.Message) error {
	return m.Called(ctx, message).Error(0)
}

// staticParser serves the same document for every url
type staticParser struct {
	doc *feeds.Document
}

func (p *staticParser) Fetch(_ context.Context, _ string) (*feeds.Document, error) {
	if p.doc == nil {
		return nil, errors.New("no such feed")
	}
	return p.doc, nil
}

func threeEntries() *feeds.Document {
	doc := &feeds.Document{}
	for i := 1; i <= 3; i++ {
		doc.Entries = append(doc.Entries, feeds.DocumentEntry{
			ID:      fmt.Sprintf("entry-%d", i),
			Title:   fmt.Sprintf("Entry %d", i),
			Link:    fmt.Sprintf("https://example.com/%d", i),
			Summary: "summary",
		})
	}
	return doc
}

type RunnerSuite struct {
	suite.Suite
	db      *db.DB
	ctx     context.Context
	parser  *staticParser
	mailer  *mockMailer
	metrics *metrics.Metrics
	runner  *runner.Runner
}

func TestRunnerSuite(t *testing.T) {
	suite.Run(t, new(RunnerSuite))
}

func (s *RunnerSuite) SetupTest() {
	database, err := db.NewDB(filepath.Join(s.T().TempDir(), "test.db"))
	s.Require().NoError(err)
	s.Require().NoError(database.Migrate())

	s.db = database
	s.ctx = context.Background()
	s.parser = &staticParser{}
	s.mailer = new(mockMailer)
	s.metrics = metrics.New()

	renderer, err := digest.NewRenderer("")
	s.Require().NoError(err)

	syncer := feeds.NewSyncer(database, s.parser, time.UTC)
	s.runner = runner.New(database, syncer, renderer, s.mailer, s.metrics, runner.Options{
		Subject: "Newsletter",
		From:    "digest@example.com",
	})

	_, err = database.CreateFeed(s.ctx, "news", "https://example.com/feed.xml", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
}

func (s *RunnerSuite) TearDownTest() {
	s.db.Close()
}

func (s *RunnerSuite) addSubscribers() {
	_, err := s.db.CreateSubscriber(s.ctx, "Ana", "ana@example.com")
	s.Require().NoError(err)
	_, err = s.db.CreateSubscriber(s.ctx, "Ana at work", "ana@example.com")
	s.Require().NoError(err)
	_, err = s.db.CreateSubscriber(s.ctx, "Bo", "bo@example.com")
	s.Require().NoError(err)
}

func (s *RunnerSuite) unsentCount() int {
	entries, err := s.db.ListEntries(s.ctx, true, 0)
	s.Require().NoError(err)
	return len(entries)
}

func (s *RunnerSuite) totalCount() int {
	entries, err := s.db.ListEntries(s.ctx, false, 0)
	s.Require().NoError(err)
	return len(entries)
}

func (s *RunnerSuite) TestSendsDigest() {
	s.addSubscribers()
	s.parser.doc = threeEntries()

	s.mailer.On("Send", mock.Anything, mock.MatchedBy(func(m mailer.Message) bool {
		return m.Subject == "Newsletter (3)" &&
			m.From == "digest@example.com" &&
			len(m.Recipients) == 2 &&
			m.HTMLBody != "" && m.TextBody != ""
	})).Return(nil).Once()

	s.Require().NoError(s.runner.Run(s.ctx))

	s.mailer.AssertExpectations(s.T())
	s.Equal(3, s.totalCount())
	s.Equal(0, s.unsentCount())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Digests.WithLabelValues("sent")))
	s.Equal(3.0, testutil.ToFloat64(s.metrics.EntriesDelivered))
	s.Equal(3.0, testutil.ToFloat64(s.metrics.EntriesCreated))
}

func (s *RunnerSuite) TestFailedDeliveryRollsBack() {
	s.addSubscribers()
	s.parser.doc = threeEntries()

	s.mailer.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp unavailable")).Once()

	s.Require().NoError(s.runner.Run(s.ctx))

	s.mailer.AssertExpectations(s.T())
	s.Equal(3, s.totalCount())
	s.Equal(3, s.unsentCount())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Digests.WithLabelValues("failed")))

	// The next run does not create the entries again and retries them
	s.mailer.On("Send", mock.Anything, mock.MatchedBy(func(m mailer.Message) bool {
		return m.Subject == "Newsletter (3)"
	})).Return(nil).Once()

	s.Require().NoError(s.runner.Run(s.ctx))

	s.mailer.AssertExpectations(s.T())
	s.Equal(3, s.totalCount())
	s.Equal(0, s.unsentCount())
}

func (s *RunnerSuite) TestNothingToSend() {
	s.addSubscribers()
	s.parser.doc = &feeds.Document{}

	s.Require().NoError(s.runner.Run(s.ctx))

	s.mailer.AssertNotCalled(s.T(), "Send", mock.Anything, mock.Anything)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Digests.WithLabelValues("empty")))
}

func (s *RunnerSuite) TestAlreadySentEntriesAreNotResent() {
	s.addSubscribers()
	s.parser.doc = threeEntries()
	s.mailer.On("Send", mock.Anything, mock.Anything).Return(nil).Once()

	s.Require().NoError(s.runner.Run(s.ctx))
	s.Require().NoError(s.runner.Run(s.ctx))

	s.mailer.AssertNumberOfCalls(s.T(), "Send", 1)
}

func (s *RunnerSuite) TestNoSubscribersRollsBack() {
	s.parser.doc = threeEntries()

	s.Require().NoError(s.runner.Run(s.ctx))

	s.mailer.AssertNotCalled(s.T(), "Send", mock.Anything, mock.Anything)
	s.Equal(3, s.unsentCount())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Digests.WithLabelValues("failed")))
}

func (s *RunnerSuite) TestFetchErrorStillSendsPendingEntries() {
	s.addSubscribers()
	s.parser.doc = threeEntries()
	s.mailer.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp unavailable")).Once()
	s.Require().NoError(s.runner.Run(s.ctx))

	s.parser.doc = nil
	s.mailer.On("Send", mock.Anything, mock.Anything).Return(nil).Once()
	s.Require().NoError(s.runner.Run(s.ctx))

	s.mailer.AssertExpectations(s.T())
	s.Equal(0, s.unsentCount())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.FeedErrors.WithLabelValues("fetch")))
}

func TestRunReturnsStoreErrors(t *testing.T) {
	database, err := db.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	// no migrations, the feeds table does not exist

	renderer, err := digest.NewRenderer("")
	require.NoError(t, err)

	r := runner.New(database, feeds.NewSyncer(database, &staticParser{}, nil), renderer, new(mockMailer), nil, runner.Options{})
	require.Error(t, r.Run(context.Background()))
	database.Close()
}
