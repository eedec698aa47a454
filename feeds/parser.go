package feeds

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"
)

// Parser turns a feed URL into a Document
type Parser interface {
	Fetch(ctx context.Context, url string) (*Document, error)
}

// GofeedParser fetches and parses RSS, Atom and JSON feeds with gofeed
type GofeedParser struct {
	parser *gofeed.Parser
}

func NewGofeedParser(timeout time.Duration, userAgent string) *GofeedParser {
	fp := gofeed.NewParser()
	fp.Client = &http.Client{Timeout: timeout}
	if userAgent != "" {
		fp.UserAgent = userAgent
	}
	return &GofeedParser{parser: fp}
}

func (p *GofeedParser) Fetch(ctx context.Context, url string) (*Document, error) {
	feed, err := p.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", url, err)
	}
	return FromGofeed(feed), nil
}

// ParseString parses a feed held in memory
func (p *GofeedParser) ParseString(content string) (*Document, error) {
	feed, err := p.parser.ParseString(content)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return FromGofeed(feed), nil
}

// FromGofeed converts a gofeed feed into a Document
func FromGofeed(feed *gofeed.Feed) *Document {
	if feed == nil {
		return &Document{}
	}

	doc := &Document{
		Updated: optional(feed.Updated),
		Feed: FeedInfo{
			Updated: optional(feed.Published),
		},
		Entries: make([]DocumentEntry, 0, len(feed.Items)),
	}

	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		summary := item.Description
		if summary == "" {
			summary = item.Content
		}
		doc.Entries = append(doc.Entries, DocumentEntry{
			ID:          item.GUID,
			Title:       item.Title,
			Link:        item.Link,
			Summary:     summary,
			Published:   item.Published,
			PublishedAt: item.PublishedParsed,
			Tags:        lo.Compact(lo.Map(item.Categories, func(c string, _ int) string { return strings.TrimSpace(c) })),
		})
	}

	return doc
}

func optional(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}
