package models

import (
	"fmt"
	"time"
)

// Feed is a subscribed RSS/Atom source. LastUpdate is the time the feed was
// last checked, not the time of its newest entry.
type Feed struct {
	Id         int64     `json:"id"`
	Name       string    `json:"name"`
	Url        string    `json:"url"`
	LastUpdate time.Time `json:"lastUpdate"`
}

// Entry is a single item of a feed. EntryId is the identifier published by the
// feed and is unique across all feeds.
type Entry struct {
	Id              int64     `json:"id"`
	EntryId         string    `json:"entryId"`
	Title           string    `json:"title"`
	Summary         string    `json:"summary"`
	Tags            string    `json:"tags"`
	Url             string    `json:"url"`
	PublicationDate time.Time `json:"publicationDate"`
	Sent            bool      `json:"sent"`
	FeedId          int64     `json:"feedId"`
}

// Subscriber receives the digest email
type Subscriber struct {
	Id    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (f Feed) String() string {
	return f.Name
}

func (s Subscriber) String() string {
	return fmt.Sprintf("%s (%s)", s.Name, s.Email)
}

// EntryWithFeed pairs an entry with the name of its feed for listings
type EntryWithFeed struct {
	Entry
	FeedName string `json:"feedName"`
}

func (e EntryWithFeed) String() string {
	return fmt.Sprintf("[%s] %s (%s)", e.FeedName, e.Title, e.PublicationDate.Format("02-01-2006"))
}
