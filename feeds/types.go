// Package feeds fetches RSS/Atom documents and stores their new entries
package feeds

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Document is a fetched feed reduced to the fields the syncer needs. Optional
// timestamps are nil when the source did not provide them.
type Document struct {
	// Updated is the document level update time (RSS lastBuildDate, Atom updated)
	Updated *string
	Feed    FeedInfo
	Entries []DocumentEntry
}

// FeedInfo holds the channel level fields of a document
type FeedInfo struct {
	// Updated is the channel publication time (RSS pubDate)
	Updated *string
}

type DocumentEntry struct {
	ID          string
	Title       string
	Link        string
	Summary     string
	Published   string
	// PublishedAt is the publication time as understood by the feed library,
	// used when Published does not match DateLayout
	PublishedAt *time.Time
	Tags        []string
}

// Key is the dedup identifier of the entry. Entries without an id fall back
// to their link.
func (e DocumentEntry) Key() string {
	if id := strings.TrimSpace(e.ID); id != "" {
		return id
	}
	return strings.TrimSpace(e.Link)
}

// DateLayout is the grammar used for every feed timestamp
const DateLayout = "Mon, 02 Jan 2006 15:04:05"

// rfc822Zones are the zone names allowed by RFC 822. time.Parse only knows
// the abbreviations of the local zone and would read the others as UTC.
var rfc822Zones = map[string]int{
	"UT":  0,
	"GMT": 0,
	"Z":   0,
	"EST": -5,
	"EDT": -4,
	"CST": -6,
	"CDT": -5,
	"MST": -7,
	"MDT": -6,
	"PST": -8,
	"PDT": -7,
}

// ParseDate parses a feed timestamp. A trailing numeric offset or RFC 822
// zone name is honoured, otherwise the time is taken as UTC. Unknown zone
// names are an error. The result is always in UTC.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)

	if t, err := time.Parse(DateLayout+" -0700", value); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(DateLayout, value); err == nil {
		return t.UTC(), nil
	}

	if i := strings.LastIndexByte(value, ' '); i > 0 {
		zone := value[i+1:]
		if offset, ok := rfc822Zones[strings.ToUpper(zone)]; ok {
			loc := time.FixedZone(zone, offset*60*60)
			if t, err := time.ParseInLocation(DateLayout, value[:i], loc); err == nil {
				return t.UTC(), nil
			}
		}
	}

	return time.Time{}, fmt.Errorf("date %q does not match %q", value, DateLayout)
}

// ErrNoTimestamp is returned when no field of the fallback chain holds a
// parseable date
var ErrNoTimestamp = errors.New("no last published timestamp available")

// LastPublished determines when the document was last published. It tries
// the document Updated field, then Feed.Updated, then the Published field of
// the first entry, moving on only when a field is missing or fails to parse.
func (d *Document) LastPublished() (time.Time, error) {
	type candidate struct {
		field string
		value *string
	}

	candidates := []candidate{
		{"updated", d.Updated},
		{"feed.updated", d.Feed.Updated},
	}
	if len(d.Entries) > 0 {
		candidates = append(candidates, candidate{"entries[0].published", &d.Entries[0].Published})
	}

	errs := []error{ErrNoTimestamp}
	for _, c := range candidates {
		if c.value == nil || strings.TrimSpace(*c.value) == "" {
			continue
		}
		t, err := ParseDate(*c.value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.field, err))
			continue
		}
		return t, nil
	}
	return time.Time{}, errors.Join(errs...)
}
