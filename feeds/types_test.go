package feeds_test

import (
	"testing"
	"time"

	"newsdigest/feeds"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string {
	return &s
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected time.Time
		wantErr  bool
	}{
		{
			name:     "bare grammar is UTC",
			value:    "Mon, 02 Jan 2006 15:04:05",
			expected: time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC),
		},
		{
			name:     "numeric offset",
			value:    "Mon, 02 Jan 2006 15:04:05 +0200",
			expected: time.Date(2006, 1, 2, 13, 4, 5, 0, time.UTC),
		},
		{
			name:     "GMT abbreviation",
			value:    "Tue, 10 Jun 2003 04:00:00 GMT",
			expected: time.Date(2003, 6, 10, 4, 0, 0, 0, time.UTC),
		},
		{
			name:     "RFC 822 eastern standard time",
			value:    "Wed, 10 Jan 2024 07:00:00 EST",
			expected: time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC),
		},
		{
			name:     "RFC 822 pacific daylight time",
			value:    "Mon, 10 Jun 2024 05:00:00 PDT",
			expected: time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC),
		},
		{
			name:     "RFC 822 universal time",
			value:    "Mon, 10 Jun 2024 05:00:00 UT",
			expected: time.Date(2024, 6, 10, 5, 0, 0, 0, time.UTC),
		},
		{
			name:    "unknown zone name",
			value:   "Mon, 10 Jun 2024 05:00:00 XYZ",
			wantErr: true,
		},
		{
			name:     "surrounding whitespace",
			value:    "  Mon, 02 Jan 2006 15:04:05  ",
			expected: time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC),
		},
		{
			name:    "RFC3339 does not match",
			value:   "2006-01-02T15:04:05Z",
			wantErr: true,
		},
		{
			name:    "empty",
			value:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := feeds.ParseDate(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "expected %s, got %s", tt.expected, got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestLastPublished(t *testing.T) {
	tests := []struct {
		name     string
		doc      feeds.Document
		expected time.Time
		wantErr  bool
	}{
		{
			name: "document updated wins",
			doc: feeds.Document{
				Updated: ptr("Mon, 02 Jan 2006 15:04:05"),
				Feed:    feeds.FeedInfo{Updated: ptr("Tue, 03 Jan 2006 15:04:05")},
			},
			expected: time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC),
		},
		{
			name: "unparseable document updated falls back to feed updated",
			doc: feeds.Document{
				Updated: ptr("yesterday"),
				Feed:    feeds.FeedInfo{Updated: ptr("Tue, 03 Jan 2006 15:04:05")},
			},
			expected: time.Date(2006, 1, 3, 15, 4, 5, 0, time.UTC),
		},
		{
			name: "missing fields fall back to first entry",
			doc: feeds.Document{
				Entries: []feeds.DocumentEntry{
					{ID: "1", Published: "Wed, 04 Jan 2006 15:04:05"},
					{ID: "2", Published: "Thu, 05 Jan 2006 15:04:05"},
				},
			},
			expected: time.Date(2006, 1, 4, 15, 4, 5, 0, time.UTC),
		},
		{
			name: "unparseable feed updated falls back to first entry",
			doc: feeds.Document{
				Feed: feeds.FeedInfo{Updated: ptr("2006-01-03")},
				Entries: []feeds.DocumentEntry{
					{ID: "1", Published: "Wed, 04 Jan 2006 15:04:05"},
				},
			},
			expected: time.Date(2006, 1, 4, 15, 4, 5, 0, time.UTC),
		},
		{
			name:    "empty document",
			doc:     feeds.Document{},
			wantErr: true,
		},
		{
			name: "nothing parseable",
			doc: feeds.Document{
				Updated: ptr("soon"),
				Entries: []feeds.DocumentEntry{{ID: "1", Published: "later"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.doc.LastPublished()
			if tt.wantErr {
				assert.ErrorIs(t, err, feeds.ErrNoTimestamp)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestDocumentEntryKey(t *testing.T) {
	assert.Equal(t, "guid-1", feeds.DocumentEntry{ID: " guid-1 ", Link: "https://example.com/1"}.Key())
	assert.Equal(t, "https://example.com/1", feeds.DocumentEntry{Link: "https://example.com/1"}.Key())
	assert.Equal(t, "", feeds.DocumentEntry{}.Key())
}
