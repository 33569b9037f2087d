// Package feeds classifies fetched documents as RSS/Atom feeds and extracts
// their candidate article items.
package feeds

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// Item is one candidate article discovered in a feed.
type Item struct {
	URL       string
	Title     string
	Published *time.Time
}

// IsFeed sniffs whether body looks like an RSS or Atom document by checking
// for an <rss or <feed tag in the leading content. HTML index pages fail
// this check and go through link extraction instead.
func IsFeed(body string) bool {
	head := strings.TrimLeft(body, " \t\r\n")
	if len(head) > 500 {
		head = head[:500]
	}
	lower := strings.ToLower(head)
	return containsTag(lower, "<rss") || containsTag(lower, "<feed")
}

// containsTag reports whether prefix occurs followed by whitespace or '>',
// so "<feedback>" in an HTML page never counts as an Atom feed.
func containsTag(s, prefix string) bool {
	for idx := strings.Index(s, prefix); idx >= 0; {
		rest := s[idx+len(prefix):]
		if rest == "" {
			return false
		}
		switch rest[0] {
		case ' ', '\t', '\r', '\n', '>':
			return true
		}
		next := strings.Index(rest, prefix)
		if next < 0 {
			return false
		}
		idx = idx + len(prefix) + next
	}
	return false
}

// Parse extracts items from an RSS or Atom document. Items without a link
// are dropped.
func Parse(body string) ([]Item, error) {
	feed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := make([]Item, 0, len(feed.Items))
	for _, fi := range feed.Items {
		if fi.Link == "" {
			continue
		}
		item := Item{
			URL:   fi.Link,
			Title: strings.TrimSpace(fi.Title),
		}
		if fi.PublishedParsed != nil {
			t := fi.PublishedParsed.UTC()
			item.Published = &t
		} else if fi.UpdatedParsed != nil {
			t := fi.UpdatedParsed.UTC()
			item.Published = &t
		}
		items = append(items, item)
	}

	return items, nil
}
