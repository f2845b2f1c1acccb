package domain

import (
	"sort"
	"strings"
)

// Comment bounds applied whenever comments feed a prompt or a filter.
const (
	FilterCommentLimit     = 15
	ValidationCommentLimit = 5
	ExtractionCommentLimit = 20
)

// UnknownChannel is used when a permalink does not name a community.
const UnknownChannel = "unknown"

// RawResult is a single search hit returned by a DocumentSource.
type RawResult struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// DocumentDetails is the thread content fetched for one search hit.
type DocumentDetails struct {
	// Body is the thread's own text
	Body string `json:"body"`

	// BodyFormat is the MIME type of Body, used to pick a normaliser
	BodyFormat string `json:"body_format,omitempty"`

	// Comments are the thread replies in source order
	Comments []Comment `json:"comments"`
}

// Comment is a single reply in a discussion thread.
type Comment struct {
	Body    string `json:"body"`
	Upvotes int    `json:"upvotes"`
}

// Document is a discussion thread ready for filtering, validation and extraction.
// Documents are immutable once built.
type Document struct {
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Comments    []Comment `json:"comments"`
	URL         string    `json:"url"`
	Channel     string    `json:"subreddit"`
	SearchQuery string    `json:"search_query"`
}

// TopComments returns up to n comments ordered by upvotes, highest first.
// Ties keep their source order.
func (d *Document) TopComments(n int) []Comment {
	if n <= 0 || len(d.Comments) == 0 {
		return nil
	}
	sorted := make([]Comment, len(d.Comments))
	copy(sorted, d.Comments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Upvotes > sorted[j].Upvotes
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Source returns the attribution triple for places extracted from this document.
func (d *Document) Source() SourceRef {
	return SourceRef{URL: d.URL, Title: d.Title, Channel: d.Channel}
}

// ChannelFromPermalink extracts the community name from a permalink such as
// "/r/travel/comments/abc/title/". Unrecognised shapes yield UnknownChannel.
func ChannelFromPermalink(permalink string) string {
	parts := strings.Split(permalink, "/")
	if len(parts) > 2 && parts[1] == "r" && parts[2] != "" {
		return parts[2]
	}
	return UnknownChannel
}

// PermalinkFromLink returns the path part of a link on the given host marker,
// e.g. "https://www.reddit.com/r/x/comments/1/" -> "/r/x/comments/1/".
// The second return value is false when the link is not on that host.
func PermalinkFromLink(link, hostMarker string) (string, bool) {
	idx := strings.Index(link, hostMarker)
	if idx < 0 {
		return "", false
	}
	return link[idx+len(hostMarker):], true
}

// TruncateRunes cuts s to at most n runes.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
