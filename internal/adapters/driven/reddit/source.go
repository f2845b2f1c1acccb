package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentSource = (*Source)(nil)

// hostMarker identifies links this source can fetch.
const hostMarker = "reddit.com"

// bodyFormat is the MIME type of selftext and comment bodies.
const bodyFormat = "text/markdown"

// Source searches Reddit through its public RSS search and loads threads
// through the public JSON endpoints. No credentials are needed.
type Source struct {
	client *client
	parser *gofeed.Parser
	logger *slog.Logger
}

// NewSource creates a Reddit document source.
func NewSource(cfg Config, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		client: newClient(cfg),
		parser: gofeed.NewParser(),
		logger: logger,
	}
}

// HostMarker returns "reddit.com".
func (s *Source) HostMarker() string {
	return hostMarker
}

// Search returns up to limit posts matching query, in Reddit's relevance order.
func (s *Source) Search(ctx context.Context, query string, limit int) ([]domain.RawResult, error) {
	if limit <= 0 {
		return []domain.RawResult{}, nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("sort", "relevance")
	params.Set("type", "link")

	resp, err := s.client.get(ctx, "/search.rss?"+params.Encode(), "application/atom+xml, application/rss+xml")
	if err != nil {
		return nil, fmt.Errorf("failed to search %q: %w", query, err)
	}
	defer resp.Body.Close()

	feed, err := s.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse search feed: %w", err)
	}

	results := make([]domain.RawResult, 0, limit)
	for _, it := range feed.Items {
		if len(results) >= limit {
			break
		}
		link := strings.TrimSpace(it.Link)
		if link == "" {
			continue
		}
		results = append(results, domain.RawResult{
			Title: strings.TrimSpace(it.Title),
			Link:  link,
		})
	}

	s.logger.Debug("reddit search", "query", query, "results", len(results))
	return results, nil
}

// FetchDetails loads the post body and the full comment tree of a thread.
// Comments are flattened depth first. Returns nil, nil when the thread has
// neither a body nor comments.
func (s *Source) FetchDetails(ctx context.Context, permalink string) (*domain.DocumentDetails, error) {
	path, err := threadPath(permalink)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.get(ctx, path, "application/json")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch thread: %w", err)
	}
	defer resp.Body.Close()

	var listings []listing
	if err := json.NewDecoder(resp.Body).Decode(&listings); err != nil {
		return nil, fmt.Errorf("failed to decode thread: %w", err)
	}
	if len(listings) == 0 {
		return nil, nil
	}

	details := &domain.DocumentDetails{
		BodyFormat: bodyFormat,
		Comments:   []domain.Comment{},
	}
	for _, child := range listings[0].Data.Children {
		if child.Kind == kindPost {
			details.Body = cleanText(child.Data.Selftext)
			break
		}
	}
	if len(listings) > 1 {
		details.Comments = flattenComments(listings[1].Data.Children, details.Comments)
	}

	if details.Body == "" && len(details.Comments) == 0 {
		return nil, nil
	}
	return details, nil
}

// threadPath turns "/r/x/comments/id/title/" into "/r/x/comments/id/title.json?raw_json=1".
func threadPath(permalink string) (string, error) {
	p := strings.TrimSpace(permalink)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimSuffix(p, "/")
	if !strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("%w: permalink %q", domain.ErrInvalidInput, permalink)
	}
	return p + ".json?raw_json=1", nil
}

func flattenComments(children []thing, out []domain.Comment) []domain.Comment {
	for _, child := range children {
		if child.Kind != kindComment {
			continue
		}
		if body := cleanText(child.Data.Body); body != "" {
			out = append(out, domain.Comment{Body: body, Upvotes: child.Data.Score})
		}
		if replies := child.Data.replies(); replies != nil {
			out = flattenComments(replies.Data.Children, out)
		}
	}
	return out
}

// cleanText drops moderation placeholders.
func cleanText(s string) string {
	s = strings.TrimSpace(s)
	switch s {
	case "[deleted]", "[removed]":
		return ""
	}
	return s
}
