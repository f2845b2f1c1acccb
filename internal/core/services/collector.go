package services

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/core/ports/driven"
)

// defaultBodyFormat is assumed when a source does not report one.
const defaultBodyFormat = "text/plain"

// Collector turns search hits into Documents. Every request to the source
// waits on a shared limiter so consecutive requests are at least one
// request delay apart.
type Collector struct {
	source      driven.DocumentSource
	normalisers driven.NormaliserRegistry
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// CollectorConfig holds dependencies for Collector.
type CollectorConfig struct {
	Source       driven.DocumentSource
	Normalisers  driven.NormaliserRegistry // Optional: raw text is kept when nil
	RequestDelay time.Duration             // Zero disables the politeness delay
	Limiter      *rate.Limiter             // Optional: shared with other collectors, overrides RequestDelay
	Logger       *slog.Logger
}

// NewCollector creates a new collector.
func NewCollector(cfg CollectorConfig) *Collector {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(requestLimit(cfg.RequestDelay), 1)
	}

	return &Collector{
		source:      cfg.Source,
		normalisers: cfg.Normalisers,
		limiter:     limiter,
		logger:      logger,
	}
}

// requestLimit converts a request delay into a limiter rate.
func requestLimit(delay time.Duration) rate.Limit {
	if delay <= 0 {
		return rate.Inf
	}
	return rate.Every(delay)
}

// Collect searches one query and fetches the details behind every hit.
// Search and fetch failures are logged and skipped; only cancellation of
// ctx is returned as an error.
func (c *Collector) Collect(ctx context.Context, query string, limit int) ([]*domain.Document, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	results, err := c.source.Search(ctx, query, limit)
	if err != nil {
		c.logger.Warn("search failed", "query", query, "error", err)
		return nil, nil
	}

	marker := c.source.HostMarker()
	var docs []*domain.Document
	for _, result := range results {
		permalink, ok := domain.PermalinkFromLink(result.Link, marker)
		if !ok {
			continue
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return docs, err
		}

		details, err := c.source.FetchDetails(ctx, permalink)
		if err != nil {
			c.logger.Warn("failed to fetch details",
				"query", query,
				"link", result.Link,
				"error", err,
			)
			continue
		}
		if details == nil {
			continue
		}

		docs = append(docs, c.buildDocument(result, permalink, details, query))
	}

	return docs, nil
}

func (c *Collector) buildDocument(result domain.RawResult, permalink string, details *domain.DocumentDetails, query string) *domain.Document {
	format := details.BodyFormat
	if format == "" {
		format = defaultBodyFormat
	}

	comments := make([]domain.Comment, 0, len(details.Comments))
	for _, comment := range details.Comments {
		comments = append(comments, domain.Comment{
			Body:    c.normalise(comment.Body, format),
			Upvotes: comment.Upvotes,
		})
	}

	return &domain.Document{
		Title:       result.Title,
		Body:        c.normalise(details.Body, format),
		Comments:    comments,
		URL:         result.Link,
		Channel:     domain.ChannelFromPermalink(permalink),
		SearchQuery: query,
	}
}

func (c *Collector) normalise(content, format string) string {
	if c.normalisers == nil {
		return content
	}
	n := c.normalisers.Get(format)
	if n == nil {
		return content
	}
	return n.Normalise(content, format)
}
