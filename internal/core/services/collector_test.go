package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/core/ports/driven/mocks"
)

func TestCollector_Collect(t *testing.T) {
	source := mocks.NewMockDocumentSource()
	source.Results["tokyo cafes"] = []domain.RawResult{
		{Title: "Best cafes", Link: "https://www.reddit.com/r/JapanTravel/comments/1/best_cafes/"},
		{Title: "Off site", Link: "https://example.com/r/tokyo/1"},
		{Title: "Broken", Link: "https://www.reddit.com/r/tokyo/comments/2/broken/"},
		{Title: "Empty", Link: "https://www.reddit.com/r/tokyo/comments/3/empty/"},
		{Title: "User post", Link: "https://www.reddit.com/user/someone/comments/4/x/"},
	}
	source.Details["/r/JapanTravel/comments/1/best_cafes/"] = &domain.DocumentDetails{
		Body:       "**Onibus** is great",
		BodyFormat: "text/markdown",
		Comments:   []domain.Comment{{Body: "try Fuglen", Upvotes: 4}},
	}
	source.Details["/user/someone/comments/4/x/"] = &domain.DocumentDetails{Body: "hi"}
	source.FetchDetailsFn = func(ctx context.Context, permalink string) (*domain.DocumentDetails, error) {
		if strings.Contains(permalink, "broken") {
			return nil, errors.New("429 too many requests")
		}
		return source.Details[permalink], nil
	}

	registry := mocks.NewMockNormaliserRegistry()
	registry.Register(&mocks.MockNormaliser{NormaliseFn: func(content, mimeType string) string {
		return strings.ReplaceAll(content, "*", "")
	}})

	c := NewCollector(CollectorConfig{Source: source, Normalisers: registry})

	docs, err := c.Collect(context.Background(), "tokyo cafes", 10)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	doc := docs[0]
	assert.Equal(t, "Best cafes", doc.Title)
	assert.Equal(t, "Onibus is great", doc.Body)
	assert.Equal(t, "https://www.reddit.com/r/JapanTravel/comments/1/best_cafes/", doc.URL)
	assert.Equal(t, "JapanTravel", doc.Channel)
	assert.Equal(t, "tokyo cafes", doc.SearchQuery)
	assert.Equal(t, []domain.Comment{{Body: "try Fuglen", Upvotes: 4}}, doc.Comments)

	assert.Equal(t, domain.UnknownChannel, docs[1].Channel)
	assert.Contains(t, registry.Requested, "text/markdown")
	assert.Contains(t, registry.Requested, "text/plain")

	// The off-site link is never fetched
	assert.Len(t, source.Permalinks, 4)
}

func TestCollector_SearchErrorIsSkipped(t *testing.T) {
	source := mocks.NewMockDocumentSource()
	source.SearchFn = func(ctx context.Context, query string, limit int) ([]domain.RawResult, error) {
		return nil, errors.New("network down")
	}

	c := NewCollector(CollectorConfig{Source: source})

	docs, err := c.Collect(context.Background(), "q", 10)
	assert.NoError(t, err)
	assert.Empty(t, docs)
}

func TestCollector_PassesLimit(t *testing.T) {
	var gotLimit int
	source := mocks.NewMockDocumentSource()
	source.SearchFn = func(ctx context.Context, query string, limit int) ([]domain.RawResult, error) {
		gotLimit = limit
		return nil, nil
	}

	c := NewCollector(CollectorConfig{Source: source})
	_, _ = c.Collect(context.Background(), "q", 7)

	assert.Equal(t, 7, gotLimit)
}

func TestCollector_RequestDelay(t *testing.T) {
	source := mocks.NewMockDocumentSource()
	source.Results["q"] = []domain.RawResult{
		{Title: "a", Link: "https://www.reddit.com/r/a/comments/1/"},
	}
	source.Details["/r/a/comments/1/"] = &domain.DocumentDetails{Body: "x"}

	c := NewCollector(CollectorConfig{Source: source, RequestDelay: 50 * time.Millisecond})

	start := time.Now()
	_, err := c.Collect(context.Background(), "q", 10)
	require.NoError(t, err)

	// Search goes out immediately, the detail fetch waits one delay
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestCollector_CancelledWhileWaiting(t *testing.T) {
	source := mocks.NewMockDocumentSource()
	c := NewCollector(CollectorConfig{Source: source, RequestDelay: time.Hour})

	// First request consumes the burst
	_, err := c.Collect(context.Background(), "q", 10)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.Collect(ctx, "q", 10)
	assert.Error(t, err)
}

func TestCollector_SharedLimiter(t *testing.T) {
	source := mocks.NewMockDocumentSource()
	limiter := rate.NewLimiter(rate.Every(50*time.Millisecond), 1)

	a := NewCollector(CollectorConfig{Source: source, Limiter: limiter})
	b := NewCollector(CollectorConfig{Source: source, Limiter: limiter, RequestDelay: 0})

	start := time.Now()
	_, err := a.Collect(context.Background(), "q", 10)
	require.NoError(t, err)
	_, err = b.Collect(context.Background(), "q", 10)
	require.NoError(t, err)

	// The second collector waits on the token the first one spent
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}
