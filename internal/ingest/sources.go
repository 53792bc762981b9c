package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/reliefwatch/reliefwatch/internal/scrape"
)

// ScrapeSource adapts a page scraper to the Source interface.
type ScrapeSource struct {
	Scraper *scrape.Scraper
}

func (s *ScrapeSource) Name() string { return "scraper" }

func (s *ScrapeSource) Fetch(ctx context.Context) ([]scrape.Article, error) {
	return s.Scraper.Scrape(ctx)
}

// FeedSource pulls articles from RSS/Atom feeds. Feed entries carry
// their own titles and timestamps, so no per-article page fetch is
// needed.
type FeedSource struct {
	urls   []string
	parser *gofeed.Parser
}

// NewFeedSource creates a FeedSource over the given feed URLs.
func NewFeedSource(urls []string) *FeedSource {
	return &FeedSource{urls: urls, parser: gofeed.NewParser()}
}

func (f *FeedSource) Name() string { return "feeds" }

func (f *FeedSource) Fetch(ctx context.Context) ([]scrape.Article, error) {
	var articles []scrape.Article
	var firstErr error
	for _, url := range f.urls {
		feed, err := f.parser.ParseURLWithContext(url, ctx)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("parsing feed %s: %w", url, err)
			}
			continue
		}
		for _, item := range feed.Items {
			if item.Link == "" || item.Title == "" {
				continue
			}
			posted := time.Now()
			if item.PublishedParsed != nil {
				posted = *item.PublishedParsed
			}
			articles = append(articles, scrape.Article{
				Title:          item.Title,
				Link:           item.Link,
				PostedDatetime: posted,
				Body:           item.Description,
			})
		}
	}
	if len(articles) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return articles, nil
}
