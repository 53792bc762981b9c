// Package scrape pulls candidate headlines off a news index page and
// extracts title, publish time, and body text from each article page.
package scrape

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	readability "github.com/go-shiori/go-readability"
)

const userAgent = "reliefwatch/1.0 (disaster headline monitor)"

// publishedLayout matches the index site's article timestamps, e.g.
// "December 4, 2023 | 10:37am".
const publishedLayout = "January 2, 2006 | 3:04pm"

// Article is one scraped news article.
type Article struct {
	Title          string
	Link           string
	PostedDatetime time.Time
	Body           string
}

// Scraper fetches the index page, collects article links, and extracts
// article fields. A failure on one article never aborts the rest.
type Scraper struct {
	indexURL string
	client   *http.Client
	loc      *time.Location
}

// New builds a scraper for the given index URL. Timestamps are localized
// to tz (defaults to Asia/Manila when tz is empty or unknown).
func New(indexURL, tz string, timeout time.Duration) *Scraper {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	loc, err := time.LoadLocation(tz)
	if err != nil || tz == "" {
		loc, _ = time.LoadLocation("Asia/Manila")
	}
	return &Scraper{
		indexURL: indexURL,
		client:   &http.Client{Timeout: timeout},
		loc:      loc,
	}
}

// Scrape returns fully extracted articles for every link found on the
// index page. Per-article errors are logged and skipped.
func (s *Scraper) Scrape(ctx context.Context) ([]Article, error) {
	links, err := s.HeadlineLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching index: %w", err)
	}

	var articles []Article
	for _, link := range links {
		article, err := s.Article(ctx, link)
		if err != nil {
			log.Printf("skipping article %s: %v", link, err)
			continue
		}
		articles = append(articles, *article)
	}
	return articles, nil
}

// HeadlineLinks fetches the index page and extracts article permalinks
// from the ribbon content containers.
func (s *Scraper) HeadlineLinks(ctx context.Context) ([]string, error) {
	doc, _, err := s.fetchDocument(ctx, s.indexURL)
	if err != nil {
		return nil, err
	}

	var links []string
	seen := map[string]struct{}{}
	doc.Find("div.tiles.late.ribbon-cont").Each(func(_ int, container *goquery.Selection) {
		container.Find(".ribbon .ribbon_content .ribbon_title a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			href = s.absoluteURL(href)
			if href == "" {
				return
			}
			if _, dup := seen[href]; dup {
				return
			}
			seen[href] = struct{}{}
			links = append(links, href)
		})
	})
	return links, nil
}

// Article fetches one article page and extracts its fields. A missing
// title is an error (the item is skipped upstream); a missing or
// unparsable date falls back to the current time.
func (s *Scraper) Article(ctx context.Context, link string) (*Article, error) {
	doc, raw, err := s.fetchDocument(ctx, link)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(doc.Find("div.article__title h1").First().Text())
	if title == "" {
		return nil, fmt.Errorf("no article title")
	}

	posted := s.parsePostedDatetime(doc.Find("div.article__date-published").First().Text())

	body := s.extractBody(link, raw)

	return &Article{
		Title:          title,
		Link:           link,
		PostedDatetime: posted,
		Body:           body,
	}, nil
}

// parsePostedDatetime parses the site's fixed timestamp format, falling
// back to flexible parsing, then to now. The result is localized to the
// scraper's timezone.
func (s *Scraper) parsePostedDatetime(text string) time.Time {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Now().In(s.loc)
	}

	if ts, err := time.ParseInLocation(publishedLayout, text, s.loc); err == nil {
		return ts
	}
	if ts, err := dateparse.ParseIn(text, s.loc); err == nil {
		return ts
	}
	return time.Now().In(s.loc)
}

// extractBody runs readability over the raw page HTML. An empty string
// means no extractable content; that is not an error.
func (s *Scraper) extractBody(link string, raw []byte) string {
	parsedURL, _ := url.Parse(link)
	article, err := readability.FromReader(bytes.NewReader(raw), parsedURL)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

func (s *Scraper) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("reading body: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing document: %w", err)
	}
	return doc, raw, nil
}

// absoluteURL resolves relative hrefs against the index URL.
func (s *Scraper) absoluteURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	base, err := url.Parse(s.indexURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
