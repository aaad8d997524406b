// Package scrape extracts knowledge-base articles from a help-center site.
package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/curio-labs/curiobot/internal/domain"
)

const (
	sectionLinkSelector   = "#categories-block-wrapper a"
	articleLinkSelector   = "#categories-block-wrapper a"
	articleWrapperID      = "#article-wrapper"
	articleDetailsID      = "#article-details"
	defaultRequestsPerSec = 4
)

// Scraper crawls a help-center root page for article URLs and extracts each
// article into a Document. Outbound fetches go through a rate limiter so the
// crawl stays polite.
type Scraper struct {
	client  *http.Client
	limiter *rate.Limiter
}

type Option func(*Scraper)

// WithHTTPClient overrides the HTTP client used for page fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Scraper) { s.client = c }
}

// WithRateLimit overrides the outbound request rate.
func WithRateLimit(rps float64) Option {
	return func(s *Scraper) { s.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

func NewScraper(opts ...Option) *Scraper {
	s := &Scraper{
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(defaultRequestsPerSec), 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DiscoverArticleURLs walks the root page's section links, then each
// section's article links. Both levels live under the same wrapper element.
// A section that fails to fetch is skipped; only a root fetch failure aborts.
func (s *Scraper) DiscoverArticleURLs(ctx context.Context, rootURL string) ([]string, error) {
	sectionURLs, err := s.pageLinks(ctx, rootURL, sectionLinkSelector)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch root page %s: %w", rootURL, err)
	}

	var articleURLs []string
	seen := make(map[string]struct{})
	for _, sectionURL := range sectionURLs {
		links, err := s.pageLinks(ctx, sectionURL, articleLinkSelector)
		if err != nil {
			continue
		}
		for _, link := range links {
			if _, ok := seen[link]; ok {
				continue
			}
			seen[link] = struct{}{}
			articleURLs = append(articleURLs, link)
		}
	}
	return articleURLs, nil
}

// ScrapeArticle fetches one article page and extracts title, author, last
// updated and a plain-text rendering of the body.
func (s *Scraper) ScrapeArticle(ctx context.Context, pageURL string) (*domain.Document, error) {
	doc, err := s.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	doc.Find("h1").Remove()

	wrapper := doc.Find(articleWrapperID)
	if wrapper.Length() == 0 {
		return nil, fmt.Errorf("no article wrapper on %s", pageURL)
	}

	var author, lastUpdated string
	details := wrapper.Find(articleDetailsID)
	// The second inner div carries two paragraphs: author then last updated.
	detailsDiv := details.Find("div").Eq(1)
	if p := detailsDiv.Find("p").Eq(0); p.Length() > 0 {
		author = strings.TrimSpace(p.Text())
	}
	if p := detailsDiv.Find("p").Eq(1); p.Length() > 0 {
		lastUpdated = strings.TrimSpace(p.Text())
	}
	details.Remove()

	var blocks []string
	wrapper.Children().Each(func(_ int, sel *goquery.Selection) {
		for _, node := range sel.Nodes {
			if text := renderNode(node); text != "" {
				blocks = append(blocks, text)
			}
		}
	})

	return &domain.Document{
		URL:         pageURL,
		Title:       title,
		Author:      author,
		LastUpdated: lastUpdated,
		Content:     strings.Join(blocks, "\n\n"),
	}, nil
}

// pageLinks fetches a page and returns the absolute form of every link
// matching the selector.
func (s *Scraper) pageLinks(ctx context.Context, pageURL, selector string) ([]string, error) {
	doc, err := s.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url %s: %w", pageURL, err)
	}

	var links []string
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		links = append(links, base.ResolveReference(ref).String())
	})
	return links, nil
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, pageURL)
	}

	return goquery.NewDocumentFromReader(resp.Body)
}

// renderNode flattens one article node to markdown-style text. Links become
// [text](href), bold becomes *text*, italics _text_, lists one line per item.
func renderNode(node *html.Node) string {
	switch node.Type {
	case html.TextNode:
		return node.Data
	case html.ElementNode:
		inner := goquery.NewDocumentFromNode(node).Selection
		switch node.Data {
		case "a":
			href, _ := inner.Attr("href")
			return fmt.Sprintf("[%s](%s)", inner.Text(), href)
		case "b", "strong":
			return fmt.Sprintf("*%s*", inner.Text())
		case "i":
			return fmt.Sprintf("_%s_", inner.Text())
		case "ul", "ol":
			var items []string
			inner.ChildrenFiltered("li").Each(func(i int, li *goquery.Selection) {
				var parts []string
				li.Contents().Each(func(_ int, child *goquery.Selection) {
					for _, cn := range child.Nodes {
						parts = append(parts, strings.TrimSpace(renderNode(cn)))
					}
				})
				line := strings.TrimSpace(strings.Join(parts, ""))
				if node.Data == "ul" {
					items = append(items, "- "+line)
				} else {
					items = append(items, fmt.Sprintf("%d. %s", i, line))
				}
			})
			return strings.Join(items, "\n")
		case "div", "p":
			var parts []string
			inner.Contents().Each(func(_ int, child *goquery.Selection) {
				for _, cn := range child.Nodes {
					parts = append(parts, renderNode(cn))
				}
			})
			return strings.TrimSpace(strings.Join(parts, ""))
		default:
			return ""
		}
	}
	return ""
}
