// Package scraper walks the catalogue's pagination, driving the fetcher and
// parser and feeding records into the pipeline.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"regexp"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/renderscrape/bookworm/config"
	"github.com/renderscrape/bookworm/fetcher"
	"github.com/renderscrape/bookworm/models"
	"github.com/renderscrape/bookworm/parser"
	"github.com/renderscrape/bookworm/pipeline"
)

// detailSelector is what a rendered book page must show before capture.
const detailSelector = "article.product_page"

var pageNumberRe = regexp.MustCompile(`page-(\d+)\.html`)

// Scraper walks listing pages sequentially: fetch, parse, enrich, hand the
// page's records to the pipeline, follow the next link.
type Scraper struct {
	cfg     *config.Config
	fetcher fetcher.Fetcher
	visited *lru.Cache[string, struct{}]
	Metrics *Metrics

	retryCount     int
	errorCount     int
	detailFailures int
	skippedPages   []string
	errorsByType   map[string]int
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config, f fetcher.Fetcher) (*Scraper, error) {
	parsed, err := url.Parse(cfg.StartURL)
	if err != nil {
		return nil, fmt.Errorf("parse start url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("start url must include a host")
	}
	if f == nil {
		return nil, fmt.Errorf("fetcher is nil")
	}

	// The visited cache doubles as the pagination cycle guard; size it so a
	// full bounded walk never evicts a still-relevant entry.
	visited, err := lru.New[string, struct{}](cfg.MaxPages*2 + 16)
	if err != nil {
		return nil, fmt.Errorf("create visited cache: %w", err)
	}

	return &Scraper{
		cfg:          cfg,
		fetcher:      f,
		visited:      visited,
		Metrics:      NewMetrics(),
		errorsByType: make(map[string]int),
	}, nil
}

// Run walks the catalogue from the configured start URL until the next link
// is exhausted, a safety bound trips, or listing failures exceed the
// configured threshold.
func (s *Scraper) Run(ctx context.Context, p *pipeline.Pipeline) (*models.RunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	result := &models.RunResult{StartTime: time.Now()}
	pageFailures := 0
	pageURL := s.cfg.StartURL

	for pageURL != "" {
		if ctx.Err() != nil {
			slog.Info("walk interrupted", slog.String("url", pageURL))
			break
		}
		if result.PageCount >= s.cfg.MaxPages {
			slog.Warn("page bound reached", slog.Int("max_pages", s.cfg.MaxPages))
			break
		}
		if _, seen := s.visited.Get(pageURL); seen {
			slog.Warn("pagination cycle detected, stopping walk", slog.String("url", pageURL))
			break
		}
		s.visited.Add(pageURL, struct{}{})

		html, err := s.fetchWithRetry(ctx, pageURL, s.cfg.WaitSelector, "listing")
		if err != nil {
			pageFailures++
			s.skippedPages = append(s.skippedPages, pageURL)
			slog.Error("listing page failed, skipping",
				slog.String("url", pageURL),
				slog.Int("failures", pageFailures),
				slog.Any("error", err),
			)
			if pageFailures > s.cfg.MaxPageFailures {
				s.finish(result)
				return result, fmt.Errorf("aborting after %d failed listing pages: %w", pageFailures, err)
			}
			// The next link lives on the page that just failed; fall back
			// to the catalogue's page-N.html numbering when present.
			pageURL = guessNextURL(pageURL)
			continue
		}

		listing, err := parser.ParseListing(html, pageURL)
		if err != nil {
			pageFailures++
			s.skippedPages = append(s.skippedPages, pageURL)
			s.recordError("parse")
			slog.Error("listing page unparseable, skipping", slog.String("url", pageURL), slog.Any("error", err))
			if pageFailures > s.cfg.MaxPageFailures {
				s.finish(result)
				return result, fmt.Errorf("aborting after %d failed listing pages: %w", pageFailures, err)
			}
			pageURL = guessNextURL(pageURL)
			continue
		}

		result.PageCount++
		s.Metrics.IncPages()
		slog.Info("parsed listing page",
			slog.String("url", pageURL),
			slog.Int("page", result.PageCount),
			slog.Int("items", len(listing.Books)),
		)

		for _, book := range listing.Books {
			if s.cfg.IncludeDetails && book.URL != "" {
				s.enrich(ctx, book)
			}
			s.Metrics.IncItems()
		}
		result.ItemCount += len(listing.Books)

		if err := p.Process(listing.Books); err != nil {
			s.finish(result)
			return result, fmt.Errorf("pipeline: %w", err)
		}

		pageURL = listing.NextURL
		if pageURL != "" {
			s.politeDelay(ctx)
		}
	}

	s.finish(result)
	return result, nil
}

// enrich fetches the book's own page and merges its detail attributes. A
// failure here degrades the record, it never fails the run.
func (s *Scraper) enrich(ctx context.Context, book *models.Book) {
	html, err := s.fetchWithRetry(ctx, book.URL, detailSelector, "detail")
	if err != nil {
		s.detailFailures++
		slog.Warn("detail page failed",
			slog.String("title", book.Title),
			slog.String("url", book.URL),
			slog.Any("error", err),
		)
		return
	}

	detail, err := parser.ParseDetail(html)
	if err != nil {
		s.detailFailures++
		s.recordError("parse")
		slog.Warn("detail page unparseable", slog.String("url", book.URL), slog.Any("error", err))
		return
	}
	parser.MergeDetail(book, detail)
}

func (s *Scraper) fetchWithRetry(ctx context.Context, pageURL, waitFor, phase string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			s.retryCount++
			s.Metrics.IncRetries()
			if !sleepCtx(ctx, s.backoff(attempt)) {
				return "", ctx.Err()
			}
			slog.Debug("retrying fetch",
				slog.String("url", pageURL),
				slog.Int("attempt", attempt),
			)
		}

		s.Metrics.IncNavigation(phase)
		start := time.Now()
		html, err := s.fetcher.Fetch(ctx, pageURL, waitFor)
		s.Metrics.ObserveDuration(time.Since(start))
		if err == nil {
			return html, nil
		}

		lastErr = err
		s.recordError(fetcher.ErrorTypeLabel(err))
		if !fetcher.Transient(err) {
			break
		}
	}
	return "", lastErr
}

func (s *Scraper) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := s.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := s.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func (s *Scraper) politeDelay(ctx context.Context) {
	delay := s.cfg.Delay
	if s.cfg.RandomDelay > 0 {
		delay += time.Duration(rand.Int63n(int64(s.cfg.RandomDelay)))
	}
	if delay <= 0 {
		return
	}
	sleepCtx(ctx, delay)
}

func (s *Scraper) recordError(category string) {
	s.errorCount++
	s.errorsByType[category]++
	s.Metrics.IncError(category)
}

func (s *Scraper) finish(result *models.RunResult) {
	result.EndTime = time.Now()
	result.ErrorCount = s.errorCount
	result.RetryCount = s.retryCount
	result.DetailFailures = s.detailFailures
	result.SkippedPages = append([]string(nil), s.skippedPages...)
	result.ErrorsByType = make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		result.ErrorsByType[k] = v
	}
}

// guessNextURL recovers the successor of a failed listing page from the
// catalogue's page-N.html numbering. Returns "" when the URL does not
// follow that scheme.
func guessNextURL(pageURL string) string {
	m := pageNumberRe.FindStringSubmatch(pageURL)
	if len(m) != 2 {
		return ""
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return ""
	}
	next := fmt.Sprintf("page-%d.html", n+1)
	return pageNumberRe.ReplaceAllString(pageURL, next)
}

// sleepCtx sleeps for d unless ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
