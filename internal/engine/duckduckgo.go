package engine

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/sievesearch/sieve/internal/result"
	"github.com/sievesearch/sieve/pkg/httpclient"
	"github.com/sievesearch/sieve/pkg/ratelimit"
)

const duckduckgoName = "duckduckgo"

const (
	ddgFirstPageURL = "https://html.duckduckgo.com/html/"
	ddgPagedURL     = "https://duckduckgo.com/html/"
)

// DuckDuckGoConfig configures the DuckDuckGo adapter. FirstPageURL and
// PagedURL exist so tests can point the adapter at a fixture server; zero
// values select the real upstream endpoints.
type DuckDuckGoConfig struct {
	Client       *httpclient.Client
	Limiter      *ratelimit.Limiter
	Logger       *slog.Logger
	FirstPageURL string
	PagedURL     string
}

// DuckDuckGo scrapes the DuckDuckGo html endpoint. Safe for concurrent use;
// each Results call is independent.
type DuckDuckGo struct {
	client       *httpclient.Client
	limiter      *ratelimit.Limiter
	logger       *slog.Logger
	firstPageURL string
	pagedURL     string
}

var _ Adapter = (*DuckDuckGo)(nil)

// NewDuckDuckGo creates the adapter, filling config defaults.
func NewDuckDuckGo(cfg DuckDuckGoConfig) (*DuckDuckGo, error) {
	if cfg.Client == nil {
		client, err := httpclient.New(httpclient.Config{})
		if err != nil {
			return nil, fmt.Errorf("engine: creating default http client: %w", err)
		}
		cfg.Client = client
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.FirstPageURL == "" {
		cfg.FirstPageURL = ddgFirstPageURL
	}
	if cfg.PagedURL == "" {
		cfg.PagedURL = ddgPagedURL
	}
	return &DuckDuckGo{
		client:       cfg.Client,
		limiter:      cfg.Limiter,
		logger:       cfg.Logger,
		firstPageURL: cfg.FirstPageURL,
		pagedURL:     cfg.PagedURL,
	}, nil
}

func (d *DuckDuckGo) Name() string { return duckduckgoName }

// searchURL builds the upstream query URL. Pages 0 and 1 both hit the
// first-page endpoint with empty offsets. For later pages the upstream
// expects s = ceil(page/2)*30 and dc = s+1; this arithmetic is what the
// endpoint actually paginates on and must not be simplified.
func (d *DuckDuckGo) searchURL(query string, page uint32) string {
	q := url.QueryEscape(query)
	switch page {
	case 0, 1:
		return fmt.Sprintf("%s?q=%s&s=&dc=&v=1&o=json&api=/d.js", d.firstPageURL, q)
	default:
		offset := (page/2 + page%2) * 30
		return fmt.Sprintf("%s?q=%s&s=%d&dc=%d&v=1&o=json&api=/d.js", d.pagedURL, q, offset, offset+1)
	}
}

// requestHeader returns the fixed header set for the html endpoint. The
// cookie pins the region to worldwide so results are not geo-personalized.
func (d *DuckDuckGo) requestHeader(userAgent string) http.Header {
	header := make(http.Header)
	header.Set("User-Agent", userAgent)
	header.Set("Referer", "https://google.com/")
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	header.Set("Cookie", "kl=wt-wt")
	return header
}

// selector compiles a CSS pattern, classifying a malformed pattern as an
// UnexpectedError carrying the offending string.
func (d *DuckDuckGo) selector(pattern string) (cascadia.Selector, error) {
	sel, err := cascadia.Compile(pattern)
	if err != nil {
		return nil, &UnexpectedError{
			Engine: duckduckgoName,
			Reason: fmt.Sprintf("invalid CSS selector %q", pattern),
			Err:    err,
		}
	}
	return sel, nil
}

// Results fetches one page of DuckDuckGo results and extracts them into a
// URL-keyed map. A present no-results marker yields ErrEmptyResultSet. A
// result container missing a required sub-element is skipped with a log line
// rather than failing the whole page, since upstream markup drifts.
func (d *DuckDuckGo) Results(ctx context.Context, query string, page uint32, userAgent string, timeoutSecs uint8) (map[string]result.SearchResult, error) {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, &RequestError{Engine: duckduckgoName, URL: d.firstPageURL, Err: err}
		}
	}

	searchURL := d.searchURL(query, page)
	body, err := fetchUpstream(ctx, d.client, duckduckgoName, searchURL, d.requestHeader(userAgent), timeoutSecs)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &UnexpectedError{Engine: duckduckgoName, Reason: "parsing upstream html", Err: err}
	}

	noResults, err := d.selector(".no-results")
	if err != nil {
		return nil, err
	}
	if doc.FindMatcher(noResults).Length() > 0 {
		return nil, ErrEmptyResultSet
	}

	container, err := d.selector(".result")
	if err != nil {
		return nil, err
	}
	titleSel, err := d.selector(".result__a")
	if err != nil {
		return nil, err
	}
	urlSel, err := d.selector(".result__url")
	if err != nil {
		return nil, err
	}
	descSel, err := d.selector(".result__snippet")
	if err != nil {
		return nil, err
	}

	// Duplicate URLs within one page are not expected; last write wins.
	results := make(map[string]result.SearchResult)
	doc.FindMatcher(container).Each(func(i int, s *goquery.Selection) {
		title := s.FindMatcher(titleSel).First()
		displayURL := s.FindMatcher(urlSel).First()
		desc := s.FindMatcher(descSel).First()
		if title.Length() == 0 || displayURL.Length() == 0 || desc.Length() == 0 {
			d.logger.Debug("skipping malformed result container",
				"engine", duckduckgoName, "index", i)
			return
		}

		// Upstream renders host-only URLs without a scheme.
		resultURL := "https://" + strings.TrimSpace(displayURL.Text())
		r := result.New(
			strings.TrimSpace(title.Text()),
			resultURL,
			strings.TrimSpace(desc.Text()),
			duckduckgoName,
		)
		results[r.URL] = r
	})

	return results, nil
}
