package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sievesearch/sieve/pkg/httpclient"
)

const resultsFixture = `<!DOCTYPE html>
<html><body>
<div class="results">
  <div class="result">
    <a class="result__a" href="/l/?kh=-1">  Example Domain  </a>
    <span class="result__url">  example.com  </span>
    <a class="result__snippet">
      Example Domain for use in illustrative examples.
    </a>
  </div>
  <div class="result">
    <a class="result__a" href="/l/?kh=-2">Go Programming Language</a>
    <span class="result__url">go.dev/doc</span>
    <a class="result__snippet">Learn how to use Go.</a>
  </div>
</body></html>`

const emptyFixture = `<!DOCTYPE html>
<html><body>
<div class="no-results">No results found.</div>
</body></html>`

const malformedFixture = `<!DOCTYPE html>
<html><body>
  <div class="result">
    <a class="result__a">Good Result</a>
    <span class="result__url">good.example.com</span>
    <a class="result__snippet">A complete container.</a>
  </div>
  <div class="result">
    <a class="result__a">Missing URL</a>
    <a class="result__snippet">No result__url element here.</a>
  </div>
</body></html>`

const duplicateFixture = `<!DOCTYPE html>
<html><body>
  <div class="result">
    <a class="result__a">First</a>
    <span class="result__url">dup.example.com</span>
    <a class="result__snippet">first snippet</a>
  </div>
  <div class="result">
    <a class="result__a">Second</a>
    <span class="result__url">dup.example.com</span>
    <a class="result__snippet">second snippet</a>
  </div>
</body></html>`

func testAdapter(t *testing.T, handler http.HandlerFunc) (*DuckDuckGo, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := httpclient.New(httpclient.Config{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	ddg, err := NewDuckDuckGo(DuckDuckGoConfig{
		Client:       client,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		FirstPageURL: srv.URL,
		PagedURL:     srv.URL,
	})
	if err != nil {
		t.Fatalf("failed to create adapter: %v", err)
	}
	return ddg, srv
}

func TestDuckDuckGo_SearchURL_Pagination(t *testing.T) {
	ddg, err := NewDuckDuckGo(DuckDuckGoConfig{})
	if err != nil {
		t.Fatalf("failed to create adapter: %v", err)
	}

	cases := []struct {
		page    uint32
		wantS   string // "" means no offset parameters
		wantDC  string
		firstPg bool
	}{
		{0, "", "", true},
		{1, "", "", true},
		{2, "s=30", "dc=31", false},
		{3, "s=60", "dc=61", false},
		{4, "s=60", "dc=61", false},
		{5, "s=90", "dc=91", false},
	}

	for _, tc := range cases {
		u := ddg.searchURL("rust", tc.page)
		if tc.firstPg {
			if !strings.HasPrefix(u, ddgFirstPageURL) {
				t.Errorf("page %d: expected first-page endpoint, got %s", tc.page, u)
			}
			if !strings.Contains(u, "s=&dc=&") {
				t.Errorf("page %d: expected empty offsets, got %s", tc.page, u)
			}
			continue
		}
		if !strings.HasPrefix(u, ddgPagedURL) {
			t.Errorf("page %d: expected paged endpoint, got %s", tc.page, u)
		}
		if !strings.Contains(u, "&"+tc.wantS+"&") {
			t.Errorf("page %d: expected %s in %s", tc.page, tc.wantS, u)
		}
		if !strings.Contains(u, "&"+tc.wantDC+"&") {
			t.Errorf("page %d: expected %s in %s", tc.page, tc.wantDC, u)
		}
	}
}

func TestDuckDuckGo_SearchURL_EscapesQuery(t *testing.T) {
	ddg, _ := NewDuckDuckGo(DuckDuckGoConfig{})
	u := ddg.searchURL("rust vs go", 1)
	if !strings.Contains(u, "q=rust+vs+go") {
		t.Errorf("query not escaped: %s", u)
	}
}

func TestDuckDuckGo_Extraction(t *testing.T) {
	var gotHeader http.Header
	ddg, _ := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		fmt.Fprint(w, resultsFixture)
	})

	results, err := ddg.Results(context.Background(), "example", 1, "test-agent/1.0", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	first, ok := results["https://example.com"]
	if !ok {
		t.Fatalf("missing scheme-prefixed result for example.com, got keys %v", keys(results))
	}
	if first.Title != "Example Domain" {
		t.Errorf("title not trimmed: %q", first.Title)
	}
	if first.Description != "Example Domain for use in illustrative examples." {
		t.Errorf("description not trimmed: %q", first.Description)
	}
	if len(first.Engines) != 1 || first.Engines[0] != "duckduckgo" {
		t.Errorf("wrong engine attribution: %v", first.Engines)
	}

	second, ok := results["https://go.dev/doc"]
	if !ok {
		t.Fatalf("missing result for go.dev/doc, got keys %v", keys(results))
	}
	if second.Title != "Go Programming Language" {
		t.Errorf("unexpected title: %q", second.Title)
	}

	// Fixed header set plus the caller-supplied user agent.
	if ua := gotHeader.Get("User-Agent"); ua != "test-agent/1.0" {
		t.Errorf("user agent not forwarded: %q", ua)
	}
	if ref := gotHeader.Get("Referer"); ref != "https://google.com/" {
		t.Errorf("unexpected referer: %q", ref)
	}
	if ct := gotHeader.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
		t.Errorf("unexpected content type: %q", ct)
	}
	if cookie := gotHeader.Get("Cookie"); cookie != "kl=wt-wt" {
		t.Errorf("unexpected cookie: %q", cookie)
	}
}

func TestDuckDuckGo_EmptyResultSet(t *testing.T) {
	ddg, _ := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, emptyFixture)
	})

	results, err := ddg.Results(context.Background(), "gibberishqueryzzz", 1, "ua", 5)
	if !errors.Is(err, ErrEmptyResultSet) {
		t.Fatalf("expected ErrEmptyResultSet, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no partial results, got %d", len(results))
	}
}

func TestDuckDuckGo_SkipsMalformedContainer(t *testing.T) {
	ddg, _ := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, malformedFixture)
	})

	results, err := ddg.Results(context.Background(), "q", 1, "ua", 5)
	if err != nil {
		t.Fatalf("a malformed container must not fail the fetch: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result after skipping malformed container, got %d", len(results))
	}
	if _, ok := results["https://good.example.com"]; !ok {
		t.Errorf("expected surviving result, got keys %v", keys(results))
	}
}

func TestDuckDuckGo_DuplicateURLsCollapse(t *testing.T) {
	ddg, _ := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, duplicateFixture)
	})

	results, err := ddg.Results(context.Background(), "q", 1, "ua", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected duplicates to collapse to 1 entry, got %d", len(results))
	}
	r := results["https://dup.example.com"]
	if r.Title != "Second" {
		t.Errorf("expected last write to win, got title %q", r.Title)
	}
}

func TestDuckDuckGo_Timeout(t *testing.T) {
	ddg, _ := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		fmt.Fprint(w, resultsFixture)
	})

	_, err := ddg.Results(context.Background(), "q", 1, "ua", 1)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if !reqErr.Timeout() {
		t.Errorf("expected timeout classification, got %v", reqErr)
	}
}

func TestDuckDuckGo_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close() // nothing listens here anymore

	client, _ := httpclient.New(httpclient.Config{Timeout: 2 * time.Second})
	ddg, err := NewDuckDuckGo(DuckDuckGoConfig{
		Client:       client,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		FirstPageURL: addr,
		PagedURL:     addr,
	})
	if err != nil {
		t.Fatalf("failed to create adapter: %v", err)
	}

	_, err = ddg.Results(context.Background(), "q", 1, "ua", 2)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError for refused connection, got %v", err)
	}
}

func TestDuckDuckGo_BlockedPage(t *testing.T) {
	ddg, _ := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div class="anomaly-modal">Please verify</div></body></html>`)
	})

	_, err := ddg.Results(context.Background(), "q", 1, "ua", 5)
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected BlockedError, got %v", err)
	}
	if blocked.Source != "DuckDuckGo" {
		t.Errorf("unexpected block source %q", blocked.Source)
	}
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
