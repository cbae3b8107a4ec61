package engine

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/sievesearch/sieve/internal/bypass"
	"github.com/sievesearch/sieve/pkg/httpclient"
)

// fetchUpstream performs the single GET request an adapter is allowed per
// Results call. The caller-supplied timeout bounds the whole exchange; the
// response is checked for challenge pages before the body is handed back.
func fetchUpstream(ctx context.Context, client *httpclient.Client, engineName, rawURL string, header http.Header, timeoutSecs uint8) ([]byte, error) {
	if timeoutSecs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSecs)*time.Second)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &UnexpectedError{Engine: engineName, Reason: "building request for " + rawURL, Err: err}
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := client.Do(ctx, req)
	if err != nil {
		return nil, &RequestError{Engine: engineName, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Engine: engineName, URL: rawURL, Err: err}
	}

	if blocked, source := bypass.Detect(&bypass.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}); blocked {
		return nil, &BlockedError{Engine: engineName, Source: source}
	}

	return body, nil
}
