package script

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dgellow/socialsign/internal/ioutil"
)

const maxScriptSize = 1 << 20

// HTTPFetcher fetches scripts over HTTP.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns a fetcher with a bounded request timeout.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: 10 * time.Second}}
}

// Fetch GETs src and returns the body.
func (f *HTTPFetcher) Fetch(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, ioutil.ReadLimited(resp.Body, 1024))
	}

	body, err := ioutil.ReadAtMost(resp.Body, maxScriptSize)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return body, nil
}
