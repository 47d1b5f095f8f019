package raster

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Fetcher opens the raw bytes of a raster asset.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// DefaultFetcher reads http(s) URLs over the network and everything else from disk.
type DefaultFetcher struct {
	Client *http.Client
}

// NewFetcher returns a DefaultFetcher whose HTTP client gives up after timeout.
func NewFetcher(timeout time.Duration) *DefaultFetcher {
	return &DefaultFetcher{Client: &http.Client{Timeout: timeout}}
}

func (f *DefaultFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		file, err := os.Open(strings.TrimPrefix(url, "file://"))
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", url, err)
		}
		return file, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return resp.Body, nil
}
