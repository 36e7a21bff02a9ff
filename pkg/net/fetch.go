package net

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// MaxFetchBytes caps the size of a fetched document.
const MaxFetchBytes = 10 << 20

// ErrorURLNotFound is returned for a 404 response.
var ErrorURLNotFound = errors.New("URL not found")

// IsURL reports whether s is an http or https URL.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Fetch downloads the content at url. Responses other than 200 and bodies
// larger than MaxFetchBytes are errors.
func Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP Get request: %w", err)
	}
	req.Header.Set("User-Agent", clientAgent)

	resp, err := GetHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrorURLNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error fetching %s (status: %d - %s)", url, resp.StatusCode, resp.Status)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, MaxFetchBytes+1))
	if err != nil {
		return nil, fmt.Errorf("error reading response from %s: %w", url, err)
	}
	if len(b) > MaxFetchBytes {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", url, MaxFetchBytes)
	}
	return b, nil
}
