// Package fetch retrieves encoded audio by locator: files under an asset root,
// file:// URLs, or HTTP(S) downloads with bounded retry.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Errors that are never retried.
var (
	ErrNotFound   = errors.New("audio resource not found")
	ErrBadLocator = errors.New("invalid locator")
)

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.Code)
}

// Options configures a Fetcher.
type Options struct {
	AssetDir string        // root for path locators; empty reads paths as given
	BaseURL  string        // if set, path locators are resolved against it and downloaded
	Retries  int           // extra attempts after the first failure
	Backoff  time.Duration // delay before retry n is n*Backoff
	Client   *http.Client
}

// Fetcher loads the raw bytes behind a track locator.
type Fetcher struct {
	assetDir string
	baseURL  *url.URL
	retries  int
	backoff  time.Duration
	http     *http.Client
}

// New creates a Fetcher.
func New(opts Options) (*Fetcher, error) {
	f := &Fetcher{
		assetDir: opts.AssetDir,
		retries:  opts.Retries,
		backoff:  opts.Backoff,
		http:     opts.Client,
	}
	if f.http == nil {
		f.http = &http.Client{Timeout: 30 * time.Second}
	}
	if f.retries < 0 {
		f.retries = 0
	}
	if opts.BaseURL != "" {
		u, err := url.Parse(opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("base url %q: scheme must be http or https", opts.BaseURL)
		}
		f.baseURL = u
	}
	return f, nil
}

// Fetch returns the bytes behind locator. Transient failures are retried;
// the last error is returned once attempts run out.
func (f *Fetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			log.Printf("Fetch %s failed (%v), retry %d/%d", locator, lastErr, attempt, f.retries)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * f.backoff):
			}
		}

		data, err := f.fetchOnce(ctx, locator)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retryable(ctx, err) {
			break
		}
	}
	return nil, lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, locator string) ([]byte, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrBadLocator, locator, err)
	}
	switch u.Scheme {
	case "http", "https":
		return f.download(ctx, u.String())
	case "file":
		return readFile(u.Path)
	case "":
		if f.baseURL != nil {
			return f.download(ctx, f.baseURL.ResolveReference(u).String())
		}
		return readFile(f.localPath(locator))
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrBadLocator, u.Scheme)
	}
}

// localPath maps a path locator into the asset root. Locators cannot escape it.
func (f *Fetcher) localPath(locator string) string {
	if f.assetDir == "" {
		return filepath.FromSlash(locator)
	}
	clean := path.Clean("/" + filepath.ToSlash(locator))
	return filepath.Join(f.assetDir, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
}

func (f *Fetcher) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rawURL)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	return data, nil
}

func readFile(name string) ([]byte, error) {
	data, err := os.ReadFile(name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// retryable reports whether err may go away on another attempt.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrBadLocator) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	var pe *os.PathError
	if errors.As(err, &pe) {
		return false
	}
	return true
}
