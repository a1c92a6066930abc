package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/catalog-mapper/internal/common"
	"github.com/Veraticus/catalog-mapper/internal/model"
)

// FileSource reads offers from a feed on disk.
type FileSource struct {
	Path string
}

// Offers parses the file on every call.
func (s FileSource) Offers(_ context.Context) ([]model.Offer, error) {
	catalog, err := ParseFile(s.Path)
	if err != nil {
		return nil, err
	}
	return catalog.Offers, nil
}

// HTTPSource downloads a feed to CachePath and parses the cached copy.
type HTTPSource struct {
	Client    *http.Client
	URL       string
	CachePath string
	Retry     common.RetryOptions
}

// NewHTTPSource creates a source with a default client and retry policy.
func NewHTTPSource(url, cachePath string) *HTTPSource {
	return &HTTPSource{
		URL:       url,
		CachePath: cachePath,
		Client:    &http.Client{Timeout: 5 * time.Minute},
		Retry:     common.DefaultRetryOptions(),
	}
}

// Offers downloads the feed, replacing the cached copy, then parses it.
func (s *HTTPSource) Offers(ctx context.Context) ([]model.Offer, error) {
	if err := s.Download(ctx); err != nil {
		return nil, err
	}
	return FileSource{Path: s.CachePath}.Offers(ctx)
}

// Download fetches the feed into CachePath. The file is replaced atomically,
// so a failed download leaves the previous copy intact.
func (s *HTTPSource) Download(ctx context.Context) error {
	if s.URL == "" {
		return fmt.Errorf("%w: feed URL", common.ErrMissingConfig)
	}

	slog.Info("Downloading feed", "url", s.URL, "path", s.CachePath)

	err := common.WithRetry(ctx, func() error {
		return s.fetch(ctx)
	}, s.Retry)
	if err != nil {
		return fmt.Errorf("failed to download feed: %w", err)
	}
	return nil
}

func (s *HTTPSource) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return &common.RetryableError{Err: fmt.Errorf("failed to create request: %w", err), Retryable: false}
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return &common.RetryableError{Err: fmt.Errorf("request failed: %w", err), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &common.RetryableError{
			Err:       fmt.Errorf("feed server returned status %d", resp.StatusCode),
			Retryable: resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests,
		}
	}

	if err := writeAtomic(s.CachePath, resp.Body); err != nil {
		return &common.RetryableError{Err: err, Retryable: errors.Is(err, io.ErrUnexpectedEOF)}
	}
	return nil
}

func writeAtomic(path string, r io.Reader) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create feed directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".feed-*.xml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write feed: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move feed into place: %w", err)
	}

	slog.Info("Feed downloaded", "path", path, "bytes", n)
	return nil
}
