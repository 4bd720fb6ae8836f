package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

// Downloader fetches remote files
type Downloader struct {
	Client *http.Client
	// MaxBytes caps the body size; zero means unlimited
	MaxBytes int64
}

// NewDownloader returns a downloader whose requests give up after timeout
func NewDownloader(timeout time.Duration, maxBytes int64) *Downloader {
	return &Downloader{
		Client:   &http.Client{Timeout: timeout},
		MaxBytes: maxBytes,
	}
}

// Download writes the body at rawURL to dst. Non-2xx responses and bad URLs
// are ErrInvalidInput; dst is removed on any failure.
func (d *Downloader) Download(ctx context.Context, rawURL, dst string) (err error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be absolute http(s): %q", ErrInvalidInput, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: download failed: %v", ErrInvalidInput, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: download returned %s", ErrInvalidInput, resp.Status)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			os.Remove(dst)
		}
	}()

	var body io.Reader = resp.Body
	if d.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, d.MaxBytes+1)
	}
	n, err := io.Copy(out, body)
	if err != nil {
		return fmt.Errorf("failed to save download: %w", err)
	}
	if d.MaxBytes > 0 && n > d.MaxBytes {
		return fmt.Errorf("%w: download exceeds %d bytes", ErrInvalidInput, d.MaxBytes)
	}
	return nil
}
