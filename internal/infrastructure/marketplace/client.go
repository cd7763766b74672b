// Package marketplace fetches plugin archives from a remote marketplace and
// finds candidate archives on the local disk.
package marketplace

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"geektools.dev/cli/internal/core/domain"
	"geektools.dev/cli/internal/infrastructure/fileio"
	"geektools.dev/cli/internal/infrastructure/recovery"
)

// DownloadPrefix names the temporary files downloads are written to
const DownloadPrefix = "geektools_download_"

// Options configures a Client
type Options struct {
	BaseURL   string
	TempDir   string
	Timeout   time.Duration
	UserAgent string
}

// Client downloads plugin archives over HTTP
type Client struct {
	httpClient *http.Client
	baseURL    string
	tempDir    string
	userAgent  string
	recovery   *recovery.Executor
	logger     hclog.Logger
}

// NewClient creates a marketplace client retrying through exec
func NewClient(opts Options, exec *recovery.Executor, logger hclog.Logger) *Client {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "geektools-cli"
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		tempDir:    opts.TempDir,
		userAgent:  opts.UserAgent,
		recovery:   exec,
		logger:     logger.Named("marketplace"),
	}
}

// ResolveURL turns ref into an absolute download URL. Absolute http(s) URLs
// are used as is; anything else is taken relative to the base URL.
func (c *Client) ResolveURL(ref string) (string, error) {
	if u, err := url.Parse(ref); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return ref, nil
	}
	if c.baseURL == "" {
		return "", fmt.Errorf("%q is not an absolute URL and no marketplace URL is configured", ref)
	}
	return c.baseURL + "/" + strings.TrimLeft(ref, "/"), nil
}

// Download fetches ref into a temporary .tar.gz file and returns its path.
// The caller removes the file.
func (c *Client) Download(ctx context.Context, ref string) (string, error) {
	target, err := c.ResolveURL(ref)
	if err != nil {
		return "", err
	}
	if err := fileio.CreateDir(c.tempDir); err != nil {
		return "", err
	}

	dest := filepath.Join(c.tempDir, DownloadPrefix+uuid.NewString()+".tar.gz")
	err = c.recovery.Run(ctx, func(ctx context.Context) error {
		return c.fetch(ctx, target, dest)
	})
	if err != nil {
		_ = fileio.RemoveFile(dest)
		return "", err
	}
	return dest, nil
}

func (c *Client) fetch(ctx context.Context, target, dest string) error {
	c.logger.Debug("downloading plugin", "url", target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &domain.Error{Kind: domain.KindNetworkFailed, URL: target, Permanent: true, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return domain.NetworkFailed(target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		nerr := domain.NetworkFailed(target, fmt.Errorf("unexpected status %d", resp.StatusCode))
		nerr.Permanent = !retryableStatus(resp.StatusCode)
		return nerr
	}

	file, err := os.Create(dest)
	if err != nil {
		return domain.FileOperationFailed("create", dest, err)
	}
	written, copyErr := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if copyErr != nil {
		return domain.NetworkFailed(target, fmt.Errorf("failed to read response body: %w", copyErr))
	}
	if closeErr != nil {
		return domain.FileOperationFailed("close", dest, closeErr)
	}

	c.logger.Debug("downloaded plugin", "url", target, "path", dest, "bytes", written)
	return nil
}

func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusRequestTimeout || code == http.StatusTooManyRequests
}
