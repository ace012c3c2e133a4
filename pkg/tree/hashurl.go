// Package tree resolves the hash-addressed representation of the
// reMarkable Cloud file system: signed download URLs for content hashes,
// and the recursive entry listings behind them.
package tree

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rmbridge/rmbridge/internal/logging"
	"github.com/rmbridge/rmbridge/internal/metrics"
	"github.com/rmbridge/rmbridge/pkg/transport"
)

const signedURLPath = "/sync/v2/signed-urls/downloads"

// rootAlias is the synthetic key whose content is the actual root hash.
const rootAlias = "root"

// Downloader fetches the content behind an absolute signed URL.
// Signed URLs are pre-authorized; no bearer header is involved.
type Downloader interface {
	Get(ctx context.Context, url string) (*transport.Response, error)
}

// HashPathRequestError reports a failed signed-URL resolution.
type HashPathRequestError struct {
	Hash       string
	StatusCode int
	Body       string
}

func (e *HashPathRequestError) Error() string {
	return fmt.Sprintf("signed URL request for hash %s failed (%d): %s", e.Hash, e.StatusCode, e.Body)
}

// HashContentRequestError reports a failed download through a signed URL.
type HashContentRequestError struct {
	RelativePath string
	StatusCode   int
	Body         string
}

func (e *HashContentRequestError) Error() string {
	return fmt.Sprintf("content download for %s failed (%d): %s", e.RelativePath, e.StatusCode, e.Body)
}

// InvalidHashURLMethodError reports a signed URL whose method is not
// supported for downloads. Only GET signed URLs can be fetched.
type InvalidHashURLMethodError struct {
	RelativePath string
	Method       string
}

func (e *InvalidHashURLMethodError) Error() string {
	return fmt.Sprintf("signed URL for %s uses unsupported method %s", e.RelativePath, e.Method)
}

// ExpiredHashURLError reports a signed URL used past its expiry. The check
// is local; no network request is attempted. Callers must re-resolve.
type ExpiredHashURLError struct {
	RelativePath string
	Expires      time.Time
}

func (e *ExpiredHashURLError) Error() string {
	return fmt.Sprintf("signed URL for %s expired at %s", e.RelativePath, e.Expires.Format(time.RFC3339))
}

// HashURL is a short-lived signed download descriptor for one hash. It
// never refreshes itself.
type HashURL struct {
	Expires      time.Time
	Method       string
	RelativePath string
	URL          string

	download Downloader
}

// Expired reports whether the signed URL's expiry has passed.
func (h *HashURL) Expired() bool {
	return !time.Now().Before(h.Expires)
}

// Fetch downloads the content behind the signed URL. It fails locally,
// before any network I/O, when the URL has expired or uses a non-GET
// method.
func (h *HashURL) Fetch(ctx context.Context) (*transport.Response, error) {
	if h.Expired() {
		return nil, &ExpiredHashURLError{RelativePath: h.RelativePath, Expires: h.Expires}
	}
	if h.Method != http.MethodGet {
		return nil, &InvalidHashURLMethodError{RelativePath: h.RelativePath, Method: h.Method}
	}

	resp, err := h.download.Get(ctx, h.URL)
	if err != nil {
		return nil, fmt.Errorf("content download for %s: %w", h.RelativePath, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &HashContentRequestError{RelativePath: h.RelativePath, StatusCode: resp.StatusCode, Body: resp.Text()}
	}

	metrics.RecordDownload(int64(len(resp.Body)))
	return resp, nil
}

// FetchContent downloads the content behind the signed URL as text.
func (h *HashURL) FetchContent(ctx context.Context) (string, error) {
	resp, err := h.Fetch(ctx)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// URLForHash resolves a hash into a signed download URL.
func (r *Resolver) URLForHash(ctx context.Context, hash string) (*HashURL, error) {
	body, err := json.Marshal(map[string]string{
		"http_method":   http.MethodGet,
		"relative_path": hash,
	})
	if err != nil {
		return nil, err
	}

	resp, err := r.cloud.Post(ctx, signedURLPath, body, map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		metrics.RecordHashResolution(false)
		return nil, fmt.Errorf("signed URL request for hash %s: %w", hash, err)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.RecordHashResolution(false)
		return nil, &HashPathRequestError{Hash: hash, StatusCode: resp.StatusCode, Body: resp.Text()}
	}

	var payload struct {
		Expires      string `json:"expires"`
		Method       string `json:"method"`
		RelativePath string `json:"relative_path"`
		URL          string `json:"url"`
	}
	if err := resp.JSON(&payload); err != nil {
		metrics.RecordHashResolution(false)
		return nil, fmt.Errorf("signed URL request for hash %s: parse response: %w", hash, err)
	}

	expires, err := time.Parse(time.RFC3339, payload.Expires)
	if err != nil {
		metrics.RecordHashResolution(false)
		return nil, fmt.Errorf("signed URL request for hash %s: parse expiry %q: %w", hash, payload.Expires, err)
	}

	metrics.RecordHashResolution(true)
	logging.Debug("signed URL resolved",
		zap.String("hash", hash),
		zap.Time("expires", expires),
	)

	return &HashURL{
		Expires:      expires,
		Method:       payload.Method,
		RelativePath: payload.RelativePath,
		URL:          payload.URL,
		download:     r.download,
	}, nil
}

// RootURL resolves the signed URL for the actual root listing. The "root"
// key is an alias: its content is the real root hash, which is then
// resolved in a second round trip.
func (r *Resolver) RootURL(ctx context.Context) (*HashURL, error) {
	aliasURL, err := r.URLForHash(ctx, rootAlias)
	if err != nil {
		return nil, err
	}
	rootHash, err := aliasURL.FetchContent(ctx)
	if err != nil {
		return nil, err
	}
	return r.URLForHash(ctx, strings.TrimSpace(rootHash))
}
