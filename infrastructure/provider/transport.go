package provider

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
)

// CachingTransport is an http.RoundTripper that stores embedding responses on
// disk so re-running the pipeline over the same corpus does not re-encode
// identical frames. Entries are keyed by the SHA-256 of method, URL and body.
// Only POST requests with 2xx responses are cached, and never requests whose
// context was marked with withoutCache. Unreadable or corrupt entries fall
// through to the inner transport.
type CachingTransport struct {
	inner  http.RoundTripper
	dir    string
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachingTransport creates a CachingTransport storing entries under dir,
// creating it if needed. If inner is nil, http.DefaultTransport is used.
func NewCachingTransport(dir string, inner http.RoundTripper) (*CachingTransport, error) {
	if inner == nil {
		inner = http.DefaultTransport
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &CachingTransport{inner: inner, dir: dir}, nil
}

type noCacheKey struct{}

// withoutCache marks requests made under ctx as uncacheable. Model loads and
// width checks must reach the server on every run.
func withoutCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, noCacheKey{}, true)
}

func cacheable(req *http.Request) bool {
	if req.Method != http.MethodPost || req.Body == nil {
		return false
	}
	skip, _ := req.Context().Value(noCacheKey{}).(bool)
	return !skip
}

type cacheEntry struct {
	StatusCode int         `json:"status_code"`
	Header     http.Header `json:"header"`
	Body       []byte      `json:"body"`
}

// RoundTrip implements http.RoundTripper.
func (t *CachingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !cacheable(req) {
		return t.inner.RoundTrip(req)
	}

	body, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, err
	}
	req.Body = io.NopCloser(bytes.NewReader(body))

	path := filepath.Join(t.dir, entryKey(req.Method, req.URL.String(), body)+".json")
	if entry, ok := readEntry(path); ok {
		t.hits.Add(1)
		return entry.response(req), nil
	}
	t.misses.Add(1)

	resp, err := t.inner.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, nil
	}

	respBody, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}

	entry := cacheEntry{StatusCode: resp.StatusCode, Header: resp.Header, Body: respBody}
	entry.write(path)
	return entry.response(req), nil
}

// Hits returns the number of responses served from disk.
func (t *CachingTransport) Hits() int64 { return t.hits.Load() }

// Misses returns the number of cacheable requests sent upstream.
func (t *CachingTransport) Misses() int64 { return t.misses.Load() }

// Close releases idle upstream connections.
func (t *CachingTransport) Close() error {
	if c, ok := t.inner.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
	return nil
}

func entryKey(method, url string, body []byte) string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%s\n%s\n", method, url)
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func readEntry(path string) (cacheEntry, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cacheEntry{}, false
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil || entry.StatusCode == 0 {
		return cacheEntry{}, false
	}
	return entry, true
}

func (e cacheEntry) write(path string) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return
	}
	_ = os.Rename(tmp, path)
}

func (e cacheEntry) response(req *http.Request) *http.Response {
	return &http.Response{
		StatusCode:    e.StatusCode,
		Status:        fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode)),
		Header:        e.Header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}
