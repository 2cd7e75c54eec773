package applicator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"
)

type Fetcher interface {
	Fetch(ctx context.Context, ref string) (string, error)
}

type HTTPFetcherOptions struct {
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
	Now     func() time.Time
	MaxSize int64
}

// HTTPFetcher downloads stylesheets with a cache-busting "t" query parameter.
// Concurrent fetches of one reference share a single request.
type HTTPFetcher struct {
	base    *url.URL
	client  *http.Client
	now     func() time.Time
	maxSize int64
	group   singleflight.Group
}

func NewHTTPFetcher(opts HTTPFetcherOptions) (*HTTPFetcher, error) {
	f := &HTTPFetcher{client: opts.Client, now: opts.Now, maxSize: opts.MaxSize}
	if opts.BaseURL != "" {
		base, err := url.Parse(opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		f.base = base
	}
	if f.client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		f.client = &http.Client{Timeout: timeout}
	}
	if f.now == nil {
		f.now = time.Now
	}
	if f.maxSize <= 0 {
		f.maxSize = 4 << 20
	}
	return f, nil
}

// URL resolves ref against the base URL and adds the cache buster.
func (f *HTTPFetcher) URL(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse stylesheet reference: %w", err)
	}
	if f.base != nil {
		u = f.base.ResolveReference(u)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("stylesheet reference %q is not absolute and no base url is set", ref)
	}
	q := u.Query()
	q.Set("t", strconv.FormatInt(f.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context, ref string) (string, error) {
	ch := f.group.DoChan(ref, func() (any, error) {
		return f.get(context.WithoutCancel(ctx), ref)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (f *HTTPFetcher) get(ctx context.Context, ref string) (string, error) {
	target, err := f.URL(ref)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/css,*/*;q=0.1")
	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize))
	if err != nil {
		return "", fmt.Errorf("read stylesheet: %w", err)
	}
	return string(body), nil
}
