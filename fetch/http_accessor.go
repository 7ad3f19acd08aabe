package fetch

import (
	"context"
	"io"
	"net/http"
	"time"
)

// HTTPAccessor is a minimal net/http-backed Accessor. HTTP transport itself
// is named as an out-of-scope external collaborator (§1: "HTTP asset
// fetching"); this type exists only so cmd/tileengine has a concrete
// Accessor to run against, not as a replacement for a production fetch
// stack (connection pooling tuning, retries, HTTP/2 push, etc. are left to
// the embedder's own Accessor implementation).
type HTTPAccessor struct {
	client *http.Client
}

func NewHTTPAccessor() *HTTPAccessor {
	return &HTTPAccessor{client: &http.Client{Timeout: 30 * time.Second}}
}

func (a *HTTPAccessor) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{}, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, err
	}

	respHeaders := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		respHeaders[k] = resp.Header.Get(k)
	}

	return Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Headers:     respHeaders,
		Data:        data,
	}, nil
}

// Tick is a no-op for net/http, which needs no per-frame pumping.
func (a *HTTPAccessor) Tick() {}
