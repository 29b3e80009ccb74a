package document

import (
	"context"
	"io"
	"net/http"
	"time"

	oaserrors "github.com/jacoelho/openapi/errors"
)

const defaultFetchTimeout = 30 * time.Second

// maxFetchBytes caps external document size; untrusted servers must not be
// able to exhaust memory with a single response.
const maxFetchBytes = 32 << 20

// HTTPLoader fetches external documents over HTTP(S).
type HTTPLoader struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPLoader creates a loader using the given client. A nil client uses
// http.DefaultClient; a zero timeout uses the default fetch timeout.
func NewHTTPLoader(client *http.Client, timeout time.Duration) *HTTPLoader {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &HTTPLoader{client: client, timeout: timeout}
}

// Resolve implements Loader.
func (l *HTTPLoader) Resolve(req Request) (ID, error) {
	return CanonicalID(req.BaseID, req.Location)
}

// Load implements Loader.
func (l *HTTPLoader) Load(ctx context.Context, id ID) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, string(id), nil)
	if err != nil {
		return nil, oaserrors.NewResolutionf(oaserrors.ErrExternalFetchFailed, "", string(id),
			"build fetch request: %v", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, oaserrors.NewResolutionf(oaserrors.ErrExternalFetchFailed, "", string(id),
			"fetch document: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, oaserrors.NewResolutionf(oaserrors.ErrExternalFetchFailed, "", string(id),
			"fetch document: %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, oaserrors.NewResolutionf(oaserrors.ErrExternalFetchFailed, "", string(id),
			"read document body: %v", err)
	}
	root, err := Decode(data, id)
	if err != nil {
		return nil, err
	}
	return &Document{ID: id, Root: root}, nil
}
