// Package syncer bridges the local record store to the remote sync
// authority: login, periodic push/pull of full snapshots, and the
// lightweight update check.
package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hyoshida/estatesync/internal/common"
	"github.com/hyoshida/estatesync/internal/model"
	"github.com/hyoshida/estatesync/internal/syncapi"
)

// Transport is the wire client to the sync authority. It is an interface so
// the sync service can be tested against a fake endpoint.
type Transport interface {
	Login(ctx context.Context, req syncapi.LoginRequest) (*syncapi.LoginResponse, error)
	Save(ctx context.Context, token string, snap *model.Snapshot) (*syncapi.SaveResponse, error)
	Load(ctx context.Context, token string) (*syncapi.LoadResponse, error)
	Check(ctx context.Context, token string, lastSync time.Time) (*syncapi.CheckResponse, error)
}

// HTTPTransport talks JSON over HTTP to the single sync endpoint.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport returns a transport for the authority at baseURL
// (scheme://host[:port], no trailing slash).
func NewHTTPTransport(baseURL string) *HTTPTransport {
	return &HTTPTransport{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *HTTPTransport) Login(ctx context.Context, req syncapi.LoginRequest) (*syncapi.LoginResponse, error) {
	var resp syncapi.LoginResponse
	if err := t.post(ctx, "/api/auth", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (t *HTTPTransport) Save(ctx context.Context, token string, snap *model.Snapshot) (*syncapi.SaveResponse, error) {
	req := syncapi.Request{Action: syncapi.ActionSave, Data: snap}
	var resp syncapi.SaveResponse
	if err := t.post(ctx, "/api/sync", token, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (t *HTTPTransport) Load(ctx context.Context, token string) (*syncapi.LoadResponse, error) {
	req := syncapi.Request{Action: syncapi.ActionLoad}
	var resp syncapi.LoadResponse
	if err := t.post(ctx, "/api/sync", token, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (t *HTTPTransport) Check(ctx context.Context, token string, lastSync time.Time) (*syncapi.CheckResponse, error) {
	req := syncapi.Request{Action: syncapi.ActionCheck}
	if !lastSync.IsZero() {
		req.LastSync = &lastSync
	}
	var resp syncapi.CheckResponse
	if err := t.post(ctx, "/api/sync", token, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// post sends one JSON request and decodes the response into out. Transport
// errors map onto the shared sentinels: unreachable or 5xx endpoints are
// ErrUnavailable (retryable), 401 is ErrTokenExpired/ErrUnauthorized
// (session-fatal), and an unparseable body is ErrMalformedPayload (caller
// must treat as "no data", never wipe local state).
func (t *HTTPTransport) post(ctx context.Context, path, token string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(common.AuthHeaderName, common.BearerPrefix+token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		var e syncapi.ErrorResponse
		if json.Unmarshal(data, &e) == nil && e.Code == syncapi.CodeTokenExpired {
			return common.ErrTokenExpired
		}
		return common.ErrUnauthorized
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", common.ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		var e syncapi.ErrorResponse
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("sync endpoint rejected request: %s", e.Error)
		}
		return fmt.Errorf("sync endpoint rejected request: status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", common.ErrMalformedPayload, err)
	}
	return nil
}
