// Package client is a Go client for the ingestor HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bturcanu/ingestbridge/pkg/connectors"
	"github.com/bturcanu/ingestbridge/pkg/tools"
	"github.com/bturcanu/ingestbridge/pkg/types"
)

// ContentErrorHeader carries the reason when a record's content endpoint
// returned a placeholder body.
const ContentErrorHeader = types.HeaderContentError

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Sync triggers one sync pass of the named connector for the caller's org.
func (c *Client) Sync(ctx context.Context, connector string) (*connectors.SyncReport, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/v1/connectors/"+url.PathEscape(connector)+"/sync", nil)
	if err != nil {
		return nil, err
	}
	var report connectors.SyncReport
	if err := c.doJSON(req, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// SetConnectorConfig stores the caller org's settings for a connector.
func (c *Client) SetConnectorConfig(ctx context.Context, connector string, settings map[string]any) error {
	req, err := c.newRequest(ctx, http.MethodPut, "/v1/connectors/"+url.PathEscape(connector)+"/config", settings)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	return nil
}

// Content is the live content of a record.
type Content struct {
	MimeType string
	Body     string
	// Unavailable is set when Body is a placeholder.
	Unavailable string
}

func (c *Client) RecordContent(ctx context.Context, recordID string) (*Content, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/records/"+url.PathEscape(recordID)+"/content", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Content{
		MimeType:    resp.Header.Get("Content-Type"),
		Body:        string(body),
		Unavailable: resp.Header.Get(ContentErrorHeader),
	}, nil
}

func (c *Client) ListTools(ctx context.Context) ([]*tools.Tool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/tools", nil)
	if err != nil {
		return nil, err
	}
	var out tools.ListResponse
	if err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	return out.Tools, nil
}

func (c *Client) RegisterTools(ctx context.Context, userID string, descs []tools.Descriptor) (*tools.RegisterResponse, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/v1/tools/register", tools.RegisterRequest{UserID: userID, Tools: descs})
	if err != nil {
		return nil, err
	}
	var out tools.RegisterResponse
	if err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UnregisterApps(ctx context.Context, apps []string) (int, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/v1/tools/unregister", tools.UnregisterRequest{Apps: apps})
	if err != nil {
		return 0, err
	}
	var out tools.UnregisterResponse
	if err := c.doJSON(req, &out); err != nil {
		return 0, err
	}
	return out.Removed, nil
}

// ExecuteTool runs a registered tool. A tool-level failure is returned in
// Result.Err with a nil error.
func (c *Client) ExecuteTool(ctx context.Context, key string, params json.RawMessage) (tools.Result, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/v1/tools/"+url.PathEscape(key)+"/execute", tools.ExecuteToolRequest{Params: params})
	if err != nil {
		return tools.Result{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return tools.Result{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return tools.Result{}, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return tools.OK(body), nil
	case http.StatusBadGateway:
		var execErr tools.ExecError
		if err := json.Unmarshal(body, &execErr); err == nil && execErr.Message != "" {
			return tools.Result{Err: &execErr}, nil
		}
	}
	return tools.Result{}, apiError(resp.StatusCode, body)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", c.apiKey)
	return req, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ErrAPI wraps every non-2xx response from the ingestor.
var ErrAPI = errors.New("api error")

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return apiError(resp.StatusCode, body)
}

func apiError(status int, body []byte) error {
	var apiErr types.APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return fmt.Errorf("%w %s: %s", ErrAPI, apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("%w: http status %d", ErrAPI, status)
}
