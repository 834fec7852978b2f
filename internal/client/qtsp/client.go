// Package qtsp is the HTTP client for the trust-service provider. Every call
// goes through the intermediary, which holds the client secret and rewrites
// the logical path onto the provider's base URL.
package qtsp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/truecam/internal/common"
	"github.com/dmitrijs2005/truecam/internal/netx"
)

const (
	AuthEndpoint   = "/api/qtsp-auth"
	ProxyEndpoint  = "/api/qtsp-proxy"
	HealthEndpoint = "/healthz"

	casesPath = "v1/private/case-files"
)

// DefaultTimeout bounds a single provider call when none is configured.
const DefaultTimeout = 15 * time.Second

type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient builds a client for the intermediary at baseURL.
func NewClient(baseURL string, httpClient *http.Client, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		timeout:    timeout,
	}
}

// Ping reports whether the intermediary answers its health probe.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", http.MethodGet, c.baseURL+HealthEndpoint, "", nil, nil)
}

// Authenticate performs the client-credentials exchange.
func (c *Client) Authenticate(ctx context.Context) (*TokenResponse, error) {
	var resp TokenResponse
	if err := c.do(ctx, "authenticate", http.MethodPost, c.baseURL+AuthEndpoint, "", struct{}{}, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("authenticate: %w: empty access_token", ErrBadResponse)
	}
	return &resp, nil
}

func (c *Client) CreateCase(ctx context.Context, token string, req CreateCaseRequest) (string, error) {
	var resp idResponse
	if err := c.proxy(ctx, "create case", http.MethodPost, casesPath, token, req, &resp); err != nil {
		return "", err
	}
	return idOr(resp.ID, req.ID), nil
}

func (c *Client) CreateGroup(ctx context.Context, token, caseID string, req CreateGroupRequest) (string, error) {
	var resp idResponse
	path := fmt.Sprintf("%s/%s/evidence-groups", casesPath, url.PathEscape(caseID))
	if err := c.proxy(ctx, "create evidence group", http.MethodPost, path, token, req, &resp); err != nil {
		return "", err
	}
	return idOr(resp.ID, req.ID), nil
}

func (c *Client) RegisterEvidence(ctx context.Context, token, caseID, groupID string, req RegisterEvidenceRequest) (string, error) {
	var resp idResponse
	path := fmt.Sprintf("%s/%s/evidence-groups/%s/evidences", casesPath, url.PathEscape(caseID), url.PathEscape(groupID))
	if err := c.proxy(ctx, "register evidence", http.MethodPost, path, token, req, &resp); err != nil {
		return "", err
	}
	return idOr(resp.ID, req.ID), nil
}

func (c *Client) GetUploadURL(ctx context.Context, token, caseID, groupID, evidenceID string) (string, error) {
	var resp uploadURLResponse
	path := fmt.Sprintf("%s/%s/evidence-groups/%s/evidences/%s/upload-url",
		casesPath, url.PathEscape(caseID), url.PathEscape(groupID), url.PathEscape(evidenceID))
	if err := c.proxy(ctx, "get upload url", http.MethodPost, path, token, nil, &resp); err != nil {
		return "", err
	}
	if resp.UploadURL == "" {
		return "", fmt.Errorf("get upload url: %w: empty uploadUrl", ErrBadResponse)
	}
	return resp.UploadURL, nil
}

// Upload sends the raw payload straight to the pre-signed destination.
func (c *Client) Upload(ctx context.Context, uploadURL, contentType string, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := netx.PutToPresignedURL(ctx, c.httpClient, uploadURL, contentType, payload); err != nil {
		return fmt.Errorf("upload: %w: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *Client) CloseGroup(ctx context.Context, token, caseID, groupID string) error {
	path := fmt.Sprintf("%s/%s/evidence-groups/%s/close", casesPath, url.PathEscape(caseID), url.PathEscape(groupID))
	return c.proxy(ctx, "close evidence group", http.MethodPost, path, token, nil, nil)
}

func (c *Client) proxy(ctx context.Context, op, method, path, token string, body, out any) error {
	target := c.baseURL + ProxyEndpoint + "?path=" + url.QueryEscape(path)
	return c.do(ctx, op, method, target, token, body, out)
}

func (c *Client) do(ctx context.Context, op, method, target, token string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w: %v", op, ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return NewProviderError(op, resp.StatusCode, errorDetails(data))
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrBadResponse, err)
	}
	return nil
}

// errorDetails extracts the most specific message from an error body:
// details, then error, then message, then the raw text.
func errorDetails(data []byte) string {
	var er errorResponse
	if err := json.Unmarshal(data, &er); err == nil {
		switch d := er.Details.(type) {
		case string:
			if d != "" {
				return d
			}
		case nil:
		default:
			if b, err := json.Marshal(d); err == nil {
				return string(b)
			}
		}
		if er.Error != "" {
			return er.Error
		}
		if er.Message != "" {
			return er.Message
		}
	}
	return strings.TrimSpace(string(data))
}

func idOr(id, fallback string) string {
	if id != "" {
		return id
	}
	return fallback
}
