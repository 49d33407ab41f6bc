// Package flasharray implements storage.Client over the array's REST 2.x API.
package flasharray

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/onkernel/nasattach/lib/logger"
	"github.com/onkernel/nasattach/lib/storage"
)

const (
	defaultAPIVersion = "2.16"
	defaultTimeout    = 30 * time.Second

	authTokenHeader = "x-auth-token"
	apiTokenHeader  = "api-token"
)

// Credentials are resolved by the caller and handed over as-is.
type Credentials struct {
	APIToken string
}

// Config describes how to reach the array management endpoint.
type Config struct {
	// Endpoint is the management address, with or without scheme.
	Endpoint string

	// APIVersion is the REST version segment (default: 2.16).
	APIVersion string

	// Insecure skips TLS certificate verification.
	Insecure bool

	// Timeout bounds every HTTP call (default: 30s).
	Timeout time.Duration
}

// Client talks to one array. It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiVersion string
	creds      Credentials
	http       *http.Client

	mu           sync.Mutex
	sessionToken string
}

var _ storage.Client = (*Client)(nil)

// New creates a client. No network traffic happens until the first call.
func New(cfg Config, creds Credentials) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("array endpoint is required")
	}
	if creds.APIToken == "" {
		return nil, fmt.Errorf("array API token is required")
	}

	base := cfg.Endpoint
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse array endpoint: %w", err)
	}

	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		apiVersion: apiVersion,
		creds:      creds,
		http: &http.Client{
			Transport: &metricsRoundTripper{base: transport},
			Timeout:   timeout,
		},
	}, nil
}

// listResponse is the envelope every collection endpoint returns.
type listResponse[T any] struct {
	Items []T `json:"items"`
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := fmt.Sprintf("%s/api/%s%s", c.baseURL, c.apiVersion, path)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// login exchanges the API token for a session token, once per client.
func (c *Client) login(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionToken != "" {
		return c.sessionToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/login", nil), nil)
	if err != nil {
		return "", storage.NewError(storage.KindRejected, "login", err.Error())
	}
	req.Header.Set(apiTokenHeader, c.creds.APIToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &storage.StorageError{Kind: storage.KindUnreachable, Op: "login", Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", parseAPIError("login", resp.StatusCode, body)
	}
	token := resp.Header.Get(authTokenHeader)
	if token == "" {
		return "", storage.NewError(storage.KindRejected, "login", "array returned no session token")
	}
	c.sessionToken = token
	return token, nil
}

// do performs one API call. body and out may be nil.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	token, err := c.login(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return storage.NewError(storage.KindRejected, op, fmt.Sprintf("encode request: %v", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return storage.NewError(storage.KindRejected, op, err.Error())
	}
	req.Header.Set(authTokenHeader, token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log := logger.FromContext(ctx)
	log.DebugContext(ctx, "array api call", "op", op, "method", method, "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		return &storage.StorageError{Kind: storage.KindUnreachable, Op: op, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &storage.StorageError{Kind: storage.KindUnreachable, Op: op, Message: fmt.Sprintf("read response: %v", err), Err: err}
	}

	if resp.StatusCode >= 400 {
		apiErr := parseAPIError(op, resp.StatusCode, data)
		log.DebugContext(ctx, "array api error", "op", op, "status", resp.StatusCode, "error", apiErr)
		return apiErr
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return storage.NewError(storage.KindRejected, op, fmt.Sprintf("decode response: %v", err))
		}
	}
	return nil
}

func names(key, value string) url.Values {
	return url.Values{key: []string{value}}
}
