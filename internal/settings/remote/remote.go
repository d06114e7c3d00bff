// Package remote implements settings.Medium against the settings HTTP API
// served by `settings serve`. Load fetches the whole document and Save
// replaces it in one PUT, which the server saves atomically.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"settings-lite/internal/settings"

	"github.com/docker/go-connections/tlsconfig"
)

const settingsPath = "/v1/settings"

// ErrUnauthorized is returned when the server rejects the bearer token.
var ErrUnauthorized = errors.New("remote settings server rejected the token")

// Medium talks to one settings server.
type Medium struct {
	baseURL    string
	token      string
	timeout    time.Duration
	tls        *tlsconfig.Options
	httpClient *http.Client
}

// Option configures a Medium.
type Option func(*Medium)

// WithToken sends token as a bearer credential.
func WithToken(token string) Option {
	return func(m *Medium) { m.token = token }
}

// WithTimeout bounds each request. The default is 30 seconds.
func WithTimeout(d time.Duration) Option {
	return func(m *Medium) { m.timeout = d }
}

// WithTLS verifies the server against caFile and, when certFile and
// keyFile are set, presents a client certificate.
func WithTLS(caFile, certFile, keyFile string) Option {
	return func(m *Medium) {
		m.tls = &tlsconfig.Options{CAFile: caFile, CertFile: certFile, KeyFile: keyFile}
	}
}

// WithHTTPClient replaces the HTTP client. WithTimeout and WithTLS are
// ignored when it is set.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Medium) { m.httpClient = c }
}

// New returns a Medium for the server at baseURL, e.g. "https://host:7411".
func New(baseURL string, opts ...Option) (*Medium, error) {
	if baseURL == "" {
		return nil, errors.New("remote url is required")
	}
	m := &Medium{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.httpClient != nil {
		return m, nil
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if m.tls != nil {
		cfg, err := tlsconfig.Client(*m.tls)
		if err != nil {
			return nil, fmt.Errorf("configuring TLS: %w", err)
		}
		transport.TLSClientConfig = cfg
	}
	m.httpClient = &http.Client{Timeout: m.timeout, Transport: transport}
	return m, nil
}

// Load fetches the server's current view.
func (m *Medium) Load(ctx context.Context) (map[string]settings.Value, error) {
	resp, err := m.do(ctx, http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}

	var doc settings.Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", settings.ErrCorrupt, err)
	}
	return doc.Entries()
}

// Save replaces the server's view with entries.
func (m *Medium) Save(ctx context.Context, entries map[string]settings.Value) error {
	if err := settings.CheckKeys(entries); err != nil {
		return err
	}
	resp, err := m.do(ctx, http.MethodPut, settings.NewDocument(entries))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp, http.StatusNoContent)
}

// Close releases idle connections.
func (m *Medium) Close() error {
	m.httpClient.CloseIdleConnections()
	return nil
}

func (m *Medium) do(ctx context.Context, method string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+settingsPath, bodyReader)
	if err != nil {
		return nil, err
	}
	if m.token != "" {
		req.Header.Set("Authorization", "Bearer "+m.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("settings server not reachable at %s: %w", m.baseURL, err)
	}
	return resp, nil
}

// checkStatus turns an unexpected status into an error carrying the
// server's message.
func checkStatus(resp *http.Response, want int) error {
	if resp.StatusCode == want {
		return nil
	}
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &body) == nil && body.Error.Message != "" {
		msg = body.Error.Message
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	}
	return fmt.Errorf("server returned %s: %s", resp.Status, msg)
}
