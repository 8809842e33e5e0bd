package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fluxmedia/internal/config"
	"fluxmedia/internal/logging"
	"fluxmedia/internal/request"
	"fluxmedia/internal/services"
)

const (
	downloadPath = "/api/download"
	convertPath  = "/api/convert"
	historyPath  = "/api/history"
	filePath     = "/api/file"

	// RequestIDHeader carries the per-operation correlation id.
	RequestIDHeader = "X-Request-ID"

	maxErrorBody = 64 << 10
)

// HTTPDoer describes the HTTP client used to reach the backend.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DownloadResponse is the success payload of POST /api/download.
type DownloadResponse struct {
	Path string `json:"path"`
}

// ConvertResponse is the success payload of POST /api/convert.
type ConvertResponse struct {
	Output string `json:"output"`
}

// HistoryEntry is one row of the backend activity log. OutputHint is set only
// for entries that produced an artifact.
type HistoryEntry struct {
	ID         EntryID `json:"_id"`
	URL        string `json:"url"`
	Format     string `json:"format"`
	OutputHint string `json:"output_hint,omitempty"`
}

// EntryID is the backend's opaque entry identifier. Servers emit it as a
// string or a number; both decode to the same textual form.
type EntryID string

func (id *EntryID) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(raw, []byte("null")):
		*id = ""
		return nil
	case len(raw) > 0 && raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*id = EntryID(s)
		return nil
	case len(raw) > 0 && (raw[0] == '{' || raw[0] == '['):
		return fmt.Errorf("unsupported entry id %s", raw)
	}
	*id = EntryID(raw)
	return nil
}

type historyResponse struct {
	Items []HistoryEntry `json:"items"`
}

// Client talks to the media job API.
type Client struct {
	baseURL   string
	http      HTTPDoer
	userAgent string
	logger    *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every call.
func WithUserAgent(agent string) Option {
	return func(c *Client) {
		c.userAgent = strings.TrimSpace(agent)
	}
}

// WithLogger attaches a logger for per-call debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New constructs a client rooted at baseURL. An empty base URL yields
// relative endpoints.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    http.DefaultClient,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "backend")
	return c
}

// NewFromConfig builds a client using backend settings from cfg.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Client {
	if cfg == nil {
		return New("", WithLogger(logger))
	}
	return New(cfg.Backend.URL,
		WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout()}),
		WithUserAgent(cfg.Backend.UserAgent),
		WithLogger(logger),
	)
}

// BaseURL returns the normalized base URL, empty for same-origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Download submits a download job and waits for its artifact path.
func (c *Client) Download(ctx context.Context, req request.DownloadRequest) (DownloadResponse, error) {
	var resp DownloadResponse
	if err := c.postJSON(ctx, "download", downloadPath, req, &resp); err != nil {
		return DownloadResponse{}, err
	}
	if resp.Path == "" {
		return DownloadResponse{}, &TransportError{Op: "download", Err: errors.New("response missing path")}
	}
	return resp, nil
}

// Convert submits a conversion of a previously produced artifact.
func (c *Client) Convert(ctx context.Context, req request.ConvertRequest) (ConvertResponse, error) {
	var resp ConvertResponse
	if err := c.postJSON(ctx, "convert", convertPath, req, &resp); err != nil {
		return ConvertResponse{}, err
	}
	if resp.Output == "" {
		return ConvertResponse{}, &TransportError{Op: "convert", Err: errors.New("response missing output")}
	}
	return resp, nil
}

// History fetches the activity log. A null item list decodes as empty.
func (c *Client) History(ctx context.Context) ([]HistoryEntry, error) {
	httpReq, err := c.newRequest(ctx, http.MethodGet, historyPath, nil)
	if err != nil {
		return nil, &TransportError{Op: "history", Err: err}
	}
	resp, err := c.do(httpReq, "history")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.requestError("history", resp)
	}
	var payload historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &TransportError{Op: "history", Err: fmt.Errorf("decode response: %w", err)}
	}
	if payload.Items == nil {
		payload.Items = []HistoryEntry{}
	}
	return payload.Items, nil
}

// FileURL returns the retrieval link for an artifact path. The path is an
// opaque token and is always query-escaped.
func (c *Client) FileURL(artifact string) string {
	return c.baseURL + filePath + "?path=" + url.QueryEscape(artifact)
}

// Fetch opens the artifact stream. Callers must close the returned body. Size
// is -1 when the backend does not report a length.
func (c *Client) Fetch(ctx context.Context, artifact string) (io.ReadCloser, int64, error) {
	if strings.TrimSpace(artifact) == "" {
		return nil, 0, services.Wrap(services.ErrValidation, "backend", "fetch", "artifact path is required", nil)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.FileURL(artifact), nil)
	if err != nil {
		return nil, 0, &TransportError{Op: "fetch", Err: err}
	}
	c.decorate(ctx, httpReq)
	resp, err := c.do(httpReq, "fetch")
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, 0, c.requestError("fetch", resp)
	}
	return resp.Body, resp.ContentLength, nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.do(httpReq, op)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.requestError(op, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	c.decorate(ctx, httpReq)
	return httpReq, nil
}

func (c *Client) decorate(ctx context.Context, httpReq *http.Request) {
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if id, ok := services.RequestIDFromContext(ctx); ok {
		httpReq.Header.Set(RequestIDHeader, id)
	}
}

func (c *Client) do(httpReq *http.Request, op string) (*http.Response, error) {
	logger := logging.WithContext(httpReq.Context(), c.logger)
	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		logger.Debug("backend call failed",
			logging.String("method", httpReq.Method),
			logging.String("path", httpReq.URL.Path),
			logging.Duration("elapsed", time.Since(start)),
			logging.Error(err),
		)
		return nil, &TransportError{Op: op, Err: err}
	}
	logger.Debug("backend call",
		logging.String("method", httpReq.Method),
		logging.String("path", httpReq.URL.Path),
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", time.Since(start)),
	)
	return resp, nil
}

func (c *Client) requestError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &RequestError{Op: op, Status: resp.StatusCode, Detail: parseDetail(body)}
}
