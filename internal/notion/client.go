package notion

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

	"golang.org/x/time/rate"

	appLog "notionics/internal/log"
	"notionics/internal/model"
)

const (
	DefaultBaseURL  = "https://api.notion.com/v1"
	DefaultVersion  = "2022-06-28"
	DefaultPageSize = 100
	// MaxPageSize is the largest page the query endpoint accepts.
	MaxPageSize = 100

	defaultTimeout = 30 * time.Second
	maxErrorBody   = 64 << 10
)

var (
	// ErrUnauthorized is returned when the token is rejected or the
	// integration has no access to the database.
	ErrUnauthorized = errors.New("notion: unauthorized")
	// ErrSource covers every other non-success response.
	ErrSource = errors.New("notion: source unavailable")
)

// APIError is a non-2xx response from the query endpoint.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("notion: status %d", e.Status)
	}
	return fmt.Sprintf("notion: status %d (%s): %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden {
		return ErrUnauthorized
	}
	return ErrSource
}

// QueryRequest asks for one page of a database.
type QueryRequest struct {
	DatabaseID string
	PageSize   int
	// Cursor continues a previous query; empty starts from the beginning.
	Cursor string
}

// QueryResponse is one page of records.
type QueryResponse struct {
	Results    []model.Record
	HasMore    bool
	NextCursor string
}

// Source is a paginated record source.
type Source interface {
	Query(ctx context.Context, req QueryRequest) (QueryResponse, error)
}

// Config configures a Client.
type Config struct {
	Token   string
	BaseURL string
	Version string
	// RequestsPerSecond throttles queries. Zero or negative disables the
	// limit.
	RequestsPerSecond float64
	Timeout           time.Duration
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// Client queries databases over the public REST API.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	version string
	limiter *rate.Limiter
}

// NewClient creates a Client. Empty fields take package defaults.
func NewClient(cfg Config) *Client {
	c := &Client{
		http:    cfg.HTTPClient,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		version: cfg.Version,
	}
	if c.http == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.version == "" {
		c.version = DefaultVersion
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	} else {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return c
}

type queryBody struct {
	PageSize    int    `json:"page_size,omitempty"`
	StartCursor string `json:"start_cursor,omitempty"`
}

type queryResult struct {
	Results    []rawPage `json:"results"`
	HasMore    bool      `json:"has_more"`
	NextCursor *string   `json:"next_cursor"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Query fetches one page. There is no retry; any failure is returned to
// the caller.
func (c *Client) Query(ctx context.Context, req QueryRequest) (QueryResponse, error) {
	if req.DatabaseID == "" {
		return QueryResponse{}, errors.New("notion: database id is empty")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return QueryResponse{}, fmt.Errorf("notion: rate limiter: %w", err)
	}

	payload, err := json.Marshal(queryBody{PageSize: req.PageSize, StartCursor: req.Cursor})
	if err != nil {
		return QueryResponse{}, err
	}

	url := c.baseURL + "/databases/" + req.DatabaseID + "/query"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return QueryResponse{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Notion-Version", c.version)
	httpReq.Header.Set("Content-Type", "application/json")

	appLog.Debug("notion query", "database_id", req.DatabaseID, "page_size", req.PageSize, "has_cursor", req.Cursor != "")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return QueryResponse{}, fmt.Errorf("%w: query %s: %w", ErrSource, req.DatabaseID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var eb errorBody
		if data, rerr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)); rerr == nil {
			if json.Unmarshal(data, &eb) == nil {
				apiErr.Code = eb.Code
				apiErr.Message = eb.Message
			}
		}
		return QueryResponse{}, apiErr
	}

	var qr queryResult
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return QueryResponse{}, fmt.Errorf("%w: decode query response: %w", ErrSource, err)
	}

	out := QueryResponse{
		Results: make([]model.Record, 0, len(qr.Results)),
		HasMore: qr.HasMore,
	}
	if qr.NextCursor != nil {
		out.NextCursor = *qr.NextCursor
	}
	for _, p := range qr.Results {
		out.Results = append(out.Results, p.record())
	}
	return out, nil
}
