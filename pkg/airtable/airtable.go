package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	contractx "github.com/tanpawarit/agent-orchestrator/agent/contract"
)

const (
	defaultBaseURL           = "https://api.airtable.com/v0"
	defaultTimeout           = 10 * time.Second
	defaultRequestsPerSecond = 5
	defaultBreakerFailures   = 5
	defaultBreakerTimeout    = 30 * time.Second
	maxResponseSizeBytes     = 2 << 20
	pageSize                 = 100
)

type Config struct {
	APIKey             string        `split_words:"true" required:"true"`
	BaseID             string        `split_words:"true" required:"true"`
	BaseURL            string        `split_words:"true" default:"https://api.airtable.com/v0"`
	Timeout            time.Duration `split_words:"true" default:"10s"`
	RequestsPerSecond  float64       `split_words:"true" default:"5"`
	BreakerMaxFailures uint32        `split_words:"true" default:"5"`
	BreakerTimeout     time.Duration `split_words:"true" default:"30s"`
}

// ClientOption customizes Client.
type ClientOption func(*Client)

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithLimiter(limiter *rate.Limiter) ClientOption {
	return func(c *Client) {
		if limiter != nil {
			c.limiter = limiter
		}
	}
}

// Client talks to the Airtable REST API of a single base. Requests are rate limited
// and pass through a circuit breaker so an unreachable API fails fast.
type Client struct {
	baseURL    string
	baseID     string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

var _ contractx.RecordStore = (*Client)(nil)

// APIError is a non-2xx answer from Airtable.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("airtable http status=%d type=%s: %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("airtable http status=%d type=%s", e.StatusCode, e.Type)
}

// Retryable reports whether the failure is worth counting against the breaker.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

type recordPayload struct {
	ID          string           `json:"id,omitempty"`
	CreatedTime string           `json:"createdTime,omitempty"`
	Fields      contractx.Fields `json:"fields"`
}

type listResponse struct {
	Records []recordPayload `json:"records"`
	Offset  string          `json:"offset"`
}

type errorEnvelope struct {
	Error json.RawMessage `json:"error"`
}

type errorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("airtable api key is required")
	}
	baseID := strings.TrimSpace(cfg.BaseID)
	if baseID == "" {
		return nil, errors.New("airtable base id is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid airtable base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerFailures
	}
	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = defaultBreakerTimeout
	}

	c := &Client{
		baseURL: baseURL,
		baseID:  baseID,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "airtable:" + baseID,
		MaxRequests: 1,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("airtable: circuit breaker state change")
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return !apiErr.Retryable()
			}
			return false
		},
	})

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Query lists records of table matching filter, following pagination until
// filter.MaxRecords rows (or every row) are collected.
func (c *Client) Query(ctx context.Context, table string, filter contractx.Filter) ([]contractx.Record, error) {
	params := url.Values{}
	if !filter.IsZero() {
		params.Set("filterByFormula", Formula(filter))
	}
	if filter.MaxRecords > 0 {
		params.Set("maxRecords", strconv.Itoa(filter.MaxRecords))
	}
	params.Set("pageSize", strconv.Itoa(pageSize))

	var out []contractx.Record
	for {
		raw, err := c.do(ctx, http.MethodGet, c.tablePath(table), params, nil)
		if err != nil {
			return nil, err
		}

		var page listResponse
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("decode airtable list response: %w", err)
		}
		for _, r := range page.Records {
			out = append(out, toRecord(r))
		}

		if page.Offset == "" || (filter.MaxRecords > 0 && len(out) >= filter.MaxRecords) {
			break
		}
		params.Set("offset", page.Offset)
	}

	if filter.MaxRecords > 0 && len(out) > filter.MaxRecords {
		out = out[:filter.MaxRecords]
	}
	return out, nil
}

func (c *Client) Create(ctx context.Context, table string, fields contractx.Fields) (string, error) {
	raw, err := c.do(ctx, http.MethodPost, c.tablePath(table), nil, recordPayload{Fields: fields})
	if err != nil {
		return "", err
	}

	var created recordPayload
	if err := json.Unmarshal(raw, &created); err != nil {
		return "", fmt.Errorf("decode airtable create response: %w", err)
	}
	if created.ID == "" {
		return "", errors.New("airtable create response without record id")
	}
	return created.ID, nil
}

// Update patches only the given fields; other fields keep their values.
func (c *Client) Update(ctx context.Context, table string, recordID string, fields contractx.Fields) error {
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return fmt.Errorf("%w: record id is empty", contractx.ErrValidation)
	}

	path := c.tablePath(table) + "/" + url.PathEscape(recordID)
	if _, err := c.do(ctx, http.MethodPatch, path, nil, recordPayload{Fields: fields}); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: table=%s id=%s: %w", contractx.ErrRecordNotFound, table, recordID, err)
		}
		return err
	}
	return nil
}

// Formula renders an equality filter as an Airtable formula, e.g. {Agent Name} = 'pm_agent'.
func Formula(filter contractx.Filter) string {
	value := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(filter.Value)
	return fmt.Sprintf("{%s} = '%s'", filter.Field, value)
}

func (c *Client) tablePath(table string) string {
	return "/" + url.PathEscape(c.baseID) + "/" + url.PathEscape(table)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, payload any) ([]byte, error) {
	if c == nil {
		return nil, errors.New("nil airtable client")
	}

	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal airtable payload: %w", err)
		}
		body = encoded
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("airtable rate limiter: %w", err)
	}

	raw, err := c.breaker.Execute(func() ([]byte, error) {
		return c.send(ctx, method, endpoint, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("airtable circuit open: %w", err)
		}
		return nil, err
	}
	return raw, nil
}

func (c *Client) send(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build airtable request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute airtable request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read airtable response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, decodeAPIError(resp.StatusCode, raw)
	}
	return raw, nil
}

func decodeAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || len(env.Error) == 0 {
		apiErr.Message = strings.TrimSpace(string(raw))
		return apiErr
	}

	var kind string
	if err := json.Unmarshal(env.Error, &kind); err == nil {
		apiErr.Type = kind
		return apiErr
	}

	var body errorBody
	if err := json.Unmarshal(env.Error, &body); err == nil {
		apiErr.Type = body.Type
		apiErr.Message = body.Message
	}
	return apiErr
}

func toRecord(p recordPayload) contractx.Record {
	rec := contractx.Record{ID: p.ID, Fields: p.Fields}
	if rec.Fields == nil {
		rec.Fields = contractx.Fields{}
	}
	if ts, err := time.Parse(time.RFC3339, p.CreatedTime); err == nil {
		rec.CreatedTime = ts
	}
	return rec
}
