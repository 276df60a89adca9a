package apollo

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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/i2y/apollo-mcp/internal/domain"
)

const (
	DefaultBaseURL       = "https://api.apollo.io/api/v1"
	DefaultLegacyBaseURL = "https://api.apollo.io/v1"
	DefaultAppBaseURL    = "https://app.apollo.io/api/v1"

	maxResponseBytes = 10 << 20
	tracerName       = "github.com/i2y/apollo-mcp/internal/adapter/outbound/apollo"
)

var (
	// ErrNoOrganizations is returned by EmployeesOfCompany when the company
	// search has no candidates.
	ErrNoOrganizations = errors.New("no organizations found")
	// ErrNoCompanyID is returned by EmployeesOfCompany when the chosen
	// candidate carries no identifier.
	ErrNoCompanyID = errors.New("could not determine company ID")
	// ErrMissingAPIKey is returned by New when the configuration has no key.
	ErrMissingAPIKey = errors.New("apollo API key is required")
)

// APIError is a non-2xx answer from Apollo.io.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Config is the immutable connection setting shared by every request.
type Config struct {
	APIKey        string
	BaseURL       string
	LegacyBaseURL string
	AppBaseURL    string

	// TracerProvider receives the request spans. Nil uses the global provider.
	TracerProvider trace.TracerProvider
}

// Client calls the Apollo.io REST API. It is safe for concurrent use.
type Client struct {
	http   *http.Client
	apiKey string
	hosts  map[domain.Host]*url.URL
	logger *slog.Logger
	tracer trace.Tracer
}

// New creates a Client. Empty base URLs fall back to the public Apollo hosts.
func New(httpClient *http.Client, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	tracers := cfg.TracerProvider
	if tracers == nil {
		tracers = otel.GetTracerProvider()
	}

	raw := map[domain.Host]string{
		domain.HostAPI:    orDefault(cfg.BaseURL, DefaultBaseURL),
		domain.HostLegacy: orDefault(cfg.LegacyBaseURL, DefaultLegacyBaseURL),
		domain.HostApp:    orDefault(cfg.AppBaseURL, DefaultAppBaseURL),
	}
	hosts := make(map[domain.Host]*url.URL, len(raw))
	for host, s := range raw {
		u, err := url.Parse(strings.TrimSuffix(s, "/"))
		if err != nil {
			return nil, fmt.Errorf("invalid %s base URL %q: %w", host, s, err)
		}
		hosts[host] = u
	}

	return &Client{
		http:   httpClient,
		apiKey: cfg.APIKey,
		hosts:  hosts,
		logger: logger.With("component", "apollo_client"),
		tracer: tracers.Tracer(tracerName),
	}, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// request describes one upstream call.
type request struct {
	op      domain.OperationName
	binding domain.Binding
	path    string // resolved path; defaults to binding.Path
	query   url.Values
	body    any // JSON encoded when non-nil
}

// do executes req and returns the raw 2xx response body.
func (c *Client) do(ctx context.Context, req request) ([]byte, error) {
	base, ok := c.hosts[req.binding.Host]
	if !ok {
		return nil, fmt.Errorf("unknown host %q", req.binding.Host)
	}
	path := req.path
	if path == "" {
		path = req.binding.Path
	}

	u := base.JoinPath(path)
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	ctx, span := c.tracer.Start(ctx, "apollo."+string(req.op), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", req.binding.Method),
		attribute.String("url.path", u.Path),
	)

	log := c.logger.With(
		slog.String("operation", string(req.op)),
		slog.String("method", req.binding.Method),
		slog.String("url", u.Redacted()),
	)

	// --- 1. Encode body --- //
	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "marshal request body")
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
		log.Debug("Prepared request body", slog.Int("size", len(data)))
	}

	// --- 2. Create request --- //
	httpReq, err := http.NewRequestWithContext(ctx, req.binding.Method, u.String(), body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create request")
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("X-Api-Key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Cache-Control", "no-cache")

	// --- 3. Execute --- //
	log.Debug("Executing HTTP request")
	resp, err := c.http.Do(httpReq)
	if err != nil {
		log.Error("HTTP request failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return nil, fmt.Errorf("request execution failed: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	log = log.With(slog.Int("status_code", resp.StatusCode))

	// --- 4. Process response --- //
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		log.Error("Failed to read response body", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "read response")
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data, resp.Status)}
		log.Warn("Received non-success status code", slog.String("message", apiErr.Message))
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, apiErr.Error())
		return nil, apiErr
	}

	log.Debug("Received HTTP response", slog.Int("size", len(data)))
	return data, nil
}

// call executes req and decodes the JSON response. An empty body yields nil.
func (c *Client) call(ctx context.Context, req request) (any, error) {
	data, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	return decode(data)
}

func decode(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var out any
	if err := unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}
	return out, nil
}

// unmarshal keeps numbers as json.Number so identifiers beyond 2^53 survive
// the round trip back to the caller.
func unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// errorMessage extracts the upstream "error" or "message" field from an error
// body, falling back to the raw body and then to the HTTP status text.
func errorMessage(body []byte, status string) string {
	var payload struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if s, ok := payload.Error.(string); ok && s != "" {
			return s
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return s
	}
	return status
}
