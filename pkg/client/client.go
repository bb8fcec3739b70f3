// Package client provides the GraphQL HTTP transport used by the paged fetcher,
// with bearer authentication, error classification, metrics and tracing.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Prometheus metrics for GraphQL client operations.
var (
	graphqlRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graphql_requests_total",
		Help: "Total GraphQL requests by operation and status",
	}, []string{"operation", "status"})

	graphqlRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "graphql_request_duration_seconds",
		Help:    "GraphQL request duration in seconds by operation",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"operation"})

	graphqlErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graphql_errors_total",
		Help: "Total GraphQL errors by class",
	}, []string{"class"})
)

const tracerName = "github.com/Sternrassler/graphql-pager/pkg/client"

// maxErrorBody is how much of a failed response body is kept in a TransportError.
const maxErrorBody = 512

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents a success status with an unreadable body.
	ErrorClassDecode ErrorClass = "decode"

	// ErrorClassGraphQL represents application errors reported in the payload.
	ErrorClassGraphQL ErrorClass = "graphql"
)

// Client sends GraphQL queries to a single endpoint.
type Client struct {
	http   *resty.Client
	config Config
	logger zerolog.Logger
	tracer trace.Tracer
}

// Config holds the client configuration.
type Config struct {
	// Endpoint is the GraphQL endpoint URL (REQUIRED).
	Endpoint string

	// Token is sent as "Authorization: Bearer <token>" (REQUIRED).
	Token string

	// UserAgent header, optional.
	UserAgent string

	// Timeout per request.
	Timeout time.Duration

	// Headers are added to every request.
	Headers map[string]string
}

// DefaultConfig returns a default configuration for an endpoint.
func DefaultConfig(endpoint, token string) Config {
	return Config{
		Endpoint:  endpoint,
		Token:     token,
		UserAgent: "graphql-pager/0.1.0",
		Timeout:   30 * time.Second,
	}
}

// New creates a new GraphQL client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}

	u, err := url.Parse(cfg.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("endpoint must be an absolute http(s) URL (got %q)", cfg.Endpoint)
	}

	if cfg.Token == "" {
		return nil, fmt.Errorf("token is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := &Client{
		config: cfg,
		logger: log.With().Str("component", "graphql-client").Logger(),
		tracer: otel.Tracer(tracerName),
	}
	c.configure(resty.New())

	return c, nil
}

// configure applies the client configuration to a resty client.
func (c *Client) configure(r *resty.Client) {
	r.SetTimeout(c.config.Timeout)
	r.SetAuthToken(c.config.Token)
	r.SetHeader("Content-Type", "application/json")
	r.SetHeader("Accept", "application/json")
	if c.config.UserAgent != "" {
		r.SetHeader("User-Agent", c.config.UserAgent)
	}
	for k, v := range c.config.Headers {
		r.SetHeader(k, v)
	}
	c.http = r
}

// request is the GraphQL POST body.
type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// response is the GraphQL response envelope.
type response struct {
	Data   json.RawMessage `json:"data"`
	Errors []ErrorEntry    `json:"errors"`
}

// Query sends one GraphQL query and returns the response's data object.
//
// It fails with *TransportError on network errors and non-2xx statuses, and with
// *GraphQLError when the payload carries errors, regardless of the HTTP status.
func (c *Client) Query(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	operation := OperationName(query)

	ctx, span := c.tracer.Start(ctx, "graphql.query",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("graphql.operation.name", operation),
			attribute.String("server.address", c.config.Endpoint),
		),
	)
	defer span.End()

	startTime := time.Now()
	defer func() {
		graphqlRequestDuration.WithLabelValues(operation).Observe(time.Since(startTime).Seconds())
	}()

	c.logger.Debug().
		Str("operation", operation).
		Interface("variables", variables).
		Msg("Executing GraphQL request")

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(request{Query: query, Variables: variables}).
		Post(c.config.Endpoint)
	if err != nil {
		c.logger.Error().Err(err).Str("operation", operation).Msg("HTTP request failed")
		graphqlRequestsTotal.WithLabelValues(operation, "network_error").Inc()
		return nil, c.fail(span, &TransportError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		})
	}

	status := strconv.Itoa(resp.StatusCode())
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode()))
	graphqlRequestsTotal.WithLabelValues(operation, status).Inc()

	if !resp.IsSuccess() {
		errClass := classifyStatus(resp.StatusCode())
		c.logger.Warn().
			Str("operation", operation).
			Int("status", resp.StatusCode()).
			Str("error_class", string(errClass)).
			Msg("GraphQL request error")
		return nil, c.fail(span, &TransportError{
			StatusCode: resp.StatusCode(),
			ErrorClass: errClass,
			Message:    resp.Status(),
			Body:       truncate(resp.String(), maxErrorBody),
		})
	}

	var payload response
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		c.logger.Warn().Err(err).Str("operation", operation).Msg("Undecodable GraphQL response")
		return nil, c.fail(span, &TransportError{
			StatusCode: resp.StatusCode(),
			ErrorClass: ErrorClassDecode,
			Message:    "decode response",
			Body:       truncate(resp.String(), maxErrorBody),
			Err:        err,
		})
	}

	// "errors": [] and "errors": null both mean success.
	if len(payload.Errors) > 0 {
		c.logger.Warn().
			Str("operation", operation).
			Int("errors", len(payload.Errors)).
			Str("first_error", payload.Errors[0].Message).
			Msg("GraphQL response carries errors")
		return nil, c.fail(span, &GraphQLError{Errors: payload.Errors})
	}

	if len(payload.Data) == 0 {
		payload.Data = json.RawMessage("null")
	}

	return payload.Data, nil
}

// fail records a failed request on the span and in metrics.
func (c *Client) fail(span trace.Span, err error) error {
	class := classOf(err)
	graphqlErrorsTotal.WithLabelValues(string(class)).Inc()
	span.SetAttributes(attribute.String("error.type", string(class)))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// classifyStatus categorizes a non-2xx HTTP status.
func classifyStatus(statusCode int) ErrorClass {
	if statusCode >= http.StatusInternalServerError {
		return ErrorClassServer
	}
	return ErrorClassClient
}

var operationPattern = regexp.MustCompile(`^\s*(?:query|mutation|subscription)\s+([_A-Za-z][_0-9A-Za-z]*)`)

// OperationName returns the name of the first operation in query, or "anonymous".
func OperationName(query string) string {
	if m := operationPattern.FindStringSubmatch(query); m != nil {
		return m[1]
	}
	return "anonymous"
}

// Endpoint returns the configured endpoint URL.
func (c *Client) Endpoint() string {
	return c.config.Endpoint
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.configure(resty.NewWithClient(client))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
