package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/i2y/apollo-mcp/internal/domain"
)

// ErrorPrefix starts the text of every error-flagged tool result.
const ErrorPrefix = "Apollo.io API error: "

const meterName = "github.com/i2y/apollo-mcp/internal/usecase"

// Dispatcher routes tool calls to the Apollo client. A call never fails with an
// error except for unknown tools: every other failure, panics included, becomes
// an error-flagged result.
type Dispatcher struct {
	catalog  ToolCatalog
	client   ApolloClient
	logger   *slog.Logger
	calls    metric.Int64Counter
	duration metric.Float64Histogram
}

// NewDispatcher creates a Dispatcher recording its metrics on meters. A nil
// provider falls back to the global one.
func NewDispatcher(catalog ToolCatalog, client ApolloClient, meters metric.MeterProvider, logger *slog.Logger) (*Dispatcher, error) {
	if meters == nil {
		meters = otel.GetMeterProvider()
	}
	meter := meters.Meter(meterName)
	calls, err := meter.Int64Counter("apollo_mcp.tool.calls",
		metric.WithDescription("Number of tool calls by tool and outcome."))
	if err != nil {
		return nil, fmt.Errorf("failed to create call counter: %w", err)
	}
	duration, err := meter.Float64Histogram("apollo_mcp.tool.duration",
		metric.WithDescription("Duration of tool calls."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &Dispatcher{
		catalog:  catalog,
		client:   client,
		logger:   logger.With("usecase", "Dispatch"),
		calls:    calls,
		duration: duration,
	}, nil
}

// Call executes one tool call. Its signature matches server.ToolHandlerFunc.
func (d *Dispatcher) Call(ctx context.Context, req mcp.CallToolRequest) (result *mcp.CallToolResult, err error) {
	name := req.Params.Name
	log := d.logger.With(slog.String("tool_name", name), slog.String("call_id", uuid.NewString()))
	log.Info("Executing tool invocation")

	// --- 1. Find tool --- //
	op, err := d.catalog.FindByName(ctx, name)
	if err != nil {
		log.Warn("Tool not found", slog.Any("error", err))
		return nil, fmt.Errorf("tool '%s': %w", name, err)
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered panic in tool invocation", slog.Any("panic", r))
			result, err = d.failure(fmt.Errorf("internal error: %v", r)), nil
		}
		outcome := "success"
		if result != nil && result.IsError {
			outcome = "error"
		}
		attrs := metric.WithAttributes(attribute.String("tool", name), attribute.String("outcome", outcome))
		d.calls.Add(ctx, 1, attrs)
		d.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	}()

	// --- 2. Validate against the input schema --- //
	args := withoutNulls(req.GetArguments())
	if err := validateSchema(op.InputSchema, args); err != nil {
		log.Warn("Invalid tool arguments", slog.Any("error", err))
		return d.failure(err), nil
	}

	// --- 3. Decode, validate and invoke --- //
	payload, err := d.invoke(ctx, op.Name, args)
	if err != nil {
		log.Warn("Tool invocation failed", slog.Any("error", err))
		return d.failure(err), nil
	}

	// --- 4. Envelope --- //
	text, err := render(payload)
	if err != nil {
		log.Error("Failed to encode tool result", slog.Any("error", err))
		return d.failure(fmt.Errorf("failed to encode result: %w", err)), nil
	}
	log.Info("Tool invocation successful", slog.Duration("elapsed", time.Since(start)))
	return mcp.NewToolResultText(text), nil
}

func (d *Dispatcher) invoke(ctx context.Context, name domain.OperationName, args map[string]any) (any, error) {
	c := d.client
	switch name {
	case domain.OpPeopleEnrichment:
		return run(ctx, args, c.PeopleEnrichment)
	case domain.OpBulkPeopleEnrichment:
		return run(ctx, args, c.BulkPeopleEnrichment)
	case domain.OpOrganizationEnrichment:
		return run(ctx, args, c.OrganizationEnrichment)
	case domain.OpPeopleSearch:
		return run(ctx, args, c.PeopleSearch)
	case domain.OpOrganizationSearch:
		return run(ctx, args, func(ctx context.Context, a domain.OrganizationSearchArgs) (any, error) {
			a.OrganizationNumEmployeesRanges = domain.NormalizeRanges(a.OrganizationNumEmployeesRanges)
			return c.OrganizationSearch(ctx, a)
		})
	case domain.OpOrganizationJobPostings:
		return run(ctx, args, c.OrganizationJobPostings)
	case domain.OpGetPersonEmail:
		return run(ctx, args, c.PersonEmail)
	case domain.OpEmployeesOfCompany:
		return run(ctx, args, c.EmployeesOfCompany)
	default:
		return nil, fmt.Errorf("tool '%s' has no handler: %w", name, ErrToolNotFound)
	}
}

type validator interface {
	Validate() error
}

// run decodes the argument bag into the record A, validates it and calls fn.
func run[A validator, R any](ctx context.Context, args map[string]any, fn func(context.Context, A) (R, error)) (any, error) {
	var record A
	if err := decodeArgs(args, &record); err != nil {
		return nil, err
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}
	return fn(ctx, record)
}

func decodeArgs(args map[string]any, target any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

func validateSchema(schema *openapi3.Schema, args map[string]any) error {
	if schema == nil {
		return nil
	}
	err := schema.VisitJSON(args)
	if err == nil {
		return nil
	}
	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		if path := strings.Join(schemaErr.JSONPointer(), "."); path != "" {
			return fmt.Errorf("%w: %s: %s", domain.ErrInvalidArgument, path, schemaErr.Reason)
		}
		return fmt.Errorf("%w: %s", domain.ErrInvalidArgument, schemaErr.Reason)
	}
	return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
}

// withoutNulls drops top-level null arguments, which clients send for unset
// optional fields. It never returns nil.
func withoutNulls(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

// render indents payload by two spaces. URLs keep their "&", "<" and ">".
func render(payload any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func (d *Dispatcher) failure(err error) *mcp.CallToolResult {
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	return mcp.NewToolResultError(ErrorPrefix + msg)
}
