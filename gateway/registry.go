package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/petal-labs/taskgate/backend"
)

// ErrToolNotFound is returned by Invoke for names outside the catalog.
var ErrToolNotFound = errors.New("tool not found")

// ArgumentError reports arguments that do not fit the tool's input schema:
// unknown keys, missing required keys, or wrongly typed values.
type ArgumentError struct {
	Tool string
	Err  error
}

func (e *ArgumentError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("invalid arguments for %s: %v", e.Tool, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *ArgumentError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Handler runs one tool against already validated JSON arguments. A non-nil
// error means the call could not be handled at all; backend and domain
// failures travel in the Result.
type Handler func(ctx context.Context, args json.RawMessage) (Result, error)

// Tool pairs a tool definition with its handler.
type Tool struct {
	Definition mcp.Tool
	Handler    Handler
}

type registryEntry struct {
	tool       Tool
	schema     *jsonschema.Schema
	properties map[string]struct{}
	required   []string
}

// Registry is the fixed dispatch table shared by both transports. It is
// read-only after NewRegistry and safe for concurrent use.
type Registry struct {
	order   []string
	entries map[string]registryEntry
	logger  *slog.Logger
}

// NewRegistry compiles each tool's input schema. Names must be unique.
func NewRegistry(logger *slog.Logger, tools ...Tool) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		order:   make([]string, 0, len(tools)),
		entries: make(map[string]registryEntry, len(tools)),
		logger:  logger,
	}
	compiler := jsonschema.NewCompiler()
	for _, tool := range tools {
		name := strings.TrimSpace(tool.Definition.Name)
		if name == "" {
			return nil, errors.New("tool name is required")
		}
		if _, exists := r.entries[name]; exists {
			return nil, fmt.Errorf("duplicate tool %q", name)
		}
		if tool.Handler == nil {
			return nil, fmt.Errorf("tool %q has no handler", name)
		}
		schema, err := compileInputSchema(compiler, name, tool.Definition.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", name, err)
		}
		properties := make(map[string]struct{}, len(tool.Definition.InputSchema.Properties))
		for key := range tool.Definition.InputSchema.Properties {
			properties[key] = struct{}{}
		}
		r.entries[name] = registryEntry{
			tool:       tool,
			schema:     schema,
			properties: properties,
			required:   append([]string(nil), tool.Definition.InputSchema.Required...),
		}
		r.order = append(r.order, name)
	}
	return r, nil
}

func compileInputSchema(compiler *jsonschema.Compiler, name string, input mcp.ToolInputSchema) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal input schema: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode input schema: %w", err)
	}
	url := "tools/" + name + ".json"
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile input schema: %w", err)
	}
	return schema, nil
}

// Names returns the tool names in catalog order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Tools returns the tools in catalog order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].tool)
	}
	return out
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (mcp.Tool, bool) {
	entry, ok := r.entries[name]
	if !ok {
		return mcp.Tool{}, false
	}
	return entry.tool.Definition, true
}

// Invoke validates args against the tool's schema and runs its handler. JSON
// null values are treated as not supplied. Errors are ErrToolNotFound,
// *ArgumentError, or an internal error for a handler panic.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (result Result, err error) {
	start := time.Now()
	observation := InvokeObservation{
		ToolName:  name,
		RequestID: uuid.NewString(),
	}
	defer func() {
		observation.Duration = time.Since(start)
		switch {
		case err != nil:
			observation.ErrorCode = errorCode(err)
			r.logger.Warn("tool invocation rejected",
				"tool", name, "request_id", observation.RequestID, "error", err)
		case !result.OK():
			observation.FailureKind = result.Failure.Kind
			r.logger.Warn("tool invocation failed",
				"tool", name, "request_id", observation.RequestID,
				"kind", result.Failure.Kind, "error", result.Failure.Error())
		default:
			observation.Success = true
			r.logger.Debug("tool invocation completed",
				"tool", name, "request_id", observation.RequestID, "duration", observation.Duration)
		}
		emitInvokeObservation(observation)
	}()

	entry, ok := r.entries[name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	raw, err := entry.prepare(args)
	if err != nil {
		return Result{}, &ArgumentError{Tool: name, Err: err}
	}
	return entry.run(backend.WithRequestID(ctx, observation.RequestID), raw)
}

// prepare drops nulls, checks keys and validates the rest against the schema.
func (e registryEntry) prepare(args map[string]any) (json.RawMessage, error) {
	cleaned := make(map[string]any, len(args))
	var unknown []string
	for key, value := range args {
		if value == nil {
			continue
		}
		if _, ok := e.properties[key]; !ok {
			unknown = append(unknown, key)
			continue
		}
		cleaned[key] = value
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unexpected argument '%s'", strings.Join(unknown, "', '"))
	}
	for _, key := range e.required {
		if _, ok := cleaned[key]; !ok {
			return nil, fmt.Errorf("missing required argument '%s'", key)
		}
	}

	raw, err := json.Marshal(cleaned)
	if err != nil {
		return nil, fmt.Errorf("encode arguments: %w", err)
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	if err := e.schema.Validate(instance); err != nil {
		return nil, errors.New(flattenValidationError(err))
	}
	return raw, nil
}

func (e registryEntry) run(ctx context.Context, raw json.RawMessage) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{}
			err = fmt.Errorf("tool %s panicked: %v", e.tool.Definition.Name, r)
		}
	}()
	return e.tool.Handler(ctx, raw)
}

func flattenValidationError(err error) string {
	lines := strings.Split(strings.TrimSpace(err.Error()), "\n")
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "- "))
		if line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, "; ")
}

func errorCode(err error) string {
	var argErr *ArgumentError
	switch {
	case errors.Is(err, ErrToolNotFound):
		return ErrorCodeToolNotFound
	case errors.As(err, &argErr):
		return ErrorCodeInvalidArgument
	default:
		return ErrorCodeInternal
	}
}

// Bind decodes validated arguments into P, rejecting fields P does not know.
func Bind[P any](raw json.RawMessage) (P, error) {
	var params P
	if len(bytes.TrimSpace(raw)) == 0 {
		return params, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&params); err != nil {
		return params, err
	}
	return params, nil
}

// Handle adapts a typed handler to a Handler. Decode errors become
// ArgumentErrors naming the tool.
func Handle[P any](tool string, fn func(context.Context, P) Result) Handler {
	return func(ctx context.Context, raw json.RawMessage) (Result, error) {
		params, err := Bind[P](raw)
		if err != nil {
			return Result{}, &ArgumentError{Tool: tool, Err: err}
		}
		return fn(ctx, params), nil
	}
}

// HandleNoArgs adapts a handler that takes no arguments.
func HandleNoArgs(fn func(context.Context) Result) Handler {
	return func(ctx context.Context, _ json.RawMessage) (Result, error) {
		return fn(ctx), nil
	}
}
