package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// ErrSchemaValidation is returned when a structured response does not
// satisfy the requested schema.
var ErrSchemaValidation = errors.New("llm: structured output failed schema validation")

// SchemaFor infers the JSON schema of T from its json and jsonschema tags.
func SchemaFor[T any]() (*jsonschema.Schema, error) {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("llm: infer schema: %w", err)
	}
	return s, nil
}

// SchemaJSON returns the inferred schema of T as raw JSON, suitable for
// ToolSpec.Parameters. It panics if T cannot be described, which only
// happens for programmer error (channels, funcs).
func SchemaJSON[T any]() json.RawMessage {
	s, err := SchemaFor[T]()
	if err != nil {
		panic(err)
	}
	data, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Errorf("llm: marshal schema: %w", err))
	}
	return data
}

// InvokeStructured requests output matching T's schema and decodes it. A
// response that is not valid JSON or fails validation counts as a failed
// attempt against opts.RetryBudget.
func InvokeStructured[T any](ctx context.Context, g Gateway, messages []Message, opts Options) (T, error) {
	var zero T

	schema, err := SchemaFor[T]()
	if err != nil {
		return zero, err
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return zero, fmt.Errorf("llm: resolve schema: %w", err)
	}
	opts.Schema = schema
	if opts.SchemaName == "" {
		opts.SchemaName = schemaName[T]()
	}

	var out T
	err = retry(ctx, opts, func() error {
		resp, err := g.Invoke(ctx, messages, opts)
		if err != nil {
			return err
		}
		v, err := decodeStructured[T](resp.Text, resolved)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return zero, err
	}
	return out, nil
}

func decodeStructured[T any](text string, resolved *jsonschema.Resolved) (T, error) {
	var zero T
	raw := []byte(extractJSON(text))

	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrSchemaValidation, err)
	}
	if err := resolved.Validate(instance); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrSchemaValidation, err)
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrSchemaValidation, err)
	}
	return v, nil
}

// extractJSON strips a surrounding markdown code fence, which some models
// emit even in JSON mode.
func extractJSON(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimPrefix(t, "json")
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}

func schemaName[T any]() string {
	name := fmt.Sprintf("%T", *new(T))
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "output"
	}
	return name
}
