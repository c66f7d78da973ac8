package orchestrator

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// overrideTag is the discriminator carried by an override value on the wire.
const overrideTag = "override"

// OverrideValue is an update to a list-valued state field. A plain value is
// appended to the current list; an override value replaces it.
//
// The zero value is a plain empty update and leaves the field unchanged.
type OverrideValue[T any] struct {
	values   []T
	override bool
}

// Append returns a plain update that extends the current list with vs.
func Append[T any](vs ...T) OverrideValue[T] {
	return OverrideValue[T]{values: vs}
}

// Override returns an update that replaces the current list with vs.
// Override[T]() clears the field.
func Override[T any](vs ...T) OverrideValue[T] {
	return OverrideValue[T]{values: vs, override: true}
}

// IsOverride reports whether v replaces rather than extends.
func (v OverrideValue[T]) IsOverride() bool { return v.override }

// Unwrap returns the payload regardless of tagging.
func (v OverrideValue[T]) Unwrap() []T { return v.values }

// Merge applies incoming to current. The result never aliases either input.
func Merge[T any](current []T, incoming OverrideValue[T]) []T {
	if incoming.override {
		out := make([]T, len(incoming.values))
		copy(out, incoming.values)
		return out
	}
	out := make([]T, 0, len(current)+len(incoming.values))
	out = append(out, current...)
	return append(out, incoming.values...)
}

type overrideJSON[T any] struct {
	Type  string `json:"type"`
	Value []T    `json:"value"`
}

// MarshalJSON encodes a plain value as a JSON array and an override value as
// {"type":"override","value":[...]}.
func (v OverrideValue[T]) MarshalJSON() ([]byte, error) {
	values := v.values
	if values == nil {
		values = []T{}
	}
	if v.override {
		return json.Marshal(overrideJSON[T]{Type: overrideTag, Value: values})
	}
	return json.Marshal(values)
}

// UnmarshalJSON accepts either encoding produced by MarshalJSON.
func (v *OverrideValue[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var o overrideJSON[T]
		if err := json.Unmarshal(data, &o); err != nil {
			return err
		}
		if o.Type != overrideTag {
			return fmt.Errorf("orchestrator: unknown update type %q", o.Type)
		}
		*v = Override(o.Value...)
		return nil
	}

	var values []T
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*v = Append(values...)
	return nil
}
