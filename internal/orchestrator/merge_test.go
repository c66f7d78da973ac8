package orchestrator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_AppendConcatenates(t *testing.T) {
	got := Merge([]string{"a", "b"}, Append("b", "c"))
	assert.Equal(t, []string{"a", "b", "b", "c"}, got, "order preserved, duplicates kept")
}

func TestMerge_OverrideReplaces(t *testing.T) {
	for name, current := range map[string][]string{
		"nil":       nil,
		"empty":     {},
		"populated": {"x", "y", "z"},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, []string{"fresh"}, Merge(current, Override("fresh")))
			assert.Empty(t, Merge(current, Override[string]()))
		})
	}
}

func TestMerge_ZeroValueLeavesFieldUnchanged(t *testing.T) {
	var zero OverrideValue[int]
	assert.False(t, zero.IsOverride())
	assert.Equal(t, []int{1, 2}, Merge([]int{1, 2}, zero))
}

func TestMerge_DoesNotAlias(t *testing.T) {
	current := make([]int, 2, 10)
	current[0], current[1] = 1, 2

	a := Merge(current, Append(3))
	b := Merge(current, Append(4))
	assert.Equal(t, []int{1, 2, 3}, a)
	assert.Equal(t, []int{1, 2, 4}, b)

	payload := []int{7}
	o := Merge(nil, Override(payload...))
	payload[0] = 8
	assert.Equal(t, []int{7}, o)
}

func TestMerge_AppendIsAssociative(t *testing.T) {
	a, b, c := []int{1}, []int{2, 3}, []int{4}
	left := Merge(Merge(a, Append(b...)), Append(c...))
	right := Merge(a, Append(append(append([]int{}, b...), c...)...))
	assert.Equal(t, left, right)
}

func TestOverrideValue_Unwrap(t *testing.T) {
	assert.Equal(t, []string{"a"}, Append("a").Unwrap())
	assert.Equal(t, []string{"a"}, Override("a").Unwrap())
	assert.True(t, Override("a").IsOverride())
}

func TestOverrideValue_JSON(t *testing.T) {
	data, err := json.Marshal(Override("n1", "n2"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"override","value":["n1","n2"]}`, string(data))

	data, err = json.Marshal(Append("n3"))
	require.NoError(t, err)
	assert.JSONEq(t, `["n3"]`, string(data))

	data, err = json.Marshal(Override[string]())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"override","value":[]}`, string(data))

	var v OverrideValue[string]
	require.NoError(t, json.Unmarshal([]byte(`{"type":"override","value":["x"]}`), &v))
	assert.True(t, v.IsOverride())
	assert.Equal(t, []string{"x"}, v.Unwrap())

	require.NoError(t, json.Unmarshal([]byte(` ["y"]`), &v))
	assert.False(t, v.IsOverride())
	assert.Equal(t, []string{"y"}, v.Unwrap())

	assert.Error(t, json.Unmarshal([]byte(`{"type":"replace","value":[]}`), &v))
}
