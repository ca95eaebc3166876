package settings

import (
	"testing"

	"github.com/casualjim/quill/pkg/jsonx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name      string
		global    *jsonx.Object
		requested *jsonx.Object
		want      string
		cleared   []string
	}{
		{
			name:      "identical settings produce no override",
			global:    jsonx.FromPairs("temperature", 0.5, "stop", []any{"a"}),
			requested: jsonx.FromPairs("stop", []any{"a"}, "temperature", 0.5),
			want:      `{}`,
		},
		{
			name:      "changed value",
			global:    jsonx.FromPairs("temperature", 0.5, "top_p", 1.0),
			requested: jsonx.FromPairs("temperature", 0.9, "top_p", 1.0),
			want:      `{"temperature":0.9}`,
		},
		{
			name:      "new key",
			global:    jsonx.FromPairs("temperature", 0.5),
			requested: jsonx.FromPairs("temperature", 0.5, "max_tokens", 10),
			want:      `{"max_tokens":10}`,
		},
		{
			name:      "missing key is cleared",
			global:    jsonx.FromPairs("temperature", 0.5, "top_p", 1.0),
			requested: jsonx.FromPairs("temperature", 0.5),
			want:      `{}`,
			cleared:   []string{"top_p"},
		},
		{
			name:      "nested objects compare deeply",
			global:    jsonx.FromPairs("logit_bias", jsonx.FromPairs("1", 1.0, "2", 2.0)),
			requested: jsonx.FromPairs("logit_bias", jsonx.FromPairs("2", 2.0, "1", 1.0)),
			want:      `{}`,
		},
		{
			name:      "array order matters",
			global:    jsonx.FromPairs("stop", []any{"a", "b"}),
			requested: jsonx.FromPairs("stop", []any{"b", "a"}),
			want:      `{"stop":["b","a"]}`,
		},
		{
			name:      "no global settings",
			global:    nil,
			requested: jsonx.FromPairs("model", "m"),
			want:      `{"model":"m"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.global, tt.requested)
			b, err := jsonx.Marshal(got)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(b))

			for _, key := range tt.cleared {
				v, ok := got.Get(key)
				require.True(t, ok, "expected %q to be present", key)
				assert.True(t, jsonx.IsUndefined(v))
			}
		})
	}
}

func TestDiff_Minimality(t *testing.T) {
	global := jsonx.FromPairs("a", 1.0, "b", "x", "c", []any{1.0}, "d", jsonx.FromPairs("k", true))
	requested := jsonx.FromPairs("a", 1.0, "b", "y", "d", jsonx.FromPairs("k", true), "e", nil)

	diff := Diff(global, requested)
	assert.ElementsMatch(t, []string{"b", "c", "e"}, jsonx.Keys(diff))

	merged := Merge(global, diff)
	for _, key := range []string{"a", "b", "c", "d", "e"} {
		want, wantOK := requested.Get(key)
		got, gotOK := merged.Get(key)
		assert.Equal(t, wantOK, gotOK, key)
		assert.True(t, jsonx.DeepEqual(want, got), key)
	}
}

func TestMerge_DoesNotMutate(t *testing.T) {
	global := jsonx.FromPairs("temperature", 0.5, "top_p", 1.0)
	override := jsonx.FromPairs("temperature", 0.9, "top_p", jsonx.Undefined)

	merged := Merge(global, override)
	b, err := jsonx.Marshal(merged)
	require.NoError(t, err)
	assert.JSONEq(t, `{"temperature":0.9}`, string(b))

	b, err = jsonx.Marshal(global)
	require.NoError(t, err)
	assert.JSONEq(t, `{"temperature":0.5,"top_p":1}`, string(b))
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(nil))
	assert.True(t, IsEmpty(jsonx.NewObject()))
	assert.False(t, IsEmpty(jsonx.FromPairs("a", jsonx.Undefined)))
}
