package stream

import (
	"errors"
	"testing"

	"github.com/casualjim/quill/errdefs"
	"github.com/casualjim/quill/pkg/jsonx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fragment(t *testing.T, raw string) Fragment {
	t.Helper()
	f, err := ParseFragment([]byte(raw))
	require.NoError(t, err)
	return f
}

func foldAll(t *testing.T, raws ...string) Accumulator {
	t.Helper()
	var acc Accumulator
	for _, raw := range raws {
		var err error
		acc, err = Fold(acc, fragment(t, raw))
		require.NoError(t, err)
	}
	return acc
}

func accJSON(t *testing.T, acc Accumulator, index int) string {
	t.Helper()
	b, err := jsonx.Marshal(acc[index])
	require.NoError(t, err)
	return string(b)
}

func TestFold_TextAssociativity(t *testing.T) {
	split := foldAll(t,
		`{"choices":[{"index":0,"delta":{"text":"a"}}]}`,
		`{"choices":[{"index":0,"delta":{"text":"b"}}]}`,
	)
	combined := foldAll(t, `{"choices":[{"index":0,"delta":{"text":"ab"}}]}`)

	assert.Equal(t, "ab", split.String(0, "text"))
	assert.True(t, jsonx.DeepEqual(split[0], combined[0]))
}

func TestFold_ChoiceCountMismatch(t *testing.T) {
	acc := foldAll(t, `{"choices":[{"index":0,"delta":{"content":"a"}}]}`)

	_, err := Fold(acc, fragment(t, `{"choices":[{"index":0,"delta":{"content":"b"}},{"index":1,"delta":{"content":"c"}}]}`))
	require.Error(t, err)

	var perr *ProtocolError
	require.True(t, errors.As(err, &perr))
	assert.ErrorIs(t, err, errdefs.ErrChoiceCountMismatch)
	assert.True(t, errdefs.IsProtocol(err))

	_, err = Fold(acc, Fragment{})
	assert.ErrorIs(t, err, errdefs.ErrChoiceCountMismatch)
}

func TestFold_NilAccumulatorAcceptsAnyCount(t *testing.T) {
	acc, err := Fold(nil, fragment(t, `{"choices":[{"index":0,"delta":{"content":"x"}},{"index":1,"delta":{"content":"y"}}]}`))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, acc.Indexes())

	empty, err := Fold(nil, Fragment{})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFold_MergeRules(t *testing.T) {
	tests := []struct {
		name      string
		fragments []string
		want      string
	}{
		{
			name: "missing field adopts incoming",
			fragments: []string{
				`{"choices":[{"delta":{"role":"assistant"}}]}`,
				`{"choices":[{"delta":{"content":"hi"}}]}`,
			},
			want: `{"role":"assistant","content":"hi"}`,
		},
		{
			name: "null existing adopts incoming",
			fragments: []string{
				`{"choices":[{"delta":{"role":"assistant","content":null}}]}`,
				`{"choices":[{"delta":{"content":"hi"}}]}`,
			},
			want: `{"role":"assistant","content":"hi"}`,
		},
		{
			name: "incoming null is ignored",
			fragments: []string{
				`{"choices":[{"delta":{"content":"hi"}}]}`,
				`{"choices":[{"delta":{"content":null}}]}`,
			},
			want: `{"content":"hi"}`,
		},
		{
			name: "objects merge recursively",
			fragments: []string{
				`{"choices":[{"delta":{"function_call":{"name":"weather","arguments":"{\"ci"}}}]}`,
				`{"choices":[{"delta":{"function_call":{"arguments":"ty\":1}"}}}]}`,
			},
			want: `{"function_call":{"name":"weather","arguments":"{\"city\":1}"}}`,
		},
		{
			name: "numbers overwrite",
			fragments: []string{
				`{"choices":[{"delta":{"n":1}}]}`,
				`{"choices":[{"delta":{"n":2}}]}`,
			},
			want: `{"n":2}`,
		},
		{
			name: "arrays overwrite",
			fragments: []string{
				`{"choices":[{"delta":{"a":[1,2]}}]}`,
				`{"choices":[{"delta":{"a":[3]}}]}`,
			},
			want: `{"a":[3]}`,
		},
		{
			name: "type change overwrites",
			fragments: []string{
				`{"choices":[{"delta":{"v":"text"}}]}`,
				`{"choices":[{"delta":{"v":{"k":true}}}]}`,
			},
			want: `{"v":{"k":true}}`,
		},
		{
			name: "null delta leaves the choice empty",
			fragments: []string{
				`{"choices":[{"index":0,"delta":null}]}`,
			},
			want: `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := foldAll(t, tt.fragments...)
			assert.JSONEq(t, tt.want, accJSON(t, acc, 0))
		})
	}
}

func TestFold_ParallelChoices(t *testing.T) {
	acc := foldAll(t,
		`{"choices":[{"index":0,"delta":{"content":"He"}},{"index":1,"delta":{"content":"Bon"}}]}`,
		`{"choices":[{"index":1,"delta":{"content":"jour"}},{"index":0,"delta":{"content":"llo"}}]}`,
	)
	assert.Equal(t, "Hello", acc.String(0, "content"))
	assert.Equal(t, "Bonjour", acc.String(1, "content"))
	assert.Equal(t, "", acc.String(7, "content"))
}

func TestFold_DoesNotAliasFragment(t *testing.T) {
	f := fragment(t, `{"choices":[{"index":0,"delta":{"tool":{"args":"x"}}}]}`)
	acc, err := Fold(nil, f)
	require.NoError(t, err)
	_, err = Fold(acc, fragment(t, `{"choices":[{"index":0,"delta":{"tool":{"args":"y"}}}]}`))
	require.NoError(t, err)

	tool, _ := jsonx.GetObject(f.Choices[0].Delta, "tool")
	args, _ := jsonx.GetString(tool, "args")
	assert.Equal(t, "x", args)
}

func TestParseFragment(t *testing.T) {
	f, err := ParseFragment([]byte(`{"id":"x","choices":[{"delta":{"a":"1"}},{"index":5,"delta":{"b":"2"}}]}`))
	require.NoError(t, err)
	require.Len(t, f.Choices, 2)
	assert.Equal(t, 0, f.Choices[0].Index)
	assert.Equal(t, 5, f.Choices[1].Index)

	f, err = ParseFragment([]byte(`{"usage":{"total_tokens":3}}`))
	require.NoError(t, err)
	assert.Empty(t, f.Choices)

	errCases := []string{
		`not json`,
		`{"choices":{"index":0}}`,
		`{"choices":[{"index":0,"delta":"text"}]}`,
	}
	for _, raw := range errCases {
		_, err := ParseFragment([]byte(raw))
		assert.Error(t, err, raw)
	}
}
