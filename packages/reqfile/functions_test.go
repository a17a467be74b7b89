package reqfile

import (
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallBuiltin_UUID(t *testing.T) {
	got, ok := callBuiltin("uuid()")
	require.True(t, ok)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f-]{36}$`), got)
}

func TestCallBuiltin_RandomRange(t *testing.T) {
	for i := 0; i < 50; i++ {
		got, ok := callBuiltin("random(5, 10)")
		require.True(t, ok)

		n := got.(int)
		assert.GreaterOrEqual(t, n, 5)
		assert.LessOrEqual(t, n, 10)
	}
}

func TestCallBuiltin_RandomStringLength(t *testing.T) {
	got, ok := callBuiltin("randomString(24)")
	require.True(t, ok)
	assert.Len(t, got.(string), 24)
}

func TestCallBuiltin_Base64RoundTrip(t *testing.T) {
	encoded, ok := callBuiltin(`base64("user:pass")`)
	require.True(t, ok)
	assert.Equal(t, "dXNlcjpwYXNz", encoded)

	decoded, ok := callBuiltin("base64Decode(dXNlcjpwYXNz)")
	require.True(t, ok)
	assert.Equal(t, "user:pass", decoded)
}

func TestCallBuiltin_SHA256(t *testing.T) {
	got, ok := callBuiltin("sha256(abc)")
	require.True(t, ok)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", got)
}

func TestCallBuiltin_URLEncode(t *testing.T) {
	got, ok := callBuiltin("urlEncode(a b&c)")
	require.True(t, ok)
	assert.Equal(t, "a+b%26c", got)
}

func TestCallBuiltin_Timestamp(t *testing.T) {
	got, ok := callBuiltin("timestamp()")
	require.True(t, ok)
	assert.Greater(t, got.(int64), int64(1_600_000_000))
}

func TestCallBuiltin_Unknown(t *testing.T) {
	_, ok := callBuiltin("nope()")
	assert.False(t, ok)

	_, ok = callBuiltin("not a call")
	assert.False(t, ok)
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"a, b, c", []string{"a", "b", "c"}},
		{`"a, b", c`, []string{"a, b", "c"}},
		{`'x,y'`, []string{"x,y"}},
		{"single", []string{"single"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, splitArgs(tt.input))
		})
	}
}

func TestCallBuiltin_RandomSwappedBounds(t *testing.T) {
	got, ok := callBuiltin("random(10, 5)")
	require.True(t, ok)

	n := got.(int)
	assert.GreaterOrEqual(t, n, 5)
	assert.LessOrEqual(t, n, 10)
}

func TestCallBuiltin_Date(t *testing.T) {
	got, ok := callBuiltin("date(2006)")
	require.True(t, ok)

	year, err := strconv.Atoi(got.(string))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, year, 2024)
}
