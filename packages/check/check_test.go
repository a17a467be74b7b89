package check

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBody = `{
	"user": {"id": 42, "name": "ada", "email": "ada@example.com"},
	"tags": ["alpha", "beta", "gamma"],
	"active": true,
	"score": 9.5
}`

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }

func TestEvaluate_Equals(t *testing.T) {
	tests := []struct {
		name   string
		exp    Expectation
		passed bool
	}{
		{"int against json number", Expectation{Path: "user.id", Equals: 42}, true},
		{"float against json number", Expectation{Path: "score", Equals: 9.5}, true},
		{"string", Expectation{Path: "user.name", Equals: "ada"}, true},
		{"bool", Expectation{Path: "active", Equals: true}, true},
		{"mismatch", Expectation{Path: "user.id", Equals: 41}, false},
		{"missing path", Expectation{Path: "user.nope", Equals: 1}, false},
	}

	e := NewEvaluator(sampleBody, "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Evaluate(tt.exp)
			assert.Equal(t, tt.passed, res.Passed, res.Message)
		})
	}
}

func TestEvaluate_EqualsMismatchMessage(t *testing.T) {
	e := NewEvaluator(sampleBody, "")
	res := e.Evaluate(Expectation{Path: "user.id", Equals: 41})

	require.False(t, res.Passed)
	assert.Contains(t, res.Message, "expected 41")
	assert.Contains(t, res.Message, "got 42")
}

func TestEvaluate_Contains(t *testing.T) {
	e := NewEvaluator(sampleBody, "")

	assert.True(t, e.Evaluate(Expectation{Path: "user.email", Contains: "@example.com"}).Passed)
	assert.True(t, e.Evaluate(Expectation{Contains: `"alpha"`}).Passed)
	assert.False(t, e.Evaluate(Expectation{Path: "user.name", Contains: "bob"}).Passed)
}

func TestEvaluate_Matches(t *testing.T) {
	e := NewEvaluator(sampleBody, "")

	assert.True(t, e.Evaluate(Expectation{Path: "user.email", Matches: `^[^@]+@example\.com$`}).Passed)
	assert.False(t, e.Evaluate(Expectation{Path: "user.name", Matches: `^\d+$`}).Passed)

	res := e.Evaluate(Expectation{Path: "user.name", Matches: `[`})
	require.False(t, res.Passed)
	assert.Contains(t, res.Message, "invalid pattern")
}

func TestEvaluate_Exists(t *testing.T) {
	e := NewEvaluator(sampleBody, "")

	assert.True(t, e.Evaluate(Expectation{Path: "user.id", Exists: boolPtr(true)}).Passed)
	assert.True(t, e.Evaluate(Expectation{Path: "user.password", Exists: boolPtr(false)}).Passed)
	assert.False(t, e.Evaluate(Expectation{Path: "user.password", Exists: boolPtr(true)}).Passed)

	res := e.Evaluate(Expectation{Path: "user.id", Exists: boolPtr(false)})
	require.False(t, res.Passed)
	assert.Contains(t, res.Message, "unexpectedly present")
}

func TestEvaluate_Length(t *testing.T) {
	e := NewEvaluator(sampleBody, "")

	assert.True(t, e.Evaluate(Expectation{Path: "tags", Length: intPtr(3)}).Passed)
	assert.True(t, e.Evaluate(Expectation{Path: "user", Length: intPtr(3)}).Passed)
	assert.True(t, e.Evaluate(Expectation{Path: "user.name", Length: intPtr(3)}).Passed)
	assert.False(t, e.Evaluate(Expectation{Path: "tags", Length: intPtr(2)}).Passed)
}

func TestEvaluate_Schema(t *testing.T) {
	dir := t.TempDir()
	schema := `{
		"type": "object",
		"required": ["id", "name"],
		"properties": {
			"id": {"type": "number"},
			"name": {"type": "string"}
		}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "user.json"), []byte(schema), 0o600))

	e := NewEvaluator(sampleBody, dir)

	res := e.Evaluate(Expectation{Path: "user", Schema: "user.json"})
	assert.True(t, res.Passed, res.Message)

	res = e.Evaluate(Expectation{Path: "tags", Schema: "user.json"})
	require.False(t, res.Passed)
	assert.Contains(t, res.Message, "schema violations")
}

func TestEvaluate_SchemaMissingFile(t *testing.T) {
	e := NewEvaluator(sampleBody, t.TempDir())
	res := e.Evaluate(Expectation{Schema: "nope.json"})

	require.False(t, res.Passed)
	assert.Contains(t, res.Message, "reading schema")
}

func TestEvaluate_NonJSONBody(t *testing.T) {
	e := NewEvaluator("plain text response", "")

	assert.True(t, e.Evaluate(Expectation{Contains: "text"}).Passed)
	assert.True(t, e.Evaluate(Expectation{Matches: `^plain`}).Passed)

	res := e.Evaluate(Expectation{Path: "user.id", Equals: 1})
	require.False(t, res.Passed)
	assert.Contains(t, res.Message, "not found")
}

func TestEvaluate_MultipleConditions(t *testing.T) {
	e := NewEvaluator(sampleBody, "")

	res := e.Evaluate(Expectation{
		Path:     "user.email",
		Exists:   boolPtr(true),
		Contains: "@",
		Matches:  `example`,
	})
	assert.True(t, res.Passed, res.Message)

	res = e.Evaluate(Expectation{
		Path:     "user.email",
		Contains: "@",
		Matches:  `^\d+$`,
	})
	assert.False(t, res.Passed)
}

func TestEvaluateAll(t *testing.T) {
	results := EvaluateAll(sampleBody, "", []Expectation{
		{Path: "user.id", Equals: 42},
		{Path: "user.id", Equals: 0},
	})

	require.Len(t, results, 2)
	assert.True(t, results[0].Passed)
	assert.False(t, results[1].Passed)
}

func TestExpectation_IsZero(t *testing.T) {
	assert.True(t, Expectation{Path: "user.id"}.IsZero())
	assert.False(t, Expectation{Path: "user.id", Equals: 1}.IsZero())
	assert.False(t, Expectation{Exists: boolPtr(false)}.IsZero())
}

func TestEvaluate_Describe(t *testing.T) {
	tests := []struct {
		exp  Expectation
		desc string
	}{
		{Expectation{Path: "user.id", Equals: 42}, "user.id equals 42"},
		{Expectation{Contains: "ok"}, `body contains "ok"`},
		{Expectation{Path: "tags", Length: intPtr(3)}, "tags has length 3"},
		{Expectation{Path: "x", Exists: boolPtr(false)}, "x does not exist"},
	}

	e := NewEvaluator(sampleBody, "")
	for _, tt := range tests {
		assert.Equal(t, tt.desc, e.Evaluate(tt.exp).Desc)
	}
}
