// Package check evaluates declarative expectations against response bodies.
// Expectations address JSON values by gjson path and support equality,
// substring, regexp, existence, length and JSON Schema conditions. Malformed
// bodies never panic — conditions simply fail with a message.
package check

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

// Expectation is one declarative condition set. Every non-zero field must
// hold for the expectation to pass. Path selects a JSON value (gjson syntax);
// an empty path addresses the whole body.
type Expectation struct {
	Path     string `yaml:"path,omitempty" json:"path,omitempty"`
	Equals   any    `yaml:"equals,omitempty" json:"equals,omitempty"`
	Contains string `yaml:"contains,omitempty" json:"contains,omitempty"`
	Matches  string `yaml:"matches,omitempty" json:"matches,omitempty"`
	Exists   *bool  `yaml:"exists,omitempty" json:"exists,omitempty"`
	Length   *int   `yaml:"length,omitempty" json:"length,omitempty"`
	Schema   string `yaml:"schema,omitempty" json:"schema,omitempty"`
}

// IsZero reports whether no condition is set.
func (e Expectation) IsZero() bool {
	return e.Equals == nil && e.Contains == "" && e.Matches == "" &&
		e.Exists == nil && e.Length == nil && e.Schema == ""
}

// Result is the outcome of one evaluated expectation.
type Result struct {
	Desc    string `json:"desc"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// Evaluator holds one parsed body for repeated expectation checks.
type Evaluator struct {
	body    string
	json    gjson.Result
	baseDir string
}

// NewEvaluator parses body once. Schema file paths resolve relative to
// baseDir when not absolute.
func NewEvaluator(body, baseDir string) *Evaluator {
	return &Evaluator{
		body:    body,
		json:    gjson.Parse(body),
		baseDir: baseDir,
	}
}

// EvaluateAll runs every expectation against body.
func EvaluateAll(body, baseDir string, exps []Expectation) []Result {
	e := NewEvaluator(body, baseDir)
	results := make([]Result, len(exps))
	for i, exp := range exps {
		results[i] = e.Evaluate(exp)
	}
	return results
}

// Evaluate checks every condition set on exp, failing on the first mismatch.
func (e *Evaluator) Evaluate(exp Expectation) Result {
	res := Result{Desc: exp.describe()}

	value, valueStr := e.resolve(exp.Path)

	if exp.Exists != nil {
		if *exp.Exists != value.Exists() {
			res.Message = existsMessage(exp.Path, *exp.Exists)
			return res
		}
	}

	if exp.Equals != nil {
		if !value.Exists() {
			res.Message = fmt.Sprintf("%s not found", subject(exp.Path))
			return res
		}
		if !looseEquals(value.Value(), exp.Equals) {
			res.Message = fmt.Sprintf("expected %v, got %v", exp.Equals, value.Value())
			return res
		}
	}

	if exp.Contains != "" && !strings.Contains(valueStr, exp.Contains) {
		res.Message = fmt.Sprintf("expected %q to contain %q", truncate(valueStr, 80), exp.Contains)
		return res
	}

	if exp.Matches != "" {
		re, err := regexp.Compile(exp.Matches)
		if err != nil {
			res.Message = fmt.Sprintf("invalid pattern: %v", err)
			return res
		}
		if !re.MatchString(valueStr) {
			res.Message = fmt.Sprintf("expected %q to match /%s/", truncate(valueStr, 80), exp.Matches)
			return res
		}
	}

	if exp.Length != nil {
		got := valueLength(value, valueStr)
		if got != *exp.Length {
			res.Message = fmt.Sprintf("expected length %d, got %d", *exp.Length, got)
			return res
		}
	}

	if exp.Schema != "" {
		if ok, msg := e.schema(exp.Schema, value); !ok {
			res.Message = msg
			return res
		}
	}

	res.Passed = true
	return res
}

// resolve returns the addressed JSON value and its string form. An empty
// path addresses the whole body, which stays meaningful even when the body
// is not JSON.
func (e *Evaluator) resolve(path string) (gjson.Result, string) {
	if path == "" {
		return e.json, e.body
	}
	v := e.json.Get(path)
	return v, v.String()
}

func (e *Evaluator) schema(schemaPath string, value gjson.Result) (bool, string) {
	if !filepath.IsAbs(schemaPath) && e.baseDir != "" {
		schemaPath = filepath.Join(e.baseDir, schemaPath)
	}

	schemaData, err := os.ReadFile(schemaPath)
	if err != nil {
		return false, fmt.Sprintf("reading schema: %v", err)
	}

	document := []byte(value.Raw)
	if !value.Exists() {
		document = []byte(e.body)
	}
	if !json.Valid(document) {
		return false, "value is not valid JSON"
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaData),
		gojsonschema.NewBytesLoader(document),
	)
	if err != nil {
		return false, fmt.Sprintf("schema validation: %v", err)
	}
	if result.Valid() {
		return true, ""
	}

	var details []string
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return false, "schema violations: " + strings.Join(details, "; ")
}

func (e Expectation) describe() string {
	s := subject(e.Path)
	switch {
	case e.Equals != nil:
		return fmt.Sprintf("%s equals %v", s, e.Equals)
	case e.Contains != "":
		return fmt.Sprintf("%s contains %q", s, e.Contains)
	case e.Matches != "":
		return fmt.Sprintf("%s matches /%s/", s, e.Matches)
	case e.Exists != nil && !*e.Exists:
		return s + " does not exist"
	case e.Exists != nil:
		return s + " exists"
	case e.Length != nil:
		return fmt.Sprintf("%s has length %d", s, *e.Length)
	case e.Schema != "":
		return fmt.Sprintf("%s matches schema %s", s, e.Schema)
	}
	return s
}

func subject(path string) string {
	if path == "" {
		return "body"
	}
	return path
}

func existsMessage(path string, wanted bool) string {
	if wanted {
		return fmt.Sprintf("%s not found", subject(path))
	}
	return fmt.Sprintf("%s unexpectedly present", subject(path))
}

// looseEquals compares a decoded JSON value with a YAML-decoded expected
// value, tolerating the int/float64 mismatch between the two decoders.
func looseEquals(actual, expected any) bool {
	if reflect.DeepEqual(actual, expected) {
		return true
	}

	af, aok := toFloat64(actual)
	ef, eok := toFloat64(expected)
	if aok && eok {
		return af == ef
	}

	return fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", expected)
}

func valueLength(value gjson.Result, valueStr string) int {
	if value.IsArray() {
		return len(value.Array())
	}
	if value.IsObject() {
		return len(value.Map())
	}
	return len(valueStr)
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
