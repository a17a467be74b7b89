package reqfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/recurlhq/recurl/packages/check"
)

// File is one parsed request collection.
type File struct {
	Path     string         `yaml:"-"`
	Name     string         `yaml:"name,omitempty"`
	Defaults Defaults       `yaml:"defaults"`
	Vars     map[string]any `yaml:"vars,omitempty"`
	Requests []Request      `yaml:"requests"`
}

// Defaults apply to every request in the file unless the request overrides
// them. Headers merge key-wise; scalars replace only when the request leaves
// them unset.
type Defaults struct {
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout int               `yaml:"timeout,omitempty"` // milliseconds
	Retries *int              `yaml:"retries,omitempty"`
	Type    string            `yaml:"type,omitempty"`
}

// Request is a single named request in a collection. Body may be a string,
// which is sent verbatim after interpolation, or any YAML structure, which
// is encoded as JSON. Form values starting with "@" name a file to upload.
type Request struct {
	Name    string              `yaml:"name"`
	Method  string              `yaml:"method,omitempty"`
	URL     string              `yaml:"url"`
	Headers map[string]string   `yaml:"headers,omitempty"`
	Body    any                 `yaml:"body,omitempty"`
	Form    map[string]string   `yaml:"form,omitempty"`
	Type    string              `yaml:"type,omitempty"`
	Timeout int                 `yaml:"timeout,omitempty"` // milliseconds
	Retries *int                `yaml:"retries,omitempty"`
	Capture map[string]string   `yaml:"capture,omitempty"`
	Expect  []check.Expectation `yaml:"expect,omitempty"`
	Skip    bool                `yaml:"skip,omitempty"`
	Bench   *Bench              `yaml:"bench,omitempty"`
}

// Bench tunes how a request takes part in load generation. Weight biases
// selection when several requests are benched together; think pauses a
// virtual user for the given milliseconds after the request completes.
// Setup and teardown requests run once outside the measured window.
type Bench struct {
	Weight   int  `yaml:"weight,omitempty"`
	Think    int  `yaml:"think,omitempty"` // milliseconds
	Skip     bool `yaml:"skip,omitempty"`
	Setup    bool `yaml:"setup,omitempty"`
	Teardown bool `yaml:"teardown,omitempty"`
}

var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true,
}

var knownTypes = map[string]bool{
	"": true, "text": true, "json": true, "buffer": true, "stream": true,
}

// Parse decodes a collection from YAML. path is recorded for error messages
// and relative file resolution; it may be empty for in-memory data.
func Parse(data []byte, path string) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing collection %s: %w", displayPath(path), err)
	}
	f.Path = path
	return &f, nil
}

// Load reads, parses and validates a collection file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading collection: %w", err)
	}
	f, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate reports the first structural problem in the collection.
func (f *File) Validate() error {
	if len(f.Requests) == 0 {
		return fmt.Errorf("%s: no requests defined", displayPath(f.Path))
	}

	seen := make(map[string]bool, len(f.Requests))
	for i, req := range f.Requests {
		where := fmt.Sprintf("request %d", i+1)
		if req.Name != "" {
			where = fmt.Sprintf("request %q", req.Name)
		}

		if req.Name == "" {
			return fmt.Errorf("%s: %s has no name", displayPath(f.Path), where)
		}
		if seen[req.Name] {
			return fmt.Errorf("%s: duplicate request name %q", displayPath(f.Path), req.Name)
		}
		seen[req.Name] = true

		if req.URL == "" {
			return fmt.Errorf("%s: %s has no url", displayPath(f.Path), where)
		}
		if req.Method != "" && !knownMethods[strings.ToUpper(req.Method)] {
			return fmt.Errorf("%s: %s has unknown method %q", displayPath(f.Path), where, req.Method)
		}
		if !knownTypes[req.Type] {
			return fmt.Errorf("%s: %s has unknown response type %q", displayPath(f.Path), where, req.Type)
		}
		if req.Body != nil && len(req.Form) > 0 {
			return fmt.Errorf("%s: %s sets both body and form", displayPath(f.Path), where)
		}

		for name, path := range req.Capture {
			if path == "" {
				return fmt.Errorf("%s: %s capture %q has no path", displayPath(f.Path), where, name)
			}
		}
		for j, exp := range req.Expect {
			if exp.IsZero() {
				return fmt.Errorf("%s: %s expectation %d sets no condition", displayPath(f.Path), where, j+1)
			}
		}

		if req.Bench != nil {
			if req.Bench.Weight < 0 {
				return fmt.Errorf("%s: %s has negative bench weight", displayPath(f.Path), where)
			}
			if req.Bench.Setup && req.Bench.Teardown {
				return fmt.Errorf("%s: %s is marked both bench setup and teardown", displayPath(f.Path), where)
			}
		}
	}

	if f.Defaults.Type != "" && !knownTypes[f.Defaults.Type] {
		return fmt.Errorf("%s: defaults have unknown response type %q", displayPath(f.Path), f.Defaults.Type)
	}

	return nil
}

// Lookup returns the named request.
func (f *File) Lookup(name string) (Request, bool) {
	for _, req := range f.Requests {
		if req.Name == name {
			return req, true
		}
	}
	return Request{}, false
}

// Dir is the directory relative paths in the collection resolve against.
func (f *File) Dir() string {
	if f.Path == "" {
		return "."
	}
	return filepath.Dir(f.Path)
}

func displayPath(path string) string {
	if path == "" {
		return "<memory>"
	}
	return path
}
