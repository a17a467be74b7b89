package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/recurlhq/recurl/packages/client"
	"github.com/recurlhq/recurl/packages/reqfile"
)

// BuildOptions turns one collection request into call options. File defaults
// fill whatever the request leaves unset; headers merge key-wise with the
// request winning. Every string field passes through the resolver first.
func BuildOptions(file *reqfile.File, req reqfile.Request, resolver *reqfile.Resolver) (client.Options, error) {
	opts := client.Options{
		Method: req.Method,
		URL:    resolver.Resolve(req.URL),
	}

	headers := make(map[string]string, len(file.Defaults.Headers)+len(req.Headers))
	for k, v := range file.Defaults.Headers {
		headers[k] = v
	}
	for k, v := range req.Headers {
		headers[k] = v
	}
	if len(headers) > 0 {
		opts.Headers = resolver.ResolveMap(headers)
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = file.Defaults.Timeout
	}
	if timeout > 0 {
		opts.Timeout = time.Duration(timeout) * time.Millisecond
	}

	retries := req.Retries
	if retries == nil {
		retries = file.Defaults.Retries
	}
	opts.MaxRetries = retries

	responseType := req.Type
	if responseType == "" {
		responseType = file.Defaults.Type
	}
	if responseType != "" {
		opts.ResponseType = client.ResponseType(responseType)
	}

	switch {
	case len(req.Form) > 0:
		form, err := buildForm(req.Form, file.Dir(), resolver)
		if err != nil {
			return client.Options{}, err
		}
		opts.Data = form
	case req.Body != nil:
		if s, ok := req.Body.(string); ok {
			opts.Data = resolver.Resolve(s)
		} else {
			opts.Data = resolver.ResolveAny(req.Body)
		}
	}

	return opts, nil
}

// buildForm converts the YAML form map into ordered fields. Values starting
// with "@" name a file whose contents become the field; relative paths
// resolve against the collection directory. Fields are ordered by name so a
// collection builds the same command every run.
func buildForm(fields map[string]string, baseDir string, resolver *reqfile.Resolver) (client.Form, error) {
	form := make(client.Form, 0, len(fields))
	for _, name := range sortedKeys(fields) {
		value := resolver.Resolve(fields[name])

		if strings.HasPrefix(value, "@") {
			path := value[1:]
			if !filepath.IsAbs(path) {
				path = filepath.Join(baseDir, path)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("reading form file for field %q: %w", name, err)
			}
			form = append(form, client.FormField{Name: name, Bytes: data})
			continue
		}

		form = append(form, client.FormField{Name: name, Value: value})
	}
	return form, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
