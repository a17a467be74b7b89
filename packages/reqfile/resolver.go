package reqfile

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
)

var placeholderPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// WarnFunc receives notes about placeholders that could not be resolved.
type WarnFunc func(format string, args ...any)

// Resolver interpolates {{...}} placeholders in request fields. Lookup order
// is built-in function calls, then captures, then variables. {{$NAME}} reads
// the process environment. Unresolved placeholders are left in place and
// reported through the warn function.
//
// Safe for concurrent use.
type Resolver struct {
	mu       sync.RWMutex
	vars     map[string]any
	captures map[string]any
	warnFunc WarnFunc
}

func NewResolver() *Resolver {
	return &Resolver{
		vars:     make(map[string]any),
		captures: make(map[string]any),
	}
}

// SetWarnFunc routes unresolved-placeholder notes, usually to a logger.
func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnFunc = fn
}

func (r *Resolver) warn(format string, args ...any) {
	r.mu.RLock()
	fn := r.warnFunc
	r.mu.RUnlock()
	if fn != nil {
		fn(format, args...)
	}
}

// SetVars merges vars into the resolver.
func (r *Resolver) SetVars(vars map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.vars[k] = v
	}
}

func (r *Resolver) SetVar(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vars[name] = value
}

// SetCapture stores a captured value under both its qualified name
// ("request.capture") and its bare name, so later requests can use either.
func (r *Resolver) SetCapture(requestName, captureName string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captures[requestName+"."+captureName] = value
	r.captures[captureName] = value
}

func (r *Resolver) GetCapture(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.captures[name]
	return v, ok
}

// Resolve replaces every placeholder in input.
func (r *Resolver) Resolve(input string) string {
	return placeholderPattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])

		if strings.HasPrefix(expr, "$") {
			name := expr[1:]
			if val := os.Getenv(name); val != "" {
				return val
			}
			r.warn("unresolved environment variable: $%s", name)
			return match
		}

		if strings.Contains(expr, "(") {
			if result, ok := callBuiltin(expr); ok {
				return fmt.Sprintf("%v", result)
			}
			r.warn("unresolved function call: %s", expr)
			return match
		}

		r.mu.RLock()
		if val, ok := r.captures[expr]; ok {
			r.mu.RUnlock()
			return fmt.Sprintf("%v", val)
		}
		if val, ok := r.vars[expr]; ok {
			r.mu.RUnlock()
			return fmt.Sprintf("%v", val)
		}
		r.mu.RUnlock()

		r.warn("unresolved variable: %s", expr)
		return match
	})
}

// Unresolved lists placeholder expressions in input that nothing currently
// provides. Known function calls and set environment variables count as
// resolvable. Duplicates are reported once.
func (r *Resolver) Unresolved(input string) []string {
	var missing []string
	seen := make(map[string]bool)

	for _, match := range placeholderPattern.FindAllStringSubmatch(input, -1) {
		expr := strings.TrimSpace(match[1])
		if seen[expr] {
			continue
		}

		if strings.HasPrefix(expr, "$") {
			if os.Getenv(expr[1:]) == "" {
				seen[expr] = true
				missing = append(missing, expr)
			}
			continue
		}

		if strings.Contains(expr, "(") {
			m := callPattern.FindStringSubmatch(expr)
			if m == nil || builtins[m[1]] == nil {
				seen[expr] = true
				missing = append(missing, expr)
			}
			continue
		}

		r.mu.RLock()
		_, inCaptures := r.captures[expr]
		_, inVars := r.vars[expr]
		r.mu.RUnlock()
		if !inCaptures && !inVars {
			seen[expr] = true
			missing = append(missing, expr)
		}
	}

	return missing
}

// ResolveMap resolves every value of a string map, returning a fresh map.
func (r *Resolver) ResolveMap(values map[string]string) map[string]string {
	result := make(map[string]string, len(values))
	for k, v := range values {
		result[k] = r.Resolve(v)
	}
	return result
}

// ResolveAny walks strings, maps and slices, resolving every string leaf.
// Structured request bodies pass through here before JSON encoding.
func (r *Resolver) ResolveAny(v any) any {
	switch val := v.(type) {
	case string:
		return r.Resolve(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = r.ResolveAny(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = r.ResolveAny(item)
		}
		return out
	default:
		return v
	}
}
