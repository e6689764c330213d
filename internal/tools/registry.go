package tools

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
)

// Registry errors. Dispatch renders them as plain strings into the
// tool-result channel so the model can recover conversationally; they
// never surface to the conversation caller as errors.
var (
	ErrDuplicateTool   = errors.New("tool already registered")
	ErrUnknownTool     = errors.New("unknown tool")
	ErrInvalidArgument = errors.New("invalid tool arguments")
)

// Handler executes a tool. Handlers return a human-readable string and
// never fail past their own boundary: domain errors come back as text.
type Handler func(ctx context.Context, args map[string]any) string

// entry pairs a spec with its handler, resolved once at registration.
type entry struct {
	spec    *Spec
	handler Handler
}

// Call is a concrete request to run a tool, as decoded from the model.
type Call struct {
	ID   string
	Name string
	Args map[string]any
}

// Registry holds the registered tools. It is populated at startup and
// read-only afterwards.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a tool. Names are unique; a collision is a programming
// error surfaced at startup.
func (r *Registry) Register(spec *Spec, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[spec.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, spec.Name)
	}
	r.entries[spec.Name] = entry{spec: spec, handler: h}
	r.order = append(r.order, spec.Name)
	return nil
}

// Specs returns the specs for the named tools, in the order given.
// Unknown names are skipped.
func (r *Registry) Specs(names []string) []*Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]*Spec, 0, len(names))
	for _, n := range names {
		if e, ok := r.entries[n]; ok {
			specs = append(specs, e.spec)
		}
	}
	return specs
}

// Names returns every registered tool name in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// NamesExcept returns registered names minus the given set. Used to
// partition the registry across modes.
func (r *Registry) NamesExcept(exclude []string) []string {
	skip := make(map[string]bool, len(exclude))
	for _, n := range exclude {
		skip[n] = true
	}
	var out []string
	for _, n := range r.Names() {
		if !skip[n] {
			out = append(out, n)
		}
	}
	return out
}

// Dispatch validates the call against the tool's schema and runs the
// handler synchronously. Lookup and validation failures are returned as
// the result string, not raised: the model is the consumer that must
// react to them.
func (r *Registry) Dispatch(ctx context.Context, call Call) string {
	r.mu.RLock()
	e, ok := r.entries[call.Name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Sprintf("Erreur: %v: %s", ErrUnknownTool, call.Name)
	}

	args, err := coerceArgs(e.spec, call.Args)
	if err != nil {
		return fmt.Sprintf("Erreur: %v", err)
	}
	return e.handler(ctx, args)
}

// coerceArgs checks required parameters and coerces values to the
// declared types. JSON numbers arrive as float64; integer parameters
// accept those and numeric strings.
func coerceArgs(spec *Spec, args map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	if spec.Parameters == nil {
		return out, nil
	}

	for _, req := range spec.Parameters.Required {
		if v, ok := out[req]; !ok || v == nil {
			return nil, fmt.Errorf("%w: paramètre requis manquant: %s", ErrInvalidArgument, req)
		}
	}

	for name, prop := range spec.Parameters.Properties {
		v, ok := out[name]
		if !ok || v == nil {
			continue
		}
		coerced, err := coerceValue(v, prop)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArgument, name, err)
		}
		out[name] = coerced
	}
	return out, nil
}

func coerceValue(v any, prop *ParamProp) (any, error) {
	switch prop.Type {
	case "string":
		s, err := toString(v)
		if err != nil {
			return nil, err
		}
		if len(prop.Enum) > 0 && !inEnum(s, prop.Enum) {
			return nil, fmt.Errorf("valeur %q hors énumération", s)
		}
		return s, nil
	case "integer":
		switch n := v.(type) {
		case int:
			return n, nil
		case int64:
			return int(n), nil
		case float64:
			return int(n), nil
		case string:
			i, err := strconv.Atoi(n)
			if err != nil {
				return nil, fmt.Errorf("%q n'est pas un entier", n)
			}
			return i, nil
		}
		return nil, fmt.Errorf("type %T inattendu pour un entier", v)
	case "number":
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case string:
			f, err := strconv.ParseFloat(n, 64)
			if err != nil {
				return nil, fmt.Errorf("%q n'est pas un nombre", n)
			}
			return f, nil
		}
		return nil, fmt.Errorf("type %T inattendu pour un nombre", v)
	case "boolean":
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			parsed, err := strconv.ParseBool(b)
			if err != nil {
				return nil, fmt.Errorf("%q n'est pas un booléen", b)
			}
			return parsed, nil
		}
		return nil, fmt.Errorf("type %T inattendu pour un booléen", v)
	}
	return v, nil
}

func toString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(s), nil
	case bool:
		return strconv.FormatBool(s), nil
	}
	return "", fmt.Errorf("type %T non convertible en chaîne", v)
}

func inEnum(s string, enum []string) bool {
	for _, e := range enum {
		if s == e {
			return true
		}
	}
	return false
}

// StringArg reads an optional string argument, returning fallback when
// absent or empty.
func StringArg(args map[string]any, key, fallback string) string {
	if s, ok := args[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

// IntArg reads an optional integer argument.
func IntArg(args map[string]any, key string, fallback int) int {
	switch n := args[key].(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return fallback
}
