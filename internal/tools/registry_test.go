package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func echoSpec(name string) *Spec {
	return &Spec{
		Name:        name,
		Description: "test tool",
		Parameters: &ParamSchema{
			Type: "object",
			Properties: map[string]*ParamProp{
				"action": {Type: "string", Enum: []string{"allumer", "eteindre"}},
				"cible":  {Type: "string"},
				"niveau": {Type: "integer"},
			},
			Required: []string{"cible"},
		},
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	h := func(context.Context, map[string]any) string { return "ok" }
	if err := r.Register(echoSpec("a"), h); err != nil {
		t.Fatal(err)
	}
	err := r.Register(echoSpec("a"), h)
	if !errors.Is(err, ErrDuplicateTool) {
		t.Fatalf("expected ErrDuplicateTool, got %v", err)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	r := NewRegistry()
	got := r.Dispatch(context.Background(), Call{ID: "c1", Name: "nexiste_pas"})
	if !strings.HasPrefix(got, "Erreur:") || !strings.Contains(got, "nexiste_pas") {
		t.Fatalf("unknown tool must come back as an error string, got %q", got)
	}
}

func TestDispatchMissingRequired(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoSpec("lumiere"), func(context.Context, map[string]any) string {
		t.Fatal("handler must not run with invalid arguments")
		return ""
	}); err != nil {
		t.Fatal(err)
	}

	got := r.Dispatch(context.Background(), Call{ID: "c1", Name: "lumiere", Args: map[string]any{"action": "allumer"}})
	if !strings.Contains(got, "cible") {
		t.Fatalf("expected the missing parameter to be named, got %q", got)
	}
}

func TestDispatchCoercesArguments(t *testing.T) {
	r := NewRegistry()
	var seen map[string]any
	err := r.Register(echoSpec("lumiere"), func(_ context.Context, args map[string]any) string {
		seen = args
		return "ok"
	})
	if err != nil {
		t.Fatal(err)
	}

	// JSON numbers arrive as float64, and models sometimes quote ints.
	got := r.Dispatch(context.Background(), Call{ID: "c1", Name: "lumiere", Args: map[string]any{
		"cible":  "Salon",
		"action": "allumer",
		"niveau": float64(80),
	}})
	if got != "ok" {
		t.Fatalf("dispatch failed: %q", got)
	}
	if n, ok := seen["niveau"].(int); !ok || n != 80 {
		t.Errorf("float64 not coerced to int: %#v", seen["niveau"])
	}

	got = r.Dispatch(context.Background(), Call{ID: "c2", Name: "lumiere", Args: map[string]any{
		"cible":  "Salon",
		"niveau": "50",
	}})
	if got != "ok" {
		t.Fatalf("dispatch failed: %q", got)
	}
	if n, ok := seen["niveau"].(int); !ok || n != 50 {
		t.Errorf("numeric string not coerced to int: %#v", seen["niveau"])
	}
}

func TestDispatchEnumViolation(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoSpec("lumiere"), func(context.Context, map[string]any) string { return "ok" }); err != nil {
		t.Fatal(err)
	}
	got := r.Dispatch(context.Background(), Call{ID: "c1", Name: "lumiere", Args: map[string]any{
		"cible":  "Salon",
		"action": "exploser",
	}})
	if !strings.Contains(got, "Erreur") {
		t.Fatalf("enum violation accepted: %q", got)
	}
}

func TestSpecsPreservesRequestOrder(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"a", "b", "c"} {
		if err := r.Register(echoSpec(name), func(context.Context, map[string]any) string { return "" }); err != nil {
			t.Fatal(err)
		}
	}
	specs := r.Specs([]string{"c", "a", "inconnu"})
	if len(specs) != 2 || specs[0].Name != "c" || specs[1].Name != "a" {
		t.Fatalf("unexpected specs: %+v", specs)
	}
}

func TestNamesExcept(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"a", "b", "c"} {
		if err := r.Register(echoSpec(name), func(context.Context, map[string]any) string { return "" }); err != nil {
			t.Fatal(err)
		}
	}
	got := r.NamesExcept([]string{"b"})
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("unexpected names: %v", got)
	}
}

func TestSchemaMap(t *testing.T) {
	schema := echoSpec("x").SchemaMap()
	if schema["type"] != "object" {
		t.Errorf("unexpected schema type %v", schema["type"])
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("properties missing: %v", schema)
	}
	action, ok := props["action"].(map[string]any)
	if !ok {
		t.Fatalf("action property missing")
	}
	if _, ok := action["enum"]; !ok {
		t.Error("enum dropped from schema")
	}
	req, ok := schema["required"].([]string)
	if !ok || len(req) != 1 || req[0] != "cible" {
		t.Errorf("required list wrong: %v", schema["required"])
	}
}
