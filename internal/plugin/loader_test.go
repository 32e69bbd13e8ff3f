package plugin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/qsched/internal/routine"
)

const goodFile = `package main

func Routines() []map[string]any {
	return []map[string]any{
		{
			"name":     "double",
			"kind":     "observable",
			"cachable": true,
			"fn": func(state any, ext []any, args []any, kwargs map[string]any) (any, error) {
				x := args[0].(float64)
				return 2 * x, nil
			},
		},
		{
			"name": "set_state",
			"kind": "transform",
			"fn": func(state any, ext []any, args []any, kwargs map[string]any) (any, error) {
				return kwargs["value"], nil
			},
		},
	}
}
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "functions.go")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoadRoutines(t *testing.T) {
	path := writeTemp(t, goodFile)

	routines, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(routines) != 2 {
		t.Fatalf("expected 2 routines, got %d", len(routines))
	}

	first := routines[0]
	if first.Name != "double" || first.Kind != routine.Observable || !first.Cachable {
		t.Errorf("first routine misparsed: %+v", first)
	}
	out, err := first.Fn(nil, nil, []any{21.0}, nil)
	if err != nil {
		t.Fatalf("interpreted fn failed: %v", err)
	}
	if out != 42.0 {
		t.Errorf("expected 42.0, got %v", out)
	}

	if routines[1].Kind != routine.StateTransform {
		t.Errorf("second routine kind misparsed: %v", routines[1].Kind)
	}
}

func TestRegisterIntoRegistry(t *testing.T) {
	path := writeTemp(t, goodFile)
	reg := routine.NewRegistry()
	if err := Register(path, reg); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	out, err := reg.Invoke(context.Background(), 0, "set_state", nil, nil, nil, map[string]any{"value": "psi"})
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if out != "psi" {
		t.Errorf("expected psi, got %v", out)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty file", "   \n"},
		{"no Routines func", "package main\n\nfunc Other() {}\n"},
		{"wrong return type", "package main\n\nfunc Routines() int { return 1 }\n"},
		{"missing name", `package main

func Routines() []map[string]any {
	return []map[string]any{{"kind": "observable"}}
}
`},
		{"bad kind", `package main

func Routines() []map[string]any {
	return []map[string]any{{"name": "x", "kind": "mystery"}}
}
`},
		{"bad fn signature", `package main

func Routines() []map[string]any {
	return []map[string]any{{"name": "x", "kind": "observable", "fn": func() {}}}
}
`},
	}
	for _, tt := range tests {
		path := writeTemp(t, tt.content)
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.go")); err == nil {
		t.Error("expected error for missing file")
	}
}
