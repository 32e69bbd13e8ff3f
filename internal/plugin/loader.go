// Package plugin discovers user routines from a Go source file interpreted
// at runtime. The file location is an explicit configuration value; nothing
// here reads process-global state.
package plugin

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/san-kum/qsched/internal/routine"
)

// routinesFuncName is the symbol a routine file must export.
const routinesFuncName = "Routines"

// Load interprets the Go file at path and returns the routines it declares.
//
// The file must define
//
//	func Routines() []map[string]any
//
// where each entry carries "name" (string), "kind" ("observable" or
// "transform"), optional "cachable" and "state_dependent" (bool), and "fn":
// a function with the signature
//
//	func(state any, ext []any, args []any, kwargs map[string]any) (any, error)
func Load(path string) ([]routine.Routine, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plugin: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return nil, fmt.Errorf("plugin: %s is empty", path)
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("plugin: stdlib symbols: %w", err)
	}
	if _, err := i.EvalPath(path); err != nil {
		return nil, fmt.Errorf("plugin: interpret %s: %w", path, err)
	}

	fnValue, err := i.Eval(routinesFuncName)
	if err != nil {
		return nil, fmt.Errorf("plugin: %s must define %s() []map[string]any: %w", path, routinesFuncName, err)
	}

	defs, err := invokeRoutinesFunc(fnValue)
	if err != nil {
		return nil, fmt.Errorf("plugin: %s: %w", path, err)
	}

	routines := make([]routine.Routine, 0, len(defs))
	for idx, def := range defs {
		rt, err := parseDefinition(def)
		if err != nil {
			return nil, fmt.Errorf("plugin: %s routine[%d]: %w", path, idx, err)
		}
		routines = append(routines, rt)
	}
	return routines, nil
}

// Register loads the file at path and installs every routine into reg.
func Register(path string, reg *routine.Registry) error {
	routines, err := Load(path)
	if err != nil {
		return err
	}
	for _, rt := range routines {
		if err := reg.Register(rt); err != nil {
			return err
		}
	}
	return nil
}

func invokeRoutinesFunc(value reflect.Value) ([]map[string]any, error) {
	if !value.IsValid() {
		return nil, fmt.Errorf("missing %s function", routinesFuncName)
	}
	if value.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", routinesFuncName)
	}
	results := value.Call(nil)
	if len(results) != 1 {
		return nil, fmt.Errorf("%s must return []map[string]any", routinesFuncName)
	}
	defs, ok := results[0].Interface().([]map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s must return []map[string]any, got %T", routinesFuncName, results[0].Interface())
	}
	return defs, nil
}

func parseDefinition(def map[string]any) (routine.Routine, error) {
	name, _ := def["name"].(string)
	if name == "" {
		return routine.Routine{}, fmt.Errorf("missing name")
	}

	kindStr, _ := def["kind"].(string)
	kind, err := routine.ParseKind(kindStr)
	if err != nil {
		return routine.Routine{}, err
	}

	fn, ok := def["fn"].(func(any, []any, []any, map[string]any) (any, error))
	if !ok {
		return routine.Routine{}, fmt.Errorf("%s: fn must be func(state any, ext []any, args []any, kwargs map[string]any) (any, error), got %T", name, def["fn"])
	}

	cachable, _ := def["cachable"].(bool)
	stateDependent, _ := def["state_dependent"].(bool)

	return routine.Routine{
		Name:           name,
		Kind:           kind,
		Fn:             fn,
		Cachable:       cachable,
		StateDependent: stateDependent,
	}, nil
}
