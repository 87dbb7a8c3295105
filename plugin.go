package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"github.com/traefik/yaegi/stdlib/unrestricted"

	"github.com/model8cli/m8cli/engine"
)

// loadPlugins registers Go-interpreted tools from .go files in dir. A plugin
// exports a `tool.Tool` value with Name, Description, Parameters (JSON
// schema string) and Run fields. Plugins run unrestricted code, so they are
// always confirm-class.
func loadPlugins(dir string, r *engine.Registry, verbose bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".go" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := loadPlugin(path, r); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to load plugin %s: %v\n", path, err)
			continue
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "Loaded plugin: %s\n", path)
		}
	}
	return nil
}

func loadPlugin(path string, r *engine.Registry) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	i := interp.New(interp.Options{})
	i.Use(stdlib.Symbols)
	i.Use(unrestricted.Symbols)

	if _, err := i.Eval(string(src)); err != nil {
		return fmt.Errorf("eval: %w", err)
	}

	toolVal, err := i.Eval("tool.Tool")
	if err != nil {
		return fmt.Errorf("tool.Tool not found: %w", err)
	}

	rv := reflect.ValueOf(toolVal.Interface())

	name, err := stringField(rv, "Name")
	if err != nil {
		return err
	}
	description, err := stringField(rv, "Description")
	if err != nil {
		return err
	}
	parameters, err := stringField(rv, "Parameters")
	if err != nil {
		return err
	}

	runField := rv.FieldByName("Run")
	if !runField.IsValid() || runField.Kind() != reflect.Func {
		return fmt.Errorf("Tool.Run field not found or not a function")
	}
	runFn, err := convertRunFunc(runField)
	if err != nil {
		return err
	}

	r.Register(engine.ToolSpec{
		Name:        name,
		Description: description,
		Parameters:  json.RawMessage(parameters),
		Safety:      engine.Confirm,
	}, runFn)
	return nil
}

func stringField(rv reflect.Value, name string) (string, error) {
	f := rv.FieldByName(name)
	if !f.IsValid() || f.Kind() != reflect.String {
		return "", fmt.Errorf("Tool.%s field not found or not a string", name)
	}
	return f.String(), nil
}

// convertRunFunc adapts the interpreted Run function to a ToolFunc. Both
// func(string) (string, error) and func(string) string shapes are accepted.
func convertRunFunc(fn reflect.Value) (engine.ToolFunc, error) {
	t := fn.Type()
	if t.NumIn() != 1 || t.In(0).Kind() != reflect.String {
		return nil, fmt.Errorf("Tool.Run must take a single string argument")
	}

	switch t.NumOut() {
	case 1:
		if t.Out(0).Kind() != reflect.String {
			return nil, fmt.Errorf("Tool.Run must return a string")
		}
		return func(_ context.Context, args string) (string, error) {
			out := fn.Call([]reflect.Value{reflect.ValueOf(args)})
			return out[0].String(), nil
		}, nil
	case 2:
		if t.Out(0).Kind() != reflect.String || !t.Out(1).Implements(reflect.TypeOf((*error)(nil)).Elem()) {
			return nil, fmt.Errorf("Tool.Run must return (string, error)")
		}
		return func(_ context.Context, args string) (string, error) {
			out := fn.Call([]reflect.Value{reflect.ValueOf(args)})
			if !out[1].IsNil() {
				return "", out[1].Interface().(error)
			}
			return out[0].String(), nil
		}, nil
	}
	return nil, fmt.Errorf("Tool.Run must return (string, error) or string")
}
