package engine

import (
	"context"
	"fmt"
	"sort"

	openai "github.com/sashabaranov/go-openai"
)

// Registry maps tool names to their specs and implementations.
type Registry struct {
	specs map[string]ToolSpec
	funcs map[string]ToolFunc
	order []string
}

func NewRegistry() *Registry {
	return &Registry{
		specs: make(map[string]ToolSpec),
		funcs: make(map[string]ToolFunc),
	}
}

// Register adds a tool, replacing any existing registration of the same name.
func (r *Registry) Register(spec ToolSpec, fn ToolFunc) {
	if _, exists := r.specs[spec.Name]; !exists {
		r.order = append(r.order, spec.Name)
	}
	r.specs[spec.Name] = spec
	r.funcs[spec.Name] = fn
}

// Unregister removes a tool. Unknown names are a no-op.
func (r *Registry) Unregister(name string) {
	if _, exists := r.specs[name]; !exists {
		return
	}
	delete(r.specs, name)
	delete(r.funcs, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Resolve looks up a tool spec by name.
func (r *Registry) Resolve(name string) (ToolSpec, error) {
	spec, ok := r.specs[name]
	if !ok {
		return ToolSpec{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return spec, nil
}

func (r *Registry) Has(name string) bool {
	_, ok := r.specs[name]
	return ok
}

// Specs returns all registered specs sorted by name.
func (r *Registry) Specs() []ToolSpec {
	specs := make([]ToolSpec, 0, len(r.specs))
	for _, s := range r.specs {
		specs = append(specs, s)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Tools renders the registry as wire-format tool declarations, in
// registration order.
func (r *Registry) Tools() []openai.Tool {
	tools := make([]openai.Tool, 0, len(r.order))
	for _, name := range r.order {
		spec := r.specs[name]
		params := spec.Parameters
		if len(params) == 0 {
			params = []byte(`{"type":"object","properties":{}}`)
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  params,
			},
		})
	}
	return tools
}

// Execute dispatches to the registered implementation. Implementation
// failures, including panics, become failed results so one broken tool
// never aborts the session.
func (r *Registry) Execute(ctx context.Context, tc openai.ToolCall) (res ToolResult, err error) {
	name := tc.Function.Name
	res = ToolResult{ID: tc.ID, Name: name}

	fn, ok := r.funcs[name]
	if !ok {
		return res, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	defer func() {
		if p := recover(); p != nil {
			res.OK = false
			res.Output = fmt.Sprintf("Error: tool panicked: %v", p)
			err = nil
		}
	}()

	output, ferr := fn(ctx, tc.Function.Arguments)
	if ferr != nil {
		res.Output = fmt.Sprintf("Error: %v", ferr)
		return res, nil
	}
	res.OK = true
	res.Output = output
	return res, nil
}
