package engine

import (
	"encoding/json"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/project-kessel/edgeid/internal/request"
)

// ProviderFilter decides whether a candidate strategy may resolve a request.
type ProviderFilter interface {
	Allow(providerName string, attrs *request.RequestAttributes) (bool, error)
}

// ProviderFilterLibrary creates a CEL library for filtering strategies.
//
// This provides compile-time declarations for:
//   - provider_name - the provider name of the candidate strategy (string)
//   - request - the request attributes as a map (method, path, headers, additional, etc.)
//
// The CEL expression should evaluate to a boolean indicating whether the
// strategy may run.
//
// Example expressions:
//   - provider_name != "remote" || request.path.startsWith("/app/")
//   - provider_name in ["bearer", "application"] || request.additional.host == "internal.example.com"
//   - !(provider_name == "facebook" && request.path.startsWith("/admin"))
func ProviderFilterLibrary() cel.EnvOption {
	return cel.Lib(&providerFilterLib{})
}

type providerFilterLib struct{}

func (lib *providerFilterLib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		cel.Variable("provider_name", cel.StringType),
		cel.Variable("request", cel.DynType),
	}
}

func (lib *providerFilterLib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}

// CELProviderFilter uses a CEL expression to filter strategies.
type CELProviderFilter struct {
	program cel.Program
	script  string
}

// NewCELProviderFilter compiles script. The script must evaluate to a bool.
func NewCELProviderFilter(script string) (*CELProviderFilter, error) {
	if script == "" {
		return nil, fmt.Errorf("CEL filter script cannot be empty")
	}

	env, err := cel.NewEnv(ProviderFilterLibrary())
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(script)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL filter script: %w", issues.Err())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &CELProviderFilter{
		program: program,
		script:  script,
	}, nil
}

// Allow implements ProviderFilter. Non-boolean results deny.
func (f *CELProviderFilter) Allow(providerName string, attrs *request.RequestAttributes) (bool, error) {
	requestMap, err := requestToMap(attrs)
	if err != nil {
		return false, err
	}

	result, _, err := f.program.Eval(map[string]any{
		"provider_name": providerName,
		"request":       requestMap,
	})
	if err != nil {
		return false, err
	}

	if result.Type() == types.BoolType {
		return result.Value().(bool), nil
	}

	return false, nil
}

// Script returns the CEL script used by this filter
func (f *CELProviderFilter) Script() string {
	return f.script
}

func requestToMap(attrs *request.RequestAttributes) (map[string]any, error) {
	if attrs == nil {
		return map[string]any{}, nil
	}

	data, err := json.Marshal(attrs)
	if err != nil {
		return nil, err
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	return m, nil
}
