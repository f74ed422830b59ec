package task

import (
	"testing"

	"github.com/hoidn/sexpflow/context"
	"github.com/hoidn/sexpflow/handler"
	"github.com/hoidn/sexpflow/sexpr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T) (*Executor, *Registry) {
	t.Helper()
	reg := NewRegistry()
	exec := NewExecutor(reg, handler.Stub{}, context.NoopSubsystem{})
	return exec, reg
}

func TestExecuteAtomicBindsPositionalArguments(t *testing.T) {
	exec, reg := newTestExecutor(t)
	require.NoError(t, reg.Register(&Template{
		Name:         "greet",
		Type:         "atomic",
		Subtype:      "standard",
		Params:       map[string]ParamSpec{"name": {Required: true}},
		ParamOrder:   []string{"name"},
		Instructions: "Hello, {{name}}!",
	}))

	result, err := exec.ExecuteAtomic(Request{
		Name:    "greet",
		PosArgs: []sexpr.Value{sexpr.VStr("world")},
	})
	require.NoError(t, err)
	assert.Equal(t, sexpr.StatusComplete, result.Status)
	assert.Equal(t, "Hello, world!", result.Content)
	assert.Equal(t, "greet", result.Notes["template_used"])
	assert.Equal(t, 0, result.Notes["file_count"])
}

func TestExecuteAtomicTooManyPositionalArgsFails(t *testing.T) {
	exec, reg := newTestExecutor(t)
	require.NoError(t, reg.Register(&Template{
		Name: "one_param", Type: "atomic", Subtype: "standard",
		Params: map[string]ParamSpec{"a": {}}, ParamOrder: []string{"a"},
	}))

	_, err := exec.ExecuteAtomic(Request{
		Name:    "one_param",
		PosArgs: []sexpr.Value{sexpr.VInt(1), sexpr.VInt(2)},
	})
	require.Error(t, err)
}

func TestExecuteAtomicMissingRequiredParamFails(t *testing.T) {
	exec, reg := newTestExecutor(t)
	require.NoError(t, reg.Register(&Template{
		Name: "needs_x", Type: "atomic", Subtype: "standard",
		Params: map[string]ParamSpec{"x": {Required: true}}, ParamOrder: []string{"x"},
	}))

	_, err := exec.ExecuteAtomic(Request{Name: "needs_x"})
	require.Error(t, err)
}

func TestExecuteAtomicDuplicateNamedAndPositionalFails(t *testing.T) {
	exec, reg := newTestExecutor(t)
	require.NoError(t, reg.Register(&Template{
		Name: "dup", Type: "atomic", Subtype: "standard",
		Params: map[string]ParamSpec{"a": {}}, ParamOrder: []string{"a"},
	}))

	_, err := exec.ExecuteAtomic(Request{
		Name:      "dup",
		PosArgs:   []sexpr.Value{sexpr.VInt(1)},
		NamedArgs: map[string]sexpr.Value{"a": sexpr.VInt(2)},
	})
	require.Error(t, err)
}

func TestExecuteAtomicAppliesDefaultValue(t *testing.T) {
	exec, reg := newTestExecutor(t)
	require.NoError(t, reg.Register(&Template{
		Name: "with_default", Type: "atomic", Subtype: "standard",
		Params:       map[string]ParamSpec{"mood": {HasDefault: true, Default: "curious"}},
		ParamOrder:   []string{"mood"},
		Instructions: "Feeling {{mood}}",
	}))

	result, err := exec.ExecuteAtomic(Request{Name: "with_default"})
	require.NoError(t, err)
	assert.Equal(t, "Feeling curious", result.Content)
}

func TestExecuteAtomicRejectsForbiddenContextCombination(t *testing.T) {
	exec, reg := newTestExecutor(t)
	require.NoError(t, reg.Register(&Template{
		Name: "ctx_conflict", Type: "atomic", Subtype: "standard",
		Params: map[string]ParamSpec{}, ParamOrder: []string{},
	}))

	_, err := exec.ExecuteAtomic(Request{
		Name: "ctx_conflict",
		ContextSettings: &ContextSettings{
			FreshContext:   "enabled",
			InheritContext: "full",
		},
	})
	require.Error(t, err)
}

func TestExecuteAtomicTemplateNotFound(t *testing.T) {
	exec, _ := newTestExecutor(t)
	result, err := exec.ExecuteAtomic(Request{Name: "nope"})
	require.Error(t, err)
	assert.Equal(t, sexpr.StatusFailed, result.Status)
}

func TestExecuteAtomicJSONOutputFormatParsesContent(t *testing.T) {
	exec, reg := newTestExecutor(t)
	require.NoError(t, reg.Register(&Template{
		Name: "json_task", Type: "atomic", Subtype: "standard",
		Params: map[string]ParamSpec{}, ParamOrder: []string{},
		Instructions: `{"ok": true}`,
		OutputFormat: &OutputFormat{Type: "json"},
	}))

	result, err := exec.ExecuteAtomic(Request{Name: "json_task"})
	require.NoError(t, err)
	assert.Equal(t, sexpr.StatusComplete, result.Status)
	parsed, ok := result.Notes["parsedContent"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, parsed["ok"])
}

func TestExecuteAtomicJSONOutputFormatKeepsCompleteOnParseFailure(t *testing.T) {
	exec, reg := newTestExecutor(t)
	require.NoError(t, reg.Register(&Template{
		Name: "bad_json_task", Type: "atomic", Subtype: "standard",
		Params: map[string]ParamSpec{}, ParamOrder: []string{},
		Instructions: "not json",
		OutputFormat: &OutputFormat{Type: "json"},
	}))

	result, err := exec.ExecuteAtomic(Request{Name: "bad_json_task"})
	require.NoError(t, err)
	assert.Equal(t, sexpr.StatusComplete, result.Status)
	assert.NotEmpty(t, result.Notes["parseError"])
}
