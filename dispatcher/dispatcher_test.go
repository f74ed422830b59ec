package dispatcher

import (
	"testing"

	"github.com/hoidn/sexpflow/context"
	"github.com/hoidn/sexpflow/evaluator"
	"github.com/hoidn/sexpflow/handler"
	"github.com/hoidn/sexpflow/metrics"
	"github.com/hoidn/sexpflow/sexpr"
	"github.com/hoidn/sexpflow/task"
	"github.com/hoidn/sexpflow/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *task.Registry, *tools.Registry) {
	t.Helper()
	reg := task.NewRegistry()
	exec := task.NewExecutor(reg, handler.Stub{}, context.NoopSubsystem{})
	toolReg := tools.NewRegistry()
	ev := evaluator.New(exec, toolReg, context.NoopSubsystem{})
	env := ev.NewGlobalEnv()
	return New(exec, toolReg, ev, env, metrics.New("sexpflow_dispatcher_test")), reg, toolReg
}

func registerGreetTemplate(t *testing.T, reg *task.Registry) {
	t.Helper()
	require.NoError(t, reg.Register(&task.Template{
		Name:        "greet",
		Type:        "atomic",
		Subtype:     "greeting",
		Description: "Greets someone by name.",
		Params: map[string]task.ParamSpec{
			"who": {Type: "string", Required: true, Description: "who to greet"},
		},
		ParamOrder:   []string{"who"},
		Instructions: "Say hi to {{who}}",
	}))
}

// S7: dispatching an unknown identifier returns TASK_FAILURE /
// input_validation_failure (spec.md §8).
func TestDispatchUnknownIdentifierReturnsInputValidationFailure(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	result := d.Dispatch(Request{Identifier: "nope:task"})
	require.Equal(t, sexpr.StatusFailed, result.Status)
	errInfo, ok := result.Note("error")
	require.True(t, ok)
	m := errInfo.(map[string]any)
	assert.Equal(t, "input_validation_failure", m["reason"])
}

// Testable property #6: when an identifier is both a registered template
// and a registered direct tool, dispatch routes to the template.
func TestDispatchPrecedenceTemplateOverridesTool(t *testing.T) {
	d, reg, toolReg := newTestDispatcher(t)
	registerGreetTemplate(t, reg)
	toolInvoked := false
	require.NoError(t, toolReg.Register(tools.Spec{Name: "greet"}, func(args map[string]any) (sexpr.TaskResult, error) {
		toolInvoked = true
		return sexpr.TaskResult{Status: sexpr.StatusComplete}, nil
	}))

	result := d.Dispatch(Request{Identifier: "greet", Params: map[string]any{"who": "world"}})
	require.Equal(t, sexpr.StatusComplete, result.Status)
	assert.False(t, toolInvoked, "tool executor must not run when a template of the same name is registered")
	assert.Equal(t, "greet", result.Notes["template_used"])
}

func TestDispatchRoutesToToolWhenNoTemplateRegistered(t *testing.T) {
	d, _, toolReg := newTestDispatcher(t)
	require.NoError(t, toolReg.Register(tools.Spec{
		Name:       "echo",
		Parameters: []tools.Parameter{{Name: "text", Type: "string"}},
	}, func(args map[string]any) (sexpr.TaskResult, error) {
		return sexpr.TaskResult{Status: sexpr.StatusComplete, Content: args["text"]}, nil
	}))

	result := d.Dispatch(Request{Identifier: "echo", Params: map[string]any{"text": "hi"}})
	require.Equal(t, sexpr.StatusComplete, result.Status)
	assert.Equal(t, "hi", result.Content)
}

func TestDispatchHelpFlagNeverExecutesTemplate(t *testing.T) {
	d, reg, _ := newTestDispatcher(t)
	registerGreetTemplate(t, reg)
	result := d.Dispatch(Request{Identifier: "greet", Flags: map[string]bool{"help": true}})
	require.Equal(t, sexpr.StatusComplete, result.Status)
	content := result.Content.(string)
	assert.Contains(t, content, "greet")
	assert.Contains(t, content, "who")
	assert.NotContains(t, content, "template_used")
}

func TestDispatchHelpFlagForToolUsesSchema(t *testing.T) {
	d, _, toolReg := newTestDispatcher(t)
	require.NoError(t, toolReg.Register(tools.Spec{
		Name:        "echo",
		Description: "Echoes text back.",
		Parameters:  []tools.Parameter{{Name: "text", Type: "string", Required: true}},
	}, func(args map[string]any) (sexpr.TaskResult, error) {
		t.Fatal("help must never execute the tool")
		return sexpr.TaskResult{}, nil
	}))
	result := d.Dispatch(Request{Identifier: "echo", Flags: map[string]bool{"help": true}})
	require.Equal(t, sexpr.StatusComplete, result.Status)
	assert.Contains(t, result.Content.(string), "Echoes text back")
}

func TestDispatchParsesJSONEncodedFileContext(t *testing.T) {
	d, reg, _ := newTestDispatcher(t)
	registerGreetTemplate(t, reg)
	result := d.Dispatch(Request{
		Identifier: "greet",
		Params: map[string]any{
			"who":          "world",
			"file_context": `["a.go", "b.go"]`,
		},
	})
	require.Equal(t, sexpr.StatusComplete, result.Status)
	assert.Equal(t, "explicit_request", result.Notes["context_source"])
	assert.Equal(t, 2, result.Notes["file_count"])
}

func TestDispatchParsesDecodedListFileContext(t *testing.T) {
	d, reg, _ := newTestDispatcher(t)
	registerGreetTemplate(t, reg)
	result := d.Dispatch(Request{
		Identifier: "greet",
		Params: map[string]any{
			"who":          "world",
			"file_context": []any{"a.go"},
		},
	})
	require.Equal(t, sexpr.StatusComplete, result.Status)
	assert.Equal(t, 1, result.Notes["file_count"])
}

func TestDispatchRejectsMalformedFileContext(t *testing.T) {
	d, reg, _ := newTestDispatcher(t)
	registerGreetTemplate(t, reg)
	result := d.Dispatch(Request{
		Identifier: "greet",
		Params:     map[string]any{"who": "world", "file_context": `[1, 2]`},
	})
	require.Equal(t, sexpr.StatusFailed, result.Status)
	errInfo := result.Notes["error"].(map[string]any)
	assert.Equal(t, "input_validation_failure", errInfo["reason"])
}

func TestDispatchUseHistoryRoundTripsTranscript(t *testing.T) {
	d, reg, _ := newTestDispatcher(t)
	registerGreetTemplate(t, reg)
	result := d.Dispatch(Request{
		Identifier: "greet",
		Params:     map[string]any{"who": "world"},
		Flags:      map[string]bool{"use-history": true},
		History:    "",
	})
	require.Equal(t, sexpr.StatusComplete, result.Status)
	encoded, ok := result.Notes["history"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, encoded)

	second := d.Dispatch(Request{
		Identifier: "greet",
		Params:     map[string]any{"who": "again"},
		Flags:      map[string]bool{"use-history": true},
		History:    encoded,
	})
	secondEncoded := second.Notes["history"].(string)
	assert.Greater(t, len(secondEncoded), len(encoded))
}

func TestDispatchIsSexpStringEvaluatesDirectly(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	result := d.Dispatch(Request{Identifier: "(+ 1 2)", Flags: map[string]bool{"is_sexp_string": true}})
	require.Equal(t, sexpr.StatusComplete, result.Status)
	assert.Equal(t, int64(3), result.Content)
}

func TestDispatchIsSexpStringSyntaxErrorReturnsFailure(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	result := d.Dispatch(Request{Identifier: "(+ 1 2", Flags: map[string]bool{"is_sexp_string": true}})
	require.Equal(t, sexpr.StatusFailed, result.Status)
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	d, _, toolReg := newTestDispatcher(t)
	require.NoError(t, toolReg.Register(tools.Spec{Name: "boom"}, func(args map[string]any) (sexpr.TaskResult, error) {
		panic("kaboom")
	}))
	result := d.Dispatch(Request{Identifier: "boom"})
	require.Equal(t, sexpr.StatusFailed, result.Status)
	errInfo := result.Notes["error"].(map[string]any)
	assert.Equal(t, "unexpected_error", errInfo["reason"])
}
