package evaluator

import (
	"testing"

	"github.com/hoidn/sexpflow/context"
	"github.com/hoidn/sexpflow/handler"
	"github.com/hoidn/sexpflow/parser"
	"github.com/hoidn/sexpflow/sexpr"
	"github.com/hoidn/sexpflow/task"
	"github.com/hoidn/sexpflow/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEvaluator(t *testing.T) (*Evaluator, *sexpr.Environment) {
	t.Helper()
	reg := task.NewRegistry()
	exec := task.NewExecutor(reg, handler.Stub{}, context.NoopSubsystem{})
	toolReg := tools.NewRegistry()
	ev := New(exec, toolReg, context.NoopSubsystem{})
	return ev, ev.NewGlobalEnv()
}

func evalSrc(t *testing.T, ev *Evaluator, env *sexpr.Environment, src string) sexpr.Value {
	t.Helper()
	node, err := parser.Parse(src)
	require.NoError(t, err)
	v, err := ev.Eval(node, env)
	require.NoError(t, err)
	return v
}

func mustParseNode(t *testing.T, src string) sexpr.Node {
	t.Helper()
	node, err := parser.Parse(src)
	require.NoError(t, err)
	return node
}

func TestEvalLiteralsSelfEvaluate(t *testing.T) {
	ev, env := newTestEvaluator(t)
	assert.Equal(t, sexpr.VInt(42), evalSrc(t, ev, env, "42"))
	assert.Equal(t, sexpr.VStr("hi"), evalSrc(t, ev, env, `"hi"`))
	assert.Equal(t, sexpr.VBool(true), evalSrc(t, ev, env, "true"))
	assert.Equal(t, sexpr.VNil(), evalSrc(t, ev, env, "nil"))
}

func TestEvalEmptyListSelfEvaluates(t *testing.T) {
	ev, env := newTestEvaluator(t)
	v := evalSrc(t, ev, env, "()")
	assert.True(t, v.EmptyList())
}

func TestEvalSymbolLookupUnbound(t *testing.T) {
	ev, env := newTestEvaluator(t)
	node, err := parser.Parse("undefined-symbol")
	require.NoError(t, err)
	_, err = ev.Eval(node, env)
	require.Error(t, err)
}

func TestEvalLambdaApplication(t *testing.T) {
	ev, env := newTestEvaluator(t)
	v := evalSrc(t, ev, env, "((lambda (x y) (+ x y)) 2 3)")
	assert.Equal(t, sexpr.VInt(5), v)
}

func TestEvalClosureCapturesDefinitionEnvironment(t *testing.T) {
	ev, env := newTestEvaluator(t)
	v := evalSrc(t, ev, env, `
		(let ((make-adder (lambda (n) (lambda (x) (+ x n)))))
		  (let ((add5 (make-adder 5)))
		    (add5 10)))`)
	assert.Equal(t, sexpr.VInt(15), v)
}

func TestEvalUnboundHeadFallsBackToTaskInvocation(t *testing.T) {
	ev, env := newTestEvaluator(t)
	require.NoError(t, ev.Tasks.Registry.Register(&task.Template{
		Name: "greet", Type: "atomic", Subtype: "standard",
		Params: map[string]task.ParamSpec{"name": {Required: true}}, ParamOrder: []string{"name"},
		Instructions: "Hello, {{name}}!",
	}))

	v := evalSrc(t, ev, env, `(greet "world")`)
	require.Equal(t, sexpr.ValTaskResult, v.Kind)
	assert.Equal(t, sexpr.StatusComplete, v.TaskResult.Status)
	assert.Equal(t, "Hello, world!", v.TaskResult.Content)
}

func TestEvalUnboundHeadFallsBackToToolInvocation(t *testing.T) {
	ev, env := newTestEvaluator(t)
	ev.ToolReg.Register(tools.Spec{
		Name: "echo",
		Parameters: []tools.Parameter{{Name: "input", Type: "string"}},
	}, func(args map[string]any) (sexpr.TaskResult, error) {
		return sexpr.TaskResult{Status: sexpr.StatusComplete, Content: args["input"]}, nil
	})

	v := evalSrc(t, ev, env, `(echo "ping")`)
	require.Equal(t, sexpr.ValTaskResult, v.Kind)
	assert.Equal(t, "ping", v.TaskResult.Content)
}

func TestEvalTemplateOverridesToolWhenBothRegistered(t *testing.T) {
	ev, env := newTestEvaluator(t)
	require.NoError(t, ev.Tasks.Registry.Register(&task.Template{
		Name: "dual", Type: "atomic", Subtype: "standard",
		Params: map[string]task.ParamSpec{}, ParamOrder: []string{},
		Instructions: "from template",
	}))
	ev.ToolReg.Register(tools.Spec{Name: "dual"}, func(args map[string]any) (sexpr.TaskResult, error) {
		return sexpr.TaskResult{Status: sexpr.StatusComplete, Content: "from tool"}, nil
	})

	v := evalSrc(t, ev, env, "(dual)")
	assert.Equal(t, "from template", v.TaskResult.Content)
}

func TestIsSpecialFormRecognizesReservedNames(t *testing.T) {
	ev, _ := newTestEvaluator(t)
	for _, name := range []string{"if", "let", "bind", "set!", "progn", "quote", "lambda", "defatom", "loop", "and", "or", "director-evaluator-loop", "iterative-loop"} {
		assert.True(t, ev.IsSpecialForm(name), "expected %q to be registered as a special form", name)
	}
	assert.False(t, ev.IsSpecialForm("not-a-form"))
}
