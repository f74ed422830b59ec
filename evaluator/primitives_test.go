package evaluator

import (
	"testing"

	"github.com/hoidn/sexpflow/context"
	"github.com/hoidn/sexpflow/sexpr"
	"github.com/hoidn/sexpflow/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrimitiveListBuildsList(t *testing.T) {
	ev, env := newTestEvaluator(t)
	v := evalSrc(t, ev, env, "(list 1 2 3)")
	require.Equal(t, sexpr.ValList, v.Kind)
	assert.Equal(t, []sexpr.Value{sexpr.VInt(1), sexpr.VInt(2), sexpr.VInt(3)}, v.List)
}

func TestPrimitiveEqDistinguishesNilFromEmptyList(t *testing.T) {
	ev, env := newTestEvaluator(t)
	assert.Equal(t, sexpr.VBool(false), evalSrc(t, ev, env, "(eq? nil (quote ()))"))
	assert.Equal(t, sexpr.VBool(true), evalSrc(t, ev, env, "(eq? nil nil)"))
	assert.Equal(t, sexpr.VBool(true), evalSrc(t, ev, env, "(eq? 1 1.0)"))
}

func TestPrimitiveNullAndNilTreatEmptyListAndNilAsTrue(t *testing.T) {
	ev, env := newTestEvaluator(t)
	assert.Equal(t, sexpr.VBool(true), evalSrc(t, ev, env, "(null? nil)"))
	assert.Equal(t, sexpr.VBool(true), evalSrc(t, ev, env, "(null? (quote ()))"))
	assert.Equal(t, sexpr.VBool(true), evalSrc(t, ev, env, "(nil? nil)"))
	assert.Equal(t, sexpr.VBool(false), evalSrc(t, ev, env, "(null? 0)"))
}

func TestPrimitiveArithmetic(t *testing.T) {
	ev, env := newTestEvaluator(t)
	assert.Equal(t, sexpr.VInt(6), evalSrc(t, ev, env, "(+ 1 2 3)"))
	assert.Equal(t, sexpr.VInt(-5), evalSrc(t, ev, env, "(- 5)"))
	assert.Equal(t, sexpr.VInt(1), evalSrc(t, ev, env, "(- 4 2 1)"))
	assert.Equal(t, sexpr.VFlt(1.5), evalSrc(t, ev, env, "(+ 1 0.5)"))
}

func TestPrimitiveComparisons(t *testing.T) {
	ev, env := newTestEvaluator(t)
	assert.Equal(t, sexpr.VBool(true), evalSrc(t, ev, env, "(< 1 2 3)"))
	assert.Equal(t, sexpr.VBool(false), evalSrc(t, ev, env, "(< 1 3 2)"))
	assert.Equal(t, sexpr.VBool(true), evalSrc(t, ev, env, "(= 2 2 2)"))
	assert.Equal(t, sexpr.VBool(false), evalSrc(t, ev, env, "(= 2 2 3)"))
}

func TestPrimitiveStringOps(t *testing.T) {
	ev, env := newTestEvaluator(t)
	assert.Equal(t, sexpr.VBool(true), evalSrc(t, ev, env, `(string=? "a" "a")`))
	assert.Equal(t, sexpr.VBool(false), evalSrc(t, ev, env, `(string=? "a" "b")`))
	assert.Equal(t, sexpr.VStr("ab12"), evalSrc(t, ev, env, `(string-append "ab" 1 2)`))
}

func TestPrimitiveGetFieldReadsStatusAndContent(t *testing.T) {
	ev, env := newTestEvaluator(t)
	ev.ToolReg.Register(tools.Spec{Name: "probe"}, func(args map[string]any) (sexpr.TaskResult, error) {
		return sexpr.TaskResult{Status: sexpr.StatusComplete, Content: "hello", Notes: map[string]any{"custom": "note"}}, nil
	})
	v := evalSrc(t, ev, env, `(get-field (probe) "status")`)
	assert.Equal(t, sexpr.VStr("COMPLETE"), v)

	v = evalSrc(t, ev, env, `(get-field (probe) "content")`)
	assert.Equal(t, sexpr.VStr("hello"), v)

	v = evalSrc(t, ev, env, `(get-field (probe) "custom")`)
	assert.Equal(t, sexpr.VStr("note"), v)
}

func TestPrimitiveReadFilesDelegatesToFileTool(t *testing.T) {
	ev, env := newTestEvaluator(t)
	ev.ToolReg.Register(tools.Spec{
		Name:       "read_files",
		Parameters: []tools.Parameter{{Name: "paths", Type: "array"}},
	}, func(args map[string]any) (sexpr.TaskResult, error) {
		paths, _ := args["paths"].([]any)
		return sexpr.TaskResult{Status: sexpr.StatusComplete, Content: "ok", Notes: map[string]any{"file_count": len(paths)}}, nil
	})

	v := evalSrc(t, ev, env, `(read-files (quote ("a.txt" "b.txt")))`)
	require.Equal(t, sexpr.ValTaskResult, v.Kind)
	count, ok := v.TaskResult.Note("file_count")
	require.True(t, ok)
	assert.Equal(t, 2, count)
}

func TestPrimitiveReadFilesRejectsNonListArgument(t *testing.T) {
	ev, env := newTestEvaluator(t)
	_, err := ev.Eval(mustParseNode(t, `(read-files "a.txt")`), env)
	require.Error(t, err)
}

func TestPrimitiveLogMessageDelegatesToLogTool(t *testing.T) {
	ev, env := newTestEvaluator(t)
	var gotLevel, gotMessage string
	ev.ToolReg.Register(tools.Spec{
		Name: "log_message",
		Parameters: []tools.Parameter{
			{Name: "message", Type: "string", Required: true},
			{Name: "level", Type: "string"},
		},
	}, func(args map[string]any) (sexpr.TaskResult, error) {
		gotLevel, _ = args["level"].(string)
		gotMessage, _ = args["message"].(string)
		return sexpr.TaskResult{Status: sexpr.StatusComplete}, nil
	})

	evalSrc(t, ev, env, `(log-message "warn" "disk low")`)
	assert.Equal(t, "warn", gotLevel)
	assert.Equal(t, "disk low", gotMessage)
}

func TestGetContextReturnsPathsFromSubsystemMatches(t *testing.T) {
	ev, env := newTestEvaluator(t)
	ev.Context = stubSubsystem{result: context.AssociativeMatchResult{
		Context: "summary",
		Matches: []context.Match{{Path: "a.go", Relevance: "high"}, {Path: "b.go", Relevance: "low"}},
	}}

	v := evalSrc(t, ev, env, `(get-context (query "find the parser") (matching_strategy "content"))`)
	require.Equal(t, sexpr.ValList, v.Kind)
	assert.Equal(t, []sexpr.Value{sexpr.VStr("a.go"), sexpr.VStr("b.go")}, v.List)
}

func TestGetContextRejectsInvalidMatchingStrategy(t *testing.T) {
	ev, env := newTestEvaluator(t)
	_, err := ev.Eval(mustParseNode(t, `(get-context (query "x") (matching_strategy "bogus"))`), env)
	require.Error(t, err)
}

func TestGetContextRejectsUnknownOption(t *testing.T) {
	ev, env := newTestEvaluator(t)
	_, err := ev.Eval(mustParseNode(t, `(get-context (not-a-real-option "x"))`), env)
	require.Error(t, err)
}

func TestGetContextPassesInputsAndPreviousOutputs(t *testing.T) {
	ev, env := newTestEvaluator(t)
	var captured context.GenerationInput
	ev.Context = stubSubsystem{capture: &captured}

	evalSrc(t, ev, env, `
		(get-context
		  (query "x")
		  (inputs (quote (("a" 1) ("b" "two"))))
		  (previousOutputs (quote ("first" "second"))))`)
	assert.Equal(t, any(int64(1)), captured.Inputs["a"])
	assert.Equal(t, any("two"), captured.Inputs["b"])
	assert.Equal(t, []string{"first", "second"}, captured.PreviousOutputs)
}

func TestGetContextPropagatesSubsystemErrorAsTaskFailure(t *testing.T) {
	ev, env := newTestEvaluator(t)
	ev.Context = stubSubsystem{err: assert.AnError}
	_, err := ev.Eval(mustParseNode(t, `(get-context (query "x"))`), env)
	require.Error(t, err)
}

type stubSubsystem struct {
	result  context.AssociativeMatchResult
	err     error
	capture *context.GenerationInput
}

func (s stubSubsystem) GetContext(in context.GenerationInput) (context.AssociativeMatchResult, error) {
	if s.capture != nil {
		*s.capture = in
	}
	if s.err != nil {
		return context.AssociativeMatchResult{}, s.err
	}
	return s.result, nil
}
