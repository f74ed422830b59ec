package tools

import (
	"testing"
	"time"

	"github.com/hoidn/sexpflow/sexpr"
)

func TestRegistryRegisterAndInvoke(t *testing.T) {
	r := NewRegistry()
	spec := Spec{
		Name: "echo",
		Parameters: []Parameter{
			{Name: "text", Type: "string", Required: true},
		},
	}
	err := r.Register(spec, func(args map[string]any) (sexpr.TaskResult, error) {
		return sexpr.TaskResult{Status: sexpr.StatusComplete, Content: args["text"]}, nil
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	result, err := r.Invoke("echo", map[string]any{"text": "hi"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if result.Status != sexpr.StatusComplete || result.Content != "hi" {
		t.Errorf("Invoke() = %+v, want status=COMPLETE content=hi", result)
	}
}

func TestRegistryInvokeMissingRequiredParam(t *testing.T) {
	r := NewRegistry()
	spec := Spec{
		Name: "echo",
		Parameters: []Parameter{
			{Name: "text", Type: "string", Required: true},
		},
	}
	_ = r.Register(spec, func(args map[string]any) (sexpr.TaskResult, error) {
		return sexpr.TaskResult{Status: sexpr.StatusComplete}, nil
	})

	result, err := r.Invoke("echo", map[string]any{})
	if err == nil {
		t.Fatal("expected validation error for missing required param")
	}
	if result.Status != sexpr.StatusFailed {
		t.Errorf("Invoke() status = %v, want FAILED", result.Status)
	}
}

func TestRegistryInvokeUnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Invoke("nope", nil)
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}
}

func TestShellToolRejectsDenylistedCommand(t *testing.T) {
	_, exec := NewShellTool(ShellConfig{Timeout: time.Second})
	result, err := exec(map[string]any{"command": "rm -rf /tmp/x"})
	if err == nil {
		t.Fatal("expected error for denylisted command")
	}
	if result.Status != sexpr.StatusFailed {
		t.Errorf("status = %v, want FAILED", result.Status)
	}
}

func TestShellToolRejectsMetacharacters(t *testing.T) {
	_, exec := NewShellTool(ShellConfig{Timeout: time.Second})
	result, err := exec(map[string]any{"command": "echo hi > /tmp/out"})
	if err == nil {
		t.Fatal("expected error for metacharacter in command")
	}
	if result.Status != sexpr.StatusFailed {
		t.Errorf("status = %v, want FAILED", result.Status)
	}
}

func TestShellToolRunsAllowedCommand(t *testing.T) {
	_, exec := NewShellTool(ShellConfig{Timeout: 5 * time.Second})
	result, err := exec(map[string]any{"command": "echo hello"})
	if err != nil {
		t.Fatalf("exec() error = %v", err)
	}
	if result.Status != sexpr.StatusComplete {
		t.Errorf("status = %v, want COMPLETE", result.Status)
	}
}
