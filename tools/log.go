package tools

import (
	"log/slog"

	"github.com/hoidn/sexpflow/sexpr"
)

// NewLogTool builds the "log_message" tool backing the `log-message`
// primitive (spec.md §4.9): writes a structured log line through the shared
// logger and returns nil as its evaluator-visible result.
func NewLogTool(logger *slog.Logger) (Spec, Executor) {
	spec := Spec{
		Name:        "log_message",
		Description: "Write a message to the structured log",
		Parameters: []Parameter{
			{Name: "message", Type: "string", Description: "Message text", Required: true},
			{Name: "level", Type: "string", Description: "info, warn, error, or debug"},
		},
	}

	executor := func(args map[string]any) (sexpr.TaskResult, error) {
		message, _ := args["message"].(string)
		level, _ := args["level"].(string)

		switch level {
		case "warn":
			logger.Warn(message)
		case "error":
			logger.Error(message)
		case "debug":
			logger.Debug(message)
		default:
			logger.Info(message)
		}

		return sexpr.TaskResult{Status: sexpr.StatusComplete, Content: nil}, nil
	}

	return spec, executor
}
