package tools

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/hoidn/sexpflow/sexpr"
	"github.com/hoidn/sexpflow/taskerr"
)

// FileConfig bounds the file tool's reads to a root directory, the file-tool
// analogue of ShellConfig's working-directory sandboxing.
type FileConfig struct {
	RootDir      string
	MaxBytesEach int
}

// NewFileTool builds the "read_files" tool backing the `read-files`
// primitive (spec.md §4.9/§6): given a list of paths, reads each relative to
// RootDir and returns their contents joined as Content, with a per-path
// map of contents (or errors) under notes.files.
func NewFileTool(cfg FileConfig) (Spec, Executor) {
	if cfg.RootDir == "" {
		cfg.RootDir = "."
	}
	if cfg.MaxBytesEach == 0 {
		cfg.MaxBytesEach = defaultShellOutputCap
	}

	spec := Spec{
		Name:        "read_files",
		Description: "Read the contents of one or more files under the configured root directory",
		Parameters: []Parameter{
			{Name: "paths", Type: "array", Description: "File paths to read", Required: true},
		},
	}

	executor := func(args map[string]any) (sexpr.TaskResult, error) {
		rawPaths, ok := args["paths"].([]any)
		if !ok {
			err := taskerr.ToolExecution("read_files", "paths parameter must be an array of strings")
			return toolFailure(err), err
		}

		files := make(map[string]any, len(rawPaths))
		var contents strings.Builder
		for _, rp := range rawPaths {
			p, ok := rp.(string)
			if !ok {
				continue
			}
			full := filepath.Join(cfg.RootDir, p)
			rel, relErr := filepath.Rel(cfg.RootDir, full)
			if relErr != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				files[p] = map[string]any{"error": "path escapes root directory"}
				continue
			}
			data, err := os.ReadFile(full)
			if err != nil {
				files[p] = map[string]any{"error": err.Error()}
				continue
			}
			if len(data) > cfg.MaxBytesEach {
				data = data[:cfg.MaxBytesEach]
			}
			files[p] = string(data)
			contents.WriteString(string(data))
			contents.WriteString("\n")
		}

		return sexpr.TaskResult{
			Status:  sexpr.StatusComplete,
			Content: contents.String(),
			Notes:   map[string]any{"files": files, "file_count": len(files)},
		}, nil
	}

	return spec, executor
}
