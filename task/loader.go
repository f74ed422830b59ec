package task

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// templateFile is the on-disk YAML shape for an atomic task template,
// grounded on original_source/src/task_system/templates/*.yaml's field
// names (spec.md §3's "Atomic task template", §B's "directory of
// atomic-task template files to load at startup").
type templateFile struct {
	Name         string              `yaml:"name"`
	Subtype      string              `yaml:"subtype"`
	Description  string              `yaml:"description"`
	Model        string              `yaml:"model"`
	Instructions string              `yaml:"instructions"`
	Params       map[string]paramYAML `yaml:"params"`
	ParamOrder   []string            `yaml:"param_order"`
	OutputFormat string              `yaml:"output_format"`
	FilePaths    []string            `yaml:"file_paths"`
}

type paramYAML struct {
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
	Default     any    `yaml:"default"`
}

func (f templateFile) toTemplate() (*Template, error) {
	if f.Name == "" {
		return nil, fmt.Errorf("template file missing required 'name' field")
	}
	if f.Subtype == "" {
		return nil, fmt.Errorf("template %q missing required 'subtype' field", f.Name)
	}

	params := make(map[string]ParamSpec, len(f.Params))
	for k, p := range f.Params {
		params[k] = ParamSpec{
			Description: p.Description,
			Type:        p.Type,
			Required:    p.Required,
			Default:     p.Default,
			HasDefault:  p.Default != nil,
		}
	}

	t := &Template{
		Name:         f.Name,
		Type:         "atomic",
		Subtype:      f.Subtype,
		Description:  f.Description,
		Params:       params,
		ParamOrder:   f.ParamOrder,
		Instructions: f.Instructions,
		Model:        f.Model,
		FilePaths:    f.FilePaths,
	}
	if f.OutputFormat != "" {
		t.OutputFormat = &OutputFormat{Type: f.OutputFormat}
	}
	return t, nil
}

// LoadTemplateFile decodes a single YAML template file.
func LoadTemplateFile(path string) (*Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("task: reading template %s: %w", path, err)
	}
	var f templateFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("task: parsing template %s: %w", path, err)
	}
	return f.toTemplate()
}

// LoadTemplateDir decodes every *.yaml/*.yml file in dir and registers
// each into reg, returning the names registered. A malformed file is
// skipped with its error appended to the returned error (not fatal to the
// rest of the directory), matching the DirWatcher's reload behavior.
func LoadTemplateDir(dir string, reg *Registry) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("task: reading template directory %s: %w", dir, err)
	}

	var names []string
	var errs []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		t, err := LoadTemplateFile(path)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		if err := reg.Register(t); err != nil {
			errs = append(errs, fmt.Sprintf("registering %s: %s", path, err))
			continue
		}
		names = append(names, t.Name)
	}

	if len(errs) > 0 {
		return names, fmt.Errorf("task: %d template file(s) failed to load: %s", len(errs), strings.Join(errs, "; "))
	}
	return names, nil
}
