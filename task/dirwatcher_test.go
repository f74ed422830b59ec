package task

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirWatcherLoadsExistingTemplatesOnStart(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "summarize.yaml"), []byte(sampleTemplateYAML), 0o644))

	reg := NewRegistry()
	w := NewDirWatcher(dir, reg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, w.Start(ctx))
	defer w.Close()

	_, ok := reg.Find("summarize")
	assert.True(t, ok)
}

func TestDirWatcherReloadsChangedTemplateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "summarize.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleTemplateYAML), 0o644))

	reg := NewRegistry()
	w := NewDirWatcher(dir, reg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Close()

	withNewDescription := `
name: summarize
subtype: summary
description: Summarize text, updated
instructions: "Summarize: {{text}}"
output_format: text
params:
  text:
    type: string
    required: true
    description: text to summarize
param_order: [text]
`
	require.NoError(t, os.WriteFile(path, []byte(withNewDescription), 0o644))

	require.Eventually(t, func() bool {
		tmpl, ok := reg.Find("summarize")
		return ok && tmpl.Description == "Summarize text, updated"
	}, 2*time.Second, 20*time.Millisecond)
}
