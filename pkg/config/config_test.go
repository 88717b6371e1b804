package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadParsesYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quill.yaml")
	content := "snapshot_path: /tmp/db.json\npretty_snapshot: false\nauto_load: true\nauto_save: true\nprompt: \"db> \"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/db.json", cfg.SnapshotPath)
	assert.False(t, cfg.PrettySnapshot)
	assert.True(t, cfg.AutoLoad)
	assert.True(t, cfg.AutoSave)
	assert.Equal(t, "db> ", cfg.Prompt)
}

func TestLoadBlankPromptFallsBackToDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quill.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auto_load: true\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "quill> ", cfg.Prompt)
	assert.True(t, cfg.AutoLoad)
}

func TestLoadMalformedYAMLReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quill.yaml")
	require.NoError(t, os.WriteFile(path, []byte("prompt: [not a string\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
