package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"textnotes/store"
)

// runCLI executes the root command with args and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "textnotes", cmd.Use)

	for _, name := range []string{"serve", "list", "add", "update", "delete", "export"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	for _, flag := range []string{"config", "data-file", "backend"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestCLI_Commands(t *testing.T) {
	dataFile := filepath.Join(t.TempDir(), "data.json")

	out, err := runCLI(t, "--data-file", dataFile, "list")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)

	out, err = runCLI(t, "--data-file", dataFile, "add", "hello")
	require.NoError(t, err)
	var hello store.TextItem
	require.NoError(t, json.Unmarshal([]byte(out), &hello))
	assert.Equal(t, uint64(1), hello.ID)

	_, err = runCLI(t, "--data-file", dataFile, "add", "world")
	require.NoError(t, err)

	out, err = runCLI(t, "--data-file", dataFile, "update", "1", "HELLO")
	require.NoError(t, err)
	var updated store.TextItem
	require.NoError(t, json.Unmarshal([]byte(out), &updated))
	assert.Equal(t, store.TextItem{ID: 1, Content: "HELLO", CreatedAt: hello.CreatedAt}, updated)

	_, err = runCLI(t, "--data-file", dataFile, "update", "9", "nope")
	require.Error(t, err)
	assert.Equal(t, "text not found", err.Error())

	_, err = runCLI(t, "--data-file", dataFile, "delete", "2")
	require.NoError(t, err)
	_, err = runCLI(t, "--data-file", dataFile, "delete", "2")
	require.NoError(t, err)

	_, err = runCLI(t, "--data-file", dataFile, "delete", "two")
	require.ErrorIs(t, err, ErrInvalidInput)

	out, err = runCLI(t, "--data-file", dataFile, "list")
	require.NoError(t, err)
	var texts []store.TextItem
	require.NoError(t, json.Unmarshal([]byte(out), &texts))
	assert.Equal(t, []store.TextItem{updated}, texts)

	out, err = runCLI(t, "--data-file", dataFile, "export", "--format", "yaml")
	require.NoError(t, err)
	var exported []store.TextItem
	require.NoError(t, yaml.Unmarshal([]byte(out), &exported))
	assert.Equal(t, texts, exported)
	assert.Contains(t, out, "created_at:")

	_, err = runCLI(t, "--data-file", dataFile, "export", "--format", "xml")
	require.Error(t, err)
}

func TestCLI_InvalidBackend(t *testing.T) {
	_, err := runCLI(t, "--backend", "sqlite", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
