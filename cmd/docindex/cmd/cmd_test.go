package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docindex/internal/catalog"
	"github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/output"
)

// isolate keeps user config and project config out of the test.
func isolate(t *testing.T) (root string) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(t.TempDir())
	return filepath.Join(t.TempDir(), "indexes")
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeDocs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"battery.txt": "Lithium battery cells lose capacity with every charge cycle. Store the battery at half charge.",
		"garden.md":   "# Garden\n\nCompost piles need nitrogen, carbon and regular turning to stay warm.",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestVersionCmd(t *testing.T) {
	out, err := runCLI(t, "version", "--short")
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	out, err = runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "docindex")
}

func TestIndexSearchLifecycle(t *testing.T) {
	// Given: a folder of documents and an isolated storage root
	root := isolate(t)
	docs := writeDocs(t)
	base := []string{"--offline", "--root", root}

	// When: indexing the folder
	out, err := runCLI(t, append(base, "index", "kb", docs, "--type", "flat", "--plain")...)

	// Then: the plain renderer reports completion
	require.NoError(t, err)
	assert.Contains(t, out, "Complete: kb: 2 files")

	// When: searching as JSON
	out, err = runCLI(t, append(base, "search", "kb", "lithium", "battery", "--json")...)
	require.NoError(t, err)

	// Then: the battery document ranks first
	var results []output.ResultJSON
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.NotEmpty(t, results)
	assert.Equal(t, "battery.txt", filepath.Base(results[0].File))
	assert.Equal(t, 1, results[0].Rank)

	// And: the catalog lists the index
	out, err = runCLI(t, append(base, "list", "--json")...)
	require.NoError(t, err)
	var list []catalog.Descriptor
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "kb", list[0].Name)
	assert.Equal(t, 2, list[0].DocumentCount)

	out, err = runCLI(t, append(base, "validate", "kb")...)
	require.NoError(t, err)
	assert.Contains(t, out, `Index "kb" is valid`)

	out, err = runCLI(t, append(base, "status", "kb")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Index Status: kb")

	// When: renaming and deleting
	_, err = runCLI(t, append(base, "rename", "kb", "notes")...)
	require.NoError(t, err)
	out, err = runCLI(t, append(base, "delete", "notes")...)
	require.NoError(t, err)
	assert.Contains(t, out, `Deleted index "notes"`)

	// Then: the catalog is empty
	out, err = runCLI(t, append(base, "list")...)
	require.NoError(t, err)
	assert.Contains(t, out, "No indexes found.")
}

func TestSearchCmd_ContextOutput(t *testing.T) {
	root := isolate(t)
	docs := writeDocs(t)
	base := []string{"--offline", "--root", root}
	_, err := runCLI(t, append(base, "index", "kb", docs, "--type", "flat", "--plain")...)
	require.NoError(t, err)

	out, err := runCLI(t, append(base, "search", "kb", "compost", "-k", "1", "--context")...)

	require.NoError(t, err)
	assert.Contains(t, out, "[1] garden.md / page 0")
}

func TestSearchCmd_MissingIndex(t *testing.T) {
	root := isolate(t)

	_, err := runCLI(t, "--offline", "--root", root, "search", "nope", "query")

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrIndexNotAvailable)
}

func TestIndexCmd_NoDocuments(t *testing.T) {
	root := isolate(t)

	_, err := runCLI(t, "--offline", "--root", root, "index", "kb", t.TempDir(), "--plain")

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))
}

func TestBuildFlags_Overlap(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want *int
	}{
		{"unset keeps config", nil, nil},
		{"zero disables overlap", []string{"--overlap", "0"}, intPtr(0)},
		{"explicit value", []string{"--overlap", "64"}, intPtr(64)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f buildFlags
			cmd := &cobra.Command{Use: "index"}
			f.register(cmd)
			require.NoError(t, cmd.Flags().Parse(tt.args))

			assert.Equal(t, tt.want, f.options().ChunkOverlap)
		})
	}
}

func intPtr(v int) *int { return &v }

func TestDeleteCmd_Args(t *testing.T) {
	root := isolate(t)

	_, err := runCLI(t, "--offline", "--root", root, "delete")
	assert.Error(t, err)

	_, err = runCLI(t, "--offline", "--root", root, "delete", "kb", "--all")
	assert.Error(t, err)

	_, err = runCLI(t, "--offline", "--root", root, "delete", "missing")
	assert.ErrorIs(t, err, errors.ErrIndexNotAvailable)

	out, err := runCLI(t, "--offline", "--root", root, "delete", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 0 indexes")
}

func TestConfigInit(t *testing.T) {
	isolate(t)

	out, err := runCLI(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote .docindex.yaml")
	assert.FileExists(t, ".docindex.yaml")

	_, err = runCLI(t, "config", "init")
	assert.Error(t, err)

	_, err = runCLI(t, "config", "init", "--force")
	assert.NoError(t, err)
}

func TestConfigShow_AppliesFlags(t *testing.T) {
	root := isolate(t)

	out, err := runCLI(t, "--offline", "--root", root, "config", "show")

	require.NoError(t, err)
	assert.Contains(t, out, root)
	assert.Contains(t, out, "provider: static")
}

func TestConfigShow_BadConfigFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search: [unclosed"), 0o644))

	_, err := runCLI(t, "--config", path, "config", "show")

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetCode(err))
}

func TestConfigShow_Save(t *testing.T) {
	root := isolate(t)
	path := filepath.Join(t.TempDir(), "effective.yaml")

	out, err := runCLI(t, "--root", root, "config", "show", "--save", path)

	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), root)
}
