package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSchema = `
resources: {
	playlists: {
		attributes: {
			name: {type: "string"}
		}
	}
}
`

const invalidSchema = `
resources: {
	playlists: {
		attributes: {
			name: {type: "uuid"}
		}
	}
}
`

func writeSchemaDir(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "resources.cue"), []byte(src), 0o644))
	return dir
}

func TestValidate_ValidSchema(t *testing.T) {
	dir := writeSchemaDir(t, validSchema)

	out, _, err := executeCommand(t, "validate", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 resource type(s) valid")
}

func TestValidate_InvalidSchema(t *testing.T) {
	dir := writeSchemaDir(t, invalidSchema)

	out, _, err := executeCommand(t, "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Validation failed")
}

func TestValidate_MissingDirectory(t *testing.T) {
	_, _, err := executeCommand(t, "validate", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestValidate_JSONOutput(t *testing.T) {
	dir := writeSchemaDir(t, validSchema)

	out, _, err := executeCommand(t, "--format", "json", "validate", dir)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestValidate_JSONErrorOutput(t *testing.T) {
	dir := writeSchemaDir(t, invalidSchema)

	out, _, err := executeCommand(t, "--format", "json", "validate", dir)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_SCHEMA", resp.Error.Code)
}

func TestOutputFormatter_VerboseLogGoesToErrWriter(t *testing.T) {
	var out, errOut bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &out, ErrWriter: &errOut, Verbose: true}

	f.VerboseLog("checked %d types", 3)
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "checked 3 types")
}
