package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// Persistent flags live in package vars; reset them between runs.
	flagConfig, flagDataDir, flagDebug = "", "", false
	profileCPU, profileMem, profileTrace = "", "", ""

	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCmd_HelpListsSubcommands(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)

	for _, sub := range []string{
		"library", "add", "add-text", "search",
		"generate-embeddings", "doctor", "rebuild-fts", "config", "version",
	} {
		assert.Contains(t, out, sub)
	}
}

func TestRootCmd_VersionFlag(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "scholia version")
}

func TestSearchCmd_RequiresLibraryFlag(t *testing.T) {
	_, err := execute(t, "search", "attention mechanism")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "library")
}
