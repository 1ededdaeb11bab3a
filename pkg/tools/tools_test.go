package tools_test

import (
	"os"
	"path/filepath"
	"testing"

	"speechgen/pkg/tools"

	"github.com/stretchr/testify/require"
)

func TestRemoveIfExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.wav")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	require.NoError(t, tools.RemoveIfExists(path))
	require.False(t, tools.FileExists(path))

	// second removal is not an error
	require.NoError(t, tools.RemoveIfExists(path))
	require.NoError(t, tools.RemoveIfExists(""))
}

func TestFileExistsRejectsDirectories(t *testing.T) {
	t.Parallel()

	require.False(t, tools.FileExists(t.TempDir()))
}
