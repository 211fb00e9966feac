package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveURL_PrefersConfigured(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env")

	got, err := ResolveURL(" postgres://configured ")
	require.NoError(t, err)
	assert.Equal(t, "postgres://configured", got)

	got, err = ResolveURL("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://env", got)
}

func TestReadEnvValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nOTHER=1\nDATABASE_URL=\"postgres://dotenv\"\n"), 0o600))

	got, err := readEnvValue(path, "DATABASE_URL")
	require.NoError(t, err)
	assert.Equal(t, "postgres://dotenv", got)

	_, err = readEnvValue(path, "MISSING")
	assert.Error(t, err)
}

func TestFindEnvFile_WalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("DATABASE_URL=x\n"), 0o600))

	got, err := findEnvFile(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ".env"), got)
}
