package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(`
# database
export SQLGATE_TEST_HOST=db.internal
SQLGATE_TEST_PASSWORD="p@ss # not a comment"
SQLGATE_TEST_NAME='corp'
SQLGATE_TEST_PORT=5432 # trailing comment
SQLGATE_TEST_NOTE="a b" # note
SQLGATE_TEST_PRESET=from-file
`), 0o600))

	t.Setenv("SQLGATE_TEST_PRESET", "from-env")
	for _, k := range []string{"SQLGATE_TEST_HOST", "SQLGATE_TEST_PASSWORD", "SQLGATE_TEST_NAME", "SQLGATE_TEST_PORT", "SQLGATE_TEST_NOTE"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	require.NoError(t, LoadDotEnv(path))

	assert.Equal(t, "db.internal", os.Getenv("SQLGATE_TEST_HOST"))
	assert.Equal(t, "p@ss # not a comment", os.Getenv("SQLGATE_TEST_PASSWORD"))
	assert.Equal(t, "corp", os.Getenv("SQLGATE_TEST_NAME"))
	assert.Equal(t, "5432", os.Getenv("SQLGATE_TEST_PORT"))
	assert.Equal(t, "a b", os.Getenv("SQLGATE_TEST_NOTE"), "quotes stripped before a trailing comment")
	assert.Equal(t, "from-env", os.Getenv("SQLGATE_TEST_PRESET"), "existing environment wins")
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")))
}

func TestLoadDotEnvUnreadable(t *testing.T) {
	dir := t.TempDir()
	err := LoadDotEnv(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), dir)
}
