package main

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReferences(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.txt")
	require.NoError(t, os.WriteFile(path, []byte("knee surgery is covered"), 0o644))

	refs, err := loadReferences([]string{"https://example.com/terms.pdf", path})
	require.NoError(t, err)
	require.Len(t, refs, 2)

	assert.Equal(t, "https://example.com/terms.pdf", refs[0].URL)
	assert.Equal(t, "policy.txt", refs[1].Filename)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("knee surgery is covered")), refs[1].ContentBase64)
}

func TestLoadReferencesErrors(t *testing.T) {
	_, err := loadReferences(nil)
	assert.Error(t, err)

	_, err = loadReferences([]string{filepath.Join(t.TempDir(), "missing.pdf")})
	assert.Error(t, err)
}

func TestTruncateClause(t *testing.T) {
	assert.Equal(t, "abc", truncateClause("abc", 5))
	assert.Equal(t, "ab...", truncateClause("abcd", 2))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["run"])
	assert.True(t, names["audit"])
}
