package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- question: How do I reset my password?
  answer: Use the "Forgot password" link.
- question: Where is my order?
  answer: Check the tracking page.
`), 0o600))

	entries, err := readSeed(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Where is my order?", entries[1].Question)
	assert.Equal(t, `Use the "Forgot password" link.`, entries[0].Answer)

	require.NoError(t, os.WriteFile(path, []byte("question: [unclosed"), 0o600))
	_, err = readSeed(path)
	assert.Error(t, err)
}
