package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractRequestToken(t *testing.T) {
	token, err := ExtractRequestToken("abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)

	token, err = ExtractRequestToken("https://example.com/cb?action=login&status=success&request_token=xyz789")
	require.NoError(t, err)
	assert.Equal(t, "xyz789", token)

	_, err = ExtractRequestToken("")
	assert.Error(t, err)

	_, err = ExtractRequestToken("https://example.com/cb?request_token=")
	assert.Error(t, err)
}

func TestSaveAccessTokenRewritesExistingLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	initial := "KITE_API_KEY=key\nKITE_ACCESS_TOKEN=old_token\nMAX_LOSS=5000\n"
	require.NoError(t, os.WriteFile(path, []byte(initial), 0o600))

	require.NoError(t, SaveAccessToken(path, "new_token"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "KITE_API_KEY=key\nKITE_ACCESS_TOKEN=new_token\nMAX_LOSS=5000\n", string(content))
}

func TestSaveAccessTokenAppendsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("KITE_API_KEY=key"), 0o600))

	require.NoError(t, SaveAccessToken(path, "tok"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "KITE_API_KEY=key\nKITE_ACCESS_TOKEN=tok\n", string(content))
}

func TestSaveAccessTokenCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")

	require.NoError(t, SaveAccessToken(path, "tok"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "KITE_ACCESS_TOKEN=tok\n", string(content))
}
