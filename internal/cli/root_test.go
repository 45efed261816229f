package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveHome(t *testing.T) {
	t.Run("flag wins", func(t *testing.T) {
		homeFlag = "/explicit/home"
		defer func() { homeFlag = "" }()
		t.Setenv("MEMORY_HOME", "/from/env")

		home, err := resolveHome()
		require.NoError(t, err)
		assert.Equal(t, "/explicit/home", home)
	})

	t.Run("env second", func(t *testing.T) {
		homeFlag = ""
		t.Setenv("MEMORY_HOME", "/from/env")

		home, err := resolveHome()
		require.NoError(t, err)
		assert.Equal(t, "/from/env", home)
	})

	t.Run("default last", func(t *testing.T) {
		homeFlag = ""
		t.Setenv("MEMORY_HOME", "")

		home, err := resolveHome()
		require.NoError(t, err)

		userHome, err := os.UserHomeDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(userHome, ".memory"), home)
	})
}

func TestSplitCSV(t *testing.T) {
	assert.Nil(t, splitCSV(""))
	assert.Equal(t, []string{"a", "b"}, splitCSV("a,b"))
	assert.Equal(t, []string{"a", "b"}, splitCSV(" a , b , "))
}

func TestInitCommand(t *testing.T) {
	home := filepath.Join(t.TempDir(), "memhome")
	homeFlag = home
	defer func() { homeFlag = "" }()

	rootCmd.SetArgs([]string{"init"})
	require.NoError(t, rootCmd.Execute())

	info, err := os.Stat(filepath.Join(home, "vault"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestConfigInitCommand(t *testing.T) {
	home := filepath.Join(t.TempDir(), "memhome")
	homeFlag = home
	defer func() { homeFlag = "" }()

	rootCmd.SetArgs([]string{"config", "init"})
	require.NoError(t, rootCmd.Execute())

	content, err := os.ReadFile(filepath.Join(home, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "provider: ollama")
}
