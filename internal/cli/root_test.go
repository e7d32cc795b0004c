package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "fragdb", cmd.Use)
	assert.Contains(t, cmd.Long, "fragment log")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"init", "doc", "append", "fragments", "since", "export", "import", "clock"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestDocSubcommands(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"add", "get", "list", "meta"} {
		subCmd, _, err := cmd.Find([]string{"doc", name})
		require.NoError(t, err)
		assert.Equal(t, name, subCmd.Name())
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	for _, name := range []string{"config", "data-dir", "store", "node", "metrics"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "missing --%s", name)
	}
}

func TestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()

	tests := []struct {
		path []string
		flag string
	}{
		{[]string{"doc", "add"}, "meta"},
		{[]string{"fragments"}, "limit"},
		{[]string{"since"}, "exclude"},
		{[]string{"export"}, "doc"},
		{[]string{"export"}, "output"},
		{[]string{"clock"}, "new-node"},
	}

	for _, tt := range tests {
		subCmd, _, err := cmd.Find(tt.path)
		require.NoError(t, err)
		assert.NotNil(t, subCmd.Flags().Lookup(tt.flag), "%v should have --%s", tt.path, tt.flag)
	}

	exportCmd, _, err := cmd.Find([]string{"export"})
	require.NoError(t, err)
	assert.Equal(t, "o", exportCmd.Flags().Lookup("output").Shorthand)
}

func TestIsValidFormat(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.False(t, isValidFormat("yaml"))
	assert.False(t, isValidFormat(""))
}
