package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"migrate", "seed", "ingest", "dedup", "analyze", "report", "feed"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "catalog-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestSeedCommand_Flags(t *testing.T) {
	flag := seedCmd.Flags().Lookup("file")
	require.NotNil(t, flag, "seed command should have --file flag")
}

func TestDedupCommand_Flags(t *testing.T) {
	flag := dedupCmd.Flags().Lookup("dry-run")
	require.NotNil(t, flag, "dedup command should have --dry-run flag")
	assert.Equal(t, "false", flag.DefValue)
}

func TestAnalyzeCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"category", "limit"} {
		flag := analyzeCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "analyze should have --%s flag", flagName)
	}
	assert.Equal(t, "20", analyzeCmd.Flags().Lookup("limit").DefValue)
}

func TestReportCommand_Flags(t *testing.T) {
	flag := reportCmd.Flags().Lookup("out")
	require.NotNil(t, flag, "report command should have --out flag")
	assert.Equal(t, "catalog.xlsx", flag.DefValue)
}

func TestFeedCommand_Flags(t *testing.T) {
	flag := feedCmd.Flags().Lookup("since")
	require.NotNil(t, flag, "feed command should have --since flag")
}
