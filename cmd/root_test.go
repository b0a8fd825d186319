package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{
		"classify", "rescore", "override", "history", "status", "leads", "lead",
		"sweep", "worker", "cache", "funding", "stats", "migrate",
	}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "lead-engine", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestClassifyCommand_Flags(t *testing.T) {
	for _, name := range []string{"csv", "text", "company", "website", "industry", "source", "source-url", "posted-at"} {
		require.NotNil(t, classifyCmd.Flags().Lookup(name), "classify should have --%s", name)
	}
	assert.Equal(t, "manual", classifyCmd.Flags().Lookup("source").DefValue)
}

func TestOverrideCommand_Flags(t *testing.T) {
	flag := overrideCmd.Flags().Lookup("score")
	require.NotNil(t, flag)
	require.NotNil(t, overrideCmd.Flags().Lookup("reason"))
	require.NotNil(t, overrideCmd.Flags().Lookup("actor"))
}

func TestSweepCommand_Flags(t *testing.T) {
	flag := sweepCmd.Flags().Lookup("dry-run")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
	require.NotNil(t, sweepCmd.Flags().Lookup("loop"))
	require.NotNil(t, sweepCmd.Flags().Lookup("enqueue"))
}

func TestLeadsCommand_Flags(t *testing.T) {
	flag := leadsCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "50", flag.DefValue)
}

func TestSubcommandGroups(t *testing.T) {
	names := func(cmds []string) map[string]bool {
		m := make(map[string]bool)
		for _, c := range cmds {
			m[c] = true
		}
		return m
	}

	var cacheSubs []string
	for _, c := range cacheCmd.Commands() {
		cacheSubs = append(cacheSubs, c.Name())
	}
	assert.Equal(t, map[string]bool{"stats": true, "clear": true}, names(cacheSubs))

	var fundingSubs []string
	for _, c := range fundingCmd.Commands() {
		fundingSubs = append(fundingSubs, c.Name())
	}
	assert.Equal(t, map[string]bool{"import": true}, names(fundingSubs))
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	flag := rootCmd.PersistentFlags().Lookup("log-level")
	require.NotNil(t, flag)
	assert.Empty(t, flag.DefValue)
}
