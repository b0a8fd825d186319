package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-engine/internal/config"
)

func TestLeadEnv_Close_Nil(t *testing.T) {
	env := &leadEnv{}
	assert.NotPanics(t, func() {
		env.Close()
	})
}

func TestInitStore_SQLite(t *testing.T) {
	cfg = &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "env.db"),
		},
	}

	st, err := initStore(context.Background())
	require.NoError(t, err)

	env := &leadEnv{Store: st}
	assert.NotPanics(t, func() {
		env.Close()
	})
}

func TestInitStore_PostgresRequiresURL(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "postgres"}}

	st, err := initStore(context.Background())
	assert.Nil(t, st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestInitClassifier_RequiresModelKey(t *testing.T) {
	cfg = &config.Config{
		Store: config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "env.db")},
		Model: config.ModelConfig{Provider: "anthropic"},
	}

	env, err := initClassifier(context.Background())
	assert.Nil(t, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")
}
