package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AfriArt-Gallery/internal/config"
)

func TestBuildAppWithMemoryBackends(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.Storage.Driver)

	a, err := buildApp(context.Background(), cfg, true)
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.processor, "workers settle payments off the request path")
	assert.NotNil(t, a.tasks)
	assert.NotNil(t, a.codes, "in-memory codes need periodic purging")
	assert.Nil(t, a.db)
	assert.Nil(t, a.redis)

	oneShot, err := buildApp(context.Background(), cfg, false)
	require.NoError(t, err)
	defer oneShot.Close()
	assert.Nil(t, oneShot.processor)
}

func TestSeedCommandLoadsSampleCatalog(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"seed", "--file", "../../deploy/seed/catalog.yaml"})

	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "seeded 1 admins, 2 artists, 3 artworks, 1 exhibitions (0 already present)")
}

func TestCreateAdminRequiresFlags(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"create-admin", "--name", "Root"})
	assert.Error(t, root.ExecuteContext(context.Background()))
}

func TestMigrateRequiresMySQL(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"migrate"})
	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.driver=mysql")
}
