package config

import (
	"os"
	"path/filepath"
	"testing"

	"materials-erp/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRouting_MissingFileUsesDefaults(t *testing.T) {
	r, err := LoadRouting(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"purchase_head"}, r.Audience(AudiencePurchase).Roles)
	assert.Equal(t, workflow.StageCEO, r.StageTable()[workflow.RoleCEO])
}

func TestLoadRouting_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.yaml")
	content := `
audiences:
  inventory:
    roles: [inventory_head, stores_head]
    users: [12]
stages:
  stores_head: Inventory
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	r, err := LoadRouting(path)
	require.NoError(t, err)

	inv := r.Audience(AudienceInventory)
	assert.Equal(t, []string{"inventory_head", "stores_head"}, inv.Roles)
	assert.Equal(t, []uint{12}, inv.Users)
	assert.Equal(t, []string{workflow.RoleCEO}, r.Audience(AudienceCEO).Roles)

	table := r.StageTable()
	assert.Equal(t, workflow.StageInventory, table["stores_head"])
	assert.Equal(t, workflow.StagePurchase, table["purchase_head"])
}

func TestLoadRouting_RejectsUnknownStage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stages:\n  qa_head: Quality\n"), 0o600))

	_, err := LoadRouting(path)
	assert.Error(t, err)
}
