package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinalizedGuardMigrationBlocksUpdates(t *testing.T) {
	sqlBytes, err := os.ReadFile(filepath.Join("..", "..", "db", "migrations", "0004_finalized_draft_guard.up.sql"))
	require.NoError(t, err)

	for _, snippet := range []string{
		"finalized_draft_guard",
		"RAISE EXCEPTION",
		"BEFORE UPDATE ON drafts",
		"current_version_id",
	} {
		assert.Contains(t, string(sqlBytes), snippet)
	}
}
