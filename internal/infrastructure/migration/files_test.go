package migration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMigration_WritesFilePair(t *testing.T) {
	dir := t.TempDir()

	mf, err := CreateMigration(dir, "create invoices table")
	require.NoError(t, err)

	assert.FileExists(t, mf.UpPath)
	assert.FileExists(t, mf.DownPath)
	assert.True(t, strings.HasSuffix(mf.UpPath, "_create_invoices_table.up.sql"))
	assert.True(t, strings.HasSuffix(mf.DownPath, "_create_invoices_table.down.sql"))
	assert.Len(t, mf.Version, 14)

	content, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "create invoices table")
}

func TestCreateMigration_CreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "migrations")

	_, err := CreateMigration(dir, "init")
	require.NoError(t, err)
	assert.DirExists(t, dir)
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"spaces become underscores", "create invoices table", "create_invoices_table"},
		{"uppercase is lowered", "AddDunningsTable", "adddunningstable"},
		{"special characters collapse", "add -- payments!! table", "add_payments_table"},
		{"trailing separators trimmed", "cleanup---", "cleanup"},
		{"digits survive", "v2 schema", "v2_schema"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{
		"20260101000000_first.up.sql",
		"20260101000000_first.down.sql",
		"20260102000000_second.up.sql",
		"20260102000000_second.down.sql",
		"notes.txt",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("-- sql"), 0o644))
	}

	migrations, err := ListMigrations(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"20260101000000_first", "20260102000000_second"}, migrations)
}

func TestListMigrations_MissingDirectory(t *testing.T) {
	migrations, err := ListMigrations(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Empty(t, migrations)
}
