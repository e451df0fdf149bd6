package exports_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unfsd-go/unfsd/internal/exports"
)

func writeExports(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "exports")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParse_SkipsBlankAndComments(t *testing.T) {
	path := writeExports(t, "# comment\n\n/srv\n/media removable ro\n")
	table := exports.New(path)
	require.NoError(t, table.Parse())

	entries := table.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "/srv", entries[0].Path)
	assert.Equal(t, "/media", entries[1].Path)
}

func TestIsRemovable(t *testing.T) {
	path := writeExports(t, "/srv\n/cdrom removable\n")
	table := exports.New(path)
	require.NoError(t, table.Parse())

	assert.True(t, table.IsRemovable("/cdrom"))
	assert.False(t, table.IsRemovable("/srv"))
	assert.False(t, table.IsRemovable("/not-an-export"))
}

func TestExportPoint_ExactMatchOnly(t *testing.T) {
	path := writeExports(t, "/srv/data\n")
	table := exports.New(path)
	require.NoError(t, table.Parse())

	_, ok := table.ExportPoint("/srv/data")
	assert.True(t, ok)

	_, ok = table.ExportPoint("/srv/data/subdir")
	assert.False(t, ok, "ExportPoint only matches an export root, not paths beneath it")
}

func TestSquashIDs(t *testing.T) {
	table := exports.New(writeExports(t, "/srv\n"))
	table.SetSquashIDs(exports.SquashIDs{UID: 65534, GID: 65534})
	assert.Equal(t, exports.SquashIDs{UID: 65534, GID: 65534}, table.GetSquashIDs())
}

func TestReload_ReplacesEntries(t *testing.T) {
	path := writeExports(t, "/one\n")
	table := exports.New(path)
	require.NoError(t, table.Parse())
	require.Len(t, table.Entries(), 1)

	require.NoError(t, os.WriteFile(path, []byte("/one\n/two\n"), 0o644))
	require.NoError(t, table.Parse())
	assert.Len(t, table.Entries(), 2)
}
