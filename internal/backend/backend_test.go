package backend_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unfsd-go/unfsd/internal/backend"
)

func TestLocal_OpendirAndLstat(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	fs := backend.New()

	d, err := fs.Opendir(dir)
	require.NoError(t, err)
	defer d.Close()

	names := map[string]bool{}
	for {
		entry, err := d.Readdir()
		if err != nil {
			break
		}
		names[entry.Name] = true
	}
	assert.True(t, names["a.txt"])
	assert.True(t, names["sub"])

	info, err := fs.Lstat(filepath.Join(dir, "sub"))
	require.NoError(t, err)
	assert.True(t, info.IsDir)
}

func TestLocal_StatMissingReturnsError(t *testing.T) {
	fs := backend.New()
	_, err := fs.Stat("/does/not/exist/anywhere")
	assert.Error(t, err)
}
