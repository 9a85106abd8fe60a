package mount_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webcontainer-demo/livedemo/mount"
)

func TestStage(t *testing.T) {
	target := filepath.Join(t.TempDir(), "workdir")

	require.NoError(t, mount.Stage(sampleTree(t), target))

	data, err := os.ReadFile(filepath.Join(target, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	data, err = os.ReadFile(filepath.Join(target, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "world", string(data))

	info, err := os.Stat(filepath.Join(target, "empty"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = os.Stat(target + ".mounting")
	assert.True(t, os.IsNotExist(err))
}

func TestStageKeepsExistingContent(t *testing.T) {
	target := filepath.Join(t.TempDir(), "workdir")
	installed := filepath.Join(target, "node_modules", "vue", "index.js")
	require.NoError(t, os.MkdirAll(filepath.Dir(installed), 0755))
	require.NoError(t, os.WriteFile(installed, []byte("installed"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(target, "a.txt"), []byte("old"), 0644))

	require.NoError(t, mount.Stage(sampleTree(t), target))

	_, err := os.Stat(installed)
	assert.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(target, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestStageRejectsEscapingPaths(t *testing.T) {
	target := filepath.Join(t.TempDir(), "workdir")

	err := mount.Stage(mount.Tree{"..": mount.NewFile("x")}, target)
	assert.Error(t, err)

	// the target is restored after a failed mount
	_, err = os.Stat(target)
	assert.NoError(t, err)
	_, err = os.Stat(target + ".mounting")
	assert.True(t, os.IsNotExist(err))
}
