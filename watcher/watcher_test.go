package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webcontainer-demo/livedemo/tree"
)

type publishLog struct {
	mu   sync.Mutex
	list []*tree.Published
}

func (l *publishLog) add(p *tree.Published) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.list = append(l.list, p)
}

func (l *publishLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.list)
}

func (l *publishLog) last() *tree.Published {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.list[len(l.list)-1]
}

func startWatcher(t *testing.T) (string, *publishLog, context.CancelFunc, <-chan error) {
	root := filepath.Join(t.TempDir(), "container")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<html/>"), 0644))

	publisher := tree.NewPublisher(root, filepath.Join(t.TempDir(), "dir.json"), nil)
	var log publishLog
	publisher.OnPublish(log.add)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- New(publisher, Config{Debounce: 20 * time.Millisecond}).Run(ctx)
	}()

	require.Eventually(t, func() bool { return log.len() == 1 }, 2*time.Second, 10*time.Millisecond)

	return root, &log, cancel, errCh
}

func TestWatcherRepublishes(t *testing.T) {
	root, log, cancel, errCh := startWatcher(t)
	defer func() {
		cancel()
		assert.NoError(t, <-errCh)
	}()

	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main.ts"), []byte("main"), 0644))

	assert.Eventually(t, func() bool {
		if log.len() < 2 {
			return false
		}
		_, err := log.last().Tree.Locate("src/main.ts")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherWatchesNewDirectories(t *testing.T) {
	root, log, cancel, errCh := startWatcher(t)
	defer func() {
		cancel()
		assert.NoError(t, <-errCh)
	}()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "components"), 0755))
	require.Eventually(t, func() bool {
		_, err := log.last().Tree.Locate("components")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "components", "Hello.vue"), []byte("<template/>"), 0644))
	assert.Eventually(t, func() bool {
		_, err := log.last().Tree.Locate("components/Hello.vue")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherInitialPublishFails(t *testing.T) {
	publisher := tree.NewPublisher(filepath.Join(t.TempDir(), "missing"), filepath.Join(t.TempDir(), "dir.json"), nil)

	err := New(publisher, Config{}).Run(context.Background())
	assert.ErrorIs(t, err, tree.ErrFilesystemAccess)
}

func TestRelevant(t *testing.T) {
	publisher := tree.NewPublisher("/tmp/container", "/tmp/dir.json", nil)
	w := New(publisher, Config{})

	assert.True(t, w.relevant("/tmp/container"))
	assert.True(t, w.relevant("/tmp/container/src/App.vue"))
	assert.False(t, w.relevant("/tmp/container/node_modules/vue/index.js"))
	assert.False(t, w.relevant("/tmp/container/src/.App.vue.swp"))
	assert.False(t, w.relevant("/tmp/container/dist/index.html"))
	assert.False(t, w.relevant("/tmp/other/file"))
}
