package tree_test

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webcontainer-demo/livedemo/tree"
)

func TestEncodeDecode(t *testing.T) {
	original := sampleTree()

	data, err := tree.Encode(original)
	require.NoError(t, err)

	decoded, err := tree.Decode(data)
	require.NoError(t, err)
	assert.True(t, original.Equal(decoded))

	// empty directories survive the round trip as directories
	empty, err := decoded.Locate("empty")
	require.NoError(t, err)
	assert.Equal(t, tree.Directory, empty.Type)
}

func TestDecodeInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"Malformed JSON", `{"name":`},
		{"Root File", `{"name":"a","type":"file"}`},
		{"Duplicate Children", `{"name":"r","type":"directory","children":[{"name":"a","type":"file"},{"name":"a","type":"file"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tree.Decode([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestDigest(t *testing.T) {
	data1, err := tree.Encode(sampleTree())
	require.NoError(t, err)
	data2, err := tree.Encode(tree.NewDirNode("proj", nil))
	require.NoError(t, err)

	assert.Equal(t, tree.Digest(data1), tree.Digest(data1))
	assert.NotEqual(t, tree.Digest(data1), tree.Digest(data2))
}

func TestPublish(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "public", "nested", "dir.json")

	require.NoError(t, tree.Publish(sampleTree(), dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	decoded, err := tree.Decode(data)
	require.NoError(t, err)
	assert.True(t, sampleTree().Equal(decoded))

	// overwrite in place
	require.NoError(t, tree.Publish(tree.NewDirNode("proj", nil), dest))
	data, err = os.ReadFile(dest)
	require.NoError(t, err)
	decoded, err = tree.Decode(data)
	require.NoError(t, err)
	assert.Empty(t, decoded.Children)

	// no temporary files left behind
	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPublisher(t *testing.T) {
	root := createProject(t)
	manifest := filepath.Join(t.TempDir(), "dir.json")

	publisher := tree.NewPublisher(root, manifest, nil)
	assert.Nil(t, publisher.Latest())

	var notified []*tree.Published
	publisher.OnPublish(func(p *tree.Published) {
		notified = append(notified, p)
	})

	first, err := publisher.Publish()
	require.NoError(t, err)
	assert.Equal(t, tree.Digest(first.Data), first.Digest)
	assert.Same(t, first, publisher.Latest())

	writeFile(t, filepath.Join(root, "sub", "c.txt"), "new")
	second, err := publisher.Publish()
	require.NoError(t, err)
	assert.NotEqual(t, first.Digest, second.Digest)
	assert.Len(t, notified, 2)

	// a failed snapshot keeps the previous manifest
	require.NoError(t, os.RemoveAll(root))
	_, err = publisher.Publish()
	assert.ErrorIs(t, err, tree.ErrFilesystemAccess)
	assert.Same(t, second, publisher.Latest())

	data, err := os.ReadFile(manifest)
	require.NoError(t, err)
	assert.Equal(t, second.Data, data)
}

func TestPublisherConcurrentPublishesKeepOrder(t *testing.T) {
	root := t.TempDir()
	manifest := filepath.Join(t.TempDir(), "dir.json")
	publisher := tree.NewPublisher(root, manifest, nil)

	var mu sync.Mutex
	var counts []int
	publisher.OnPublish(func(published *tree.Published) {
		files, _ := published.Tree.Count()
		mu.Lock()
		counts = append(counts, files)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			filename := filepath.Join(root, fmt.Sprintf("file-%02d.txt", i))
			assert.NoError(t, os.WriteFile(filename, []byte("x"), 0644))
			_, err := publisher.Publish()
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// files are only ever added, so a later publish never sees fewer of them
	for i := 1; i < len(counts); i++ {
		assert.GreaterOrEqual(t, counts[i], counts[i-1], "publish %d went back in time", i)
	}
	assert.Equal(t, 32, counts[len(counts)-1])

	latest := publisher.Latest()
	data, err := os.ReadFile(manifest)
	require.NoError(t, err)
	assert.Equal(t, latest.Data, data)
}
