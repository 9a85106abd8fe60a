package hydrate_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webcontainer-demo/livedemo/hydrate"
	"github.com/webcontainer-demo/livedemo/mount"
	"github.com/webcontainer-demo/livedemo/tree"
)

const referenceManifest = `{
  "name": "proj",
  "type": "directory",
  "children": [
    {"name": "a.txt", "type": "file"},
    {"name": "sub", "type": "directory", "children": [{"name": "b.txt", "type": "file"}]},
    {"name": "empty", "type": "directory", "children": []}
  ]
}`

type fakeServer struct {
	manifest string
	contents map[string]string
	failing  map[string]int
	requests int32
}

func (s *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&s.requests, 1)

	if r.URL.Path == "/dir.json" {
		if s.manifest == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(s.manifest))
		return
	}

	relpath := strings.TrimPrefix(r.URL.Path, "/container/")
	if status, ok := s.failing[relpath]; ok {
		w.WriteHeader(status)
		return
	}

	content, ok := s.contents[relpath]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Write([]byte(content))
}

func newServer(t *testing.T, fake *fakeServer) (*httptest.Server, *hydrate.Hydrator) {
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	h, err := hydrate.New(hydrate.Config{
		ManifestURL:    server.URL + "/dir.json",
		ContentBaseURL: server.URL + "/container/",
		Routines:       4,
	})
	require.NoError(t, err)

	return server, h
}

func TestHydrate(t *testing.T) {
	fake := &fakeServer{
		manifest: referenceManifest,
		contents: map[string]string{"a.txt": "hello", "sub/b.txt": "world"},
	}
	_, h := newServer(t, fake)

	tree, err := h.Hydrate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, mount.Tree{
		"a.txt": mount.NewFile("hello"),
		"sub": &mount.Entry{Directory: mount.Tree{
			"b.txt": mount.NewFile("world"),
		}},
		"empty": mount.NewDirectory(),
	}, tree)
}

func TestHydratePackageFunc(t *testing.T) {
	fake := &fakeServer{
		manifest: referenceManifest,
		contents: map[string]string{"a.txt": "hello", "sub/b.txt": "world"},
	}
	server := httptest.NewServer(fake)
	defer server.Close()

	tree, err := hydrate.Hydrate(context.Background(), server.URL+"/dir.json", server.URL+"/container")
	require.NoError(t, err)

	entry, err := tree.Lookup("sub/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "world", entry.File.Contents)
}

func TestHydrateEmptyRoot(t *testing.T) {
	fake := &fakeServer{manifest: `{"name":"proj","type":"directory","children":[]}`}
	_, h := newServer(t, fake)

	tree, err := h.Hydrate(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tree)
	assert.Empty(t, tree)
}

func TestHydrateContentNotFound(t *testing.T) {
	fake := &fakeServer{
		manifest: referenceManifest,
		contents: map[string]string{"a.txt": "hello"},
	}
	_, h := newServer(t, fake)

	tree, err := h.Hydrate(context.Background())
	assert.Nil(t, tree)
	require.Error(t, err)
	assert.ErrorIs(t, err, hydrate.ErrContentFetch)
	assert.NotErrorIs(t, err, hydrate.ErrManifestFetch)

	var fetchErr *hydrate.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.True(t, strings.HasSuffix(fetchErr.URL, "/container/sub/b.txt"))
}

func TestHydrateServerError(t *testing.T) {
	fake := &fakeServer{
		manifest: referenceManifest,
		contents: map[string]string{"a.txt": "hello", "sub/b.txt": "world"},
		failing:  map[string]int{"a.txt": http.StatusInternalServerError},
	}
	_, h := newServer(t, fake)

	tree, err := h.Hydrate(context.Background())
	assert.Nil(t, tree)
	assert.ErrorIs(t, err, hydrate.ErrContentFetch)
}

func TestHydrateManifestErrors(t *testing.T) {
	t.Run("missing manifest", func(t *testing.T) {
		_, h := newServer(t, &fakeServer{})

		_, err := h.Hydrate(context.Background())
		assert.ErrorIs(t, err, hydrate.ErrManifestFetch)
	})

	t.Run("malformed manifest", func(t *testing.T) {
		_, h := newServer(t, &fakeServer{manifest: `{"name":`})

		_, err := h.Hydrate(context.Background())
		assert.ErrorIs(t, err, hydrate.ErrManifestParse)
	})

	t.Run("unreachable server", func(t *testing.T) {
		server, h := newServer(t, &fakeServer{manifest: referenceManifest})
		server.Close()

		_, err := h.Hydrate(context.Background())
		assert.ErrorIs(t, err, hydrate.ErrManifestFetch)
	})
}

func TestHydrateCanceled(t *testing.T) {
	fake := &fakeServer{
		manifest: referenceManifest,
		contents: map[string]string{"a.txt": "hello", "sub/b.txt": "world"},
	}
	_, h := newServer(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tree, err := h.Hydrate(ctx)
	assert.Nil(t, tree)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestContentURL(t *testing.T) {
	h, err := hydrate.New(hydrate.Config{
		ManifestURL:    "http://localhost/web-container-demo/dir.json",
		ContentBaseURL: "http://localhost/web-container-demo/container",
	})
	require.NoError(t, err)

	assert.Equal(t, "http://localhost/web-container-demo/container/src/App.vue", h.ContentURL("src/App.vue"))
	assert.Equal(t, "http://localhost/web-container-demo/container/a%20b/100%25.txt", h.ContentURL("a b/100%.txt"))
}

func TestNewInvalidConfig(t *testing.T) {
	_, err := hydrate.New(hydrate.Config{ContentBaseURL: "http://localhost/"})
	assert.Error(t, err)

	_, err = hydrate.New(hydrate.Config{ManifestURL: "http://localhost/dir.json"})
	assert.Error(t, err)
}

// hydrationFailures reads the failed hydration counter from the default registry.
func hydrationFailures(t *testing.T) float64 {
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != "livedemo_hydrations_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "status" && label.GetValue() == "failure" {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}

	return 0
}

func TestHydrateManifestInvalidTreeCounted(t *testing.T) {
	h, err := hydrate.New(hydrate.Config{ManifestURL: "http://127.0.0.1/dir.json", ContentBaseURL: "http://127.0.0.1/"})
	require.NoError(t, err)

	before := hydrationFailures(t)

	root := tree.NewDirNode("proj", []*tree.Node{
		tree.NewDirNode("sub", nil),
		tree.NewDirNode("sub", nil),
	})
	result, err := h.HydrateManifest(context.Background(), root)
	assert.Error(t, err)
	assert.Nil(t, result)

	assert.Equal(t, before+1, hydrationFailures(t))
}
