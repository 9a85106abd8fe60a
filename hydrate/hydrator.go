// Package hydrate reconstructs a mountable file tree from a published manifest by fetching the contents
// of every listed file over HTTP.
package hydrate

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/webcontainer-demo/livedemo/common"
	"github.com/webcontainer-demo/livedemo/common/parallel"
	"github.com/webcontainer-demo/livedemo/common/util"
	"github.com/webcontainer-demo/livedemo/metrics"
	"github.com/webcontainer-demo/livedemo/mount"
	"github.com/webcontainer-demo/livedemo/tree"
)

const (
	defaultRoutines       = 16
	defaultReportInterval = 10 * time.Second
)

// Config configures a Hydrator.
type Config struct {
	ManifestURL    string        // URL of the published manifest
	ContentBaseURL string        // file contents are served at ContentBaseURL + relative path
	Routines       int           // max concurrent content requests, 16 by default
	Timeout        time.Duration // per request timeout, zero means none
}

// Hydrator fetches a manifest and the contents of the files it lists.
type Hydrator struct {
	config     Config
	contentURL *url.URL
	client     *http.Client

	logger *logrus.Logger
}

// New validates the configured URLs and creates a Hydrator.
func New(config Config, opts ...common.LogOption) (*Hydrator, error) {
	if _, err := url.Parse(config.ManifestURL); err != nil || len(config.ManifestURL) == 0 {
		return nil, errors.Errorf("invalid manifest URL '%s'", config.ManifestURL)
	}

	contentURL, err := url.Parse(config.ContentBaseURL)
	if err != nil || len(config.ContentBaseURL) == 0 {
		return nil, errors.Errorf("invalid content base URL '%s'", config.ContentBaseURL)
	}

	if config.Routines <= 0 {
		config.Routines = defaultRoutines
	}

	return &Hydrator{
		config:     config,
		contentURL: contentURL,
		client:     &http.Client{Timeout: config.Timeout},
		logger:     common.NewLogger(opts...),
	}, nil
}

// Hydrate fetches the manifest at manifestURL and builds the mount tree with default settings.
func Hydrate(ctx context.Context, manifestURL, contentBaseURL string) (mount.Tree, error) {
	h, err := New(Config{ManifestURL: manifestURL, ContentBaseURL: contentBaseURL})
	if err != nil {
		return nil, err
	}

	return h.Hydrate(ctx)
}

// Hydrate fetches the manifest and builds the mount tree. Any failure yields a nil tree.
func (h *Hydrator) Hydrate(ctx context.Context) (mount.Tree, error) {
	root, err := h.FetchManifest(ctx)
	if err != nil {
		metrics.RecordHydration(0, err)
		return nil, err
	}

	return h.HydrateManifest(ctx, root)
}

// FetchManifest downloads and decodes the manifest.
func (h *Hydrator) FetchManifest(ctx context.Context) (*tree.Node, error) {
	data, err := h.get(ctx, h.config.ManifestURL, ErrManifestFetch)
	if err != nil {
		return nil, err
	}

	root, err := tree.Decode(data)
	if err != nil {
		return nil, &FetchError{Kind: ErrManifestParse, URL: h.config.ManifestURL, Err: err}
	}

	files, dirs := root.Count()
	h.logger.WithFields(logrus.Fields{
		"url":   h.config.ManifestURL,
		"root":  root.Name,
		"files": files,
		"dirs":  dirs,
	}).Debug("Manifest fetched")

	return root, nil
}

// HydrateManifest builds the mount tree for the children of root. Directories are created up front, so
// empty ones are kept; file contents are fetched concurrently and the first failed fetch fails the call.
func (h *Hydrator) HydrateManifest(ctx context.Context, root *tree.Node) (mount.Tree, error) {
	result := mount.Tree{}

	var files []string
	err := root.Traverse(func(node *tree.Node, relpath string) error {
		if node.Type == tree.Directory {
			return result.Insert(relpath, mount.NewDirectory())
		}

		files = append(files, relpath)
		return nil
	})
	if err != nil {
		err = errors.WithMessage(err, "failed to build mount tree")
		metrics.RecordHydration(0, err)
		return nil, err
	}

	fetcher := &contentFetcher{
		hydrator: h,
		paths:    files,
		result:   result,
		progress: util.NewProgress(h.logger, "Hydration", len(files), defaultReportInterval),
	}

	opt := parallel.SerialOption{Routines: h.config.Routines}
	if err := parallel.Serial(ctx, fetcher, len(files), opt); err != nil {
		metrics.RecordHydration(fetcher.bytes, err)
		return nil, err
	}

	fetcher.progress.Finish()
	metrics.RecordHydration(fetcher.bytes, nil)

	return result, nil
}

// ContentURL returns the URL serving the file at the given slash separated relative path.
func (h *Hydrator) ContentURL(relpath string) string {
	segments := strings.Split(relpath, "/")
	for i := range segments {
		segments[i] = url.PathEscape(segments[i])
	}

	return h.contentURL.JoinPath(segments...).String()
}

func (h *Hydrator) get(ctx context.Context, target string, kind error) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{Kind: kind, URL: target, Err: err}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: kind, URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{Kind: kind, URL: target, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Kind: kind, URL: target, StatusCode: resp.StatusCode, Err: err}
	}

	return data, nil
}

// contentFetcher fetches file contents in parallel and inserts them in manifest order.
type contentFetcher struct {
	hydrator *Hydrator
	paths    []string
	result   mount.Tree
	progress *util.Progress
	bytes    int
}

func (f *contentFetcher) ParallelDo(ctx context.Context, routine, task int) (interface{}, error) {
	return f.hydrator.get(ctx, f.hydrator.ContentURL(f.paths[task]), ErrContentFetch)
}

func (f *contentFetcher) ParallelCollect(result *parallel.Result) error {
	relpath := f.paths[result.Task]

	data := result.Value.([]byte)
	f.bytes += len(data)

	if err := f.result.Insert(relpath, mount.NewFile(string(data))); err != nil {
		return errors.WithMessagef(err, "failed to insert %s", relpath)
	}

	f.progress.Step(logrus.Fields{"path": relpath})

	return nil
}
