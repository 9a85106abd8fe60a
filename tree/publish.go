package tree

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	eth_common "github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/webcontainer-demo/livedemo/common"
	"github.com/webcontainer-demo/livedemo/metrics"
)

// Publish writes the encoded tree to dest, creating missing parent directories. The manifest is written to
// a temporary file next to dest and renamed over it, so readers never observe a partial manifest.
func Publish(node *Node, dest string) error {
	data, err := Encode(node)
	if err != nil {
		return err
	}

	return writeManifest(data, dest)
}

func writeManifest(data []byte, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errors.WithMessagef(err, "failed to create directory for %s", dest)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.tmp")
	if err != nil {
		return errors.WithMessage(err, "failed to create temporary manifest")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.WithMessage(err, "failed to write temporary manifest")
	}

	if err := tmp.Close(); err != nil {
		return errors.WithMessage(err, "failed to close temporary manifest")
	}

	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return errors.WithMessage(err, "failed to set manifest permissions")
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return errors.WithMessagef(err, "failed to replace manifest %s", dest)
	}

	return nil
}

// Published describes the latest manifest written by a Publisher.
type Published struct {
	Tree   *Node
	Data   []byte
	Digest eth_common.Hash
	Time   time.Time
}

// Publisher snapshots a root directory and publishes the manifest, keeping only the latest result.
type Publisher struct {
	root        string
	manifest    string
	snapshotter *Snapshotter

	publishMu sync.Mutex // serializes snapshot, write and swap of latest

	mu        sync.RWMutex
	latest    *Published
	callbacks []func(*Published)

	logger *logrus.Logger
}

// NewPublisher creates a publisher for the given template root and manifest path.
func NewPublisher(root, manifest string, snapshotter *Snapshotter, opts ...common.LogOption) *Publisher {
	if snapshotter == nil {
		snapshotter = &Snapshotter{}
	}

	return &Publisher{
		root:        root,
		manifest:    manifest,
		snapshotter: snapshotter,
		logger:      common.NewLogger(opts...),
	}
}

// Root returns the watched template root.
func (p *Publisher) Root() string { return p.root }

// Snapshotter returns the filters used for snapshots.
func (p *Publisher) Snapshotter() *Snapshotter { return p.snapshotter }

// OnPublish registers a callback invoked after every successful publish.
func (p *Publisher) OnPublish(callback func(*Published)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.callbacks = append(p.callbacks, callback)
}

// Latest returns the latest published manifest, or nil if nothing has been published yet.
func (p *Publisher) Latest() *Published {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.latest
}

// Publish takes a fresh snapshot and overwrites the manifest. On failure the previous manifest stays in place.
func (p *Publisher) Publish() (*Published, error) {
	p.publishMu.Lock()
	defer p.publishMu.Unlock()

	start := time.Now()

	published, err := p.publish()

	var files, dirs int
	if published != nil {
		files, dirs = published.Tree.Count()
	}
	metrics.RecordPublish(time.Since(start), files, dirs, err)

	return published, err
}

func (p *Publisher) publish() (*Published, error) {
	node, err := p.snapshotter.Snapshot(p.root)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to snapshot template")
	}

	data, err := Encode(node)
	if err != nil {
		return nil, err
	}

	if err := writeManifest(data, p.manifest); err != nil {
		return nil, err
	}

	published := &Published{
		Tree:   node,
		Data:   data,
		Digest: Digest(data),
		Time:   time.Now(),
	}

	p.mu.Lock()
	previous := p.latest
	p.latest = published
	callbacks := append([]func(*Published){}, p.callbacks...)
	p.mu.Unlock()

	files, dirs := node.Count()
	p.logger.WithFields(logrus.Fields{
		"manifest": p.manifest,
		"digest":   published.Digest,
		"files":    files,
		"dirs":     dirs,
	}).Info("Manifest published")

	if previous != nil {
		p.logChanges(previous.Tree, node)
	}

	for _, callback := range callbacks {
		callback(published)
	}

	return published, nil
}

func (p *Publisher) logChanges(previous, next *Node) {
	diffRoot, err := Diff(previous, next)
	if err != nil {
		p.logger.WithError(err).Debug("Failed to diff snapshots")
		return
	}

	for _, change := range diffRoot.Changes() {
		p.logger.WithFields(logrus.Fields{
			"path":   change.Path,
			"status": change.Status,
		}).Debug("Template entry changed")
	}
}
