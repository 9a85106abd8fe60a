// Package session drives a sandbox through the demo lifecycle: mount the template, install dependencies,
// start the dev server and keep the edited file in sync with the editor.
package session

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/webcontainer-demo/livedemo/common"
	"github.com/webcontainer-demo/livedemo/common/debounce"
	"github.com/webcontainer-demo/livedemo/metrics"
	"github.com/webcontainer-demo/livedemo/mount"
	"github.com/webcontainer-demo/livedemo/sandbox"
)

const DefaultEditPath = "src/App.vue"

var (
	DefaultInstallCmd = []string{"pnpm", "install"}
	DefaultDevCmd     = []string{"pnpm", "run", "dev"}
)

// State is the lifecycle stage of a session.
type State string

const (
	StateBooting       State = "booting"
	StateInstalling    State = "installing"
	StateInstallFailed State = "install-failed"
	StateRunning       State = "running"
	StateClosed        State = "closed"
)

type Config struct {
	InstallCmd []string      // default pnpm install
	DevCmd     []string      // default pnpm run dev
	EditPath   string        // file the editor writes to, relative to the sandbox root
	Debounce   time.Duration // quiet period before an edit is written, default 500ms
}

func (config *Config) normalize() {
	if len(config.InstallCmd) == 0 {
		config.InstallCmd = DefaultInstallCmd
	}

	if len(config.DevCmd) == 0 {
		config.DevCmd = DefaultDevCmd
	}

	if len(config.EditPath) == 0 {
		config.EditPath = DefaultEditPath
	}

	if config.Debounce <= 0 {
		config.Debounce = debounce.DefaultInterval
	}
}

// Session owns a container for the lifetime of one demo. Everything the container prints, plus the
// lifecycle messages, goes to the terminal writer.
type Session struct {
	id        string
	config    Config
	container sandbox.Container
	terminal  *terminal
	edits     *debounce.Debouncer[string]

	mu    sync.RWMutex
	state State
	url   string

	logger *logrus.Entry
}

func New(container sandbox.Container, out io.Writer, config Config, opts ...common.LogOption) *Session {
	config.normalize()

	id := uuid.NewString()

	s := &Session{
		id:        id,
		config:    config,
		container: container,
		terminal:  &terminal{w: out},
		state:     StateBooting,
		logger:    common.NewLogger(opts...).WithField("session", id),
	}

	s.edits = debounce.New(config.Debounce, s.writeEdit)

	return s
}

// Boot mounts tree, installs dependencies and starts the dev server. onReady is called with the preview
// URL once the dev server announces itself.
//
// A failed installation is reported on the terminal and leaves the session in StateInstallFailed, it is
// not returned as an error.
func (s *Session) Boot(ctx context.Context, tree mount.Tree, onReady func(url string)) error {
	s.container.OnServerReady(func(port int, url string) {
		s.terminal.Printf("\nServer started on port %d", port)
		s.terminal.Printf("\n%s", url)

		s.mu.Lock()
		s.url = url
		s.mu.Unlock()

		if onReady != nil {
			onReady(url)
		}
	})

	if err := s.container.Mount(ctx, tree); err != nil {
		return errors.WithMessage(err, "failed to mount template")
	}

	s.setState(StateInstalling)
	s.terminal.Printf("\nInstalling dependencies")

	install, err := s.container.Spawn(ctx, s.config.InstallCmd[0], s.config.InstallCmd[1:]...)
	if err != nil {
		return errors.WithMessage(err, "failed to spawn install command")
	}

	code, err := s.pipe(ctx, install)
	if err != nil {
		return err
	}

	if code != 0 {
		s.logger.WithField("code", code).Warn("Dependency installation failed")
		s.terminal.Printf("\nDependency installation failed")
		s.setState(StateInstallFailed)
		return nil
	}

	dev, err := s.container.Spawn(ctx, s.config.DevCmd[0], s.config.DevCmd[1:]...)
	if err != nil {
		return errors.WithMessage(err, "failed to spawn dev server")
	}

	s.setState(StateRunning)

	go func() {
		code, err := s.pipe(context.Background(), dev)
		s.logger.WithFields(logrus.Fields{
			"code": code,
			"err":  err,
		}).Info("Dev server exited")
	}()

	return nil
}

// pipe copies the process output to the terminal and waits for the exit code.
func (s *Session) pipe(ctx context.Context, proc *sandbox.Process) (int, error) {
	if _, err := io.Copy(s.terminal, proc.Output); err != nil {
		return -1, errors.WithMessage(err, "failed to read process output")
	}

	select {
	case code := <-proc.Exit():
		return code, nil
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

// OnCodeChange schedules the editor contents to be written to the edited file. Bursts of changes result
// in a single write of the latest contents.
func (s *Session) OnCodeChange(code string) {
	s.edits.Trigger(code)
}

func (s *Session) writeEdit(code string) {
	err := s.container.WriteFile(s.config.EditPath, code)
	metrics.RecordEdit(err)

	if err != nil {
		s.logger.WithError(err).WithField("path", s.config.EditPath).Warn("Failed to sync editor contents")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"path": s.config.EditPath,
		"size": len(code),
	}).Debug("Editor contents synced")
}

// ID identifies the session in logs and status responses.
func (s *Session) ID() string {
	return s.id
}

// URL returns the dev server URL, or an empty string before the server is ready.
func (s *Session) URL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.url
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	s.logger.WithField("state", state).Debug("Session state changed")
}

// Close writes any pending edit and tears the container down.
func (s *Session) Close() error {
	s.edits.Flush()
	s.edits.Stop()
	s.setState(StateClosed)

	return s.container.Teardown()
}

// terminal serializes writes from concurrent process pipes.
type terminal struct {
	mu sync.Mutex
	w  io.Writer
}

func (t *terminal) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.w.Write(p)
}

func (t *terminal) Printf(format string, args ...interface{}) {
	fmt.Fprintf(t, format, args...)
}
