package sandbox

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/webcontainer-demo/livedemo/common"
	"github.com/webcontainer-demo/livedemo/mount"
)

// Local is a Container backed by a directory on the host. Processes run with the directory as working
// directory and inherit the host environment plus Env.
type Local struct {
	workdir string
	env     []string

	mu         sync.Mutex
	readyFns   []ServerReadyFunc
	readyPorts map[int]struct{}
	processes  map[*Process]struct{}

	logger *logrus.Logger
}

// Boot creates the working directory if needed and returns a Local container rooted at it.
func Boot(workdir string, env []string, opts ...common.LogOption) (*Local, error) {
	abs, err := filepath.Abs(workdir)
	if err != nil {
		return nil, errors.WithMessagef(err, "invalid working directory %s", workdir)
	}

	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, errors.WithMessage(err, "failed to create working directory")
	}

	return &Local{
		workdir:    abs,
		env:        env,
		readyPorts: make(map[int]struct{}),
		processes:  make(map[*Process]struct{}),
		logger:     common.NewLogger(opts...),
	}, nil
}

// Workdir returns the sandbox root on the host.
func (l *Local) Workdir() string {
	return l.workdir
}

func (l *Local) Mount(ctx context.Context, tree mount.Tree) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := mount.Stage(tree, l.workdir); err != nil {
		return errors.WithMessage(err, "failed to mount tree")
	}

	l.logger.WithField("workdir", l.workdir).Debug("Tree mounted")

	return nil
}

func (l *Local) Spawn(ctx context.Context, name string, args ...string) (*Process, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = l.workdir
	cmd.Env = append(os.Environ(), l.env...)

	outputReader, outputWriter := io.Pipe()
	detector := newReadyDetector(l.serverReady)
	writer := io.MultiWriter(detector, outputWriter)
	cmd.Stdout = writer
	cmd.Stderr = writer

	if err := cmd.Start(); err != nil {
		outputWriter.Close()
		return nil, errors.WithMessagef(err, "failed to start %s", name)
	}

	exit := make(chan int, 1)
	proc := NewProcess(outputReader, exit, func() error {
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return err
		}
		return nil
	})

	l.mu.Lock()
	l.processes[proc] = struct{}{}
	l.mu.Unlock()

	logger := l.logger.WithFields(logrus.Fields{
		"cmd": strings.Join(append([]string{name}, args...), " "),
		"pid": cmd.Process.Pid,
	})
	logger.Debug("Process spawned")

	go func() {
		// the exit status is taken from ProcessState, a non-nil error only reports a non-zero status
		cmd.Wait()

		code := -1
		if cmd.ProcessState != nil {
			code = cmd.ProcessState.ExitCode()
		}

		detector.Flush()
		outputWriter.Close()

		l.mu.Lock()
		delete(l.processes, proc)
		l.mu.Unlock()

		logger.WithField("code", code).Debug("Process exited")
		exit <- code
		close(exit)
	}()

	return proc, nil
}

func (l *Local) WriteFile(path, contents string) error {
	filename := filepath.Join(l.workdir, filepath.FromSlash(path))
	if !strings.HasPrefix(filename, l.workdir+string(os.PathSeparator)) {
		return errors.Errorf("path '%s' escapes the sandbox", path)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return errors.WithMessagef(err, "failed to create directory for %s", path)
	}

	if err := os.WriteFile(filename, []byte(contents), 0644); err != nil {
		return errors.WithMessagef(err, "failed to write %s", path)
	}

	return nil
}

func (l *Local) OnServerReady(fn ServerReadyFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.readyFns = append(l.readyFns, fn)
}

func (l *Local) Teardown() error {
	l.mu.Lock()
	processes := make([]*Process, 0, len(l.processes))
	for proc := range l.processes {
		processes = append(processes, proc)
	}
	l.mu.Unlock()

	var firstErr error
	for _, proc := range processes {
		if err := proc.Kill(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func (l *Local) serverReady(port int, url string) {
	l.mu.Lock()
	if _, ok := l.readyPorts[port]; ok {
		l.mu.Unlock()
		return
	}
	l.readyPorts[port] = struct{}{}
	callbacks := append([]ServerReadyFunc{}, l.readyFns...)
	l.mu.Unlock()

	l.logger.WithFields(logrus.Fields{
		"port": port,
		"url":  url,
	}).Info("Server ready")

	for _, fn := range callbacks {
		fn(port, url)
	}
}
