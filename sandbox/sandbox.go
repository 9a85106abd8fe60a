// Package sandbox defines the execution sandbox boundary: mounting a file tree, spawning processes,
// writing files and announcing dev servers. Local implements it on a host working directory.
package sandbox

import (
	"context"
	"io"

	"github.com/webcontainer-demo/livedemo/mount"
)

// ServerReadyFunc is notified once per port when a process inside the sandbox starts serving.
type ServerReadyFunc func(port int, url string)

// Container is an execution sandbox.
type Container interface {
	// Mount writes the tree into the sandbox filesystem root.
	Mount(ctx context.Context, tree mount.Tree) error

	// Spawn starts a process in the sandbox root. Its Output must be drained by the caller.
	Spawn(ctx context.Context, name string, args ...string) (*Process, error)

	// WriteFile replaces the contents of a file, addressed by its path relative to the sandbox root.
	WriteFile(path, contents string) error

	// OnServerReady registers a callback for "server ready" notifications.
	OnServerReady(fn ServerReadyFunc)

	// Teardown stops every spawned process.
	Teardown() error
}

// Process is a running sandbox process.
type Process struct {
	Output io.Reader // merged stdout and stderr, closed when the process exits

	exit <-chan int
	kill func() error
}

// NewProcess wraps a running process. exit must deliver the exit code once output has been closed.
func NewProcess(output io.Reader, exit <-chan int, kill func() error) *Process {
	return &Process{
		Output: output,
		exit:   exit,
		kill:   kill,
	}
}

// Exit delivers the exit code once the process terminated and its output has been fully written.
// A process that could not report a code (killed, failed to wait) exits with -1.
func (p *Process) Exit() <-chan int {
	return p.exit
}

// Kill terminates the process.
func (p *Process) Kill() error {
	return p.kill()
}
