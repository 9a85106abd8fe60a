package tree

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrFilesystemAccess is the kind of every error caused by a missing or unreadable host path.
var ErrFilesystemAccess = errors.New("filesystem access error")

// AccessError reports a failed filesystem operation during a snapshot.
type AccessError struct {
	Op   string // stat or readdir
	Path string
	Err  error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}

// Is reports the error kind, so errors.Is(err, ErrFilesystemAccess) holds through any wrapping.
func (e *AccessError) Is(target error) bool {
	return target == ErrFilesystemAccess
}
