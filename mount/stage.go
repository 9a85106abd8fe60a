package mount

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const mountingSuffix = ".mounting"

// StagingDir materializes a mount tree on a host directory. Entries are written into a temporary sibling
// directory that is renamed over the target once complete, so a partially mounted tree is never visible
// under the target name. Existing content of the target (e.g. installed dependencies) is carried over.
type StagingDir struct {
	target string
}

// CreateStagingDir prepares the temporary directory by moving an existing target aside, or by creating
// an empty one.
func CreateStagingDir(target string) (*StagingDir, error) {
	tmpDir := target + mountingSuffix

	// leftover of an interrupted mount
	if err := os.RemoveAll(tmpDir); err != nil {
		return nil, errors.WithMessage(err, "failed to remove stale staging directory")
	}

	err := os.Rename(target, tmpDir)
	if err == nil {
		return &StagingDir{target}, nil
	}

	if os.IsNotExist(err) {
		if err := os.MkdirAll(tmpDir, 0755); err != nil {
			return nil, errors.WithMessage(err, "failed to create staging directory")
		}
		return &StagingDir{target}, nil
	}

	return nil, errors.WithMessage(err, "failed to move existing directory aside")
}

// Add writes a single entry at relpath inside the staging directory.
func (dir *StagingDir) Add(relpath string, entry *Entry) error {
	savePath, err := dir.resolve(relpath)
	if err != nil {
		return err
	}

	if entry.IsDir() {
		if err := os.MkdirAll(savePath, 0755); err != nil {
			return errors.WithMessagef(err, "failed to create directory %s", savePath)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(savePath), 0755); err != nil {
		return errors.WithMessagef(err, "failed to create directory for %s", savePath)
	}

	if err := os.WriteFile(savePath, []byte(entry.File.Contents), 0644); err != nil {
		return errors.WithMessagef(err, "failed to write file %s", savePath)
	}

	return nil
}

// Seal renames the staging directory to the target name.
func (dir *StagingDir) Seal() error {
	if err := os.Rename(dir.target+mountingSuffix, dir.target); err != nil {
		return errors.WithMessage(err, "failed to rename staging directory")
	}

	return nil
}

// Abort restores the previous target, dropping nothing that was there before staging began except for
// entries already overwritten.
func (dir *StagingDir) Abort() error {
	return dir.Seal()
}

func (dir *StagingDir) resolve(relpath string) (string, error) {
	base := dir.target + mountingSuffix
	savePath := filepath.Join(base, filepath.FromSlash(relpath))

	if savePath == base || !strings.HasPrefix(savePath, base+string(os.PathSeparator)) {
		return "", errors.Errorf("path '%s' escapes the mount directory", relpath)
	}

	return savePath, nil
}

// Stage writes the whole tree into target.
func Stage(tree Tree, target string) error {
	staging, err := CreateStagingDir(target)
	if err != nil {
		return err
	}

	err = tree.Walk(func(relpath string, entry *Entry) error {
		return staging.Add(relpath, entry)
	})
	if err != nil {
		if abortErr := staging.Abort(); abortErr != nil {
			return errors.WithMessagef(err, "failed to restore %s (%v)", target, abortErr)
		}
		return errors.WithMessage(err, "failed to stage mount tree")
	}

	return staging.Seal()
}
