// Package scope owns the per-run directory that holds every worker's dtach
// socket.
//
// Layout:
//
//	<scope>/<pid>_<random>/dtach.socket
//
// Each worker creates its own subdirectory, so concurrent workers never write
// the same path.
package scope

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// SocketName is the fixed attach-point filename inside each worker directory.
const SocketName = "dtach.socket"

const defaultPrefix = "mpiterm-"

// Dir is a uniquely named directory scoped to one run.
type Dir struct {
	path string
	once sync.Once
	err  error
}

// New creates a fresh scope directory under parent (the system temp dir when
// empty).
func New(parent, prefix string) (*Dir, error) {
	if prefix == "" {
		prefix = defaultPrefix
	}
	path, err := os.MkdirTemp(parent, prefix)
	if err != nil {
		return nil, fmt.Errorf("create scope dir: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = os.RemoveAll(path)
		return nil, fmt.Errorf("resolve scope dir: %w", err)
	}
	return &Dir{path: abs}, nil
}

// Path returns the absolute directory path.
func (d *Dir) Path() string {
	if d == nil {
		return ""
	}
	return d.path
}

// Remove deletes the directory and its contents. It is safe to call more than
// once and when the directory has already vanished.
func (d *Dir) Remove() error {
	if d == nil || d.path == "" {
		return nil
	}
	d.once.Do(func() {
		err := os.RemoveAll(d.path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			d.err = fmt.Errorf("remove scope dir %s: %w", d.path, err)
		}
	})
	return d.err
}

// Pattern returns the glob matching every attach-point under scopeDir.
func Pattern(scopeDir string) string {
	return filepath.Join(scopeDir, "*", SocketName)
}

// NewWorkerDir creates the worker's private subdirectory and returns the
// attach-point path inside it. The socket itself is created later by dtach.
func NewWorkerDir(scopeDir string, pid int) (string, error) {
	info, err := os.Stat(scopeDir)
	if err != nil {
		return "", fmt.Errorf("scope dir %s: %w", scopeDir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("scope dir %s is not a directory", scopeDir)
	}
	dir, err := os.MkdirTemp(scopeDir, strconv.Itoa(pid)+"_")
	if err != nil {
		return "", fmt.Errorf("create worker dir: %w", err)
	}
	return filepath.Join(dir, SocketName), nil
}
