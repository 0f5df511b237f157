// Package state implements the fleet supervisor's atomic file-backed State
// Store (spec.md §4.1): every record is a plain file under the state
// directory, written with a temp-file-then-rename swap so a reader never
// observes a partial write, and cross-process mutation is serialized with
// an flock-based file lock plus bounded retry, grounded in the teacher's
// shell-lock pattern (job/shell/shell.go's flock helper).
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/buildkite/roko"
)

// IOError wraps a state-store failure with the path it occurred on, so
// callers can log or report without re-deriving context from a bare error.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("state: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

const (
	lockSuffix  = ".lock"
	dirPerm     = 0o755
	filePerm    = 0o600
	lockTimeout = 5 * time.Second
)

// withLock takes an exclusive flock on path+".lock" for the duration of fn,
// retrying acquisition with bounded backoff (grounded in buildkite-agent's
// job/executor.go retry idiom: roko.Constant over a handful of attempts).
func withLock(path string, fn func() error) error {
	lockPath := path + lockSuffix
	if err := os.MkdirAll(filepath.Dir(lockPath), dirPerm); err != nil {
		return &IOError{Op: "mkdir", Path: filepath.Dir(lockPath), Err: err}
	}
	lock := flock.New(lockPath)

	err := roko.NewRetrier(
		roko.WithMaxAttempts(10),
		roko.WithStrategy(roko.Constant(50*time.Millisecond)),
	).Do(func(r *roko.Retrier) error {
		ok, err := lock.TryLock()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("lock held")
		}
		return nil
	})
	if err != nil {
		return &IOError{Op: "lock", Path: lockPath, Err: err}
	}
	defer lock.Unlock()

	return fn()
}

// Write atomically replaces the contents of path with data: it writes to a
// sibling temp file in the same directory, fsyncs, then renames over the
// destination, so a crash mid-write never leaves a truncated or partial
// file for a concurrent reader to observe.
func Write(path string, data []byte) error {
	return withLock(path, func() error {
		return writeAtomic(path, data)
	})
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return &IOError{Op: "mkdir", Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return &IOError{Op: "create-temp", Path: dir, Err: err}
	}
	tmpPath := tmp.Name()
	cleanTemp := true
	defer func() {
		if cleanTemp {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &IOError{Op: "write", Path: tmpPath, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &IOError{Op: "fsync", Path: tmpPath, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &IOError{Op: "close", Path: tmpPath, Err: err}
	}
	if err := os.Chmod(tmpPath, filePerm); err != nil {
		return &IOError{Op: "chmod", Path: tmpPath, Err: err}
	}

	if err := renameWithRetry(tmpPath, path); err != nil {
		return &IOError{Op: "rename", Path: path, Err: err}
	}
	cleanTemp = false
	return nil
}

// renameWithRetry absorbs the transient EXDEV/EACCES noise some platforms
// produce under heavy contention (buildkite-agent/job/executor.go renames
// a plugin checkout with the same retry-on-rename idiom).
func renameWithRetry(src, dst string) error {
	return roko.NewRetrier(
		roko.WithMaxAttempts(5),
		roko.WithStrategy(roko.Constant(20*time.Millisecond)),
	).Do(func(r *roko.Retrier) error {
		return os.Rename(src, dst)
	})
}

// Read returns the contents of path, or (nil, false, nil) if it does not
// exist — state-store readers tolerate absence rather than treating a
// never-written record as an error.
func Read(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, &IOError{Op: "read", Path: path, Err: err}
	}
	return data, true, nil
}

// AppendLine appends one newline-terminated line to the JSONL file at path,
// creating it (and its directory) if needed. Grounded in the teacher's
// SessionPersistence.SaveEntry append idiom (O_APPEND|O_CREATE, 0600).
func AppendLine(path string, line []byte) error {
	return withLock(path, func() error {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return &IOError{Op: "mkdir", Path: dir, Err: err}
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, filePerm)
		if err != nil {
			return &IOError{Op: "open-append", Path: path, Err: err}
		}
		defer f.Close()

		if len(line) == 0 || line[len(line)-1] != '\n' {
			line = append(line, '\n')
		}
		if _, err := f.Write(line); err != nil {
			return &IOError{Op: "append", Path: path, Err: err}
		}
		return f.Sync()
	})
}

// Remove deletes path if present; absence is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &IOError{Op: "remove", Path: path, Err: err}
	}
	os.Remove(path + lockSuffix)
	return nil
}

// Exists reports whether path is present on disk.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
