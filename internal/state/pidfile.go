package state

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// WritePID atomically writes the current process id to path, the artifact
// the Fleet Manager facade uses to detect an already-running supervisor
// (spec.md §4.9, herdctl.pid).
func WritePID(path string, pid int) error {
	return writeAtomic(path, []byte(strconv.Itoa(pid)+"\n"))
}

// ReadPID returns the pid recorded at path, or (0, false, nil) if the file
// is absent.
func ReadPID(path string) (int, bool, error) {
	data, ok, err := Read(path)
	if err != nil || !ok {
		return 0, ok, err
	}
	pid, convErr := strconv.Atoi(strings.TrimSpace(string(data)))
	if convErr != nil {
		return 0, false, &IOError{Op: "parse-pid", Path: path, Err: convErr}
	}
	return pid, true, nil
}

// RemovePID deletes the pid file, tolerating its absence.
func RemovePID(path string) error {
	return Remove(path)
}

// ProcessAlive reports whether pid refers to a live process on this host.
// Signal 0 only probes existence/permission; it delivers nothing to pid.
// EPERM means the process exists but belongs to another user, so it counts
// as alive.
func ProcessAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
