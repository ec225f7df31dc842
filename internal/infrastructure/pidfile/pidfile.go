// Package pidfile enforces the single-instance rule for the engine
// daemon: Acquire refuses to start while a live process holds the
// file, and sweeps aside stale files a crashed run left behind.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// PIDFile is one on-disk lock file holding the owning process id
type PIDFile struct {
	path string
}

// New creates a handle on the pid file path; nothing touches the disk
// until Acquire.
func New(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Acquire claims the pid file for this process. A file owned by a live
// process is a hard refusal; unparsable or stale files are removed and
// the claim proceeds.
func (p *PIDFile) Acquire() error {
	if data, err := os.ReadFile(p.path); err == nil {
		pid, parseErr := strconv.Atoi(strings.TrimSpace(string(data)))
		if parseErr == nil && alive(pid) {
			return fmt.Errorf("engine already running under pid %d (%s)", pid, p.path)
		}
		_ = os.Remove(p.path)
	}

	if err := os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return fmt.Errorf("claim pid file %s: %w", p.path, err)
	}
	return nil
}

// Release drops the pid file; a missing file is not an error
func (p *PIDFile) Release() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove pid file %s: %w", p.path, err)
	}
	return nil
}

// alive probes the pid with signal 0. EPERM still means a live
// process, just one owned by another user.
func alive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
