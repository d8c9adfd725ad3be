package daemon

import (
	"errors"
	"fmt"
	"os"
)

// ErrLockHeld means another daemon instance holds the lock.
var ErrLockHeld = errors.New("daemon already running (lock held)")

// LockFile guards against two daemons serving the same socket. The lock is
// advisory and released by the OS if the process dies, so a crashed daemon
// never wedges the next start.
type LockFile struct {
	path string
	file *os.File
}

func NewLockFile(path string) *LockFile {
	return &LockFile{path: path}
}

func (l *LockFile) Acquire() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := l.platformLock(f); err != nil {
		f.Close()
		return err
	}

	l.file = f
	return nil
}

func (l *LockFile) Release() error {
	if l.file == nil {
		return nil
	}

	l.platformUnlock(l.file)

	err := l.file.Close()
	l.file = nil

	os.Remove(l.path)
	return err
}

func (l *LockFile) IsLocked() bool {
	return l.file != nil
}
