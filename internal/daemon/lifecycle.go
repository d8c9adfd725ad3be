package daemon

import (
	"net"
	"time"
)

// Lifecycle bundles the lock and PID files that fence off concurrent
// daemon instances.
type Lifecycle struct {
	lockFile   *LockFile
	pidFile    *PIDFile
	socketPath string
}

func NewLifecycle(lockPath, pidPath, socketPath string) *Lifecycle {
	return &Lifecycle{
		lockFile:   NewLockFile(lockPath),
		pidFile:    NewPIDFile(pidPath),
		socketPath: socketPath,
	}
}

// Acquire takes the instance lock and records the PID. Fails with
// ErrLockHeld when another daemon is already running.
func (lm *Lifecycle) Acquire() error {
	if err := lm.lockFile.Acquire(); err != nil {
		return err
	}
	if err := lm.pidFile.Write(); err != nil {
		lm.lockFile.Release()
		return err
	}
	return nil
}

// IsSocketResponsive probes whether something is accepting connections on
// the daemon socket.
func (lm *Lifecycle) IsSocketResponsive() bool {
	conn, err := net.DialTimeout("unix", lm.socketPath, 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (lm *Lifecycle) Release() {
	lm.pidFile.Remove()
	lm.lockFile.Release()
}

func (lm *Lifecycle) PIDFile() *PIDFile {
	return lm.pidFile
}
