//go:build windows

package daemon

import (
	"syscall"
)

// processExists reports whether a process with the given PID exists by
// opening it with the minimum access right that allows the check.
func processExists(pid int) bool {
	// PROCESS_QUERY_LIMITED_INFORMATION
	const processQueryLimitedInformation = 0x1000

	h, err := syscall.OpenProcess(processQueryLimitedInformation, false, uint32(pid))
	if err != nil {
		return false
	}
	syscall.CloseHandle(h)
	return true
}
