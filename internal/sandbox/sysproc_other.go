//go:build unix && !linux

package sandbox

import "syscall"

// Namespaces are Linux-only; elsewhere isolation is limited to the process
// group and resource limits.
func sysProcAttr(bool, bool) *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
