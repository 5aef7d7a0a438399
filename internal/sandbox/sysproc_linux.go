//go:build linux

package sandbox

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

func sysProcAttr(isolateNetwork, confine bool) *syscall.SysProcAttr {
	attr := &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	var flags uintptr
	if isolateNetwork {
		flags |= unix.CLONE_NEWNET | unix.CLONE_NEWIPC | unix.CLONE_NEWUTS
	}
	if confine {
		flags |= unix.CLONE_NEWNS
	}
	if flags == 0 {
		return attr
	}
	// An unprivileged user namespace lets the child own the other namespaces
	// without CAP_SYS_ADMIN on the host.
	attr.Cloneflags = flags | unix.CLONE_NEWUSER

	// The confinement helper runs as root of the namespace so it keeps its
	// capabilities across its own exec; it drops them before exec'ing the
	// target.
	uid, gid := os.Getuid(), os.Getgid()
	if confine {
		uid, gid = 0, 0
	}
	attr.UidMappings = []syscall.SysProcIDMap{{ContainerID: uid, HostID: os.Getuid(), Size: 1}}
	attr.GidMappings = []syscall.SysProcIDMap{{ContainerID: gid, HostID: os.Getgid(), Size: 1}}
	attr.GidMappingsEnableSetgroups = false
	return attr
}
