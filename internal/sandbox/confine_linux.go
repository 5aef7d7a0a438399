//go:build linux

package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"
)

const selfExe = "/proc/self/exe"

// systemPaths are bound read-only into every confined root when present.
var systemPaths = []string{"/bin", "/sbin", "/usr", "/lib", "/lib32", "/lib64", "/libx32", "/etc"}

// devices are bound into /dev of every confined root when present.
var devices = []string{"/dev/null", "/dev/zero", "/dev/random", "/dev/urandom"}

// statfs flags that an unprivileged remount must carry over.
var lockedFlags = map[int64]uintptr{
	unix.ST_NOSUID:     unix.MS_NOSUID,
	unix.ST_NODEV:      unix.MS_NODEV,
	unix.ST_NOEXEC:     unix.MS_NOEXEC,
	unix.ST_NOATIME:    unix.MS_NOATIME,
	unix.ST_NODIRATIME: unix.MS_NODIRATIME,
	unix.ST_RELATIME:   unix.MS_RELATIME,
}

// secureBits makes uid 0 ordinary for capability purposes and locks that in:
// SECBIT_NOROOT, SECBIT_NO_SETUID_FIXUP and SECBIT_KEEP_CAPS_LOCKED, with
// the first two locked.
const secureBits = 0x2f

func confinementSupported() error { return nil }

// enter runs in the helper, inside fresh user and mount namespaces. It
// replaces the root with a tmpfs that holds read-only binds of the system
// and artifact paths plus a writable bind of Workdir, drops every
// capability and execs argv.
func (c *confinement) enter(argv []string) error {
	if err := c.buildRoot(); err != nil {
		return err
	}
	if err := unix.Chroot(c.Root); err != nil {
		return fmt.Errorf("chroot: %w", err)
	}
	if err := unix.Chdir(c.Workdir); err != nil {
		return fmt.Errorf("chdir %s: %w", c.Workdir, err)
	}
	if err := dropPrivileges(); err != nil {
		return err
	}
	if err := c.applyLimits(); err != nil {
		return err
	}
	unix.CloseOnExec(statusFD)
	if err := syscall.Exec(argv[0], argv, os.Environ()); err != nil {
		return fmt.Errorf("exec %s: %w", argv[0], err)
	}
	return nil
}

func (c *confinement) buildRoot() error {
	if err := unix.Mount("", "/", "", unix.MS_REC|unix.MS_PRIVATE, ""); err != nil {
		return fmt.Errorf("making mounts private: %w", err)
	}
	if err := unix.Mount("tmpfs", c.Root, "tmpfs", unix.MS_NOSUID|unix.MS_NODEV, "mode=0755,size=16m"); err != nil {
		return fmt.Errorf("mounting root tmpfs: %w", err)
	}
	for _, p := range append(append([]string(nil), systemPaths...), c.ReadOnly...) {
		if err := c.bind(p, true); err != nil {
			return err
		}
	}
	for _, d := range devices {
		if err := c.bind(d, false); err != nil {
			return err
		}
	}
	return c.bind(c.Workdir, false)
}

// bind mirrors the host path src at the same path under Root. Missing paths
// are skipped and symlinks are recreated rather than followed.
func (c *confinement) bind(src string, readOnly bool) error {
	info, err := os.Lstat(src)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	dst := filepath.Join(c.Root, src)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}

	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		if err := os.Symlink(target, dst); err != nil && !errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("linking %s: %w", dst, err)
		}
		return nil
	case info.IsDir():
		if err := os.MkdirAll(dst, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dst, err)
		}
	default:
		f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("creating %s: %w", dst, err)
		}
		_ = f.Close()
	}

	if err := unix.Mount(src, dst, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return fmt.Errorf("binding %s: %w", src, err)
	}
	if !readOnly {
		return nil
	}
	var st unix.Statfs_t
	if err := unix.Statfs(dst, &st); err != nil {
		return fmt.Errorf("statfs %s: %w", dst, err)
	}
	flags := uintptr(unix.MS_BIND | unix.MS_REMOUNT | unix.MS_RDONLY)
	for stFlag, msFlag := range lockedFlags {
		if int64(st.Flags)&stFlag != 0 {
			flags |= msFlag
		}
	}
	if err := unix.Mount("", dst, "", flags, ""); err != nil {
		return fmt.Errorf("remounting %s read-only: %w", src, err)
	}
	return nil
}

func dropPrivileges() error {
	if err := unix.Prctl(unix.PR_SET_SECUREBITS, secureBits, 0, 0, 0); err != nil {
		return fmt.Errorf("setting securebits: %w", err)
	}
	for capability := 0; capability < 64; capability++ {
		err := unix.Prctl(unix.PR_CAPBSET_DROP, uintptr(capability), 0, 0, 0)
		if err != nil && !errors.Is(err, unix.EINVAL) {
			return fmt.Errorf("dropping bounding capability %d: %w", capability, err)
		}
	}
	if err := unix.Prctl(unix.PR_CAP_AMBIENT, unix.PR_CAP_AMBIENT_CLEAR_ALL, 0, 0, 0); err != nil && !errors.Is(err, unix.EINVAL) {
		return fmt.Errorf("clearing ambient capabilities: %w", err)
	}
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("setting no_new_privs: %w", err)
	}
	hdr := unix.CapUserHeader{Version: unix.LINUX_CAPABILITY_VERSION_3}
	var data [2]unix.CapUserData
	if err := unix.Capset(&hdr, &data[0]); err != nil {
		return fmt.Errorf("clearing capabilities: %w", err)
	}
	return nil
}

func (c *confinement) applyLimits() error {
	if c.AddrSpace > 0 {
		if err := unix.Setrlimit(unix.RLIMIT_AS, &unix.Rlimit{Cur: c.AddrSpace, Max: c.AddrSpace}); err != nil {
			return fmt.Errorf("limiting address space: %w", err)
		}
	}
	if c.CPU > 0 {
		if err := unix.Setrlimit(unix.RLIMIT_CPU, &unix.Rlimit{Cur: c.CPU, Max: c.CPU}); err != nil {
			return fmt.Errorf("limiting cpu time: %w", err)
		}
	}
	return nil
}
