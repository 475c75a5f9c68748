//go:build darwin || freebsd || openbsd || netbsd || dragonfly

package membudget

import "golang.org/x/sys/unix"

// sysctl names holding physical memory in bytes, tried in order.
var memSysctls = []string{"hw.memsize", "hw.physmem", "hw.realmem"}

func totalSystemMemory() (uint64, bool) {
	for _, name := range memSysctls {
		if mem, err := unix.SysctlUint64(name); err == nil && mem > 0 {
			return mem, true
		}
	}
	return 0, false
}
