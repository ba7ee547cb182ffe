//go:build unix

package client

import "syscall"

// detachedSysProcAttr puts the spawned daemon in its own session so it
// survives the spawning process (e.g. a Claude Code hook invocation)
// exiting.
func detachedSysProcAttr() *syscall.SysProcAttr {
	return DetachedSysProcAttr()
}

// DetachedSysProcAttr is the exported form of detachedSysProcAttr, reused
// by `acd daemon start --detach` to re-exec itself without a controlling
// terminal.
func DetachedSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
