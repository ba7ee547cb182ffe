//go:build windows

package client

import "syscall"

// detachedSysProcAttr detaches the spawned daemon from the parent's
// console so it survives the spawning process exiting.
func detachedSysProcAttr() *syscall.SysProcAttr {
	return DetachedSysProcAttr()
}

// DetachedSysProcAttr is the exported form of detachedSysProcAttr, reused
// by `acd daemon start --detach` to re-exec itself without a controlling
// terminal.
func DetachedSysProcAttr() *syscall.SysProcAttr {
	const createNewProcessGroup = 0x00000200
	const detachedProcess = 0x00000008
	return &syscall.SysProcAttr{CreationFlags: createNewProcessGroup | detachedProcess}
}
