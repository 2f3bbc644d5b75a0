//go:build linux

package supervisor

import "syscall"

// procAttr makes the kernel kill llama-server if essaylens dies without
// running Stop, e.g. on SIGKILL.
func procAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Pdeathsig: syscall.SIGKILL}
}
