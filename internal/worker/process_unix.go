//go:build unix

package worker

import "syscall"

// detachedProcAttr помещает анализатор в собственную группу процессов,
// чтобы сигналы терминала consumer'а до него не доходили.
func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
