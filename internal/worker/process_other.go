//go:build !unix

package worker

import "syscall"

func detachedProcAttr() *syscall.SysProcAttr {
	return nil
}
