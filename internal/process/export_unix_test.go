//go:build !windows

package process

func fakeProcess(pid int) nativeProcess {
	return nativeProcess{pid: pid}
}
