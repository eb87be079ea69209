//go:build windows

package process

func fakeProcess(pid int) nativeProcess {
	return nativeProcess{pid: uint32(pid)}
}
