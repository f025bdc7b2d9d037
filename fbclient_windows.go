//go:build windows

package fb

import (
	"syscall"
)

// cLong matches the C long used in ISC_TEB (32-bit on LLP64 Windows).
type cLong = int32

// loadClientLibrary loads fbclient on Windows
func loadClientLibrary(libPath string) (uintptr, error) {
	handle, err := syscall.LoadLibrary(libPath)
	if err != nil {
		return 0, err
	}
	return uintptr(handle), nil
}
