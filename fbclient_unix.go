//go:build !windows

package fb

import (
	"github.com/ebitengine/purego"
)

// cLong matches the C long used in ISC_TEB (64-bit on LP64 Unix).
type cLong = int64

// loadClientLibrary loads fbclient on Unix-like systems
func loadClientLibrary(libPath string) (uintptr, error) {
	return purego.Dlopen(libPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
}
