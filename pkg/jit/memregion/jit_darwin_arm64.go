//go:build darwin && arm64

package memregion

/*
#include <libkern/OSCacheControl.h>
#include <pthread.h>

static void fbc_jit_write_protect(int enabled) {
	pthread_jit_write_protect_np(enabled);
}
*/
import "C"
import "unsafe"

// jitWriteProtect toggles the calling thread's view of this process's
// MAP_JIT pages between writable (enabled=false) and executable
// (enabled=true), per Apple's hardened-runtime JIT entitlement contract.
func jitWriteProtect(executable bool) {
	if executable {
		C.fbc_jit_write_protect(1)
	} else {
		C.fbc_jit_write_protect(0)
	}
}

// sysICacheInvalidate delegates to the system icache-invalidate primitive
// (spec §4.5: "on Apple, delegate to a system icache-invalidate primitive").
func sysICacheInvalidate(base uintptr, n uintptr) {
	if n == 0 {
		return
	}
	C.sys_icache_invalidate(unsafe.Pointer(base), C.size_t(n))
}
