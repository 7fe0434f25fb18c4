//go:build linux && arm64

package memregion

import "unsafe"

// invalidateICache runs the DC CVAU / DSB ISH / IC IVAU / DSB ISH / ISB
// sequence across 64-byte cache lines covering [base, base+n) (spec §4.5).
// Those are ARM64 system instructions with no syscall or x/sys/unix
// wrapper, so they're implemented directly in icache_linux_arm64.s and
// declared here with no body, same as the runtime's own asm-backed helpers.
func invalidateICache(base uintptr, n int) {
	if n <= 0 {
		return
	}
	const lineSize = 64
	start := base &^ (lineSize - 1)
	end := base + uintptr(n)
	for addr := start; addr < end; addr += lineSize {
		dcCVAU(addr)
	}
	dsbISH()
	for addr := start; addr < end; addr += lineSize {
		icIVAU(addr)
	}
	dsbISH()
	isb()
}

func dcCVAU(addr uintptr)
func icIVAU(addr uintptr)
func dsbISH()
func isb()

func addrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
