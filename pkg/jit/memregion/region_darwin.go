//go:build darwin && arm64

package memregion

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// platformState on Apple platforms holds the two mappings spec §3.6/§4.5
// require: a MAP_JIT code+trampoline region, toggled RW/RX per-thread, and
// a separate always-RW data mapping.
type platformState struct {
	codeRegion []byte
	dataRegion []byte
}

const mapJIT = 0x0800 // MAP_JIT, not exposed by x/sys/unix on darwin

func (r *JitMemoryRegion) alloc() error {
	codeSpan := r.codeCapacity + r.trampolineCapacity

	code, err := unix.Mmap(-1, 0, codeSpan, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON|mapJIT)
	if err != nil {
		return fmt.Errorf("%w: mmap MAP_JIT code region: %v", ErrAllocFailed, err)
	}

	data, err := unix.Mmap(-1, 0, r.dataCapacity, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		_ = unix.Munmap(code)
		return fmt.Errorf("%w: mmap data region: %v", ErrAllocFailed, err)
	}

	r.platform.codeRegion = code
	r.platform.dataRegion = data
	r.codeMem = code
	r.dataMem = data
	r.codeBase = addrOf(code)
	r.dataBase = addrOf(data)
	return nil
}

// toggleExec flips the current thread's view of the MAP_JIT pages to RX via
// pthread_jit_write_protect_np, then invalidates the instruction cache over
// the written extent. Neither primitive has an x/sys/unix wrapper, so both
// are reached the way the teacher's pkg/cpu/hibernate.go drops to a raw,
// explicit mechanism when stdlib doesn't hand one to it directly.
func (r *JitMemoryRegion) toggleExec() error {
	jitWriteProtect(true)
	sysICacheInvalidate(r.codeBase, uintptr(r.codeLen+r.trampolineLen))
	return nil
}

func (r *JitMemoryRegion) toggleWrite() error {
	jitWriteProtect(false)
	return nil
}

func (r *JitMemoryRegion) release() error {
	var err error
	if r.platform.codeRegion != nil {
		if e := unix.Munmap(r.platform.codeRegion); e != nil {
			err = e
		}
		r.platform.codeRegion = nil
	}
	if r.platform.dataRegion != nil {
		if e := unix.Munmap(r.platform.dataRegion); e != nil {
			err = e
		}
		r.platform.dataRegion = nil
	}
	return err
}

func addrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
