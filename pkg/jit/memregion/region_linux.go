//go:build linux && arm64

package memregion

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// platformState on Linux holds the single PROT_NONE reservation that code
// and data protection changes carve up in place (spec §4.5: "one contiguous
// reservation at PROT_NONE; code pages are committed RW ... then data pages
// committed RW").
type platformState struct {
	reservation []byte
}

func (r *JitMemoryRegion) alloc() error {
	total := r.codeCapacity + r.trampolineCapacity + r.dataCapacity
	mem, err := unix.Mmap(-1, 0, total, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return fmt.Errorf("%w: mmap reservation: %v", ErrAllocFailed, err)
	}

	codeSpan := r.codeCapacity + r.trampolineCapacity
	if err := unix.Mprotect(mem[:codeSpan], unix.PROT_READ|unix.PROT_WRITE); err != nil {
		_ = unix.Munmap(mem)
		return fmt.Errorf("%w: mprotect code RW: %v", ErrAllocFailed, err)
	}
	if err := unix.Mprotect(mem[codeSpan:], unix.PROT_READ|unix.PROT_WRITE); err != nil {
		_ = unix.Munmap(mem)
		return fmt.Errorf("%w: mprotect data RW: %v", ErrAllocFailed, err)
	}

	r.platform.reservation = mem
	r.codeMem = mem[:codeSpan]
	r.dataMem = mem[codeSpan:]
	r.codeBase = addrOf(r.codeMem)
	r.dataBase = addrOf(r.dataMem)
	return nil
}

func (r *JitMemoryRegion) toggleExec() error {
	codeSpan := r.codeCapacity + r.trampolineCapacity
	if err := unix.Mprotect(r.codeMem[:codeSpan], unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("%w: mprotect RX: %v", ErrAllocFailed, err)
	}
	invalidateICache(r.codeBase, r.codeLen+r.trampolineLen)
	return nil
}

func (r *JitMemoryRegion) toggleWrite() error {
	codeSpan := r.codeCapacity + r.trampolineCapacity
	if err := unix.Mprotect(r.codeMem[:codeSpan], unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("%w: mprotect RW: %v", ErrAllocFailed, err)
	}
	return nil
}

func (r *JitMemoryRegion) release() error {
	if r.platform.reservation == nil {
		return nil
	}
	err := unix.Munmap(r.platform.reservation)
	r.platform.reservation = nil
	return err
}
