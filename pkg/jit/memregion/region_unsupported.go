//go:build !((linux && arm64) || (darwin && arm64))

package memregion

import "errors"

// platformState is empty on unsupported targets: the JIT backend is ARM64
// only (spec §3.6), so every other platform/arch combination fails cleanly
// at New() rather than offering a degraded implementation.
type platformState struct{}

var errUnsupportedPlatform = errors.New("memregion: JIT code generation is only supported on linux/arm64 and darwin/arm64")

func (r *JitMemoryRegion) alloc() error        { return errUnsupportedPlatform }
func (r *JitMemoryRegion) toggleExec() error   { return errUnsupportedPlatform }
func (r *JitMemoryRegion) toggleWrite() error  { return errUnsupportedPlatform }
func (r *JitMemoryRegion) release() error      { return nil }
