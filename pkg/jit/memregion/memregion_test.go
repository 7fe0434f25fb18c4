//go:build (linux && arm64) || (darwin && arm64)

// These tests only build for the JIT target platform (spec §3.6 is ARM64-
// only); a non-arm64 CI host simply doesn't compile this file rather than
// running it against the wrong architecture's instruction encoding.

package memregion

import "testing"

func TestCopyCodeAndOverflow(t *testing.T) {
	r, err := New(64, 64, 64)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Free()

	if _, err := r.CopyCode([]byte{0x01, 0x02, 0x03, 0x04}); err != nil {
		t.Fatalf("CopyCode: %v", err)
	}
	big := make([]byte, 1<<20)
	if _, err := r.CopyCode(big); err != ErrCodeOverflow {
		t.Fatalf("expected ErrCodeOverflow, got %v", err)
	}
}

func TestWriteTrampolineAndPatchBL(t *testing.T) {
	r, err := New(64, 64, 64)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Free()

	blOffset, _ := r.CopyCode([]byte{0x00, 0x00, 0x00, 0x94}) // BL #0 placeholder
	stubOffset, err := r.WriteTrampoline(0x1234)
	if err != nil {
		t.Fatalf("WriteTrampoline: %v", err)
	}
	if err := r.PatchBLToTrampoline(blOffset, stubOffset); err != nil {
		t.Fatalf("PatchBLToTrampoline: %v", err)
	}
}

func TestMakeExecutableThenWritableRoundTrips(t *testing.T) {
	r, err := New(64, 64, 64)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Free()

	if err := r.MakeExecutable(); err != nil {
		t.Fatalf("MakeExecutable: %v", err)
	}
	if r.State() != Executable {
		t.Fatalf("expected Executable, got %v", r.State())
	}
	if _, err := r.CopyCode([]byte{0x00}); err != ErrNotWritable {
		t.Fatalf("expected ErrNotWritable while executable, got %v", err)
	}
	if err := r.MakeWritable(); err != nil {
		t.Fatalf("MakeWritable: %v", err)
	}
	if r.State() != Writable {
		t.Fatalf("expected Writable, got %v", r.State())
	}
}

// TESTABLE PROPERTY #8: write-while-Executable and execute-while-Writable
// are reported as two distinct, errors.Is-comparable kinds.
func TestNotWritableAndNotExecutableAreDistinct(t *testing.T) {
	r, err := New(64, 64, 64)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Free()

	if _, err := r.GetFunctionPtr(0); err != ErrNotExecutable {
		t.Fatalf("expected ErrNotExecutable while writable, got %v", err)
	}
	if err := r.MakeExecutable(); err != nil {
		t.Fatalf("MakeExecutable: %v", err)
	}
	if _, err := r.CopyCode([]byte{0x00}); err != ErrNotWritable {
		t.Fatalf("expected ErrNotWritable while executable, got %v", err)
	}
	if ErrNotWritable == ErrNotExecutable {
		t.Fatalf("ErrNotWritable and ErrNotExecutable must be distinct sentinels")
	}
}

func TestFreeIsIdempotentAndInvalidatesPointers(t *testing.T) {
	r, err := New(64, 64, 64)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Free(); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if err := r.Free(); err != nil {
		t.Fatalf("second Free should be a no-op, got %v", err)
	}
	if _, err := r.CopyCode([]byte{0x00}); err != ErrFreed {
		t.Fatalf("expected ErrFreed after Free, got %v", err)
	}
}
