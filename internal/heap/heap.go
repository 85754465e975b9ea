// Package heap implements the reallocatable-string heap of spec §3
// "Heap" and §4.B: power-of-two size classes, 33 free lists, bump
// allocation, and amortized O(1) reallocation without unbounded
// fragmentation.
package heap

import (
	"fmt"
	"math/bits"

	"basiccore/internal/errors"
)

// NumClasses is the number of size classes (0..32), per spec §3.
const NumClasses = 33

// StackNeeded is the fixed headroom the allocator keeps clear between
// the heap watermark and the control stack (spec §4.B step 5).
const StackNeeded = 256

// block is a free (or live) allocation: an offset into the heap's
// backing store plus the size class it was allocated for.
type block struct {
	offset int
	class  int
}

// Descriptor is the owner-side handle a caller holds for a live
// string allocation: its backing offset, live length and size class.
// Exactly one Descriptor owns a given block at a time (spec invariant
// 6: heap-owned strings have a unique owner).
type Descriptor struct {
	Offset int
	Length int
	class  int
	owned  bool
}

// Heap is a bump allocator over a single growable byte buffer with
// size-class free lists, matching the teacher's preference for a
// growable backing slice (sentra/internal/vm's StackManager) rather
// than per-object allocation.
type Heap struct {
	data      []byte
	pfree     int // bump watermark; data[:pfree] is "in play"
	freeLists [NumClasses][]block
	stackTop  func() int // current control-stack floor, queried live
}

// New creates a heap backed by an initial buffer of the given
// capacity. stackTop reports the current lowest address in use by the
// control stack, so the allocator can refuse to grow past it.
func New(capacity int, stackTop func() int) *Heap {
	if stackTop == nil {
		stackTop = func() int { return capacity }
	}
	return &Heap{data: make([]byte, capacity), stackTop: stackTop}
}

// classFor returns the size class whose capacity (2^k - 1) is the
// smallest that can hold n bytes (spec invariant 4).
func classFor(n int) int {
	if n <= 0 {
		return 0
	}
	// capacity(k) = 2^k - 1 >= n  =>  2^k >= n+1
	return bits.Len(uint(n))
}

func capacity(class int) int { return (1 << uint(class)) - 1 }

// Allocate implements the §4.B contract: release whatever desc
// currently owns (if any) and return a writable buffer of exactly
// newLen bytes, updating desc in place.
func (h *Heap) Allocate(desc *Descriptor, newLen int) ([]byte, error) {
	newClass := classFor(newLen)

	// Step 1: same class, keep the block, just shrink/grow the length.
	if desc.owned && desc.class == newClass {
		desc.Length = newLen
		return h.data[desc.Offset : desc.Offset+newLen], nil
	}

	oldOffset, oldClass, hadBlock := desc.Offset, desc.class, desc.owned

	// Step 2: swap with a free block of the target class.
	if n := len(h.freeLists[newClass]); n > 0 {
		b := h.freeLists[newClass][n-1]
		h.freeLists[newClass] = h.freeLists[newClass][:n-1]
		if hadBlock {
			h.free(oldOffset, oldClass)
		}
		desc.Offset, desc.class, desc.Length, desc.owned = b.offset, newClass, newLen, true
		return h.data[b.offset : b.offset+newLen], nil
	}

	// Step 3: grow in place if the old block is at the heap's top.
	if hadBlock && oldOffset+capacity(oldClass) == h.pfree {
		need := capacity(newClass) - capacity(oldClass)
		if err := h.bump(need); err != nil {
			return nil, err
		}
		desc.class, desc.Length = newClass, newLen
		return h.data[oldOffset : oldOffset+newLen], nil
	}

	// Step 4: bump-allocate a fresh block, freeing the old one.
	off := h.pfree
	if err := h.bump(capacity(newClass)); err != nil {
		return nil, err
	}
	if hadBlock {
		h.free(oldOffset, oldClass)
	}
	desc.Offset, desc.class, desc.Length, desc.owned = off, newClass, newLen, true
	return h.data[off : off+newLen], nil
}

// bump grows the watermark by n bytes, refusing to collide with the
// control stack minus StackNeeded headroom (spec §4.B step 5), and
// growing the backing array if necessary.
func (h *Heap) bump(n int) error {
	if h.pfree+n > h.stackTop()-StackNeeded {
		return errors.New(errors.NoRoom, 0)
	}
	if h.pfree+n > len(h.data) {
		grown := make([]byte, 2*(h.pfree+n))
		copy(grown, h.data)
		h.data = grown
	}
	h.pfree += n
	return nil
}

// free pushes a block back onto its size class's free list.
func (h *Heap) free(offset, class int) {
	h.freeLists[class] = append(h.freeLists[class], block{offset: offset, class: class})
}

// Free releases desc's block entirely, e.g. when a LOCAL variable
// goes out of scope.
func (h *Heap) Free(desc *Descriptor) {
	if !desc.owned {
		return
	}
	h.free(desc.Offset, desc.class)
	*desc = Descriptor{}
}

// Read returns the live bytes owned by desc.
func (h *Heap) Read(desc Descriptor) []byte {
	return h.data[desc.Offset : desc.Offset+desc.Length]
}

// Watermark returns pfree, the current heap bump-allocator high
// point, used by *STATUS diagnostics and tests asserting spec §8's
// heap bound.
func (h *Heap) Watermark() int { return h.pfree }

// Stats summarizes heap usage for diagnostics (internal/host's
// *STATUS command humanizes these via go-humanize).
type Stats struct {
	Watermark  int
	Capacity   int
	FreeBlocks int
}

func (h *Heap) Stats() Stats {
	n := 0
	for _, fl := range h.freeLists {
		n += len(fl)
	}
	return Stats{Watermark: h.pfree, Capacity: len(h.data), FreeBlocks: n}
}

func (h *Heap) String() string {
	s := h.Stats()
	return fmt.Sprintf("heap: %d/%d bytes, %d free blocks", s.Watermark, s.Capacity, s.FreeBlocks)
}
