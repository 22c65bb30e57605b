package session

// Arena is a fixed-capacity pool of preallocated Session Entry records,
// addressed by index rather than pointer so the Flow Table's two slots per
// entry never form a pointer cycle (spec.md §9). It is owned by a single
// core and has no internal synchronization (spec.md §4.C).
type Arena struct {
	entries  []Entry
	freelist []uint32
}

// NewArena preallocates capacity entries and an equal-size freelist.
func NewArena(capacity int) *Arena {
	a := &Arena{
		entries:  make([]Entry, capacity),
		freelist: make([]uint32, capacity),
	}
	for i := range a.entries {
		a.entries[i].index = uint32(i)
		a.freelist[i] = uint32(capacity - 1 - i) // pop order 0..capacity-1
	}
	return a
}

// Capacity returns the total number of entries the arena can hold.
func (a *Arena) Capacity() int { return len(a.entries) }

// Free returns the number of entries currently available for Acquire.
func (a *Arena) Free() int { return len(a.freelist) }

// Acquire returns a zeroed entry, or nil if the arena is full.
func (a *Arena) Acquire() *Entry {
	n := len(a.freelist)
	if n == 0 {
		return nil
	}
	idx := a.freelist[n-1]
	a.freelist = a.freelist[:n-1]
	e := &a.entries[idx]
	e.reset()
	e.inUse = true
	return e
}

// Release zeroes e and returns its slot to the freelist. Releasing an
// entry not owned by this arena, or already released, is a programming
// error and panics rather than corrupting the freelist.
func (a *Arena) Release(e *Entry) {
	if int(e.index) >= len(a.entries) || &a.entries[e.index] != e {
		panic("session: Release of entry not owned by this arena")
	}
	if !e.inUse {
		panic("session: double Release of arena entry")
	}
	e.inUse = false
	idx := e.index
	e.reset()
	a.freelist = append(a.freelist, idx)
}

// At returns the entry at index i, for flow-table slots that store the
// index rather than the pointer.
func (a *Arena) At(i uint32) *Entry {
	return &a.entries[i]
}
