package sim

import (
	"fmt"
	"sync/atomic"
)

// Handle is an opaque reference to an entity stored in a Registry.
// It pairs the arena slot with the epoch of the registry that minted it,
// so a handle from another registry is rejected instead of aliasing a
// foreign slot. The zero Handle refers to nothing.
type Handle struct {
	index uint32
	gen   uint32
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool {
	return h.gen == 0
}

func (h Handle) String() string {
	if h.IsZero() {
		return "#none"
	}
	return fmt.Sprintf("#%d.%d", h.gen, h.index)
}

// epochs hands out registry epochs. Zero is reserved for the zero Handle.
var epochs atomic.Uint32

func nextEpoch() uint32 {
	for {
		if e := epochs.Add(1); e != 0 {
			return e
		}
	}
}
