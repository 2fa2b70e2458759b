package channel

// Layout of the packed channel word:
//
//	bits  0..31  last accepted edge tick
//	bit   32     seen flag
//	bits 33..63  accepted count
const (
	seenBit    = uint64(1) << 32
	countShift = 33
)

// MaxCount is the largest count a channel can hold. Further accepted edges
// leave it there.
const MaxCount = uint32(1)<<31 - 1

type state struct {
	last  Ticks
	count uint32
	seen  bool
}

func (s state) pack() uint64 {
	w := uint64(s.last) | uint64(s.count)<<countShift
	if s.seen {
		w |= seenBit
	}
	return w
}

func unpack(w uint64) state {
	return state{
		last:  Ticks(uint32(w)),
		count: uint32(w >> countShift),
		seen:  w&seenBit != 0,
	}
}
