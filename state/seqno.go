package state

// Sequence numbers are 64 bit and never wrap within a simulation, so plain ordering is used.

func SeqnoGt(a, b uint64) bool {
	return a > b
}

// SequenceTracker holds the highest sequence number accepted from each source.
type SequenceTracker map[NodeId]uint64

func NewSequenceTracker() SequenceTracker {
	return make(SequenceTracker)
}

// Get returns the high-water mark for src, and whether src has been heard from.
func (t SequenceTracker) Get(src NodeId) (uint64, bool) {
	seq, ok := t[src]
	return seq, ok
}

// Newer reports whether seq from src would be accepted: src unseen, or seq strictly greater.
func (t SequenceTracker) Newer(src NodeId, seq uint64) bool {
	last, ok := t[src]
	return !ok || SeqnoGt(seq, last)
}

// Accept raises the high-water mark for src. It never lowers it.
func (t SequenceTracker) Accept(src NodeId, seq uint64) {
	if t.Newer(src, seq) {
		t[src] = seq
	}
}

// Gap returns how many sequence numbers are missing between the mark for src and seq.
// Sources start counting at 1, so an unseen source is missing everything before seq.
func (t SequenceTracker) Gap(src NodeId, seq uint64) uint64 {
	last := t[src]
	if seq <= last+1 {
		return 0
	}
	return seq - last - 1
}

func (t SequenceTracker) Clone() SequenceTracker {
	c := make(SequenceTracker, len(t))
	for k, v := range t {
		c[k] = v
	}
	return c
}
