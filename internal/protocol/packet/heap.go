package packet

import "container/heap"

// ReorderHeap is a min-heap of packets ordered by sequence number, with a
// side-index set of contained sequence numbers for O(1) membership tests.
// It is the receive-side buffer described in Section 4.2: packets that
// cannot yet be delivered in order are parked here until the sequence
// number they complete becomes the next expected one.
type ReorderHeap struct {
	items   packetHeap
	present map[uint32]struct{}
}

// NewReorderHeap returns an empty ReorderHeap.
func NewReorderHeap() *ReorderHeap {
	return &ReorderHeap{
		present: make(map[uint32]struct{}),
	}
}

// packetHeap implements container/heap.Interface, ordering by sequence
// number only (Packet.Compare).
type packetHeap []*Packet

func (h packetHeap) Len() int            { return len(h) }
func (h packetHeap) Less(i, j int) bool  { return Compare(h[i], h[j]) < 0 }
func (h packetHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *packetHeap) Push(x interface{}) { *h = append(*h, x.(*Packet)) }
func (h *packetHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Len returns the number of packets currently buffered.
func (h *ReorderHeap) Len() int {
	return h.items.Len()
}

// Contains reports whether a packet with the given sequence number is
// currently in the heap.
func (h *ReorderHeap) Contains(seqnum uint32) bool {
	_, ok := h.present[seqnum]
	return ok
}

// Push inserts a packet into the heap. A packet whose sequence number is
// already present is rejected (false) and left untouched, matching the
// invariant that the index set has no duplicates.
func (h *ReorderHeap) Push(p *Packet) bool {
	if h.Contains(p.SequenceNumber) {
		return false
	}
	heap.Push(&h.items, p)
	h.present[p.SequenceNumber] = struct{}{}
	return true
}

// Peek returns the packet with the smallest sequence number without
// removing it, or nil if the heap is empty.
func (h *ReorderHeap) Peek() *Packet {
	if h.items.Len() == 0 {
		return nil
	}
	return h.items[0]
}

// PopMin removes and returns the packet with the smallest sequence
// number, or nil if the heap is empty.
func (h *ReorderHeap) PopMin() *Packet {
	if h.items.Len() == 0 {
		return nil
	}
	p := heap.Pop(&h.items).(*Packet)
	delete(h.present, p.SequenceNumber)
	return p
}

// TryPopFragmentGroup attempts to pop a complete, contiguous fragment
// group starting at seqnum. It succeeds only when the heap's minimum has
// sequence number equal to seqnum and every sequence number in
// [seqnum, seqnum+more_fragments] is present in the heap. On success the
// fragments are removed and returned in ascending order; on failure the
// heap is left untouched and nil is returned.
func (h *ReorderHeap) TryPopFragmentGroup(seqnum uint32) []*Packet {
	min := h.Peek()
	if min == nil || min.SequenceNumber != seqnum {
		return nil
	}

	count := min.MoreFragments + 1
	for i := 0; i < count; i++ {
		if !h.Contains(seqnum + uint32(i)) {
			return nil
		}
	}

	group := make([]*Packet, 0, count)
	for i := 0; i < count; i++ {
		group = append(group, h.PopMin())
	}
	return group
}
