package trending

import "container/heap"

// ranks reports whether a ranks strictly above b: higher score first, lower
// ID on equal scores.
func ranks(a, b ScoredTopic) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Topic.ID < b.Topic.ID
}

// topK keeps the k highest-ranked topics offered to it. The root of the
// underlying min-heap is the lowest-ranked topic retained.
type topK struct {
	items scoredHeap
	k     int
}

func newTopK(k int) *topK {
	return &topK{items: make(scoredHeap, 0, k), k: k}
}

// Offer adds st if there is room or if it outranks the current minimum.
func (t *topK) Offer(st ScoredTopic) {
	if t.items.Len() < t.k {
		heap.Push(&t.items, st)
		return
	}
	if ranks(st, t.items[0]) {
		t.items[0] = st
		heap.Fix(&t.items, 0)
	}
}

// Drain empties the heap and returns its contents best first.
func (t *topK) Drain() []ScoredTopic {
	out := make([]ScoredTopic, t.items.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&t.items).(ScoredTopic)
	}
	return out
}

type scoredHeap []ScoredTopic

func (h scoredHeap) Len() int           { return len(h) }
func (h scoredHeap) Less(i, j int) bool { return ranks(h[j], h[i]) }
func (h scoredHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *scoredHeap) Push(x any) {
	*h = append(*h, x.(ScoredTopic))
}

func (h *scoredHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
