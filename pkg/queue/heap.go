package queue

import (
	"sort"

	"github.com/cuemby/judgehost/pkg/types"
)

// jobHeap orders queued jobs by priority descending, then enqueue sequence
// ascending (FIFO within a priority), satisfying container/heap.Interface.
type jobHeap []*types.Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].Seq() < h[j].Seq()
}

func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x any) {
	*h = append(*h, x.(*types.Job))
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// indexOf returns the slice index of the job with the given ID, or -1.
func (h jobHeap) indexOf(jobID string) int {
	for i, job := range h {
		if job.JobID == jobID {
			return i
		}
	}
	return -1
}

// sortedCopy sorts a copy of the heap's contents into true scheduling
// order (priority desc, seq asc), since the raw heap slice only satisfies
// the weaker heap-property invariant.
func sortedCopy(h jobHeap) jobHeap {
	sort.Slice(h, func(i, j int) bool { return h.Less(i, j) })
	return h
}
