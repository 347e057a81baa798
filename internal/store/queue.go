package store

import "container/heap"

// queueItem is a single entry in the ready queue. The sequence number makes
// ordering deterministic: equal priorities dequeue in insertion order.
type queueItem struct {
	taskID   string
	priority int
	seq      uint64
}

// priorityQueue implements heap.Interface ordered by ascending priority
// (lower = more urgent) with FIFO tie-breaking.
type priorityQueue struct {
	items   []queueItem
	nextSeq uint64
}

func (q *priorityQueue) Len() int { return len(q.items) }

func (q *priorityQueue) Less(i, j int) bool {
	if q.items[i].priority != q.items[j].priority {
		return q.items[i].priority < q.items[j].priority
	}
	return q.items[i].seq < q.items[j].seq
}

func (q *priorityQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

func (q *priorityQueue) Push(x any) {
	q.items = append(q.items, x.(queueItem))
}

func (q *priorityQueue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	q.items = old[:n-1]
	return item
}

// push enqueues a task id at the given priority.
func (q *priorityQueue) push(taskID string, priority int) {
	heap.Push(q, queueItem{taskID: taskID, priority: priority, seq: q.nextSeq})
	q.nextSeq++
}

// pop removes and returns the most urgent entry.
func (q *priorityQueue) pop() (queueItem, bool) {
	if q.Len() == 0 {
		return queueItem{}, false
	}
	return heap.Pop(q).(queueItem), true
}
