package alarm

import (
	"container/heap"
	"time"
)

// TriggerClock owns the ordered set of (reminder id, trigger instant) pairs.
// It is a plain data structure: the engine serializes access and owns the
// actual wait. At most one entry per reminder id can be live.
type TriggerClock struct {
	entries triggerHeap
	byID    map[uint]*triggerEntry
}

type triggerEntry struct {
	id    uint
	at    time.Time
	index int
}

// DueEntry is one reminder the clock reports as due.
type DueEntry struct {
	ID uint
	At time.Time
}

func NewTriggerClock() *TriggerClock {
	return &TriggerClock{byID: make(map[uint]*triggerEntry)}
}

// Upsert schedules the reminder at the given instant, replacing any existing
// entry for the same id.
func (c *TriggerClock) Upsert(id uint, at time.Time) {
	if e, ok := c.byID[id]; ok {
		e.at = at
		heap.Fix(&c.entries, e.index)
		return
	}
	e := &triggerEntry{id: id, at: at}
	c.byID[id] = e
	heap.Push(&c.entries, e)
}

// Remove drops the entry for id, reporting whether one existed.
func (c *TriggerClock) Remove(id uint) bool {
	e, ok := c.byID[id]
	if !ok {
		return false
	}
	delete(c.byID, id)
	heap.Remove(&c.entries, e.index)
	return true
}

// Contains reports whether id has a live entry.
func (c *TriggerClock) Contains(id uint) bool {
	_, ok := c.byID[id]
	return ok
}

func (c *TriggerClock) Len() int {
	return len(c.entries)
}

// Earliest returns the earliest pending trigger instant.
func (c *TriggerClock) Earliest() (time.Time, bool) {
	if len(c.entries) == 0 {
		return time.Time{}, false
	}
	return c.entries[0].at, true
}

// Due pops every entry with trigger instant at or before now, ordered by
// (instant, id). There may be more than one when triggers coincide or the
// process resumed late; presentation order is the dispatcher's call.
func (c *TriggerClock) Due(now time.Time) []DueEntry {
	var due []DueEntry
	for len(c.entries) > 0 && !c.entries[0].at.After(now) {
		e := heap.Pop(&c.entries).(*triggerEntry)
		delete(c.byID, e.id)
		due = append(due, DueEntry{ID: e.id, At: e.at})
	}
	return due
}

type triggerHeap []*triggerEntry

func (h triggerHeap) Len() int { return len(h) }

func (h triggerHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].id < h[j].id
	}
	return h[i].at.Before(h[j].at)
}

func (h triggerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *triggerHeap) Push(x any) {
	e := x.(*triggerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *triggerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}
