package orchestrator

import (
	"sync"

	"github.com/JoaquimCruz/Multicore-simulator/internal/pcb"
)

// blockedList is the dedicated-mutex list every core worker appends a
// process to once it blocks on I/O, and the I/O Worker drains once the
// I/O Manager has transitioned a process back to Ready.
type blockedList struct {
	mu    sync.Mutex
	items []*pcb.PCB
}

func newBlockedList() *blockedList {
	return &blockedList{}
}

func (b *blockedList) Add(p *pcb.PCB) {
	b.mu.Lock()
	b.items = append(b.items, p)
	b.mu.Unlock()
}

// DrainReady removes and returns every entry whose state has transitioned
// to Ready, leaving everything still Blocked in place.
func (b *blockedList) DrainReady() []*pcb.PCB {
	b.mu.Lock()
	defer b.mu.Unlock()

	var ready []*pcb.PCB
	remaining := b.items[:0:0]
	for _, p := range b.items {
		if p.State() == pcb.Ready {
			ready = append(ready, p)
		} else {
			remaining = append(remaining, p)
		}
	}
	b.items = remaining
	return ready
}

func (b *blockedList) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}
