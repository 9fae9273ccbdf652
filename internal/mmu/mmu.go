// Package mmu implements the Memory Manager / MMU (C5): virtual to
// physical translation, lazy frame allocation, FIFO swap victim selection,
// and the read/write flows that route through the L1 write-back cache into
// main or secondary memory.
//
// The Manager owns a single lock covering every shared structure (frame
// table, swap table, free-frame bitmap, cache, stores). The cache's
// dirty-eviction callback re-enters the Manager to write a value back to
// its backing store; rather than a recursive mutex (Go's sync.Mutex is not
// reentrant), the lock is only ever taken by the public entry points, and
// every private helper — including the one the cache calls back into —
// assumes the lock is already held.
package mmu

import (
	"fmt"
	"sync"

	"github.com/JoaquimCruz/Multicore-simulator/internal/cache"
	"github.com/JoaquimCruz/Multicore-simulator/internal/memstore"
	"github.com/JoaquimCruz/Multicore-simulator/internal/pcb"
	"github.com/JoaquimCruz/Multicore-simulator/internal/trace"
)

// PageSize is the fixed page size in bytes (8 words), per spec.md.
const PageSize = 32

// WordsPerPage is PageSize expressed in words.
const WordsPerPage = PageSize / 4

// errAccessError is returned internally when a read targets a virtual page
// that was never written. Callers of Read never see this error value: a
// failed translation reads as zero, per spec.md §4.5 case 4.
var errAccessError = fmt.Errorf("mmu: access error")

type frameOwner struct {
	pid   int
	vpage int
}

type swapKey struct {
	pid   int
	vpage int
}

// Manager is the MMU. Construct with New; it is safe for concurrent use by
// multiple core workers.
type Manager struct {
	*trace.Base

	mu sync.Mutex

	main      *memstore.Store
	secondary *memstore.Store

	mainSizeBytes uint32
	numFrames     int

	freeFrames []bool // true = unused
	frameOwner map[int]frameOwner
	victimPtr  int

	swapTable    map[swapKey]int
	nextSwapWord int

	l1 *cache.Cache

	pcbs map[int]*pcb.PCB
}

// New builds a Manager over mainWords words of main memory and
// secondaryWords words of secondary memory, with the given L1 cache
// capacity.
func New(mainWords, secondaryWords, cacheCapacity int) *Manager {
	mainSizeBytes := uint32(mainWords) * 4
	numFrames := mainWords * 4 / PageSize
	if numFrames < 0 {
		numFrames = 0
	}

	freeFrames := make([]bool, numFrames)
	for i := range freeFrames {
		freeFrames[i] = true
	}

	return &Manager{
		Base:          trace.NewBase("mmu"),
		main:          memstore.New(mainWords),
		secondary:     memstore.New(secondaryWords),
		mainSizeBytes: mainSizeBytes,
		numFrames:     numFrames,
		freeFrames:    freeFrames,
		frameOwner:    make(map[int]frameOwner),
		swapTable:     make(map[swapKey]int),
		l1:            cache.New(cacheCapacity),
		pcbs:          make(map[int]*pcb.PCB),
	}
}

// NumFrames reports the total number of page frames main memory provides.
func (m *Manager) NumFrames() int {
	return m.numFrames
}

// Read performs the MMU read flow: translate, check cache, fall back to
// main/secondary on a miss, and account every counter spec.md §4.5 names
// on the given process's PCB.
func (m *Manager) Read(virtualAddr uint32, p *pcb.PCB) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.registerPCB(p)

	p.Counters.MemAccessesTotal.Add(1)
	p.Counters.MemReads.Add(1)

	physAddr, err := m.translate(virtualAddr, p, false)
	if err != nil {
		return 0
	}

	if value, hit := m.l1.Lookup(physAddr); hit {
		p.Counters.CacheMemAccesses.Add(1)
		p.Counters.MemoryCycles.Add(p.Weights.Cache)
		p.Counters.CacheHits.Add(1)
		return value
	}

	p.Counters.CacheMisses.Add(1)

	value := m.fetchFromBackingStore(physAddr, p)

	m.l1.Insert(physAddr, value, m.writebackSink())

	return value
}

// Write performs the MMU write flow: translate (always succeeding, since
// writes lazily allocate), write through to the backing store, then update
// or insert the cache entry.
func (m *Manager) Write(virtualAddr uint32, value int32, p *pcb.PCB) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.registerPCB(p)

	p.Counters.MemAccessesTotal.Add(1)
	p.Counters.MemWrites.Add(1)

	physAddr, err := m.translate(virtualAddr, p, true)
	if err != nil {
		// Unreachable: writes always lazily allocate. Kept defensive per
		// spec.md §7's "undefined, diagnose and abort" guidance for the
		// mis-sized-swap-area case.
		return
	}

	m.writeToBackingStore(physAddr, value, p)

	if _, hit := m.l1.Lookup(physAddr); hit {
		m.l1.Update(physAddr, value, m.writebackSink())
		p.Counters.CacheHits.Add(1)
	} else {
		m.l1.Insert(physAddr, value, m.writebackSink())
		p.Counters.CacheMisses.Add(1)
	}

	p.Counters.CacheMemAccesses.Add(1)
	p.Counters.MemoryCycles.Add(p.Weights.Cache)
}

// Writeback is the sink the L1 cache calls on a dirty eviction. It is only
// ever invoked from within Read/Write, which already hold m.mu, so it must
// not attempt to re-lock.
func (m *Manager) Writeback(physAddr uint32, value int32) {
	m.writeRawBackingStore(physAddr, value)
}

func (m *Manager) writebackSink() cache.WritebackSink {
	return m.Writeback
}

func (m *Manager) registerPCB(p *pcb.PCB) {
	m.pcbs[p.PID] = p
}

// translate implements spec.md §4.5's four-case translation. The lock is
// assumed held by the caller.
func (m *Manager) translate(virtualAddr uint32, p *pcb.PCB, isWrite bool) (uint32, error) {
	page := int(virtualAddr / PageSize)
	offset := virtualAddr % PageSize

	if frame, ok := p.FrameFor(page); ok {
		return uint32(frame)*PageSize + offset, nil
	}

	if diskAddr, ok := m.swapTable[swapKey{pid: p.PID, vpage: page}]; ok {
		frame := m.allocateFrame()
		m.swapIn(diskAddr, frame)
		delete(m.swapTable, swapKey{pid: p.PID, vpage: page})
		p.MapPage(page, frame)
		m.frameOwner[frame] = frameOwner{pid: p.PID, vpage: page}
		m.InvokeHook(p, trace.SwapIn, frame)
		return uint32(frame)*PageSize + offset, nil
	}

	if isWrite {
		frame := m.allocateFrame()
		p.MapPage(page, frame)
		m.frameOwner[frame] = frameOwner{pid: p.PID, vpage: page}
		return uint32(frame)*PageSize + offset, nil
	}

	m.InvokeHook(p, trace.PageFault, page)
	return 0, errAccessError
}

// allocateFrame scans the free-frame bitmap; if none is free it evicts the
// FIFO victim. Lock assumed held.
func (m *Manager) allocateFrame() int {
	for i, free := range m.freeFrames {
		if free {
			m.freeFrames[i] = false
			return i
		}
	}
	return m.swapOut()
}

// swapOut evicts the FIFO victim frame and returns it for reuse. Lock
// assumed held.
func (m *Manager) swapOut() int {
	if m.numFrames == 0 {
		panic("mmu: swap_out called with zero frames configured")
	}

	victim := m.victimPtr
	m.victimPtr = (m.victimPtr + 1) % m.numFrames

	owner, owned := m.frameOwner[victim]
	if !owned {
		return victim
	}

	words := m.main.ReadBlock(victim*WordsPerPage, WordsPerPage)

	diskAddr := m.nextSwapWord
	m.secondary.WriteBlock(diskAddr, words)
	m.nextSwapWord += WordsPerPage

	m.swapTable[swapKey{pid: owner.pid, vpage: owner.vpage}] = diskAddr

	if owningPCB, ok := m.pcbs[owner.pid]; ok {
		owningPCB.UnmapPage(owner.vpage)
	}

	delete(m.frameOwner, victim)
	m.invalidateFrameCache(victim)

	m.InvokeHook(owner, trace.SwapOut, victim)

	return victim
}

// invalidateFrameCache drops every L1 entry addressed within frame. Called
// once a frame's previous occupant has been swapped out, so whatever reuses
// the frame next — a different page lazily allocated into it, or the same
// page swapped back in by swapIn — can never be shadowed by a cache hit
// still holding the old occupant's value. Lock assumed held.
func (m *Manager) invalidateFrameCache(frame int) {
	base := uint32(frame) * PageSize
	for i := 0; i < WordsPerPage; i++ {
		m.l1.Remove(base + uint32(i)*4)
	}
}

// swapIn copies a page's 8 words from secondary memory back into frame.
// Lock assumed held.
func (m *Manager) swapIn(diskAddr, frame int) {
	words := m.secondary.ReadBlock(diskAddr, WordsPerPage)
	m.main.WriteBlock(frame*WordsPerPage, words)
}

func (m *Manager) fetchFromBackingStore(physAddr uint32, p *pcb.PCB) int32 {
	if physAddr < m.mainSizeBytes {
		p.Counters.PrimaryMemAccesses.Add(1)
		p.Counters.MemoryCycles.Add(p.Weights.Primary)
		return m.main.ReadWord(int(physAddr / 4))
	}

	p.Counters.SecondaryMemAccesses.Add(1)
	p.Counters.MemoryCycles.Add(p.Weights.Secondary)
	return m.secondary.ReadWord(int((physAddr - m.mainSizeBytes) / 4))
}

func (m *Manager) writeToBackingStore(physAddr uint32, value int32, p *pcb.PCB) {
	if physAddr < m.mainSizeBytes {
		p.Counters.PrimaryMemAccesses.Add(1)
		p.Counters.MemoryCycles.Add(p.Weights.Primary)
		m.main.WriteWord(int(physAddr/4), value)
		return
	}

	p.Counters.SecondaryMemAccesses.Add(1)
	p.Counters.MemoryCycles.Add(p.Weights.Secondary)
	m.secondary.WriteWord(int((physAddr-m.mainSizeBytes)/4), value)
}

// writeRawBackingStore is like writeToBackingStore but does not touch any
// PCB counters, since cache-eviction write-backs are not a direct memory
// access made by any particular process's instruction stream.
func (m *Manager) writeRawBackingStore(physAddr uint32, value int32) {
	if physAddr < m.mainSizeBytes {
		m.main.WriteWord(int(physAddr/4), value)
		return
	}
	m.secondary.WriteWord(int((physAddr-m.mainSizeBytes)/4), value)
}
