// Package pcb implements the Process Control Block (C6): the per-process
// state and metric counters shared by the scheduler, the pipeline, the MMU
// and the I/O manager. A PCB is a passive data bag — it holds no behavior
// of its own beyond atomic counter bumps and a state-transition guard.
package pcb

import (
	"sync"
	"sync/atomic"

	"github.com/JoaquimCruz/Multicore-simulator/internal/regbank"
)

// State is one of the four places a PCB can be, per spec.md's invariant
// that a PCB is referenced from exactly one of {ready, running, blocked,
// finished} at any instant.
type State int

// The four PCB lifecycle states.
const (
	Ready State = iota
	Running
	Blocked
	Finished
)

func (s State) String() string {
	switch s {
	case Ready:
		return "Ready"
	case Running:
		return "Running"
	case Blocked:
		return "Blocked"
	case Finished:
		return "Finished"
	default:
		return "Unknown"
	}
}

// MemWeights are the per-process cycle costs for each memory tier, so
// differently parameterized processes can model differing memory hardware.
type MemWeights struct {
	Cache     uint64
	Primary   uint64
	Secondary uint64
}

// DefaultMemWeights returns the spec's default weights (cache=1,
// primary=5, secondary=10).
func DefaultMemWeights() MemWeights {
	return MemWeights{Cache: 1, Primary: 5, Secondary: 10}
}

// Counters holds every atomically-incremented metric the spec names.
// There are deliberately no read-modify-write invariants enforced across
// counters: each field is bumped independently, matching the original's
// std::atomic<uint64_t> members.
type Counters struct {
	PipelineCycles     atomic.Uint64
	StageInvocations   atomic.Uint64
	MemReads           atomic.Uint64
	MemWrites          atomic.Uint64
	MemAccessesTotal   atomic.Uint64
	CacheHits          atomic.Uint64
	CacheMisses        atomic.Uint64
	CacheMemAccesses   atomic.Uint64
	PrimaryMemAccesses atomic.Uint64
	SecondaryMemAccesses atomic.Uint64
	MemoryCycles       atomic.Uint64
	IOCycles           atomic.Uint64
}

// PCB is the unit of scheduling and accounting.
type PCB struct {
	PID         int
	Name        string
	ProgramPath string
	Quantum     int
	Priority    int
	BurstTime   int

	Registers *regbank.Bank

	mu        sync.Mutex
	state     State
	pageTable map[int]int // virtual page number -> frame index

	Weights MemWeights

	Counters Counters

	ArrivalTime     uint64
	FirstStartTime  uint64
	FinishTime      uint64
	LastReadyIn     uint64
	CPUTime         uint64
	WaitingTime     uint64
	firstStartSet   bool
}

// New creates a PCB in the Ready state with an empty page table and
// default memory weights.
func New(pid int, name, programPath string, quantum, priority, burstTime int) *PCB {
	return &PCB{
		PID:         pid,
		Name:        name,
		ProgramPath: programPath,
		Quantum:     quantum,
		Priority:    priority,
		BurstTime:   burstTime,
		Registers:   regbank.New(),
		state:       Ready,
		pageTable:   make(map[int]int),
		Weights:     DefaultMemWeights(),
	}
}

// State returns the PCB's current lifecycle state.
func (p *PCB) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SetState transitions the PCB to a new state. Callers are expected to
// hold whichever external lock (scheduler, blocked list) currently "owns"
// the PCB, per spec.md's single-owner invariant; this just makes the
// write itself atomic with respect to concurrent State() reads.
func (p *PCB) SetState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// FrameFor returns the frame index mapped to virtual page vpage, and
// whether the mapping exists.
func (p *PCB) FrameFor(vpage int) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.pageTable[vpage]
	return f, ok
}

// MapPage installs a virtual page -> frame mapping.
func (p *PCB) MapPage(vpage, frame int) {
	p.mu.Lock()
	p.pageTable[vpage] = frame
	p.mu.Unlock()
}

// UnmapPage removes a virtual page's mapping, used when a page is swapped
// out of its frame.
func (p *PCB) UnmapPage(vpage int) {
	p.mu.Lock()
	delete(p.pageTable, vpage)
	p.mu.Unlock()
}

// PageTableSnapshot copies the current virtual page -> frame map, for
// diagnostics and tests. Mutating the result does not affect the PCB.
func (p *PCB) PageTableSnapshot() map[int]int {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := make(map[int]int, len(p.pageTable))
	for k, v := range p.pageTable {
		snap[k] = v
	}
	return snap
}

// MarkFirstStart records FirstStartTime the first time it is called, and
// is a no-op on subsequent calls, matching the scheduler's "set
// first_start_time if unset" rule.
func (p *PCB) MarkFirstStart(now uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.firstStartSet {
		p.FirstStartTime = now
		p.firstStartSet = true
	}
}

// AddWaiting adds delta to the PCB's accumulated waiting time.
func (p *PCB) AddWaiting(delta uint64) {
	p.mu.Lock()
	p.WaitingTime += delta
	p.mu.Unlock()
}

// Turnaround returns FinishTime - ArrivalTime. Callers must only call this
// after the PCB has finished.
func (p *PCB) Turnaround() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FinishTime < p.ArrivalTime {
		return 0
	}
	return p.FinishTime - p.ArrivalTime
}
