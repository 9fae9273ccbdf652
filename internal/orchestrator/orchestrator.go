// Package orchestrator implements the Core Worker and Orchestrator (C10):
// the concurrent harness that spawns N core workers and one I/O worker
// over a shared Scheduler, Control Unit template, and I/O Manager, and
// aggregates the end-of-run metrics spec.md §4.10 defines.
package orchestrator

import (
	"sync"
	"sync/atomic"

	"github.com/JoaquimCruz/Multicore-simulator/internal/ioservice"
	"github.com/JoaquimCruz/Multicore-simulator/internal/mmu"
	"github.com/JoaquimCruz/Multicore-simulator/internal/pcb"
	"github.com/JoaquimCruz/Multicore-simulator/internal/pipeline"
	"github.com/JoaquimCruz/Multicore-simulator/internal/scheduler"
	"github.com/JoaquimCruz/Multicore-simulator/internal/trace"
)

// DefaultQuantum is the OS-assigned constant quantum, per spec.md §6.
const DefaultQuantum = 20

// DefaultCoreCount is the default number of concurrent core workers.
const DefaultCoreCount = 4

// Metrics is the aggregated, end-of-run report spec.md §4.10 defines.
type Metrics struct {
	TotalSimulation uint64
	AvgWaiting      float64
	AvgTurnaround   float64
	CPUUtilisation  float64
	Throughput      float64
	Efficiency      float64
}

// Orchestrator owns the shared Scheduler, Memory Manager and I/O Manager
// for one simulation run, and drives N core workers plus the I/O worker
// to completion.
type Orchestrator struct {
	sched *scheduler.Scheduler
	mmu   *mmu.Manager
	io    *ioservice.Manager

	coreCount int
	quantum   int

	blocked *blockedList

	finishedCount atomic.Int64

	mu       sync.Mutex
	all      []*pcb.PCB
	finished []*pcb.PCB

	workers []*CoreWorker

	controlUnitHooks []trace.Hook
}

// New creates an Orchestrator over the given Memory Manager, I/O Manager
// and policy, with coreCount core workers each running processes for up
// to quantum pipeline cycles per slice.
func New(memoryManager *mmu.Manager, io *ioservice.Manager, policy scheduler.Policy, coreCount, quantum int) *Orchestrator {
	if coreCount <= 0 {
		coreCount = DefaultCoreCount
	}
	if quantum <= 0 {
		quantum = DefaultQuantum
	}

	return &Orchestrator{
		sched:     scheduler.New(policy),
		mmu:       memoryManager,
		io:        io,
		coreCount: coreCount,
		quantum:   quantum,
		blocked:   newBlockedList(),
	}
}

// AddControlUnitHook registers a trace.Hook that every Core Worker's
// Control Unit accepts, so external observers (internal/report's
// per-process tracer, most notably) can see pipeline events without the
// Orchestrator knowing anything about what consumes them. Must be called
// before Run.
func (o *Orchestrator) AddControlUnitHook(h trace.Hook) {
	o.controlUnitHooks = append(o.controlUnitHooks, h)
}

// Admit loads p into the batch and admits it to the scheduler at t=0, per
// spec.md §4.10's "admits the initial PCBs at t=0".
func (o *Orchestrator) Admit(p *pcb.PCB) {
	p.ArrivalTime = 0

	o.mu.Lock()
	o.all = append(o.all, p)
	o.mu.Unlock()

	o.sched.Admit(p, 0)
}

// Run spawns the core workers and the I/O worker, blocks until every
// admitted process has finished, and returns the aggregated metrics.
func (o *Orchestrator) Run() Metrics {
	total := len(o.all)
	if total == 0 {
		return Metrics{}
	}

	o.workers = make([]*CoreWorker, o.coreCount)
	for i := range o.workers {
		cu := pipeline.New(o.mmu, o.io)
		for _, h := range o.controlUnitHooks {
			cu.AcceptHook(h)
		}

		o.workers[i] = newCoreWorker(
			i,
			o.sched,
			cu,
			o.io,
			o.blocked,
			o.quantum,
			&o.finishedCount,
			total,
			o.recordFinish,
		)
	}

	ioWorker := newIOWorker(o.sched, o.blocked, o.maxCoreClock, &o.finishedCount, total)

	var wg sync.WaitGroup
	for _, w := range o.workers {
		wg.Add(1)
		go func(w *CoreWorker) {
			defer wg.Done()
			w.Run()
		}(w)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		ioWorker.Run()
	}()

	wg.Wait()

	return o.aggregate()
}

// Processes returns every PCB admitted to this run, in admission order,
// for the report writer to walk once Run has returned.
func (o *Orchestrator) Processes() []*pcb.PCB {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*pcb.PCB, len(o.all))
	copy(out, o.all)
	return out
}

func (o *Orchestrator) recordFinish(p *pcb.PCB, _ uint64) {
	o.mu.Lock()
	o.finished = append(o.finished, p)
	o.mu.Unlock()
}

func (o *Orchestrator) maxCoreClock() uint64 {
	var max uint64
	for _, w := range o.workers {
		if c := w.Clock(); c > max {
			max = c
		}
	}
	return max
}

// aggregate computes spec.md §4.10's six summary statistics over the
// finished batch.
func (o *Orchestrator) aggregate() Metrics {
	o.mu.Lock()
	defer o.mu.Unlock()

	total := o.maxCoreClock()
	n := len(o.all)

	var busySum, cpuTimeSum uint64
	for _, w := range o.workers {
		busySum += w.Busy()
	}

	var waitingSum, turnaroundSum float64
	for _, p := range o.all {
		turnaround := float64(p.FinishTime) - float64(p.ArrivalTime)
		turnaroundSum += turnaround

		waiting := turnaround - float64(p.CPUTime) - float64(p.Counters.IOCycles.Load())
		if waiting < 0 {
			waiting = 0
		}
		waitingSum += waiting

		cpuTimeSum += p.CPUTime
	}

	m := Metrics{TotalSimulation: total}
	if n > 0 {
		m.AvgWaiting = waitingSum / float64(n)
		m.AvgTurnaround = turnaroundSum / float64(n)
		m.Throughput = float64(n) / float64(total)
	}
	if total > 0 && o.coreCount > 0 {
		m.CPUUtilisation = float64(busySum) / (float64(total) * float64(o.coreCount))
		m.Efficiency = (float64(cpuTimeSum) / float64(o.coreCount)) / float64(total)
	}
	return m
}
