package orchestrator

import (
	"sync/atomic"
	"time"

	"github.com/JoaquimCruz/Multicore-simulator/internal/ioservice"
	"github.com/JoaquimCruz/Multicore-simulator/internal/pcb"
	"github.com/JoaquimCruz/Multicore-simulator/internal/pipeline"
	"github.com/JoaquimCruz/Multicore-simulator/internal/scheduler"
)

// retryBackoff is how long a core worker sleeps before re-polling the
// scheduler when the ready queue is momentarily empty but work remains.
const retryBackoff = time.Millisecond

// CoreWorker runs one logical CPU core: it repeatedly pulls a process off
// the shared Scheduler, drives it through the Control Unit for up to its
// quantum, and routes the result per spec.md §4.10's post-quantum branch.
type CoreWorker struct {
	ID int

	sched   *scheduler.Scheduler
	cu      *pipeline.ControlUnit
	io      *ioservice.Manager
	blocked *blockedList

	quantum int

	clock atomic.Uint64
	busy  atomic.Uint64

	finishedCount  *atomic.Int64
	totalProcesses int

	onFinish func(p *pcb.PCB, finishTime uint64)
}

func newCoreWorker(
	id int,
	sched *scheduler.Scheduler,
	cu *pipeline.ControlUnit,
	io *ioservice.Manager,
	blocked *blockedList,
	quantum int,
	finishedCount *atomic.Int64,
	totalProcesses int,
	onFinish func(p *pcb.PCB, finishTime uint64),
) *CoreWorker {
	return &CoreWorker{
		ID:             id,
		sched:          sched,
		cu:             cu,
		io:             io,
		blocked:        blocked,
		quantum:        quantum,
		finishedCount:  finishedCount,
		totalProcesses: totalProcesses,
		onFinish:       onFinish,
	}
}

// Clock reports the core's logical clock, advanced by every quantum slice
// this core has executed.
func (w *CoreWorker) Clock() uint64 { return w.clock.Load() }

// Busy reports the core's accumulated busy-time in pipeline cycles.
func (w *CoreWorker) Busy() uint64 { return w.busy.Load() }

// Run drives the core's fetch loop until every process in the batch has
// finished. It is meant to be invoked as its own goroutine.
func (w *CoreWorker) Run() {
	for w.finishedCount.Load() < int64(w.totalProcesses) {
		p := w.sched.Next(w.clock.Load())
		if p == nil {
			time.Sleep(retryBackoff)
			continue
		}

		before := p.Counters.PipelineCycles.Load()
		w.cu.Run(p, w.quantum)
		after := p.Counters.PipelineCycles.Load()
		used := after - before

		p.CPUTime += used
		w.busy.Add(used)
		w.clock.Add(used)

		switch p.State() {
		case pcb.Blocked:
			w.io.RegisterWaiting(p)
			w.blocked.Add(p)

		case pcb.Finished:
			p.FinishTime = w.clock.Load()
			w.finishedCount.Add(1)
			if w.onFinish != nil {
				w.onFinish(p, p.FinishTime)
			}

		default: // still Running/Ready: the quantum ran out mid-program
			if w.sched.Policy().Preemptive() {
				w.sched.Admit(p, w.clock.Load())
			} else {
				w.sched.PushFront(p)
			}
		}
	}
}
