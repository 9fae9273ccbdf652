package orchestrator

import (
	"sync/atomic"
	"time"

	"github.com/JoaquimCruz/Multicore-simulator/internal/scheduler"
)

// ioWorkerPollInterval is how often the I/O Worker checks the blocked
// list for processes the I/O Manager has transitioned back to Ready.
const ioWorkerPollInterval = time.Millisecond

// IOWorker polls the blocked list and re-admits any process the I/O
// Manager has marked Ready, using the wall-clock-free simulation time
// supplied by now (the largest clock any core has reached).
type IOWorker struct {
	sched   *scheduler.Scheduler
	blocked *blockedList
	now     func() uint64

	finishedCount  *atomic.Int64
	totalProcesses int
}

func newIOWorker(
	sched *scheduler.Scheduler,
	blocked *blockedList,
	now func() uint64,
	finishedCount *atomic.Int64,
	totalProcesses int,
) *IOWorker {
	return &IOWorker{
		sched:          sched,
		blocked:        blocked,
		now:            now,
		finishedCount:  finishedCount,
		totalProcesses: totalProcesses,
	}
}

// Run drains the blocked list for newly-ready processes until every
// process in the batch has finished.
func (w *IOWorker) Run() {
	for w.finishedCount.Load() < int64(w.totalProcesses) {
		for _, p := range w.blocked.DrainReady() {
			w.sched.Admit(p, w.now())
		}
		time.Sleep(ioWorkerPollInterval)
	}
}
