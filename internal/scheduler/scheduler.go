// Package scheduler implements the Scheduler (C8): a policy-switchable
// process queue shared by every Core Worker. One Scheduler instance feeds
// all cores, so every operation is a locked, FIFO-respecting mutation of a
// single double-ended queue.
package scheduler

import (
	"sort"
	"sync"

	"github.com/JoaquimCruz/Multicore-simulator/internal/pcb"
	"github.com/JoaquimCruz/Multicore-simulator/internal/trace"
)

// Policy identifies one of the four admission/ordering disciplines.
type Policy int

// The four supported scheduling policies.
const (
	FCFS Policy = iota
	SJN
	RR
	Priority
)

func (p Policy) String() string {
	switch p {
	case FCFS:
		return "FCFS"
	case SJN:
		return "SJN"
	case RR:
		return "RR"
	case Priority:
		return "Priority"
	default:
		return "Unknown"
	}
}

// Preemptive reports whether the policy is preemptive by quantum. Per
// spec.md §4.8, RR is the only policy the simulator actually preempts;
// Priority's "preemptive" column is a policy-level distinction that this
// simulator does not act on beyond ordering the queue.
func (p Policy) Preemptive() bool {
	return p == RR
}

// Scheduler is the shared, lockable process queue. Construct with New.
type Scheduler struct {
	*trace.Base

	mu     sync.Mutex
	policy Policy
	queue  []*pcb.PCB
}

// New creates a Scheduler running the given initial policy with an empty
// queue.
func New(policy Policy) *Scheduler {
	return &Scheduler{
		Base:   trace.NewBase("scheduler"),
		policy: policy,
	}
}

// Admit places p at the back of the queue (Ready), records when it became
// ready, and re-sorts if the active policy requires ordering by a PCB
// field rather than admission order.
func (s *Scheduler) Admit(p *pcb.PCB, now uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.SetState(pcb.Ready)
	p.LastReadyIn = now

	s.queue = append(s.queue, p)
	s.resortLocked()

	s.InvokeHook(p, trace.PCBStateChange, pcb.Ready)
}

// Next pops the front of the queue, accounting the waiting time the
// popped process accrued since it was last made ready, and reports none
// (a nil PCB) if the queue is empty.
func (s *Scheduler) Next(now uint64) *pcb.PCB {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return nil
	}

	p := s.queue[0]
	s.queue = s.queue[1:]

	if now >= p.LastReadyIn {
		p.AddWaiting(now - p.LastReadyIn)
	}
	p.MarkFirstStart(now)
	p.SetState(pcb.Running)

	return p
}

// PushFront re-inserts p at the head of the queue without going through
// Admit, used by the Core Worker under non-preemptive policies to continue
// a process without disturbing admission bookkeeping. Under RR a process
// whose quantum ran out is re-queued through Admit instead.
func (s *Scheduler) PushFront(p *pcb.PCB) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue = append([]*pcb.PCB{p}, s.queue...)
}

// HasWork reports whether any process is currently queued.
func (s *Scheduler) HasWork() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) > 0
}

// Len reports the current queue depth, for metrics and tests.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Policy reports the scheduler's active policy.
func (s *Scheduler) Policy() Policy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy
}

// SetPolicy atomically switches the active policy and re-sorts the queue
// under the new ordering.
func (s *Scheduler) SetPolicy(newPolicy Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy = newPolicy
	s.resortLocked()
}

// resortLocked re-orders the queue per the active policy. FCFS and RR
// leave admission order untouched; SJN and Priority stable-sort so ties
// fall back to admission order, per spec.md's tie-break rule.
func (s *Scheduler) resortLocked() {
	switch s.policy {
	case SJN:
		sort.SliceStable(s.queue, func(i, j int) bool {
			return s.queue[i].BurstTime < s.queue[j].BurstTime
		})
	case Priority:
		sort.SliceStable(s.queue, func(i, j int) bool {
			return s.queue[i].Priority > s.queue[j].Priority
		})
	}
}
