// Package ioservice implements the blocking I/O service (C9): a manager
// thread that probabilistically marks devices as requesting, turns waiting
// processes into serviced requests, and simulates each request's cost by
// sleeping, before marking the owning PCB ready again.
package ioservice

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JoaquimCruz/Multicore-simulator/internal/pcb"
	"github.com/JoaquimCruz/Multicore-simulator/internal/trace"
	"github.com/rs/xid"
)

// Device identifies which simulated peripheral a Request targets.
type Device int

// The three device kinds the manager serves.
const (
	Printer Device = iota
	Disk
	ConsolePrint
)

func (d Device) String() string {
	switch d {
	case Printer:
		return "printer"
	case Disk:
		return "disk"
	case ConsolePrint:
		return "console-print"
	default:
		return "unknown"
	}
}

// Request is one simulated I/O operation bound to the PCB that issued it.
// ID is assigned by EnqueueRequest if left blank, so callers never need to
// mint one themselves.
type Request struct {
	ID      string
	PCB     *pcb.PCB
	Device  Device
	Message string
	Cost    time.Duration
}

// Sink is the contract the pipeline's PRINT dispatch and the Core Worker's
// blocked-transition both depend on, kept as an interface so tests can
// substitute a mock without spinning up a real manager thread.
type Sink interface {
	RegisterWaiting(p *pcb.PCB)
	EnqueueRequest(req Request)
}

// printerRequestProbability and diskRequestProbability are the tunable
// per-tick odds a device becomes willing to service the head of the
// waiting list.
const (
	printerRequestProbability = 0.01
	diskRequestProbability    = 0.02
)

// possibleCosts mirrors the spec's "uniformly drawn from {100, 200, 300}
// ms" rule for requests synthesised from the waiting list.
var possibleCosts = []time.Duration{
	100 * time.Millisecond,
	200 * time.Millisecond,
	300 * time.Millisecond,
}

// tickInterval paces the manager thread's polling loop.
const tickInterval = 5 * time.Millisecond

// ResultLogger receives one line per serviced request, for §6's
// output/result.dat and output/io_metrics.dat records.
type ResultLogger interface {
	LogResult(line string)
}

// Manager is the I/O Manager (C9). Each queue (waiting list, pending
// requests) has its own mutex; the device-requesting flags are local to
// the manager goroutine's tick and need no lock.
type Manager struct {
	*trace.Base

	waitingMu sync.Mutex
	waiting   []*pcb.PCB

	requestMu sync.Mutex
	pending   []Request

	shuttingDown atomic.Bool
	done         chan struct{}

	logger ResultLogger
	rng    *rand.Rand
}

// New creates a Manager that appends one line per serviced request to
// logger. logger may be nil, in which case lines are simply dropped
// (matching spec.md §7's "I/O file open failure: manager still runs,
// records dropped" policy).
func New(logger ResultLogger) *Manager {
	return &Manager{
		Base:   trace.NewBase("io-manager"),
		done:   make(chan struct{}),
		logger: logger,
		rng:    rand.New(rand.NewSource(1)),
	}
}

// RegisterWaiting enqueues a process that has just blocked on I/O. It will
// be converted into a serviceable Request once a device probabilistically
// becomes willing.
func (m *Manager) RegisterWaiting(p *pcb.PCB) {
	m.waitingMu.Lock()
	m.waiting = append(m.waiting, p)
	m.waitingMu.Unlock()
}

// EnqueueRequest directly enqueues an already-constructed request, bypassing
// the waiting list and device-requesting simulation. PRINT uses this path.
func (m *Manager) EnqueueRequest(req Request) {
	if req.ID == "" {
		req.ID = xid.New().String()
	}

	m.requestMu.Lock()
	m.pending = append(m.pending, req)
	m.requestMu.Unlock()
	m.InvokeHook(req.PCB, trace.IORequestEnqueued, req)
}

// Run drives the manager thread until Shutdown is called. It is meant to be
// launched in its own goroutine by the Orchestrator.
func (m *Manager) Run() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

// Shutdown signals the manager thread to stop after its current tick.
func (m *Manager) Shutdown() {
	if m.shuttingDown.CompareAndSwap(false, true) {
		close(m.done)
	}
}

func (m *Manager) tick() {
	printerRequesting := m.rng.Float64() < printerRequestProbability
	diskRequesting := m.rng.Float64() < diskRequestProbability

	if printerRequesting || diskRequesting {
		if waiter := m.popWaiting(); waiter != nil {
			device := Disk
			if printerRequesting {
				device = Printer
			}
			cost := possibleCosts[m.rng.Intn(len(possibleCosts))]
			m.EnqueueRequest(Request{PCB: waiter, Device: device, Cost: cost})
		}
	}

	req, ok := m.popPending()
	if !ok {
		return
	}

	time.Sleep(req.Cost)

	req.PCB.Counters.IOCycles.Add(uint64(req.Cost.Milliseconds()))
	m.logResult(req)
	req.PCB.SetState(pcb.Ready)
	m.InvokeHook(req.PCB, trace.IORequestServiced, req)
}

func (m *Manager) popWaiting() *pcb.PCB {
	m.waitingMu.Lock()
	defer m.waitingMu.Unlock()

	if len(m.waiting) == 0 {
		return nil
	}
	head := m.waiting[0]
	m.waiting = m.waiting[1:]
	return head
}

func (m *Manager) popPending() (Request, bool) {
	m.requestMu.Lock()
	defer m.requestMu.Unlock()

	if len(m.pending) == 0 {
		return Request{}, false
	}
	head := m.pending[0]
	m.pending = m.pending[1:]
	return head, true
}

func (m *Manager) logResult(req Request) {
	if m.logger == nil {
		return
	}
	m.logger.LogResult(fmt.Sprintf(
		"id=%s pid=%d device=%s cost_ms=%d msg=%s",
		req.ID, req.PCB.PID, req.Device, req.Cost.Milliseconds(), req.Message,
	))
}
