package ioservice

import (
	"testing"
	"time"

	"github.com/JoaquimCruz/Multicore-simulator/internal/pcb"
	"github.com/stretchr/testify/assert"
)

type recordingLogger struct {
	lines []string
}

func (r *recordingLogger) LogResult(line string) {
	r.lines = append(r.lines, line)
}

func TestTickServicesAnAlreadyEnqueuedRequest(t *testing.T) {
	logger := &recordingLogger{}
	m := New(logger)
	p := pcb.New(1, "p", "p.json", 0, 0, 0)

	m.EnqueueRequest(Request{PCB: p, Device: ConsolePrint, Message: "7", Cost: time.Millisecond})

	m.tick()

	assert.Equal(t, pcb.Ready, p.State())
	assert.EqualValues(t, 1, p.Counters.IOCycles.Load())
	assert.Len(t, logger.lines, 1)
}

func TestPopWaitingIsFIFO(t *testing.T) {
	m := New(nil)
	a := pcb.New(1, "a", "a.json", 0, 0, 0)
	b := pcb.New(2, "b", "b.json", 0, 0, 0)

	m.RegisterWaiting(a)
	m.RegisterWaiting(b)

	assert.Equal(t, a, m.popWaiting())
	assert.Equal(t, b, m.popWaiting())
	assert.Nil(t, m.popWaiting())
}

func TestTickWithNothingPendingDoesNothing(t *testing.T) {
	m := New(nil)
	m.tick() // must not panic or block
}
