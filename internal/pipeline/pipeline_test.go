package pipeline_test

import (
	"testing"

	"github.com/JoaquimCruz/Multicore-simulator/internal/ioservice"
	"github.com/JoaquimCruz/Multicore-simulator/internal/isa"
	"github.com/JoaquimCruz/Multicore-simulator/internal/mmu"
	"github.com/JoaquimCruz/Multicore-simulator/internal/pcb"
	"github.com/JoaquimCruz/Multicore-simulator/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// register indices, per regbank.Names.
const (
	rT0 = 8
	rT1 = 9
	rT2 = 10
)

type noopSink struct {
	requests []ioservice.Request
}

func (s *noopSink) RegisterWaiting(p *pcb.PCB) {}

func (s *noopSink) EnqueueRequest(req ioservice.Request) {
	s.requests = append(s.requests, req)
}

func loadProgram(t *testing.T, m *mmu.Manager, p *pcb.PCB, words []uint32) {
	t.Helper()
	for i, w := range words {
		m.Write(uint32(i*4), int32(w), p)
	}
}

func newTestManager() *mmu.Manager {
	return mmu.New(4096, 4096, 8)
}

func encodeEnd(t *testing.T) uint32 {
	t.Helper()
	w, err := isa.EncodeJ(isa.END, 0)
	require.NoError(t, err)
	return w
}

func TestRunSingleProcessArithmetic(t *testing.T) {
	m := newTestManager()
	p := pcb.New(1, "arith", "arith.json", 0, 0, 0)
	sink := &noopSink{}
	cu := pipeline.New(m, sink)

	liT0, err := isa.EncodeI(isa.LI, 0, rT0, 5)
	require.NoError(t, err)
	liT1, err := isa.EncodeI(isa.LI, 0, rT1, 7)
	require.NoError(t, err)
	add, err := isa.EncodeR(isa.ADD, rT0, rT1, rT2, 0)
	require.NoError(t, err)

	loadProgram(t, m, p, []uint32{liT0, liT1, add, encodeEnd(t)})

	result := cu.Run(p, 20)

	assert.True(t, result.Finished)
	assert.Equal(t, pcb.Finished, p.State())
	assert.EqualValues(t, 12, p.Registers.Read(rT2))
}

func TestRunRAWHazardStillProducesCorrectResult(t *testing.T) {
	m := newTestManager()
	p := pcb.New(1, "hazard", "hazard.json", 0, 0, 0)
	sink := &noopSink{}
	cu := pipeline.New(m, sink)

	liT0, err := isa.EncodeI(isa.LI, 0, rT0, 5)
	require.NoError(t, err)
	add, err := isa.EncodeR(isa.ADD, rT0, rT0, rT1, 0)
	require.NoError(t, err)

	loadProgram(t, m, p, []uint32{liT0, add, encodeEnd(t)})

	result := cu.Run(p, 30)

	assert.True(t, result.Finished)
	assert.EqualValues(t, 10, p.Registers.Read(rT1))
}

func TestRunBranchFlushesTheWronglyFetchedInstruction(t *testing.T) {
	m := newTestManager()
	p := pcb.New(1, "branch", "branch.json", 0, 0, 0)
	sink := &noopSink{}
	cu := pipeline.New(m, sink)

	// LI $t0,5; BEQ $t0,$t0,<skip>; LI $t1,99; LI $t1,1; END
	// BEQ compares $t0 against itself, so it is always taken and the
	// wrongly-fetched LI $t1,99 must be flushed.
	liT0, err := isa.EncodeI(isa.LI, 0, rT0, 5)
	require.NoError(t, err)
	// branch target: absolute address of the fourth instruction (index 3,
	// byte offset 12), skipping the poisoned "LI $t1,99" at offset 8.
	beq, err := isa.EncodeI(isa.BEQ, rT0, rT0, 12)
	require.NoError(t, err)
	liWrong, err := isa.EncodeI(isa.LI, 0, rT1, 99)
	require.NoError(t, err)
	liRight, err := isa.EncodeI(isa.LI, 0, rT1, 1)
	require.NoError(t, err)

	loadProgram(t, m, p, []uint32{liT0, beq, liWrong, liRight, encodeEnd(t)})

	result := cu.Run(p, 30)

	assert.True(t, result.Finished)
	assert.EqualValues(t, 1, p.Registers.Read(rT1))
}

func TestRunLoadStoreRoundTripsThroughMMU(t *testing.T) {
	m := newTestManager()
	p := pcb.New(1, "memio", "memio.json", 0, 0, 0)
	sink := &noopSink{}
	cu := pipeline.New(m, sink)

	const dataAddr = 4096 // well past the program text and into another page

	liT0, err := isa.EncodeI(isa.LI, 0, rT0, 42)
	require.NoError(t, err)
	sw, err := isa.EncodeI(isa.SW, 0, rT0, dataAddr)
	require.NoError(t, err)
	lw, err := isa.EncodeI(isa.LW, 0, rT1, dataAddr)
	require.NoError(t, err)

	loadProgram(t, m, p, []uint32{liT0, sw, lw, encodeEnd(t)})

	result := cu.Run(p, 30)

	assert.True(t, result.Finished)
	assert.EqualValues(t, 42, p.Registers.Read(rT1))
}

func TestRunRegisterPrintBlocksTheProcessAndEnqueuesARequest(t *testing.T) {
	m := newTestManager()
	p := pcb.New(1, "printer", "printer.json", 0, 0, 0)
	sink := &noopSink{}
	cu := pipeline.New(m, sink)

	liT0, err := isa.EncodeI(isa.LI, 0, rT0, 3)
	require.NoError(t, err)
	print, err := isa.EncodeI(isa.PRINT, 0, rT0, 0)
	require.NoError(t, err)

	loadProgram(t, m, p, []uint32{liT0, print, encodeEnd(t)})

	cu.Run(p, 30)

	require.Len(t, sink.requests, 1)
	assert.Equal(t, "3", sink.requests[0].Message)
	assert.Equal(t, pcb.Blocked, p.State())
}

func TestRunAddressPrintReadsThroughMMUAndBlocks(t *testing.T) {
	m := newTestManager()
	p := pcb.New(1, "addrprint", "addrprint.json", 0, 0, 0)
	sink := &noopSink{}
	cu := pipeline.New(m, sink)

	const dataAddr = 4096

	liT0, err := isa.EncodeI(isa.LI, 0, rT0, 9)
	require.NoError(t, err)
	sw, err := isa.EncodeI(isa.SW, 0, rT0, dataAddr)
	require.NoError(t, err)
	print, err := isa.EncodeI(isa.PRINT, 0, 0, dataAddr)
	require.NoError(t, err)

	loadProgram(t, m, p, []uint32{liT0, sw, print, encodeEnd(t)})

	cu.Run(p, 30)

	require.Len(t, sink.requests, 1)
	assert.Equal(t, "9", sink.requests[0].Message)
	assert.Equal(t, pcb.Blocked, p.State())
}

func TestRunPrintBlocksBeforeLaterInstructionsInTheSameQuantumExecute(t *testing.T) {
	m := newTestManager()
	p := pcb.New(1, "printblock", "printblock.json", 0, 0, 0)
	sink := &noopSink{}
	cu := pipeline.New(m, sink)

	// LI $t0,3; PRINT $t0; LI $t1,99; END — $t1 must stay untouched: PRINT
	// sets end_execution the same tick it blocks, so the LI after it never
	// reaches Execute, regardless of how much quantum is left.
	liT0, err := isa.EncodeI(isa.LI, 0, rT0, 3)
	require.NoError(t, err)
	print, err := isa.EncodeI(isa.PRINT, 0, rT0, 0)
	require.NoError(t, err)
	liT1, err := isa.EncodeI(isa.LI, 0, rT1, 99)
	require.NoError(t, err)

	loadProgram(t, m, p, []uint32{liT0, print, liT1, encodeEnd(t)})

	result := cu.Run(p, 30)

	assert.False(t, result.Finished)
	assert.Equal(t, pcb.Blocked, p.State())
	require.Len(t, sink.requests, 1)
	assert.EqualValues(t, 0, p.Registers.Read(rT1))
}

func TestRunStopsAtQuantumWithoutReachingEnd(t *testing.T) {
	m := newTestManager()
	p := pcb.New(1, "longrun", "longrun.json", 0, 0, 0)
	sink := &noopSink{}
	cu := pipeline.New(m, sink)

	liT0, err := isa.EncodeI(isa.LI, 0, rT0, 1)
	require.NoError(t, err)

	loadProgram(t, m, p, []uint32{liT0, liT0, liT0, liT0, liT0, liT0, liT0, liT0, encodeEnd(t)})

	result := cu.Run(p, 2)

	assert.False(t, result.Finished)
	assert.NotEqual(t, pcb.Finished, p.State())
}
