package orchestrator_test

import (
	"sync"
	"testing"
	"time"

	"github.com/JoaquimCruz/Multicore-simulator/internal/ioservice"
	"github.com/JoaquimCruz/Multicore-simulator/internal/isa"
	"github.com/JoaquimCruz/Multicore-simulator/internal/mmu"
	"github.com/JoaquimCruz/Multicore-simulator/internal/orchestrator"
	"github.com/JoaquimCruz/Multicore-simulator/internal/pcb"
	"github.com/JoaquimCruz/Multicore-simulator/internal/scheduler"
	"github.com/JoaquimCruz/Multicore-simulator/internal/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// register indices, per regbank.Names.
const (
	rT0 = 8
	rT1 = 9
)

func loadArithmeticProgram(t *testing.T, m *mmu.Manager, p *pcb.PCB, base uint32) {
	t.Helper()
	liT0, err := isa.EncodeI(isa.LI, 0, rT0, 1)
	require.NoError(t, err)
	add, err := isa.EncodeR(isa.ADD, rT0, rT0, rT1, 0)
	require.NoError(t, err)
	end, err := isa.EncodeJ(isa.END, 0)
	require.NoError(t, err)

	for i, w := range []uint32{liT0, add, end} {
		m.Write(base+uint32(i*4), int32(w), p)
	}
}

func TestRunSingleCoreSingleProcessFinishes(t *testing.T) {
	m := mmu.New(4096, 4096, 8)
	io := ioservice.New(nil)
	go io.Run()
	defer io.Shutdown()

	orch := orchestrator.New(m, io, scheduler.FCFS, 1, 20)

	p := pcb.New(1, "solo", "solo.json", 0, 0, 0)
	loadArithmeticProgram(t, m, p, 0)
	orch.Admit(p)

	metrics := orch.Run()

	assert.Equal(t, pcb.Finished, p.State())
	assert.EqualValues(t, 2, p.Registers.Read(rT1))
	assert.Greater(t, metrics.TotalSimulation, uint64(0))
	assert.InDelta(t, 1.0, metrics.Throughput*float64(metrics.TotalSimulation), 0.001)
}

func TestRunMultipleCoresDrainAllProcesses(t *testing.T) {
	m := mmu.New(8192, 4096, 16)
	io := ioservice.New(nil)
	go io.Run()
	defer io.Shutdown()

	orch := orchestrator.New(m, io, scheduler.RR, 2, 20)

	const programWords = 3 * 4 // 3 instructions, 4 bytes each
	const processCount = 4

	for i := 0; i < processCount; i++ {
		p := pcb.New(i+1, "p", "p.json", 0, 0, 0)
		loadArithmeticProgram(t, m, p, uint32(i*programWords))
		orch.Admit(p)
	}

	metrics := orch.Run()

	for _, p := range orch.Processes() {
		assert.Equal(t, pcb.Finished, p.State())
	}
	assert.EqualValues(t, processCount, len(orch.Processes()))
	assert.Greater(t, metrics.Throughput, 0.0)
	assert.GreaterOrEqual(t, metrics.CPUUtilisation, 0.0)
	assert.LessOrEqual(t, metrics.CPUUtilisation, 1.0+0.001)
}

func TestRunWithNoAdmittedProcessesReturnsZeroMetrics(t *testing.T) {
	m := mmu.New(1024, 1024, 4)
	io := ioservice.New(nil)

	orch := orchestrator.New(m, io, scheduler.FCFS, 2, 20)
	metrics := orch.Run()

	assert.Equal(t, uint64(0), metrics.TotalSimulation)
}

func TestAddControlUnitHookObservesExecutedInstructions(t *testing.T) {
	m := mmu.New(4096, 4096, 8)
	io := ioservice.New(nil)
	go io.Run()
	defer io.Shutdown()

	orch := orchestrator.New(m, io, scheduler.FCFS, 1, 20)

	var seen int
	var mu sync.Mutex
	orch.AddControlUnitHook(trace.NewFuncHook(trace.StageInvoked, func(interface{}, trace.Hookable, interface{}) {
		mu.Lock()
		seen++
		mu.Unlock()
	}))

	p := pcb.New(1, "hooked", "hooked.json", 0, 0, 0)
	loadArithmeticProgram(t, m, p, 0)
	orch.Admit(p)
	orch.Run()

	mu.Lock()
	defer mu.Unlock()
	assert.Greater(t, seen, 0)
}

func TestRunPrintBlocksAndIOManagerUnblocksTheProcess(t *testing.T) {
	m := mmu.New(4096, 4096, 8)
	io := ioservice.New(nil)
	go io.Run()
	defer io.Shutdown()

	orch := orchestrator.New(m, io, scheduler.FCFS, 1, 20)

	p := pcb.New(1, "printer", "printer.json", 0, 0, 0)

	liT0, err := isa.EncodeI(isa.LI, 0, rT0, 7)
	require.NoError(t, err)
	print, err := isa.EncodeI(isa.PRINT, 0, rT0, 0)
	require.NoError(t, err)
	end, err := isa.EncodeJ(isa.END, 0)
	require.NoError(t, err)

	for i, w := range []uint32{liT0, print, end} {
		m.Write(uint32(i*4), int32(w), p)
	}

	orch.Admit(p)

	done := make(chan struct{})
	go func() {
		orch.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("orchestrator run did not complete within the timeout")
	}

	assert.Equal(t, pcb.Finished, p.State())
}
