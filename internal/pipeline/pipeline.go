// Package pipeline implements the Control Unit (C7): the five-stage
// pipeline that runs one process for up to its quantum against a shared
// Memory Manager, with RAW-hazard stall insertion and branch-flush
// poisoning.
package pipeline

import (
	"strconv"

	"github.com/JoaquimCruz/Multicore-simulator/internal/alu"
	"github.com/JoaquimCruz/Multicore-simulator/internal/ioservice"
	"github.com/JoaquimCruz/Multicore-simulator/internal/isa"
	"github.com/JoaquimCruz/Multicore-simulator/internal/mmu"
	"github.com/JoaquimCruz/Multicore-simulator/internal/pcb"
	"github.com/JoaquimCruz/Multicore-simulator/internal/regbank"
	"github.com/JoaquimCruz/Multicore-simulator/internal/trace"
)

// historySize is the pipeline-history ring buffer's capacity. Five entries
// are enough for a five-stage pipeline with a two-instruction hazard
// lookback, per spec.md's design note.
const historySize = 5

// maxEmptyFetchPC is the point past which fetching a zero word is treated
// as a runaway program counter rather than legitimate unwritten memory.
const maxEmptyFetchPC = 10000

// drainStart is the drain counter's initial value: once end_execution is
// set, the pipeline keeps draining for this many more ticks before the
// last in-flight instruction retires.
const drainStart = 5

// ControlUnit is the five-stage pipeline. One ControlUnit is created per
// Core Worker and reused for every process that core runs; it holds no
// state that outlives a single Run call besides the instrumentation Base.
type ControlUnit struct {
	*trace.Base

	mmu *mmu.Manager
	io  ioservice.Sink
}

// New creates a ControlUnit wired to the given Memory Manager and I/O
// sink. Both are shared across every core; the ControlUnit itself is not.
func New(memoryManager *mmu.Manager, io ioservice.Sink) *ControlUnit {
	return &ControlUnit{
		Base: trace.NewBase("control-unit"),
		mmu:  memoryManager,
		io:   io,
	}
}

// Result reports what happened to the process over a Run call, so the
// Core Worker can decide whether to requeue, block, or retire it.
type Result struct {
	CyclesUsed uint64
	Finished   bool
}

// Run executes p for up to quantum pipeline cycles (or until end_program),
// implementing spec.md §4.7's exact tick ordering: write-back, memory,
// execute, decode, fetch, in that order, so later stages see the previous
// tick's latches.
func (cu *ControlUnit) Run(p *pcb.PCB, quantum int) Result {
	before := p.Counters.PipelineCycles.Load()

	history := newRingBuffer(historySize)

	counter := 0
	clock := 0
	drain := drainStart
	endProgram := false
	endExecution := false
	blocked := false

	for drain > 0 {
		if counter >= 4 && drain >= 1 {
			cu.writeBack(history.get(counter-4), p)
		}
		if counter >= 3 && drain >= 2 {
			cu.memoryAccess(history.get(counter-3), p, &blocked)
		}

		// A PRINT blocks the process on whichever stage dispatches it
		// (Execute for a register operand, Memory for an address operand).
		// Every slot younger than the one that blocked is poisoned instead
		// of processed, the same way a taken branch poisons the
		// wrongly-fetched slot at execute() — otherwise instructions after
		// the PRINT in program order, already sitting in the pipeline,
		// would keep executing for the rest of the quantum.
		if blocked {
			if counter >= 2 {
				history.set(counter-2, isa.NewBubble())
			}
		} else if counter >= 2 && drain >= 3 {
			cu.execute(history.get(counter-2), p, history, counter-2, &blocked)
		}

		if blocked {
			if counter >= 1 {
				history.set(counter-1, isa.NewBubble())
			}
		} else if counter >= 1 && drain >= 4 {
			cu.decode(history, counter-1, p)
		}

		if drain == drainStart {
			history.set(counter, isa.Instruction{})
			if !blocked {
				cu.fetch(p, history, counter, &endProgram)
			}
		}

		counter++
		clock++
		p.Counters.PipelineCycles.Add(1)

		if clock >= quantum || endProgram || blocked {
			endExecution = true
		}
		if endExecution {
			drain--
		}
	}

	if endProgram && !blocked {
		p.SetState(pcb.Finished)
	}

	after := p.Counters.PipelineCycles.Load()
	return Result{CyclesUsed: after - before, Finished: endProgram}
}

// fetch implements spec.md §4.7's Fetch stage.
func (cu *ControlUnit) fetch(p *pcb.PCB, history *ringBuffer, idx int, endProgram *bool) {
	p.Counters.StageInvocations.Add(1)

	bank := p.Registers
	bank.MAR = bank.PC

	word := uint32(cu.mmu.Read(bank.MAR, p))
	bank.IR = word

	if word == 0 && bank.PC > maxEmptyFetchPC {
		*endProgram = true
		return
	}

	if word == isa.EndSentinel {
		*endProgram = true
		return
	}

	history.set(idx, isa.Decode(word))
	bank.AdvancePC()
}

// decode implements spec.md §4.7's Decode stage: field extraction plus
// two-instruction RAW hazard lookback. A detected hazard rewrites this
// slot to BUBBLE and rewinds the PC so fetch re-issues next tick.
func (cu *ControlUnit) decode(history *ringBuffer, idx int, p *pcb.PCB) {
	p.Counters.StageInvocations.Add(1)

	ins := history.get(idx)
	if ins.IsBubble() || ins.Mnemonic == "" {
		return
	}

	readRegs := registersRead(ins)

	for _, lookback := range []int{idx - 1, idx - 2} {
		if lookback < 0 {
			continue
		}
		prior := history.get(lookback)
		if prior.IsBubble() || prior.Mnemonic == "" {
			continue
		}
		dest, hasDest := destinationRegister(prior)
		if !hasDest || dest == 0 {
			continue
		}
		if contains(readRegs, dest) {
			history.set(idx, isa.NewBubble())
			p.Registers.RewindPC()
			return
		}
	}
}

// execute implements spec.md §4.7's Execute stage, dispatching by mnemonic
// family. blocked is set to true if this instruction is a register-operand
// PRINT, signalling Run() to poison every younger slot and end the
// process's quantum this tick, per spec.md §4.7's "PRINT sets the PCB to
// Blocked and sets end_execution".
func (cu *ControlUnit) execute(ins isa.Instruction, p *pcb.PCB, history *ringBuffer, idx int, blocked *bool) {
	p.Counters.StageInvocations.Add(1)

	if ins.IsBubble() || ins.Mnemonic == "" {
		return
	}

	cu.InvokeHook(p, trace.StageInvoked, ins.Mnemonic)

	bank := p.Registers

	switch {
	case isa.IsImmediateArith(ins.Mnemonic):
		executeImmediateArith(bank, ins)

	case isa.IsRArithmetic(ins.Mnemonic):
		executeRArithmetic(bank, ins)

	case isa.IsBranchOrJump(ins.Mnemonic):
		if taken, target := evaluateBranch(bank, ins); taken {
			bank.PC = target
			// idx is this tick's execute slot (counter-2); counter-1, the
			// slot decode is about to process later in this same tick, is
			// the wrongly-fetched next instruction and must be flushed.
			history.set(idx+1, isa.NewBubble())
			bank.IR = 0
		}

	case ins.Mnemonic == isa.PRINT && ins.Rt != 0:
		cu.dispatchRegisterPrint(bank, ins, p, blocked)
	}
}

// memoryAccess implements spec.md §4.7's Memory stage: LW, the LI/LA
// immediate-literal re-write, and the memory-targeted PRINT variant.
// blocked is set to true if this instruction is an address-operand PRINT.
func (cu *ControlUnit) memoryAccess(ins isa.Instruction, p *pcb.PCB, blocked *bool) {
	p.Counters.StageInvocations.Add(1)

	if ins.IsBubble() || ins.Mnemonic == "" {
		return
	}

	bank := p.Registers

	switch {
	case ins.Mnemonic == isa.LW:
		addr := uint32(ins.SignExtImm)
		value := cu.mmu.Read(addr, p)
		bank.Write(ins.Rt, value)

	case ins.Mnemonic == isa.LI:
		bank.Write(ins.Rt, ins.SignExtImm)

	case ins.Mnemonic == isa.PRINT && ins.Rt == 0:
		cu.dispatchAddressPrint(bank, ins, p, blocked)
	}
}

// writeBack implements spec.md §4.7's Write-back stage: only SW has an
// effect here, since every other op already wrote in Execute or Memory.
func (cu *ControlUnit) writeBack(ins isa.Instruction, p *pcb.PCB) {
	p.Counters.StageInvocations.Add(1)

	if ins.IsBubble() || ins.Mnemonic == "" {
		return
	}

	if ins.Mnemonic == isa.SW {
		addr := uint32(ins.SignExtImm)
		value := p.Registers.Read(ins.Rt)
		cu.mmu.Write(addr, value, p)
	}
}

func executeImmediateArith(bank *regbank.Bank, ins isa.Instruction) {
	switch ins.Mnemonic {
	case isa.ADDI, isa.ADDIU:
		result, _ := alu.Compute(alu.ADD, bank.Read(ins.Rs), ins.SignExtImm)
		bank.Write(ins.Rt, result)
	case isa.SLTI:
		if bank.Read(ins.Rs) < ins.SignExtImm {
			bank.Write(ins.Rt, 1)
		} else {
			bank.Write(ins.Rt, 0)
		}
	case isa.LUI:
		bank.Write(ins.Rt, int32(uint32(uint16(ins.Imm))<<16))
	case isa.LI:
		bank.Write(ins.Rt, ins.SignExtImm)
	}
}

func executeRArithmetic(bank *regbank.Bank, ins isa.Instruction) {
	var op alu.Op
	switch ins.Mnemonic {
	case isa.ADD:
		op = alu.ADD
	case isa.SUB:
		op = alu.SUB
	case isa.MULT:
		op = alu.MUL
	case isa.DIV:
		op = alu.DIV
	default:
		return
	}
	result, _ := alu.Compute(op, bank.Read(ins.Rs), bank.Read(ins.Rt))
	bank.Write(ins.Rd, result)
}

func evaluateBranch(bank *regbank.Bank, ins isa.Instruction) (bool, uint32) {
	if ins.Mnemonic == isa.J {
		return true, ins.Target
	}

	var op alu.Op
	switch ins.Mnemonic {
	case isa.BEQ:
		op = alu.BEQ
	case isa.BNE:
		op = alu.BNE
	case isa.BLT:
		op = alu.BLT
	case isa.BGT:
		op = alu.BGT
	default:
		return false, 0
	}

	_, taken := alu.Compute(op, bank.Read(ins.Rs), bank.Read(ins.Rt))
	return taken, uint32(ins.SignExtImm)
}

func (cu *ControlUnit) dispatchRegisterPrint(bank *regbank.Bank, ins isa.Instruction, p *pcb.PCB, blocked *bool) {
	value := bank.Read(ins.Rt)
	cu.io.EnqueueRequest(ioservice.Request{
		PCB:     p,
		Device:  ioservice.ConsolePrint,
		Message: strconv.Itoa(int(value)),
	})
	p.SetState(pcb.Blocked)
	*blocked = true
}

func (cu *ControlUnit) dispatchAddressPrint(bank *regbank.Bank, ins isa.Instruction, p *pcb.PCB, blocked *bool) {
	addr := uint32(ins.SignExtImm)
	value := cu.mmu.Read(addr, p)
	cu.io.EnqueueRequest(ioservice.Request{
		PCB:     p,
		Device:  ioservice.ConsolePrint,
		Message: strconv.Itoa(int(value)),
	})
	p.SetState(pcb.Blocked)
	*blocked = true
}

// registersRead returns the register indices ins reads, per spec.md's
// per-mnemonic hazard table. $zero (index 0) is never a meaningful hazard
// source and is filtered by decode's dest == 0 check instead.
func registersRead(ins isa.Instruction) []int {
	switch ins.Mnemonic {
	case isa.ADD, isa.SUB, isa.MULT, isa.DIV,
		isa.BEQ, isa.BNE, isa.BGT, isa.BLT, isa.SW:
		return []int{ins.Rs, ins.Rt}
	case isa.ADDI, isa.ADDIU, isa.LW, isa.SLTI:
		return []int{ins.Rs}
	case isa.PRINT:
		return []int{ins.Rt}
	default:
		return nil
	}
}

// destinationRegister returns the register ins writes, for hazard
// lookback against later instructions' read sets.
func destinationRegister(ins isa.Instruction) (int, bool) {
	switch ins.Mnemonic {
	case isa.ADD, isa.SUB, isa.MULT, isa.DIV:
		return ins.Rd, true
	case isa.ADDI, isa.ADDIU, isa.LW, isa.LI, isa.LUI, isa.SLTI:
		return ins.Rt, true
	default:
		return 0, false
	}
}

func contains(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
