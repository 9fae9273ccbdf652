// Package regbank implements the simulated register bank (C1): the named
// 32-bit general-purpose registers plus the PC, IR and MAR special
// registers used by the pipeline.
package regbank

import (
	"fmt"
	"strings"
)

// Names lists the 32 general-purpose registers in their canonical MIPS-like
// order. Index into this slice is the register's 5-bit encoding.
var Names = [32]string{
	"$zero", "$at", "$v0", "$v1", "$a0", "$a1", "$a2", "$a3",
	"$t0", "$t1", "$t2", "$t3", "$t4", "$t5", "$t6", "$t7",
	"$s0", "$s1", "$s2", "$s3", "$s4", "$s5", "$s6", "$s7",
	"$t8", "$t9", "$k0", "$k1", "$gp", "$sp", "$fp", "$ra",
}

var nameToIndex = func() map[string]int {
	m := make(map[string]int, len(Names))
	for i, n := range Names {
		m[n] = i
	}
	return m
}()

// Bank is the per-process register file plus the PC/IR/MAR special
// registers. A Bank belongs to exactly one PCB and is never shared across
// processes, so it needs no internal locking of its own.
type Bank struct {
	regs [32]int32

	PC  uint32
	IR  uint32
	MAR uint32
}

// New creates a Bank with every register, including the special ones,
// initialized to zero.
func New() *Bank {
	return &Bank{}
}

// IndexOf resolves a register name (e.g. "$t0") to its 5-bit index. It
// returns an error for unrecognized names so the loader can abort loading
// the offending process per the error-handling design.
func IndexOf(name string) (int, error) {
	idx, ok := nameToIndex[name]
	if !ok {
		return 0, fmt.Errorf("regbank: unknown register %q", name)
	}
	return idx, nil
}

// NameOf returns the canonical name for a register index, or "" if idx is
// out of range.
func NameOf(idx int) string {
	if idx < 0 || idx >= len(Names) {
		return ""
	}
	return Names[idx]
}

// Read returns the value of register idx. Reading $zero (index 0) always
// yields 0.
func (b *Bank) Read(idx int) int32 {
	if idx <= 0 || idx >= len(b.regs) {
		return 0
	}
	return b.regs[idx]
}

// ReadByName is a convenience wrapper around Read that resolves the
// register name first.
func (b *Bank) ReadByName(name string) int32 {
	idx, err := IndexOf(name)
	if err != nil {
		return 0
	}
	return b.Read(idx)
}

// Write stores value into register idx. Writes to $zero (index 0) are
// silently discarded, as is any out-of-range index.
func (b *Bank) Write(idx int, value int32) {
	if idx <= 0 || idx >= len(b.regs) {
		return
	}
	b.regs[idx] = value
}

// WriteByName is a convenience wrapper around Write that resolves the
// register name first. Unknown names are ignored.
func (b *Bank) WriteByName(name string, value int32) {
	idx, err := IndexOf(name)
	if err != nil {
		return
	}
	b.Write(idx, value)
}

// Dump renders every register in a stable, human-readable form, matching
// the kind of textual register dump the report writer appends to each
// process's output file.
func (b *Bank) Dump() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "PC=%d IR=0x%08X MAR=%d\n", b.PC, b.IR, b.MAR)

	for i, name := range Names {
		fmt.Fprintf(&sb, "%-5s = %d\n", name, b.regs[i])
		_ = i
	}

	return sb.String()
}

// AdvancePC moves PC to the next instruction word. The pipeline rolls the
// PC back by the same amount on a hazard stall (RewindPC); a taken branch
// overwrites the PC with its target instead.
func (b *Bank) AdvancePC() {
	b.PC += 4
}

// RewindPC undoes the most recent AdvancePC, used when Decode inserts a
// bubble and must re-issue the fetch next cycle.
func (b *Bank) RewindPC() {
	b.PC -= 4
}
