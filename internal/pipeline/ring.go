package pipeline

import "github.com/JoaquimCruz/Multicore-simulator/internal/isa"

// ringBuffer is the pipeline-history compression spec.md's design notes
// call for: fixed capacity, indexed by an ever-increasing tick counter
// modulo its size. Safe as long as no caller looks back further than the
// capacity, which the five-stage pipeline's four-tick maximum lookback
// never does.
type ringBuffer struct {
	slots []isa.Instruction
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{slots: make([]isa.Instruction, size)}
}

func (r *ringBuffer) set(idx int, ins isa.Instruction) {
	r.slots[idx%len(r.slots)] = ins
}

func (r *ringBuffer) get(idx int) isa.Instruction {
	return r.slots[idx%len(r.slots)]
}
