// Package isa implements the MIPS-like instruction encoding (assembly and
// decode) that the loader and the pipeline share: opcode/funct tables,
// 32-bit word assembly from the JSON program records described in §6, and
// the decode used by the control unit's fetch/decode stages.
package isa

import "fmt"

// EndSentinel is the reserved word that terminates a program.
const EndSentinel uint32 = 0xFC000000

// Mnemonic identifies a recognised instruction. The zero value, "", decodes
// any unrecognised opcode as a no-op and is distinct from Bubble, which is
// synthetic (never assembled, only inserted by the pipeline).
type Mnemonic string

// The recognised mnemonics, matching the opcode table exactly.
const (
	ADD    Mnemonic = "ADD"
	SUB    Mnemonic = "SUB"
	MULT   Mnemonic = "MULT"
	DIV    Mnemonic = "DIV"
	J      Mnemonic = "J"
	JAL    Mnemonic = "JAL"
	BEQ    Mnemonic = "BEQ"
	BNE    Mnemonic = "BNE"
	BGT    Mnemonic = "BGT"
	BLT    Mnemonic = "BLT"
	ADDI   Mnemonic = "ADDI"
	ADDIU  Mnemonic = "ADDIU"
	ANDI   Mnemonic = "ANDI"
	SLTI   Mnemonic = "SLTI"
	LUI    Mnemonic = "LUI"
	LW     Mnemonic = "LW"
	SW     Mnemonic = "SW"
	LI     Mnemonic = "LI"
	PRINT  Mnemonic = "PRINT"
	END    Mnemonic = "END"
	Bubble Mnemonic = "BUBBLE"
	NOP    Mnemonic = ""
)

// Opcodes, per spec.md's decode table.
const (
	opR      = 0x00
	opJ      = 0x02
	opJAL    = 0x03
	opBLT    = 0x01
	opBEQ    = 0x04
	opBNE    = 0x05
	opBGT    = 0x07
	opADDI   = 0x08
	opADDIU  = 0x09
	opSLTI   = 0x0A
	opANDI   = 0x0C
	opLI     = 0x0E
	opLUI    = 0x0F
	opPRINT  = 0x10
	opLW     = 0x23
	opSW     = 0x2B
	opEND    = 0x3F
)

// Funct codes for the R-type arithmetic family.
const (
	functADD  = 0x20
	functSUB  = 0x22
	functMULT = 0x18
	functDIV  = 0x1A
)

// Instruction is the decoded form of a 32-bit word: every field the
// pipeline's decode stage needs, decoded eagerly rather than re-extracted
// from Raw on every stage.
type Instruction struct {
	Raw      uint32
	Mnemonic Mnemonic

	Opcode uint32
	Funct  uint32

	Rs, Rt, Rd int
	Shamt      int

	Imm        int16
	SignExtImm int32

	Target uint32
}

// NewBubble returns the synthetic no-op latch the pipeline inserts on a
// hazard stall or branch flush. It carries no raw word.
func NewBubble() Instruction {
	return Instruction{Mnemonic: Bubble}
}

// IsBubble reports whether the instruction is the synthetic bubble, which
// consumes a pipeline cycle but has no decode-time effect.
func (ins Instruction) IsBubble() bool {
	return ins.Mnemonic == Bubble
}

// Decode extracts every field spec.md §4.7's decode stage names and
// resolves the mnemonic from the opcode/funct tables. Unknown opcodes
// decode to NOP ("").
func Decode(word uint32) Instruction {
	ins := Instruction{
		Raw:    word,
		Opcode: (word >> 26) & 0x3F,
		Funct:  word & 0x3F,
		Rs:     int((word >> 21) & 0x1F),
		Rt:     int((word >> 16) & 0x1F),
		Rd:     int((word >> 11) & 0x1F),
		Shamt:  int((word >> 6) & 0x1F),
		Imm:    int16(word & 0xFFFF),
		Target: word & 0x03FFFFFF,
	}
	ins.SignExtImm = int32(ins.Imm)
	ins.Mnemonic = mnemonicFor(ins.Opcode, ins.Funct)
	return ins
}

func mnemonicFor(opcode, funct uint32) Mnemonic {
	if opcode == opR {
		switch funct {
		case functADD:
			return ADD
		case functSUB:
			return SUB
		case functMULT:
			return MULT
		case functDIV:
			return DIV
		default:
			return NOP
		}
	}

	switch opcode {
	case opJ:
		return J
	case opJAL:
		return JAL
	case opBLT:
		return BLT
	case opBEQ:
		return BEQ
	case opBNE:
		return BNE
	case opBGT:
		return BGT
	case opADDI:
		return ADDI
	case opADDIU:
		return ADDIU
	case opSLTI:
		return SLTI
	case opANDI:
		return ANDI
	case opLI:
		return LI
	case opLUI:
		return LUI
	case opPRINT:
		return PRINT
	case opLW:
		return LW
	case opSW:
		return SW
	case opEND:
		return END
	default:
		return NOP
	}
}

// opcodeFor is the inverse of mnemonicFor's non-R-type branch, used by the
// assembler. LA is accepted as an assembler-only alias for LI: the opcode
// table has no separate encoding for it.
func opcodeFor(m Mnemonic) (uint32, bool) {
	switch m {
	case J:
		return opJ, true
	case JAL:
		return opJAL, true
	case BLT:
		return opBLT, true
	case BEQ:
		return opBEQ, true
	case BNE:
		return opBNE, true
	case BGT:
		return opBGT, true
	case ADDI:
		return opADDI, true
	case ADDIU:
		return opADDIU, true
	case SLTI:
		return opSLTI, true
	case ANDI:
		return opANDI, true
	case LI, "LA":
		return opLI, true
	case LUI:
		return opLUI, true
	case PRINT:
		return opPRINT, true
	case LW:
		return opLW, true
	case SW:
		return opSW, true
	case END:
		return opEND, true
	default:
		return 0, false
	}
}

func functFor(m Mnemonic) (uint32, bool) {
	switch m {
	case ADD:
		return functADD, true
	case SUB:
		return functSUB, true
	case MULT:
		return functMULT, true
	case DIV:
		return functDIV, true
	default:
		return 0, false
	}
}

// EncodeR assembles an R-type word: ADD/SUB/MULT/DIV.
func EncodeR(m Mnemonic, rs, rt, rd, shamt int) (uint32, error) {
	funct, ok := functFor(m)
	if !ok {
		return 0, fmt.Errorf("isa: %q is not an R-type mnemonic", m)
	}
	return (uint32(opR) << 26) |
		(uint32(rs&0x1F) << 21) |
		(uint32(rt&0x1F) << 16) |
		(uint32(rd&0x1F) << 11) |
		(uint32(shamt&0x1F) << 6) |
		funct, nil
}

// EncodeI assembles an I-type word: branches, immediate-arithmetic,
// LW/SW/LI/PRINT.
func EncodeI(m Mnemonic, rs, rt int, imm int16) (uint32, error) {
	opcode, ok := opcodeFor(m)
	if !ok {
		return 0, fmt.Errorf("isa: %q is not an I-type mnemonic", m)
	}
	return (opcode << 26) |
		(uint32(rs&0x1F) << 21) |
		(uint32(rt&0x1F) << 16) |
		uint32(uint16(imm)), nil
}

// EncodeJ assembles a J-type word: J, JAL, END (END carries no operand and
// is assembled with a zero target).
func EncodeJ(m Mnemonic, target uint32) (uint32, error) {
	opcode, ok := opcodeFor(m)
	if !ok {
		return 0, fmt.Errorf("isa: %q is not a J-type mnemonic", m)
	}
	return (opcode << 26) | (target & 0x03FFFFFF), nil
}

// IsBranchOrJump reports whether m is resolved in the pipeline's branch
// family (BEQ, BNE, BLT, BGT, J); JAL is excluded since spec.md's execute
// dispatch names only these four plus J under "Branches".
func IsBranchOrJump(m Mnemonic) bool {
	switch m {
	case BEQ, BNE, BLT, BGT, J:
		return true
	default:
		return false
	}
}

// IsImmediateArith reports whether m belongs to the immediate-arithmetic
// family dispatched in Execute (ADDI, ADDIU, SLTI, LUI, LI).
func IsImmediateArith(m Mnemonic) bool {
	switch m {
	case ADDI, ADDIU, SLTI, LUI, LI:
		return true
	default:
		return false
	}
}

// IsRArithmetic reports whether m belongs to the R-type arithmetic family
// (ADD, SUB, MULT, DIV).
func IsRArithmetic(m Mnemonic) bool {
	switch m {
	case ADD, SUB, MULT, DIV:
		return true
	default:
		return false
	}
}
