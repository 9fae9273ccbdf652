// Package loader implements the batch, process-manifest and program
// loaders described in spec.md §6: reading the JSON batch/process/program
// files, assembling each program's instruction stream with internal/isa,
// and writing the assembled words and data section into a process's
// virtual address space through the Memory Manager.
package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/JoaquimCruz/Multicore-simulator/internal/isa"
	"github.com/JoaquimCruz/Multicore-simulator/internal/mmu"
	"github.com/JoaquimCruz/Multicore-simulator/internal/pcb"
	"github.com/JoaquimCruz/Multicore-simulator/internal/regbank"
)

// BatchManifest lists the per-process manifest files that make up one
// simulation run.
type BatchManifest struct {
	Processes []string `json:"processes"`
}

// ProcessManifest names one process's program and OS-assigned metadata.
type ProcessManifest struct {
	PID         int    `json:"pid"`
	Name        string `json:"name"`
	ProgramPath string `json:"program_path"`
	Priority    int    `json:"priority"`
}

// instructionRecord is the union of every field any mnemonic's program
// record might carry; unused fields for a given mnemonic are left zero.
type instructionRecord struct {
	Instruction string      `json:"instruction"`
	Rs          string      `json:"rs"`
	Rt          string      `json:"rt"`
	Rd          string      `json:"rd"`
	Immediate   json.Number `json:"immediate"`
	Addr        string      `json:"addr"`
	BaseReg     string      `json:"baseReg"`
	Base        string      `json:"base"`
	Offset      json.Number `json:"offset"`
	Label       string      `json:"label"`
	Label1      string      `json:"label1"`
	Address     json.RawMessage `json:"address"`
}

// dataRecord is the array-of-records form of the "data" section.
type dataRecord struct {
	Label string          `json:"label"`
	Value json.RawMessage `json:"value"`
}

// programFile is the on-disk shape of a program JSON file.
type programFile struct {
	Data    json.RawMessage      `json:"data"`
	Program []instructionRecord  `json:"program"`
}

// LoadBatch reads a batch manifest from path.
func LoadBatch(path string) (BatchManifest, error) {
	var b BatchManifest
	raw, err := os.ReadFile(path)
	if err != nil {
		return b, fmt.Errorf("loader: reading batch manifest %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, &b); err != nil {
		return b, fmt.Errorf("loader: parsing batch manifest %s: %w", path, err)
	}
	return b, nil
}

// LoadProcessManifest reads one per-process manifest from path.
func LoadProcessManifest(path string) (ProcessManifest, error) {
	var pm ProcessManifest
	raw, err := os.ReadFile(path)
	if err != nil {
		return pm, fmt.Errorf("loader: reading process manifest %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, &pm); err != nil {
		return pm, fmt.Errorf("loader: parsing process manifest %s: %w", path, err)
	}
	return pm, nil
}

// assembler holds the per-load symbol tables. A fresh assembler is built
// for every program file, matching the original's "clear maps between
// processes" reset.
type assembler struct {
	dataLabels  map[string]uint32
	branchLabels map[string]uint32
}

func newAssembler() *assembler {
	return &assembler{
		dataLabels:   make(map[string]uint32),
		branchLabels: make(map[string]uint32),
	}
}

// LoadProgram reads the program file at path, writes its data section and
// assembled instruction stream into p's virtual address space starting at
// startAddr via m, and sets p.BurstTime and the initial PC (the "start"
// label's address if one is defined, else startAddr).
func LoadProgram(m *mmu.Manager, p *pcb.PCB, path string, startAddr uint32) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("loader: reading program %s: %w", path, err)
	}

	var pf programFile
	if err := json.Unmarshal(raw, &pf); err != nil {
		return fmt.Errorf("loader: parsing program %s: %w", path, err)
	}

	asm := newAssembler()

	addr := startAddr
	if len(pf.Data) > 0 {
		addr, err = asm.loadData(m, p, pf.Data, addr)
		if err != nil {
			return fmt.Errorf("loader: %s: data section: %w", path, err)
		}
	}

	if err := asm.assembleProgram(m, p, pf.Program, addr); err != nil {
		return fmt.Errorf("loader: %s: program section: %w", path, err)
	}

	return nil
}

// loadData writes the "data" section's words starting at addr, recording
// each label's byte address, and returns the address just past the last
// word written.
func (a *assembler) loadData(m *mmu.Manager, p *pcb.PCB, raw json.RawMessage, addr uint32) (uint32, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var records []dataRecord
		if err := json.Unmarshal(raw, &records); err != nil {
			return addr, err
		}
		for _, rec := range records {
			if rec.Label != "" {
				a.dataLabels[rec.Label] = addr
			}
			words, err := decodeDataValue(rec.Value)
			if err != nil {
				return addr, err
			}
			for _, w := range words {
				m.Write(addr, w, p)
				addr += 4
			}
		}
		return addr, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return addr, err
	}
	// Go map iteration order is random; the original's ordered-map
	// iteration only matters for consistent byte offsets within a single
	// load, not across loads, so this is safe.
	for label, value := range obj {
		a.dataLabels[label] = addr
		words, err := decodeDataValue(value)
		if err != nil {
			return addr, err
		}
		for _, w := range words {
			m.Write(addr, w, p)
			addr += 4
		}
	}
	return addr, nil
}

func decodeDataValue(raw json.RawMessage) ([]int32, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		words := make([]int32, 0, len(items))
		for _, item := range items {
			w, err := parseDataWord(item)
			if err != nil {
				return nil, err
			}
			words = append(words, w)
		}
		return words, nil
	}
	w, err := parseDataWord(raw)
	if err != nil {
		return nil, err
	}
	return []int32{w}, nil
}

func parseDataWord(raw json.RawMessage) (int32, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return parseIntLiteral(asString)
	}
	var asNumber json.Number
	if err := json.Unmarshal(raw, &asNumber); err != nil {
		return 0, fmt.Errorf("loader: data value %q is neither string nor number", raw)
	}
	n, err := asNumber.Int64()
	if err != nil {
		return 0, err
	}
	return int32(n), nil
}

func parseIntLiteral(s string) (int32, error) {
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "0x") {
		n, err := strconv.ParseInt(lower[2:], 16, 64)
		return int32(n), err
	}
	n, err := strconv.ParseInt(lower, 10, 64)
	return int32(n), err
}

// assembleProgram runs the original's two-pass scheme: first compute every
// instruction-defined label's byte address, then encode and write each
// instruction word, per spec.md §6's labelling rule.
func (a *assembler) assembleProgram(m *mmu.Manager, p *pcb.PCB, records []instructionRecord, startAddr uint32) error {
	cur := startAddr
	for _, rec := range records {
		mnem := isa.Mnemonic(strings.ToUpper(rec.Instruction))
		isBranchFamily := isBranchOrJump(mnem)

		definesLabel := rec.Label != "" && (!isBranchFamily || rec.Label1 != "")
		if definesLabel {
			a.branchLabels[rec.Label] = cur
		}
		cur += 4
	}

	p.BurstTime = int((cur - startAddr) / 4)

	if start, ok := a.branchLabels["start"]; ok {
		p.Registers.PC = start
	} else {
		p.Registers.PC = startAddr
	}

	addr := startAddr
	for _, rec := range records {
		word, err := a.encodeInstruction(rec, addr)
		if err != nil {
			return fmt.Errorf("instruction %d: %w", (addr-startAddr)/4, err)
		}
		m.Write(addr, int32(word), p)
		addr += 4
	}

	return nil
}

func isBranchOrJump(m isa.Mnemonic) bool {
	switch m {
	case isa.J, isa.JAL, isa.BEQ, isa.BNE, isa.BGT, isa.BLT:
		return true
	default:
		return false
	}
}

func (a *assembler) encodeInstruction(rec instructionRecord, addr uint32) (uint32, error) {
	mnem := isa.Mnemonic(strings.ToUpper(rec.Instruction))

	switch mnem {
	case isa.END, isa.PRINT:
		rt := 0
		if rec.Rt != "" {
			var err error
			rt, err = regbank.IndexOf(rec.Rt)
			if err != nil {
				return 0, err
			}
		}
		return isa.EncodeI(mnem, 0, rt, 0)

	case isa.ADD, isa.SUB, isa.MULT, isa.DIV:
		rs, err := regbank.IndexOf(rec.Rs)
		if err != nil {
			return 0, err
		}
		rt, err := regbank.IndexOf(rec.Rt)
		if err != nil {
			return 0, err
		}
		rd, err := regbank.IndexOf(rec.Rd)
		if err != nil {
			return 0, err
		}
		return isa.EncodeR(mnem, rs, rt, rd, 0)

	case isa.J, isa.JAL:
		if rec.Label1 != "" || rec.Label != "" {
			target, ok := a.branchLabels[firstNonEmpty(rec.Label1, rec.Label)]
			if !ok {
				return 0, fmt.Errorf("unknown jump label %q", firstNonEmpty(rec.Label1, rec.Label))
			}
			return isa.EncodeJ(mnem, target)
		}
		if len(rec.Address) > 0 {
			target, err := parseAddressLiteral(rec.Address)
			if err != nil {
				return 0, err
			}
			return isa.EncodeJ(mnem, target)
		}
		return 0, fmt.Errorf("jump requires 'label', 'label1' or 'address'")

	case isa.BEQ, isa.BNE, isa.BGT, isa.BLT:
		rs, err := regbank.IndexOf(rec.Rs)
		if err != nil {
			return 0, err
		}
		rt, err := regbank.IndexOf(rec.Rt)
		if err != nil {
			return 0, err
		}
		var imm int64
		if target := firstNonEmpty(rec.Label1, rec.Label); target != "" {
			addr, ok := a.branchLabels[target]
			if !ok {
				return 0, fmt.Errorf("unknown branch label %q", target)
			}
			imm = int64(addr)
		} else {
			imm, err = rec.Offset.Int64()
			if err != nil {
				return 0, fmt.Errorf("%s requires a target label or 'offset'", mnem)
			}
		}
		return isa.EncodeI(mnem, rs, rt, int16(imm))

	case isa.LW, isa.SW:
		rt, err := regbank.IndexOf(rec.Rt)
		if err != nil {
			return 0, err
		}
		rs, imm, err := a.resolveMemoryOperand(rec)
		if err != nil {
			return 0, err
		}
		return isa.EncodeI(mnem, rs, rt, imm)

	case isa.LI:
		rt, err := regbank.IndexOf(rec.Rt)
		if err != nil {
			return 0, err
		}
		imm, err := rec.Immediate.Int64()
		if err != nil {
			return 0, err
		}
		return isa.EncodeI(mnem, 0, rt, int16(imm))

	case isa.ADDI, isa.ADDIU, isa.ANDI, isa.SLTI:
		rs, err := regbank.IndexOf(rec.Rs)
		if err != nil {
			return 0, err
		}
		rt, err := regbank.IndexOf(rec.Rt)
		if err != nil {
			return 0, err
		}
		imm, err := rec.Immediate.Int64()
		if err != nil {
			return 0, err
		}
		return isa.EncodeI(mnem, rs, rt, int16(imm))

	case isa.LUI:
		rt, err := regbank.IndexOf(rec.Rt)
		if err != nil {
			return 0, err
		}
		imm, err := rec.Immediate.Int64()
		if err != nil {
			return 0, err
		}
		return isa.EncodeI(mnem, 0, rt, int16(imm))

	default:
		return 0, fmt.Errorf("unknown instruction mnemonic %q", rec.Instruction)
	}
}

// resolveMemoryOperand implements LW/SW's three addressing forms:
// "addr": "offset(base)", baseReg+offset, or a data label plus offset.
func (a *assembler) resolveMemoryOperand(rec instructionRecord) (rs int, imm int16, err error) {
	switch {
	case rec.Addr != "":
		return parseOffsetBase(rec.Addr)

	case rec.BaseReg != "":
		rs, err = regbank.IndexOf(rec.BaseReg)
		if err != nil {
			return 0, 0, err
		}
		off, _ := rec.Offset.Int64()
		return rs, int16(off), nil

	case rec.Base != "":
		base, ok := a.dataLabels[rec.Base]
		if !ok {
			return 0, 0, fmt.Errorf("unknown data label %q", rec.Base)
		}
		off, _ := rec.Offset.Int64()
		return 0, int16(int64(base) + off), nil

	default:
		return 0, 0, fmt.Errorf("lw/sw requires 'addr', 'baseReg', or 'base'")
	}
}

func parseOffsetBase(expr string) (rs int, imm int16, err error) {
	l := strings.IndexByte(expr, '(')
	r := strings.IndexByte(expr, ')')
	if l < 0 || r < 0 || r <= l+1 {
		return 0, 0, fmt.Errorf("invalid address expression %q", expr)
	}
	off, err := strconv.ParseInt(strings.TrimSpace(expr[:l]), 10, 64)
	if err != nil {
		return 0, 0, err
	}
	base := expr[l+1 : r]
	rs, err = regbank.IndexOf(base)
	if err != nil {
		return 0, 0, err
	}
	return rs, int16(off), nil
}

func parseAddressLiteral(raw json.RawMessage) (uint32, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		n, err := parseIntLiteral(asString)
		return uint32(n), err
	}
	var asNumber json.Number
	if err := json.Unmarshal(raw, &asNumber); err != nil {
		return 0, fmt.Errorf("loader: address %q is neither string nor number", raw)
	}
	n, err := asNumber.Int64()
	return uint32(n), err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
