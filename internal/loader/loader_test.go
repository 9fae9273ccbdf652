package loader_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/JoaquimCruz/Multicore-simulator/internal/isa"
	"github.com/JoaquimCruz/Multicore-simulator/internal/loader"
	"github.com/JoaquimCruz/Multicore-simulator/internal/mmu"
	"github.com/JoaquimCruz/Multicore-simulator/internal/pcb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, dir, name string, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func TestLoadBatchReadsProcessList(t *testing.T) {
	dir := t.TempDir()
	path := writeJSON(t, dir, "batch.json", map[string]any{
		"processes": []string{"a.json", "b.json"},
	})

	b, err := loader.LoadBatch(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.json", "b.json"}, b.Processes)
}

func TestLoadProcessManifest(t *testing.T) {
	dir := t.TempDir()
	path := writeJSON(t, dir, "p.json", map[string]any{
		"pid": 3, "name": "worker", "program_path": "worker.prog.json", "priority": 5,
	})

	pm, err := loader.LoadProcessManifest(path)
	require.NoError(t, err)
	assert.Equal(t, 3, pm.PID)
	assert.Equal(t, "worker", pm.Name)
	assert.Equal(t, "worker.prog.json", pm.ProgramPath)
	assert.Equal(t, 5, pm.Priority)
}

func TestLoadProgramAssemblesArithmetic(t *testing.T) {
	dir := t.TempDir()
	path := writeJSON(t, dir, "prog.json", map[string]any{
		"program": []map[string]any{
			{"instruction": "li", "rt": "$t0", "immediate": 5},
			{"instruction": "li", "rt": "$t1", "immediate": 7},
			{"instruction": "add", "rs": "$t0", "rt": "$t1", "rd": "$t2"},
			{"instruction": "end"},
		},
	})

	m := mmu.New(4096, 4096, 8)
	p := pcb.New(1, "arith", path, 0, 0, 0)

	require.NoError(t, loader.LoadProgram(m, p, path, 0))

	assert.EqualValues(t, 4, p.BurstTime)
	assert.EqualValues(t, 0, p.Registers.PC)

	word0 := uint32(m.Read(0, p))
	ins0 := isa.Decode(word0)
	assert.Equal(t, isa.LI, ins0.Mnemonic)
	assert.EqualValues(t, 5, ins0.SignExtImm)

	word3 := uint32(m.Read(12, p))
	assert.Equal(t, isa.EndSentinel, word3)
}

func TestLoadProgramHonoursStartLabel(t *testing.T) {
	dir := t.TempDir()
	path := writeJSON(t, dir, "prog.json", map[string]any{
		"program": []map[string]any{
			{"instruction": "li", "rt": "$t0", "immediate": 1},
			{"instruction": "li", "rt": "$t1", "immediate": 2, "label": "start"},
			{"instruction": "end"},
		},
	})

	m := mmu.New(4096, 4096, 8)
	p := pcb.New(1, "start", path, 0, 0, 0)

	require.NoError(t, loader.LoadProgram(m, p, path, 0))

	assert.EqualValues(t, 4, p.Registers.PC)
}

func TestLoadProgramResolvesBranchLabels(t *testing.T) {
	dir := t.TempDir()
	path := writeJSON(t, dir, "prog.json", map[string]any{
		"program": []map[string]any{
			{"instruction": "li", "rt": "$t0", "immediate": 3},
			{"instruction": "beq", "rs": "$t0", "rt": "$t0", "label1": "skip"},
			{"instruction": "li", "rt": "$t1", "immediate": 99},
			{"instruction": "li", "rt": "$t1", "immediate": 1, "label": "skip"},
			{"instruction": "end"},
		},
	})

	m := mmu.New(4096, 4096, 8)
	p := pcb.New(1, "branch", path, 0, 0, 0)

	require.NoError(t, loader.LoadProgram(m, p, path, 0))

	beqWord := uint32(m.Read(4, p))
	ins := isa.Decode(beqWord)
	assert.Equal(t, isa.BEQ, ins.Mnemonic)
	assert.EqualValues(t, 12, ins.SignExtImm) // byte address of the "skip" instruction
}

func TestLoadProgramAssemblesDataSectionAndLoadsThroughMemory(t *testing.T) {
	dir := t.TempDir()
	path := writeJSON(t, dir, "prog.json", map[string]any{
		"data": map[string]any{
			"counter": 41,
		},
		"program": []map[string]any{
			{"instruction": "lw", "rt": "$t0", "base": "counter"},
			{"instruction": "end"},
		},
	})

	m := mmu.New(4096, 4096, 8)
	p := pcb.New(1, "data", path, 0, 0, 0)

	require.NoError(t, loader.LoadProgram(m, p, path, 0))

	// "counter" occupies address 0; the program text starts right after.
	assert.EqualValues(t, 41, m.Read(0, p))

	lwWord := uint32(m.Read(4, p))
	ins := isa.Decode(lwWord)
	assert.Equal(t, isa.LW, ins.Mnemonic)
	assert.EqualValues(t, 0, ins.SignExtImm)
}

func TestLoadProgramRejectsUnknownRegister(t *testing.T) {
	dir := t.TempDir()
	path := writeJSON(t, dir, "prog.json", map[string]any{
		"program": []map[string]any{
			{"instruction": "li", "rt": "$bogus", "immediate": 1},
		},
	})

	m := mmu.New(4096, 4096, 8)
	p := pcb.New(1, "bad", path, 0, 0, 0)

	err := loader.LoadProgram(m, p, path, 0)
	assert.Error(t, err)
}
