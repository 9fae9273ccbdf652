package report_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/JoaquimCruz/Multicore-simulator/internal/orchestrator"
	"github.com/JoaquimCruz/Multicore-simulator/internal/pcb"
	"github.com/JoaquimCruz/Multicore-simulator/internal/report"
	"github.com/JoaquimCruz/Multicore-simulator/internal/scheduler"
	"github.com/JoaquimCruz/Multicore-simulator/internal/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDirsCreatesAllThree(t *testing.T) {
	root := filepath.Join(t.TempDir(), "output")
	layout := report.DefaultLayout(root)

	require.NoError(t, report.EnsureDirs(layout))

	assert.DirExists(t, layout.MetricasDir)
	assert.DirExists(t, layout.ResultadosDir)
	assert.DirExists(t, layout.TraceLogsDir)
}

func TestWriteMetricsNamesFileByPolicy(t *testing.T) {
	root := filepath.Join(t.TempDir(), "output")
	layout := report.DefaultLayout(root)
	require.NoError(t, report.EnsureDirs(layout))

	m := orchestrator.Metrics{TotalSimulation: 100, AvgWaiting: 2.5, Throughput: 0.04}
	require.NoError(t, report.WriteMetrics(layout, scheduler.RR, m))

	path := filepath.Join(layout.MetricasDir, "metricas_RR.dat")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "total_simulation=100")
	assert.Contains(t, string(raw), "avg_waiting=2.5000")
}

func TestWriteSummaryListsEveryProcess(t *testing.T) {
	root := filepath.Join(t.TempDir(), "output")
	layout := report.DefaultLayout(root)
	require.NoError(t, report.EnsureDirs(layout))

	a := pcb.New(1, "alpha", "a.json", 20, 0, 5)
	b := pcb.New(2, "beta", "b.json", 20, 0, 5)
	require.NoError(t, report.WriteSummary(layout, []*pcb.PCB{a, b}))

	raw, err := os.ReadFile(filepath.Join(layout.ResultadosDir, "resultados.dat"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "pid=1 name=alpha")
	assert.Contains(t, string(raw), "pid=2 name=beta")
}

func TestWriteProcessResultFoldsInTraceLog(t *testing.T) {
	root := filepath.Join(t.TempDir(), "output")
	layout := report.DefaultLayout(root)
	require.NoError(t, report.EnsureDirs(layout))

	p := pcb.New(7, "traced", "t.json", 20, 0, 1)

	tracer := report.NewProcessTracer(layout.TraceLogsDir)
	hook := tracer.Hook()
	hook.Func(p, nil, "ADD")
	require.NoError(t, tracer.Close())

	require.NoError(t, report.WriteProcessResult(layout, p))

	raw, err := os.ReadFile(filepath.Join(layout.ResultadosDir, "output_7.dat"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "pid=7 name=traced")
	assert.Contains(t, string(raw), "--- trace ---")
	assert.Contains(t, string(raw), "op=ADD")
}

func TestWriteProcessResultWithoutTraceLogStillWritesDump(t *testing.T) {
	root := filepath.Join(t.TempDir(), "output")
	layout := report.DefaultLayout(root)
	require.NoError(t, report.EnsureDirs(layout))

	p := pcb.New(9, "untraced", "u.json", 20, 0, 1)
	require.NoError(t, report.WriteProcessResult(layout, p))

	raw, err := os.ReadFile(filepath.Join(layout.ResultadosDir, "output_9.dat"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "pid=9 name=untraced")
}

func TestProcessTracerIgnoresNonPCBItems(t *testing.T) {
	dir := t.TempDir()
	tracer := report.NewProcessTracer(dir)

	hook := tracer.Hook()
	assert.Equal(t, trace.StageInvoked, hook.Pos())
	hook.Func("not-a-pcb", nil, "ADD")

	require.NoError(t, tracer.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTraceLoggerWritesBothFilesAndTracksServicedCount(t *testing.T) {
	root := t.TempDir()
	logger, err := report.NewTraceLogger(root)
	require.NoError(t, err)

	logger.LogResult("id=a pid=1 device=disk cost_ms=100 msg=")
	logger.LogResult("id=b pid=2 device=printer cost_ms=200 msg=")
	require.NoError(t, logger.Close())

	result, err := os.ReadFile(filepath.Join(root, "result.dat"))
	require.NoError(t, err)
	assert.Contains(t, string(result), "pid=1 device=disk")
	assert.Contains(t, string(result), "pid=2 device=printer")

	ioMetrics, err := os.ReadFile(filepath.Join(root, "io_metrics.dat"))
	require.NoError(t, err)
	assert.Contains(t, string(ioMetrics), "serviced_total=1")
	assert.Contains(t, string(ioMetrics), "serviced_total=2")
}
