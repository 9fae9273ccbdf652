package metricsdb_test

import (
	"path/filepath"
	"testing"

	"github.com/JoaquimCruz/Multicore-simulator/internal/metricsdb"
	"github.com/JoaquimCruz/Multicore-simulator/internal/orchestrator"
	"github.com/JoaquimCruz/Multicore-simulator/internal/pcb"
	"github.com/JoaquimCruz/Multicore-simulator/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesSchemaAndAssignsRunID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.db")

	db, err := metricsdb.Open(path)
	require.NoError(t, err)
	defer db.Close()

	assert.NotEmpty(t, db.RunID)
}

func TestRecordProcessAndRunSucceed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.db")

	db, err := metricsdb.Open(path)
	require.NoError(t, err)
	defer db.Close()

	p := pcb.New(1, "alpha", "a.json", 20, 0, 5)
	p.FinishTime = 100
	require.NoError(t, db.RecordProcess(scheduler.FCFS, p))

	m := orchestrator.Metrics{TotalSimulation: 100, Throughput: 0.01}
	require.NoError(t, db.RecordRun(scheduler.FCFS, m))
}

func TestCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.db")

	db, err := metricsdb.Open(path)
	require.NoError(t, err)

	assert.NoError(t, db.Close())
	assert.NoError(t, db.Close())
}
