package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JoaquimCruz/Multicore-simulator/internal/ioservice"
	"github.com/JoaquimCruz/Multicore-simulator/internal/mmu"
	"github.com/JoaquimCruz/Multicore-simulator/internal/orchestrator"
	"github.com/JoaquimCruz/Multicore-simulator/internal/pcb"
	"github.com/JoaquimCruz/Multicore-simulator/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(t *testing.T) *orchestrator.Orchestrator {
	t.Helper()
	m := mmu.New(4096, 4096, 8)
	io := ioservice.New(nil)
	orch := orchestrator.New(m, io, scheduler.FCFS, 1, 20)
	orch.Admit(pcb.New(1, "alpha", "a.json", 20, 0, 5))
	return orch
}

func TestStatusReportsTotalAndFinishedCounts(t *testing.T) {
	orch := newTestOrchestrator(t)
	mon := New(orch, ":0")

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	mon.router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var rsp statusRsp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rsp))
	assert.Equal(t, 1, rsp.TotalProcesses)
	assert.Equal(t, 0, rsp.Finished)
}

func TestPCBsListsAdmittedProcesses(t *testing.T) {
	orch := newTestOrchestrator(t)
	mon := New(orch, ":0")

	req := httptest.NewRequest(http.MethodGet, "/api/pcbs", nil)
	rec := httptest.NewRecorder()
	mon.router().ServeHTTP(rec, req)

	var summaries []pcbSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "alpha", summaries[0].Name)
}

func TestPCBDetailReturns404ForUnknownPID(t *testing.T) {
	orch := newTestOrchestrator(t)
	mon := New(orch, ":0")

	req := httptest.NewRequest(http.MethodGet, "/api/pcb/999", nil)
	rec := httptest.NewRecorder()
	mon.router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPCBDetailReturnsKnownProcess(t *testing.T) {
	orch := newTestOrchestrator(t)
	mon := New(orch, ":0")

	req := httptest.NewRequest(http.MethodGet, "/api/pcb/1", nil)
	rec := httptest.NewRecorder()
	mon.router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "\"name\":\"alpha\"")
}

func TestStartBindsAFreePortAndCloseStops(t *testing.T) {
	orch := newTestOrchestrator(t)
	mon := New(orch, "127.0.0.1:0")

	addr, err := mon.Start()
	require.NoError(t, err)
	assert.NotEmpty(t, addr)

	require.NoError(t, mon.Close())
}
