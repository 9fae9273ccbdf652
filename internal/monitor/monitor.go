// Package monitor exposes a live HTTP dashboard over a running
// Orchestrator, grounded on the teacher's monitoring.Monitor: a
// gorilla/mux router serving small JSON endpoints, gopsutil for host
// resource sampling, and a runtime/pprof CPU profile parsed through
// google/pprof's profile package before being served back as JSON.
package monitor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"

	"github.com/JoaquimCruz/Multicore-simulator/internal/orchestrator"
	"github.com/JoaquimCruz/Multicore-simulator/internal/pcb"
)

// Monitor serves a read-only view of one Orchestrator's progress.
type Monitor struct {
	orch *orchestrator.Orchestrator
	addr string

	listener net.Listener
}

// New creates a Monitor for orch, listening on addr once Start is called.
// addr follows net.Listen's "host:port" syntax; ":0" picks a free port.
func New(orch *orchestrator.Orchestrator, addr string) *Monitor {
	return &Monitor{orch: orch, addr: addr}
}

// Start opens the listener and begins serving in a background goroutine,
// returning the address actually bound (useful when addr was ":0").
func (m *Monitor) Start() (string, error) {
	listener, err := net.Listen("tcp", m.addr)
	if err != nil {
		return "", fmt.Errorf("monitor: listening on %s: %w", m.addr, err)
	}
	m.listener = listener

	go func() {
		_ = http.Serve(listener, m.router())
	}()

	return listener.Addr().String(), nil
}

// Close stops accepting new dashboard connections.
func (m *Monitor) Close() error {
	if m.listener == nil {
		return nil
	}
	return m.listener.Close()
}

func (m *Monitor) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/status", m.status)
	r.HandleFunc("/api/pcbs", m.pcbs)
	r.HandleFunc("/api/pcb/{pid}", m.pcbDetail)
	r.HandleFunc("/api/resource", m.resource)
	r.HandleFunc("/api/profile", m.profile)
	return r
}

type statusRsp struct {
	TotalProcesses int `json:"total_processes"`
	Finished       int `json:"finished"`
}

func (m *Monitor) status(w http.ResponseWriter, _ *http.Request) {
	procs := m.orch.Processes()

	finished := 0
	for _, p := range procs {
		if p.State() == pcb.Finished {
			finished++
		}
	}

	writeJSON(w, statusRsp{TotalProcesses: len(procs), Finished: finished})
}

type pcbSummary struct {
	PID     int    `json:"pid"`
	Name    string `json:"name"`
	State   string `json:"state"`
	CPUTime uint64 `json:"cpu_time"`
}

func (m *Monitor) pcbs(w http.ResponseWriter, _ *http.Request) {
	procs := m.orch.Processes()

	summaries := make([]pcbSummary, 0, len(procs))
	for _, p := range procs {
		summaries = append(summaries, pcbSummary{
			PID: p.PID, Name: p.Name, State: p.State().String(), CPUTime: p.CPUTime,
		})
	}

	writeJSON(w, summaries)
}

func (m *Monitor) pcbDetail(w http.ResponseWriter, r *http.Request) {
	pidStr := mux.Vars(r)["pid"]

	for _, p := range m.orch.Processes() {
		if fmt.Sprint(p.PID) == pidStr {
			writeJSON(w, map[string]interface{}{
				"pid":           p.PID,
				"name":          p.Name,
				"state":         p.State().String(),
				"arrival":       p.ArrivalTime,
				"first_start":   p.FirstStartTime,
				"finish":        p.FinishTime,
				"waiting":       p.WaitingTime,
				"cpu_time":      p.CPUTime,
				"cache_hits":    p.Counters.CacheHits.Load(),
				"cache_misses":  p.Counters.CacheMisses.Load(),
				"io_cycles":     p.Counters.IOCycles.Load(),
				"pipeline_ticks": p.Counters.PipelineCycles.Load(),
			})
			return
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("process not found"))
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) resource(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memInfo, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, resourceRsp{CPUPercent: cpuPercent, MemorySize: memInfo.RSS})
}

// profile captures a one-second CPU profile of the running simulator and
// parses it through google/pprof's profile package before serving it back
// as JSON, the same round-trip the teacher's dashboard performs.
func (m *Monitor) profile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	time.Sleep(time.Second)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}
