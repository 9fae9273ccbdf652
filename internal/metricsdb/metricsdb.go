// Package metricsdb is the optional durable sink for per-process and
// aggregate metrics, an alternative to the flat ".dat" files
// internal/report writes. It is grounded on the teacher's
// tracing.SQLiteTraceWriter: a single sqlite connection, a handful of
// prepared statements, and an atexit-registered flush so a process that
// exits via atexit.Exit (as the simulator's Execute does on a command
// error) still persists whatever was buffered.
package metricsdb

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite3" driver with database/sql.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/JoaquimCruz/Multicore-simulator/internal/orchestrator"
	"github.com/JoaquimCruz/Multicore-simulator/internal/pcb"
	"github.com/JoaquimCruz/Multicore-simulator/internal/scheduler"
)

// DB is a sqlite-backed metrics sink for one simulator run. Each run gets
// its own RunID (an xid) so multiple runs can share a single database
// file without their process rows colliding.
type DB struct {
	RunID string

	conn          *sql.DB
	insertProcess *sql.Stmt
	insertRunStat *sql.Stmt
}

// Open creates (or reuses) the sqlite file at path, creates its schema if
// missing, and registers a Flush-on-exit callback with tebeka/atexit so
// a fatal cobra command still leaves the database consistent.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("metricsdb: opening %s: %w", path, err)
	}

	if err := createSchema(conn); err != nil {
		conn.Close()
		return nil, err
	}

	insertProcess, err := conn.Prepare(`
		INSERT INTO process_metrics (
			run_id, pid, name, policy, state, arrival, first_start, finish,
			waiting, cpu_time, mem_reads, mem_writes, cache_hits, cache_misses, io_cycles
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("metricsdb: preparing process insert: %w", err)
	}

	insertRunStat, err := conn.Prepare(`
		INSERT INTO run_metrics (
			run_id, policy, total_simulation, avg_waiting, avg_turnaround,
			cpu_utilisation, throughput, efficiency
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		insertProcess.Close()
		conn.Close()
		return nil, fmt.Errorf("metricsdb: preparing run insert: %w", err)
	}

	db := &DB{
		RunID:         xid.New().String(),
		conn:          conn,
		insertProcess: insertProcess,
		insertRunStat: insertRunStat,
	}

	atexit.Register(func() { _ = db.Close() })

	return db, nil
}

func createSchema(conn *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS process_metrics (
		run_id        TEXT NOT NULL,
		pid           INTEGER NOT NULL,
		name          TEXT NOT NULL,
		policy        TEXT NOT NULL,
		state         TEXT NOT NULL,
		arrival       INTEGER NOT NULL,
		first_start   INTEGER NOT NULL,
		finish        INTEGER NOT NULL,
		waiting       INTEGER NOT NULL,
		cpu_time      INTEGER NOT NULL,
		mem_reads     INTEGER NOT NULL,
		mem_writes    INTEGER NOT NULL,
		cache_hits    INTEGER NOT NULL,
		cache_misses  INTEGER NOT NULL,
		io_cycles     INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS run_metrics (
		run_id           TEXT NOT NULL,
		policy           TEXT NOT NULL,
		total_simulation INTEGER NOT NULL,
		avg_waiting      REAL NOT NULL,
		avg_turnaround   REAL NOT NULL,
		cpu_utilisation  REAL NOT NULL,
		throughput       REAL NOT NULL,
		efficiency       REAL NOT NULL
	);`

	if _, err := conn.Exec(schema); err != nil {
		return fmt.Errorf("metricsdb: creating schema: %w", err)
	}
	return nil
}

// RecordProcess persists one process's final counters for this run.
func (db *DB) RecordProcess(policy scheduler.Policy, p *pcb.PCB) error {
	_, err := db.insertProcess.Exec(
		db.RunID, p.PID, p.Name, policy.String(), p.State().String(),
		p.ArrivalTime, p.FirstStartTime, p.FinishTime, p.WaitingTime, p.CPUTime,
		p.Counters.MemReads.Load(), p.Counters.MemWrites.Load(),
		p.Counters.CacheHits.Load(), p.Counters.CacheMisses.Load(),
		p.Counters.IOCycles.Load(),
	)
	if err != nil {
		return fmt.Errorf("metricsdb: recording pid %d: %w", p.PID, err)
	}
	return nil
}

// RecordRun persists the aggregate metrics for this run.
func (db *DB) RecordRun(policy scheduler.Policy, m orchestrator.Metrics) error {
	_, err := db.insertRunStat.Exec(
		db.RunID, policy.String(), m.TotalSimulation, m.AvgWaiting, m.AvgTurnaround,
		m.CPUUtilisation, m.Throughput, m.Efficiency,
	)
	if err != nil {
		return fmt.Errorf("metricsdb: recording run metrics: %w", err)
	}
	return nil
}

// Close closes the prepared statements and the underlying connection. It
// is safe to call more than once (as both a caller and the atexit hook
// may do).
func (db *DB) Close() error {
	if db.insertProcess != nil {
		db.insertProcess.Close()
		db.insertProcess = nil
	}
	if db.insertRunStat != nil {
		db.insertRunStat.Close()
		db.insertRunStat = nil
	}
	if db.conn != nil {
		err := db.conn.Close()
		db.conn = nil
		return err
	}
	return nil
}
