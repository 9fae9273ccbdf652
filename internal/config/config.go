// Package config loads the simulator's tunable parameters from four
// layers, applied in order of increasing precedence: built-in defaults,
// an optional ".env" file loaded with github.com/joho/godotenv, the
// process environment, and finally command-line flags bound onto a
// cobra.Command. Each layer only overrides fields the layer above it
// actually sets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Config holds every simulation parameter spec.md leaves to the OS or to
// the deployment environment: scheduling quantum, core count, memory
// geometry, memory-tier weights, I/O device probabilities, and the output
// locations §6 names.
type Config struct {
	Quantum   int
	CoreCount int

	MainMemoryWords    int
	CacheCapacityWords int

	CacheWeight     uint64
	PrimaryWeight   uint64
	SecondaryWeight uint64

	PrinterProbability float64
	DiskProbability    float64

	OutputDir     string
	DashboardAddr string
	MetricsDBPath string
}

// Defaults returns the simulator's built-in defaults: quantum=20, 4 cores,
// a 4096-word main memory, a 64-word cache, and the cache/primary/secondary
// weights (1/5/10) spec.md's data model names.
func Defaults() Config {
	return Config{
		Quantum:            20,
		CoreCount:          4,
		MainMemoryWords:    4096,
		CacheCapacityWords: 64,
		CacheWeight:        1,
		PrimaryWeight:      5,
		SecondaryWeight:    10,
		PrinterProbability: 0.01,
		DiskProbability:    0.02,
		OutputDir:          "output",
		DashboardAddr:      "", // empty disables the dashboard; set to enable it (":0" picks a free port)
		MetricsDBPath:      "",
	}
}

// LoadEnvFile loads path into the process environment with godotenv, so a
// batch manifest can ship a sibling ".env" overriding simulation
// parameters for that batch. A missing file is not an error; any other
// read/parse failure is returned.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// envKeys names the environment variables ApplyEnv recognizes and
// the Config field each one feeds.
var envKeys = []string{
	"SIM_QUANTUM", "SIM_CORE_COUNT", "SIM_MAIN_MEMORY_WORDS",
	"SIM_CACHE_CAPACITY_WORDS", "SIM_CACHE_WEIGHT", "SIM_PRIMARY_WEIGHT",
	"SIM_SECONDARY_WEIGHT", "SIM_PRINTER_PROBABILITY", "SIM_DISK_PROBABILITY",
	"SIM_OUTPUT_DIR", "SIM_DASHBOARD_ADDR", "SIM_METRICS_DB_PATH",
}

// ApplyEnv overwrites cfg's fields from whichever of the SIM_* environment
// variables are set, ignoring unset ones and returning the first parse
// error encountered (a malformed variable is reported, not silently
// dropped, unlike a merely-absent one).
func ApplyEnv(cfg *Config) error {
	for _, key := range envKeys {
		raw, ok := os.LookupEnv(key)
		if !ok || raw == "" {
			continue
		}

		var err error
		switch key {
		case "SIM_QUANTUM":
			cfg.Quantum, err = atoi(raw)
		case "SIM_CORE_COUNT":
			cfg.CoreCount, err = atoi(raw)
		case "SIM_MAIN_MEMORY_WORDS":
			cfg.MainMemoryWords, err = atoi(raw)
		case "SIM_CACHE_CAPACITY_WORDS":
			cfg.CacheCapacityWords, err = atoi(raw)
		case "SIM_CACHE_WEIGHT":
			cfg.CacheWeight, err = atou64(raw)
		case "SIM_PRIMARY_WEIGHT":
			cfg.PrimaryWeight, err = atou64(raw)
		case "SIM_SECONDARY_WEIGHT":
			cfg.SecondaryWeight, err = atou64(raw)
		case "SIM_PRINTER_PROBABILITY":
			cfg.PrinterProbability, err = strconv.ParseFloat(raw, 64)
		case "SIM_DISK_PROBABILITY":
			cfg.DiskProbability, err = strconv.ParseFloat(raw, 64)
		case "SIM_OUTPUT_DIR":
			cfg.OutputDir = raw
		case "SIM_DASHBOARD_ADDR":
			cfg.DashboardAddr = raw
		case "SIM_METRICS_DB_PATH":
			cfg.MetricsDBPath = raw
		}
		if err != nil {
			return fmt.Errorf("config: environment variable %s: %w", key, err)
		}
	}
	return nil
}

func atoi(s string) (int, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	return int(v), err
}

func atou64(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

// BindFlags registers one flag per Config field onto cmd, defaulting each
// flag to cfg's current value (so the env layer has already had a chance
// to win by the time flags are parsed) and writing straight back into
// cfg's fields when the flag is actually passed on the command line.
func BindFlags(cmd *cobra.Command, cfg *Config) {
	flags := cmd.Flags()

	flags.IntVar(&cfg.Quantum, "quantum", cfg.Quantum, "pipeline cycles granted per scheduling slice")
	flags.IntVar(&cfg.CoreCount, "cores", cfg.CoreCount, "number of concurrent core workers")
	flags.IntVar(&cfg.MainMemoryWords, "main-memory-words", cfg.MainMemoryWords, "main store size, in 32-bit words")
	flags.IntVar(&cfg.CacheCapacityWords, "cache-words", cfg.CacheCapacityWords, "L1 cache capacity, in 32-bit words")
	flags.Uint64Var(&cfg.CacheWeight, "cache-weight", cfg.CacheWeight, "cycle cost of a cache hit")
	flags.Uint64Var(&cfg.PrimaryWeight, "primary-weight", cfg.PrimaryWeight, "cycle cost of a main-memory access")
	flags.Uint64Var(&cfg.SecondaryWeight, "secondary-weight", cfg.SecondaryWeight, "cycle cost of a swap-backed access")
	flags.Float64Var(&cfg.PrinterProbability, "printer-probability", cfg.PrinterProbability, "per-tick printer odds; stored in the config but not passed to the I/O manager, which always uses 0.01")
	flags.Float64Var(&cfg.DiskProbability, "disk-probability", cfg.DiskProbability, "per-tick disk odds; stored in the config but not passed to the I/O manager, which always uses 0.02")
	flags.StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "root directory for §6's result/metric files")
	flags.StringVar(&cfg.DashboardAddr, "dashboard-addr", cfg.DashboardAddr, "address the monitoring dashboard listens on; empty disables it, \":0\" picks a free port")
	flags.StringVar(&cfg.MetricsDBPath, "metrics-db", cfg.MetricsDBPath, "optional path to a sqlite metrics database; empty disables it")
}

// ApplyEnvUnlessFlagSet overlays environment-derived values onto cfg, but
// only for the fields whose matching cobra flag was not explicitly passed
// on the command line. It is meant to run after cobra has already parsed
// cmd's flags (and therefore already written any passed flag straight
// into cfg's fields via BindFlags): this restores the "flags > env >
// defaults" precedence that binding flags directly onto cfg otherwise
// loses for the fields a user didn't pass.
func ApplyEnvUnlessFlagSet(cmd *cobra.Command, cfg *Config) error {
	env := Defaults()
	if err := ApplyEnv(&env); err != nil {
		return err
	}

	flags := cmd.Flags()
	if !flags.Changed("quantum") {
		cfg.Quantum = env.Quantum
	}
	if !flags.Changed("cores") {
		cfg.CoreCount = env.CoreCount
	}
	if !flags.Changed("main-memory-words") {
		cfg.MainMemoryWords = env.MainMemoryWords
	}
	if !flags.Changed("cache-words") {
		cfg.CacheCapacityWords = env.CacheCapacityWords
	}
	if !flags.Changed("cache-weight") {
		cfg.CacheWeight = env.CacheWeight
	}
	if !flags.Changed("primary-weight") {
		cfg.PrimaryWeight = env.PrimaryWeight
	}
	if !flags.Changed("secondary-weight") {
		cfg.SecondaryWeight = env.SecondaryWeight
	}
	if !flags.Changed("printer-probability") {
		cfg.PrinterProbability = env.PrinterProbability
	}
	if !flags.Changed("disk-probability") {
		cfg.DiskProbability = env.DiskProbability
	}
	if !flags.Changed("output-dir") {
		cfg.OutputDir = env.OutputDir
	}
	if !flags.Changed("dashboard-addr") {
		cfg.DashboardAddr = env.DashboardAddr
	}
	if !flags.Changed("metrics-db") {
		cfg.MetricsDBPath = env.MetricsDBPath
	}

	return nil
}

// Load runs the full defaults -> .env -> environment layering for the
// batch manifest at batchPath, without touching any cobra command. CLI
// callers should call BindFlags themselves after Load, before
// cmd.Execute() parses arguments.
func Load(batchPath string) (Config, error) {
	cfg := Defaults()

	envPath := filepath.Join(filepath.Dir(batchPath), ".env")
	if err := LoadEnvFile(envPath); err != nil {
		return cfg, fmt.Errorf("config: loading %s: %w", envPath, err)
	}

	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
