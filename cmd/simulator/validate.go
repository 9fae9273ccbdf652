package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JoaquimCruz/Multicore-simulator/internal/loader"
	"github.com/JoaquimCruz/Multicore-simulator/internal/mmu"
	"github.com/JoaquimCruz/Multicore-simulator/internal/pcb"
)

// newValidateCommand builds the "validate" subcommand: it loads a batch
// manifest and every process/program it names, without running anything,
// and reports each problem per spec.md §7's error-handling table (a batch
// manifest that fails to load stops validation at once; a process whose
// manifest or program fails to load is reported and skipped, and the
// command then returns an error giving the number of failures).
func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <batch.json>",
		Short: "load a batch manifest and its processes without running them, reporting any errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0])
		},
	}
}

func runValidate(cmd *cobra.Command, batchPath string) error {
	batch, err := loader.LoadBatch(batchPath)
	if err != nil {
		return fmt.Errorf("validate: loading batch manifest %s: %w", batchPath, err)
	}

	batchDir := filepath.Dir(batchPath)
	scratchMMU := mmu.New(65536, 65536, 64)

	failures := 0
	for _, relPath := range batch.Processes {
		manifestPath := filepath.Join(batchDir, relPath)

		pm, err := loader.LoadProcessManifest(manifestPath)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "skipping %s: %v\n", relPath, err)
			failures++
			continue
		}

		p := pcb.New(pm.PID, pm.Name, pm.ProgramPath, 0, pm.Priority, 0)
		programPath := filepath.Join(batchDir, pm.ProgramPath)
		if err := loader.LoadProgram(scratchMMU, p, programPath, 0); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "aborting load of pid %d (%s): %v\n", pm.PID, pm.Name, err)
			failures++
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(), "ok: pid %d %q, %d instructions\n", pm.PID, pm.Name, p.BurstTime)
	}

	if failures > 0 {
		return fmt.Errorf("validate: %d of %d processes failed to load", failures, len(batch.Processes))
	}
	return nil
}
