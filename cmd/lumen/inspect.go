package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lumen/internal/dump"
	"lumen/internal/snapshot"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [flags] <patch.toml|program.lmp>",
	Short: "Compile a patch and print its schedule",
	Long:  `Compile a patch description and print the resulting program: populations, slots, states, sinks and the per-frame schedule`,
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().Bool("exprs", false, "include the expression table")
	inspectCmd.Flags().Bool("types", false, "annotate expressions with their full types")
	inspectCmd.Flags().String("snapshot", "", "write the compiled program to a snapshot file")
}

func runInspect(cmd *cobra.Command, args []string) error {
	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	stopProf, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProf()

	showExprs, err := cmd.Flags().GetBool("exprs")
	if err != nil {
		return fmt.Errorf("failed to get exprs flag: %w", err)
	}
	showTypes, err := cmd.Flags().GetBool("types")
	if err != nil {
		return fmt.Errorf("failed to get types flag: %w", err)
	}
	snapPath, err := cmd.Flags().GetString("snapshot")
	if err != nil {
		return fmt.Errorf("failed to get snapshot flag: %w", err)
	}

	res, err := loadProgram(cmd, args[0])
	if err != nil {
		return err
	}

	if timingsEnabled(cmd) {
		printTimings(cmd.ErrOrStderr(), res.Timings)
	}

	if !quietEnabled(cmd) {
		opts := dump.Options{Exprs: showExprs || showTypes, Types: showTypes}
		if err := dump.Program(cmd.OutOrStdout(), res.Program, opts); err != nil {
			return err
		}
	}

	if snapPath != "" {
		f, err := os.Create(snapPath)
		if err != nil {
			return fmt.Errorf("creating snapshot: %w", err)
		}
		if err := snapshot.Encode(f, res.Program); err != nil {
			f.Close()
			return fmt.Errorf("writing snapshot: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("writing snapshot: %w", err)
		}
		if !quietEnabled(cmd) {
			fmt.Fprintf(cmd.ErrOrStderr(), "snapshot written to %s\n", snapPath)
		}
	}
	return nil
}
