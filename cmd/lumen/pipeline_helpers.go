package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lumen/internal/compile"
	"lumen/internal/diag"
	"lumen/internal/diagfmt"
	"lumen/internal/domain"
	"lumen/internal/ir"
	"lumen/internal/observ"
	"lumen/internal/patch"
	"lumen/internal/snapshot"
)

// snapshotExt marks files holding a compiled program instead of a patch
// description.
const snapshotExt = ".lmp"

// loadResult carries everything a command needs after obtaining a program,
// whichever way it was obtained.
type loadResult struct {
	Name    string
	Program *ir.Program
	Graph   *patch.Graph     // nil when loaded from a snapshot
	Domains *domain.Registry // nil when loaded from a snapshot
	Player  playerDecl
	Timings observ.Report
}

// loadProgram obtains a compiled program from a patch description or, for
// snapshot files, directly from the serialized artifact. Diagnostics go to
// stderr either way; an error result means no program.
func loadProgram(cmd *cobra.Command, path string) (*loadResult, error) {
	if strings.HasSuffix(path, snapshotExt) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		prog, err := snapshot.Decode(f)
		if err != nil {
			return nil, err
		}
		return &loadResult{Name: path, Program: prog}, nil
	}

	pd, err := loadPatch(path)
	if err != nil {
		return nil, err
	}

	maxDiag, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return nil, fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}

	res, err := compile.Compile(cmd.Context(), &compile.Request{
		Graph:          pd.Graph,
		Domains:        pd.Domains,
		MaxDiagnostics: maxDiag,
	})
	if res.Bag != nil && res.Bag.Len() > 0 {
		if printErr := printDiagnostics(cmd, res.Bag, pd.Graph); printErr != nil {
			return nil, printErr
		}
	}
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", path, err)
	}
	return &loadResult{
		Name:    pd.Name,
		Program: res.Program,
		Graph:   pd.Graph,
		Domains: pd.Domains,
		Player:  pd.Player,
		Timings: res.Timings,
	}, nil
}

// colorEnabled resolves the --color flag against the terminal.
func colorEnabled(cmd *cobra.Command) bool {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		mode = "auto"
	}
	switch strings.ToLower(mode) {
	case "on", "always":
		return true
	case "off", "never":
		return false
	default:
		return isTerminal(os.Stdout)
	}
}

func quietEnabled(cmd *cobra.Command) bool {
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	return err == nil && quiet
}

func timingsEnabled(cmd *cobra.Command) bool {
	timings, err := cmd.Root().PersistentFlags().GetBool("timings")
	return err == nil && timings
}

// printDiagnostics renders a bag to stderr in the format selected by
// --diag-format, block labels resolved through the graph when available.
func printDiagnostics(cmd *cobra.Command, bag *diag.Bag, g *patch.Graph) error {
	format, err := cmd.Root().PersistentFlags().GetString("diag-format")
	if err != nil {
		return fmt.Errorf("failed to get diag-format flag: %w", err)
	}
	bag.Sort()
	resolver := diagfmt.GraphResolver(g)
	switch strings.ToLower(format) {
	case "", "pretty":
		diagfmt.Pretty(cmd.ErrOrStderr(), bag, diagfmt.PrettyOpts{
			Color:     colorEnabled(cmd),
			Resolver:  resolver,
			ShowNotes: true,
		})
		return nil
	case "json":
		return diagfmt.JSON(cmd.ErrOrStderr(), bag, diagfmt.JSONOpts{
			Resolver:     resolver,
			IncludeNotes: true,
		})
	default:
		return fmt.Errorf("unsupported diag-format %q (must be pretty or json)", format)
	}
}

func printTimings(w io.Writer, rep observ.Report) {
	if len(rep.Phases) == 0 {
		return
	}
	fmt.Fprintf(w, "timings: %.2fms total\n", rep.TotalMS)
	for _, p := range rep.Phases {
		if p.Note != "" {
			fmt.Fprintf(w, "  %-10s %8.2fms  %s\n", p.Name, p.DurationMS, p.Note)
			continue
		}
		fmt.Fprintf(w, "  %-10s %8.2fms\n", p.Name, p.DurationMS)
	}
}
