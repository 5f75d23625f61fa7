package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"lumen/internal/diag"
	"lumen/internal/ir"
	"lumen/internal/vm"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] <patch.toml|program.lmp>",
	Short: "Compile a patch and execute it headless",
	Long:  `Compile a patch description and run its schedule for a fixed number of frames, printing probe values as it goes`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHeadless,
}

func init() {
	runCmd.Flags().Int("frames", 300, "number of frames to execute")
	runCmd.Flags().Float64("fps", 60, "simulated frame rate")
	runCmd.Flags().StringArray("input", nil, "set an input before the run, name=v or name=x,y,z (repeatable)")
	runCmd.Flags().StringArray("fire", nil, "fire an event input at a frame, name@frame (repeatable)")
	runCmd.Flags().Int("every", 60, "print probe values every N frames (0 prints only the last frame)")
}

func runHeadless(cmd *cobra.Command, args []string) error {
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

	frames, err := cmd.Flags().GetInt("frames")
	if err != nil {
		return fmt.Errorf("failed to get frames flag: %w", err)
	}
	fps, err := cmd.Flags().GetFloat64("fps")
	if err != nil {
		return fmt.Errorf("failed to get fps flag: %w", err)
	}
	inputs, err := cmd.Flags().GetStringArray("input")
	if err != nil {
		return fmt.Errorf("failed to get input flag: %w", err)
	}
	fires, err := cmd.Flags().GetStringArray("fire")
	if err != nil {
		return fmt.Errorf("failed to get fire flag: %w", err)
	}
	every, err := cmd.Flags().GetInt("every")
	if err != nil {
		return fmt.Errorf("failed to get every flag: %w", err)
	}
	if frames <= 0 {
		return fmt.Errorf("frames must be positive, got %d", frames)
	}
	if fps <= 0 {
		return fmt.Errorf("fps must be positive, got %g", fps)
	}

	res, err := loadProgram(cmd, args[0])
	if err != nil {
		return err
	}
	if timingsEnabled(cmd) {
		printTimings(cmd.ErrOrStderr(), res.Timings)
	}

	firePlan, err := parseFirePlan(fires, frames)
	if err != nil {
		return err
	}

	machine := vm.New()
	machine.Install(res.Program)
	for _, spec := range inputs {
		name, vals, err := parseInputSpec(spec)
		if err != nil {
			return err
		}
		if err := machine.SetInput(name, vals...); err != nil {
			return err
		}
	}

	probes := probeNames(res.Program)
	colored := colorEnabled(cmd)
	quiet := quietEnabled(cmd)
	dim := color.New(color.Faint)
	label := color.New(color.FgCyan)
	if !colored {
		dim.DisableColor()
		label.DisableColor()
	}

	dt := 1.0 / fps
	var totalFaults int
	for i := 0; i < frames; i++ {
		for _, name := range firePlan[uint64(i)] {
			if err := machine.Fire(name); err != nil {
				return err
			}
		}
		info := machine.Frame(dt)
		totalFaults += info.Faults
		if info.Faults > 0 {
			if err := printDiagnostics(cmd, faultBag(machine), res.Graph); err != nil {
				return err
			}
		}
		last := i == frames-1
		if quiet || (!last && (every <= 0 || (i+1)%every != 0)) {
			continue
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s", dim.Sprintf("frame %d t=%.3fs", info.Frame, info.Time))
		for _, name := range probes {
			vals, ok := machine.Probe(name)
			if !ok {
				continue
			}
			fmt.Fprintf(out, "  %s=%s", label.Sprint(name), fmtProbe(vals))
		}
		fmt.Fprintln(out)
	}

	if totalFaults > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d fault(s) during run\n", totalFaults)
	}
	return nil
}

// parseInputSpec splits "gain=2" or "pos=0.5,1" into a name and values.
func parseInputSpec(spec string) (string, []float64, error) {
	name, rest, ok := strings.Cut(spec, "=")
	if !ok || name == "" {
		return "", nil, fmt.Errorf("input %q: want name=value", spec)
	}
	parts := strings.Split(rest, ",")
	vals := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return "", nil, fmt.Errorf("input %q: %w", spec, err)
		}
		vals = append(vals, v)
	}
	return name, vals, nil
}

// parseFirePlan maps frame indices to the event inputs fired before that
// frame evaluates.
func parseFirePlan(specs []string, frames int) (map[uint64][]string, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	plan := make(map[uint64][]string, len(specs))
	for _, spec := range specs {
		name, at, ok := strings.Cut(spec, "@")
		if !ok || name == "" {
			return nil, fmt.Errorf("fire %q: want name@frame", spec)
		}
		frame, err := strconv.ParseUint(strings.TrimSpace(at), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("fire %q: %w", spec, err)
		}
		if frame >= uint64(frames) {
			return nil, fmt.Errorf("fire %q: frame %d is past the run of %d frames", spec, frame, frames)
		}
		plan[frame] = append(plan[frame], name)
	}
	return plan, nil
}

func probeNames(p *ir.Program) []string {
	var names []string
	for _, s := range p.Sinks {
		if s.Kind == ir.SinkProbe {
			names = append(names, s.Name)
		}
	}
	return names
}

func fmtProbe(vals []float64) string {
	if len(vals) == 1 {
		return strconv.FormatFloat(vals[0], 'g', 6, 64)
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'g', 6, 64)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// faultBag drains the machine's pending faults into a bag so they print in
// the same shape as compile diagnostics.
func faultBag(m *vm.Machine) *diag.Bag {
	faults := m.Faults()
	b := diag.NewBag(len(faults))
	for _, d := range faults {
		b.Add(d)
	}
	return b
}
