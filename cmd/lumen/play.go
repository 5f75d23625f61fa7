package main

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"lumen/internal/diag"
	"lumen/internal/session"
	"lumen/internal/trace"
	"lumen/internal/ui"
	"lumen/internal/vm"
)

var playCmd = &cobra.Command{
	Use:   "play [flags] <patch.toml|program.lmp>",
	Short: "Run a patch in the terminal player",
	Long:  `Compile a patch description and animate it in the terminal: lane bars per render sink, live probe values and the per-frame cost meter`,
	Args:  cobra.ExactArgs(1),
	RunE:  runPlay,
}

func init() {
	playCmd.Flags().Float64("fps", 60, "frame rate")
	playCmd.Flags().Int("frames", 0, "stop after N frames (0 runs until quit)")
	playCmd.Flags().Float64("budget", 0, "per-frame cost budget in milliseconds (0 derives it from fps)")
	playCmd.Flags().String("ui", "auto", "terminal player: auto, on, or off")
	playCmd.Flags().StringArray("input", nil, "set an input before playback, name=v or name=x,y,z (repeatable)")
}

func runPlay(cmd *cobra.Command, args []string) error {
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

	fps, err := cmd.Flags().GetFloat64("fps")
	if err != nil {
		return fmt.Errorf("failed to get fps flag: %w", err)
	}
	frames, err := cmd.Flags().GetInt("frames")
	if err != nil {
		return fmt.Errorf("failed to get frames flag: %w", err)
	}
	budgetMS, err := cmd.Flags().GetFloat64("budget")
	if err != nil {
		return fmt.Errorf("failed to get budget flag: %w", err)
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	inputs, err := cmd.Flags().GetStringArray("input")
	if err != nil {
		return fmt.Errorf("failed to get input flag: %w", err)
	}
	mode, err := readUIMode(uiValue)
	if err != nil {
		return err
	}

	res, err := loadProgram(cmd, args[0])
	if err != nil {
		return err
	}
	if timingsEnabled(cmd) {
		printTimings(cmd.ErrOrStderr(), res.Timings)
	}

	// Defaults baked into the patch file apply unless the flag was given.
	if !cmd.Flags().Changed("fps") && res.Player.FPS > 0 {
		fps = res.Player.FPS
	}
	if !cmd.Flags().Changed("frames") && res.Player.Frames > 0 {
		frames = res.Player.Frames
	}
	if !cmd.Flags().Changed("budget") && res.Player.BudgetMS > 0 {
		budgetMS = res.Player.BudgetMS
	}
	if fps <= 0 {
		return fmt.Errorf("fps must be positive, got %g", fps)
	}
	if frames < 0 {
		return fmt.Errorf("frames must not be negative, got %d", frames)
	}
	if budgetMS <= 0 {
		budgetMS = 1000.0 / fps
	}

	sess := session.New(session.Config{Tracer: trace.FromContext(cmd.Context())})
	defer sess.Close()
	collector := &frameCollector{}
	sess.AttachSink(collector)
	sess.Install(res.Program)
	for _, spec := range inputs {
		name, vals, err := parseInputSpec(spec)
		if err != nil {
			return err
		}
		if err := sess.SetInput(name, vals...); err != nil {
			return err
		}
	}
	probes := probeNames(res.Program)

	if !shouldUseTUI(mode) {
		return playHeadless(cmd, sess, res, probes, fps, frames)
	}

	host := newHost(sess, collector, probes, fps, frames)
	go host.loop()

	model := ui.NewPlayer(res.Name, budgetMS, host.frames, host)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	host.stop()

	if faults := host.takeFaults(); len(faults) > 0 {
		bag := diag.NewBag(len(faults))
		for _, d := range faults {
			bag.Add(d)
		}
		if err := printDiagnostics(cmd, bag, res.Graph); err != nil {
			return err
		}
	}
	return uiErr
}

// host drives the session's frame loop on a ticker and feeds the player.
// The player talks back through the Transport methods, which only flip
// atomics so they never block the UI thread.
type host struct {
	sess      *session.Session
	collector *frameCollector
	probes    []string
	dt        float64
	period    time.Duration
	budget    int // frames to run, 0 means unbounded

	frames chan ui.FrameUpdate
	step   chan struct{}
	done   chan struct{}
	paused atomic.Bool

	mu         sync.Mutex
	lastFaults []diag.Diagnostic
}

// faultKeep bounds how many runtime faults the host retains for the exit
// report.
const faultKeep = 8

func newHost(sess *session.Session, collector *frameCollector, probes []string, fps float64, budget int) *host {
	return &host{
		sess:      sess,
		collector: collector,
		probes:    probes,
		dt:        1.0 / fps,
		period:    time.Duration(float64(time.Second) / fps),
		budget:    budget,
		frames:    make(chan ui.FrameUpdate, 4),
		step:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

func (h *host) SetPaused(paused bool) { h.paused.Store(paused) }

func (h *host) Step() {
	select {
	case h.step <- struct{}{}:
	default:
	}
}

func (h *host) stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

func (h *host) loop() {
	ticker := time.NewTicker(h.period)
	defer ticker.Stop()
	ran := 0
	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			if h.paused.Load() {
				continue
			}
		case <-h.step:
		}
		if !h.runFrame() {
			return
		}
		ran++
		if h.budget > 0 && ran >= h.budget {
			close(h.frames)
			return
		}
	}
}

// runFrame advances the session once and publishes the update. It returns
// false when the player has gone away.
func (h *host) runFrame() bool {
	h.collector.reset()
	start := time.Now()
	info, _ := h.sess.Frame(h.dt)
	evalMS := float64(time.Since(start)) / float64(time.Millisecond)

	if info.Faults > 0 {
		h.keepFaults(h.sess.Faults())
	}

	up := ui.FrameUpdate{
		Frame:  info.Frame,
		Time:   info.Time,
		Faults: info.Faults,
		EvalMS: evalMS,
		Sinks:  h.collector.take(),
	}
	for _, name := range h.probes {
		vals, ok := h.sess.Probe(name)
		if !ok {
			continue
		}
		copied := make([]float64, len(vals))
		copy(copied, vals)
		up.Probes = append(up.Probes, ui.ProbeView{Name: name, Values: copied})
	}

	select {
	case h.frames <- up:
		return true
	case <-h.done:
		return false
	}
}

func (h *host) keepFaults(faults []diag.Diagnostic) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastFaults = append(h.lastFaults, faults...)
	if over := len(h.lastFaults) - faultKeep; over > 0 {
		h.lastFaults = h.lastFaults[over:]
	}
}

func (h *host) takeFaults() []diag.Diagnostic {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.lastFaults
	h.lastFaults = nil
	return out
}

// frameCollector adapts the machine's render output to the player's view
// model. The machine reuses frame buffers, so every value is copied out
// during the Render call.
type frameCollector struct {
	views []ui.SinkView
}

func (c *frameCollector) Render(f vm.RenderFrame) {
	view := ui.SinkView{
		Name:     f.Sink,
		Topology: f.Topology.String(),
		Blend:    f.Blend.String(),
		Lanes:    f.Lanes,
	}
	var size, color *vm.Value
	for i := range f.Values {
		switch f.Values[i].Name {
		case "size":
			size = &f.Values[i]
		case "color":
			color = &f.Values[i]
		}
	}
	view.Level = make([]float64, f.Lanes)
	for lane := 0; lane < f.Lanes; lane++ {
		if size != nil {
			view.Level[lane] = size.At(lane, 0)
		} else {
			view.Level[lane] = 1
		}
	}
	if color != nil {
		comps := color.Stride
		if comps > 4 {
			comps = 4
		}
		view.Color = make([][4]float64, f.Lanes)
		for lane := 0; lane < f.Lanes; lane++ {
			for comp := 0; comp < comps; comp++ {
				view.Color[lane][comp] = color.At(lane, comp)
			}
		}
	}
	c.views = append(c.views, view)
}

func (c *frameCollector) reset() { c.views = c.views[:0] }

func (c *frameCollector) take() []ui.SinkView {
	out := make([]ui.SinkView, len(c.views))
	copy(out, c.views)
	return out
}

// playHeadless runs the same frame loop without the terminal player, for
// piped output and --ui=off.
func playHeadless(cmd *cobra.Command, sess *session.Session, res *loadResult, probes []string, fps float64, frames int) error {
	if frames <= 0 {
		frames = 300
	}
	dt := 1.0 / fps
	every := int(fps)
	if every < 1 {
		every = 1
	}
	var totalFaults int
	for i := 0; i < frames; i++ {
		info, _ := sess.Frame(dt)
		totalFaults += info.Faults
		if info.Faults > 0 {
			faults := sess.Faults()
			bag := diag.NewBag(len(faults))
			for _, d := range faults {
				bag.Add(d)
			}
			if err := printDiagnostics(cmd, bag, res.Graph); err != nil {
				return err
			}
		}
		if quietEnabled(cmd) || ((i+1)%every != 0 && i != frames-1) {
			continue
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "frame %d t=%.3fs", info.Frame, info.Time)
		for _, name := range probes {
			vals, ok := sess.Probe(name)
			if !ok {
				continue
			}
			fmt.Fprintf(out, "  %s=%s", name, fmtProbe(vals))
		}
		fmt.Fprintln(out)
	}
	if totalFaults > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d fault(s) during playback\n", totalFaults)
	}
	return nil
}
