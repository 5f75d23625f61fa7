// Package prof brackets a whole command run with the runtime's profilers.
// Frame loops are allocation-sensitive, so the heap profile is captured at
// Stop, after the run settled into its steady state.
package prof

import (
	"errors"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

// Config selects which profiles to collect. Empty paths stay off.
type Config struct {
	CPUPath   string
	MemPath   string
	TracePath string
}

// Profiler owns the active profile outputs between Start and Stop.
type Profiler struct {
	cpu     *os.File
	trace   *os.File
	memPath string
	stopped bool
}

// Start enables the configured profilers. When any of them fails to start,
// the ones already running are stopped before the error returns.
func Start(cfg Config) (*Profiler, error) {
	p := &Profiler{memPath: cfg.MemPath}

	if cfg.CPUPath != "" {
		f, err := os.Create(cfg.CPUPath)
		if err != nil {
			return nil, err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, err
		}
		p.cpu = f
	}

	if cfg.TracePath != "" {
		f, err := os.Create(cfg.TracePath)
		if err != nil {
			p.rollback()
			return nil, err
		}
		if err := trace.Start(f); err != nil {
			_ = f.Close()
			p.rollback()
			return nil, err
		}
		p.trace = f
	}

	return p, nil
}

// Stop ends every active profile and writes the heap snapshot when one was
// requested. Calling Stop again is a no-op.
func (p *Profiler) Stop() error {
	if p == nil || p.stopped {
		return nil
	}
	p.stopped = true

	var errs []error
	if p.trace != nil {
		trace.Stop()
		if err := p.trace.Close(); err != nil {
			errs = append(errs, err)
		}
		p.trace = nil
	}
	if p.cpu != nil {
		pprof.StopCPUProfile()
		if err := p.cpu.Close(); err != nil {
			errs = append(errs, err)
		}
		p.cpu = nil
	}
	if p.memPath != "" {
		if err := writeHeap(p.memPath); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// rollback undoes a partial Start.
func (p *Profiler) rollback() {
	if p.cpu != nil {
		pprof.StopCPUProfile()
		_ = p.cpu.Close()
		p.cpu = nil
	}
}

func writeHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
