package prof

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStartStopWritesProfiles(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		CPUPath: filepath.Join(dir, "cpu.out"),
		MemPath: filepath.Join(dir, "mem.out"),
	}
	p, err := Start(cfg)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Burn a little work so the CPU profile has something to sample.
	sum := 0
	for i := 0; i < 1<<16; i++ {
		sum += i
	}
	_ = sum
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	for _, path := range []string{cfg.CPUPath, cfg.MemPath} {
		st, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat %s: %v", path, err)
		}
		if st.Size() == 0 {
			t.Fatalf("%s is empty", path)
		}
	}
}

func TestStopIsIdempotent(t *testing.T) {
	p, err := Start(Config{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	var nilProf *Profiler
	if err := nilProf.Stop(); err != nil {
		t.Fatalf("nil Stop: %v", err)
	}
}

func TestStartRejectsBadPath(t *testing.T) {
	_, err := Start(Config{CPUPath: filepath.Join(t.TempDir(), "missing", "cpu.out")})
	if err == nil {
		t.Fatalf("expected error for unwritable path")
	}
}
