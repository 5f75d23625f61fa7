package ui

import (
	"strings"
	"testing"
)

func testFrame() FrameUpdate {
	return FrameUpdate{
		Frame:  42,
		Time:   0.7,
		EvalMS: 1.2,
		Sinks: []SinkView{{
			Name:     "dots",
			Topology: "circle",
			Blend:    "alpha",
			Lanes:    4,
			Level:    []float64{0, 0.25, 0.5, 1},
			Color: [][4]float64{
				{1, 0, 0, 1}, {0, 1, 0, 1}, {0, 0, 1, 1}, {1, 1, 1, 1},
			},
		}},
		Probes: []ProbeView{{Name: "energy", Values: []float64{0.5}}},
	}
}

func TestPlayerViewShowsFrameState(t *testing.T) {
	m := NewPlayer("orbit.toml", 1000.0/60, nil, nil).(*playerModel)
	m.applyFrame(testFrame())

	out := m.View()
	for _, want := range []string{
		"orbit.toml",
		"frame 42",
		"Dots", // title-cased sink label
		"4 lanes",
		"circle/alpha",
		"Energy",
		"0.5",
		string(barLevels[len(barLevels)-1]), // full-height bar for the peak lane
	} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}
}

func TestPlayerNormalizesAgainstPeak(t *testing.T) {
	m := NewPlayer("p", 16, nil, nil).(*playerModel)
	f := testFrame()
	f.Sinks[0].Level = []float64{2, 4, 8}
	f.Sinks[0].Color = nil
	m.applyFrame(f)

	bars := m.laneBars(m.last.Sinks[0])
	runes := []rune(strings.TrimSuffix(bars, "…"))
	if len(runes) != 3 {
		t.Fatalf("rendered %d bars, want 3: %q", len(runes), bars)
	}
	if runes[2] != barLevels[len(barLevels)-1] {
		t.Errorf("peak lane bar = %q, want full block", string(runes[2]))
	}
	if runes[0] == runes[2] {
		t.Errorf("low lane renders at peak height: %q", bars)
	}
}

func TestPlayerAccumulatesFaults(t *testing.T) {
	m := NewPlayer("p", 16, nil, nil).(*playerModel)
	f := testFrame()
	f.Faults = 2
	m.applyFrame(f)
	f.Faults = 1
	m.applyFrame(f)

	if m.faults != 3 {
		t.Fatalf("faults = %d, want 3", m.faults)
	}
	if !strings.Contains(m.View(), "3 fault(s)") {
		t.Errorf("view does not surface fault count:\n%s", m.View())
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly-ten", 11, "exactly-ten"},
		{"a-very-long-sink-name", 10, "a-ve..."},
		{"abc", 2, "ab"},
		{"anything", 0, "anything"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestColorHexClamps(t *testing.T) {
	if got := colorHex([4]float64{1, 0, 0, 1}); got != "#ff0000" {
		t.Errorf("red = %q", got)
	}
	if got := colorHex([4]float64{-1, 2, 0.5, 1}); got != "#00ff80" {
		t.Errorf("clamped = %q", got)
	}
}
