package transcript

import (
	"strings"
	"testing"
)

func TestAccumulator_InterimIsReplaced(t *testing.T) {
	tests := []struct {
		name     string
		interims []string
		want     string
	}{
		{"single", []string{"hel"}, "hel"},
		{"growing", []string{"hel", "hello", "hello th"}, "hello th"},
		{"revised", []string{"I scream", "ice cream"}, "ice cream"},
		{"shrinking", []string{"hello there", "hello"}, "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New()
			for _, text := range tt.interims {
				a.ApplyInterim(text)
			}
			if got := a.InterimText(); got != tt.want {
				t.Errorf("InterimText() = %q, want %q", got, tt.want)
			}
			if a.FinalText() != "" {
				t.Errorf("interim results must not finalize text, got %q", a.FinalText())
			}
		})
	}
}

func TestAccumulator_FinalsJoinInOrder(t *testing.T) {
	a := New()
	finals := []string{"Hello there.", "How are you?", "Fine."}

	for i, f := range finals {
		a.ApplyInterim("partial " + f)
		a.ApplyFinal(f)
		if a.InterimText() != "" {
			t.Errorf("interim not cleared after final %d", i)
		}
		want := strings.Join(finals[:i+1], " ")
		if got := a.FinalText(); got != want {
			t.Errorf("after final %d: FinalText() = %q, want %q", i, got, want)
		}
	}

	if a.Len() != 3 {
		t.Errorf("expected 3 segments, got %d", a.Len())
	}
}

func TestAccumulator_BlankFinal(t *testing.T) {
	a := New()
	a.ApplyFinal("first")
	a.ApplyInterim("second")
	a.ApplyFinal("   ")

	if a.InterimText() != "" {
		t.Errorf("expected interim cleared, got %q", a.InterimText())
	}
	if a.FinalText() != "first" {
		t.Errorf("expected blank final to be skipped, got %q", a.FinalText())
	}
}

func TestAccumulator_TrimsWhitespace(t *testing.T) {
	a := New()
	a.ApplyFinal("  hello  ")
	a.ApplyInterim(" wor ")
	if a.FinalText() != "hello" {
		t.Errorf("FinalText() = %q", a.FinalText())
	}
	if a.InterimText() != "wor" {
		t.Errorf("InterimText() = %q", a.InterimText())
	}
}

func TestAccumulator_Clear(t *testing.T) {
	a := New()
	a.ApplyFinal("one")
	a.ApplyInterim("two")
	a.Clear()

	if a.FinalText() != "" || a.InterimText() != "" || a.Len() != 0 {
		t.Errorf("expected empty accumulator, got final=%q interim=%q", a.FinalText(), a.InterimText())
	}
}

func TestAccumulator_DiscardInterim(t *testing.T) {
	a := New()
	if a.DiscardInterim() {
		t.Error("expected no pending hypothesis")
	}
	a.ApplyFinal("kept")
	a.ApplyInterim("pending")
	if !a.DiscardInterim() {
		t.Error("expected pending hypothesis to be reported")
	}
	if a.InterimText() != "" || a.FinalText() != "kept" {
		t.Errorf("unexpected state: final=%q interim=%q", a.FinalText(), a.InterimText())
	}
}

func TestAccumulator_SegmentsIsCopy(t *testing.T) {
	a := New()
	a.ApplyFinal("one")
	segs := a.Segments()
	segs[0] = "mutated"
	if a.FinalText() != "one" {
		t.Errorf("Segments() must return a copy, got %q", a.FinalText())
	}
}
