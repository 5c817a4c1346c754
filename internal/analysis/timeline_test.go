package analysis

import (
	"math"
	"testing"
)

func TestSummarizePercentages(t *testing.T) {
	timeline := []Observation{
		Observed(0.0, "happy", 0.9),
		Observed(0.4, "happy", 0.8),
		Observed(0.8, "neutral", 0.7),
		Absent(1.2),
		Observed(1.6, "happy", 0.9),
		Failed(2.0, "classifier timeout"),
		Observed(2.4, "happy", 0.6),
		Observed(2.8, "happy", 0.7),
		Observed(3.2, "neutral", 0.8),
		Observed(3.6, "sad", 0.5),
	}

	summary := Summarize(timeline)

	want := map[string]float64{
		"happy":   62.5,
		"neutral": 25.0,
		"sad":     12.5,
	}
	if len(summary.Percentages) != len(want) {
		t.Fatalf("Expected %d labels, got %d", len(want), len(summary.Percentages))
	}
	for label, pct := range want {
		if summary.Percentages[label] != pct {
			t.Errorf("Expected %s = %.1f, got %.1f", label, pct, summary.Percentages[label])
		}
	}

	total := 0.0
	for _, pct := range summary.Percentages {
		total += pct
	}
	if math.Abs(total-100.0) > 0.2 {
		t.Errorf("Percentages should sum to ~100, got %.2f", total)
	}

	wantRanked := []string{"happy", "neutral", "sad"}
	if len(summary.Ranked) != len(wantRanked) {
		t.Fatalf("Expected %d ranked labels, got %d", len(wantRanked), len(summary.Ranked))
	}
	for i, label := range wantRanked {
		if summary.Ranked[i] != label {
			t.Errorf("Expected rank %d = %s, got %s", i, label, summary.Ranked[i])
		}
	}
}

func TestSummarizeTieBreakByFirstSeen(t *testing.T) {
	timeline := []Observation{
		Observed(0.0, "surprise", 0.9),
		Observed(0.4, "fear", 0.9),
		Observed(0.8, "surprise", 0.9),
		Observed(1.2, "fear", 0.9),
		Observed(1.6, "angry", 0.9),
	}

	summary := Summarize(timeline)

	if summary.Ranked[0] != "surprise" || summary.Ranked[1] != "fear" {
		t.Errorf("Tied labels should keep first-seen order, got %v", summary.Ranked)
	}
	if summary.Ranked[2] != "angry" {
		t.Errorf("Expected angry last, got %v", summary.Ranked)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	tests := []struct {
		name     string
		timeline []Observation
	}{
		{name: "no observations", timeline: nil},
		{name: "only absent frames", timeline: []Observation{Absent(0.0), Absent(0.4)}},
		{name: "only failed frames", timeline: []Observation{Failed(0.0, "boom"), Absent(0.4)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary := Summarize(tt.timeline)
			if len(summary.Percentages) != 0 {
				t.Errorf("Expected empty percentages, got %v", summary.Percentages)
			}
			if len(summary.Ranked) != 0 {
				t.Errorf("Expected empty ranking, got %v", summary.Ranked)
			}
			if got := Sentence(summary); got != "no clear emotion detected" {
				t.Errorf("Expected degenerate sentence, got %q", got)
			}
		})
	}
}

func TestSentence(t *testing.T) {
	tests := []struct {
		name     string
		timeline []Observation
		want     string
	}{
		{
			name: "several labels",
			timeline: []Observation{
				Observed(0, "happy", 0.9), Observed(1, "happy", 0.9),
				Observed(2, "happy", 0.9), Observed(3, "happy", 0.9),
				Observed(4, "happy", 0.9), Observed(5, "neutral", 0.9),
				Observed(6, "neutral", 0.9), Observed(7, "sad", 0.9),
			},
			want: "Mostly happy (62.5%), with neutral (25.0%), sad (12.5%)",
		},
		{
			name:     "single label",
			timeline: []Observation{Observed(0, "neutral", 0.8), Absent(1)},
			want:     "Mostly neutral (100.0%)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sentence(Summarize(tt.timeline))
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestObservationTags(t *testing.T) {
	if !Observed(0, "happy", 0.9).IsObserved() {
		t.Error("Observed entry should report IsObserved")
	}
	if Absent(0).IsObserved() {
		t.Error("Absent entry should not report IsObserved")
	}
	if Failed(0, "err").IsObserved() {
		t.Error("Failed entry should not report IsObserved")
	}
	if Failed(0, "err").Err != "err" {
		t.Error("Failed entry should carry its reason")
	}
}
