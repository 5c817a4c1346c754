package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// NoSignal marks a sampled frame that produced no usable emotion: either no
// face was detected or the classifier failed on it. Entries carrying it stay
// in the timeline but are excluded from the percentage summary.
const NoSignal = "no_signal"

// Observation is the outcome for one sampled frame. The ordered slice of
// observations is the emotion timeline; it is never reordered or deduplicated.
type Observation struct {
	Timestamp  float64 `json:"timestamp"`
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence,omitempty"`
	Err        string  `json:"error,omitempty"`
}

func Observed(timestamp float64, emotion string, confidence float64) Observation {
	return Observation{Timestamp: timestamp, Emotion: emotion, Confidence: confidence}
}

func Absent(timestamp float64) Observation {
	return Observation{Timestamp: timestamp, Emotion: NoSignal}
}

func Failed(timestamp float64, reason string) Observation {
	return Observation{Timestamp: timestamp, Emotion: NoSignal, Err: reason}
}

// IsObserved reports whether the frame yielded an actual emotion label.
func (o Observation) IsObserved() bool {
	return o.Emotion != "" && o.Emotion != NoSignal
}

// Summary is the frequency breakdown of observed emotion labels.
// Percentages are computed over observed entries only and rounded to one
// decimal; Ranked lists labels by descending percentage, ties broken by the
// order a label was first seen in the timeline.
type Summary struct {
	Percentages map[string]float64 `json:"percentages"`
	Ranked      []string           `json:"ranked"`
}

func Summarize(timeline []Observation) Summary {
	counts := make(map[string]int)
	order := make([]string, 0)
	total := 0

	for _, obs := range timeline {
		if !obs.IsObserved() {
			continue
		}
		if _, seen := counts[obs.Emotion]; !seen {
			order = append(order, obs.Emotion)
		}
		counts[obs.Emotion]++
		total++
	}

	summary := Summary{Percentages: make(map[string]float64), Ranked: []string{}}
	if total == 0 {
		return summary
	}

	for label, count := range counts {
		pct := 100 * float64(count) / float64(total)
		summary.Percentages[label] = math.Round(pct*10) / 10
	}

	// Stable sort over encounter order keeps the tie-break deterministic.
	ranked := make([]string, len(order))
	copy(ranked, order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return summary.Percentages[ranked[i]] > summary.Percentages[ranked[j]]
	})
	summary.Ranked = ranked

	return summary
}

// Sentence renders the one-line human readable digest of a summary.
func Sentence(summary Summary) string {
	if len(summary.Ranked) == 0 {
		return "no clear emotion detected"
	}

	top := summary.Ranked[0]
	line := fmt.Sprintf("Mostly %s (%.1f%%)", top, summary.Percentages[top])
	if len(summary.Ranked) == 1 {
		return line
	}

	rest := make([]string, 0, len(summary.Ranked)-1)
	for _, label := range summary.Ranked[1:] {
		rest = append(rest, fmt.Sprintf("%s (%.1f%%)", label, summary.Percentages[label]))
	}

	return line + ", with " + strings.Join(rest, ", ")
}
