// Package status renders the motion event log as a self-refreshing page.
package status

import (
	"sort"
	"time"

	"go-opencv-motion-log/internal/eventlog"
)

// Band is an ordinal classification of a motion magnitude.
type Band int

const (
	BandVeryLow Band = iota
	BandLow
	BandMedium
	BandHigh
	BandVeryHigh
)

// Upper bounds (inclusive) of each band except BandVeryHigh.
const (
	veryLowMax = 1000
	lowMax     = 5000
	mediumMax  = 10000
	highMax    = 20000
)

// Classify maps a magnitude to its band.
func Classify(magnitude int) Band {
	switch {
	case magnitude > highMax:
		return BandVeryHigh
	case magnitude > mediumMax:
		return BandHigh
	case magnitude > lowMax:
		return BandMedium
	case magnitude > veryLowMax:
		return BandLow
	default:
		return BandVeryLow
	}
}

func (b Band) String() string {
	switch b {
	case BandVeryLow:
		return "Very Low"
	case BandLow:
		return "Low"
	case BandMedium:
		return "Medium"
	case BandHigh:
		return "High"
	case BandVeryHigh:
		return "Very High"
	default:
		return "Unknown"
	}
}

// Row is one rendered line of the status table.
type Row struct {
	Timestamp time.Time
	Band      Band
	// DeltaSeconds is the gap to the row above it, 0 for the newest row
	DeltaSeconds int64
}

// BuildRows orders events newest first and computes the gap between
// neighbouring rows in whole seconds. The input is not modified.
func BuildRows(events []eventlog.Event) []Row {
	sorted := make([]eventlog.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	rows := make([]Row, 0, len(sorted))
	for i, ev := range sorted {
		var delta int64
		if i > 0 {
			delta = int64(sorted[i-1].Timestamp.Sub(ev.Timestamp) / time.Second)
			if delta < 0 {
				delta = -delta
			}
		}
		rows = append(rows, Row{
			Timestamp:    ev.Timestamp,
			Band:         Classify(ev.Magnitude),
			DeltaSeconds: delta,
		})
	}
	return rows
}
