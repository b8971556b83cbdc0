// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// minRateWindow is the shortest generation time a rate is reported for.
const minRateWindow = 10 * time.Millisecond

// Stats holds timing for one streamed answer.
type Stats struct {
	FirstToken time.Duration // request start to first delta
	Generation time.Duration // first delta to end of stream
	Total      time.Duration
	Chars      int // characters of content received
}

// CharsPerSecond returns the content rate over the generation window, or 0
// when the window is too short to measure.
func (s Stats) CharsPerSecond() float64 {
	if s.Generation < minRateWindow || s.Chars == 0 {
		return 0
	}
	return float64(s.Chars) / s.Generation.Seconds()
}

// Add accumulates another answer's stats, as for the several requests of one
// tool-calling turn.
func (s Stats) Add(other Stats) Stats {
	out := Stats{
		FirstToken: s.FirstToken,
		Generation: s.Generation + other.Generation,
		Total:      s.Total + other.Total,
		Chars:      s.Chars + other.Chars,
	}
	if out.FirstToken == 0 {
		out.FirstToken = other.FirstToken
	}
	return out
}

// String formats the stats for a one-line summary.
func (s Stats) String() string {
	line := fmt.Sprintf("first token %s | %s chars | total %s",
		formatDuration(s.FirstToken), humanize.Comma(int64(s.Chars)), formatDuration(s.Total))
	if rate := s.CharsPerSecond(); rate > 0 {
		line += fmt.Sprintf(" | %.1f chars/s", rate)
	}
	return line
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}
