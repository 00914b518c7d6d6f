// Package checkpoint implements the wall-clock checkpoint policy and
// filename convention of spec §4.7: a periodic atomic snapshot written
// every INTVL seconds of wall-clock time, named
// chk-<integer part>.<2 fractional digits>.wo from the simulated time at
// which it was taken.
//
// original_source/wavesolve_thread.cpp and wavesolve_openmp.cpp's main()
// time checkpoints against std::chrono::steady_clock; this package keeps
// the same last-checkpoint-timestamp comparison, driven by a
// caller-supplied now() so tests don't need to sleep real wall-clock
// seconds.
package checkpoint

import (
	"fmt"
	"math"
)

// Policy decides when a checkpoint is due: should_write() of spec §4.7 is
// true once wall-clock minus the last checkpoint's timestamp is at least
// interval seconds.
type Policy struct {
	interval float64 // seconds; <= 0 disables periodic checkpointing
	last     float64
}

// NewPolicy builds a Policy holding startedAt as the initial "last
// checkpoint" wall-clock timestamp (spec §4.7). interval <= 0 disables
// periodic checkpoints entirely; callers can still request a final
// checkpoint explicitly.
func NewPolicy(interval float64, startedAt float64) *Policy {
	return &Policy{interval: interval, last: startedAt}
}

// Due reports whether a checkpoint should be written given the current
// wall-clock time now, and if so updates the policy's last-checkpoint
// timestamp to now (spec §4.7).
func (p *Policy) Due(now float64) bool {
	if p.interval <= 0 {
		return false
	}
	if now-p.last < p.interval {
		return false
	}
	p.last = now
	return true
}

// Name builds the checkpoint filename of spec §4.7 for simulated time t:
// a 7-digit zero-padded integer part and 2 fractional digits, e.g.
// t = 12.5 -> "chk-0000012.50.wo".
func Name(t float64) string {
	whole := int64(t)
	frac := int(math.Round((t - float64(whole)) * 100))
	if frac < 0 {
		frac = -frac
	}
	if frac == 100 {
		whole++
		frac = 0
	}
	return fmt.Sprintf("chk-%07d.%02d.wo", whole, frac)
}
