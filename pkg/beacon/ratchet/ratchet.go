// Package ratchet tightens stored performance budgets when a site has
// sustainably outperformed them.
//
// The evaluator is a governor over a monitoring feedback loop: it inspects a
// rolling history of runs and, only under strict guardrails (success streak,
// cooldown, per-metric headroom), proposes a single threshold tightening per
// invocation. Budgets only ever move in the stricter direction; loosening is
// a human decision.
package ratchet

import (
	"sort"
	"time"
)

// Defaults for Config fields left at their zero value.
const (
	DefaultCooldownHours    = 24
	DefaultSuccessStreakMin = 5
	DefaultWindowSize       = 10

	DefaultScoreHeadroom = 0.03
	DefaultCLSHeadroom   = 0.05
	DefaultFCPHeadroomMs = 150
	DefaultLCPHeadroomMs = 250
)

// Metric names used in change records, in tightening priority order.
const (
	MetricPerformanceScore   = "performance_score"
	MetricCLS                = "cumulative_layout_shift"
	MetricFCP                = "first_contentful_paint_ms"
	MetricLCP                = "largest_contentful_paint_ms"
	MetricBaselinePercentile = "regression_baseline_percentile"
)

// Metrics are the measured values of one run. PerformanceScore is a 0-1
// score where higher is better; the rest are budgets where lower is better.
type Metrics struct {
	PerformanceScore         float64 `json:"performanceScore"`
	CumulativeLayoutShift    float64 `json:"cumulativeLayoutShift"`
	FirstContentfulPaintMs   float64 `json:"firstContentfulPaintMs"`
	LargestContentfulPaintMs float64 `json:"largestContentfulPaintMs"`
}

// Run is one monitoring run in the history, newest last.
type Run struct {
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Metrics   Metrics   `json:"metrics"`
}

// Thresholds are the stored budgets the evaluator may tighten.
type Thresholds struct {
	// MinPerformanceScore is the floor a run's score must clear (0-1).
	MinPerformanceScore float64 `json:"minPerformanceScore"`

	// MaxCumulativeLayoutShift is the CLS ceiling.
	MaxCumulativeLayoutShift float64 `json:"maxCumulativeLayoutShift"`

	// MaxFirstContentfulPaintMs is the FCP ceiling in milliseconds.
	MaxFirstContentfulPaintMs float64 `json:"maxFirstContentfulPaintMs"`

	// MaxLargestContentfulPaintMs is the LCP ceiling in milliseconds.
	MaxLargestContentfulPaintMs float64 `json:"maxLargestContentfulPaintMs"`

	// RegressionBaselinePercentile selects the history percentile used as
	// the regression baseline.
	RegressionBaselinePercentile int `json:"regressionBaselinePercentile"`
}

// Headrooms are the per-metric margins a median must clear beyond the
// current threshold before a tightening is proposed.
type Headrooms struct {
	PerformanceScore         float64 `json:"performanceScore"`
	CumulativeLayoutShift    float64 `json:"cumulativeLayoutShift"`
	FirstContentfulPaintMs   float64 `json:"firstContentfulPaintMs"`
	LargestContentfulPaintMs float64 `json:"largestContentfulPaintMs"`
}

// BaselineFlip configures the one-time baseline percentile lowering.
type BaselineFlip struct {
	// Enabled gates the flip independently of the tightening guards.
	Enabled bool `json:"enabled"`

	// MinTotalSuccesses is the cumulative successful-run count required.
	MinTotalSuccesses int `json:"minTotalSuccesses"`

	// ToPercentile is the new, lower baseline percentile.
	ToPercentile int `json:"toPercentile"`
}

// Config tunes the evaluator. Zero numeric fields take defaults.
type Config struct {
	Enabled          bool         `json:"enabled"`
	CooldownHours    int          `json:"cooldownHours"`
	SuccessStreakMin int          `json:"successStreakMin"`
	WindowSize       int          `json:"windowSize"`
	Thresholds       Thresholds   `json:"thresholds"`
	Headrooms        Headrooms    `json:"headrooms"`
	BaselineFlip     BaselineFlip `json:"baselineFlip"`
}

// withDefaults returns cfg with zero fields replaced by defaults.
func (c Config) withDefaults() Config {
	if c.CooldownHours <= 0 {
		c.CooldownHours = DefaultCooldownHours
	}
	if c.SuccessStreakMin <= 0 {
		c.SuccessStreakMin = DefaultSuccessStreakMin
	}
	if c.WindowSize <= 0 {
		c.WindowSize = DefaultWindowSize
	}
	if c.Headrooms.PerformanceScore <= 0 {
		c.Headrooms.PerformanceScore = DefaultScoreHeadroom
	}
	if c.Headrooms.CumulativeLayoutShift <= 0 {
		c.Headrooms.CumulativeLayoutShift = DefaultCLSHeadroom
	}
	if c.Headrooms.FirstContentfulPaintMs <= 0 {
		c.Headrooms.FirstContentfulPaintMs = DefaultFCPHeadroomMs
	}
	if c.Headrooms.LargestContentfulPaintMs <= 0 {
		c.Headrooms.LargestContentfulPaintMs = DefaultLCPHeadroomMs
	}
	return c
}

// Kind distinguishes change record types.
type Kind string

const (
	// KindTighten is a threshold tightening.
	KindTighten Kind = "tighten"

	// KindBaselineFlip is the one-time baseline percentile lowering.
	KindBaselineFlip Kind = "baseline_flip"
)

// Change is one applied modification, appended to the persistent change log.
type Change struct {
	Kind      Kind      `json:"kind"`
	Metric    string    `json:"metric"`
	From      float64   `json:"from"`
	To        float64   `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the evaluator's persistent memory, mutated only here and carried
// across invocations by a Store.
type State struct {
	// LastTightenTs starts the cooldown window; zero means never.
	LastTightenTs time.Time `json:"lastTightenTs,omitzero"`

	// BaselineFlipped records that the one-time flip has happened.
	BaselineFlipped bool `json:"baselineFlipped"`

	// ChangeLog holds every applied change, oldest first.
	ChangeLog []Change `json:"changeLog"`
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := s
	out.ChangeLog = make([]Change, len(s.ChangeLog))
	copy(out.ChangeLog, s.ChangeLog)
	return out
}

// Result carries the updated config and state plus the changes applied in
// this invocation.
type Result struct {
	Config  Config
	State   State
	Changes []Change
}

// Evaluate runs the governor against history (newest run last) and returns
// nil when nothing qualifies. At most one threshold tightening is applied
// per invocation; the baseline flip is gated independently and may land in
// the same invocation.
func Evaluate(history []Run, cfg Config, st State) *Result {
	return EvaluateAt(history, cfg, st, time.Now())
}

// EvaluateAt is Evaluate with an explicit clock, for tests and replays.
func EvaluateAt(history []Run, cfg Config, st State, now time.Time) *Result {
	cfg = cfg.withDefaults()
	if !cfg.Enabled {
		return nil
	}

	st = st.Clone()
	var applied []Change

	if change := evaluateTighten(history, &cfg, st, now); change != nil {
		st.LastTightenTs = now
		st.ChangeLog = append(st.ChangeLog, *change)
		applied = append(applied, *change)
	}

	if change := evaluateFlip(history, &cfg, st, now); change != nil {
		st.BaselineFlipped = true
		st.ChangeLog = append(st.ChangeLog, *change)
		applied = append(applied, *change)
	}

	if len(applied) == 0 {
		return nil
	}
	return &Result{Config: cfg, State: st, Changes: applied}
}

// evaluateTighten applies the tightening guards and returns the first
// qualifying metric's change, mutating cfg.Thresholds in place.
func evaluateTighten(history []Run, cfg *Config, st State, now time.Time) *Change {
	// Cooldown since the last applied tightening.
	cooldown := time.Duration(cfg.CooldownHours) * time.Hour
	if !st.LastTightenTs.IsZero() && now.Sub(st.LastTightenTs) < cooldown {
		return nil
	}

	// Consecutive successes counted from the most recent run backward.
	if successStreak(history) < cfg.SuccessStreakMin {
		return nil
	}

	window := recentSuccesses(history, cfg.WindowSize)
	if len(window) == 0 {
		return nil
	}

	// Fixed priority order; at most one tightening per invocation.
	th := &cfg.Thresholds
	hr := cfg.Headrooms

	if med := medianOf(window, func(m Metrics) float64 { return m.PerformanceScore }); med >= th.MinPerformanceScore+hr.PerformanceScore {
		proposed := med - hr.PerformanceScore
		if proposed > 1.0 {
			proposed = 1.0
		}
		if proposed > th.MinPerformanceScore {
			change := &Change{Kind: KindTighten, Metric: MetricPerformanceScore, From: th.MinPerformanceScore, To: proposed, Timestamp: now}
			th.MinPerformanceScore = proposed
			return change
		}
	}

	if change := tightenCeiling(&th.MaxCumulativeLayoutShift, MetricCLS, window,
		func(m Metrics) float64 { return m.CumulativeLayoutShift }, hr.CumulativeLayoutShift, now); change != nil {
		return change
	}
	if change := tightenCeiling(&th.MaxFirstContentfulPaintMs, MetricFCP, window,
		func(m Metrics) float64 { return m.FirstContentfulPaintMs }, hr.FirstContentfulPaintMs, now); change != nil {
		return change
	}
	if change := tightenCeiling(&th.MaxLargestContentfulPaintMs, MetricLCP, window,
		func(m Metrics) float64 { return m.LargestContentfulPaintMs }, hr.LargestContentfulPaintMs, now); change != nil {
		return change
	}
	return nil
}

// tightenCeiling proposes a lower ceiling for a lower-is-better metric when
// the window median clears the current ceiling by at least the headroom.
func tightenCeiling(current *float64, metric string, window []Metrics, get func(Metrics) float64, headroom float64, now time.Time) *Change {
	if *current <= 0 {
		// Unset budgets are never tightened; there is nothing to ratchet from.
		return nil
	}
	med := medianOf(window, get)
	if med > *current-headroom {
		return nil
	}
	proposed := med + headroom
	if proposed < 0 {
		proposed = 0
	}
	if proposed >= *current {
		return nil
	}
	change := &Change{Kind: KindTighten, Metric: metric, From: *current, To: proposed, Timestamp: now}
	*current = proposed
	return change
}

// evaluateFlip applies the independently-gated one-time baseline lowering,
// mutating cfg.Thresholds in place.
func evaluateFlip(history []Run, cfg *Config, st State, now time.Time) *Change {
	flip := cfg.BaselineFlip
	if !flip.Enabled || st.BaselineFlipped {
		return nil
	}
	if flip.MinTotalSuccesses <= 0 || flip.ToPercentile <= 0 {
		return nil
	}
	if totalSuccesses(history) < flip.MinTotalSuccesses {
		return nil
	}
	th := &cfg.Thresholds
	if th.RegressionBaselinePercentile <= flip.ToPercentile {
		return nil
	}
	change := &Change{
		Kind:      KindBaselineFlip,
		Metric:    MetricBaselinePercentile,
		From:      float64(th.RegressionBaselinePercentile),
		To:        float64(flip.ToPercentile),
		Timestamp: now,
	}
	th.RegressionBaselinePercentile = flip.ToPercentile
	return change
}

// successStreak counts consecutive successful runs from the newest backward.
func successStreak(history []Run) int {
	streak := 0
	for i := len(history) - 1; i >= 0; i-- {
		if !history[i].Success {
			break
		}
		streak++
	}
	return streak
}

// totalSuccesses counts all successful runs in the history.
func totalSuccesses(history []Run) int {
	n := 0
	for _, r := range history {
		if r.Success {
			n++
		}
	}
	return n
}

// recentSuccesses returns the metrics of the most recent successful runs,
// at most limit of them.
func recentSuccesses(history []Run, limit int) []Metrics {
	var out []Metrics
	for i := len(history) - 1; i >= 0 && len(out) < limit; i-- {
		if history[i].Success {
			out = append(out, history[i].Metrics)
		}
	}
	return out
}

// medianOf computes the median of one metric across the window.
func medianOf(window []Metrics, get func(Metrics) float64) float64 {
	vals := make([]float64, len(window))
	for i, m := range window {
		vals[i] = get(m)
	}
	sort.Float64s(vals)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}
