package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/telemetrykit/beacon/pkg/beacon/ratchet"
	"github.com/telemetrykit/beacon/pkg/beacon/transport"
)

// Settings is the decoded configuration document. Absent transport keys stay
// nil in Overrides so they never clobber code-level defaults; the ratchet
// section decodes to a value config whose zero fields take package defaults.
type Settings struct {
	Transport       transport.Overrides
	Ratchet         ratchet.Config
	PreConsentLimit int
	SanitizeAllowed []string
}

// FromFile loads settings from a file, auto-detecting format by extension.
// Supported extensions: .yaml, .yml, .json
func FromFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return Settings{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// FromYAML parses YAML data into Settings.
func FromYAML(data []byte) (Settings, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Settings{}, fmt.Errorf("parse yaml: %w", err)
	}
	return fromSection(NewSection(m)), nil
}

// FromJSON parses JSON data into Settings.
func FromJSON(data []byte) (Settings, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Settings{}, fmt.Errorf("parse json: %w", err)
	}
	return fromSection(NewSection(m)), nil
}

func fromSection(root Section) Settings {
	var s Settings

	tr := root.Sub("transport")
	if tr.Has("endpoint") {
		s.Transport.Endpoint = ptr(tr.String("endpoint", ""))
	}
	if tr.Has("enabled") {
		s.Transport.Enabled = ptr(tr.Bool("enabled", false))
	}
	if tr.Has("flushOnClose") {
		s.Transport.FlushOnClose = ptr(tr.Bool("flushOnClose", false))
	}
	if tr.Has("maxRetries") {
		s.Transport.MaxRetries = ptr(tr.Int("maxRetries", 0))
	}
	if tr.Has("retryBaseDelay") {
		s.Transport.RetryBaseDelay = ptr(tr.Duration("retryBaseDelay", 0))
	}
	if tr.Has("breakerThreshold") {
		s.Transport.BreakerThreshold = ptr(tr.Int("breakerThreshold", 0))
	}
	if tr.Has("breakerCooldown") {
		s.Transport.BreakerCooldown = ptr(tr.Duration("breakerCooldown", 0))
	}
	if tr.Has("maxBatchSize") {
		s.Transport.MaxBatchSize = ptr(tr.Int("maxBatchSize", 0))
	}
	if tr.Has("maxBatchBytes") {
		s.Transport.MaxBatchBytes = ptr(tr.Int("maxBatchBytes", 0))
	}
	if tr.Has("flushInterval") {
		s.Transport.FlushInterval = ptr(tr.Duration("flushInterval", 0))
	}
	if tr.Has("maxQueueSize") {
		s.Transport.MaxQueueSize = ptr(tr.Int("maxQueueSize", 0))
	}

	rt := root.Sub("ratchet")
	s.Ratchet.Enabled = rt.Bool("enabled", false)
	s.Ratchet.CooldownHours = rt.Int("cooldownHours", 0)
	s.Ratchet.SuccessStreakMin = rt.Int("successStreakMin", 0)
	s.Ratchet.WindowSize = rt.Int("windowSize", 0)

	th := rt.Sub("thresholds")
	s.Ratchet.Thresholds = ratchet.Thresholds{
		MinPerformanceScore:          th.Float("minPerformanceScore", 0),
		MaxCumulativeLayoutShift:     th.Float("maxCumulativeLayoutShift", 0),
		MaxFirstContentfulPaintMs:    th.Float("maxFirstContentfulPaintMs", 0),
		MaxLargestContentfulPaintMs:  th.Float("maxLargestContentfulPaintMs", 0),
		RegressionBaselinePercentile: th.Int("regressionBaselinePercentile", 0),
	}

	hr := rt.Sub("headrooms")
	s.Ratchet.Headrooms = ratchet.Headrooms{
		PerformanceScore:         hr.Float("performanceScore", 0),
		CumulativeLayoutShift:    hr.Float("cumulativeLayoutShift", 0),
		FirstContentfulPaintMs:   hr.Float("firstContentfulPaintMs", 0),
		LargestContentfulPaintMs: hr.Float("largestContentfulPaintMs", 0),
	}

	fl := rt.Sub("baselineFlip")
	s.Ratchet.BaselineFlip = ratchet.BaselineFlip{
		Enabled:           fl.Bool("enabled", false),
		MinTotalSuccesses: fl.Int("minTotalSuccesses", 0),
		ToPercentile:      fl.Int("toPercentile", 0),
	}

	tk := root.Sub("tracker")
	s.PreConsentLimit = tk.Int("preConsentLimit", 0)
	s.SanitizeAllowed = tk.StringSlice("sanitizeAllowedKeys", nil)

	return s
}

func ptr[T any](v T) *T {
	return &v
}
