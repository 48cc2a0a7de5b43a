// Package triage classifies an inspected panel into its destiny.
package triage

import (
	"math"
	"strings"
	"sync/atomic"

	"solarcycle.GO/core/monitor"
	"solarcycle.GO/model/entity"
)

// Strategy decides a destiny from one set of measurements. n is the 1-based
// evaluation number of the engine.
type Strategy interface {
	Decide(n uint64, voltage, amperage float64, condition string) entity.TriageResult
	Name() string
}

// Engine runs a Strategy and counts committed evaluations. It never touches
// asset state.
type Engine struct {
	strategy    Strategy
	evaluations atomic.Uint64
}

func NewEngine(s Strategy) *Engine {
	if s == nil {
		s = NewThresholdStrategy(DefaultReuseMinWatts)
	}
	return &Engine{strategy: s}
}

// New builds an engine from a strategy name, falling back to threshold.
func New(name string, reuseMinWatts float64) *Engine {
	if strings.EqualFold(name, "rotation") {
		return NewEngine(RotationStrategy{})
	}
	return NewEngine(NewThresholdStrategy(reuseMinWatts))
}

// Decision is a classification that only counts once Commit is called, so
// an inspection that rolls back leaves the counters untouched.
type Decision struct {
	Result entity.TriageResult
	engine *Engine
}

// Commit records the decision in the evaluation counters.
func (d Decision) Commit() {
	d.engine.evaluations.Add(1)
	monitor.TriageEvaluations.WithLabelValues(string(d.Result)).Inc()
}

// Propose classifies as the next evaluation without counting it. Concurrent
// proposals may share an evaluation number.
func (e *Engine) Propose(voltage, amperage float64, condition string) Decision {
	n := e.evaluations.Load() + 1
	return Decision{Result: e.strategy.Decide(n, voltage, amperage, condition), engine: e}
}

// Classify is a total function of its inputs for the threshold strategy.
func (e *Engine) Classify(voltage, amperage float64, condition string) entity.TriageResult {
	n := e.evaluations.Add(1)
	r := e.strategy.Decide(n, voltage, amperage, condition)
	monitor.TriageEvaluations.WithLabelValues(string(r)).Inc()
	return r
}

func (e *Engine) Evaluations() uint64 {
	return e.evaluations.Load()
}

func (e *Engine) StrategyName() string {
	return e.strategy.Name()
}

const DefaultReuseMinWatts = 150.0

var (
	severeDamage = map[string]bool{"BROKEN": true, "SHATTERED": true, "BURNT": true, "DELAMINATED": true}
	healthy      = map[string]bool{"EXCELLENT": true, "GOOD": true}
	cosmeticWear = map[string]bool{"FAIR": true, "SCRATCHED": true, "DISCOLORED": true, "FADED": true}
)

// ThresholdStrategy is the rule-based classifier:
// severe damage recycles, healthy panels above the power floor are reused,
// cosmetic wear goes to art, anything else recycles.
type ThresholdStrategy struct {
	ReuseMinWatts float64
}

func NewThresholdStrategy(reuseMinWatts float64) ThresholdStrategy {
	if reuseMinWatts <= 0 || math.IsNaN(reuseMinWatts) {
		reuseMinWatts = DefaultReuseMinWatts
	}
	return ThresholdStrategy{ReuseMinWatts: reuseMinWatts}
}

func (s ThresholdStrategy) Name() string { return "threshold" }

func (s ThresholdStrategy) Decide(_ uint64, voltage, amperage float64, condition string) entity.TriageResult {
	c := strings.ToUpper(strings.TrimSpace(condition))
	switch {
	case severeDamage[c]:
		return entity.TriageRecycle
	case healthy[c] && clamp(voltage)*clamp(amperage) >= s.ReuseMinWatts:
		return entity.TriageReuse
	case cosmeticWear[c]:
		return entity.TriageArt
	}
	return entity.TriageRecycle
}

// clamp treats negative, NaN and infinite readings as no reading.
func clamp(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// RotationStrategy cycles REUSE, RECYCLE, ART by evaluation number.
// Used for demos where every destiny should show up.
type RotationStrategy struct{}

func (RotationStrategy) Name() string { return "rotation" }

func (RotationStrategy) Decide(n uint64, _, _ float64, _ string) entity.TriageResult {
	switch n % 3 {
	case 1:
		return entity.TriageReuse
	case 2:
		return entity.TriageRecycle
	}
	return entity.TriageArt
}
