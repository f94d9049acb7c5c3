// Package sweep orchestrates the logarithmic frequency sweep across the
// function generator and the oscilloscope.
package sweep

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mkarras/bodesweep/internal/config"
	"github.com/mkarras/bodesweep/pkg/models"
)

// Generator is the slice of the function generator driver the sweep needs.
type Generator interface {
	SetFrequency(hz float64) error
}

// Measurer is the slice of the oscilloscope driver the sweep needs.
type Measurer interface {
	Autoset() error
	CenterTraces() error
	SetTimebase(secPerDiv float64) error
	SetFrequencyHint(hz float64)
	MeasureVpp(channel int) (float64, error)
	MeasurePhase() (float64, error)
}

// State tracks sweep progress.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateComplete
)

// Orchestrator steps a generator/scope pair through a planned set of
// frequencies, isolating per-step measurement failures: a failed step
// yields a sentinel record, never an aborted sweep.
type Orchestrator struct {
	gen    Generator
	scope  Measurer
	sweep  config.SweepConfig
	delays config.DelayConfig
	bounds config.ScopeConfig

	runID uuid.UUID
	state State
}

// New builds an Orchestrator for one sweep run.
func New(gen Generator, scope Measurer, sweep config.SweepConfig, delays config.DelayConfig, bounds config.ScopeConfig) *Orchestrator {
	return &Orchestrator{
		gen:    gen,
		scope:  scope,
		sweep:  sweep,
		delays: delays,
		bounds: bounds,
		runID:  uuid.New(),
		state:  StateIdle,
	}
}

// RunID identifies this sweep run in logs and the output artifact name.
func (o *Orchestrator) RunID() uuid.UUID { return o.runID }

// State returns the current sweep state.
func (o *Orchestrator) State() State { return o.state }

// Frequencies returns the planned sweep points: Points values log-spaced
// from StartHz to EndHz inclusive, rounded to two decimals, ascending.
func (o *Orchestrator) Frequencies() []float64 {
	n := o.sweep.Points
	if n <= 0 {
		return nil
	}
	freqs := make([]float64, n)
	if n == 1 {
		freqs[0] = round2(o.sweep.StartHz)
		return freqs
	}
	logStart := math.Log10(o.sweep.StartHz)
	logEnd := math.Log10(o.sweep.EndHz)
	step := (logEnd - logStart) / float64(n-1)
	for i := range freqs {
		freqs[i] = round2(math.Pow(10, logStart+float64(i)*step))
	}
	return freqs
}

// Run executes the sweep and returns one record per planned frequency, in
// ascending order. Step-level failures are recorded as NaN sentinels and
// never stop the sweep; only context cancellation ends it early.
func (o *Orchestrator) Run(ctx context.Context) ([]models.MeasurementRecord, error) {
	freqs := o.Frequencies()
	records := make([]models.MeasurementRecord, 0, len(freqs))
	o.state = StateRunning

	for i, freq := range freqs {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		log.Info().
			Stringer("run_id", o.runID).
			Int("step", i+1).
			Int("steps", len(freqs)).
			Float64("frequency_hz", freq).
			Msg("Sweep step")
		records = append(records, o.step(freq))
	}

	o.state = StateComplete
	return records, nil
}

// step applies one frequency and measures it. Every failure path collapses
// to a sentinel record for this step alone.
func (o *Orchestrator) step(freq float64) models.MeasurementRecord {
	if err := o.gen.SetFrequency(freq); err != nil {
		log.Warn().Err(err).Float64("frequency_hz", freq).Msg("Setting frequency failed")
		return models.MissingRecord(freq)
	}
	time.Sleep(o.delays.Stabilize)

	o.scope.SetFrequencyHint(freq)
	if err := o.scope.Autoset(); err != nil {
		log.Warn().Err(err).Float64("frequency_hz", freq).Msg("Autoset failed")
		return models.MissingRecord(freq)
	}
	if err := o.scope.CenterTraces(); err != nil {
		log.Warn().Err(err).Float64("frequency_hz", freq).Msg("Centering traces failed")
		return models.MissingRecord(freq)
	}
	o.applyTimebaseHeuristic(freq)

	ch1, err := o.scope.MeasureVpp(1)
	if err != nil {
		return o.missing(freq, err)
	}
	time.Sleep(o.delays.Measure)
	ch2, err := o.scope.MeasureVpp(2)
	if err != nil {
		return o.missing(freq, err)
	}
	time.Sleep(o.delays.Measure)
	phase, err := o.scope.MeasurePhase()
	if err != nil {
		return o.missing(freq, err)
	}
	time.Sleep(o.delays.Measure)

	return models.NewMeasurementRecord(freq, ch1, ch2, phase)
}

// applyTimebaseHeuristic works around unreliable autoset at frequency
// extremes: very low frequencies get a forced coarse timescale and a long
// settle, low-mid frequencies just a shorter extra settle.
func (o *Orchestrator) applyTimebaseHeuristic(freq float64) {
	switch {
	case freq < o.bounds.LowFreqThresholdHz:
		if err := o.scope.SetTimebase(o.bounds.CoarseTimebaseSec); err != nil {
			log.Warn().Err(err).Msg("Forcing coarse timebase failed")
		}
		time.Sleep(o.delays.LowFreqSettle)
	case freq < o.bounds.MidFreqThresholdHz:
		time.Sleep(o.delays.MidFreqSettle)
	}
}

func (o *Orchestrator) missing(freq float64, err error) models.MeasurementRecord {
	log.Warn().Err(err).Float64("frequency_hz", freq).Msg("Measurement failed, recording sentinel")
	return models.MissingRecord(freq)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
