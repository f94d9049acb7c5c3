package main

import (
	"context"
	"errors"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mkarras/bodesweep/internal/config"
	"github.com/mkarras/bodesweep/internal/discovery"
	"github.com/mkarras/bodesweep/internal/instrument"
	"github.com/mkarras/bodesweep/internal/report"
	"github.com/mkarras/bodesweep/internal/sweep"
)

func main() {
	// Configure zerolog for structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// log.Fatal would os.Exit past the deferred session close, so all the
	// work happens in run and only the verdict is fatal.
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Sweep run failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	classifier := discovery.NewClassifier(cfg.Serial.ProbeBaud, cfg.Serial.ProbeTimeout, cfg.Serial.ProbeSettle)
	devices, err := classifier.Discover()
	if err != nil {
		return err
	}

	sess := instrument.Open(devices, cfg.Serial)
	// The session must be released on every exit path or the ports stay
	// locked for the next run.
	defer sess.Close()

	if sess.FnGen() == nil || sess.Scope() == nil {
		return errors.New("sweep needs both a function generator and an oscilloscope")
	}

	gen, err := instrument.NewFunctionGenerator(sess.FnGen(), sess.Dialect(), cfg.Delays.WriteSettle)
	if err != nil {
		return err
	}
	scope := instrument.NewScope(sess.Scope(), cfg.Delays.WriteSettle)

	if err := gen.SetWaveform("SIN"); err != nil {
		return err
	}
	if err := gen.SetAmplitude(1.0); err != nil {
		return err
	}
	if err := scope.Calibrate(); err != nil {
		return err
	}
	if err := scope.CenterTraces(); err != nil {
		return err
	}
	if err := scope.ConfigureAutoMeasure("PK2PK", "PHASE"); err != nil {
		return err
	}
	if err := scope.AcquireAveraged(cfg.Sweep.Averages); err != nil {
		return err
	}

	orch := sweep.New(gen, scope, cfg.Sweep, cfg.Delays, cfg.Scope)
	log.Info().
		Stringer("run_id", orch.RunID()).
		Float64("start_hz", cfg.Sweep.StartHz).
		Float64("end_hz", cfg.Sweep.EndHz).
		Int("points", cfg.Sweep.Points).
		Msg("Starting frequency sweep")

	records, err := orch.Run(context.Background())
	if err != nil {
		return err
	}

	path, err := report.WriteCSV(cfg.Output.Dir, orch.RunID(), records)
	if err != nil {
		return err
	}
	log.Info().Str("path", path).Int("records", len(records)).Msg("Sweep results written")

	if cfg.Output.Screenshot != "" {
		captureScreenshot(scope, cfg.Output.Screenshot)
	}
	return nil
}

// captureScreenshot is best-effort: a failed capture is a warning, never a
// failed run, and the driver guarantees the transport is back in line mode
// afterwards either way.
func captureScreenshot(scope *instrument.Scope, target string) {
	img, err := scope.CaptureScreenshot(target)
	if err != nil {
		log.Warn().Err(err).Msg("Screenshot capture failed")
		return
	}
	if err := os.WriteFile(target, img, 0o644); err != nil {
		log.Warn().Err(err).Msg("Writing screenshot failed")
		return
	}
	log.Info().Str("path", target).Msg("Screenshot written")
}
