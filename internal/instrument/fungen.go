package instrument

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mkarras/bodesweep/internal/transport"
	"github.com/mkarras/bodesweep/pkg/models"
)

// FunctionGenerator is the uniform control surface over both vendor
// dialects. The variant is selected once, at classification time.
type FunctionGenerator interface {
	SetAmplitude(vpp float64) error
	Amplitude() (float64, error)
	SetFrequency(hz float64) error
	Frequency() (float64, error)
	SetWaveform(name string) error
	Waveform() (string, error)
	Waveforms() []string
}

// NewFunctionGenerator returns the driver variant for the classified
// dialect.
func NewFunctionGenerator(t transport.Transport, dialect models.Role, settle time.Duration) (FunctionGenerator, error) {
	switch dialect {
	case models.RoleFnGenModern:
		return &ModernGenerator{T: t, Settle: settle}, nil
	case models.RoleFnGenLegacy:
		return &LegacyGenerator{T: t, Settle: settle}, nil
	default:
		return nil, fmt.Errorf("no function generator dialect for role %q", dialect)
	}
}

// ModernGenerator speaks SCPI: decimal volts in explicit Vpp units,
// integer hertz with a unit suffix, waveforms selected by name.
type ModernGenerator struct {
	T transport.Transport
	// Settle is waited after every write; these commands are never
	// acknowledged by the instrument.
	Settle time.Duration
}

func (g *ModernGenerator) SetAmplitude(vpp float64) error {
	if err := g.send("VOLT:UNIT VPP"); err != nil {
		return err
	}
	return g.send(fmt.Sprintf("VOLT %.2f", vpp))
}

func (g *ModernGenerator) Amplitude() (float64, error) {
	return queryFloat(g.T, "VOLT?")
}

func (g *ModernGenerator) SetFrequency(hz float64) error {
	return g.send(fmt.Sprintf("FREQ %dHZ", int64(hz)))
}

func (g *ModernGenerator) Frequency() (float64, error) {
	return queryFloat(g.T, "FREQ?")
}

func (g *ModernGenerator) SetWaveform(name string) error {
	name = strings.ToUpper(name)
	if !slices.Contains(models.ModernWaveforms, name) {
		return &ValidationError{What: "waveform", Got: name, Valid: models.ModernWaveforms}
	}
	return g.send("FUNC " + name)
}

func (g *ModernGenerator) Waveform() (string, error) {
	return query(g.T, "FUNC?")
}

func (g *ModernGenerator) Waveforms() []string {
	return models.ModernWaveforms
}

func (g *ModernGenerator) send(cmd string) error {
	if err := g.T.WriteLine(cmd); err != nil {
		return err
	}
	time.Sleep(g.Settle)
	return nil
}

// LegacyGenerator speaks the older terse dialect: bare decimal amplitude,
// bare integer frequency, waveforms selected by numeric index.
type LegacyGenerator struct {
	T      transport.Transport
	Settle time.Duration
}

func (g *LegacyGenerator) SetAmplitude(vpp float64) error {
	return g.send(fmt.Sprintf("AMP %.2f", vpp))
}

func (g *LegacyGenerator) Amplitude() (float64, error) {
	return queryFloat(g.T, "AMP?")
}

func (g *LegacyGenerator) SetFrequency(hz float64) error {
	return g.send(fmt.Sprintf("FREQ %d", int64(hz)))
}

func (g *LegacyGenerator) Frequency() (float64, error) {
	return queryFloat(g.T, "FREQ?")
}

func (g *LegacyGenerator) SetWaveform(name string) error {
	name = strings.ToUpper(name)
	idx := slices.Index(models.LegacyWaveforms, name)
	if idx < 0 {
		return &ValidationError{What: "waveform", Got: name, Valid: models.LegacyWaveforms}
	}
	return g.send(fmt.Sprintf("WAVE %d", idx))
}

func (g *LegacyGenerator) Waveform() (string, error) {
	reply, err := query(g.T, "WAVE?")
	if err != nil {
		return "", err
	}
	idx, err := strconv.Atoi(reply)
	if err != nil || idx < 0 || idx >= len(models.LegacyWaveforms) {
		return "", fmt.Errorf("unexpected waveform index %q", reply)
	}
	return models.LegacyWaveforms[idx], nil
}

func (g *LegacyGenerator) Waveforms() []string {
	return models.LegacyWaveforms
}

func (g *LegacyGenerator) send(cmd string) error {
	if err := g.T.WriteLine(cmd); err != nil {
		return err
	}
	time.Sleep(g.Settle)
	return nil
}

// query writes a command and returns the trimmed reply line.
func query(t transport.Transport, cmd string) (string, error) {
	if err := t.WriteLine(cmd); err != nil {
		return "", err
	}
	reply, err := t.ReadLine()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

func queryFloat(t transport.Transport, cmd string) (float64, error) {
	reply, err := query(t, cmd)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(reply, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q reply %q: %w", cmd, reply, err)
	}
	return v, nil
}
