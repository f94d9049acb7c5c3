package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatioDerivation(t *testing.T) {
	rec := NewMeasurementRecord(1000, 0.5, 1.0, -45)
	assert.InDelta(t, 2.0, rec.Ratio, 1e-9)
}

func TestRatioZeroDenominator(t *testing.T) {
	rec := NewMeasurementRecord(1000, 0, 1.0, -45)
	assert.True(t, math.IsNaN(rec.Ratio), "zero denominator must yield NaN, not Inf")
}

func TestRatioMissingChannel(t *testing.T) {
	rec := NewMeasurementRecord(1000, math.NaN(), 1.0, -45)
	assert.True(t, math.IsNaN(rec.Ratio))

	rec = NewMeasurementRecord(1000, 0.5, math.NaN(), -45)
	assert.True(t, math.IsNaN(rec.Ratio))
}

func TestMissingRecord(t *testing.T) {
	rec := MissingRecord(440)
	assert.Equal(t, 440.0, rec.FrequencyHz)
	assert.True(t, math.IsNaN(rec.Ch1Vpp))
	assert.True(t, math.IsNaN(rec.Ch2Vpp))
	assert.True(t, math.IsNaN(rec.Ratio))
	assert.True(t, math.IsNaN(rec.PhaseDeg))
}
