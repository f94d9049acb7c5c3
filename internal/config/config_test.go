package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSweepConfigValidate(t *testing.T) {
	valid := SweepConfig{StartHz: 1, EndHz: 15_000_000, Points: 50, Averages: 128}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name string
		cfg  SweepConfig
	}{
		{"zero points", SweepConfig{StartHz: 1, EndHz: 100, Points: 0}},
		{"zero start", SweepConfig{StartHz: 0, EndHz: 100, Points: 10}},
		{"negative start", SweepConfig{StartHz: -1, EndHz: 100, Points: 10}},
		{"zero end", SweepConfig{StartHz: 1, EndHz: 0, Points: 10}},
		{"end below start", SweepConfig{StartHz: 1000, EndHz: 10, Points: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
		})
	}
}

func TestSweepConfigValidateSinglePoint(t *testing.T) {
	cfg := SweepConfig{StartHz: 440, EndHz: 440, Points: 1}
	assert.NoError(t, cfg.Validate())
}
