package models

import "math"

// MeasurementRecord represents one sweep step. Fields that could not be
// measured hold NaN, including Ratio whenever either channel is missing.
type MeasurementRecord struct {
	FrequencyHz float64 `json:"frequency_hz" doc:"Generator frequency in Hz"`
	Ch1Vpp      float64 `json:"ch1_vpp" doc:"Channel 1 peak-to-peak voltage"`
	Ch2Vpp      float64 `json:"ch2_vpp" doc:"Channel 2 peak-to-peak voltage"`
	Ratio       float64 `json:"ratio" doc:"Ch2/Ch1 voltage ratio"`
	PhaseDeg    float64 `json:"phase_deg" doc:"Phase of CH2 relative to CH1 in degrees"`
}

// NewMeasurementRecord builds a record for one sweep step, deriving the
// channel ratio. A zero or non-finite Ch1 yields a NaN ratio rather than
// an infinity.
func NewMeasurementRecord(freqHz, ch1Vpp, ch2Vpp, phaseDeg float64) MeasurementRecord {
	ratio := math.NaN()
	if isFinite(ch1Vpp) && isFinite(ch2Vpp) && ch1Vpp != 0 {
		ratio = ch2Vpp / ch1Vpp
	}
	return MeasurementRecord{
		FrequencyHz: freqHz,
		Ch1Vpp:      ch1Vpp,
		Ch2Vpp:      ch2Vpp,
		Ratio:       ratio,
		PhaseDeg:    phaseDeg,
	}
}

// MissingRecord builds a record whose four measured fields are all NaN,
// used when any query of a sweep step failed.
func MissingRecord(freqHz float64) MeasurementRecord {
	nan := math.NaN()
	return MeasurementRecord{
		FrequencyHz: freqHz,
		Ch1Vpp:      nan,
		Ch2Vpp:      nan,
		Ratio:       nan,
		PhaseDeg:    nan,
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
