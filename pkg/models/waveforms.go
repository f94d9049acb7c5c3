package models

// ModernWaveforms is the waveform set accepted by the SCPI dialect.
var ModernWaveforms = []string{"SIN", "RAMP", "SQU"}

// LegacyWaveforms is the waveform set accepted by the legacy dialect.
// Order matters: the wire encoding is the name's index in this slice.
var LegacyWaveforms = []string{"SIN", "TRI", "SQR"}

// MeasureTypes is the set of automatic-measurement keywords the
// oscilloscope accepts for its measurement slots.
var MeasureTypes = []string{
	"AMPLITUDE", "AREA", "BURST", "CAREA", "CMEAN", "CRMS", "DELAY",
	"FALL", "FREQUENCY", "HIGH", "HITS", "LOW", "MAXIMUM", "MEAN",
	"MEDIAN", "MINIMUM", "NDUTY", "NOVERSHOOT", "NWIDTH", "PDUTY",
	"PERIOD", "PHASE", "PK2PK", "POVERSHOOT", "PWIDTH", "RISE", "RMS",
	"SIGMA1", "STDDEV", "WAVEFORMS",
}
