package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Serial SerialConfig
	Sweep  SweepConfig
	Delays DelayConfig
	Scope  ScopeConfig
	Output OutputConfig
}

// SerialConfig holds port and timing settings for the transports
type SerialConfig struct {
	ProbeBaud    int
	FnGenBaud    int
	ProbeTimeout time.Duration
	ProbeSettle  time.Duration
	ReadTimeout  time.Duration
}

// SweepConfig holds the sweep plan
type SweepConfig struct {
	StartHz  float64
	EndHz    float64
	Points   int
	Averages int
}

// Validate rejects a sweep plan the log-spaced point computation cannot
// handle, before any hardware is touched.
func (c SweepConfig) Validate() error {
	if c.Points < 1 {
		return fmt.Errorf("sweep needs at least one point, got %d", c.Points)
	}
	if c.StartHz <= 0 || c.EndHz <= 0 {
		return fmt.Errorf("sweep bounds must be positive, got %g..%g Hz", c.StartHz, c.EndHz)
	}
	if c.EndHz < c.StartHz {
		return fmt.Errorf("sweep end %g Hz is below start %g Hz", c.EndHz, c.StartHz)
	}
	return nil
}

// DelayConfig holds the settle delays the protocol needs in place of
// completion acknowledgments. Real hardware settle time varies by model,
// so none of these are hard-coded in the drivers.
type DelayConfig struct {
	WriteSettle   time.Duration
	Stabilize     time.Duration
	Measure       time.Duration
	LowFreqSettle time.Duration
	MidFreqSettle time.Duration
}

// ScopeConfig holds the timebase heuristic bounds
type ScopeConfig struct {
	LowFreqThresholdHz float64
	MidFreqThresholdHz float64
	CoarseTimebaseSec  float64
}

// OutputConfig holds result and screenshot destinations
type OutputConfig struct {
	Dir        string
	Screenshot string
}

// Load loads configuration from environment variables and .env files
func Load() (*Config, error) {
	// Set defaults
	viper.SetDefault("PROBE_BAUD", 9600)
	viper.SetDefault("FNGEN_BAUD", 115200)
	viper.SetDefault("PROBE_TIMEOUT", "500ms")
	viper.SetDefault("PROBE_SETTLE", "200ms")
	viper.SetDefault("READ_TIMEOUT", "2s")
	viper.SetDefault("SWEEP_START_HZ", 1.0)
	viper.SetDefault("SWEEP_END_HZ", 15_000_000.0)
	viper.SetDefault("SWEEP_POINTS", 50)
	viper.SetDefault("SWEEP_AVERAGES", 128)
	viper.SetDefault("WRITE_SETTLE", "50ms")
	viper.SetDefault("STABILIZE_DELAY", "500ms")
	viper.SetDefault("MEASURE_DELAY", "200ms")
	viper.SetDefault("LOWFREQ_SETTLE", "5s")
	viper.SetDefault("MIDFREQ_SETTLE", "1s")
	viper.SetDefault("LOWFREQ_THRESHOLD_HZ", 10.0)
	viper.SetDefault("MIDFREQ_THRESHOLD_HZ", 100.0)
	viper.SetDefault("COARSE_TIMEBASE_SEC", 0.1)
	viper.SetDefault("OUTPUT_DIR", ".")
	viper.SetDefault("SCREENSHOT_PATH", "")
	viper.SetDefault("ENVIRONMENT", "dev")

	// Read from .env files based on environment
	env := viper.GetString("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}

	// Try to read .env file for the current environment
	viper.SetConfigName(".env." + env)
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	// Read .env file (ignore error if file doesn't exist)
	_ = viper.ReadInConfig()

	// Environment variables override .env file values
	viper.AutomaticEnv()

	// Bind specific environment variable names
	viper.BindEnv("PROBE_BAUD")
	viper.BindEnv("FNGEN_BAUD")
	viper.BindEnv("PROBE_TIMEOUT")
	viper.BindEnv("PROBE_SETTLE")
	viper.BindEnv("READ_TIMEOUT")
	viper.BindEnv("SWEEP_START_HZ")
	viper.BindEnv("SWEEP_END_HZ")
	viper.BindEnv("SWEEP_POINTS")
	viper.BindEnv("SWEEP_AVERAGES")
	viper.BindEnv("WRITE_SETTLE")
	viper.BindEnv("STABILIZE_DELAY")
	viper.BindEnv("MEASURE_DELAY")
	viper.BindEnv("LOWFREQ_SETTLE")
	viper.BindEnv("MIDFREQ_SETTLE")
	viper.BindEnv("LOWFREQ_THRESHOLD_HZ")
	viper.BindEnv("MIDFREQ_THRESHOLD_HZ")
	viper.BindEnv("COARSE_TIMEBASE_SEC")
	viper.BindEnv("OUTPUT_DIR")
	viper.BindEnv("SCREENSHOT_PATH")

	var config Config
	config.Serial.ProbeBaud = viper.GetInt("PROBE_BAUD")
	config.Serial.FnGenBaud = viper.GetInt("FNGEN_BAUD")
	config.Serial.ProbeTimeout = viper.GetDuration("PROBE_TIMEOUT")
	config.Serial.ProbeSettle = viper.GetDuration("PROBE_SETTLE")
	config.Serial.ReadTimeout = viper.GetDuration("READ_TIMEOUT")
	config.Sweep.StartHz = viper.GetFloat64("SWEEP_START_HZ")
	config.Sweep.EndHz = viper.GetFloat64("SWEEP_END_HZ")
	config.Sweep.Points = viper.GetInt("SWEEP_POINTS")
	config.Sweep.Averages = viper.GetInt("SWEEP_AVERAGES")
	config.Delays.WriteSettle = viper.GetDuration("WRITE_SETTLE")
	config.Delays.Stabilize = viper.GetDuration("STABILIZE_DELAY")
	config.Delays.Measure = viper.GetDuration("MEASURE_DELAY")
	config.Delays.LowFreqSettle = viper.GetDuration("LOWFREQ_SETTLE")
	config.Delays.MidFreqSettle = viper.GetDuration("MIDFREQ_SETTLE")
	config.Scope.LowFreqThresholdHz = viper.GetFloat64("LOWFREQ_THRESHOLD_HZ")
	config.Scope.MidFreqThresholdHz = viper.GetFloat64("MIDFREQ_THRESHOLD_HZ")
	config.Scope.CoarseTimebaseSec = viper.GetFloat64("COARSE_TIMEBASE_SEC")
	config.Output.Dir = viper.GetString("OUTPUT_DIR")
	config.Output.Screenshot = viper.GetString("SCREENSHOT_PATH")

	if err := config.Sweep.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}
