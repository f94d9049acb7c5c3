package instrument

import (
	"fmt"
	"io"
	"math/bits"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mkarras/bodesweep/internal/transport"
	"github.com/mkarras/bodesweep/pkg/models"
)

const (
	// probeAttenuation is the fixed ×10 probe factor both channels use.
	probeAttenuation = 10

	// screenFile is the capture's name on the instrument's internal
	// storage; it is deleted and rewritten on every capture.
	screenFile = "TEMP.PNG"

	// blockChunkSize bounds each raw read during a block transfer.
	blockChunkSize = 4096

	// errEAVBit is the error-available bit of the status byte.
	errEAVBit = 0x04

	// errQueueLimit caps error-queue draining in case the instrument
	// never produces the no-error sentinel.
	errQueueLimit = 32
)

// Scope drives the oscilloscope: setup sequences, automatic measurements,
// averaged acquisition, the instrument error queue, and binary screenshot
// retrieval over the block-transfer framing.
type Scope struct {
	T transport.Transport
	// Settle is waited after unacknowledged setup commands.
	Settle time.Duration

	// freqHint is the sweep's current generator frequency, used to
	// estimate how long an averaged acquisition needs.
	freqHint float64
}

// NewScope wraps a transport with the oscilloscope driver.
func NewScope(t transport.Transport, settle time.Duration) *Scope {
	return &Scope{T: t, Settle: settle}
}

// Calibrate enables both channels, sets the probe attenuation and runs an
// autoset.
func (s *Scope) Calibrate() error {
	cmds := []string{
		"SELECT:CH1 ON",
		"SELECT:CH2 ON",
		fmt.Sprintf("CH1:PROBE %d", probeAttenuation),
		fmt.Sprintf("CH2:PROBE %d", probeAttenuation),
	}
	for _, cmd := range cmds {
		if err := s.send(cmd); err != nil {
			return err
		}
	}
	return s.Autoset()
}

// Autoset asks the instrument to pick vertical, horizontal and trigger
// settings for the current signal.
func (s *Scope) Autoset() error {
	return s.send("AUTOSET EXECUTE")
}

// CenterTraces zeroes both vertical positions and the horizontal position.
func (s *Scope) CenterTraces() error {
	for _, cmd := range []string{
		"CH1:POSITION 0",
		"CH2:POSITION 0",
		"HORIZONTAL:POSITION 0",
	} {
		if err := s.send(cmd); err != nil {
			return err
		}
	}
	return nil
}

// SetTimebase sets the main horizontal scale in seconds per division.
func (s *Scope) SetTimebase(secPerDiv float64) error {
	return s.send(fmt.Sprintf("HORIZONTAL:MAIN:SCALE %.3E", secPerDiv))
}

// SetFrequencyHint records the generator frequency currently applied, so
// AcquireAveraged can estimate its settle duration.
func (s *Scope) SetFrequencyHint(hz float64) {
	s.freqHint = hz
}

// ConfigureAutoMeasure validates both metrics and programs the four
// automatic measurement slots: slots 1 and 2 carry metricA on CH1 and CH2,
// slots 3 and 4 carry metricB on CH1 and CH2.
func (s *Scope) ConfigureAutoMeasure(metricA, metricB string) error {
	metricA = strings.ToUpper(metricA)
	metricB = strings.ToUpper(metricB)
	for _, m := range []string{metricA, metricB} {
		if !slices.Contains(models.MeasureTypes, m) {
			return &ValidationError{What: "measurement type", Got: m, Valid: models.MeasureTypes}
		}
	}
	bindings := []struct {
		slot   int
		source string
		metric string
	}{
		{1, "CH1", metricA},
		{2, "CH2", metricA},
		{3, "CH1", metricB},
		{4, "CH2", metricB},
	}
	for _, b := range bindings {
		cmds := []string{
			fmt.Sprintf("MEASUREMENT:MEAS%d:STATE ON", b.slot),
			fmt.Sprintf("MEASUREMENT:MEAS%d:SOURCE %s", b.slot, b.source),
			fmt.Sprintf("MEASUREMENT:MEAS%d:TYPE %s", b.slot, b.metric),
		}
		for _, cmd := range cmds {
			if err := s.send(cmd); err != nil {
				return err
			}
		}
	}
	return nil
}

// MeasureImmediate configures the immediate-measurement slot for the given
// source and type and returns the value.
func (s *Scope) MeasureImmediate(source, metric string) (float64, error) {
	if err := s.send("MEASUREMENT:IMMED:SOURCE " + source); err != nil {
		return 0, err
	}
	if err := s.send("MEASUREMENT:IMMED:TYPE " + metric); err != nil {
		return 0, err
	}
	return queryFloat(s.T, "MEASUREMENT:IMMED:VALUE?")
}

// MeasureVpp returns the peak-to-peak voltage of the given channel.
func (s *Scope) MeasureVpp(channel int) (float64, error) {
	return s.MeasureImmediate(fmt.Sprintf("CH%d", channel), "PK2PK")
}

// MeasurePhase returns the phase of CH2 relative to CH1 in degrees.
func (s *Scope) MeasurePhase() (float64, error) {
	return s.MeasureImmediate("CH2", "PHASE")
}

// AcquireAveraged switches acquisition to averaging over count waveforms,
// then blocks long enough for that many cycles at the hinted frequency.
// An out-of-range count is diagnosed but still programmed, matching the
// instrument's tolerance for it.
func (s *Scope) AcquireAveraged(count int) error {
	if count < 2 || count > 1024 || bits.OnesCount(uint(count)) != 1 {
		log.Warn().
			Int("count", count).
			Msg("Average count should be a power of two in [2, 1024], proceeding anyway")
	}
	cmds := []string{
		"ACQUIRE:STATE RUN",
		"ACQUIRE:MODE AVERAGE",
		fmt.Sprintf("ACQUIRE:NUMAVG %d", count),
	}
	for _, cmd := range cmds {
		if err := s.send(cmd); err != nil {
			return err
		}
	}
	if s.freqHint > 0 {
		// count cycles at the current frequency is how long the average
		// takes to fill.
		time.Sleep(time.Duration(float64(count) / s.freqHint * float64(time.Second)))
	}
	return nil
}

// ReadErrors drains the instrument error queue. It checks the status byte
// first and only queries the queue when the error-available bit is set.
// Entries are returned in queue order; the no-error sentinel is dropped.
func (s *Scope) ReadErrors() ([]string, error) {
	reply, err := query(s.T, "*STB?")
	if err != nil {
		return nil, err
	}
	stb, err := strconv.Atoi(reply)
	if err != nil {
		return nil, fmt.Errorf("parse status byte %q: %w", reply, err)
	}
	if stb&errEAVBit == 0 {
		return nil, nil
	}
	var entries []string
	for i := 0; i < errQueueLimit; i++ {
		msg, err := query(s.T, "SYSTEM:ERROR?")
		if err != nil {
			return entries, err
		}
		if isNoError(msg) {
			break
		}
		entries = append(entries, msg)
	}
	return entries, nil
}

func isNoError(msg string) bool {
	return strings.HasPrefix(msg, "0,") || strings.Contains(strings.ToUpper(msg), "NO ERROR")
}

// CaptureScreenshot saves a PNG hardcopy to the instrument's internal
// storage and transfers its content back over the block protocol. The
// target path is only validated here; writing the bytes out is the
// caller's concern. The transport is flushed back to line discipline on
// every exit path, so a failed capture never poisons the next read.
func (s *Scope) CaptureScreenshot(target string) ([]byte, error) {
	if !strings.EqualFold(filepath.Ext(target), ".png") {
		return nil, &ValidationError{What: "screenshot target", Got: target, Valid: []string{"*.png"}}
	}
	defer s.T.Flush()

	// Remove any stale capture, then handshake so the delete has landed
	// before the hardcopy starts.
	if err := s.send(fmt.Sprintf("FILESYSTEM:DELETE %q", screenFile)); err != nil {
		return nil, err
	}
	if err := s.opcHandshake(); err != nil {
		return nil, err
	}
	s.logErrorQueue()

	for _, cmd := range []string{
		"HARDCOPY:FORMAT PNG",
		fmt.Sprintf("HARDCOPY:FILENAME %q", screenFile),
		"HARDCOPY START",
	} {
		if err := s.send(cmd); err != nil {
			return nil, err
		}
	}
	if err := s.opcHandshake(); err != nil {
		return nil, err
	}
	s.logErrorQueue()

	if err := s.T.WriteLine(fmt.Sprintf("FILESYSTEM:READFILE %q", screenFile)); err != nil {
		return nil, err
	}
	return readBlock(s.T)
}

// opcHandshake clears status and waits for the operation-complete reply.
func (s *Scope) opcHandshake() error {
	if err := s.send("*CLS"); err != nil {
		return err
	}
	_, err := query(s.T, "*OPC?")
	return err
}

func (s *Scope) logErrorQueue() {
	entries, err := s.ReadErrors()
	if err != nil {
		log.Warn().Err(err).Msg("Could not read instrument error queue")
		return
	}
	for _, e := range entries {
		log.Warn().Str("instrument_error", e).Msg("Instrument reported an error")
	}
}

func (s *Scope) send(cmd string) error {
	if err := s.T.WriteLine(cmd); err != nil {
		return err
	}
	time.Sleep(s.Settle)
	return nil
}

// readBlock parses a definite-length block response: a '#' marker, one
// ASCII digit giving the count of length digits, that many digits giving
// the payload length, then exactly that many raw bytes.
func readBlock(r io.Reader) ([]byte, error) {
	head := make([]byte, 2)
	if err := readFull(r, head); err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrProtocol, err)
	}
	if head[0] != '#' {
		return nil, fmt.Errorf("%w: expected '#' marker, got %q", ErrProtocol, head[0])
	}
	digits := int(head[1] - '0')
	if digits < 1 || digits > 9 {
		return nil, fmt.Errorf("%w: bad length-digit count %q", ErrProtocol, head[1])
	}

	lenBuf := make([]byte, digits)
	if err := readFull(r, lenBuf); err != nil {
		return nil, fmt.Errorf("%w: reading length: %v", ErrProtocol, err)
	}
	length, err := strconv.Atoi(string(lenBuf))
	if err != nil {
		return nil, fmt.Errorf("%w: non-numeric length %q", ErrProtocol, lenBuf)
	}

	payload := make([]byte, 0, length)
	chunk := make([]byte, blockChunkSize)
	for len(payload) < length {
		want := length - len(payload)
		if want > blockChunkSize {
			want = blockChunkSize
		}
		n, err := r.Read(chunk[:want])
		payload = append(payload, chunk[:n]...)
		if len(payload) == length {
			// A reader may deliver the final bytes together with EOF.
			break
		}
		if err != nil || n == 0 {
			return nil, fmt.Errorf("%w: short payload, got %d of %d bytes", ErrProtocol, len(payload), length)
		}
	}
	return payload, nil
}

// readFull reads exactly len(p) bytes. The serial transport reports a
// read timeout as a zero-length read with a nil error, which io.ReadFull
// would retry forever; here a dried-up line is an error like any other.
func readFull(r io.Reader, p []byte) error {
	read := 0
	for read < len(p) {
		n, err := r.Read(p[read:])
		read += n
		if read == len(p) {
			return nil
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("timed out after %d of %d bytes", read, len(p))
		}
	}
	return nil
}
