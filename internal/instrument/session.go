package instrument

import (
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"

	"github.com/mkarras/bodesweep/internal/config"
	"github.com/mkarras/bodesweep/internal/transport"
	"github.com/mkarras/bodesweep/pkg/models"
)

// defaultGPIBAddr is used when a scope port name carries no numeric
// suffix to derive the bus address from.
const defaultGPIBAddr = 1

// Session owns the open transports, at most one per instrument role. It is
// created once at startup and must be closed on every exit path; Close is
// idempotent so callers can hold it under defer.
type Session struct {
	fnGen   transport.Transport
	scope   transport.Transport
	dialect models.Role
	closed  bool
}

// openTransports is swapped out by tests.
var (
	openSerial = transport.OpenSerial
	openGPIB   = transport.OpenGPIB
)

// Open connects to the classified devices. Open failures are non-fatal:
// the failing role stays disconnected and the session runs degraded, with
// commands to that role skipped. Each connected role is identified and
// reset before Open returns.
func Open(devices []models.Device, cfg config.SerialConfig) *Session {
	s := &Session{dialect: models.RoleUnknown}

	for _, dev := range devices {
		switch {
		case dev.Role.IsFnGen() && s.fnGen == nil:
			t, err := openSerial(dev.Port, cfg.FnGenBaud, cfg.ReadTimeout)
			if err != nil {
				log.Warn().Err(err).Str("port", dev.Port).
					Msg("Function generator unavailable, continuing without it")
				continue
			}
			s.fnGen = t
			s.dialect = dev.Role
		case dev.Role == models.RoleScope && s.scope == nil:
			addr := gpibAddr(dev.Port)
			t, err := openGPIB(dev.Port, addr, cfg.ReadTimeout)
			if err != nil {
				log.Warn().Err(err).Str("port", dev.Port).
					Msg("Oscilloscope unavailable, continuing without it")
				continue
			}
			s.scope = t
		}
	}

	s.identify()
	s.Reset()
	return s
}

// FnGen returns the function generator transport, nil when disconnected.
func (s *Session) FnGen() transport.Transport { return s.fnGen }

// Scope returns the oscilloscope transport, nil when disconnected.
func (s *Session) Scope() transport.Transport { return s.scope }

// Dialect reports which function generator dialect was classified.
func (s *Session) Dialect() models.Role { return s.dialect }

// Ready reports whether the transport for the given role is connected.
func (s *Session) Ready(role models.Role) bool {
	if s.closed {
		return false
	}
	switch {
	case role.IsFnGen():
		return s.fnGen != nil
	case role == models.RoleScope:
		return s.scope != nil
	default:
		return false
	}
}

// Reset issues a hardware reset to every connected role.
func (s *Session) Reset() {
	for name, t := range s.handles() {
		if err := t.WriteLine("*RST"); err != nil {
			log.Warn().Err(err).Str("role", name).Msg("Reset command failed")
		}
	}
}

// Close resets and releases every connected transport. Safe to call more
// than once; only the first call touches the hardware.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.Reset()
	for name, t := range s.handles() {
		if err := t.Close(); err != nil {
			log.Warn().Err(err).Str("role", name).Msg("Error closing transport")
		}
	}
	s.fnGen = nil
	s.scope = nil
}

// identify logs each connected instrument's identification string as a
// connection confirmation.
func (s *Session) identify() {
	for name, t := range s.handles() {
		idn, err := query(t, "*IDN?")
		if err != nil {
			log.Warn().Err(err).Str("role", name).Msg("Identification query failed")
			continue
		}
		log.Info().Str("role", name).Str("idn", idn).Msg("Instrument connected")
	}
}

func (s *Session) handles() map[string]transport.Transport {
	h := make(map[string]transport.Transport, 2)
	if s.fnGen != nil {
		h["fngen"] = s.fnGen
	}
	if s.scope != nil {
		h["scope"] = s.scope
	}
	return h
}

// gpibAddr derives the instrument bus address from the trailing digits of
// the port name, e.g. /dev/ttyUSB3 addresses instrument 3.
func gpibAddr(port string) int {
	trimmed := strings.TrimRightFunc(port, func(r rune) bool {
		return !unicode.IsDigit(r)
	})
	i := len(trimmed)
	for i > 0 && unicode.IsDigit(rune(trimmed[i-1])) {
		i--
	}
	suffix := trimmed[i:]
	if suffix == "" {
		return defaultGPIBAddr
	}
	addr := 0
	for _, r := range suffix {
		addr = addr*10 + int(r-'0')
	}
	return addr
}
