// Package discovery enumerates serial ports and classifies which
// instrument, if any, answers on each of them.
package discovery

import (
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"

	"github.com/mkarras/bodesweep/pkg/models"
)

// ErrNoUsablePorts means no candidate port survived enumeration and
// filtering; discovery cannot proceed without at least one.
var ErrNoUsablePorts = errors.New("discovery: no usable serial ports")

// ignorePatterns match port names that never host an instrument
// (Bluetooth endpoints, debug consoles and the like).
var ignorePatterns = []string{
	"bluetooth",
	"blth",
	"debug",
	"console",
	"wlan",
	"irda",
}

// Classifier probes candidate ports and assigns instrument roles.
type Classifier struct {
	ProbeBaud int
	Timeout   time.Duration
	Settle    time.Duration

	// Injection points for tests; nil means real serial I/O.
	listPorts func() ([]string, error)
	probe     func(name string) (string, error)
}

// NewClassifier builds a Classifier probing at the given baud. The
// timeout bounds each read; the settle delay gives slow instruments time
// to buffer their identification reply before it is read.
func NewClassifier(probeBaud int, timeout, settle time.Duration) *Classifier {
	c := &Classifier{
		ProbeBaud: probeBaud,
		Timeout:   timeout,
		Settle:    settle,
	}
	c.listPorts = serial.GetPortsList
	c.probe = c.probePort
	return c
}

// Discover enumerates all serial ports, drops irrelevant ones, probes the
// survivors with an identification query and classifies each reply by
// vendor signature. The first port matching a role keeps it; a later port
// matching an already-assigned role is demoted to Unknown.
func (c *Classifier) Discover() ([]models.Device, error) {
	names, err := c.listPorts()
	if err != nil {
		return nil, err
	}

	// Open and immediately close everything first to release stale locks
	// left by a crashed run. Failures here are expected and ignored.
	for _, name := range names {
		c.unlock(name)
	}

	var candidates []string
	for _, name := range names {
		if isIgnored(name) {
			log.Debug().Str("port", name).Msg("Skipping irrelevant port")
			continue
		}
		candidates = append(candidates, name)
	}
	if len(candidates) == 0 {
		return nil, ErrNoUsablePorts
	}

	assigned := make(map[models.Role]bool)
	devices := make([]models.Device, 0, len(candidates))
	for _, name := range candidates {
		idn, err := c.probe(name)
		if err != nil {
			log.Warn().Err(err).Str("port", name).Msg("Port did not answer identification query")
			devices = append(devices, models.Device{Port: name, Role: models.RoleUnknown})
			continue
		}
		role := Classify(idn)
		if role != models.RoleUnknown && assigned[role] {
			log.Warn().
				Str("port", name).
				Str("role", string(role)).
				Msg("Role already assigned to an earlier port, ignoring duplicate")
			role = models.RoleUnknown
		}
		assigned[role] = true
		log.Info().Str("port", name).Str("role", string(role)).Str("idn", idn).Msg("Classified port")
		devices = append(devices, models.Device{Port: name, Role: role, IDN: idn})
	}
	return devices, nil
}

// Classify maps an identification string to an instrument role by vendor
// signature substring.
func Classify(idn string) models.Role {
	upper := strings.ToUpper(idn)
	switch {
	case strings.Contains(upper, "TEKTRONIX"):
		return models.RoleScope
	case strings.Contains(upper, "RIGOL"):
		return models.RoleFnGenModern
	case strings.Contains(upper, "FEELTECH"):
		return models.RoleFnGenLegacy
	default:
		return models.RoleUnknown
	}
}

func isIgnored(name string) bool {
	lower := strings.ToLower(name)
	for _, pat := range ignorePatterns {
		if strings.Contains(lower, pat) {
			return true
		}
	}
	return false
}

// unlock opens and closes a port best-effort to clear a stale lock.
func (c *Classifier) unlock(name string) {
	mode := &serial.Mode{BaudRate: c.ProbeBaud}
	port, err := serial.Open(name, mode)
	if err != nil {
		return
	}
	port.Close()
}

// probePort sends *IDN? at the probe baud and returns the reply line.
func (c *Classifier) probePort(name string) (string, error) {
	mode := &serial.Mode{
		BaudRate: c.ProbeBaud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return "", err
	}
	defer port.Close()

	if err := port.SetReadTimeout(c.Timeout); err != nil {
		return "", err
	}
	if _, err := port.Write([]byte("*IDN?\n")); err != nil {
		return "", err
	}
	// The slower instruments need a moment before their reply is buffered.
	time.Sleep(c.Settle)

	buf := make([]byte, 256)
	n, err := port.Read(buf)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(buf[:n])), nil
}
