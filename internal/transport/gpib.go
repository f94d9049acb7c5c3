package transport

import (
	"fmt"
	"strings"
	"time"

	"github.com/gotmc/prologix"
	"go.bug.st/serial"
)

// gpibBaud is the virtual COM port rate of the Prologix controller; the
// GPIB side negotiates its own speed.
const gpibBaud = 115200

type gpibTransport struct {
	port serial.Port
	ctrl *prologix.Controller
}

// OpenGPIB opens a Prologix GPIB controller on the named serial port and
// addresses the instrument at addr.
func OpenGPIB(name string, addr int, timeout time.Duration) (Transport, error) {
	mode := &serial.Mode{
		BaudRate: gpibBaud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
	}
	ctrl, err := prologix.NewController(port, addr, false)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("gpib controller on %s: %w", name, err)
	}
	return &gpibTransport{port: port, ctrl: ctrl}, nil
}

func (t *gpibTransport) WriteLine(s string) error {
	return t.ctrl.Command("%s", s)
}

func (t *gpibTransport) ReadLine() (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := t.ctrl.Read(buf)
		if err != nil {
			return "", err
		}
		if n == 0 {
			if sb.Len() > 0 {
				return strings.TrimRight(sb.String(), "\r\n"), nil
			}
			return "", ErrTimeout
		}
		if buf[0] == '\n' {
			return strings.TrimRight(sb.String(), "\r"), nil
		}
		sb.WriteByte(buf[0])
	}
}

func (t *gpibTransport) Read(p []byte) (int, error) {
	return t.ctrl.Read(p)
}

func (t *gpibTransport) Flush() error {
	return t.port.ResetInputBuffer()
}

// Close returns the instrument to front-panel control before releasing the
// port. The FrontPanel failure is not propagated: the port still has to be
// closed so the next run can open it.
func (t *gpibTransport) Close() error {
	_ = t.ctrl.FrontPanel(true)
	return t.port.Close()
}
