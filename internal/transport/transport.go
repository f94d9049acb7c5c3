// Package transport provides the line-delimited, timeout-bounded byte
// channels the instrument drivers talk through: a plain serial adapter for
// the function generator and a Prologix-style GPIB adapter for the
// oscilloscope.
package transport

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
)

// ErrTimeout is returned by ReadLine when the instrument sent nothing
// before the configured read timeout elapsed.
var ErrTimeout = errors.New("transport: read timeout")

// Transport is a byte-oriented command channel to one instrument.
// WriteLine/ReadLine carry newline-terminated ASCII commands and replies;
// Read is the raw path used during binary block transfers. Flush discards
// any pending input so a later ReadLine starts clean.
type Transport interface {
	WriteLine(s string) error
	ReadLine() (string, error)
	Read(p []byte) (int, error)
	Flush() error
	Close() error
}

type serialTransport struct {
	port serial.Port
}

// OpenSerial opens a serial port as a Transport. The read timeout bounds
// every ReadLine and Read call.
func OpenSerial(name string, baud int, timeout time.Duration) (Transport, error) {
	mode := &serial.Mode{
		BaudRate: baud,
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
	return &serialTransport{port: port}, nil
}

func (t *serialTransport) WriteLine(s string) error {
	_, err := t.port.Write([]byte(s + "\n"))
	return err
}

// ReadLine accumulates bytes until a newline or the port's read timeout.
// go.bug.st/serial signals a timeout as a zero-length read, so a manual
// loop is used instead of bufio (which treats repeated empty reads as
// io.ErrNoProgress). A timeout with partial data returns the partial line:
// some instruments omit the terminator on their last reply.
func (t *serialTransport) ReadLine() (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := t.port.Read(buf)
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

func (t *serialTransport) Read(p []byte) (int, error) {
	return t.port.Read(p)
}

func (t *serialTransport) Flush() error {
	return t.port.ResetInputBuffer()
}

func (t *serialTransport) Close() error {
	return t.port.Close()
}
