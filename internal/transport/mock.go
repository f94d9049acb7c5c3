package transport

import (
	"io"
	"sync"
)

// Mock is a scripted in-memory Transport used by driver tests in place of
// real hardware. A Handler inspects each written command and may queue a
// reply; Payload is served through Read for block-transfer tests.
type Mock struct {
	mu sync.Mutex

	// Handler is consulted on every WriteLine. Returning ok queues the
	// reply for the next ReadLine.
	Handler func(cmd string) (reply string, ok bool)

	// Writes records every command line written, in order.
	Writes []string

	// Payload is consumed by Read.
	Payload []byte

	// FailWrites makes every WriteLine return this error when set.
	FailWrites error

	queue  []string
	Closed bool
}

func (m *Mock) WriteLine(s string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.Writes = append(m.Writes, s)
	if m.Handler != nil {
		if reply, ok := m.Handler(s); ok {
			m.queue = append(m.queue, reply)
		}
	}
	return nil
}

func (m *Mock) ReadLine() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return "", ErrTimeout
	}
	reply := m.queue[0]
	m.queue = m.queue[1:]
	return reply, nil
}

func (m *Mock) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Payload) == 0 {
		return 0, io.EOF
	}
	n := copy(p, m.Payload)
	m.Payload = m.Payload[n:]
	return n, nil
}

func (m *Mock) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = nil
	m.Payload = nil
	return nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}
