package instrument

import (
	"errors"
	"fmt"
	"strings"
)

// ErrProtocol reports a malformed binary block response: wrong marker,
// bad length digits, or a payload shorter than declared.
var ErrProtocol = errors.New("instrument: malformed block response")

// ValidationError rejects an input before anything is written to the wire.
type ValidationError struct {
	What  string
	Got   string
	Valid []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q, valid options: %s",
		e.What, e.Got, strings.Join(e.Valid, ", "))
}
