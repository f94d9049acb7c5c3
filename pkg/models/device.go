package models

// Role identifies which instrument a classified port hosts
type Role string

const (
	// RoleFnGenLegacy is a function generator speaking the terse legacy dialect
	RoleFnGenLegacy Role = "fngen-legacy"
	// RoleFnGenModern is a function generator speaking SCPI
	RoleFnGenModern Role = "fngen-modern"
	// RoleScope is the oscilloscope, reached over the instrument bus
	RoleScope Role = "scope"
	// RoleUnknown is a port that answered with no recognized vendor token
	RoleUnknown Role = "unknown"
)

// IsFnGen reports whether the role is either function generator dialect
func (r Role) IsFnGen() bool {
	return r == RoleFnGenLegacy || r == RoleFnGenModern
}

// Device represents a classified serial port. Immutable once created.
type Device struct {
	Port string `json:"port" doc:"Serial port name"`
	Role Role   `json:"role" doc:"Classified instrument role"`
	IDN  string `json:"idn" doc:"Raw identification string returned by the probe"`
}
