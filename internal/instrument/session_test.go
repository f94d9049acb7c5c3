package instrument

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarras/bodesweep/internal/config"
	"github.com/mkarras/bodesweep/internal/transport"
	"github.com/mkarras/bodesweep/pkg/models"
)

func countWrites(writes []string, cmd string) int {
	n := 0
	for _, w := range writes {
		if w == cmd {
			n++
		}
	}
	return n
}

func stubTransports(t *testing.T, fnGen, scope transport.Transport, fnGenErr, scopeErr error) {
	t.Helper()
	origSerial, origGPIB := openSerial, openGPIB
	openSerial = func(string, int, time.Duration) (transport.Transport, error) {
		return fnGen, fnGenErr
	}
	openGPIB = func(string, int, time.Duration) (transport.Transport, error) {
		return scope, scopeErr
	}
	t.Cleanup(func() { openSerial, openGPIB = origSerial, origGPIB })
}

func TestOpenConnectsAndResetsBothRoles(t *testing.T) {
	fnGen := &transport.Mock{}
	scope := &transport.Mock{}
	stubTransports(t, fnGen, scope, nil, nil)

	sess := Open([]models.Device{
		{Port: "/dev/ttyUSB0", Role: models.RoleFnGenModern, IDN: "RIGOL TECHNOLOGIES,DG1022"},
		{Port: "/dev/ttyUSB1", Role: models.RoleScope, IDN: "TEKTRONIX,TDS 2022B"},
	}, config.SerialConfig{})

	assert.True(t, sess.Ready(models.RoleFnGenModern))
	assert.True(t, sess.Ready(models.RoleScope))
	assert.Equal(t, models.RoleFnGenModern, sess.Dialect())
	assert.Contains(t, fnGen.Writes, "*IDN?")
	assert.Equal(t, 1, countWrites(fnGen.Writes, "*RST"))
	assert.Equal(t, 1, countWrites(scope.Writes, "*RST"))
}

func TestOpenDegradesWhenRoleUnavailable(t *testing.T) {
	scope := &transport.Mock{}
	stubTransports(t, nil, scope, errors.New("port busy"), nil)

	sess := Open([]models.Device{
		{Port: "/dev/ttyUSB0", Role: models.RoleFnGenLegacy},
		{Port: "/dev/ttyUSB1", Role: models.RoleScope},
	}, config.SerialConfig{})

	assert.False(t, sess.Ready(models.RoleFnGenLegacy))
	assert.True(t, sess.Ready(models.RoleScope))
	assert.Nil(t, sess.FnGen())
	require.NotNil(t, sess.Scope())
}

func TestCloseIsIdempotent(t *testing.T) {
	fnGen := &transport.Mock{}
	scope := &transport.Mock{}
	sess := &Session{fnGen: fnGen, scope: scope, dialect: models.RoleFnGenModern}

	sess.Close()
	sess.Close()

	assert.Equal(t, 1, countWrites(fnGen.Writes, "*RST"), "second close must not reset again")
	assert.Equal(t, 1, countWrites(scope.Writes, "*RST"))
	assert.True(t, fnGen.Closed)
	assert.True(t, scope.Closed)
	assert.False(t, sess.Ready(models.RoleScope))
}

func TestGPIBAddrFromPortSuffix(t *testing.T) {
	tests := []struct {
		port string
		want int
	}{
		{"/dev/ttyUSB3", 3},
		{"/dev/ttyACM12", 12},
		{"COM7", 7},
		{"/dev/cu.usbserial", defaultGPIBAddr},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, gpibAddr(tt.port), "port %q", tt.port)
	}
}
