package discovery

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarras/bodesweep/pkg/models"
)

func newTestClassifier(ports []string, idns map[string]string) *Classifier {
	c := NewClassifier(9600, 100*time.Millisecond, 0)
	c.listPorts = func() ([]string, error) { return ports, nil }
	c.probe = func(name string) (string, error) {
		idn, ok := idns[name]
		if !ok {
			return "", errors.New("no reply")
		}
		return idn, nil
	}
	return c
}

func TestNewClassifierUsesConfiguredSettle(t *testing.T) {
	c := NewClassifier(9600, 100*time.Millisecond, 50*time.Millisecond)
	assert.Equal(t, 50*time.Millisecond, c.Settle)
	assert.Equal(t, 100*time.Millisecond, c.Timeout)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		idn  string
		want models.Role
	}{
		{"TEKTRONIX,TDS 2022B,C100101,CF:91.1CT FV:v22.01", models.RoleScope},
		{"RIGOL TECHNOLOGIES,DG1022,DG1D141202380,00.03.00", models.RoleFnGenModern},
		{"FEELTECH,FY3224S,SN0001", models.RoleFnGenLegacy},
		{"rigol technologies,dg1022", models.RoleFnGenModern},
		{"KEYSIGHT,34461A", models.RoleUnknown},
		{"", models.RoleUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.idn), "idn %q", tt.idn)
	}
}

func TestDiscoverFiltersIrrelevantPorts(t *testing.T) {
	c := newTestClassifier(
		[]string{"/dev/cu.Bluetooth-Incoming-Port", "/dev/cu.debug-console", "/dev/ttyUSB0"},
		map[string]string{"/dev/ttyUSB0": "TEKTRONIX,TDS 2022B"},
	)

	devices, err := c.Discover()
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "/dev/ttyUSB0", devices[0].Port)
	assert.Equal(t, models.RoleScope, devices[0].Role)
}

func TestDiscoverNoUsablePorts(t *testing.T) {
	c := newTestClassifier(
		[]string{"/dev/cu.Bluetooth-Incoming-Port", "/dev/tty.irda"},
		nil,
	)

	_, err := c.Discover()
	assert.ErrorIs(t, err, ErrNoUsablePorts)
}

func TestDiscoverNoPortsAtAll(t *testing.T) {
	c := newTestClassifier(nil, nil)

	_, err := c.Discover()
	assert.ErrorIs(t, err, ErrNoUsablePorts)
}

func TestDiscoverUnansweredPortIsUnknown(t *testing.T) {
	c := newTestClassifier(
		[]string{"/dev/ttyUSB0", "/dev/ttyUSB1"},
		map[string]string{"/dev/ttyUSB1": "FEELTECH,FY3224S"},
	)

	devices, err := c.Discover()
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, models.RoleUnknown, devices[0].Role)
	assert.Equal(t, models.RoleFnGenLegacy, devices[1].Role)
}

func TestDiscoverFirstMatchWins(t *testing.T) {
	c := newTestClassifier(
		[]string{"/dev/ttyUSB0", "/dev/ttyUSB1"},
		map[string]string{
			"/dev/ttyUSB0": "RIGOL TECHNOLOGIES,DG1022",
			"/dev/ttyUSB1": "RIGOL TECHNOLOGIES,DG1022",
		},
	)

	devices, err := c.Discover()
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, models.RoleFnGenModern, devices[0].Role)
	assert.Equal(t, models.RoleUnknown, devices[1].Role, "duplicate role must be demoted")
}
