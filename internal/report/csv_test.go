package report

import (
	"encoding/csv"
	"os"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarras/bodesweep/pkg/models"
)

func TestWriteCSV(t *testing.T) {
	records := []models.MeasurementRecord{
		models.NewMeasurementRecord(1, 0.5, 1.0, -45),
		models.MissingRecord(10),
		models.NewMeasurementRecord(100, 1.0, 0.5, 12.5),
	}

	path, err := WriteCSV(t.TempDir(), uuid.New(), records)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4, "header plus one row per record")

	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "2", rows[1][3])
	assert.Equal(t, "NaN", rows[2][1], "missing measurements render as NaN")

	ratio, err := strconv.ParseFloat(rows[3][3], 64)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, ratio, 1e-9)
}
