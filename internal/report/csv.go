// Package report renders sweep results to disk. The sweep itself only
// produces an ordered record sequence; everything about formatting and
// persistence lives here.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mkarras/bodesweep/pkg/models"
)

var csvHeader = []string{"frequency_hz", "ch1_vpp", "ch2_vpp", "ratio", "phase_deg"}

// WriteCSV writes the records to a timestamped CSV in dir and returns the
// written path. Missing measurements render as NaN.
func WriteCSV(dir string, runID uuid.UUID, records []models.MeasurementRecord) (string, error) {
	name := fmt.Sprintf("sweep_%s_%s.csv",
		time.Now().Format("20060102-150405"), shortID(runID))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return "", err
	}
	for _, rec := range records {
		row := []string{
			formatFloat(rec.FrequencyHz),
			formatFloat(rec.Ch1Vpp),
			formatFloat(rec.Ch2Vpp),
			formatFloat(rec.Ratio),
			formatFloat(rec.PhaseDeg),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return path, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
