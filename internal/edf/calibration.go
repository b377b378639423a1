package edf

import (
	"regexp"
	"strconv"

	"github.com/oculab/edfparse/internal/errors"
	"github.com/oculab/edfparse/internal/table"
)

// Calibration validation reports arrive as ordinary messages, e.g.
//
//	!CAL VALIDATION HV9 R RIGHT GOOD ERROR 0.27 avg. 0.83 max OFFSET 0.21 deg.
//
// The model token (HV9), eye, quality and the avg/max error are extracted;
// everything after "max" is ignored.
var calValidationRe = regexp.MustCompile(
	`^!CAL VALIDATION\s+(\S+)\s+\S+\s+(LEFT|RIGHT)\s+(\S+)\s+ERROR\s+([0-9.]+)\s+avg\.\s+([0-9.]+)\s+max`)

// ExtractCalibration scans an assembled messages table for calibration
// validation reports and returns one row per report, with columns time,
// eye, model, quality, avg_error and max_error. Messages that are not
// validation reports are ignored; a recording with no calibration data
// yields an empty table, not an error.
func ExtractCalibration(messages *table.Table) (*table.Table, error) {
	textCol, ok := messages.Column("message")
	if !ok {
		return nil, errors.NewInternalError("messages table has no message column", nil)
	}
	timeCol, ok := messages.Column("time")
	if !ok {
		return nil, errors.NewInternalError("messages table has no time column", nil)
	}

	var (
		times     []float64
		eyes      []string
		models    []string
		qualities []string
		avgErrs   []float64
		maxErrs   []float64
	)
	for i, text := range textCol.Text {
		m := calValidationRe.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		avg, err := strconv.ParseFloat(m[4], 64)
		if err != nil {
			continue
		}
		max, err := strconv.ParseFloat(m[5], 64)
		if err != nil {
			continue
		}
		times = append(times, timeCol.Nums[i])
		models = append(models, m[1])
		eyes = append(eyes, m[2])
		qualities = append(qualities, m[3])
		avgErrs = append(avgErrs, avg)
		maxErrs = append(maxErrs, max)
	}

	if times == nil {
		times, avgErrs, maxErrs = []float64{}, []float64{}, []float64{}
		eyes, models, qualities = []string{}, []string{}, []string{}
	}

	out := table.New()
	if err := out.AddNumeric("time", times); err != nil {
		return nil, errors.NewInternalError("assembling calibration table", err)
	}
	if err := out.AddText("eye", eyes); err != nil {
		return nil, errors.NewInternalError("assembling calibration table", err)
	}
	if err := out.AddText("model", models); err != nil {
		return nil, errors.NewInternalError("assembling calibration table", err)
	}
	if err := out.AddText("quality", qualities); err != nil {
		return nil, errors.NewInternalError("assembling calibration table", err)
	}
	if err := out.AddNumeric("avg_error", avgErrs); err != nil {
		return nil, errors.NewInternalError("assembling calibration table", err)
	}
	if err := out.AddNumeric("max_error", maxErrs); err != nil {
		return nil, errors.NewInternalError("assembling calibration table", err)
	}
	return out, nil
}
