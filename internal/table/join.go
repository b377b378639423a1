package table

import (
	"fmt"
	"math"
)

// TrialColumn is the numeric column both sides of a trial join share.
const TrialColumn = "trial"

// Join left-joins trial metadata onto an events table using the trial
// index. Every events row appears exactly once in the result; metadata
// rows for trials that never occur in events are dropped. Where a trial
// has no metadata row the joined columns hold NaN (numeric) or the empty
// string (text). If a trial has several metadata rows the first one wins,
// so events are never duplicated. Metadata column names that collide with
// an events column are suffixed with "_meta".
func Join(events, meta *Table) (*Table, error) {
	trialCol, ok := events.Column(TrialColumn)
	if !ok {
		return nil, fmt.Errorf("table: events table has no %q column", TrialColumn)
	}
	if trialCol.Kind != KindNumeric {
		return nil, fmt.Errorf("table: events %q column is not numeric", TrialColumn)
	}
	metaTrial, ok := meta.Column(TrialColumn)
	if !ok {
		return nil, fmt.Errorf("table: metadata table has no %q column", TrialColumn)
	}
	if metaTrial.Kind != KindNumeric {
		return nil, fmt.Errorf("table: metadata %q column is not numeric", TrialColumn)
	}

	// First metadata row per trial index.
	firstRow := make(map[float64]int, meta.NumRows())
	for i, trial := range metaTrial.Nums {
		if _, seen := firstRow[trial]; !seen {
			firstRow[trial] = i
		}
	}

	out := New()
	for _, name := range events.Names() {
		col, _ := events.Column(name)
		if err := copyColumn(out, name, col); err != nil {
			return nil, err
		}
	}

	n := events.NumRows()
	for _, name := range meta.Names() {
		if name == TrialColumn {
			continue
		}
		src, _ := meta.Column(name)
		outName := name
		if _, taken := events.Column(name); taken {
			outName = name + "_meta"
		}
		switch src.Kind {
		case KindText:
			joined := make([]string, n)
			for i, trial := range trialCol.Nums {
				if j, found := firstRow[trial]; found {
					joined[i] = src.Text[j]
				}
			}
			if err := out.AddText(outName, joined); err != nil {
				return nil, err
			}
		default:
			joined := make([]float64, n)
			for i, trial := range trialCol.Nums {
				if j, found := firstRow[trial]; found {
					joined[i] = src.Nums[j]
				} else {
					joined[i] = math.NaN()
				}
			}
			if err := out.AddNumeric(outName, joined); err != nil {
				return nil, err
			}
		}
	}

	return out, nil
}

func copyColumn(dst *Table, name string, col *Column) error {
	switch col.Kind {
	case KindText:
		vals := make([]string, len(col.Text))
		copy(vals, col.Text)
		return dst.AddText(name, vals)
	default:
		vals := make([]float64, len(col.Nums))
		copy(vals, col.Nums)
		return dst.AddNumeric(name, vals)
	}
}
