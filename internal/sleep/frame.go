package sleep

import (
	"fmt"
	"math"
	"sort"
)

// MinFeatures is the smallest usable feature set for the outlier model.
const MinFeatures = 4

// InsufficientDataError signals that too few usable rows or feature columns
// remain for anomaly detection to proceed.
type InsufficientDataError struct {
	Reason string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %s", e.Reason)
}

// Frame is the per-device feature table: day rows sorted ascending by date,
// projected onto a fixed ordered set of feature columns.
type Frame struct {
	Columns []string
	Days    []Day
}

// BuildFrame assembles a Frame from raw day records. Rows missing any
// mandatory feature are dropped silently. Columns that are null on every
// surviving row are excluded. Fails when no rows survive or fewer than
// MinFeatures columns remain.
func BuildFrame(days []Day) (*Frame, error) {
	rows := make([]Day, 0, len(days))
	for _, d := range days {
		ok := true
		for _, name := range MandatoryFeatures {
			if d.Feature(name) == nil {
				ok = false
				break
			}
		}
		if ok {
			rows = append(rows, d)
		}
	}
	if len(rows) == 0 {
		return nil, &InsufficientDataError{Reason: "no day rows with all mandatory features"}
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })

	cols := make([]string, 0, len(Features))
	for _, name := range Features {
		present := false
		for i := range rows {
			if rows[i].Feature(name) != nil {
				present = true
				break
			}
		}
		if present {
			cols = append(cols, name)
		}
	}
	if len(cols) < MinFeatures {
		return nil, &InsufficientDataError{
			Reason: fmt.Sprintf("only %d usable feature columns (need %d): %v", len(cols), MinFeatures, cols),
		}
	}
	return &Frame{Columns: cols, Days: rows}, nil
}

// Matrix projects the frame onto a dense row-major matrix. Absent cells
// (possible only for non-mandatory columns) become NaN; the preprocessor is
// responsible for filling them.
func (f *Frame) Matrix() [][]float64 {
	m := make([][]float64, len(f.Days))
	for i := range f.Days {
		row := make([]float64, len(f.Columns))
		for j, name := range f.Columns {
			if v := f.Days[i].Feature(name); v != nil {
				row[j] = *v
			} else {
				row[j] = math.NaN()
			}
		}
		m[i] = row
	}
	return m
}

// Latest returns the last row in date order.
func (f *Frame) Latest() *Day {
	if len(f.Days) == 0 {
		return nil
	}
	return &f.Days[len(f.Days)-1]
}

// IndexOfDate returns the row index holding the given calendar date, or -1.
func (f *Frame) IndexOfDate(date string) int {
	for i := range f.Days {
		if f.Days[i].DateString() == date {
			return i
		}
	}
	return -1
}

// Outliers returns the rows currently flagged as outliers, in date order.
func (f *Frame) Outliers() []*Day {
	var out []*Day
	for i := range f.Days {
		if f.Days[i].IsOutlier {
			out = append(out, &f.Days[i])
		}
	}
	return out
}
