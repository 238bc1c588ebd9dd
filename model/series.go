package model

// Point is one element of a series: the value a named measurement had in one
// entry of a tool.
type Point struct {
	RecordedAt int64   `json:"date"`
	CommitID   string  `json:"commit"`
	Value      float64 `json:"value"`
	Range      float64 `json:"range"`
	Unit       string  `json:"unit"`
}

// PointOf projects a measurement of entry onto a series point
func PointOf(e *Entry, m Measurement) Point {
	return Point{
		RecordedAt: e.RecordedAt,
		CommitID:   e.Commit.ID,
		Value:      m.Value,
		Range:      float64(m.Range),
		Unit:       m.Unit,
	}
}
