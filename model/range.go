package model

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Range is the uncertainty of a measurement. It is written as "± <value>" so
// existing dashboard renderers can show it verbatim.
type Range float64

const rangePrefix = "± "

// String formats the range with the shortest representation that parses back
// to the same float64.
func (r Range) String() string {
	return rangePrefix + strconv.FormatFloat(float64(r), 'g', -1, 64)
}

func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Range) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] != '"' {
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return errors.Wrap(err, "invalid range")
		}
		*r = Range(f)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(err, "invalid range")
	}
	v, err := ParseRange(s)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ParseRange accepts "± 12", "+/- 12", "12" and thousands separators.
func ParseRange(s string) (Range, error) {
	t := strings.TrimSpace(s)
	t = strings.TrimPrefix(t, "±")
	t = strings.TrimPrefix(t, "+/-")
	t = strings.ReplaceAll(strings.TrimSpace(t), ",", "")
	if t == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid range %q", s)
	}
	return Range(f), nil
}
