package regression

import (
	"math"

	"github.com/cockroachdb/errors"
)

// ErrConfig marks invalid detector configuration.
var ErrConfig = errors.New("invalid detector configuration")

// SpreadMethod selects how the baseline spread S is computed
type SpreadMethod string

const (
	// SpreadMeanRange averages the recorded ranges of the baseline points
	SpreadMeanRange SpreadMethod = "mean-range"
	// SpreadStdDev is the sample standard deviation of the baseline values
	SpreadStdDev SpreadMethod = "stddev"
)

// Config of a Detector. There are no defaults; every field must be set.
type Config struct {
	// Number of most recent historical points forming the baseline
	BaselineWindow int `yaml:"baselineWindow" json:"baselineWindow"`
	// Relative change that counts as significant, e.g. 0.2 for 20%
	ThresholdRatio float64 `yaml:"thresholdRatio" json:"thresholdRatio"`
	// How the baseline spread is computed
	Spread SpreadMethod `yaml:"spreadMethod" json:"spreadMethod"`
}

func configError(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrConfig)
}

// Validate rejects configurations the detector cannot work with
func (c Config) Validate() error {
	if c.BaselineWindow < 2 {
		return configError("baselineWindow must be at least 2, got %d", c.BaselineWindow)
	}
	if !(c.ThresholdRatio > 0) || math.IsInf(c.ThresholdRatio, 0) {
		return configError("thresholdRatio must be a positive number, got %v", c.ThresholdRatio)
	}
	switch c.Spread {
	case SpreadMeanRange, SpreadStdDev:
	default:
		return configError("spreadMethod must be %q or %q, got %q", SpreadMeanRange, SpreadStdDev, c.Spread)
	}
	return nil
}
