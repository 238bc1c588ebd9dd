package harness

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/perfgo/benchtrack/model"
)

// Format: test <name> ... bench:   6,884,535 ns/iter (+/- 33,220)
var cargoBenchLine = regexp.MustCompile(`^test\s+(\S+)\s+\.\.\.\s+bench:\s+([\d,.]+)\s+(\S+)\s+\(\+/-\s+([\d,.]+)\)`)

func (p *Parser) parseCargo(reader io.Reader) (model.RawRun, error) {
	run := model.RawRun{Harness: string(FormatCargo)}

	scanner := bufio.NewScanner(reader)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "test ") || !strings.Contains(line, "bench:") {
			continue
		}

		match := cargoBenchLine.FindStringSubmatch(line)
		if match == nil {
			p.logger.Warn().Int("line", lineNo).Str("text", line).Msg("Skipping unrecognized bench line")
			continue
		}

		value, err := parseNumber(match[2])
		if err != nil {
			return model.RawRun{}, errors.Wrapf(err, "line %d", lineNo)
		}
		rng, err := model.ParseRange(match[4])
		if err != nil {
			return model.RawRun{}, errors.Wrapf(err, "line %d", lineNo)
		}

		run.Measurements = append(run.Measurements, model.Measurement{
			Name:  match[1],
			Value: value,
			Range: rng,
			Unit:  match[3],
		})
	}
	if err := scanner.Err(); err != nil {
		return model.RawRun{}, errors.Wrap(err, "failed to read cargo bench output")
	}
	return run, nil
}

func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid number %q", s)
	}
	return v, nil
}
