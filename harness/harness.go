package harness

// This file contains the entry point for turning benchmark harness output
// into runs the history store can ingest.

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/perfgo/benchtrack/model"
	"github.com/rs/zerolog"
)

// Format names a harness output format
type Format string

const (
	// FormatCargo is the libtest bench output of cargo bench
	FormatCargo Format = "cargo"
	// FormatGo is the output of go test -bench
	FormatGo Format = "go"
	// FormatJSON is a structured run record
	FormatJSON Format = "json"
)

// Formats lists the supported formats
var Formats = []Format{FormatCargo, FormatGo, FormatJSON}

// Run is a parsed harness output. Commit and Tool are only set by formats
// that carry them.
type Run struct {
	Raw    model.RawRun
	Commit *model.Commit
	Tool   string
}

// Parser parses one harness output format
type Parser struct {
	format Format
	logger zerolog.Logger
}

// NewParser creates a parser for format
func NewParser(format Format, logger zerolog.Logger) (*Parser, error) {
	switch format {
	case FormatCargo, FormatGo, FormatJSON:
	default:
		return nil, errors.Newf("unknown harness format %q", format)
	}
	return &Parser{format: format, logger: logger}, nil
}

// Parse reads the whole harness output from reader
func (p *Parser) Parse(reader io.Reader) (*Run, error) {
	switch p.format {
	case FormatCargo:
		raw, err := p.parseCargo(reader)
		if err != nil {
			return nil, err
		}
		return &Run{Raw: raw}, nil
	case FormatGo:
		raw, err := p.parseGoBench(reader)
		if err != nil {
			return nil, err
		}
		return &Run{Raw: raw}, nil
	default:
		return parseRecord(reader)
	}
}
