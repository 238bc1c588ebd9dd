package history

// This file contains the codec of the persisted store document. The format is
// the one github-action-benchmark style dashboards read: an optional
// "window.BENCHMARK_DATA = " prefix followed by a JSON object.

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/perfgo/benchtrack/model"
)

// DocumentVersion is the newest document version this package reads and the
// one it writes. Documents without a version field are version 1.
const DocumentVersion = 1

const jsPrefix = "window.BENCHMARK_DATA = "

var (
	ErrMalformed          = errors.New("malformed store document")
	ErrUnsupportedVersion = errors.New("unsupported store document version")
)

type document struct {
	Version    int                       `json:"version,omitempty"`
	LastUpdate int64                     `json:"lastUpdate"`
	RepoURL    string                    `json:"repoUrl"`
	Entries    map[string][]*model.Entry `json:"entries"`
}

// Encode serializes a snapshot. With js set the document is prefixed so a
// browser can load it as a script.
func Encode(s *Snapshot, js bool) ([]byte, error) {
	doc := document{
		Version:    DocumentVersion,
		LastUpdate: s.lastUpdate,
		RepoURL:    s.repoURL,
		Entries:    make(map[string][]*model.Entry, len(s.tools)),
	}
	for name, l := range s.tools {
		if len(l.entries) > 0 {
			doc.Entries[name] = l.entries
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode store document")
	}

	var buf bytes.Buffer
	if js {
		buf.WriteString(jsPrefix)
	}
	buf.Write(data)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Decode parses a store document. It returns the snapshot and the names of
// tools whose entries had to be reordered by RecordedAt.
func Decode(data []byte) (*Snapshot, []string, error) {
	body := bytes.TrimSpace(data)
	body = bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))
	if i := bytes.IndexByte(body, '{'); i > 0 {
		// Strip an assignment such as "window.BENCHMARK_DATA = ".
		if bytes.IndexByte(body[:i], '=') < 0 {
			return nil, nil, errors.Mark(errors.Newf("unexpected leading content %q", body[:i]), ErrMalformed)
		}
		body = body[i:]
	}
	body = bytes.TrimSuffix(body, []byte(";"))

	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, nil, errors.Mark(errors.Wrap(err, "failed to decode store document"), ErrMalformed)
	}
	if doc.Version > DocumentVersion {
		return nil, nil, errors.Wrapf(ErrUnsupportedVersion, "document version %d, newest supported %d", doc.Version, DocumentVersion)
	}

	s := emptySnapshot(doc.RepoURL)
	s.lastUpdate = doc.LastUpdate

	var reordered []string
	for name, entries := range doc.Entries {
		kept := make([]*model.Entry, 0, len(entries))
		for _, e := range entries {
			if e == nil {
				continue
			}
			e.ToolName = name
			if err := e.ValidateMeasurements(); err != nil {
				return nil, nil, errors.Mark(errors.Wrapf(err, "entry %d of tool %q", len(kept), name), ErrMalformed)
			}
			kept = append(kept, e)
			if e.RecordedAt > s.lastUpdate {
				s.lastUpdate = e.RecordedAt
			}
		}
		if !sort.SliceIsSorted(kept, func(i, j int) bool { return kept[i].RecordedAt < kept[j].RecordedAt }) {
			sort.SliceStable(kept, func(i, j int) bool { return kept[i].RecordedAt < kept[j].RecordedAt })
			reordered = append(reordered, name)
		}
		s.tools[name] = newToolLog(kept)
	}
	sort.Strings(reordered)
	return s, reordered, nil
}
