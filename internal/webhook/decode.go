// Package webhook turns merge request webhook bodies into review events.
// Decoding is best-effort: any field that is missing or has an unexpected
// shape falls back to its zero value instead of failing the whole payload.
package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/anushkapunekar/agentops/internal/review"
)

// ErrInvalidJSON is returned when the body is not a JSON object.
var ErrInvalidJSON = errors.New("webhook: invalid JSON payload")

// MinEmbeddedDiffLength is the shortest embedded change text accepted as a
// diff; anything shorter falls through to the next strategy.
const MinEmbeddedDiffLength = 10

const (
	SourceChanges    = "changes.diff"
	SourceLastCommit = "object_attributes.last_commit.message"
	SourceNone       = "none"
)

// Decoded is the result of reading one webhook body.
type Decoded struct {
	Event review.Event

	// Kind is the payload's object_kind, e.g. "merge_request".
	Kind string

	// DiffSource names the strategy that produced Event.Diff.
	DiffSource string
}

// diffStrategy extracts a diff candidate from the payload root.
type diffStrategy struct {
	name    string
	extract func(root map[string]any) string
	accept  func(diff string) bool
}

// diffStrategies are tried in order; the first accepted candidate wins.
var diffStrategies = []diffStrategy{
	{
		name:    SourceChanges,
		extract: embeddedDiff,
		accept:  func(d string) bool { return len(d) >= MinEmbeddedDiffLength },
	},
	{
		name:    SourceLastCommit,
		extract: lastCommitMessage,
		accept:  func(d string) bool { return d != "" },
	},
}

// Decode reads body. Only a body that is not a JSON object is an error;
// a payload without identifiers decodes to an Event that is not Valid.
func Decode(body []byte) (Decoded, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var root map[string]any
	if err := dec.Decode(&root); err != nil || root == nil {
		return Decoded{}, ErrInvalidJSON
	}

	attrs := object(root, "object_attributes")
	out := Decoded{
		Kind: str(root["object_kind"]),
		Event: review.Event{
			ProjectID:    identifier(object(root, "project")["id"]),
			MRIID:        positiveInt(attrs["iid"]),
			SourceBranch: str(attrs["source_branch"]),
			TargetBranch: str(attrs["target_branch"]),
		},
		DiffSource: SourceNone,
	}

	for _, s := range diffStrategies {
		if d := s.extract(root); s.accept(d) {
			out.Event.Diff = d
			out.DiffSource = s.name
			break
		}
	}
	return out, nil
}

// embeddedDiff reads changes.diff as a string, a list of strings or file
// objects, or an object holding one of those under "current" (preferred)
// or "previous".
func embeddedDiff(root map[string]any) string {
	v, ok := object(root, "changes")["diff"]
	if !ok {
		return ""
	}
	if m, isMap := v.(map[string]any); isMap {
		if cur, has := m["current"]; has {
			v = cur
		} else {
			v = m["previous"]
		}
	}
	return diffText(v)
}

func diffText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			switch it := item.(type) {
			case string:
				parts = append(parts, it)
			case map[string]any:
				if d := str(it["diff"]); d != "" {
					parts = append(parts, d)
				}
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

func lastCommitMessage(root map[string]any) string {
	return str(object(object(root, "object_attributes"), "last_commit")["message"])
}

// object returns m[key] when it is a JSON object, else an empty map.
func object(m map[string]any, key string) map[string]any {
	if o, ok := m[key].(map[string]any); ok {
		return o
	}
	return map[string]any{}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// identifier accepts a number or a non-empty string.
func identifier(v any) string {
	switch t := v.(type) {
	case json.Number:
		if n, ok := integral(t); ok && n > 0 {
			return strconv.FormatInt(n, 10)
		}
		return ""
	case string:
		return strings.TrimSpace(t)
	default:
		return ""
	}
}

// positiveInt accepts a number or a numeric string; anything else is 0.
func positiveInt(v any) int64 {
	var n int64
	var ok bool
	switch t := v.(type) {
	case json.Number:
		n, ok = integral(t)
	case string:
		n, ok = integral(json.Number(strings.TrimSpace(t)))
	}
	if !ok || n <= 0 {
		return 0
	}
	return n
}

func integral(num json.Number) (int64, bool) {
	if n, err := num.Int64(); err == nil {
		return n, true
	}
	f, err := num.Float64()
	if err != nil || f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}
