package webhook

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mergeRequestHook = `{
  "object_kind": "merge_request",
  "project": {"id": 1, "path_with_namespace": "group/app"},
  "object_attributes": {
    "iid": 5,
    "source_branch": "feat",
    "target_branch": "main",
    "last_commit": {"message": "Add logging"}
  },
  "changes": {"diff": "+print('x')"}
}`

func TestDecode_MergeRequestHook(t *testing.T) {
	d, err := Decode([]byte(mergeRequestHook))
	require.NoError(t, err)

	assert.Equal(t, "merge_request", d.Kind)
	assert.Equal(t, "1", d.Event.ProjectID)
	assert.Equal(t, int64(5), d.Event.MRIID)
	assert.Equal(t, "feat", d.Event.SourceBranch)
	assert.Equal(t, "main", d.Event.TargetBranch)
	assert.Equal(t, "+print('x')", d.Event.Diff)
	assert.Equal(t, SourceChanges, d.DiffSource)
	assert.True(t, d.Event.Valid())
}

func TestDecode_InvalidJSON(t *testing.T) {
	for _, body := range []string{"", "{", "not json", "[1,2]", "null", `"str"`} {
		_, err := Decode([]byte(body))
		assert.ErrorIs(t, err, ErrInvalidJSON, body)
	}
}

func TestDecode_MissingFieldsAreZero(t *testing.T) {
	for _, body := range []string{
		`{}`,
		`{"project": null, "object_attributes": null}`,
		`{"project": "oops", "object_attributes": []}`,
		`{"project": {"id": 1}, "object_attributes": {"iid": null}}`,
		`{"project": {"id": 1}, "object_attributes": {"iid": "abc"}}`,
		`{"project": {"id": 1}, "object_attributes": {"iid": 0}}`,
		`{"project": {"id": 0}, "object_attributes": {"iid": 3}}`,
		`{"project": {"id": true}, "object_attributes": {"iid": 3}}`,
	} {
		d, err := Decode([]byte(body))
		require.NoError(t, err, body)
		assert.False(t, d.Event.Valid(), body)
		assert.Equal(t, SourceNone, d.DiffSource, body)
	}
}

func TestDecode_IdentifierShapes(t *testing.T) {
	tests := []struct {
		body    string
		project string
		iid     int64
	}{
		{`{"project":{"id":42},"object_attributes":{"iid":7}}`, "42", 7},
		{`{"project":{"id":"group/app"},"object_attributes":{"iid":"7"}}`, "group/app", 7},
		{`{"project":{"id":" 42 "},"object_attributes":{"iid":" 8 "}}`, "42", 8},
		{`{"project":{"id":9007199254740993},"object_attributes":{"iid":7.0}}`, "9007199254740993", 7},
	}
	for _, tt := range tests {
		d, err := Decode([]byte(tt.body))
		require.NoError(t, err, tt.body)
		assert.Equal(t, tt.project, d.Event.ProjectID, tt.body)
		assert.Equal(t, tt.iid, d.Event.MRIID, tt.body)
	}
}

func TestDecode_DiffStrategies(t *testing.T) {
	long := "@@ -1 +1 @@\n-a\n+b"
	tests := []struct {
		name   string
		body   string
		diff   string
		source string
	}{
		{
			name:   "string",
			body:   `{"changes":{"diff":"` + strings.ReplaceAll(long, "\n", `\n`) + `"}}`,
			diff:   long,
			source: SourceChanges,
		},
		{
			name:   "list of strings",
			body:   `{"changes":{"diff":["+first line","+second line"]}}`,
			diff:   "+first line\n+second line",
			source: SourceChanges,
		},
		{
			name:   "list of file objects",
			body:   `{"changes":{"diff":[{"diff":"+from file one"},{"path":"x"},{"diff":"+two"}]}}`,
			diff:   "+from file one\n+two",
			source: SourceChanges,
		},
		{
			name:   "object prefers current",
			body:   `{"changes":{"diff":{"current":"+current diff text","previous":"+previous diff text"}}}`,
			diff:   "+current diff text",
			source: SourceChanges,
		},
		{
			name:   "object falls back to previous",
			body:   `{"changes":{"diff":{"previous":"+previous diff text"}}}`,
			diff:   "+previous diff text",
			source: SourceChanges,
		},
		{
			name:   "short embedded diff uses last commit",
			body:   `{"changes":{"diff":"+x"},"object_attributes":{"last_commit":{"message":"Fix typo"}}}`,
			diff:   "Fix typo",
			source: SourceLastCommit,
		},
		{
			name:   "non-text diff uses last commit",
			body:   `{"changes":{"diff":12345678901},"object_attributes":{"last_commit":{"message":"Fix typo"}}}`,
			diff:   "Fix typo",
			source: SourceLastCommit,
		},
		{
			name:   "nothing",
			body:   `{"changes":"none","object_attributes":{"last_commit":"none"}}`,
			diff:   "",
			source: SourceNone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Decode([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.diff, d.Event.Diff)
			assert.Equal(t, tt.source, d.DiffSource)
		})
	}
}
