package testutils

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// recordingT captures failures instead of failing the enclosing test.
type recordingT struct {
	failures []string
}

func (r *recordingT) Helper() {}

func (r *recordingT) Errorf(format string, args ...interface{}) {
	r.failures = append(r.failures, fmt.Sprintf(format, args...))
}

func TestJSONAsserter(t *testing.T) {
	const actual = `{"address": "aa:bb", "service": {"uuid": "1234", "start_handle": "0x0010"}, "rssi": -40}`

	tests := []struct {
		name     string
		expected string
		opts     []JSONOption
		wantFail bool
	}{
		{name: "extra keys ignored", expected: `{"service": {"uuid": "1234"}}`},
		{name: "presence placeholder", expected: `{"address": "<<PRESENCE>>", "rssi": -40}`},
		{name: "placeholder needs key", expected: `{"missing": "<<PRESENCE>>"}`, wantFail: true},
		{name: "value differs", expected: `{"service": {"uuid": "180f"}}`, wantFail: true},
		{name: "strict keys", expected: `{"address": "aa:bb"}`, opts: []JSONOption{WithIgnoreExtraKeys(false)}, wantFail: true},
		{name: "ignored field", expected: `{"rssi": 0, "address": "aa:bb"}`, opts: []JSONOption{WithIgnoredFields("rssi")}},
		{name: "invalid expected", expected: `{`, wantFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingT{}
			NewJSONAsserter(rec).WithOptions(tt.opts...).Assert(actual, tt.expected)
			if tt.wantFail {
				assert.NotEmpty(t, rec.failures, "mismatch MUST be reported")
				return
			}
			assert.Empty(t, rec.failures)
		})
	}
}

func TestTextAsserter(t *testing.T) {
	t.Run("identical", func(t *testing.T) {
		rec := &recordingT{}
		NewTextAsserter(rec).Assert("a\nb\n", "a\nb\n")
		assert.Empty(t, rec.failures)
	})

	t.Run("unified diff", func(t *testing.T) {
		rec := &recordingT{}
		NewTextAsserter(rec).Assert("a\nc\n", "a\nb\n")
		if assert.Len(t, rec.failures, 1) {
			assert.Contains(t, rec.failures[0], "-b")
			assert.Contains(t, rec.failures[0], "+c")
		}
	})

	t.Run("trailing whitespace", func(t *testing.T) {
		rec := &recordingT{}
		NewTextAsserter(rec).WithOptions(WithIgnoreTrailingWhitespace(true), WithTrimSpace(true)).
			Assert("\n  HANDLE  UUID  \n", "  HANDLE  UUID")
		assert.Empty(t, rec.failures)
	})

	t.Run("colored blanks", func(t *testing.T) {
		rec := &recordingT{}
		NewTextAsserter(rec).WithOptions(WithEnableColors(true)).Assert("a b\n", "a\tb\n")
		if assert.Len(t, rec.failures, 1) {
			assert.Contains(t, rec.failures[0], "a·b")
			assert.Contains(t, rec.failures[0], "a→b")
		}
	})
}
