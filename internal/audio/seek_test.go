package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// S3 — seek-time formatting scenarios, verbatim from the spec.
func TestFormatSeekTime_Scenarios(t *testing.T) {
	assert.Equal(t, "00:00.000000", FormatSeekTime(0))
	assert.Equal(t, "00:01.500000", FormatSeekTime(1500))
	assert.Equal(t, "01:00:00.000000", FormatSeekTime(3_600_000))
	assert.Equal(t, "01:02:03.456000", FormatSeekTime(3_723_456))
}

// Round-trip property: parse(format(ms)) == ms for all ms <= 10^10.
func TestSeekTime_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ms := rapid.Int64Range(0, 10_000_000_000).Draw(t, "ms")
		formatted := FormatSeekTime(ms)
		parsed, err := ParseSeekTime(formatted)
		require.NoError(t, err)
		require.Equal(t, ms, parsed)
	})
}
