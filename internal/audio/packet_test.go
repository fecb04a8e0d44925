package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// S4 — buffer-length math scenarios, verbatim from the spec.
func TestBufferLengthSeconds_Scenarios(t *testing.T) {
	assert.InDelta(t, 1.0, BufferLengthSeconds(176_400), 1e-9)
	assert.InDelta(t, 0.5, BufferLengthSeconds(88_200), 1e-9)
}

func TestFromSilence_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		units := rapid.IntRange(1, 20).Draw(t, "units")
		d := time.Duration(units) * 500 * time.Millisecond

		p := FromSilence(d)

		require.InDelta(t, d.Seconds(), p.AudioLengthSeconds, 1e-9)

		expectedLen := int(d.Seconds()*SampleRate+0.5) * Channels * BytesPerSample
		require.Len(t, p.Buffer, expectedLen)
		for _, b := range p.Buffer {
			require.Zero(t, b)
		}
	})
}
