// Package audio implements the real-time PCM pipeline's building blocks:
// packets, the decoder source, and the backpressure ring. The
// drift-compensated playback clock that consumes the ring lives in package
// engine.
package audio

import "time"

const (
	// SampleRate is the PCM sample rate in Hz, fixed by the spec.
	SampleRate = 44100
	// Channels is the PCM channel count, fixed by the spec.
	Channels = 2
	// BytesPerSample is the width of one S16LE sample.
	BytesPerSample = 2
	// bytesPerSecond is how many PCM bytes correspond to one second of
	// audio at the fixed format above.
	bytesPerSecond = SampleRate * Channels * BytesPerSample
)

// Packet is a reference-counted chunk of PCM audio: interleaved signed
// 16-bit little-endian stereo at 44100 Hz. The buffer is shared, immutable
// once constructed, and safe to hand to multiple encoders without copying.
type Packet struct {
	AudioLengthSeconds float64
	Buffer             []byte
}

// BufferLengthSeconds converts a PCM byte count to its duration in seconds
// at the fixed sample rate/channel/width above.
func BufferLengthSeconds(n int) float64 {
	return float64(n) / float64(bytesPerSecond)
}

// FromSilence synthesizes one zero-filled packet spanning duration d.
func FromSilence(d time.Duration) Packet {
	n := int(d.Seconds()*SampleRate + 0.5) * Channels * BytesPerSample
	return Packet{
		AudioLengthSeconds: d.Seconds(),
		Buffer:             make([]byte, n),
	}
}
