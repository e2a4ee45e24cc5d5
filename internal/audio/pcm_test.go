package audio

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesToFloat32RoundTrip(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 0.999, -1.0}

	encoded := Float32ToBytes(samples)
	require.Len(t, encoded, len(samples)*BytesPerSample)

	decoded := BytesToFloat32(encoded)
	require.Len(t, decoded, len(samples))

	for i := range samples {
		assert.InDelta(t, samples[i], decoded[i], 1.0/32768.0, "sample %d", i)
	}
}

func TestFloat32ToBytesClips(t *testing.T) {
	encoded := Float32ToBytes([]float32{2.0, -2.0})
	decoded := BytesToFloat32(encoded)

	assert.InDelta(t, 1.0, decoded[0], 0.001)
	assert.InDelta(t, -1.0, decoded[1], 0.001)
}

func TestBytesToFloat32DropsOddByte(t *testing.T) {
	decoded := BytesToFloat32([]byte{0x00, 0x00, 0xFF})
	assert.Len(t, decoded, 1)
}

func TestResampleDownsamplesSine(t *testing.T) {
	// 100ms of a 440Hz tone at 24kHz
	src := make([]float32, UpstreamSampleRate/10)
	for i := range src {
		src[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / float64(UpstreamSampleRate)))
	}

	dst := Resample(src, UpstreamSampleRate, VADSampleRate)

	// 24k -> 16k keeps two thirds of the samples
	assert.InDelta(t, len(src)*2/3, len(dst), 2)

	// The tone survives: compare against the ideal 16kHz rendering
	for i := 0; i < len(dst); i += 50 {
		want := math.Sin(2 * math.Pi * 440 * float64(i) / float64(VADSampleRate))
		assert.InDelta(t, want, float64(dst[i]), 0.05, "sample %d", i)
	}
}

func TestResampleSameRateCopies(t *testing.T) {
	src := []float32{0.1, 0.2, 0.3}
	dst := Resample(src, 16000, 16000)

	assert.Equal(t, src, dst)

	// The copy is independent of the source
	dst[0] = 9
	assert.Equal(t, float32(0.1), src[0])
}

func TestDuration(t *testing.T) {
	// 1 second of 24kHz PCM16
	assert.Equal(t, time.Second, Duration(UpstreamSampleRate*BytesPerSample, UpstreamSampleRate))
	assert.Equal(t, time.Duration(0), Duration(100, 0))
}

func TestRMS(t *testing.T) {
	assert.Zero(t, RMS(nil))
	assert.Zero(t, RMS([]float32{0, 0, 0}))

	// Constant full-scale signal has RMS 1
	assert.InDelta(t, 1.0, RMS([]float32{1, 1, 1, 1}), 0.0001)

	// A sine's RMS is amplitude over sqrt(2)
	sine := make([]float32, 16000)
	for i := range sine {
		sine[i] = float32(0.5 * math.Sin(2*math.Pi*100*float64(i)/16000))
	}
	assert.InDelta(t, 0.5/math.Sqrt2, RMS(sine), 0.01)
}
