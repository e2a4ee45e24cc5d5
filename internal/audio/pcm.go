// Package audio converts between the wire format (PCM16 little-endian
// mono) and the float frames local voice activity detection consumes.
package audio

import (
	"encoding/binary"
	"math"
	"time"
)

const (
	// UpstreamSampleRate is the rate the realtime model speaks and
	// listens at when the session advertises pcm16.
	UpstreamSampleRate = 24000

	// VADSampleRate is the rate the detection model was trained on.
	VADSampleRate = 16000

	// BytesPerSample is the PCM16 sample width
	BytesPerSample = 2
)

// BytesToFloat32 decodes little-endian PCM16 into [-1, 1) samples.
// A trailing odd byte is dropped.
func BytesToFloat32(pcm []byte) []float32 {
	n := len(pcm) / BytesPerSample
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*BytesPerSample:]))
		out[i] = float32(s) / 32768.0
	}
	return out
}

// Float32ToBytes encodes [-1, 1) samples into little-endian PCM16.
// Samples outside the range are clipped.
func Float32ToBytes(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, f := range samples {
		v := f * 32768.0
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(out[i*BytesPerSample:], uint16(int16(v)))
	}
	return out
}

// Resample converts samples between rates by linear interpolation.
// Good enough for feeding a detection model; not for playback.
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || len(samples) == 0 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}

	ratio := float64(srcRate) / float64(dstRate)
	n := int(math.Floor(float64(len(samples)) / ratio))
	if n == 0 {
		return nil
	}

	out := make([]float32, n)
	for i := 0; i < n; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out
}

// Duration returns the play time of a PCM16 byte payload
func Duration(nBytes, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := nBytes / BytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// RMS returns the root mean square level of a frame, 0 for silence
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
