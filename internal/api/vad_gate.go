package api

import (
	"orpheus/internal/audio"
	"orpheus/internal/ml/vad"
	"orpheus/pkg/logger"
)

// speechDetector is the slice of the VAD detector the gate needs
type speechDetector interface {
	Process(frame []float32) (vad.Event, float32, error)
	Close()
}

// vadGate feeds caller audio through local voice activity detection and
// commits the upstream input buffer when the caller stops speaking.
// With the gate active the upstream session runs without server-side
// turn detection.
type vadGate struct {
	detector speechDetector
	commit   func() error
	log      *logger.Logger

	// Caller audio arrives at the upstream rate; the detector wants
	// fixed frames at its own rate, so leftovers wait here.
	buf []float32
}

func newVADGate(detector speechDetector, commit func() error) *vadGate {
	return &vadGate{
		detector: detector,
		commit:   commit,
		log:      logger.Get().With("component", "vad_gate"),
	}
}

// Feed consumes one binary frame of caller PCM16 audio
func (g *vadGate) Feed(pcm []byte) {
	samples := audio.Resample(
		audio.BytesToFloat32(pcm),
		audio.UpstreamSampleRate,
		audio.VADSampleRate,
	)
	g.buf = append(g.buf, samples...)

	for len(g.buf) >= vad.FrameSize {
		frame := g.buf[:vad.FrameSize]
		g.buf = g.buf[vad.FrameSize:]

		event, _, err := g.detector.Process(frame)
		if err != nil {
			g.log.Warnw("VAD frame failed", "error", err)
			continue
		}

		if event == vad.EventSpeechEnd {
			if err := g.commit(); err != nil {
				g.log.Warnw("Failed to commit audio turn", "error", err)
			}
		}
	}
}

// Close releases the detector's model resources
func (g *vadGate) Close() {
	g.detector.Close()
}
