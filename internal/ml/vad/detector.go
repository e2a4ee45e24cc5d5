// Package vad turns per-frame speech probabilities into utterance
// boundaries for local turn detection.
package vad

import (
	"orpheus/internal/adapters/config"
	"orpheus/internal/metrics"
	"orpheus/internal/ml"
	"orpheus/pkg/errors"
)

// FrameSize is the samples-per-call Process expects, at 16kHz
const FrameSize = ml.VADFrameSize

// Event is a turn boundary decision
type Event uint8

const (
	// EventNone means no boundary was crossed on this frame
	EventNone Event = iota

	// EventSpeechStart marks the caller starting to speak
	EventSpeechStart

	// EventSpeechEnd marks end of utterance; the owning session should
	// commit the audio buffer.
	EventSpeechEnd
)

// Prober scores one frame for speech. Satisfied by ml.VADModel.
type Prober interface {
	Process(frame []float32) (float32, error)
	Reset()
}

// Frame runs at 16kHz and 512 samples, so these counts are time:
// two frames (64ms) of speech to open, ten frames (320ms) of silence
// to close. Closing too eagerly chops slow speakers mid-sentence.
const (
	minSpeechFrames  = 2
	minSilenceFrames = 10
)

// Detector is the per-call speech boundary state machine. Not safe for
// concurrent use; each call owns one.
type Detector struct {
	model     Prober
	destroy   func()
	threshold float32

	speaking   bool
	speechRun  int
	silenceRun int
}

// NewDetector loads the detection model and builds a detector around it
func NewDetector(cfg config.VADConfig) (*Detector, error) {
	model, err := ml.LoadVADModel(cfg.ModelPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load VAD model")
	}

	d := newDetector(model, cfg.Threshold)
	d.destroy = model.Destroy
	return d, nil
}

func newDetector(model Prober, threshold float32) *Detector {
	if threshold <= 0 || threshold >= 1 {
		threshold = 0.5
	}
	return &Detector{
		model:     model,
		threshold: threshold,
	}
}

// Process scores one 512-sample frame and reports whether a turn
// boundary was crossed.
func (d *Detector) Process(frame []float32) (Event, float32, error) {
	prob, err := d.model.Process(frame)
	if err != nil {
		return EventNone, 0, err
	}

	if prob >= d.threshold {
		d.speechRun++
		d.silenceRun = 0
	} else {
		d.silenceRun++
		d.speechRun = 0
	}

	if !d.speaking && d.speechRun >= minSpeechFrames {
		d.speaking = true
		metrics.VADDecisions.WithLabelValues("speech").Inc()
		return EventSpeechStart, prob, nil
	}

	if d.speaking && d.silenceRun >= minSilenceFrames {
		d.speaking = false
		metrics.VADDecisions.WithLabelValues("silence").Inc()
		return EventSpeechEnd, prob, nil
	}

	return EventNone, prob, nil
}

// Speaking reports whether the detector currently tracks an utterance
func (d *Detector) Speaking() bool {
	return d.speaking
}

// Reset clears the state machine and the model's recurrent state
func (d *Detector) Reset() {
	d.speaking = false
	d.speechRun = 0
	d.silenceRun = 0
	d.model.Reset()
}

// Close releases the underlying model
func (d *Detector) Close() {
	if d.destroy != nil {
		d.destroy()
		d.destroy = nil
	}
}
