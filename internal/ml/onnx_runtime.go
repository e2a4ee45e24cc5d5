package ml

import (
	onnxruntime "github.com/yalue/onnxruntime_go"

	"orpheus/pkg/errors"
)

const (
	// VADFrameSize is the samples-per-inference the 16kHz detection
	// model expects (32ms frames).
	VADFrameSize = 512

	// vadStateSize is 2 x 1 x 128: the recurrent state carried between
	// frames of one stream.
	vadStateSize = 2 * 1 * 128

	vadSampleRate = 16000
)

// VADModel wraps an ONNX Runtime session over the Silero voice activity
// network. Process carries recurrent state, so one model serves exactly
// one audio stream; it is not safe for concurrent use.
type VADModel struct {
	session *onnxruntime.DynamicAdvancedSession
	state   []float32
}

// LoadVADModel loads the detection model from file
func LoadVADModel(modelPath string) (*VADModel, error) {
	// Initialize ONNX runtime environment (only once)
	err := onnxruntime.InitializeEnvironment()
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize ONNX runtime")
	}

	// Create session options
	options, err := onnxruntime.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session options")
	}
	defer options.Destroy()

	// Load model with dynamic session (allows runtime tensor creation)
	// Inputs: "input" (audio frame), "state" (recurrent), "sr" (sample rate)
	// Outputs: "output" (speech probability), "stateN" (next recurrent state)
	session, err := onnxruntime.NewDynamicAdvancedSession(modelPath,
		[]string{"input", "state", "sr"}, []string{"output", "stateN"}, options)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load VAD model")
	}

	return &VADModel{
		session: session,
		state:   make([]float32, vadStateSize),
	}, nil
}

// Process runs one frame through the network and returns the speech
// probability in [0, 1].
func (m *VADModel) Process(frame []float32) (float32, error) {
	if m.session == nil {
		return 0, errors.New("VAD model session is nil")
	}
	if len(frame) != VADFrameSize {
		return 0, errors.Newf("VAD frame must be %d samples, got %d", VADFrameSize, len(frame))
	}

	// Input tensor: shape [1, frame]
	inputShape := onnxruntime.NewShape(1, int64(len(frame)))
	inputTensor, err := onnxruntime.NewTensor(inputShape, frame)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create input tensor")
	}
	defer inputTensor.Destroy()

	// Recurrent state tensor: shape [2, 1, 128]
	stateIn := make([]float32, vadStateSize)
	copy(stateIn, m.state)
	stateShape := onnxruntime.NewShape(2, 1, 128)
	stateTensor, err := onnxruntime.NewTensor(stateShape, stateIn)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create state tensor")
	}
	defer stateTensor.Destroy()

	// Sample rate tensor: scalar shape [1]
	srShape := onnxruntime.NewShape(1)
	srTensor, err := onnxruntime.NewTensor(srShape, []int64{vadSampleRate})
	if err != nil {
		return 0, errors.Wrap(err, "failed to create sample rate tensor")
	}
	defer srTensor.Destroy()

	// Output: speech probability, shape [1, 1]
	probOutput := make([]float32, 1)
	probShape := onnxruntime.NewShape(1, 1)
	probTensor, err := onnxruntime.NewTensor(probShape, probOutput)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create probability output tensor")
	}
	defer probTensor.Destroy()

	// Output: next recurrent state, shape [2, 1, 128]
	stateOutput := make([]float32, vadStateSize)
	stateOutTensor, err := onnxruntime.NewTensor(stateShape, stateOutput)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create state output tensor")
	}
	defer stateOutTensor.Destroy()

	inputs := []onnxruntime.Value{inputTensor, stateTensor, srTensor}
	outputs := []onnxruntime.Value{probTensor, stateOutTensor}
	if err := m.session.Run(inputs, outputs); err != nil {
		return 0, errors.Wrap(err, "VAD inference failed")
	}

	copy(m.state, stateOutput)

	return probOutput[0], nil
}

// Reset zeroes the recurrent state. Call between independent streams.
func (m *VADModel) Reset() {
	for i := range m.state {
		m.state[i] = 0
	}
}

// Destroy cleans up the ONNX session
func (m *VADModel) Destroy() {
	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
}
