package features

import (
	"fmt"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	// NeutralScore is returned when no trained model is available.
	NeutralScore = float64(0.5)

	// Model output classes, success probability is the second class.
	modelClassCount = 2
)

// ModelConfig represents the scoring model configuration.
type ModelConfig struct {
	// Path is the filepath to the serialized onnx model.
	Path string
	// LibraryPath is the filepath to the onnx runtime shared library. When
	// empty a platform default is used.
	LibraryPath string
}

// Model scores feature vectors with an externally trained classifier.
type Model struct {
	cfg     *ModelConfig
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// initializeRuntime loads the onnx runtime shared library.
func initializeRuntime(libraryPath string) error {
	if libraryPath == "" {
		switch runtime.GOOS {
		case "windows":
			libraryPath = "onnxruntime.dll"
		case "darwin":
			libraryPath = "libonnxruntime.dylib"
		default:
			libraryPath = "/usr/lib/libonnxruntime.so"
		}
	}

	ort.SetSharedLibraryPath(libraryPath)

	return ort.InitializeEnvironment()
}

// NewModel initializes the scoring model from the provided configuration.
func NewModel(cfg *ModelConfig) (*Model, error) {
	err := initializeRuntime(cfg.LibraryPath)
	if err != nil {
		return nil, fmt.Errorf("initializing onnx runtime: %v", err)
	}

	inputShape := ort.NewShape(1, FeatureCount)
	inputData := make([]float32, FeatureCount)
	inputTensor, err := ort.NewTensor(inputShape, inputData)
	if err != nil {
		return nil, fmt.Errorf("creating input tensor: %v", err)
	}

	outputShape := ort.NewShape(1, modelClassCount)
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("creating output tensor: %v", err)
	}

	session, err := ort.NewAdvancedSession(cfg.Path,
		[]string{"input"}, []string{"output"},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor}, nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("creating model session: %v", err)
	}

	model := &Model{
		cfg:     cfg,
		session: session,
		input:   inputTensor,
		output:  outputTensor,
	}

	return model, nil
}

// Score runs the classifier on the provided feature vector and returns the
// success probability. A nil model returns the neutral score.
func (m *Model) Score(features []float64) (float64, error) {
	if m == nil {
		return NeutralScore, nil
	}
	if len(features) != FeatureCount {
		return 0, fmt.Errorf("expected %d features, got %d", FeatureCount, len(features))
	}

	data := m.input.GetData()
	for idx := range features {
		data[idx] = float32(features[idx])
	}

	err := m.session.Run()
	if err != nil {
		return 0, fmt.Errorf("running model inference: %v", err)
	}

	probability := float64(m.output.GetData()[1])

	return probability, nil
}

// Close releases the model's runtime resources.
func (m *Model) Close() {
	if m == nil {
		return
	}
	if m.session != nil {
		m.session.Destroy()
	}
	if m.input != nil {
		m.input.Destroy()
	}
	if m.output != nil {
		m.output.Destroy()
	}
}
