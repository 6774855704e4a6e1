package tts

import "fmt"

// Model identifies one of the Chatterbox model families.
type Model string

const (
	// ModelClassic is the original English model with emotion exaggeration
	// and classifier-free guidance.
	ModelClassic Model = "classic"

	// ModelTurbo is the fast English model with paralinguistic event tags
	// and a full sampler (top_k, top_p, min_p).
	ModelTurbo Model = "turbo"

	// ModelMultilingual is the 23-language model.
	ModelMultilingual Model = "multilingual"
)

// Models lists every TTS model in display order.
var Models = []Model{ModelClassic, ModelTurbo, ModelMultilingual}

// ParseModel returns the Model named by s.
func ParseModel(s string) (Model, error) {
	switch m := Model(s); m {
	case ModelClassic, ModelTurbo, ModelMultilingual:
		return m, nil
	}
	return "", fmt.Errorf("tts: unknown model %q", s)
}

// Request carries one synthesis job. Zero numeric fields are sent as zero;
// the caller is responsible for applying defaults.
type Request struct {
	// Model selects the model family. Providers serving a single model may
	// ignore it.
	Model Model

	// Text is the text to speak.
	Text string

	// Language is the language code for the multilingual model. Ignored by
	// the English-only models.
	Language string

	// ReferenceAudio is a filesystem path to the voice reference clip. Empty
	// means the model's built-in voice.
	ReferenceAudio string

	// Exaggeration controls emotion intensity (classic, multilingual).
	Exaggeration float64

	// CFGWeight is the classifier-free guidance / pace weight (classic,
	// multilingual).
	CFGWeight float64

	Temperature       float64
	MinP              float64
	TopP              float64
	TopK              int
	RepetitionPenalty float64

	// NormLoudness normalises output loudness (turbo).
	NormLoudness bool

	// Seed for the sampler. 0 means random.
	Seed int64
}
