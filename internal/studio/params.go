package studio

import (
	"fmt"
	"math"
)

// MaxMultilingualChars is the number of characters of input text the
// multilingual model receives. Longer text is truncated.
const MaxMultilingualChars = 300

// ClassicParams are the inputs of the Classic TTS action.
type ClassicParams struct {
	Text string `json:"text"`

	// ReferenceAudio is a filesystem path. Empty means the built-in voice.
	ReferenceAudio string `json:"reference_audio,omitempty"`

	Exaggeration      float64 `json:"exaggeration"`
	Temperature       float64 `json:"temperature"`
	CFGWeight         float64 `json:"cfg_weight"`
	MinP              float64 `json:"min_p"`
	TopP              float64 `json:"top_p"`
	RepetitionPenalty float64 `json:"repetition_penalty"`

	// Seed 0 means random.
	Seed int64 `json:"seed"`
}

// DefaultClassicParams returns the values the Classic tab starts with.
func DefaultClassicParams() ClassicParams {
	return ClassicParams{
		Exaggeration:      0.5,
		Temperature:       0.8,
		CFGWeight:         0.5,
		MinP:              0.05,
		TopP:              1.0,
		RepetitionPenalty: 1.2,
	}
}

func (p ClassicParams) validate() error {
	return firstErr(
		inRange("exaggeration", p.Exaggeration, 0.25, 2),
		inRange("cfg_weight", p.CFGWeight, 0, 1),
		inRange("temperature", p.Temperature, 0.05, 5),
		inRange("min_p", p.MinP, 0, 1),
		inRange("top_p", p.TopP, 0, 1),
		inRange("repetition_penalty", p.RepetitionPenalty, 1, 2),
	)
}

// TurboParams are the inputs of the Turbo action.
type TurboParams struct {
	Text           string `json:"text"`
	ReferenceAudio string `json:"reference_audio,omitempty"`

	Temperature float64 `json:"temperature"`
	MinP        float64 `json:"min_p"`
	TopP        float64 `json:"top_p"`

	// TopK is truncated to an integer before it is sent.
	TopK              float64 `json:"top_k"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
	NormLoudness      bool    `json:"norm_loudness"`
	Seed              int64   `json:"seed"`
}

// DefaultTurboParams returns the values the Turbo tab starts with.
func DefaultTurboParams() TurboParams {
	return TurboParams{
		Temperature:       0.8,
		MinP:              0,
		TopP:              0.95,
		TopK:              1000,
		RepetitionPenalty: 1.2,
		NormLoudness:      true,
	}
}

func (p TurboParams) validate() error {
	return firstErr(
		inRange("temperature", p.Temperature, 0.05, 2),
		inRange("top_p", p.TopP, 0, 1),
		inRange("top_k", p.TopK, 0, 1000),
		inRange("repetition_penalty", p.RepetitionPenalty, 1, 2),
		inRange("min_p", p.MinP, 0, 1),
	)
}

// MultilingualParams are the inputs of the multilingual action.
type MultilingualParams struct {
	Text string `json:"text"`

	// Language is a catalogue language code.
	Language string `json:"language_id"`

	// ReferenceAudio overrides the language's default prompt clip.
	ReferenceAudio string `json:"reference_audio,omitempty"`

	Exaggeration float64 `json:"exaggeration"`
	Temperature  float64 `json:"temperature"`
	CFGWeight    float64 `json:"cfg_weight"`
	Seed         int64   `json:"seed"`
}

// DefaultMultilingualParams returns the values the multilingual tab starts
// with, for the catalogue's initial language.
func DefaultMultilingualParams(language string) MultilingualParams {
	return MultilingualParams{
		Language:     language,
		Exaggeration: 0.5,
		Temperature:  0.8,
		CFGWeight:    0.5,
	}
}

func (p MultilingualParams) validate() error {
	return firstErr(
		inRange("exaggeration", p.Exaggeration, 0.25, 2),
		inRange("cfg_weight", p.CFGWeight, 0.2, 1),
		inRange("temperature", p.Temperature, 0.05, 5),
	)
}

// VCParams are the inputs of the voice-conversion action. Both are
// filesystem paths.
type VCParams struct {
	SourceAudio string `json:"source_audio"`
	TargetVoice string `json:"target_voice,omitempty"`
}

// ParamError describes a parameter outside its allowed range.
type ParamError struct {
	Field  string
	Value  float64
	Min    float64
	Max    float64
	Reason string
}

func (e *ParamError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("studio: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("studio: %s must be between %g and %g, got %g", e.Field, e.Min, e.Max, e.Value)
}

// Is makes every ParamError match [ErrInvalidParam].
func (e *ParamError) Is(target error) bool { return target == ErrInvalidParam }

func inRange(field string, v, lo, hi float64) error {
	if math.IsNaN(v) || v < lo || v > hi {
		return &ParamError{Field: field, Value: v, Min: lo, Max: hi}
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
