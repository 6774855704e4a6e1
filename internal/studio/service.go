// Package studio implements the voice-studio actions: Classic, Turbo and
// multilingual text-to-speech, voice conversion, and the form callbacks that
// pre-fill the UI.
//
// Every action validates its inputs, waits for its lane in the request queue,
// loads its model on first use and then calls the backend. Errors match one
// of [ErrInvalidParam], [ErrUnknownLanguage], [ErrBackend] or
// queue.ErrQueueFull so the transport can map them to status codes.
package studio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/voxstudio/internal/observe"
	"github.com/MrWong99/voxstudio/internal/queue"
	"github.com/MrWong99/voxstudio/pkg/audio"
	"github.com/MrWong99/voxstudio/pkg/provider/tts"
	"github.com/MrWong99/voxstudio/pkg/provider/vc"
	"github.com/MrWong99/voxstudio/pkg/samples"
)

// ModelVC names the voice-conversion model in results and metrics.
const ModelVC = "vc"

// Models hands out loaded backend chains.
type Models interface {
	TTS(ctx context.Context, model tts.Model) (tts.Provider, error)
	VC(ctx context.Context) (vc.Provider, error)
}

// Queue runs a job once its lane has room.
type Queue interface {
	Do(ctx context.Context, lane queue.Lane, fn func(ctx context.Context) error) error
}

// Config wires a [Service].
type Config struct {
	// Catalog returns the current sample catalogue. It is called on every
	// request so a reloaded catalogue takes effect immediately.
	Catalog func() *samples.Catalog

	Models Models
	Queue  Queue

	// Metrics defaults to observe.DefaultMetrics.
	Metrics *observe.Metrics
}

// Result is a finished generation.
type Result struct {
	Waveform *audio.Waveform

	// Model is the model that produced the audio.
	Model string

	// Duration is the time spent inside the backend, excluding queue wait
	// and model load.
	Duration time.Duration

	// ReferenceWarnings lists advisory problems with the reference clip.
	ReferenceWarnings []string
}

// Service is safe for concurrent use.
type Service struct {
	catalog func() *samples.Catalog
	models  Models
	queue   Queue
	metrics *observe.Metrics
}

// New validates cfg and returns a Service.
func New(cfg Config) (*Service, error) {
	switch {
	case cfg.Catalog == nil:
		return nil, errors.New("studio: catalog accessor is required")
	case cfg.Models == nil:
		return nil, errors.New("studio: models are required")
	case cfg.Queue == nil:
		return nil, errors.New("studio: queue is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Service{
		catalog: cfg.Catalog,
		models:  cfg.Models,
		queue:   cfg.Queue,
		metrics: cfg.Metrics,
	}, nil
}

// Catalog returns the catalogue currently in use.
func (s *Service) Catalog() *samples.Catalog { return s.catalog() }

// TTSGenerate runs the Classic model.
func (s *Service) TTSGenerate(ctx context.Context, p ClassicParams) (*Result, error) {
	if err := requireText(p.Text); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	ref, warnings := prepareReference(s.catalog(), p.ReferenceAudio)
	req := tts.Request{
		Model:             tts.ModelClassic,
		Text:              p.Text,
		ReferenceAudio:    ref,
		Exaggeration:      p.Exaggeration,
		CFGWeight:         p.CFGWeight,
		Temperature:       p.Temperature,
		MinP:              p.MinP,
		TopP:              p.TopP,
		RepetitionPenalty: p.RepetitionPenalty,
		Seed:              p.Seed,
	}
	return s.generate(ctx, queue.LaneTTS, req, warnings)
}

// TurboGenerate runs the Turbo model.
func (s *Service) TurboGenerate(ctx context.Context, p TurboParams) (*Result, error) {
	if err := requireText(p.Text); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	ref, warnings := prepareReference(s.catalog(), p.ReferenceAudio)
	req := tts.Request{
		Model:             tts.ModelTurbo,
		Text:              p.Text,
		ReferenceAudio:    ref,
		Temperature:       p.Temperature,
		MinP:              p.MinP,
		TopP:              p.TopP,
		TopK:              int(p.TopK),
		RepetitionPenalty: p.RepetitionPenalty,
		NormLoudness:      p.NormLoudness,
		Seed:              p.Seed,
	}
	return s.generate(ctx, queue.LaneTurbo, req, warnings)
}

// MTLGenerate runs the multilingual model. Text beyond
// [MaxMultilingualChars] characters is dropped. Without a reference clip the
// language's prompt clip from the catalogue is used.
func (s *Service) MTLGenerate(ctx context.Context, p MultilingualParams) (*Result, error) {
	if err := requireText(p.Text); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	cat := s.catalog()
	lang, err := resolveLanguage(cat, p.Language)
	if err != nil {
		return nil, err
	}

	prompt := p.ReferenceAudio
	if prompt == "" {
		prompt = cat.DefaultAudioForLang(lang)
	}
	ref, warnings := prepareReference(cat, prompt)
	req := tts.Request{
		Model:          tts.ModelMultilingual,
		Text:           truncateRunes(p.Text, MaxMultilingualChars),
		Language:       lang,
		ReferenceAudio: ref,
		Exaggeration:   p.Exaggeration,
		CFGWeight:      p.CFGWeight,
		Temperature:    p.Temperature,
		Seed:           p.Seed,
	}
	return s.generate(ctx, queue.LaneMTL, req, warnings)
}

// VCGenerate converts SourceAudio to the target voice. Without a target the
// backend's default voice is used.
func (s *Service) VCGenerate(ctx context.Context, p VCParams) (*Result, error) {
	if p.SourceAudio == "" {
		return nil, &ParamError{Field: "audio", Reason: "source audio is required"}
	}
	if _, err := os.Stat(p.SourceAudio); err != nil {
		return nil, &ParamError{Field: "audio", Reason: "source audio is not readable"}
	}
	target, warnings := prepareReference(s.catalog(), p.TargetVoice)

	ctx, span := observe.StartGeneration(ctx, "studio.vc_generate", ModelVC,
		attribute.Bool("reference", target != ""))

	var res *Result
	err := s.queue.Do(ctx, queue.LaneVC, func(ctx context.Context) error {
		conv, err := s.models.VC(ctx)
		if err != nil {
			return backendErr(err)
		}
		start := time.Now()
		w, err := conv.Convert(ctx, vc.Request{SourceAudio: p.SourceAudio, TargetVoice: target})
		d := time.Since(start)
		s.metrics.RecordGeneration(ctx, ModelVC, d, err)
		if err != nil {
			return backendErr(err)
		}
		res = &Result{Waveform: w, Model: ModelVC, Duration: d, ReferenceWarnings: warnings}
		return nil
	})
	observe.FinishSpan(span, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) generate(ctx context.Context, lane queue.Lane, req tts.Request, warnings []string) (*Result, error) {
	ctx, span := observe.StartGeneration(ctx, "studio.generate", string(req.Model),
		attribute.Int("text.chars", len([]rune(req.Text))),
		attribute.Bool("reference", req.ReferenceAudio != ""),
	)

	var res *Result
	err := s.queue.Do(ctx, lane, func(ctx context.Context) error {
		gen, err := s.models.TTS(ctx, req.Model)
		if err != nil {
			return backendErr(err)
		}
		start := time.Now()
		w, err := gen.Generate(ctx, req)
		d := time.Since(start)
		s.metrics.RecordGeneration(ctx, string(req.Model), d, err)
		if err != nil {
			return backendErr(err)
		}
		res = &Result{Waveform: w, Model: string(req.Model), Duration: d, ReferenceWarnings: warnings}
		return nil
	})
	observe.FinishSpan(span, err)
	if err != nil {
		return nil, err
	}
	observe.Logger(ctx).Debug("generation finished",
		"model", res.Model,
		"duration", res.Duration,
		"audio_seconds", res.Waveform.Duration().Seconds(),
	)
	return res, nil
}

func requireText(text string) error {
	if strings.TrimSpace(text) == "" {
		return &ParamError{Field: "text", Reason: "must not be empty"}
	}
	return nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// resolveLanguage accepts a catalogue code or a display name.
func resolveLanguage(cat *samples.Catalog, code string) (string, error) {
	if c, ok := cat.LanguageCodeFor(strings.TrimSpace(code)); ok {
		return c, nil
	}
	lerr := &LanguageError{Code: code}
	if guess, ok := samples.Suggest(code, cat.LanguageCandidates()); ok {
		if c, ok := cat.LanguageCodeFor(guess); ok {
			lerr.Suggestion = c
		}
	}
	return "", lerr
}

// prepareReference checks the clip at path. A missing clip is dropped so the
// model falls back to its built-in voice; other findings are advisory.
func prepareReference(cat *samples.Catalog, path string) (string, []string) {
	if path == "" {
		return "", nil
	}
	if _, err := os.Stat(path); err != nil {
		return "", []string{fmt.Sprintf("reference audio %s not found, using the built-in voice", displayPath(cat, path))}
	}
	info, err := samples.Inspect(path)
	if err != nil {
		return path, []string{fmt.Sprintf("could not inspect reference audio: %v", err)}
	}
	return path, cat.Requirements().Check(info)
}

func displayPath(cat *samples.Catalog, path string) string {
	if rel, ok := cat.Rel(path); ok {
		return rel
	}
	return path
}
