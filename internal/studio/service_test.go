package studio_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/voxstudio/internal/observe"
	"github.com/MrWong99/voxstudio/internal/queue"
	"github.com/MrWong99/voxstudio/internal/studio"
	"github.com/MrWong99/voxstudio/pkg/audio"
	"github.com/MrWong99/voxstudio/pkg/provider/tts"
	ttsmock "github.com/MrWong99/voxstudio/pkg/provider/tts/mock"
	"github.com/MrWong99/voxstudio/pkg/provider/vc"
	vcmock "github.com/MrWong99/voxstudio/pkg/provider/vc/mock"
	"github.com/MrWong99/voxstudio/pkg/samples"
)

type fakeModels struct {
	tts     map[tts.Model]*ttsmock.Provider
	vc      *vcmock.Provider
	loadErr error
}

func (f *fakeModels) TTS(_ context.Context, m tts.Model) (tts.Provider, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.tts[m], nil
}

func (f *fakeModels) VC(context.Context) (vc.Provider, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.vc, nil
}

func testWave() *audio.Waveform {
	return &audio.Waveform{SampleRate: 24000, Channels: 1, PCM: make([]byte, 4800)}
}

type fixture struct {
	svc    *studio.Service
	models *fakeModels
	cat    *samples.Catalog
	dir    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	cat, err := samples.Builtin(dir)
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	models := &fakeModels{
		tts: map[tts.Model]*ttsmock.Provider{
			tts.ModelClassic:      {GenerateResult: testWave()},
			tts.ModelTurbo:        {GenerateResult: testWave()},
			tts.ModelMultilingual: {GenerateResult: testWave()},
		},
		vc: &vcmock.Provider{ConvertResult: testWave()},
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}
	svc, err := studio.New(studio.Config{
		Catalog: func() *samples.Catalog { return cat },
		Models:  models,
		Queue:   queue.New(queue.Config{Metrics: m}),
		Metrics: m,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{svc: svc, models: models, cat: cat, dir: dir}
}

// writeClip writes a 16 kHz mono WAV of the given length in seconds.
func writeClip(t *testing.T, path string, seconds int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	w := &audio.Waveform{SampleRate: 16000, Channels: 1, PCM: make([]byte, 16000*2*seconds)}
	if err := w.WriteWAV(f); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := studio.New(studio.Config{}); err == nil {
		t.Fatal("expected error for empty config")
	}
}

func TestTTSGenerate_Defaults(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ref := filepath.Join(f.dir, "ref.wav")
	writeClip(t, ref, 6)

	p := studio.DefaultClassicParams()
	p.Text = "Hello there."
	p.ReferenceAudio = ref
	p.Seed = 42

	res, err := f.svc.TTSGenerate(context.Background(), p)
	if err != nil {
		t.Fatalf("TTSGenerate: %v", err)
	}
	if res.Model != "classic" || res.Waveform == nil {
		t.Fatalf("result = %+v", res)
	}
	if len(res.ReferenceWarnings) != 0 {
		t.Errorf("warnings = %v, want none for a conforming clip", res.ReferenceWarnings)
	}

	calls := f.models.tts[tts.ModelClassic].Calls()
	if len(calls) != 1 {
		t.Fatalf("generate calls = %d, want 1", len(calls))
	}
	got := calls[0].Req
	want := tts.Request{
		Model:             tts.ModelClassic,
		Text:              "Hello there.",
		ReferenceAudio:    ref,
		Exaggeration:      0.5,
		CFGWeight:         0.5,
		Temperature:       0.8,
		MinP:              0.05,
		TopP:              1,
		RepetitionPenalty: 1.2,
		Seed:              42,
	}
	if got != want {
		t.Errorf("request = %+v\nwant      %+v", got, want)
	}
}

func TestTTSGenerate_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tests := []struct {
		name   string
		mutate func(*studio.ClassicParams)
		field  string
	}{
		{"empty text", func(p *studio.ClassicParams) { p.Text = "   " }, "text"},
		{"exaggeration low", func(p *studio.ClassicParams) { p.Exaggeration = 0.2 }, "exaggeration"},
		{"exaggeration high", func(p *studio.ClassicParams) { p.Exaggeration = 2.5 }, "exaggeration"},
		{"cfg high", func(p *studio.ClassicParams) { p.CFGWeight = 1.1 }, "cfg_weight"},
		{"temperature low", func(p *studio.ClassicParams) { p.Temperature = 0.01 }, "temperature"},
		{"repetition penalty", func(p *studio.ClassicParams) { p.RepetitionPenalty = 0.9 }, "repetition_penalty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := studio.DefaultClassicParams()
			p.Text = "hi"
			tt.mutate(&p)
			_, err := f.svc.TTSGenerate(context.Background(), p)
			if !errors.Is(err, studio.ErrInvalidParam) {
				t.Fatalf("err = %v, want ErrInvalidParam", err)
			}
			var perr *studio.ParamError
			if !errors.As(err, &perr) || perr.Field != tt.field {
				t.Errorf("field = %v, want %s", perr, tt.field)
			}
		})
	}
	if n := len(f.models.tts[tts.ModelClassic].Calls()); n != 0 {
		t.Errorf("backend called %d times for invalid input", n)
	}
}

func TestTTSGenerate_MissingReferenceFallsBack(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	p := studio.DefaultClassicParams()
	p.Text = "hi"
	p.ReferenceAudio = f.cat.DefaultTTSSample().Audio

	res, err := f.svc.TTSGenerate(context.Background(), p)
	if err != nil {
		t.Fatalf("TTSGenerate: %v", err)
	}
	if len(res.ReferenceWarnings) != 1 || !strings.Contains(res.ReferenceWarnings[0], "not found") {
		t.Errorf("warnings = %v", res.ReferenceWarnings)
	}
	if got := f.models.tts[tts.ModelClassic].Calls()[0].Req.ReferenceAudio; got != "" {
		t.Errorf("reference = %q, want dropped", got)
	}
}

func TestTTSGenerate_ReferenceWarnings(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ref := filepath.Join(f.dir, "short.wav")
	writeClip(t, ref, 1)

	p := studio.DefaultClassicParams()
	p.Text = "hi"
	p.ReferenceAudio = ref
	res, err := f.svc.TTSGenerate(context.Background(), p)
	if err != nil {
		t.Fatalf("TTSGenerate: %v", err)
	}
	if len(res.ReferenceWarnings) == 0 {
		t.Fatal("expected a duration warning for a 1 s clip")
	}
	if got := f.models.tts[tts.ModelClassic].Calls()[0].Req.ReferenceAudio; got != ref {
		t.Errorf("reference = %q, advisory warnings must not drop the clip", got)
	}
}

func TestTurboGenerate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	p := studio.DefaultTurboParams()
	p.Text = "Oh [chuckle] hi."
	p.TopK = 512.9

	if _, err := f.svc.TurboGenerate(context.Background(), p); err != nil {
		t.Fatalf("TurboGenerate: %v", err)
	}
	req := f.models.tts[tts.ModelTurbo].Calls()[0].Req
	if req.TopK != 512 || !req.NormLoudness || req.TopP != 0.95 || req.Model != tts.ModelTurbo {
		t.Errorf("request = %+v", req)
	}

	p.Temperature = 2.5
	if _, err := f.svc.TurboGenerate(context.Background(), p); !errors.Is(err, studio.ErrInvalidParam) {
		t.Errorf("temperature 2.5: err = %v, want ErrInvalidParam", err)
	}
	p = studio.DefaultTurboParams()
	p.Text = "hi"
	p.TopK = 1001
	if _, err := f.svc.TurboGenerate(context.Background(), p); !errors.Is(err, studio.ErrInvalidParam) {
		t.Errorf("top_k 1001: err = %v, want ErrInvalidParam", err)
	}
}

func TestMTLGenerate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	prompt := f.cat.DefaultAudioForLang("fr")
	writeClip(t, prompt, 6)

	p := studio.DefaultMultilingualParams("fr")
	p.Text = strings.Repeat("é", 350)
	if _, err := f.svc.MTLGenerate(context.Background(), p); err != nil {
		t.Fatalf("MTLGenerate: %v", err)
	}
	req := f.models.tts[tts.ModelMultilingual].Calls()[0].Req
	if n := len([]rune(req.Text)); n != studio.MaxMultilingualChars {
		t.Errorf("text length = %d runes, want %d", n, studio.MaxMultilingualChars)
	}
	if req.Language != "fr" || req.ReferenceAudio != prompt {
		t.Errorf("language/prompt = %q/%q, want fr/%q", req.Language, req.ReferenceAudio, prompt)
	}
}

func TestMTLGenerate_PromptOnlyWhenPresent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	p := studio.DefaultMultilingualParams("de")
	p.Text = "Hallo"
	res, err := f.svc.MTLGenerate(context.Background(), p)
	if err != nil {
		t.Fatalf("MTLGenerate: %v", err)
	}
	if got := f.models.tts[tts.ModelMultilingual].Calls()[0].Req.ReferenceAudio; got != "" {
		t.Errorf("reference = %q, want none when the prompt clip is missing", got)
	}
	if len(res.ReferenceWarnings) != 1 {
		t.Errorf("warnings = %v, want one missing-clip warning", res.ReferenceWarnings)
	}
}

func TestMTLGenerate_Language(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	p := studio.DefaultMultilingualParams("French")
	p.Text = "Bonjour"
	if _, err := f.svc.MTLGenerate(context.Background(), p); err != nil {
		t.Fatalf("display name: %v", err)
	}
	if got := f.models.tts[tts.ModelMultilingual].Calls()[0].Req.Language; got != "fr" {
		t.Errorf("language = %q, want fr", got)
	}

	p.Language = "frr"
	_, err := f.svc.MTLGenerate(context.Background(), p)
	if !errors.Is(err, studio.ErrUnknownLanguage) {
		t.Fatalf("err = %v, want ErrUnknownLanguage", err)
	}
	var lerr *studio.LanguageError
	if !errors.As(err, &lerr) || lerr.Suggestion != "fr" {
		t.Errorf("suggestion = %+v, want fr", lerr)
	}
	if got := f.svc.LanguageHint("frr"); got != "fr" {
		t.Errorf("LanguageHint = %q, want fr", got)
	}

	p = studio.DefaultMultilingualParams("fr")
	p.Text = "x"
	p.CFGWeight = 0.1
	if _, err := f.svc.MTLGenerate(context.Background(), p); !errors.Is(err, studio.ErrInvalidParam) {
		t.Errorf("cfg 0.1: err = %v, want ErrInvalidParam", err)
	}
}

func TestVCGenerate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	src := filepath.Join(f.dir, "in.wav")
	writeClip(t, src, 2)

	if _, err := f.svc.VCGenerate(context.Background(), studio.VCParams{}); !errors.Is(err, studio.ErrInvalidParam) {
		t.Fatalf("missing source: err = %v", err)
	}
	if _, err := f.svc.VCGenerate(context.Background(), studio.VCParams{SourceAudio: filepath.Join(f.dir, "nope.wav")}); !errors.Is(err, studio.ErrInvalidParam) {
		t.Fatalf("absent source: err = %v", err)
	}

	res, err := f.svc.VCGenerate(context.Background(), studio.VCParams{SourceAudio: src})
	if err != nil {
		t.Fatalf("VCGenerate: %v", err)
	}
	if res.Model != studio.ModelVC {
		t.Errorf("model = %q", res.Model)
	}
	req := f.models.vc.Calls()[0].Req
	if req.SourceAudio != src || req.TargetVoice != "" {
		t.Errorf("request = %+v", req)
	}
}

func TestGenerate_BackendErrors(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.models.loadErr = errors.New("server unreachable")

	p := studio.DefaultClassicParams()
	p.Text = "hi"
	_, err := f.svc.TTSGenerate(context.Background(), p)
	if !errors.Is(err, studio.ErrBackend) {
		t.Fatalf("err = %v, want ErrBackend", err)
	}

	f.models.loadErr = nil
	f.models.tts[tts.ModelClassic].GenerateErr = errors.New("500")
	if _, err := f.svc.TTSGenerate(context.Background(), p); !errors.Is(err, studio.ErrBackend) {
		t.Fatalf("err = %v, want ErrBackend", err)
	}
}

func TestOnLanguageChange(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	audioPath, text := f.svc.OnLanguageChange("fr")
	if audioPath != f.cat.DefaultAudioForLang("fr") || text == "" {
		t.Errorf("fr = %q, %q", audioPath, text)
	}
	audioPath, text = f.svc.OnLanguageChange("xx")
	if audioPath != "" || text != "" {
		t.Errorf("unknown = %q, %q; want empty", audioPath, text)
	}
}

func TestOnVoiceChange(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	voice, _ := f.cat.VoiceByID("female_podcast")

	tests := []struct {
		name       string
		selection  string
		currentRef string
		clear      bool
		want       string
	}{
		{"no current reference", "female_podcast", "", false, voice.Audio},
		{"keeps current reference", "female_podcast", "/up/mine.wav", false, "/up/mine.wav"},
		{"confirmed clear", "female_podcast", "/up/mine.wav", true, voice.Audio},
		{"selection by label", voice.Label(), "", false, voice.Audio},
		{"unknown selection", "nobody", "/up/mine.wav", true, "/up/mine.wav"},
		{"unknown selection, no reference", "nobody", "", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.svc.OnVoiceChange(tt.selection, tt.currentRef, tt.clear); got != tt.want {
				t.Errorf("OnVoiceChange() = %q, want %q", got, tt.want)
			}
		})
	}
}
