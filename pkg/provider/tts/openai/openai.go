// Package openai provides a TTS provider backed by the OpenAI speech API.
//
// The OpenAI voices are fixed: reference audio cannot be cloned and is
// ignored, as are the Chatterbox sampler settings. The provider is meant as a
// last-resort fallback and for running the studio without a GPU server.
package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/voxstudio/pkg/audio"
	"github.com/MrWong99/voxstudio/pkg/provider/tts"
)

const (
	// DefaultModel is the default OpenAI speech model.
	DefaultModel = oai.SpeechModelGPT4oMiniTTS

	// DefaultVoice is the voice used when none is configured.
	DefaultVoice = oai.AudioSpeechNewParamsVoiceAlloy
)

// Ensure Provider implements the tts.Provider interface.
var _ tts.Provider = (*Provider)(nil)

// Provider implements tts.Provider using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
	voice  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL      string
	organization string
	voice        string
	timeout      time.Duration
	maxRetries   int
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL. Any server speaking
// the /audio/speech protocol works.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option {
	return func(c *config) {
		c.organization = org
	}
}

// WithVoice selects the OpenAI voice (e.g., "alloy", "nova", "onyx").
func WithVoice(voice string) Option {
	return func(c *config) {
		c.voice = voice
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithMaxRetries sets how often the SDK retries failed requests. Negative
// values keep the SDK default.
func WithMaxRetries(n int) Option {
	return func(c *config) {
		c.maxRetries = n
	}
}

// New constructs a new OpenAI TTS Provider.
// If model is empty, DefaultModel is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai tts: apiKey must not be empty")
	}
	if model == "" {
		model = string(DefaultModel)
	}

	cfg := &config{voice: string(DefaultVoice), maxRetries: -1}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}
	if cfg.maxRetries >= 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(cfg.maxRetries))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{client: client, model: model, voice: cfg.voice}, nil
}

// Generate implements tts.Provider. The response is requested as WAV and
// decoded into a waveform.
func (p *Provider) Generate(ctx context.Context, req tts.Request) (*audio.Waveform, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("openai tts: text must not be empty")
	}

	resp, err := p.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Input:          req.Text,
		Model:          oai.SpeechModel(p.model),
		Voice:          oai.AudioSpeechNewParamsVoice(p.voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatWAV,
	})
	if err != nil {
		return nil, fmt.Errorf("openai tts: generate: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai tts: read response: %w", err)
	}
	w, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("openai tts: %w", err)
	}
	return w, nil
}

// ModelID returns the configured speech model.
func (p *Provider) ModelID() string {
	return p.model
}

// Voice returns the configured voice.
func (p *Provider) Voice() string {
	return p.voice
}
