// Package elevenlabs provides a TTS provider backed by the ElevenLabs
// streaming WebSocket API.
//
// The studio works in whole clips, so Generate opens one stream per request,
// sends the text followed by a flush and collects the PCM chunks until the
// server marks the final one. ElevenLabs voices are selected by ID;
// reference audio cannot be cloned on the fly and is ignored, as are the
// Chatterbox sampler settings except Exaggeration, which maps onto the
// voice style.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/voxstudio/pkg/audio"
	"github.com/MrWong99/voxstudio/pkg/provider/tts"
)

var _ tts.Provider = (*Provider)(nil)

const (
	defaultWSBase    = "wss://api.elevenlabs.io"
	defaultHTTPBase  = "https://api.elevenlabs.io"
	streamPathFmt    = "/v1/text-to-speech/%s/stream-input?model_id=%s&output_format=%s"
	voicesPath       = "/v1/voices"
	defaultModel     = "eleven_flash_v2_5"
	defaultOutputFmt = "pcm_24000"
	defaultTimeout   = 60 * time.Second
)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithOutputFormat sets the PCM output format ("pcm_16000", "pcm_22050",
// "pcm_24000" or "pcm_44100").
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		p.outputFormat = format
	}
}

// WithVoice sets the ElevenLabs voice ID. Required.
func WithVoice(id string) Option {
	return func(p *Provider) {
		p.voiceID = id
	}
}

// WithBaseURL points the provider at another server speaking the same
// protocol. An http(s) URL is used for REST calls and rewritten to ws(s) for
// the stream.
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		u = strings.TrimRight(u, "/")
		p.httpBase = u
		p.wsBase = "ws" + strings.TrimPrefix(u, "http")
	}
}

// WithTimeout bounds one complete synthesis. Default: 60 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.timeout = d
	}
}

// Provider implements tts.Provider backed by the ElevenLabs streaming API.
// It is safe for concurrent use; every Generate opens its own stream.
type Provider struct {
	apiKey       string
	model        string
	voiceID      string
	outputFormat string
	sampleRate   int
	wsBase       string
	httpBase     string
	timeout      time.Duration
	httpClient   *http.Client
}

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		wsBase:       defaultWSBase,
		httpBase:     defaultHTTPBase,
		timeout:      defaultTimeout,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	if p.voiceID == "" {
		return nil, errors.New("elevenlabs: a voice ID is required")
	}
	rate, err := sampleRateOf(p.outputFormat)
	if err != nil {
		return nil, err
	}
	p.sampleRate = rate
	return p, nil
}

// sampleRateOf parses the rate out of a "pcm_<rate>" output format. Other
// formats (mp3, ulaw) are not raw PCM and are rejected.
func sampleRateOf(format string) (int, error) {
	rate, ok := strings.CutPrefix(format, "pcm_")
	if !ok {
		return 0, fmt.Errorf("elevenlabs: output format %q is not PCM", format)
	}
	n, err := strconv.Atoi(rate)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("elevenlabs: output format %q has no sample rate", format)
	}
	return n, nil
}

// ---- WebSocket message types ----

// textMessage is the JSON payload sent for each text fragment. An empty
// Text flushes the stream.
type textMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
}

// audioResponse is one server message.
type audioResponse struct {
	Audio   string `json:"audio"` // base64-encoded PCM
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// settingsFor maps the studio's exaggeration (0.25 to 2, neutral 0.5) onto
// the ElevenLabs style weight (0 to 1).
func settingsFor(req tts.Request) *voiceSettings {
	vs := &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75}
	if req.Exaggeration > 0.5 {
		vs.Style = min((req.Exaggeration-0.5)/1.5, 1)
	}
	return vs
}

// ---- Generate ----

// Generate synthesises req.Text over one WebSocket stream and returns the
// collected mono PCM.
func (p *Provider) Generate(ctx context.Context, req tts.Request) (*audio.Waveform, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, errors.New("elevenlabs: text must not be empty")
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	conn, _, err := websocket.Dial(ctx, p.streamURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(-1)

	// The first message authenticates and must carry non-empty text.
	msgs := []textMessage{
		{Text: " ", VoiceSettings: settingsFor(req), XiAPIKey: p.apiKey},
		{Text: text + " "},
		{Text: ""},
	}
	for _, m := range msgs {
		if err := writeJSON(ctx, conn, m); err != nil {
			return nil, fmt.Errorf("elevenlabs: send: %w", err)
		}
	}

	var pcm []byte
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure && len(pcm) > 0 {
				break
			}
			return nil, fmt.Errorf("elevenlabs: read: %w", err)
		}
		var resp audioResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("elevenlabs: decode message: %w", err)
		}
		if resp.Error != "" {
			return nil, fmt.Errorf("elevenlabs: server error: %s", resp.Error)
		}
		if resp.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err != nil {
				return nil, fmt.Errorf("elevenlabs: decode audio: %w", err)
			}
			pcm = append(pcm, chunk...)
		}
		if resp.IsFinal {
			break
		}
	}
	conn.Close(websocket.StatusNormalClosure, "")

	if len(pcm) == 0 {
		return nil, errors.New("elevenlabs: stream returned no audio")
	}
	return &audio.Waveform{SampleRate: p.sampleRate, Channels: 1, PCM: pcm}, nil
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

func (p *Provider) streamURL() string {
	return p.wsBase + fmt.Sprintf(streamPathFmt, p.voiceID, p.model, p.outputFormat)
}

// ---- Ping ----

// Ping checks the API key against GET /v1/voices.
func (p *Provider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.httpBase+voicesPath, nil)
	if err != nil {
		return fmt.Errorf("elevenlabs: ping: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("elevenlabs: ping: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("elevenlabs: ping: unexpected status %d", resp.StatusCode)
	}
	return nil
}
