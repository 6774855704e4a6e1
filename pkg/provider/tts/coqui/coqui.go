// Package coqui provides a Coqui TTS-backed tts.Provider that connects to
// either a Coqui XTTS v2 server or a standard Coqui TTS server via its REST
// API. It serves as an alternative or fallback backend to Chatterbox.
//
// Two API modes are supported:
//
//   - APIModeStandard (default): targets the standard Coqui TTS server
//     (ghcr.io/coqui-ai/tts-cpu). Synthesis is performed via GET /api/tts with
//     URL query parameters and an optional speaker_id. Reference audio cannot
//     be used and is ignored.
//
//   - APIModeXTTS: targets the Coqui XTTS v2 API server. A reference clip is
//     uploaded once via POST /clone_speaker and the returned speaker name is
//     cached by the clip's content hash. Synthesis is performed via
//     POST /tts_to_audio/ with a JSON body.
//
// The Chatterbox sampler settings (exaggeration, cfg, top_k, ...) have no
// Coqui equivalent and are ignored.
//
// Typical usage (XTTS v2 server):
//
//	p, err := coqui.New("http://localhost:8002",
//	    coqui.WithLanguage("en"),
//	    coqui.WithAPIMode(coqui.APIModeXTTS),
//	)
//	w, err := p.Generate(ctx, tts.Request{Text: "Hello.", ReferenceAudio: "ref.wav"})
package coqui

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/voxstudio/pkg/audio"
	"github.com/MrWong99/voxstudio/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// ---- constants ----

const (
	defaultLanguage      = "en"
	defaultTimeout       = 60 * time.Second
	ttsEndpoint          = "/tts_to_audio/"
	cloneSpeakerEndpoint = "/clone_speaker"
	apiTTSEndpoint       = "/api/tts"
)

// ---- APIMode ----

// APIMode selects which Coqui server API the provider will target.
type APIMode string

const (
	// APIModeXTTS targets the Coqui XTTS v2 API server (/tts_to_audio/).
	// It supports reference-audio cloning via /clone_speaker.
	APIModeXTTS APIMode = "xtts"

	// APIModeStandard targets the standard Coqui TTS server (/api/tts).
	// This is the default mode.
	APIModeStandard APIMode = "standard"
)

// ---- options ----

// Option is a functional option for configuring a Coqui Provider.
type Option func(*Provider)

// WithLanguage sets the language code sent to the TTS server when the request
// carries none (e.g., "en", "de", "fr"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithTimeout sets the per-request HTTP timeout for calls to the TTS server.
// Defaults to 60 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithAPIMode sets the server API mode.
func WithAPIMode(mode APIMode) Option {
	return func(p *Provider) {
		p.apiMode = mode
	}
}

// WithSpeaker sets the speaker used when a request carries no reference
// audio: a speaker_id in standard mode, a studio speaker name in XTTS mode.
func WithSpeaker(name string) Option {
	return func(p *Provider) {
		p.speaker = name
	}
}

// WithOutputSampleRate resamples synthesised audio to rate. When 0 (default)
// audio is returned at the model's native rate.
func WithOutputSampleRate(rate int) Option {
	return func(p *Provider) {
		p.outputRate = rate
	}
}

// ---- Provider ----

// Provider implements tts.Provider backed by a Coqui TTS server.
// It is safe for concurrent use.
type Provider struct {
	serverURL  string
	language   string
	speaker    string
	httpClient *http.Client
	apiMode    APIMode
	outputRate int // target sample rate; 0 = no resampling

	mu       sync.Mutex
	speakers map[string]string // sha256 of reference clip → cloned speaker name
}

// New creates a new Coqui Provider that targets the TTS server at serverURL
// (e.g., "http://localhost:5002"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	p := &Provider{
		serverURL: strings.TrimRight(serverURL, "/"),
		language:  defaultLanguage,
		apiMode:   APIModeStandard,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		speakers: make(map[string]string),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ttsRequest is the JSON body sent to POST /tts_to_audio/ (XTTS mode).
type ttsRequest struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav"`
	Language   string `json:"language"`
}

// cloneSpeakerResponse is the JSON body returned by POST /clone_speaker.
type cloneSpeakerResponse struct {
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
}

// ---- Generate ----

// Generate synthesises req.Text. The request language wins over the
// configured default language.
func (p *Provider) Generate(ctx context.Context, req tts.Request) (*audio.Waveform, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("coqui: text must not be empty")
	}
	lang := p.language
	if req.Language != "" {
		lang = req.Language
	}

	var (
		wav []byte
		err error
	)
	if p.apiMode == APIModeXTTS {
		wav, err = p.generateXTTS(ctx, req, lang)
	} else {
		wav, err = p.generateStandard(ctx, req, lang)
	}
	if err != nil {
		return nil, err
	}

	w, err := audio.DecodeWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("coqui: %w", err)
	}
	if p.outputRate > 0 {
		w = w.Resample(p.outputRate)
	}
	return w, nil
}

// generateXTTS performs a single POST /tts_to_audio/ call and returns the WAV
// body.
func (p *Provider) generateXTTS(ctx context.Context, req tts.Request, lang string) ([]byte, error) {
	speaker := p.speaker
	if req.ReferenceAudio != "" {
		var err error
		speaker, err = p.speakerFor(ctx, req.ReferenceAudio)
		if err != nil {
			return nil, err
		}
	}
	if speaker == "" {
		return nil, errors.New("coqui: XTTS mode requires reference audio or a configured speaker")
	}

	data, err := json.Marshal(ttsRequest{Text: req.Text, SpeakerWav: speaker, Language: lang})
	if err != nil {
		return nil, fmt.Errorf("coqui: marshal tts request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+ttsEndpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("coqui: create tts request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/wav")
	return p.fetchWAV(httpReq, http.MethodPost, ttsEndpoint)
}

// generateStandard performs a single GET /api/tts request using URL query
// parameters and returns the WAV body.
func (p *Provider) generateStandard(ctx context.Context, req tts.Request, lang string) ([]byte, error) {
	params := url.Values{}
	params.Set("text", req.Text)
	if p.speaker != "" {
		params.Set("speaker_id", p.speaker)
	}
	if lang != "" {
		params.Set("language_id", lang)
	}

	reqURL := p.serverURL + apiTTSEndpoint + "?" + params.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create tts request: %w", err)
	}
	httpReq.Header.Set("Accept", "audio/wav")
	return p.fetchWAV(httpReq, http.MethodGet, apiTTSEndpoint)
}

func (p *Provider) fetchWAV(req *http.Request, method, endpoint string) ([]byte, error) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: %s %s returned status %d", method, endpoint, resp.StatusCode)
	}
	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read WAV response: %w", err)
	}
	return wav, nil
}

// ---- speaker cloning ----

// speakerFor returns the XTTS speaker name for the clip at path, cloning it
// on first use. The cache key is the clip's content hash so an edited file
// at the same path is cloned again.
func (p *Provider) speakerFor(ctx context.Context, path string) (string, error) {
	clip, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("coqui: read reference audio: %w", err)
	}
	sum := sha256.Sum256(clip)
	key := hex.EncodeToString(sum[:])

	p.mu.Lock()
	name, ok := p.speakers[key]
	p.mu.Unlock()
	if ok {
		return name, nil
	}

	name, err = p.cloneSpeaker(ctx, filepath.Base(path), clip)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	p.speakers[key] = name
	p.mu.Unlock()
	return name, nil
}

// cloneSpeaker uploads clip via POST /clone_speaker and returns the speaker
// name assigned by the server.
func (p *Provider) cloneSpeaker(ctx context.Context, filename string, clip []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("wav_files", filename)
	if err != nil {
		return "", fmt.Errorf("coqui: create form file %s: %w", filename, err)
	}
	if _, err := fw.Write(clip); err != nil {
		return "", fmt.Errorf("coqui: write form file %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("coqui: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+cloneSpeakerEndpoint, &body)
	if err != nil {
		return "", fmt.Errorf("coqui: create clone-speaker request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("coqui: POST %s: %w", cloneSpeakerEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("coqui: POST %s returned status %d", cloneSpeakerEndpoint, resp.StatusCode)
	}

	var cloneResp cloneSpeakerResponse
	if err := json.NewDecoder(resp.Body).Decode(&cloneResp); err != nil {
		return "", fmt.Errorf("coqui: decode clone-speaker response: %w", err)
	}
	if cloneResp.Name == "" {
		return "", errors.New("coqui: clone-speaker response missing name")
	}
	return cloneResp.Name, nil
}
