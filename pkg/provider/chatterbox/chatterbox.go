// Package chatterbox provides an HTTP client for a Chatterbox inference
// server. One [Client] serves one model family: the three TTS models
// ("classic", "turbo", "multilingual") implement tts.Provider, tts.Loader and
// tts.LanguageLister, and the "vc" model implements vc.Provider.
//
// Server API:
//
//   - POST /v1/models/{model}/load with a JSON body {"device": "..."} loads
//     the weights (the from_pretrained step) and replies with the model's
//     native sample rate.
//   - POST /v1/tts/{model} takes a multipart form with the generation
//     parameters and an optional "audio_prompt" file, and replies audio/wav.
//   - POST /v1/vc takes a multipart form with an "audio" file and an optional
//     "target_voice" file, and replies audio/wav.
//   - GET /v1/languages replies {code: name} for the multilingual model.
//   - GET /health replies 200 when the server is up.
//
// Typical usage:
//
//	c, err := chatterbox.New("http://localhost:8004", "turbo",
//	    chatterbox.WithTimeout(2*time.Minute),
//	)
//	if err := c.Load(ctx, "cuda"); err != nil { ... }
//	w, err := c.Generate(ctx, tts.Request{Text: "Hi there [chuckle]"})
package chatterbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrWong99/voxstudio/pkg/audio"
	"github.com/MrWong99/voxstudio/pkg/provider/tts"
	"github.com/MrWong99/voxstudio/pkg/provider/vc"
)

// Compile-time interface assertions.
var (
	_ tts.Provider       = (*Client)(nil)
	_ tts.Loader         = (*Client)(nil)
	_ tts.LanguageLister = (*Client)(nil)
	_ vc.Provider        = (*Client)(nil)
)

// ModelVC is the model name of the voice-conversion model.
const ModelVC = "vc"

const (
	defaultTimeout = 5 * time.Minute
	defaultDevice  = "auto"

	vcEndpoint        = "/v1/vc"
	languagesEndpoint = "/v1/languages"
	healthEndpoint    = "/health"

	// maxErrorExcerpt bounds how much of a failed response body is quoted in
	// the returned error.
	maxErrorExcerpt = 512
)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithDevice sets the device used when Load is called with an empty device.
// Defaults to "auto".
func WithDevice(device string) Option {
	return func(c *Client) {
		c.device = device
	}
}

// WithTimeout sets the per-request HTTP timeout. Generation on CPU can take
// minutes, so the default is generous (5 min).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client. A nil client is
// ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// Client talks to one model on a Chatterbox server. It is safe for
// concurrent use.
type Client struct {
	serverURL  string
	model      string
	device     string
	httpClient *http.Client

	// sampleRate is the native rate reported by the last successful Load.
	sampleRate atomic.Int64
}

// New creates a Client for model on the server at serverURL (e.g.,
// "http://localhost:8004"). model is one of "classic", "turbo",
// "multilingual" or "vc".
func New(serverURL, model string, opts ...Option) (*Client, error) {
	if serverURL == "" {
		return nil, errors.New("chatterbox: serverURL must not be empty")
	}
	if model != ModelVC {
		if _, err := tts.ParseModel(model); err != nil {
			return nil, fmt.Errorf("chatterbox: unsupported model %q", model)
		}
	}
	c := &Client{
		serverURL:  strings.TrimRight(serverURL, "/"),
		model:      model,
		device:     defaultDevice,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Model returns the model family this client serves.
func (c *Client) Model() string { return c.model }

// SampleRate returns the native sample rate reported by the server on Load,
// or 0 before the first successful Load.
func (c *Client) SampleRate() int { return int(c.sampleRate.Load()) }

// ---- Load ----

type loadRequest struct {
	Device string `json:"device"`
}

type loadResponse struct {
	Model      string `json:"model"`
	SampleRate int    `json:"sample_rate"`
	Device     string `json:"device"`
}

// Load asks the server to load the model onto device. An empty device falls
// back to the client's configured device. Loading an already-loaded model is
// cheap on the server side, so Load may be called more than once.
func (c *Client) Load(ctx context.Context, device string) error {
	if device == "" {
		device = c.device
	}
	data, err := json.Marshal(loadRequest{Device: device})
	if err != nil {
		return fmt.Errorf("chatterbox: marshal load request: %w", err)
	}

	endpoint := "/v1/models/" + c.model + "/load"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("chatterbox: create load request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chatterbox: POST %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(http.MethodPost, endpoint, resp)
	}

	var lr loadResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("chatterbox: decode load response: %w", err)
	}
	c.sampleRate.Store(int64(lr.SampleRate))
	return nil
}

// ---- Generate ----

// Generate synthesises req on the client's model. req.Model is ignored. Only
// the parameters the model understands are sent: turbo takes no
// exaggeration/cfg, the English models take no language, and multilingual
// takes temperature as its only sampler setting.
func (c *Client) Generate(ctx context.Context, req tts.Request) (*audio.Waveform, error) {
	if c.model == ModelVC {
		return nil, errors.New("chatterbox: Generate called on the vc model")
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("chatterbox: text must not be empty")
	}

	fields := ttsFields(tts.Model(c.model), req)
	var files []formFile
	if req.ReferenceAudio != "" {
		files = append(files, formFile{field: "audio_prompt", path: req.ReferenceAudio})
	}
	return c.postAudio(ctx, "/v1/tts/"+c.model, fields, files)
}

// ttsFields returns the multipart fields for model in a stable order.
func ttsFields(model tts.Model, req tts.Request) [][2]string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

	fields := [][2]string{{"text", req.Text}}
	switch model {
	case tts.ModelClassic:
		fields = append(fields,
			[2]string{"exaggeration", f(req.Exaggeration)},
			[2]string{"cfg_weight", f(req.CFGWeight)},
			[2]string{"temperature", f(req.Temperature)},
			[2]string{"min_p", f(req.MinP)},
			[2]string{"top_p", f(req.TopP)},
			[2]string{"repetition_penalty", f(req.RepetitionPenalty)},
		)
	case tts.ModelTurbo:
		fields = append(fields,
			[2]string{"temperature", f(req.Temperature)},
			[2]string{"min_p", f(req.MinP)},
			[2]string{"top_p", f(req.TopP)},
			[2]string{"top_k", strconv.Itoa(req.TopK)},
			[2]string{"repetition_penalty", f(req.RepetitionPenalty)},
			[2]string{"norm_loudness", strconv.FormatBool(req.NormLoudness)},
		)
	case tts.ModelMultilingual:
		fields = append(fields,
			[2]string{"language_id", req.Language},
			[2]string{"exaggeration", f(req.Exaggeration)},
			[2]string{"cfg_weight", f(req.CFGWeight)},
			[2]string{"temperature", f(req.Temperature)},
		)
	}
	return append(fields, [2]string{"seed", strconv.FormatInt(req.Seed, 10)})
}

// ---- Convert ----

// Convert runs voice conversion. It is only valid on a client created for
// the "vc" model.
func (c *Client) Convert(ctx context.Context, req vc.Request) (*audio.Waveform, error) {
	if c.model != ModelVC {
		return nil, fmt.Errorf("chatterbox: Convert called on the %s model", c.model)
	}
	if req.SourceAudio == "" {
		return nil, errors.New("chatterbox: source audio must not be empty")
	}
	files := []formFile{{field: "audio", path: req.SourceAudio}}
	if req.TargetVoice != "" {
		files = append(files, formFile{field: "target_voice", path: req.TargetVoice})
	}
	return c.postAudio(ctx, vcEndpoint, nil, files)
}

// ---- Languages / Ping ----

// Languages returns the languages supported by the multilingual model, keyed
// by code.
func (c *Client) Languages(ctx context.Context) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+languagesEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("chatterbox: create languages request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chatterbox: GET %s: %w", languagesEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(http.MethodGet, languagesEndpoint, resp)
	}

	var langs map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&langs); err != nil {
		return nil, fmt.Errorf("chatterbox: decode languages: %w", err)
	}
	return langs, nil
}

// Ping checks that the server answers GET /health with 200.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+healthEndpoint, nil)
	if err != nil {
		return fmt.Errorf("chatterbox: create health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chatterbox: GET %s: %w", healthEndpoint, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorExcerpt))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chatterbox: GET %s returned status %d", healthEndpoint, resp.StatusCode)
	}
	return nil
}

// ---- transport helpers ----

type formFile struct {
	field string
	path  string
}

// postAudio sends a multipart form and decodes the WAV reply.
func (c *Client) postAudio(ctx context.Context, endpoint string, fields [][2]string, files []formFile) (*audio.Waveform, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	for _, kv := range fields {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return nil, fmt.Errorf("chatterbox: write field %s: %w", kv[0], err)
		}
	}
	for _, ff := range files {
		if err := attachFile(mw, ff); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("chatterbox: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("chatterbox: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "audio/wav")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chatterbox: POST %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(http.MethodPost, endpoint, resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("chatterbox: read WAV response: %w", err)
	}
	w, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("chatterbox: POST %s: %w", endpoint, err)
	}
	return w, nil
}

func attachFile(mw *multipart.Writer, ff formFile) error {
	f, err := os.Open(ff.path)
	if err != nil {
		return fmt.Errorf("chatterbox: open %s: %w", ff.field, err)
	}
	defer f.Close()

	fw, err := mw.CreateFormFile(ff.field, filepath.Base(ff.path))
	if err != nil {
		return fmt.Errorf("chatterbox: create form file %s: %w", ff.field, err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return fmt.Errorf("chatterbox: write form file %s: %w", ff.field, err)
	}
	return nil
}

// statusError builds the error for a non-200 reply, quoting the start of the
// body so server-side tracebacks are visible in the logs.
func statusError(method, endpoint string, resp *http.Response) error {
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorExcerpt))
	msg := strings.TrimSpace(string(excerpt))
	if msg == "" {
		return fmt.Errorf("chatterbox: %s %s returned status %d", method, endpoint, resp.StatusCode)
	}
	return fmt.Errorf("chatterbox: %s %s returned status %d: %s", method, endpoint, resp.StatusCode, msg)
}
