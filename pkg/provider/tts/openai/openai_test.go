package openai

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/voxstudio/pkg/provider/tts"
)

func buildTestWAV(pcm []byte) []byte {
	le := binary.LittleEndian
	buf := append([]byte{}, "RIFF"...)
	buf = le.AppendUint32(buf, uint32(36+len(pcm)))
	buf = append(buf, "WAVEfmt "...)
	buf = le.AppendUint32(buf, 16)
	buf = le.AppendUint16(buf, 1)
	buf = le.AppendUint16(buf, 1)
	buf = le.AppendUint32(buf, 24000)
	buf = le.AppendUint32(buf, 48000)
	buf = le.AppendUint16(buf, 2)
	buf = le.AppendUint16(buf, 16)
	buf = append(buf, "data"...)
	buf = le.AppendUint32(buf, uint32(len(pcm)))
	return append(buf, pcm...)
}

func TestNew_MissingAPIKey(t *testing.T) {
	if _, err := New("", ""); err == nil {
		t.Fatal("expected error for empty apiKey")
	}
}

func TestNew_Defaults(t *testing.T) {
	p, err := New("sk-test", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.ModelID() != string(DefaultModel) {
		t.Errorf("ModelID = %q, want %q", p.ModelID(), DefaultModel)
	}
	if p.Voice() != string(DefaultVoice) {
		t.Errorf("Voice = %q, want %q", p.Voice(), DefaultVoice)
	}
}

func TestGenerate(t *testing.T) {
	t.Parallel()
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/speech") {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(buildTestWAV([]byte{1, 0, 2, 0, 3, 0}))
	}))
	t.Cleanup(srv.Close)

	p, err := New("sk-test", "tts-1", WithBaseURL(srv.URL+"/v1/"), WithVoice("nova"), WithMaxRetries(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w, err := p.Generate(context.Background(), tts.Request{Text: "Hello.", ReferenceAudio: "/ignored.wav"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if w.SampleRate != 24000 || w.Frames() != 3 {
		t.Errorf("waveform = %s with %d frames", w.Format(), w.Frames())
	}
	for k, want := range map[string]string{"input": "Hello.", "model": "tts-1", "voice": "nova", "response_format": "wav"} {
		if body[k] != want {
			t.Errorf("body[%s] = %v, want %q", k, body[k], want)
		}
	}
}

func TestGenerate_Errors(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad voice","type":"invalid_request_error"}}`))
	}))
	t.Cleanup(srv.Close)

	p, err := New("sk-test", "", WithBaseURL(srv.URL+"/v1/"), WithMaxRetries(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Generate(context.Background(), tts.Request{Text: "hi"}); err == nil {
		t.Error("expected error for 400 reply")
	}
	if _, err := p.Generate(context.Background(), tts.Request{Text: ""}); err == nil {
		t.Error("expected error for empty text")
	}
}
