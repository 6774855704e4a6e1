package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MrWong99/voxstudio/internal/observe"
	"github.com/MrWong99/voxstudio/internal/studio"
)

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	defer cleanupForm(r)

	p := studio.DefaultClassicParams()
	f := formReader{r: r}
	p.Text = r.FormValue("text")
	p.Exaggeration = f.float("exaggeration", p.Exaggeration)
	p.Temperature = f.float("temperature", p.Temperature)
	p.CFGWeight = f.float("cfg_weight", p.CFGWeight)
	p.MinP = f.float("min_p", p.MinP)
	p.TopP = f.float("top_p", p.TopP)
	p.RepetitionPenalty = f.float("repetition_penalty", p.RepetitionPenalty)
	p.Seed = f.int("seed", p.Seed)
	if f.err == nil {
		p.ReferenceAudio, f.err = s.reference(r, "reference_audio", "reference_sample")
	}
	if f.err != nil {
		s.writeError(w, r, f.err)
		return
	}

	res, err := s.svc.TTSGenerate(r.Context(), p)
	s.writeResult(w, r, res, err)
}

func (s *Server) handleTurbo(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	defer cleanupForm(r)

	p := studio.DefaultTurboParams()
	f := formReader{r: r}
	p.Text = r.FormValue("text")
	p.Temperature = f.float("temperature", p.Temperature)
	p.MinP = f.float("min_p", p.MinP)
	p.TopP = f.float("top_p", p.TopP)
	p.TopK = f.float("top_k", p.TopK)
	p.RepetitionPenalty = f.float("repetition_penalty", p.RepetitionPenalty)
	p.NormLoudness = f.bool("norm_loudness", p.NormLoudness)
	p.Seed = f.int("seed", p.Seed)
	if f.err == nil {
		p.ReferenceAudio, f.err = s.reference(r, "reference_audio", "reference_sample")
	}
	if f.err != nil {
		s.writeError(w, r, f.err)
		return
	}

	res, err := s.svc.TurboGenerate(r.Context(), p)
	s.writeResult(w, r, res, err)
}

func (s *Server) handleMTL(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	defer cleanupForm(r)

	lang := strings.TrimSpace(r.FormValue("language_id"))
	if lang == "" {
		lang = s.svc.Catalog().InitialLanguage()
	}
	p := studio.DefaultMultilingualParams(lang)
	f := formReader{r: r}
	p.Text = r.FormValue("text")
	p.Exaggeration = f.float("exaggeration", p.Exaggeration)
	p.Temperature = f.float("temperature", p.Temperature)
	p.CFGWeight = f.float("cfg_weight", p.CFGWeight)
	p.Seed = f.int("seed", p.Seed)
	if f.err == nil {
		p.ReferenceAudio, f.err = s.reference(r, "reference_audio", "reference_sample")
	}
	if f.err != nil {
		s.writeError(w, r, f.err)
		return
	}

	res, err := s.svc.MTLGenerate(r.Context(), p)
	s.writeResult(w, r, res, err)
}

func (s *Server) handleVC(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	defer cleanupForm(r)

	var p studio.VCParams
	var err error
	if p.SourceAudio, err = s.saveFile(r, "audio"); err == nil && p.SourceAudio == "" {
		// A clip uploaded earlier through /api/upload.
		if ref := strings.TrimSpace(r.FormValue("audio")); strings.HasPrefix(ref, uploadRefPrefix) {
			p.SourceAudio, err = s.resolveSample(ref)
		}
	}
	if err == nil {
		p.TargetVoice, err = s.reference(r, "target_voice", "target_sample")
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.svc.VCGenerate(r.Context(), p)
	s.writeResult(w, r, res, err)
}

// writeResult stores the generated audio and streams it back as audio/wav.
func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, res *studio.Result, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.store.SaveOutput(res.Waveform)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	path, ok := s.store.OutputPath(id)
	if !ok {
		s.writeError(w, r, notFound("output %s vanished", id))
		return
	}

	h := w.Header()
	h.Set("Content-Type", "audio/wav")
	h.Set("Cache-Control", "no-store")
	h.Set("X-Generation-ID", id)
	h.Set("X-Model", res.Model)
	h.Set("X-Sample-Rate", strconv.Itoa(res.Waveform.SampleRate))
	h.Set("X-Output-URL", s.url("/outputs/"+id+".wav"))
	if len(res.ReferenceWarnings) > 0 {
		h.Set("X-Reference-Warnings", strings.Join(res.ReferenceWarnings, "; "))
	}
	observe.Logger(r.Context()).Info("audio generated",
		"model", res.Model,
		"id", id,
		"duration", res.Duration,
		"audio_seconds", res.Waveform.Duration().Seconds(),
	)
	http.ServeFile(w, r, path)
}
