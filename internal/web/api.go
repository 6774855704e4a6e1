package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"slices"
	"strings"

	"github.com/MrWong99/voxstudio/pkg/samples"
)

// maxJSONBytes bounds the JSON request bodies of the callback endpoints.
const maxJSONBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return maxErr
		}
		if errors.Is(err, io.EOF) {
			return badRequest("empty request body")
		}
		return badRequest("decode request: %v", err)
	}
	return nil
}

// sampleRef is a clip as the browser sees it: the value to post back as
// reference_sample and a URL to preview it.
type sampleRef struct {
	Audio    string `json:"audio"`
	AudioURL string `json:"audio_url,omitempty"`
}

// refFor converts a resolved path into its samples-relative form. Paths
// outside the samples directory are passed through without a URL.
func (s *Server) refFor(cat *samples.Catalog, path string) sampleRef {
	if path == "" {
		return sampleRef{}
	}
	rel, ok := cat.Rel(path)
	if !ok {
		return sampleRef{Audio: path}
	}
	return sampleRef{Audio: rel, AudioURL: s.url("/samples/" + (&url.URL{Path: rel}).EscapedPath())}
}

type voiceJSON struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Label       string `json:"label"`
	Description string `json:"description"`
	sampleRef
}

type voicesResponse struct {
	Options []samples.Option `json:"options"`
	Default string           `json:"default"`
	Voices  []voiceJSON      `json:"voices"`
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	cat := s.svc.Catalog()
	resp := voicesResponse{
		Options: cat.VoiceOptions(),
		Default: cat.DefaultVoiceID(),
	}
	for _, v := range cat.Voices() {
		resp.Voices = append(resp.Voices, voiceJSON{
			ID:          v.ID,
			Name:        v.Name,
			Label:       v.Label(),
			Description: v.Description,
			sampleRef:   s.refFor(cat, v.Audio),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type voiceChangeRequest struct {
	Selection     string `json:"selection"`
	CurrentRef    string `json:"current_ref"`
	ClearExisting bool   `json:"clear_existing"`
}

type voiceChangeResponse struct {
	Reference string `json:"reference"`
	AudioURL  string `json:"audio_url,omitempty"`
	Changed   bool   `json:"changed"`
}

// handleVoiceChange applies the dropdown rule of [studio.Service.OnVoiceChange].
// current_ref is passed through untouched when it is kept.
func (s *Server) handleVoiceChange(w http.ResponseWriter, r *http.Request) {
	var req voiceChangeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ref := s.svc.OnVoiceChange(req.Selection, req.CurrentRef, req.ClearExisting)
	if ref == req.CurrentRef {
		writeJSON(w, http.StatusOK, voiceChangeResponse{Reference: ref})
		return
	}
	sr := s.refFor(s.svc.Catalog(), ref)
	writeJSON(w, http.StatusOK, voiceChangeResponse{Reference: sr.Audio, AudioURL: sr.AudioURL, Changed: true})
}

type languageJSON struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Text string `json:"text"`
	sampleRef
}

type languagesResponse struct {
	Initial   string         `json:"initial"`
	Languages []languageJSON `json:"languages"`
	Markdown  string         `json:"markdown"`
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	cat := s.svc.Catalog()
	resp := languagesResponse{
		Initial:  cat.InitialLanguage(),
		Markdown: cat.SupportedLanguagesMarkdown(),
	}
	for _, l := range cat.Languages() {
		resp.Languages = append(resp.Languages, languageJSON{
			Code:      l.Code,
			Name:      l.Name,
			Text:      l.Text,
			sampleRef: s.refFor(cat, l.Audio),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleLanguage is the language-change callback: the prompt clip and text
// that pre-fill the multilingual form.
func (s *Server) handleLanguage(w http.ResponseWriter, r *http.Request) {
	cat := s.svc.Catalog()
	input := r.PathValue("code")
	code, ok := cat.LanguageCodeFor(input)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{
			Error:      "unknown language " + input,
			Suggestion: s.svc.LanguageHint(input),
		})
		return
	}
	audioPath, text := s.svc.OnLanguageChange(code)
	l, _ := cat.Language(code)
	writeJSON(w, http.StatusOK, languageJSON{
		Code:      code,
		Name:      l.Name,
		Text:      text,
		sampleRef: s.refFor(cat, audioPath),
	})
}

func (s *Server) handleEventTags(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"tags": s.svc.Catalog().EventTags()})
}

type insertTagRequest struct {
	Text  string `json:"text"`
	Tag   string `json:"tag"`
	Start *int   `json:"start,omitempty"`
	End   *int   `json:"end,omitempty"`
}

// handleInsertTag inserts an event tag at the posted selection, or appends
// it when no cursor position is known.
func (s *Server) handleInsertTag(w http.ResponseWriter, r *http.Request) {
	var req insertTagRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if !slices.Contains(s.svc.Catalog().EventTags(), req.Tag) {
		s.writeError(w, r, badRequest("unknown event tag %q", req.Tag))
		return
	}

	var text string
	switch {
	case req.Start == nil:
		text = samples.AppendTag(req.Text, req.Tag)
	case req.End == nil:
		text = samples.InsertTag(req.Text, req.Tag, *req.Start, *req.Start)
	default:
		text = samples.InsertTag(req.Text, req.Tag, *req.Start, *req.End)
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

type requirementsResponse struct {
	Formats     []string `json:"formats"`
	SampleRates []int    `json:"sample_rates"`
	Channels    []string `json:"channels"`
	MinSeconds  float64  `json:"min_seconds"`
	MaxSeconds  float64  `json:"max_seconds"`
	Quality     string   `json:"quality"`
}

func requirementsJSON(req samples.FileRequirements) requirementsResponse {
	return requirementsResponse{
		Formats:     req.Formats,
		SampleRates: req.SampleRates,
		Channels:    req.Channels,
		MinSeconds:  req.MinDuration.Seconds(),
		MaxSeconds:  req.MaxDuration.Seconds(),
		Quality:     req.Quality,
	}
}

func (s *Server) handleRequirements(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, requirementsJSON(s.svc.Catalog().Requirements()))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.queue.Snapshot())
}

type clipJSON struct {
	Format     string  `json:"format"`
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	BitDepth   int     `json:"bit_depth,omitempty"`
	Seconds    float64 `json:"seconds"`
	Size       int64   `json:"size"`
}

type uploadResponse struct {
	Ref      string    `json:"ref"`
	Info     *clipJSON `json:"info,omitempty"`
	Warnings []string  `json:"warnings,omitempty"`
}

// handleUpload stores a reference clip for later use as reference_sample and
// reports how well it matches the clip requirements.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	defer cleanupForm(r)

	fh := fileHeader(r, "file")
	if fh == nil {
		s.writeError(w, r, badRequest("missing file field"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.writeError(w, r, badRequest("open upload: %v", err))
		return
	}
	defer f.Close()
	ref, path, err := s.store.SaveUpload(f, fh.Filename)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := uploadResponse{Ref: ref}
	info, err := samples.Inspect(path)
	switch {
	case errors.Is(err, samples.ErrUnsupportedFormat):
		resp.Warnings = []string{"format could not be checked, WAV or FLAC is recommended"}
	case err != nil:
		resp.Warnings = []string{"could not inspect clip: " + err.Error()}
	default:
		resp.Info = &clipJSON{
			Format:     info.Format,
			SampleRate: info.SampleRate,
			Channels:   info.Channels,
			BitDepth:   info.BitDepth,
			Seconds:    info.Duration.Seconds(),
			Size:       info.Size,
		}
		resp.Warnings = s.svc.Catalog().Requirements().Check(info)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// handleSample serves a clip from the samples directory.
func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	rel, err := cleanSamplePath(r.PathValue("path"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	path, ok := existing(s.svc.Catalog().AudioPath(rel))
	if !ok {
		s.writeError(w, r, notFound("sample %s", filepath.ToSlash(rel)))
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	id, ok := strings.CutSuffix(r.PathValue("file"), ".wav")
	if !ok {
		s.writeError(w, r, notFound("output %s", r.PathValue("file")))
		return
	}
	path, ok := s.store.OutputPath(id)
	if !ok {
		s.writeError(w, r, notFound("output %s has expired", id))
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	http.ServeFile(w, r, path)
}
